package models

import (
	"time"

	"github.com/google/uuid"
)

// CycleStatus is the overall outcome of one polling cycle.
type CycleStatus string

const (
	CycleStatusSuccess CycleStatus = "success"
	CycleStatusPartial CycleStatus = "partial"
	CycleStatusError   CycleStatus = "error"
)

// CycleResult summarizes a polling cycle for logs, the status API and run history.
type CycleResult struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	Status        CycleStatus `json:"status" db:"status"`
	Subscribers   int         `json:"subscribers" db:"subscribers"`
	Sent          int         `json:"sent" db:"sent"`
	Skipped       int         `json:"skipped" db:"skipped"`
	FetchFailures int         `json:"fetch_failures" db:"fetch_failures"`
	SendFailures  int         `json:"send_failures" db:"send_failures"`
	Message       string      `json:"message,omitempty" db:"message"`
	StartedAt     time.Time   `json:"started_at" db:"started_at"`
	FinishedAt    time.Time   `json:"finished_at" db:"finished_at"`
}
