package runlog_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stoik/timeline/internal/models"
	"github.com/stoik/timeline/services/digest-service/internal/runlog"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *uuid.UUID:
			*d = v.(uuid.UUID)
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *time.Time:
			*d = v.(time.Time)
		}
	}
	return nil
}

type fakeDB struct {
	sql    string
	args   []any
	err    error
	row    []any
	rowErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = sql
	f.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{values: f.row, err: f.rowErr}
}

var _ = Describe("PostgresRecorder", func() {
	var (
		db       *fakeDB
		recorder *runlog.PostgresRecorder
		result   models.CycleResult
	)

	BeforeEach(func() {
		db = &fakeDB{}
		recorder = runlog.NewPostgresRecorder(db, nil)
		start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		result = models.CycleResult{
			ID: uuid.New(), Status: models.CycleStatusPartial, Subscribers: 5,
			Sent: 3, Skipped: 1, FetchFailures: 1, SendFailures: 0,
			StartedAt: start, FinishedAt: start.Add(time.Minute),
		}
	})

	It("inserts one row per cycle", func() {
		Expect(recorder.Record(context.Background(), result)).To(Succeed())
		Expect(db.sql).To(ContainSubstring("INSERT INTO digest_runs"))
		Expect(db.args).To(HaveLen(10))
		Expect(db.args[0]).To(Equal(result.ID))
		Expect(db.args[1]).To(Equal("partial"))
		Expect(db.args[3]).To(Equal(3))
	})

	It("wraps insert failures", func() {
		db.err = errors.New("relation does not exist")
		err := recorder.Record(context.Background(), result)
		Expect(err).To(MatchError(ContainSubstring("relation does not exist")))
		Expect(err).To(MatchError(db.err))
	})

	It("reports an empty history as ErrNoRuns", func() {
		db.rowErr = pgx.ErrNoRows
		_, err := recorder.Last(context.Background())
		Expect(err).To(MatchError(runlog.ErrNoRuns))
	})

	It("wraps other read failures", func() {
		db.rowErr = errors.New("connection reset")
		_, err := recorder.Last(context.Background())
		Expect(err).To(MatchError(db.rowErr))
		Expect(errors.Is(err, runlog.ErrNoRuns)).To(BeFalse())
	})

	It("reads back the latest cycle", func() {
		db.row = []any{
			result.ID, "partial", result.Subscribers, result.Sent, result.Skipped,
			result.FetchFailures, result.SendFailures, "", result.StartedAt, result.FinishedAt,
		}
		last, err := recorder.Last(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(last).To(Equal(result))
	})
})
