package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/stoik/timeline/internal/models"
	"github.com/stoik/timeline/services/digest-service/internal/metrics"
)

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.New()
	})

	It("accumulates cycle totals", func() {
		start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		m.ObserveCycle(models.CycleResult{
			Status: models.CycleStatusPartial, Sent: 3, Skipped: 2, SendFailures: 1,
			StartedAt: start, FinishedAt: start.Add(4 * time.Second),
		})
		m.ObserveCycle(models.CycleResult{
			Status: models.CycleStatusSuccess, Sent: 1,
			StartedAt: start, FinishedAt: start.Add(time.Second),
		})

		expected := `
# HELP timeline_digests_sent_total Digests handed to the mailer successfully
# TYPE timeline_digests_sent_total counter
timeline_digests_sent_total 4
# HELP timeline_last_cycle_status 1 for the status of the most recent cycle, 0 otherwise
# TYPE timeline_last_cycle_status gauge
timeline_last_cycle_status{status="error"} 0
timeline_last_cycle_status{status="partial"} 0
timeline_last_cycle_status{status="success"} 1
`
		Expect(testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
			"timeline_digests_sent_total", "timeline_last_cycle_status")).To(Succeed())
	})

	It("labels fetch failures by endpoint and status", func() {
		m.FetchFailed("events", 403)
		m.FetchFailed("events", 403)
		m.FetchFailed("received_events", 0)

		count, err := testutil.GatherAndCount(m.Registry(), "timeline_fetch_failures_total")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(2))
	})

	It("is a no-op when nil", func() {
		var nilMetrics *metrics.Metrics
		Expect(func() {
			nilMetrics.FetchFailed("events", 500)
			nilMetrics.EventsRejected(3)
			nilMetrics.ObserveCycle(models.CycleResult{})
		}).NotTo(Panic())
	})

	It("serves the exposition format", func() {
		m.EventsRejected(2)

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

		body, err := io.ReadAll(rec.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("timeline_events_rejected_total 2"))
	})
})
