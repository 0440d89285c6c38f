package status_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stoik/timeline/internal/models"
	"github.com/stoik/timeline/services/digest-service/internal/metrics"
	"github.com/stoik/timeline/services/digest-service/internal/pipeline"
	"github.com/stoik/timeline/services/digest-service/internal/runlog"
	"github.com/stoik/timeline/services/digest-service/internal/status"
)

type mockCycles struct {
	last   *models.CycleResult
	result models.CycleResult
	err    error
	runs   int
}

func (m *mockCycles) TryRunCycle(context.Context) (models.CycleResult, error) {
	m.runs++
	if m.err != nil {
		return models.CycleResult{}, m.err
	}
	m.last = &m.result
	return m.result, nil
}

func (m *mockCycles) Last() (models.CycleResult, bool) {
	if m.last == nil {
		return models.CycleResult{}, false
	}
	return *m.last, true
}

type mockHistory struct {
	last  models.CycleResult
	err   error
	reads int
}

func (m *mockHistory) Last(context.Context) (models.CycleResult, error) {
	m.reads++
	return m.last, m.err
}

var _ = Describe("Server", func() {
	var (
		cycles *mockCycles
		router http.Handler
	)

	do := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		cycles = &mockCycles{result: models.CycleResult{
			ID: uuid.New(), Status: models.CycleStatusPartial, Sent: 3, Skipped: 2, FetchFailures: 1,
		}}
		m := metrics.New()
		router = status.NewServer(":0", cycles, m.Handler(), nil).Handler()
	})

	It("reports health", func() {
		w := do(http.MethodGet, "/health")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"status":"ok"}`))
	})

	It("returns 404 before the first cycle", func() {
		w := do(http.MethodGet, "/status")
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("runs a cycle and returns its JSON summary", func() {
		w := do(http.MethodPost, "/cycles")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(cycles.runs).To(Equal(1))

		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["status"]).To(Equal("partial"))
		Expect(resp["sent"]).To(BeNumerically("==", 3))
		Expect(resp["skipped"]).To(BeNumerically("==", 2))
		Expect(resp["fetch_failures"]).To(BeNumerically("==", 1))

		w = do(http.MethodGet, "/status")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(cycles.result.ID.String()))
	})

	Context("with a run history", func() {
		var history *mockHistory

		BeforeEach(func() {
			history = &mockHistory{last: models.CycleResult{ID: uuid.New(), Status: models.CycleStatusSuccess, Sent: 7}}
			router = status.NewServer(":0", cycles, nil, nil, status.WithHistory(history)).Handler()
		})

		It("serves the last recorded cycle before this process has run one", func() {
			w := do(http.MethodGet, "/status")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(history.last.ID.String()))
			Expect(history.reads).To(Equal(1))
		})

		It("prefers the in-memory result once a cycle has run", func() {
			do(http.MethodPost, "/cycles")
			w := do(http.MethodGet, "/status")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(cycles.result.ID.String()))
			Expect(history.reads).To(Equal(0))
		})

		It("returns 404 when the history is empty", func() {
			history.err = runlog.ErrNoRuns
			w := do(http.MethodGet, "/status")
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 500 when the history cannot be read", func() {
			history.err = errors.New("connection refused")
			w := do(http.MethodGet, "/status")
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	It("returns 409 while a cycle is running", func() {
		cycles.err = pipeline.ErrCycleInProgress
		w := do(http.MethodPost, "/cycles")
		Expect(w.Code).To(Equal(http.StatusConflict))
	})

	It("serves prometheus metrics", func() {
		w := do(http.MethodGet, "/metrics")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("timeline_digests_sent_total"))
	})
})
