// Package pipeline runs digest cycles: list subscribers, fetch their GitHub
// activity, build a digest for each and hand it to the mailer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stoik/timeline/internal/models"
	"github.com/stoik/timeline/services/digest-service/internal/digest"
	"github.com/stoik/timeline/services/digest-service/internal/github"
	"github.com/stoik/timeline/services/digest-service/internal/mailer"
	"github.com/stoik/timeline/services/digest-service/internal/metrics"
	"github.com/stoik/timeline/services/digest-service/internal/runlog"
	"github.com/stoik/timeline/services/digest-service/internal/subscriber"
	"github.com/stoik/timeline/services/digest-service/internal/timeline"
)

// ErrCycleInProgress is returned by TryRunCycle while another cycle runs.
var ErrCycleInProgress = errors.New("a digest cycle is already running")

const recordTimeout = 5 * time.Second

type Config struct {
	Window    time.Duration
	Endpoints []string
	Workers   int
}

// Deps are the collaborators of a Service. Recorder, Metrics, Logger and Now
// are optional.
type Deps struct {
	Source   github.EventSource
	Store    subscriber.Store
	Sender   mailer.Sender
	Renderer *digest.Renderer
	Recorder runlog.Recorder
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

type Service struct {
	cfg      Config
	source   github.EventSource
	store    subscriber.Store
	sender   mailer.Sender
	renderer *digest.Renderer
	recorder runlog.Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	// cycleMu serializes cycles; lastMu guards last.
	cycleMu sync.Mutex
	lastMu  sync.RWMutex
	last    *models.CycleResult

	// Tracks running cycles for Shutdown
	processingWg sync.WaitGroup
}

// counters are shared by the workers of one cycle.
type counters struct {
	sent          int64
	skipped       int64
	attempted     int64
	fetchFailures int64
	sendFailures  int64
	processed     int64
}

func NewService(cfg Config, deps Deps) *Service {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		cfg:      cfg,
		source:   deps.Source,
		store:    deps.Store,
		sender:   deps.Sender,
		renderer: deps.Renderer,
		recorder: deps.Recorder,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With("component", "pipeline"),
		now:      deps.Now,
	}
}

// Run runs a cycle immediately and then every interval until ctx is done.
// With a zero interval it runs a single cycle. No cycle starts once ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if ctx.Err() != nil {
		return nil
	}
	s.RunCycle(ctx)
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// select picks at random when both cases are ready.
			if ctx.Err() != nil {
				return nil
			}
			s.RunCycle(ctx)
		}
	}
}

// RunCycle processes every subscriber once and returns the cycle summary.
// It blocks while another cycle is running.
func (s *Service) RunCycle(ctx context.Context) models.CycleResult {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	return s.runCycle(ctx)
}

// TryRunCycle is RunCycle, failing with ErrCycleInProgress instead of waiting.
func (s *Service) TryRunCycle(ctx context.Context) (models.CycleResult, error) {
	if !s.cycleMu.TryLock() {
		return models.CycleResult{}, ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()
	return s.runCycle(ctx), nil
}

// Last returns the most recent cycle result, if any.
func (s *Service) Last() (models.CycleResult, bool) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	if s.last == nil {
		return models.CycleResult{}, false
	}
	return *s.last, true
}

// Shutdown waits for a running cycle to complete with a timeout.
// Returns true if shutdown completed gracefully, false if timeout was reached.
func (s *Service) Shutdown(timeout time.Duration) bool {
	s.logger.Info("shutting down, waiting for the running cycle", "timeout", timeout)

	done := make(chan struct{})
	go func() {
		s.processingWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all cycles completed")
		return true
	case <-time.After(timeout):
		s.logger.Warn("shutdown timeout reached, a cycle may still be in progress", "timeout", timeout)
		return false
	}
}

func (s *Service) runCycle(ctx context.Context) models.CycleResult {
	s.processingWg.Add(1)
	defer s.processingWg.Done()

	result := models.CycleResult{ID: uuid.New(), StartedAt: s.now().UTC()}
	logger := s.logger.With("cycle_id", result.ID)
	logger.Info("starting digest cycle")

	subs, err := s.store.List(ctx)
	if err != nil {
		logger.Error("failed to list subscribers", "error", err)
		result.Status = models.CycleStatusError
		result.Message = fmt.Sprintf("subscriber store: %v", err)
		return s.finish(ctx, logger, result)
	}
	result.Subscribers = len(subs)

	// One reference time per cycle so every subscriber sees the same window.
	now := s.now()
	var c counters

	jobs := make(chan models.Subscriber)
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				s.processSubscriber(ctx, logger, sub, now, &c)
			}
		}()
	}

	cancelled := false
	for _, sub := range subs {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		select {
		case jobs <- sub:
		case <-ctx.Done():
			cancelled = true
		}
		if cancelled {
			break
		}
	}
	close(jobs)
	wg.Wait()

	result.Sent = int(atomic.LoadInt64(&c.sent))
	result.Skipped = int(atomic.LoadInt64(&c.skipped))
	result.FetchFailures = int(atomic.LoadInt64(&c.fetchFailures))
	result.SendFailures = int(atomic.LoadInt64(&c.sendFailures))
	result.Status = cycleStatus(&c, cancelled)
	if cancelled {
		result.Message = fmt.Sprintf("cancelled after %d of %d subscribers", atomic.LoadInt64(&c.processed), len(subs))
	}

	return s.finish(ctx, logger, result)
}

// cycleStatus is error when digests were attempted and none went out,
// partial when anything else failed and success otherwise.
func cycleStatus(c *counters, cancelled bool) models.CycleStatus {
	attempted := atomic.LoadInt64(&c.attempted)
	sent := atomic.LoadInt64(&c.sent)
	switch {
	case attempted > 0 && sent == 0:
		return models.CycleStatusError
	case cancelled || atomic.LoadInt64(&c.fetchFailures) > 0 || atomic.LoadInt64(&c.sendFailures) > 0:
		return models.CycleStatusPartial
	default:
		return models.CycleStatusSuccess
	}
}

func (s *Service) processSubscriber(ctx context.Context, logger *slog.Logger, sub models.Subscriber, now time.Time, c *counters) {
	defer atomic.AddInt64(&c.processed, 1)
	logger = logger.With("email", sub.Email, "username", sub.GitHubUsername)

	streams, failures := s.source.Events(ctx, sub.GitHubUsername, s.cfg.Endpoints)
	for _, ferr := range failures {
		atomic.AddInt64(&c.fetchFailures, 1)
		endpoint := github.Endpoint(ferr)
		status := github.StatusCode(ferr)
		s.metrics.FetchFailed(endpointName(endpoint), status)
		logger.Warn("fetch failed",
			"endpoint", endpoint,
			"status", status,
			"rate_limited", github.IsRateLimited(ferr),
			"error", ferr,
		)
	}

	agg := timeline.AggregateWithStats(streams, now, s.cfg.Window)
	s.metrics.EventsRejected(agg.Rejected)
	if agg.Rejected > 0 {
		logger.Debug("events rejected", "count", agg.Rejected)
	}

	d, ok := digest.Build(sub, agg.Entries, timeline.WindowStart(now, s.cfg.Window))
	if !ok {
		atomic.AddInt64(&c.skipped, 1)
		logger.Info("no activity in window, skipping", "outside_window", agg.Outside)
		return
	}

	atomic.AddInt64(&c.attempted, 1)
	msg, err := s.renderer.Render(d)
	if err != nil {
		atomic.AddInt64(&c.sendFailures, 1)
		logger.Error("failed to render digest", "error", err)
		return
	}

	if err := s.sender.SendDigest(ctx, msg.Recipient, msg.Subject, msg.HTML, msg.Text); err != nil {
		atomic.AddInt64(&c.sendFailures, 1)
		logger.Error("failed to send digest", "entries", len(d.Entries), "error", err)
		return
	}
	atomic.AddInt64(&c.sent, 1)
	logger.Info("digest sent", "entries", len(d.Entries))
}

// endpointName keeps metric labels free of usernames.
func endpointName(endpoint string) string {
	if endpoint == "" {
		return "unknown"
	}
	return path.Base(endpoint)
}

func (s *Service) finish(ctx context.Context, logger *slog.Logger, result models.CycleResult) models.CycleResult {
	result.FinishedAt = s.now().UTC()

	s.metrics.ObserveCycle(result)
	if s.recorder != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		if err := s.recorder.Record(rctx, result); err != nil {
			logger.Error("failed to record cycle", "error", err)
		}
		cancel()
	}

	s.lastMu.Lock()
	s.last = &result
	s.lastMu.Unlock()

	logger.Info("digest cycle finished",
		"status", result.Status,
		"subscribers", result.Subscribers,
		"sent", result.Sent,
		"skipped", result.Skipped,
		"fetch_failures", result.FetchFailures,
		"send_failures", result.SendFailures,
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)
	return result
}
