package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stoik/timeline/internal/models"
	"github.com/stoik/timeline/services/digest-service/internal/digest"
	"github.com/stoik/timeline/services/digest-service/internal/github"
	"github.com/stoik/timeline/services/digest-service/internal/metrics"
	"github.com/stoik/timeline/services/digest-service/internal/pipeline"
)

var _ = Describe("Service", func() {
	var (
		now      time.Time
		source   *fakeSource
		store    *fakeStore
		sender   *fakeSender
		recorder *fakeRecorder
		workers  int
	)

	mona := models.Subscriber{Email: "mona@example.com", GitHubUsername: "mona"}
	hubot := models.Subscriber{Email: "hubot@example.com", GitHubUsername: "hubot"}

	newService := func() *pipeline.Service {
		return pipeline.NewService(pipeline.Config{
			Window:    24 * time.Hour,
			Endpoints: []string{"received_events", "events"},
			Workers:   workers,
		}, pipeline.Deps{
			Source:   source,
			Store:    store,
			Sender:   sender,
			Renderer: digest.NewRenderer("New GitHub Timeline Updates", "https://timeline.example.com/unsubscribe"),
			Recorder: recorder,
			Metrics:  metrics.New(),
			Logger:   testLogger(),
			Now:      func() time.Time { return now },
		})
	}

	activity := func(actor string) feed {
		return feed{streams: [][]json.RawMessage{{
			rawEvent("PushEvent", actor, actor+"/site", now.Add(-time.Hour)),
			rawEvent("WatchEvent", "octocat", actor+"/site", now.Add(-2*time.Hour)),
		}}}
	}

	BeforeEach(func() {
		now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		source = &fakeSource{feeds: map[string]feed{}}
		store = &fakeStore{}
		sender = &fakeSender{}
		recorder = &fakeRecorder{}
		workers = 1
	})

	Describe("RunCycle", func() {
		It("sends a digest to every subscriber with activity", func() {
			store.subs = []models.Subscriber{mona}
			source.feeds["mona"] = activity("mona")

			result := newService().RunCycle(context.Background())

			Expect(result.Status).To(Equal(models.CycleStatusSuccess))
			Expect(result.Subscribers).To(Equal(1))
			Expect(result.Sent).To(Equal(1))
			Expect(result.ID.String()).NotTo(BeEmpty())

			msgs := sender.messages()
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].recipient).To(Equal("mona@example.com"))
			Expect(msgs[0].subject).To(Equal("New GitHub Timeline Updates"))
			Expect(strings.Split(msgs[0].text, "\n")).To(HaveLen(2))
			Expect(msgs[0].text).To(HavePrefix("📦 mona pushed"))
		})

		It("skips subscribers with no activity in the window", func() {
			store.subs = []models.Subscriber{mona}
			source.feeds["mona"] = feed{streams: [][]json.RawMessage{{
				rawEvent("PushEvent", "mona", "mona/site", now.Add(-48*time.Hour)),
			}}}

			result := newService().RunCycle(context.Background())

			Expect(result.Status).To(Equal(models.CycleStatusSuccess))
			Expect(result.Skipped).To(Equal(1))
			Expect(result.Sent).To(Equal(0))
			Expect(sender.messages()).To(BeEmpty())
		})

		It("treats a rate limited subscriber as skipped and marks the cycle partial", func() {
			store.subs = []models.Subscriber{mona, hubot}
			limited := &github.HTTPError{Endpoint: "/users/mona/events", StatusCode: 403, Message: "API rate limit exceeded"}
			source.feeds["mona"] = feed{failures: []error{limited, limited}}
			source.feeds["hubot"] = activity("hubot")

			result := newService().RunCycle(context.Background())

			Expect(result.Status).To(Equal(models.CycleStatusPartial))
			Expect(result.FetchFailures).To(Equal(2))
			Expect(result.Skipped).To(Equal(1))
			Expect(result.Sent).To(Equal(1))
			Expect(sender.messages()[0].recipient).To(Equal("hubot@example.com"))
		})

		It("is partial, not error, when every fetch fails and nothing is sent", func() {
			store.subs = []models.Subscriber{mona}
			source.feeds["mona"] = feed{failures: []error{
				&github.HTTPError{Endpoint: "/users/mona/received_events", StatusCode: 403, Message: "API rate limit exceeded"},
			}}

			result := newService().RunCycle(context.Background())

			Expect(result.Status).To(Equal(models.CycleStatusPartial))
			Expect(result.Skipped).To(Equal(1))
			Expect(sender.messages()).To(BeEmpty())
		})

		It("fails the cycle when the subscriber store cannot be read", func() {
			store.err = errors.New("open registered_emails.txt: no such file or directory")

			result := newService().RunCycle(context.Background())

			Expect(result.Status).To(Equal(models.CycleStatusError))
			Expect(result.Message).To(ContainSubstring("no such file"))
			Expect(atomic.LoadInt64(&source.calls)).To(BeZero())
		})

		It("fails the cycle when every attempted send fails", func() {
			store.subs = []models.Subscriber{mona, hubot}
			source.feeds["mona"] = activity("mona")
			source.feeds["hubot"] = activity("hubot")
			sender.failTo = map[string]bool{"mona@example.com": true, "hubot@example.com": true}

			result := newService().RunCycle(context.Background())

			Expect(result.Status).To(Equal(models.CycleStatusError))
			Expect(result.SendFailures).To(Equal(2))
		})

		It("is partial when some sends fail", func() {
			store.subs = []models.Subscriber{mona, hubot}
			source.feeds["mona"] = activity("mona")
			source.feeds["hubot"] = activity("hubot")
			sender.failTo = map[string]bool{"mona@example.com": true}

			result := newService().RunCycle(context.Background())

			Expect(result.Status).To(Equal(models.CycleStatusPartial))
			Expect(result.Sent).To(Equal(1))
			Expect(result.SendFailures).To(Equal(1))
		})

		It("succeeds with no subscribers", func() {
			result := newService().RunCycle(context.Background())
			Expect(result.Status).To(Equal(models.CycleStatusSuccess))
			Expect(result.Subscribers).To(BeZero())
		})

		It("processes subscribers concurrently with a bounded pool", func() {
			workers = 4
			for i := 0; i < 20; i++ {
				name := fmt.Sprintf("user%d", i)
				store.subs = append(store.subs, models.Subscriber{Email: name + "@example.com", GitHubUsername: name})
				if i%2 == 0 {
					source.feeds[name] = activity(name)
				}
			}

			result := newService().RunCycle(context.Background())

			Expect(result.Sent).To(Equal(10))
			Expect(result.Skipped).To(Equal(10))
			Expect(result.Status).To(Equal(models.CycleStatusSuccess))
			Expect(atomic.LoadInt64(&source.calls)).To(Equal(int64(20)))
		})

		It("starts no subscriber once the context is cancelled", func() {
			store.subs = []models.Subscriber{mona, hubot}
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			result := newService().RunCycle(ctx)

			Expect(atomic.LoadInt64(&source.calls)).To(BeZero())
			Expect(result.Status).To(Equal(models.CycleStatusPartial))
			Expect(result.Message).To(ContainSubstring("cancelled after 0 of 2"))
		})

		It("records the result and remembers it", func() {
			store.subs = []models.Subscriber{mona}
			source.feeds["mona"] = activity("mona")
			svc := newService()

			_, ok := svc.Last()
			Expect(ok).To(BeFalse())

			result := svc.RunCycle(context.Background())

			last, ok := svc.Last()
			Expect(ok).To(BeTrue())
			Expect(last.ID).To(Equal(result.ID))
			Expect(recorder.results).To(HaveLen(1))
			Expect(recorder.results[0].ID).To(Equal(result.ID))
		})
	})

	Describe("concurrent cycles", func() {
		It("refuses to start a second cycle and waits for the first on shutdown", func() {
			store.subs = []models.Subscriber{mona}
			source.feeds["mona"] = activity("mona")
			source.block = make(chan struct{})
			svc := newService()

			done := make(chan models.CycleResult, 1)
			go func() { done <- svc.RunCycle(context.Background()) }()
			Eventually(func() int64 { return atomic.LoadInt64(&source.calls) }).Should(Equal(int64(1)))

			_, err := svc.TryRunCycle(context.Background())
			Expect(err).To(MatchError(pipeline.ErrCycleInProgress))
			Expect(svc.Shutdown(20 * time.Millisecond)).To(BeFalse())

			close(source.block)
			Eventually(done).Should(Receive())
			Expect(svc.Shutdown(time.Second)).To(BeTrue())
		})
	})

	Describe("Run", func() {
		It("runs a single cycle without an interval", func() {
			store.subs = []models.Subscriber{mona}
			source.feeds["mona"] = activity("mona")

			Expect(newService().Run(context.Background(), 0)).To(Succeed())
			Expect(sender.messages()).To(HaveLen(1))
		})

		It("repeats cycles until cancelled", func() {
			store.subs = []models.Subscriber{mona}
			source.feeds["mona"] = activity("mona")
			ctx, cancel := context.WithCancel(context.Background())
			svc := newService()

			errCh := make(chan error, 1)
			go func() { errCh <- svc.Run(ctx, 10*time.Millisecond) }()

			Eventually(func() int { return len(sender.messages()) }).Should(BeNumerically(">=", 2))
			cancel()
			Eventually(errCh).Should(Receive(BeNil()))

			recorder.mu.Lock()
			defer recorder.mu.Unlock()
			for _, r := range recorder.results {
				Expect(r.Status).To(Equal(models.CycleStatusSuccess))
			}
		})

		It("starts no cycle once the context is done", func() {
			store.subs = []models.Subscriber{mona}
			source.feeds["mona"] = activity("mona")
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			svc := newService()

			Expect(svc.Run(ctx, 10*time.Millisecond)).To(Succeed())
			Expect(atomic.LoadInt64(&source.calls)).To(BeZero())
			Expect(recorder.results).To(BeEmpty())
			_, ok := svc.Last()
			Expect(ok).To(BeFalse())
			Expect(svc.Shutdown(time.Second)).To(BeTrue())
		})
	})
})
