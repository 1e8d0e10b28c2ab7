package scanning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("retrier", func() {
	var (
		sleeper  *sleepRecorder
		r        retrier
		ctx      context.Context
		failures []error
		calls    int
		attempts int
		aerr     *AnalysisError
	)

	BeforeEach(func() {
		sleeper = &sleepRecorder{}
		r = retrier{
			maxAttempts: 3,
			backoff:     time.Second,
			sleep:       sleeper.Sleep,
			logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		}
		ctx = context.Background()
		failures = nil
		calls = 0
	})

	JustBeforeEach(func() {
		attempts, aerr = r.run(ctx, func(ctx context.Context, attempt int) error {
			calls++
			Expect(attempt).To(Equal(calls))
			if calls <= len(failures) {
				return failures[calls-1]
			}
			return nil
		})
	})

	When("the first attempt succeeds", func() {
		It("runs once without sleeping", func() {
			Expect(aerr).To(BeNil())
			Expect(attempts).To(Equal(1))
			Expect(sleeper.delays).To(BeEmpty())
		})
	})

	When("initialization fails once", func() {
		BeforeEach(func() {
			failures = []error{NewError(KindInitialization, "init", nil)}
		})

		It("retries after one backoff unit", func() {
			Expect(aerr).To(BeNil())
			Expect(attempts).To(Equal(2))
			Expect(sleeper.delays).To(Equal([]time.Duration{time.Second}))
		})
	})

	When("a network failure persists", func() {
		BeforeEach(func() {
			err := errors.New("connection reset by peer")
			failures = []error{err, err, err, err}
		})

		It("stops after three attempts with linear backoff", func() {
			Expect(attempts).To(Equal(3))
			Expect(aerr.Kind).To(Equal(KindNetwork))
			Expect(sleeper.delays).To(Equal([]time.Duration{time.Second, 2 * time.Second}))
		})
	})

	When("the failure is not retryable", func() {
		BeforeEach(func() {
			failures = []error{NewError(KindParsing, "nothing found", nil)}
		})

		It("gives up immediately", func() {
			Expect(attempts).To(Equal(1))
			Expect(aerr.Kind).To(Equal(KindParsing))
			Expect(sleeper.delays).To(BeEmpty())
		})
	})

	When("the context is canceled during backoff", func() {
		BeforeEach(func() {
			c, cancel := context.WithCancel(context.Background())
			cancel()
			ctx = c
			failures = []error{NewError(KindInitialization, "init", nil), NewError(KindInitialization, "init", nil)}
		})

		It("stops with a canceled error", func() {
			Expect(attempts).To(Equal(1))
			Expect(aerr.Kind).To(Equal(KindCanceled))
		})
	})
})
