package scanning

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Recognizer owns a lazily-constructed engine and serializes access to it.
// At most one engine is alive per Recognizer, including a retired one that
// has not returned yet.
type Recognizer struct {
	mu        sync.Mutex
	newEngine EngineFactory
	engine    Engine
	draining  <-chan struct{} // closed once the retired engine is closed
	timeout   time.Duration
	logger    *slog.Logger
}

// NewRecognizer creates a Recognizer. The engine is built on first use.
func NewRecognizer(newEngine EngineFactory, timeout time.Duration, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{
		newEngine: newEngine,
		timeout:   timeout,
		logger:    logger,
	}
}

type recognizeOutcome struct {
	rec Recognition
	err error
}

// Recognize converts img to text. A construction failure leaves the
// Recognizer without an engine so the next call tries again. An engine that
// exceeds the timeout is retired and closed once it returns; no replacement
// is built until then.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) (Recognition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	engine, err := r.acquire(runCtx)
	if err != nil {
		return Recognition{}, err
	}

	done := make(chan recognizeOutcome, 1)
	go func() {
		rec, err := engine.Recognize(runCtx, img)
		done <- recognizeOutcome{rec: rec, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Recognition{}, fmt.Errorf("recognizing text: %w", out.err)
		}
		if strings.TrimSpace(out.rec.Text) == "" {
			return Recognition{}, NewError(KindTextExtraction, "no text recognized", nil)
		}
		out.rec.Confidence = min(max(out.rec.Confidence, 0), 100)
		return out.rec, nil
	case <-runCtx.Done():
		r.retire(engine, done)
		return Recognition{}, r.interrupted(runCtx)
	}
}

func (r *Recognizer) interrupted(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewError(KindTimeout, fmt.Sprintf("recognition exceeded %s", r.timeout), ctx.Err())
	}
	return NewError(KindCanceled, "recognition canceled", ctx.Err())
}

// acquire returns the live engine or builds one, first waiting for a retired
// engine to finish.
func (r *Recognizer) acquire(ctx context.Context) (Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}
	if r.draining != nil {
		select {
		case <-r.draining:
			r.draining = nil
		default:
			r.logger.Warn("Waiting for retired OCR engine to return")
			select {
			case <-r.draining:
				r.draining = nil
			case <-ctx.Done():
				return nil, r.interrupted(ctx)
			}
		}
	}

	engine, err := r.newEngine()
	if err != nil {
		return nil, NewError(KindInitialization, "creating OCR engine", err)
	}
	r.engine = engine
	r.logger.Debug("OCR engine initialized")
	return engine, nil
}

// retire drops the engine from the Recognizer and closes it after its
// in-flight call returns. Must be called with mu held.
func (r *Recognizer) retire(engine Engine, done <-chan recognizeOutcome) {
	r.engine = nil
	drained := make(chan struct{})
	r.draining = drained
	go func() {
		defer close(drained)
		<-done
		if err := engine.Close(); err != nil {
			r.logger.Warn("Failed to close retired OCR engine", "error", err)
		}
	}()
}

// Close releases the engine. It is safe to call more than once.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine == nil {
		return nil
	}
	err := r.engine.Close()
	r.engine = nil
	if err != nil {
		return fmt.Errorf("closing OCR engine: %w", err)
	}
	return nil
}
