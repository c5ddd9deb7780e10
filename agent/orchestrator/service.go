package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
	executorx "github.com/deuterium1925/smart-ass-back/agent/executor"
	registryx "github.com/deuterium1925/smart-ass-back/agent/registry"
	storex "github.com/deuterium1925/smart-ass-back/agent/store"
)

const defaultRequestTimeout = 60 * time.Second

type Config struct {
	// RequestTimeout bounds one entry-protocol call end to end, agent
	// batches included. Zero means the 60s default.
	RequestTimeout time.Duration
}

// Orchestrator is the dependency-aware execution core. It reads from the
// store, never owns persistent state of its own, and writes back only the
// automated-results slot through the store's conditional update.
type Orchestrator struct {
	store    storex.Store
	registry *registryx.Registry
	exec     *executorx.Executor
	queue    contractx.PendingQueue

	timeout time.Duration
	now     func() time.Time
}

func New(
	store storex.Store,
	registry *registryx.Registry,
	exec *executorx.Executor,
	queue contractx.PendingQueue,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if registry == nil {
		return nil, errors.New("agent registry is required")
	}
	if exec == nil {
		return nil, errors.New("executor is required")
	}
	if queue == nil {
		queue = noopQueue{}
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Orchestrator{
		store:    store,
		registry: registry,
		exec:     exec,
		queue:    queue,
		timeout:  timeout,
		now:      time.Now,
	}, nil
}

// AppendMessage stores a new user turn, leaves its automated results pending,
// and tracks the turn on the unanswered queue. Queue faults are logged, not
// surfaced; the stored turn is the source of truth.
func (o *Orchestrator) AppendMessage(ctx context.Context, phoneNumber, userText string) (*contractx.Turn, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	ts, err := o.store.AppendTurn(ctx, phoneNumber, userText)
	if err != nil {
		return nil, err
	}

	turn, err := o.store.GetTurn(ctx, phoneNumber, ts)
	if err != nil {
		return nil, err
	}

	if err := o.queue.Enqueue(ctx, turn.PhoneNumber, ts); err != nil {
		log.Warn().
			Err(err).
			Str("phone_number", turn.PhoneNumber).
			Int64("timestamp", ts).
			Msg("failed to enqueue pending turn")
	}

	log.Info().
		Str("phone_number", turn.PhoneNumber).
		Int64("timestamp", ts).
		Msg("appended user turn")
	return turn, nil
}

// runBatch dispatches one dependency batch concurrently and waits for the
// scatter/gather barrier. On context expiry the wait is abandoned: late
// results land in a slice nobody reads and are never written back.
func (o *Orchestrator) runBatch(ctx context.Context, names []contractx.AgentName, in contractx.ExecContext) ([]executorx.Result, error) {
	results := make([]executorx.Result, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name contractx.AgentName) {
			defer wg.Done()
			results[i] = o.exec.Run(ctx, name, in)
		}(i, name)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return results, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("agent batch abandoned: %w", ctx.Err())
	}
}

type noopQueue struct{}

func (noopQueue) Enqueue(context.Context, string, int64) error { return nil }

func (noopQueue) Dequeue(context.Context, string, int64) error { return nil }

func (noopQueue) List(context.Context) ([]contractx.PendingRef, error) {
	return nil, nil
}
