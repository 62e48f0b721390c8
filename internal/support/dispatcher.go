package support

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dispatcher runs post-commit side effects outside the request that caused them.
// Jobs sharing a key run one at a time, in the order they were dispatched.
type Dispatcher interface {
	// Dispatch schedules job and reports whether it was accepted.
	Dispatch(key, name string, job func(ctx context.Context)) bool
}

type task struct {
	name string
	run  func(ctx context.Context)
}

// AsyncDispatcher spreads jobs over a fixed set of lanes, each a bounded queue with a
// single worker. A key always maps to the same lane. Jobs that do not fit in their
// lane are dropped, and every job runs under its own timeout.
type AsyncDispatcher struct {
	lanes   []chan task
	timeout time.Duration
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncDispatcher starts workers lanes holding up to queueSize pending jobs each.
func NewAsyncDispatcher(queueSize, workers int, timeout time.Duration, log *zap.Logger) *AsyncDispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	d := &AsyncDispatcher{
		lanes:   make([]chan task, workers),
		timeout: timeout,
		log:     log,
	}
	d.wg.Add(workers)
	for i := range d.lanes {
		d.lanes[i] = make(chan task, queueSize)
		go d.run(d.lanes[i])
	}
	return d
}

func (d *AsyncDispatcher) Dispatch(key, name string, job func(ctx context.Context)) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn("Dispatcher closed, dropping job", zap.String("operation", name), zap.String("conversation_id", key))
		return false
	}
	select {
	case d.lanes[d.lane(key)] <- task{name: name, run: job}:
		return true
	default:
		d.log.Warn("Dispatch queue full, dropping job", zap.String("operation", name), zap.String("conversation_id", key))
		return false
	}
}

func (d *AsyncDispatcher) lane(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.lanes)))
}

func (d *AsyncDispatcher) run(lane <-chan task) {
	defer d.wg.Done()
	for t := range lane {
		d.execute(t)
	}
}

func (d *AsyncDispatcher) execute(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Dispatched job panicked", zap.String("operation", t.name), zap.Any("panic", r))
		}
	}()
	t.run(ctx)
}

// Close stops accepting jobs and waits for queued ones until ctx is done.
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, lane := range d.lanes {
			close(lane)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InlineDispatcher runs jobs synchronously. Used by the admin CLI and tests.
type InlineDispatcher struct {
	Timeout time.Duration
}

func (d InlineDispatcher) Dispatch(_, _ string, job func(ctx context.Context)) bool {
	ctx := context.Background()
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	job(ctx)
	return true
}
