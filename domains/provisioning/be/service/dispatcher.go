package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-workspaces/platform/go/lock"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/metrics"
)

// Scheduler starts background runs. Enqueueing a request that is already being driven schedules
// another pass after the current one. Enqueue returns false only when the scheduler is shutting
// down.
type Scheduler interface {
	Enqueue(id uuid.UUID) bool
}

// DispatcherConfig tunes background execution.
type DispatcherConfig struct {
	// LeaseTTL bounds how long a crashed replica keeps a request locked.
	LeaseTTL time.Duration
	// AcquireRetry is the first wait before retrying a lease held elsewhere. Waits double up to
	// LeaseTTL.
	AcquireRetry time.Duration
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// Dispatcher runs one goroutine per active request and holds a lease on the request for the
// lifetime of the run, so no two workers drive the same request.
type Dispatcher struct {
	runner       *Runner
	locker       lock.Locker
	leaseTTL     time.Duration
	acquireRetry time.Duration
	metrics      *metrics.Metrics
	logger       *zap.Logger

	base   context.Context
	cancel context.CancelFunc

	mu sync.Mutex
	// active holds the requests driven by this process; true means another pass was requested.
	active map[uuid.UUID]bool
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher builds a Dispatcher. Runs use their own root context and stop only on Shutdown.
func NewDispatcher(runner *Runner, locker lock.Locker, cfg DispatcherConfig) *Dispatcher {
	if runner == nil {
		panic("runner is required")
	}
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = time.Minute
	}
	if cfg.AcquireRetry <= 0 {
		cfg.AcquireRetry = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		runner:       runner,
		locker:       locker,
		leaseTTL:     cfg.LeaseTTL,
		acquireRetry: cfg.AcquireRetry,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		base:         base,
		cancel:       cancel,
		active:       make(map[uuid.UUID]bool),
	}
}

// Enqueue starts driving id in the background. When id is already being driven, the running
// goroutine makes another pass once the current one has released its lease.
func (d *Dispatcher) Enqueue(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	if _, ok := d.active[id]; ok {
		d.active[id] = true
		return true
	}
	d.active[id] = false
	d.wg.Add(1)
	go d.drive(id)
	return true
}

// ResumeInFlight enqueues every request left in provisioning by a previous process.
func (d *Dispatcher) ResumeInFlight(ctx context.Context, repo Repository) (int, error) {
	ids, err := repo.ListIDsByStatus(ctx, StatusProvisioning)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if d.Enqueue(id) {
			n++
		}
	}
	if n > 0 {
		d.logger.Info("resumed in-flight provisioning requests", zap.Int("count", n))
	}
	return n, nil
}

// Active reports whether id is being driven by this process.
func (d *Dispatcher) Active(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.active[id]
	return ok
}

// Wait blocks until every run started so far has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown stops accepting work and cancels running pipelines between attempts. In-flight
// provider calls finish first. It returns ctx's error if runs outlive ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()

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

func (d *Dispatcher) drive(id uuid.UUID) {
	defer d.wg.Done()
	log := d.logger.With(zap.String("request_id", id.String()))
	for {
		d.pass(id, log)
		if !d.again(id) {
			return
		}
		log.Info("provisioning request was enqueued during the run, driving it again")
	}
}

// again reports whether another pass over id was requested. Otherwise it drops id from the
// active set in the same critical section, so a later Enqueue starts a fresh goroutine.
func (d *Dispatcher) again(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active[id] && !d.closed {
		d.active[id] = false
		return true
	}
	delete(d.active, id)
	return false
}

func (d *Dispatcher) pass(id uuid.UUID, log *zap.Logger) {
	lease, err := d.acquire(id, log)
	if err != nil {
		log.Info("provisioning run stopped before it held the lease; it resumes on restart")
		return
	}

	runCtx, cancel := context.WithCancel(d.base)
	renewDone := make(chan struct{})
	go func() {
		defer close(renewDone)
		d.keepAlive(runCtx, cancel, lease, log)
	}()

	if d.metrics != nil {
		d.metrics.ActiveRuns.Inc()
		defer d.metrics.ActiveRuns.Dec()
	}

	status, err := d.runner.Run(runCtx, id)
	cancel()
	<-renewDone

	releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer releaseCancel()
	if rerr := lease.Release(releaseCtx); rerr != nil && !errors.Is(rerr, lock.ErrNotHeld) {
		log.Warn("release provisioning lease failed", zap.Error(rerr))
	}

	switch {
	case err != nil && errors.Is(err, context.Canceled):
		log.Info("provisioning run stopped; it resumes on restart", zap.String("status", string(status)))
	case err != nil:
		log.Error("provisioning run aborted", zap.Error(err))
	case d.metrics != nil && status != StatusProvisioning && status != "":
		d.metrics.Finished(string(status))
	}
}

// acquire takes the request lease, waiting with exponential backoff while another worker holds
// it or the locker is unreachable. It fails only when the dispatcher shuts down.
func (d *Dispatcher) acquire(id uuid.UUID, log *zap.Logger) (lock.Lease, error) {
	key := "provisioning:" + id.String()
	wait := d.acquireRetry
	for attempt := 1; ; attempt++ {
		lease, ok, err := d.locker.TryAcquire(d.base, key, d.leaseTTL)
		switch {
		case d.base.Err() != nil:
			if ok {
				_ = lease.Release(context.Background())
			}
			return nil, d.base.Err()
		case err != nil:
			log.Warn("acquire provisioning lease failed", zap.Error(err), zap.Int("attempt", attempt))
		case ok:
			return lease, nil
		case attempt == 1:
			log.Info("provisioning request is driven by another worker, waiting for its lease")
		}

		t := time.NewTimer(wait)
		select {
		case <-d.base.Done():
			t.Stop()
			return nil, d.base.Err()
		case <-t.C:
		}
		wait = min(wait*2, d.leaseTTL)
	}
}

func (d *Dispatcher) keepAlive(ctx context.Context, cancel context.CancelFunc, lease lock.Lease, log *zap.Logger) {
	t := time.NewTicker(d.leaseTTL / 3)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := lease.Renew(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("provisioning lease lost; stopping run", zap.Error(err))
				cancel()
				return
			}
		}
	}
}
