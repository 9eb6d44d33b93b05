package retry

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zenGate-Global/palmyra-workspaces/platform/go/provider"
)

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	clock  *fakeClock
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	if r.clock != nil {
		r.clock.advance(d)
	}
	return ctx.Err()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestExecutor(p Policy, s *recordingSleeper, opts ...Option) *Executor {
	base := []Option{WithSleeper(s.sleep), WithRandom(func() float64 { return 0.5 })}
	return New(p, append(base, opts...)...)
}

func transientErr() error {
	return provider.FromStatus("dbhost", "create project", http.StatusServiceUnavailable, nil, "unavailable")
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	s := &recordingSleeper{}
	exec := newTestExecutor(DefaultPolicy(), s)

	calls := 0
	res := exec.Do(context.Background(), "create_database", func(context.Context) error {
		calls++
		return nil
	})

	require.Equal(t, KindOK, res.Kind)
	require.Equal(t, 1, res.Attempts)
	require.Equal(t, 1, calls)
	require.Empty(t, s.delays)
}

func TestDoTransientExhaustsBudget(t *testing.T) {
	t.Parallel()

	s := &recordingSleeper{}
	exec := newTestExecutor(Policy{MaxAttempts: 4, BaseDelay: 2 * time.Second, Factor: 2, MaxDelay: 5 * time.Second, UnknownMaxAttempts: 2}, s)

	var outcomes []Outcome
	exec.observers = append(exec.observers, func(_ context.Context, a Attempt) { outcomes = append(outcomes, a.Outcome) })

	calls := 0
	res := exec.Do(context.Background(), "create_database", func(context.Context) error {
		calls++
		return transientErr()
	})

	require.Equal(t, KindFailed, res.Kind)
	require.Equal(t, provider.Transient, res.Class)
	require.Equal(t, 4, calls)
	require.Equal(t, 4, res.Attempts)
	// jitter source fixed at 0.5 yields the undisturbed delay; cap applies from the third wait
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 5 * time.Second}, s.delays)
	require.Equal(t, []Outcome{OutcomeRetry, OutcomeRetry, OutcomeRetry, OutcomeExhausted}, outcomes)
}

func TestDoPermanentFailsAfterOneAttempt(t *testing.T) {
	t.Parallel()

	s := &recordingSleeper{}
	exec := newTestExecutor(Policy{MaxAttempts: 10}, s)

	calls := 0
	res := exec.Do(context.Background(), "apply_schema_migrations", func(context.Context) error {
		calls++
		return provider.FromStatus("dbhost", "run migration", http.StatusBadRequest, nil, "syntax error")
	})

	require.Equal(t, KindFailed, res.Kind)
	require.Equal(t, provider.Permanent, res.Class)
	require.Equal(t, 1, calls)
	require.Empty(t, s.delays)
}

func TestDoUnknownUsesSmallerCap(t *testing.T) {
	t.Parallel()

	s := &recordingSleeper{}
	exec := newTestExecutor(Policy{MaxAttempts: 6, UnknownMaxAttempts: 2}, s)

	calls := 0
	res := exec.Do(context.Background(), "trigger_deployment", func(context.Context) error {
		calls++
		return errors.New("unexpected payload")
	})

	require.Equal(t, KindFailed, res.Kind)
	require.Equal(t, provider.Unknown, res.Class)
	require.Equal(t, 2, calls)
}

func TestDoRecoversAfterTransientErrors(t *testing.T) {
	t.Parallel()

	s := &recordingSleeper{}
	exec := newTestExecutor(Policy{MaxAttempts: 5}, s)

	calls := 0
	res := exec.Do(context.Background(), "create_deployment", func(context.Context) error {
		calls++
		if calls < 3 {
			return transientErr()
		}
		return nil
	})

	require.True(t, res.OK())
	require.Equal(t, 3, res.Attempts)
}

func TestDoHonoursRetryAfter(t *testing.T) {
	t.Parallel()

	s := &recordingSleeper{}
	exec := newTestExecutor(Policy{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: time.Minute}, s)

	h := http.Header{}
	h.Set("Retry-After", "12")
	calls := 0
	exec.Do(context.Background(), "configure_deployment_env", func(context.Context) error {
		calls++
		if calls == 1 {
			return provider.FromStatus("deployhost", "set env", http.StatusTooManyRequests, h, "rate limited")
		}
		return nil
	})

	require.Equal(t, []time.Duration{12 * time.Second}, s.delays)
}

func TestDoJitterStaysInBounds(t *testing.T) {
	t.Parallel()

	for _, r := range []float64{0, 0.25, 0.999} {
		exec := New(Policy{Jitter: 0.2}, WithRandom(func() float64 { return r }))
		d := exec.jittered(10*time.Second, 0.2)
		require.GreaterOrEqual(t, d, 8*time.Second)
		require.Less(t, d, 12*time.Second)
	}
}

func TestDoCancelledBetweenAttempts(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := &recordingSleeper{}
	exec := newTestExecutor(Policy{MaxAttempts: 5}, s)

	calls := 0
	res := exec.Do(ctx, "create_database", func(context.Context) error {
		calls++
		cancel()
		return transientErr()
	})

	require.Equal(t, KindCancelled, res.Kind)
	require.Equal(t, 1, calls)
}

func TestDoDoesNotPreemptInFlightCall(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	exec := New(Policy{MaxAttempts: 1, AttemptTimeout: time.Second})

	var attemptErr error
	res := exec.Do(ctx, "create_database", func(actx context.Context) error {
		cancel()
		attemptErr = actx.Err()
		_, hasDeadline := actx.Deadline()
		require.True(t, hasDeadline)
		return nil
	})

	require.NoError(t, attemptErr)
	require.True(t, res.OK())
}

func TestPollReadyAfterPending(t *testing.T) {
	t.Parallel()

	s := &recordingSleeper{}
	exec := newTestExecutor(DefaultPolicy(), s)

	polls := 0
	res := exec.Poll(context.Background(), "await_database_healthy", PollPolicy{Interval: 5 * time.Second, MaxPolls: 10}, func(context.Context) (bool, error) {
		polls++
		if polls == 2 {
			return false, transientErr()
		}
		return polls >= 4, nil
	})

	require.True(t, res.OK())
	require.Equal(t, 4, res.Attempts)
	require.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}, s.delays)
}

func TestPollTimesOutAtMaxPolls(t *testing.T) {
	t.Parallel()

	s := &recordingSleeper{}
	exec := newTestExecutor(DefaultPolicy(), s)

	polls := 0
	res := exec.Poll(context.Background(), "await_database_healthy", PollPolicy{Interval: time.Millisecond, MaxPolls: 120}, func(context.Context) (bool, error) {
		polls++
		return false, nil
	})

	require.Equal(t, KindTimeout, res.Kind)
	require.Equal(t, 120, polls)
	require.True(t, IsTimeout(res.Err))
}

func TestPollTimesOutAtCeiling(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := &recordingSleeper{clock: clock}
	exec := newTestExecutor(DefaultPolicy(), s, WithClock(clock.Now))

	polls := 0
	res := exec.Poll(context.Background(), "await_deployment_live", PollPolicy{Interval: time.Minute, MaxPolls: 1000, Ceiling: 5 * time.Minute}, func(context.Context) (bool, error) {
		polls++
		return false, nil
	})

	require.Equal(t, KindTimeout, res.Kind)
	require.Equal(t, 5, polls)
}

func TestPollPermanentErrorFails(t *testing.T) {
	t.Parallel()

	s := &recordingSleeper{}
	exec := newTestExecutor(DefaultPolicy(), s)

	res := exec.Poll(context.Background(), "await_deployment_live", PollPolicy{Interval: time.Second}, func(context.Context) (bool, error) {
		return false, provider.NewPermanent("deployhost", "deployment status", errors.New("build failed"))
	})

	require.Equal(t, KindFailed, res.Kind)
	require.Equal(t, 1, res.Attempts)
}
