// Package retry runs provisioning steps with bounded retries, exponential backoff with jitter,
// per-attempt timeouts and polling ceilings. Callers only ever see a structured Result.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-workspaces/platform/go/provider"
)

// Kind is the terminal outcome of a step.
type Kind string

const (
	KindOK        Kind = "ok"
	KindFailed    Kind = "failed"
	KindTimeout   Kind = "timeout"
	KindCancelled Kind = "cancelled"
)

// Outcome describes a single attempt.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeRetry     Outcome = "retry"
	OutcomePending   Outcome = "pending"
	OutcomePermanent Outcome = "permanent"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeTimeout   Outcome = "timeout"
)

// Policy bounds the attempts of a mutating step.
type Policy struct {
	MaxAttempts        int
	BaseDelay          time.Duration
	Factor             float64
	MaxDelay           time.Duration
	Jitter             float64
	AttemptTimeout     time.Duration
	UnknownMaxAttempts int
}

// DefaultPolicy returns base 2s, factor 2, cap 60s, 20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:        5,
		BaseDelay:          2 * time.Second,
		Factor:             2,
		MaxDelay:           60 * time.Second,
		Jitter:             0.2,
		AttemptTimeout:     30 * time.Second,
		UnknownMaxAttempts: 3,
	}
}

// PollPolicy bounds a readiness poll.
type PollPolicy struct {
	Interval       time.Duration
	Factor         float64
	MaxInterval    time.Duration
	MaxPolls       int
	Ceiling        time.Duration
	AttemptTimeout time.Duration
}

// DefaultPollPolicy polls every 5s, at most 120 times or 10 minutes.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Interval:       5 * time.Second,
		Factor:         1,
		MaxInterval:    30 * time.Second,
		MaxPolls:       120,
		Ceiling:        10 * time.Minute,
		AttemptTimeout: 15 * time.Second,
	}
}

// Attempt is emitted to observers after every call.
type Attempt struct {
	Step      string
	Number    int
	Outcome   Outcome
	Class     provider.Class
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Result is the structured outcome of Do and Poll.
type Result struct {
	Kind     Kind
	Attempts int
	Class    provider.Class
	Err      error
}

// OK reports whether the step succeeded.
func (r Result) OK() bool { return r.Kind == KindOK }

// Observer receives every attempt. Observers must not block for long.
type Observer func(ctx context.Context, a Attempt)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Executor runs step functions under a Policy.
type Executor struct {
	policy    Policy
	observers []Observer
	sleep     Sleeper
	random    func() float64
	now       func() time.Time
	tracer    trace.Tracer
	logger    *zap.Logger
}

// Option customises an Executor.
type Option func(*Executor)

// WithObserver registers an attempt observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithSleeper replaces the backoff sleep, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) { e.sleep = s }
}

// WithRandom replaces the jitter source. It must return values in [0,1).
func WithRandom(r func() float64) Option {
	return func(e *Executor) { e.random = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithLogger sets the logger used for attempt diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer sets the tracer used for step spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// New builds an Executor. Zero-valued policy fields fall back to DefaultPolicy.
func New(policy Policy, opts ...Option) *Executor {
	e := &Executor{
		policy: policy.withDefaults(),
		sleep:  sleepContext,
		random: rand.Float64,
		now:    time.Now,
		tracer: otel.Tracer("github.com/zenGate-Global/palmyra-workspaces/platform/go/retry"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the effective policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do runs fn until it succeeds, fails permanently or exhausts the budget.
//
// Each attempt runs on a context detached from ctx's cancellation and bounded by
// AttemptTimeout, so an in-flight provider call is allowed to finish. ctx is only
// consulted between attempts and while sleeping.
func (e *Executor) Do(ctx context.Context, step string, fn func(ctx context.Context) error) Result {
	ctx, span := e.tracer.Start(ctx, "step "+step, trace.WithAttributes(attribute.String("provisioning.step", step)))
	defer span.End()

	p := e.policy
	delay := p.BaseDelay
	var res Result

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			res = Result{Kind: KindCancelled, Attempts: attempt - 1, Err: err}
			break
		}

		started := e.now()
		err := e.call(ctx, p.AttemptTimeout, fn)
		a := Attempt{Step: step, Number: attempt, StartedAt: started, Duration: e.now().Sub(started)}

		if err == nil {
			a.Outcome = OutcomeOK
			e.emit(ctx, a)
			res = Result{Kind: KindOK, Attempts: attempt}
			break
		}

		class := provider.Classify(err)
		a.Class, a.Err = class, err

		if class == provider.Permanent {
			a.Outcome = OutcomePermanent
			e.emit(ctx, a)
			res = Result{Kind: KindFailed, Attempts: attempt, Class: class, Err: err}
			break
		}

		if attempt >= p.limitFor(class) {
			a.Outcome = OutcomeExhausted
			e.emit(ctx, a)
			res = Result{Kind: KindFailed, Attempts: attempt, Class: class, Err: err}
			break
		}

		a.Outcome = OutcomeRetry
		e.emit(ctx, a)

		wait := e.jittered(delay, p.Jitter)
		if ra := provider.RetryAfterOf(err); ra > wait {
			wait = ra
		}
		if p.MaxDelay > 0 && wait > p.MaxDelay {
			wait = p.MaxDelay
		}
		if serr := e.sleep(ctx, wait); serr != nil {
			res = Result{Kind: KindCancelled, Attempts: attempt, Class: class, Err: serr}
			break
		}
		delay = next(delay, p.Factor, p.MaxDelay)
	}

	e.finishSpan(span, res)
	return res
}

// Poll calls check until it reports ready.
//
// Transient and unknown errors count as a poll and keep polling. A permanent error fails the
// step. Exceeding MaxPolls or Ceiling yields KindTimeout.
func (e *Executor) Poll(ctx context.Context, step string, pp PollPolicy, check func(ctx context.Context) (bool, error)) Result {
	ctx, span := e.tracer.Start(ctx, "poll "+step, trace.WithAttributes(attribute.String("provisioning.step", step)))
	defer span.End()

	pp = pp.withDefaults()
	start := e.now()
	interval := pp.Interval
	var res Result

	for poll := 1; ; poll++ {
		if err := ctx.Err(); err != nil {
			res = Result{Kind: KindCancelled, Attempts: poll - 1, Err: err}
			break
		}

		started := e.now()
		var ready bool
		err := e.call(ctx, pp.AttemptTimeout, func(actx context.Context) error {
			var cerr error
			ready, cerr = check(actx)
			return cerr
		})
		a := Attempt{Step: step, Number: poll, StartedAt: started, Duration: e.now().Sub(started)}

		if err == nil && ready {
			a.Outcome = OutcomeOK
			e.emit(ctx, a)
			res = Result{Kind: KindOK, Attempts: poll}
			break
		}

		var class provider.Class
		if err != nil {
			class = provider.Classify(err)
			a.Class, a.Err = class, err
			if class == provider.Permanent {
				a.Outcome = OutcomePermanent
				e.emit(ctx, a)
				res = Result{Kind: KindFailed, Attempts: poll, Class: class, Err: err}
				break
			}
		}

		if poll >= pp.MaxPolls || e.now().Sub(start)+interval >= pp.Ceiling {
			a.Outcome = OutcomeTimeout
			e.emit(ctx, a)
			res = Result{Kind: KindTimeout, Attempts: poll, Class: class, Err: &TimeoutError{Step: step, Polls: poll, Elapsed: e.now().Sub(start), LastErr: err}}
			break
		}

		a.Outcome = OutcomePending
		e.emit(ctx, a)

		if serr := e.sleep(ctx, interval); serr != nil {
			res = Result{Kind: KindCancelled, Attempts: poll, Err: serr}
			break
		}
		interval = next(interval, pp.Factor, pp.MaxInterval)
	}

	e.finishSpan(span, res)
	return res
}

// TimeoutError is returned in Result.Err when a poll ceiling is exceeded.
type TimeoutError struct {
	Step    string
	Polls   int
	Elapsed time.Duration
	LastErr error
}

func (t *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s: not ready after %d polls (%s)", t.Step, t.Polls, t.Elapsed.Round(time.Second))
	if t.LastErr != nil {
		msg += ": last error: " + t.LastErr.Error()
	}
	return msg
}

func (t *TimeoutError) Unwrap() error { return t.LastErr }

// IsTimeout reports whether err came from an exceeded poll ceiling.
func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}

func (e *Executor) call(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	actx := context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(actx, timeout)
		defer cancel()
	}
	return fn(actx)
}

func (e *Executor) emit(ctx context.Context, a Attempt) {
	fields := []zap.Field{
		zap.String("step", a.Step),
		zap.Int("attempt", a.Number),
		zap.String("outcome", string(a.Outcome)),
		zap.Duration("duration", a.Duration),
	}
	if a.Err != nil {
		fields = append(fields, zap.String("error_class", string(a.Class)), zap.Error(a.Err))
	}
	e.logger.Debug("step attempt", fields...)

	trace.SpanFromContext(ctx).AddEvent("attempt", trace.WithAttributes(
		attribute.Int("attempt", a.Number),
		attribute.String("outcome", string(a.Outcome)),
	))

	for _, o := range e.observers {
		o(ctx, a)
	}
}

func (e *Executor) finishSpan(span trace.Span, res Result) {
	span.SetAttributes(
		attribute.String("provisioning.result", string(res.Kind)),
		attribute.Int("provisioning.attempts", res.Attempts),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
	}
	if res.Kind != KindOK {
		span.SetStatus(codes.Error, string(res.Kind))
	}
}

func (e *Executor) jittered(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || d <= 0 {
		return d
	}
	// uniform in [d*(1-j), d*(1+j))
	f := 1 + jitter*(2*e.random()-1)
	return time.Duration(float64(d) * f)
}

func (p Policy) limitFor(class provider.Class) int {
	if class == provider.Unknown && p.UnknownMaxAttempts > 0 && p.UnknownMaxAttempts < p.MaxAttempts {
		return p.UnknownMaxAttempts
	}
	return p.MaxAttempts
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Factor < 1 {
		p.Factor = d.Factor
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = d.Jitter
	}
	if p.UnknownMaxAttempts <= 0 {
		p.UnknownMaxAttempts = d.UnknownMaxAttempts
	}
	return p
}

func (pp PollPolicy) withDefaults() PollPolicy {
	d := DefaultPollPolicy()
	if pp.Interval < 0 {
		pp.Interval = 0
	}
	if pp.Factor < 1 {
		pp.Factor = 1
	}
	if pp.MaxInterval <= 0 {
		pp.MaxInterval = d.MaxInterval
	}
	if pp.MaxPolls <= 0 {
		pp.MaxPolls = d.MaxPolls
	}
	if pp.Ceiling <= 0 {
		pp.Ceiling = d.Ceiling
	}
	return pp
}

func next(d time.Duration, factor float64, maxDelay time.Duration) time.Duration {
	n := time.Duration(float64(d) * factor)
	if maxDelay > 0 && n > maxDelay {
		return maxDelay
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
