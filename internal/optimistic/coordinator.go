package optimistic

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jw6ventures/volunteerportal/internal/cache"
	"github.com/jw6ventures/volunteerportal/internal/metrics"
)

// ErrMutationInFlight rejects a submission while another mutation on the same
// coordinator is still waiting for the server.
var ErrMutationInFlight = errors.New("optimistic: another mutation is in flight")

// Transport sends a mutation to the server and returns the confirmed entity.
type Transport[T Entity] interface {
	Submit(ctx context.Context, m Mutation[T]) (T, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc[T Entity] func(ctx context.Context, m Mutation[T]) (T, error)

func (f TransportFunc[T]) Submit(ctx context.Context, m Mutation[T]) (T, error) {
	return f(ctx, m)
}

// ErrorReporter receives transport failures exactly as the transport
// returned them.
type ErrorReporter interface {
	Report(ctx context.Context, err error)
}

// ErrorReporterFunc adapts a function to ErrorReporter.
type ErrorReporterFunc func(ctx context.Context, err error)

func (f ErrorReporterFunc) Report(ctx context.Context, err error) { f(ctx, err) }

// View locates the collection inside a cached query result. D is the query's
// data shape and T the entity type listed in it.
type View[D any, T Entity] struct {
	Items     func(D) []T
	WithItems func(D, []T) D
}

// ListView is the View for queries whose data is the collection itself.
func ListView[T Entity]() View[[]T, T] {
	return View[[]T, T]{
		Items:     func(d []T) []T { return d },
		WithItems: func(_ []T, items []T) []T { return items },
	}
}

// Config wires a Coordinator.
type Config[D any, T Entity] struct {
	Cache     cache.Cache
	Key       cache.Key
	View      View[D, T]
	Transport Transport[T]
	Reporter  ErrorReporter
	Logger    *slog.Logger

	// OnTransition, when set, is called after every state change of a
	// submitted mutation.
	OnTransition func(id string, from, to State)
}

// Coordinator keeps one cached query consistent with writes submitted
// against it.
type Coordinator[D any, T Entity] struct {
	cache     cache.Cache
	key       cache.Key
	view      View[D, T]
	transport Transport[T]
	reporter  ErrorReporter
	logger    *slog.Logger
	onTrans   func(id string, from, to State)

	mu       sync.Mutex
	inflight *Pending[T]
}

// New returns a coordinator for cfg.Key.
func New[D any, T Entity](cfg Config[D, T]) *Coordinator[D, T] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("query", cfg.Key.Identity())
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = ErrorReporterFunc(func(ctx context.Context, err error) {
			logger.ErrorContext(ctx, "mutation failed", "err", err)
		})
	}
	return &Coordinator[D, T]{
		cache:     cfg.Cache,
		key:       cfg.Key,
		view:      cfg.View,
		transport: cfg.Transport,
		reporter:  reporter,
		logger:    logger,
		onTrans:   cfg.OnTransition,
	}
}

// InFlight reports whether a mutation is waiting for the server.
func (c *Coordinator[D, T]) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}

// Submit patches the cache, sends m, then reconciles with the confirmed
// entity or restores the pre-patch snapshot. A transport error is reported
// and returned unchanged.
func (c *Coordinator[D, T]) Submit(ctx context.Context, m Mutation[T]) (T, error) {
	var zero T
	p, err := c.begin(m)
	if err != nil {
		return zero, err
	}
	defer c.end()

	snapshot, ok := c.patch(ctx, p)
	if err := c.advance(ctx, p, StateOptimistic); err != nil {
		if ok {
			c.restore(ctx, p, snapshot)
		}
		return zero, err
	}

	confirmed, err := c.transport.Submit(ctx, m)
	if err != nil {
		if ok {
			c.restore(ctx, p, snapshot)
		}
		c.finish(ctx, p, StateRolledBack)
		c.reporter.Report(ctx, err)
		return zero, err
	}

	c.confirm(ctx, p, snapshot, ok, confirmed)
	c.finish(ctx, p, StateConfirmed)
	return confirmed, nil
}

// advance moves p to next, logging the change or the rejected transition.
func (c *Coordinator[D, T]) advance(ctx context.Context, p *Pending[T], next State) error {
	from := p.State
	if err := p.Transition(next); err != nil {
		c.logger.ErrorContext(ctx, "mutation state change rejected", "mutation", p.ID, "err", err)
		return err
	}
	c.logger.DebugContext(ctx, "mutation state", "mutation", p.ID, "from", from.String(), "to", next.String())
	if c.onTrans != nil {
		c.onTrans(p.ID, from, next)
	}
	return nil
}

// finish moves p to a terminal state and records the outcome under the state
// the mutation actually ended in.
func (c *Coordinator[D, T]) finish(ctx context.Context, p *Pending[T], next State) {
	_ = c.advance(ctx, p, next)
	metrics.ObserveMutation(c.key.Name, p.Mutation.Kind.String(), p.State.String(), p.StartedAt)
}

func (c *Coordinator[D, T]) begin(m Mutation[T]) (*Pending[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight != nil {
		return nil, ErrMutationInFlight
	}
	c.inflight = NewPending(m)
	return c.inflight, nil
}

func (c *Coordinator[D, T]) end() {
	c.mu.Lock()
	c.inflight = nil
	c.mu.Unlock()
}

// patch writes the optimistic collection. It returns the pre-patch snapshot
// and whether one was read; a failed read only skips the patch.
func (c *Coordinator[D, T]) patch(ctx context.Context, p *Pending[T]) (D, bool) {
	var snapshot D
	if err := c.cache.ReadQuery(ctx, c.key, &snapshot); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.WarnContext(ctx, "cache read failed, skipping optimistic patch", "mutation", p.ID, "err", err)
		} else {
			c.logger.DebugContext(ctx, "query not cached, skipping optimistic patch", "mutation", p.ID)
		}
		return snapshot, false
	}

	patched := Apply(c.view.Items(snapshot), p.Mutation)
	if err := c.cache.WriteQuery(ctx, c.key, c.view.WithItems(snapshot, patched)); err != nil {
		c.logger.WarnContext(ctx, "optimistic write failed", "mutation", p.ID, "err", err)
		return snapshot, true
	}
	p.patched = true
	c.logger.DebugContext(ctx, "optimistic patch applied",
		"mutation", p.ID, "kind", p.Mutation.Kind.String(), "target", p.Mutation.TargetID())
	return snapshot, true
}

func (c *Coordinator[D, T]) restore(ctx context.Context, p *Pending[T], snapshot D) {
	if !p.patched {
		return
	}
	if err := c.cache.WriteQuery(ctx, c.key, snapshot); err != nil {
		c.logger.ErrorContext(ctx, "rollback write failed", "mutation", p.ID, "err", err)
		return
	}
	c.logger.DebugContext(ctx, "optimistic patch rolled back", "mutation", p.ID)
}

// confirm reconciles against whatever the cache holds now, so a refetch that
// landed while the mutation was in flight is kept.
func (c *Coordinator[D, T]) confirm(ctx context.Context, p *Pending[T], snapshot D, haveSnapshot bool, confirmed T) {
	var current D
	if err := c.cache.ReadQuery(ctx, c.key, &current); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.WarnContext(ctx, "cache read failed during reconcile", "mutation", p.ID, "err", err)
		}
		return
	}

	var before []T
	if haveSnapshot {
		before = c.view.Items(snapshot)
	}
	final := Reconcile(before, c.view.Items(current), p.Mutation, Outcome[T]{Entity: confirmed})
	if err := c.cache.WriteQuery(ctx, c.key, c.view.WithItems(current, final)); err != nil {
		c.logger.ErrorContext(ctx, "reconcile write failed", "mutation", p.ID, "err", err)
		return
	}
	c.logger.DebugContext(ctx, "mutation confirmed", "mutation", p.ID, "id", confirmed.EntityID())
}
