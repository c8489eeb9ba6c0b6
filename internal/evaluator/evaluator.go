// Package evaluator drives the periodic SLA and recurrence checks across the
// entity population. Every computation it invokes is a pure function over one
// entity's snapshot; the evaluator's job is fan-out, the per-entity
// conditional write, and the exactly-once notification of newly raised
// events.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/cindralabs/riskcore/api/schemas"
	"github.com/cindralabs/riskcore/internal/lifecycle"
	"github.com/cindralabs/riskcore/internal/metrics"
	"github.com/cindralabs/riskcore/internal/schedule"
	"github.com/cindralabs/riskcore/internal/sla"
)

// Config tunes the evaluation loop.
type Config struct {
	// TickInterval is the period between evaluation sweeps.
	TickInterval time.Duration

	// Concurrency bounds the number of entities evaluated in parallel.
	Concurrency int

	// BatchSize caps how many due entities one tick loads.
	BatchSize int

	// NotifyRatePerSecond throttles outbound notifications. Zero disables
	// throttling.
	NotifyRatePerSecond float64
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Minute
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	return c
}

// TickStats summarizes one evaluation sweep.
type TickStats struct {
	Evaluated int
	Breached  int
	Warned    int
	Expired   int
	Conflicts int
	Errors    int
}

// Evaluator owns the periodic evaluation loop.
type Evaluator struct {
	cfg       Config
	log       *zap.Logger
	store     schemas.EntityStore
	notifier  schemas.Notifier
	scheduler *schedule.Scheduler
	policy    schemas.SlaPolicy
	metrics   *metrics.Metrics
	limiter   *rate.Limiter
	now       func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// New creates an evaluator. All dependencies are required except metrics,
// which defaults to an isolated instance.
func New(
	cfg Config,
	logger *zap.Logger,
	store schemas.EntityStore,
	notifier schemas.Notifier,
	scheduler *schedule.Scheduler,
	policy schemas.SlaPolicy,
	m *metrics.Metrics,
	opts ...Option,
) (*Evaluator, error) {
	if logger == nil || store == nil || notifier == nil || scheduler == nil {
		return nil, errors.New("cannot initialize evaluator with nil dependencies")
	}
	cfg = cfg.withDefaults()
	if m == nil {
		m = metrics.New("riskcore")
	}

	e := &Evaluator{
		cfg:       cfg,
		log:       logger.Named("evaluator"),
		store:     store,
		notifier:  notifier,
		scheduler: scheduler,
		policy:    policy,
		metrics:   m,
		now:       time.Now,
	}
	if cfg.NotifyRatePerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.NotifyRatePerSecond), 1)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes evaluation sweeps on the configured interval until the context
// is cancelled. A tick that overruns its period is logged and the loop simply
// picks up again on the next tick.
func (e *Evaluator) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.log.Info("Evaluator started",
		zap.Duration("tick_interval", e.cfg.TickInterval),
		zap.Int("concurrency", e.cfg.Concurrency),
	)

	for {
		select {
		case <-ctx.Done():
			e.log.Info("Evaluator stopped")
			return nil
		case <-ticker.C:
			started := e.now()
			stats, err := e.Tick(ctx, started)
			if err != nil && !errors.Is(err, context.Canceled) {
				e.log.Error("Evaluation tick failed", zap.Error(err))
				continue
			}
			elapsed := time.Since(started)
			if elapsed > e.cfg.TickInterval {
				e.log.Warn("Evaluation tick overran its period", zap.Duration("elapsed", elapsed))
			}
			e.log.Debug("Evaluation tick complete",
				zap.Int("evaluated", stats.Evaluated),
				zap.Int("breached", stats.Breached),
				zap.Int("warned", stats.Warned),
				zap.Int("conflicts", stats.Conflicts),
			)
		}
	}
}

// Tick runs one evaluation sweep at the given instant. Entities are
// independent, so the sweep fans out across a bounded worker pool with no
// ordering guarantee between them. A lost write race is not an error: the
// losing evaluation is simply retried on the next tick.
func (e *Evaluator) Tick(ctx context.Context, now time.Time) (TickStats, error) {
	defer func(started time.Time) {
		e.metrics.TickDuration.Observe(time.Since(started).Seconds())
		e.metrics.TicksTotal.Inc()
	}(time.Now())

	// Look ahead by the warning threshold so entities approaching their due
	// date surface in time for the warning to fire.
	horizon := now
	if e.policy.WarningThresholdHours > 0 {
		horizon = now.Add(time.Duration(e.policy.WarningThresholdHours) * time.Hour)
	}

	due, err := e.store.ListDue(ctx, horizon, e.cfg.BatchSize)
	if err != nil {
		return TickStats{}, fmt.Errorf("failed to list due entities: %w", err)
	}

	results := make([]TickStats, len(due))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for i, entity := range due {
		i, entity := i, entity
		g.Go(func() error {
			results[i] = e.evaluateOne(gctx, entity, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TickStats{}, err
	}

	var total TickStats
	for _, r := range results {
		total.Evaluated += r.Evaluated
		total.Breached += r.Breached
		total.Warned += r.Warned
		total.Expired += r.Expired
		total.Conflicts += r.Conflicts
		total.Errors += r.Errors
	}
	return total, nil
}

// evaluateOne recomputes the SLA and schedule state of a single entity and
// writes the result back conditioned on the version it read.
func (e *Evaluator) evaluateOne(ctx context.Context, entity *schemas.Entity, now time.Time) TickStats {
	stats := TickStats{Evaluated: 1}
	e.metrics.EntitiesTotal.Inc()

	machine := lifecycle.NewMachine(lifecycle.TableFor(entity.Class))
	terminal := machine.IsTerminal(entity.Lifecycle)

	changed := false
	var events []pendingEvent

	if entity.Sla != nil {
		eval := sla.Evaluate(*entity.Sla, now, terminal, e.policy)
		if eval.Breached || eval.Warn {
			state := eval.State
			entity.Sla = &state
			changed = true
		}
		// A terminal entity raises no flags, but if it was listed for a
		// passed due date its persisted trigger column is stale. Writing the
		// snapshot back clears the trigger so the entity stops occupying
		// batch space on every subsequent sweep.
		if terminal && !entity.Sla.Breached && now.After(entity.Sla.DueDate) {
			changed = true
		}
		if eval.Breached {
			stats.Breached++
			e.metrics.BreachesTotal.Inc()
			events = append(events, pendingEvent{schemas.EventSlaBreached, map[string]any{
				"due_date": entity.Sla.DueDate,
				"severity": entity.Severity,
			}})
		}
		if eval.Warn {
			stats.Warned++
			e.metrics.WarningsTotal.Inc()
			events = append(events, pendingEvent{schemas.EventSlaWarning, map[string]any{
				"due_date":        entity.Sla.DueDate,
				"remaining_hours": entity.Sla.RemainingHours(now),
			}})
		}
	}

	if entity.Schedule != nil && entity.ScheduleState != nil &&
		entity.ScheduleState.NextRun != nil && !entity.ScheduleState.NextRun.After(now) {
		ranAt := *entity.ScheduleState.NextRun
		next, err := e.scheduler.Advance(*entity.Schedule, *entity.ScheduleState, now)
		if err != nil {
			stats.Errors++
			e.metrics.EvaluationErrors.Inc()
			e.log.Error("Failed to advance schedule", zap.String("entity_id", entity.ID), zap.Error(err))
		} else {
			next.LastRun = &ranAt
			if next.Status == schemas.ScheduleExpired && entity.ScheduleState.Status != schemas.ScheduleExpired {
				stats.Expired++
				e.metrics.ExpiriesTotal.Inc()
				events = append(events, pendingEvent{schemas.EventScheduleExpired, map[string]any{
					"end_date": entity.Schedule.EndDate,
				}})
			}
			entity.ScheduleState = &next
			changed = true
		}
	}

	if !changed {
		return stats
	}

	if err := e.store.Save(ctx, entity, entity.Version); err != nil {
		var conflict *schemas.VersionConflictError
		if errors.As(err, &conflict) {
			// Another writer won this tick; ours retries on the next one.
			stats.Conflicts++
			e.metrics.ConflictsTotal.Inc()
			e.log.Debug("Lost evaluation write race", zap.String("entity_id", entity.ID))
			return stats
		}
		stats.Errors++
		e.metrics.EvaluationErrors.Inc()
		e.log.Error("Failed to save evaluated entity", zap.String("entity_id", entity.ID), zap.Error(err))
		return stats
	}

	// Notify only after the conditional write won, so losers never emit
	// duplicate events.
	for _, ev := range events {
		e.notify(ctx, entity.ID, ev.event, ev.payload)
	}
	return stats
}

// ApplyTransition performs a lifecycle transition as a per-entity conditional
// update: load, validate against the table, save guarded by the version read.
// Entering a terminal state emits a notification.
func (e *Evaluator) ApplyTransition(ctx context.Context, id string, target schemas.State, actor, reason string) (*schemas.Entity, error) {
	return e.mutateLifecycle(ctx, id, func(m *lifecycle.Machine, lc schemas.LifecycleEntity) (schemas.LifecycleEntity, error) {
		return m.Transition(lc, target, actor, reason)
	})
}

// Reopen takes the explicit reopen edge out of a terminal state.
func (e *Evaluator) Reopen(ctx context.Context, id string, actor, reason string) (*schemas.Entity, error) {
	return e.mutateLifecycle(ctx, id, func(m *lifecycle.Machine, lc schemas.LifecycleEntity) (schemas.LifecycleEntity, error) {
		return m.Reopen(lc, actor, reason)
	})
}

// ApplyExtension grants an SLA extension of the given number of hours as a
// conditional update. A due date pushed back into the future clears the breach
// flag and re-arms the warning, so the next sweep treats the entity as on
// track again.
func (e *Evaluator) ApplyExtension(ctx context.Context, id string, hours int, reason string) (*schemas.Entity, error) {
	entity, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity.Sla == nil {
		return nil, &schemas.ValidationError{Field: "sla", Reason: "entity has no SLA tracking"}
	}

	extended, err := sla.Extend(*entity.Sla, hours, reason, e.now())
	if err != nil {
		return nil, err
	}
	entity.Sla = &extended

	if err := e.store.Save(ctx, entity, entity.Version); err != nil {
		return nil, err
	}
	e.log.Info("SLA extension applied",
		zap.String("entity_id", id),
		zap.Int("hours", hours),
		zap.Time("due_date", extended.DueDate),
	)
	return entity, nil
}

func (e *Evaluator) mutateLifecycle(
	ctx context.Context,
	id string,
	mutate func(*lifecycle.Machine, schemas.LifecycleEntity) (schemas.LifecycleEntity, error),
) (*schemas.Entity, error) {
	entity, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	machine := lifecycle.NewMachine(lifecycle.TableFor(entity.Class))
	next, err := mutate(machine, entity.Lifecycle)
	if err != nil {
		return nil, err
	}
	entity.Lifecycle = next

	if err := e.store.Save(ctx, entity, entity.Version); err != nil {
		return nil, err
	}

	if machine.IsTerminal(entity.Lifecycle) {
		e.notify(ctx, entity.ID, schemas.EventTerminalState, map[string]any{
			"state": entity.Lifecycle.CurrentState,
		})
	}
	return entity, nil
}

type pendingEvent struct {
	event   schemas.EventType
	payload map[string]any
}

// notify delivers one event, best effort. Delivery failures are logged and
// never fail the evaluation that raised them.
func (e *Evaluator) notify(ctx context.Context, entityID string, event schemas.EventType, payload map[string]any) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return
		}
	}
	if err := e.notifier.Notify(ctx, entityID, event, payload); err != nil {
		e.log.Warn("Notification delivery failed",
			zap.String("entity_id", entityID),
			zap.String("event", string(event)),
			zap.Error(err),
		)
	}
}
