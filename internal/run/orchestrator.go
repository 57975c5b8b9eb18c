// Package run contains the orchestrator that drives one scheduled
// evaluation pass: load enabled triggers, fetch one conditions snapshot per
// spot, evaluate each trigger, route matches through the suppression guard,
// render and dispatch alerts, and append the results to the ledger.
package run

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"swellwatch/internal/dispatch"
	"swellwatch/internal/evaluate"
	"swellwatch/internal/message"
	"swellwatch/internal/suppress"
	"swellwatch/internal/types"
)

const (
	// DefaultFetchConcurrency bounds parallel conditions fetches.
	DefaultFetchConcurrency = 8
	// DefaultProcessConcurrency bounds parallel trigger processing
	// (generation and dispatch across independent triggers).
	DefaultProcessConcurrency = 4
	// DefaultRunDeadline bounds one full pass.
	DefaultRunDeadline = 10 * time.Minute
)

// Orchestrator wires the pipeline stages together for one run.
type Orchestrator struct {
	store      types.TriggerStore
	ledger     types.AlertLedger
	provider   types.ConditionsProvider
	buoys      types.BuoyObserver
	guard      *suppress.Guard
	generator  *message.Generator
	dispatcher *dispatch.Dispatcher
	metrics    RunMetrics
	clock      types.Clock
	logger     types.Logger

	fetchConcurrency   int
	processConcurrency int
	runDeadline        time.Duration
}

// Config holds the orchestrator's dependencies. Store, Ledger, Provider,
// Guard, Generator, and Dispatcher are required; Buoys and Metrics are
// optional.
type Config struct {
	Store      types.TriggerStore
	Ledger     types.AlertLedger
	Provider   types.ConditionsProvider
	Buoys      types.BuoyObserver
	Guard      *suppress.Guard
	Generator  *message.Generator
	Dispatcher *dispatch.Dispatcher
	Metrics    RunMetrics
	Clock      types.Clock
	Logger     types.Logger

	FetchConcurrency   int
	ProcessConcurrency int
	RunDeadline        time.Duration
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		store:              cfg.Store,
		ledger:             cfg.Ledger,
		provider:           cfg.Provider,
		buoys:              cfg.Buoys,
		guard:              cfg.Guard,
		generator:          cfg.Generator,
		dispatcher:         cfg.Dispatcher,
		metrics:            cfg.Metrics,
		clock:              cfg.Clock,
		logger:             cfg.Logger,
		fetchConcurrency:   cfg.FetchConcurrency,
		processConcurrency: cfg.ProcessConcurrency,
		runDeadline:        cfg.RunDeadline,
	}
	if o.metrics == nil {
		o.metrics = NopMetrics{}
	}
	if o.clock == nil {
		o.clock = types.RealClock{}
	}
	if o.fetchConcurrency <= 0 {
		o.fetchConcurrency = DefaultFetchConcurrency
	}
	if o.processConcurrency <= 0 {
		o.processConcurrency = DefaultProcessConcurrency
	}
	if o.runDeadline <= 0 {
		o.runDeadline = DefaultRunDeadline
	}
	return o
}

// Options tunes one run.
type Options struct {
	// DryRun evaluates and renders but never dispatches, never writes the
	// ledger, and never advances evaluation state.
	DryRun bool
}

// spotFetch is the cached result of one spot's conditions fetch.
type spotFetch struct {
	snapshot *types.ConditionSnapshot
	err      error
}

// runDelta is one trigger's contribution to the run summary, merged under a
// lock after the trigger finishes processing.
type runDelta struct {
	evaluated      int
	matched        int
	sent           int
	suppressed     int
	skipped        int
	failed         int
	wouldSend      int
	ledgerFailures int
}

// RunOnce executes one full evaluation pass and returns the run summary.
// Per-trigger failures are isolated: they increment Failed and the run
// moves on. Only a failure to list triggers aborts the run.
func (o *Orchestrator) RunOnce(ctx context.Context, opts Options) (*types.RunSummary, error) {
	runID := uuid.NewString()
	ctx = types.WithRunID(ctx, runID)
	ctx, cancel := context.WithTimeout(ctx, o.runDeadline)
	defer cancel()

	summary := &types.RunSummary{
		RunID:     runID,
		StartedAt: o.clock.Now(),
		DryRun:    opts.DryRun,
	}
	logger := o.logger.With("run_id", runID, "dry_run", opts.DryRun)
	logger.Info("starting evaluation run")

	triggers, err := o.store.ListEnabledTriggers(ctx)
	if err != nil {
		logger.Error("failed to list enabled triggers", "error", err.Error())
		return nil, err
	}

	// Drop triggers whose saved constraints are incoherent; they can never
	// match and alerting on them would be noise.
	valid := triggers[:0]
	for i := range triggers {
		t := &triggers[i]
		if verr := t.Validate(); verr != nil {
			logger.Warn("skipping invalid trigger",
				"trigger_id", t.ID,
				"error", verr.Error(),
			)
			summary.Failed++
			continue
		}
		valid = append(valid, *t)
	}
	triggers = valid

	snapshots := o.fetchSnapshots(ctx, triggers, logger)

	// Generation and dispatch are independent across triggers; process them
	// concurrently with their own bound, merging each trigger's counts under
	// the lock.
	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.processConcurrency)
	for i := range triggers {
		t := &triggers[i]
		g.Go(func() error {
			d := o.processTrigger(gCtx, t, snapshots[t.SpotID], opts, logger)
			mu.Lock()
			summary.Evaluated += d.evaluated
			summary.Matched += d.matched
			summary.Sent += d.sent
			summary.Suppressed += d.suppressed
			summary.Skipped += d.skipped
			summary.Failed += d.failed
			summary.WouldSend += d.wouldSend
			summary.LedgerFailures += d.ledgerFailures
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	summary.FinishedAt = o.clock.Now()
	o.metrics.RecordRun(ctx, *summary)
	logger.Info("evaluation run finished",
		"evaluated", summary.Evaluated,
		"matched", summary.Matched,
		"sent", summary.Sent,
		"suppressed", summary.Suppressed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"ledger_failures", summary.LedgerFailures,
		"would_send", summary.WouldSend,
		"duration_ms", summary.FinishedAt.Sub(summary.StartedAt).Milliseconds(),
	)
	return summary, nil
}

// fetchSnapshots performs the scatter phase: exactly one conditions fetch
// per distinct spot, bounded by fetchConcurrency. A spot's fetch failure is
// recorded and isolated; other spots proceed.
func (o *Orchestrator) fetchSnapshots(ctx context.Context, triggers []types.Trigger, logger types.Logger) map[string]*spotFetch {
	spots := make(map[string]types.Spot)
	for i := range triggers {
		spots[triggers[i].SpotID] = triggers[i].Spot
	}

	results := make(map[string]*spotFetch, len(spots))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.fetchConcurrency)

	for spotID, spot := range spots {
		spotID, spot := spotID, spot
		fetch := &spotFetch{}
		results[spotID] = fetch

		g.Go(func() error {
			snapshot, err := o.provider.FetchConditions(gCtx, spot)
			if err != nil {
				logger.Warn("conditions fetch failed",
					"spot_id", spotID,
					"error", err.Error(),
				)
				fetch.err = err
				// Do not propagate; other spots still fetch.
				return nil
			}

			// Live buoy data decorates messages only; its failure is not a
			// snapshot failure.
			if o.buoys != nil && spot.BuoyID != "" {
				obs, buoyErr := o.buoys.FetchObservation(gCtx, spot.BuoyID)
				if buoyErr != nil {
					logger.Warn("buoy fetch failed",
						"spot_id", spotID,
						"station_id", spot.BuoyID,
						"error", buoyErr.Error(),
					)
				} else {
					snapshot.Buoy = obs
				}
			}

			fetch.snapshot = snapshot
			return nil
		})
	}

	g.Wait()
	return results
}

// processTrigger runs one trigger through evaluate, guard, render,
// dispatch, and ledger. All failures are absorbed into the returned delta.
func (o *Orchestrator) processTrigger(ctx context.Context, t *types.Trigger, fetch *spotFetch, opts Options, logger types.Logger) (d runDelta) {
	tlog := logger.With("trigger_id", t.ID, "spot_id", t.SpotID)

	if fetch == nil || fetch.err != nil {
		// No snapshot to evaluate against. Evaluation state is left
		// untouched so the next successful run sees the true previous state.
		d.failed++
		return d
	}

	result := evaluate.Evaluate(t, fetch.snapshot)
	d.evaluated++

	if !result.Matched {
		tlog.Info("trigger did not match",
			"failed_check", result.FailedCheck,
			"reason", result.Reason,
		)
		o.saveState(ctx, t, false, opts, tlog)
		return d
	}

	d.matched++
	tlog.Info("trigger matched", "label", string(t.Label))

	lastAlert, err := o.ledger.LastAlertFor(ctx, t.ID)
	if err != nil {
		tlog.Error("failed to load last alert; skipping trigger to avoid repeat spam",
			"error", err.Error(),
		)
		d.failed++
		return d
	}

	send, reason := o.guard.ShouldSend(t, result, lastAlert)
	if !send {
		d.suppressed++
		tlog.Info("alert suppressed", "reason", reason)
		o.saveState(ctx, t, true, opts, tlog)
		return d
	}

	body, fellBack := o.generator.Render(ctx, t, result)
	if fellBack {
		tlog.Warn("voiced generation unavailable; using fallback copy")
	}
	msg := types.OutboundMessage{
		TriggerID:   t.ID,
		TriggerName: t.Name(),
		SpotName:    t.Spot.Name,
		Label:       t.Label,
		Subject:     message.Subject(t),
		Body:        body,
	}

	if opts.DryRun {
		d.wouldSend++
		tlog.Info("dry run: would send alert", "subject", msg.Subject)
		return d
	}

	outcomes := o.dispatcher.Dispatch(ctx, t.Recipient, msg)
	for _, oc := range outcomes {
		if oc.Status != types.DeliverySkipped {
			o.metrics.RecordDelivery(ctx, oc.Channel, oc.Status, time.Duration(oc.DurationMS)*time.Millisecond)
		}
	}

	if dispatch.AllSkipped(outcomes) {
		// A match with nowhere to send is the recipient's channel
		// configuration, not a delivery failure. State stays untouched so
		// the alert fires as soon as a channel is enabled.
		d.skipped++
		tlog.Warn("alert matched but recipient has no enabled channel")
		return d
	}

	if !dispatch.AnySent(outcomes) {
		d.failed++
		tlog.Error("alert reached no channel")
		// The send never happened, so the rising edge must survive into
		// the next run: do not record matched state or a ledger row.
		return d
	}

	d.sent++
	alert := &types.SentAlert{
		ID:        "alr_" + uuid.NewString(),
		TriggerID: t.ID,
		SpotID:    t.SpotID,
		UserID:    t.UserID,
		SentAt:    o.clock.Now(),
		Label:     t.Label,
		Message:   body,
		Outcomes:  outcomes,
	}
	if err := o.ledger.RecordAlert(ctx, alert); err != nil {
		// The user already got the alert; the missing audit row is an
		// operator signal, not a reason to re-send.
		d.ledgerFailures++
		tlog.Error("ledger write failed after dispatch", "error", err.Error())
	}

	o.saveState(ctx, t, true, opts, tlog)
	return d
}

// saveState advances the trigger's evaluation state. Dry runs leave state
// untouched so a later real run sees the genuine previous result.
func (o *Orchestrator) saveState(ctx context.Context, t *types.Trigger, matched bool, opts Options, tlog types.Logger) {
	if opts.DryRun {
		return
	}
	if err := o.store.SetEvaluationState(ctx, t.ID, matched, o.clock.Now()); err != nil {
		// Stale state risks one duplicate or one missed rising edge next
		// run; log loudly but do not fail the trigger.
		tlog.Error("failed to persist evaluation state", "error", err.Error())
	}
}
