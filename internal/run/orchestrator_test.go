package run

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"swellwatch/internal/dispatch"
	"swellwatch/internal/message"
	"swellwatch/internal/suppress"
	"swellwatch/internal/types"
)

// --- stubs ---

type stubStore struct {
	triggers []types.Trigger
	listErr  error

	mu          sync.Mutex
	stateWrites map[string]bool
	stateErr    error
}

func (s *stubStore) ListEnabledTriggers(ctx context.Context) ([]types.Trigger, error) {
	return s.triggers, s.listErr
}

func (s *stubStore) SetEvaluationState(ctx context.Context, triggerID string, matched bool, evaluatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stateWrites == nil {
		s.stateWrites = map[string]bool{}
	}
	s.stateWrites[triggerID] = matched
	return s.stateErr
}

type stubLedger struct {
	mu        sync.Mutex
	recorded  []*types.SentAlert
	recordErr error
	last      map[string]*types.SentAlert
	lastErr   error
}

func (s *stubLedger) RecordAlert(ctx context.Context, alert *types.SentAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.recorded = append(s.recorded, alert)
	return nil
}

func (s *stubLedger) LastAlertFor(ctx context.Context, triggerID string) (*types.SentAlert, error) {
	if s.lastErr != nil {
		return nil, s.lastErr
	}
	return s.last[triggerID], nil
}

func (s *stubLedger) ListRecentByUser(ctx context.Context, userID string, limit int) ([]types.SentAlert, error) {
	return nil, nil
}

type stubProvider struct {
	mu       sync.Mutex
	fetches  map[string]int
	snapshot *types.ConditionSnapshot
	failSpot string
	// blockSpot holds that spot's fetch until the run context expires.
	blockSpot string
}

func (s *stubProvider) FetchConditions(ctx context.Context, spot types.Spot) (*types.ConditionSnapshot, error) {
	s.mu.Lock()
	if s.fetches == nil {
		s.fetches = map[string]int{}
	}
	s.fetches[spot.ID]++
	s.mu.Unlock()
	if spot.ID == s.blockSpot {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if spot.ID == s.failSpot {
		return nil, types.NewAppError(types.ErrCodeProviderUnavailable, "provider down", nil)
	}
	return s.snapshot, nil
}

type stubChannel struct {
	mu         sync.Mutex
	delivered  int
	deliverErr error
}

func (s *stubChannel) Type() types.ChannelType                   { return types.ChannelEmail }
func (s *stubChannel) ValidateRecipient(r types.Recipient) error { return nil }
func (s *stubChannel) Deliver(ctx context.Context, r types.Recipient, msg types.OutboundMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered++
	return "ref-1", s.deliverErr
}

// gaugeChannel records the peak number of concurrent deliveries.
type gaugeChannel struct {
	mu     sync.Mutex
	active int
	peak   int
}

func (s *gaugeChannel) Type() types.ChannelType                   { return types.ChannelEmail }
func (s *gaugeChannel) ValidateRecipient(r types.Recipient) error { return nil }
func (s *gaugeChannel) Deliver(ctx context.Context, r types.Recipient, msg types.OutboundMessage) (string, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.peak {
		s.peak = s.active
	}
	s.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return "ref-1", nil
}

type nopLogger struct{}

func (nopLogger) Info(msg string, args ...any)    {}
func (nopLogger) Error(msg string, args ...any)   {}
func (nopLogger) Warn(msg string, args ...any)    {}
func (l nopLogger) With(args ...any) types.Logger { return l }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// --- helpers ---

func matchingSnapshot() *types.ConditionSnapshot {
	wave := 5.0
	return &types.ConditionSnapshot{
		WaveHeightFt: &wave,
		FetchedAt:    time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC),
	}
}

func testTrigger(id, spotID string) types.Trigger {
	min := 4.0
	return types.Trigger{
		ID:             id,
		UserID:         "usr_1",
		SpotID:         spotID,
		MinWaveHeight:  &min,
		Style:          types.StyleCustomTemplate,
		CustomTemplate: "{{spotName}} is working",
		Enabled:        true,
		Spot:           types.Spot{ID: spotID, Name: "Ocean Beach"},
		Recipient: types.Recipient{
			UserID:   "usr_1",
			Email:    "surfer@example.com",
			Channels: []types.ChannelType{types.ChannelEmail},
		},
	}
}

func newTestOrchestrator(store *stubStore, ledger *stubLedger, provider *stubProvider, channel *stubChannel) *Orchestrator {
	clock := fixedClock{t: time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)}
	return New(Config{
		Store:      store,
		Ledger:     ledger,
		Provider:   provider,
		Guard:      suppress.NewGuard(suppress.DefaultCooldown, clock),
		Generator:  message.New(message.Config{Logger: nopLogger{}}),
		Dispatcher: dispatch.NewDispatcher([]types.NotificationChannel{channel}, clock, nopLogger{}),
		Clock:      clock,
		Logger:     nopLogger{},
	})
}

// --- tests ---

func TestRunOnce_MatchDispatchesAndRecords(t *testing.T) {
	store := &stubStore{triggers: []types.Trigger{testTrigger("trg_1", "spot_a")}}
	ledger := &stubLedger{}
	provider := &stubProvider{snapshot: matchingSnapshot()}
	channel := &stubChannel{}

	o := newTestOrchestrator(store, ledger, provider, channel)
	summary, err := o.RunOnce(context.Background(), Options{})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if summary.Evaluated != 1 || summary.Matched != 1 || summary.Sent != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if channel.delivered != 1 {
		t.Errorf("deliveries = %d", channel.delivered)
	}
	if len(ledger.recorded) != 1 {
		t.Fatalf("ledger rows = %d", len(ledger.recorded))
	}
	if ledger.recorded[0].Message != "Ocean Beach is working" {
		t.Errorf("message = %q", ledger.recorded[0].Message)
	}
	if matched, ok := store.stateWrites["trg_1"]; !ok || !matched {
		t.Errorf("state writes = %v", store.stateWrites)
	}
}

func TestRunOnce_OneFetchPerSpot(t *testing.T) {
	store := &stubStore{triggers: []types.Trigger{
		testTrigger("trg_1", "spot_a"),
		testTrigger("trg_2", "spot_a"),
		testTrigger("trg_3", "spot_b"),
	}}
	provider := &stubProvider{snapshot: matchingSnapshot()}

	o := newTestOrchestrator(store, &stubLedger{}, provider, &stubChannel{})
	if _, err := o.RunOnce(context.Background(), Options{}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if provider.fetches["spot_a"] != 1 {
		t.Errorf("spot_a fetches = %d, want 1", provider.fetches["spot_a"])
	}
	if provider.fetches["spot_b"] != 1 {
		t.Errorf("spot_b fetches = %d, want 1", provider.fetches["spot_b"])
	}
}

func TestRunOnce_ProviderFailureIsolated(t *testing.T) {
	store := &stubStore{triggers: []types.Trigger{
		testTrigger("trg_1", "spot_down"),
		testTrigger("trg_2", "spot_up"),
	}}
	provider := &stubProvider{snapshot: matchingSnapshot(), failSpot: "spot_down"}

	o := newTestOrchestrator(store, &stubLedger{}, provider, &stubChannel{})
	summary, err := o.RunOnce(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Failed != 1 {
		t.Errorf("failed = %d, want 1", summary.Failed)
	}
	if summary.Sent != 1 {
		t.Errorf("sent = %d, want 1", summary.Sent)
	}
	// The failed trigger's evaluation state must be untouched.
	if _, ok := store.stateWrites["trg_1"]; ok {
		t.Error("state must not advance for a trigger with no snapshot")
	}
}

func TestRunOnce_SuppressionWithinCooldown(t *testing.T) {
	trg := testTrigger("trg_1", "spot_a")
	prevMatched := true
	trg.PrevState = &types.EvaluationState{
		TriggerID:   "trg_1",
		LastMatched: prevMatched,
	}
	now := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	ledger := &stubLedger{last: map[string]*types.SentAlert{
		"trg_1": {ID: "alr_old", TriggerID: "trg_1", SentAt: now.Add(-time.Hour)},
	}}
	store := &stubStore{triggers: []types.Trigger{trg}}
	channel := &stubChannel{}

	o := newTestOrchestrator(store, ledger, &stubProvider{snapshot: matchingSnapshot()}, channel)
	summary, err := o.RunOnce(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Suppressed != 1 || summary.Sent != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if channel.delivered != 0 {
		t.Error("suppressed alert must not dispatch")
	}
	// State still records the match so the next run sees no rising edge.
	if matched := store.stateWrites["trg_1"]; !matched {
		t.Errorf("state writes = %v", store.stateWrites)
	}
}

func TestRunOnce_LedgerFailureCounted(t *testing.T) {
	store := &stubStore{triggers: []types.Trigger{testTrigger("trg_1", "spot_a")}}
	ledger := &stubLedger{recordErr: types.NewAppError(types.ErrCodeLedgerWrite, "write failed", nil)}

	o := newTestOrchestrator(store, ledger, &stubProvider{snapshot: matchingSnapshot()}, &stubChannel{})
	summary, err := o.RunOnce(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Sent != 1 {
		t.Errorf("sent = %d, want 1 (alert reached the user)", summary.Sent)
	}
	if summary.LedgerFailures != 1 {
		t.Errorf("ledger failures = %d, want 1", summary.LedgerFailures)
	}
}

func TestRunOnce_DispatchTotalFailure(t *testing.T) {
	store := &stubStore{triggers: []types.Trigger{testTrigger("trg_1", "spot_a")}}
	ledger := &stubLedger{}
	channel := &stubChannel{deliverErr: types.NewAppError(types.ErrCodeDispatchTransport, "down", nil)}

	o := newTestOrchestrator(store, ledger, &stubProvider{snapshot: matchingSnapshot()}, channel)
	summary, err := o.RunOnce(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Failed != 1 || summary.Sent != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(ledger.recorded) != 0 {
		t.Error("undelivered alert must not reach the ledger")
	}
	// The rising edge must survive: no matched-state write.
	if _, ok := store.stateWrites["trg_1"]; ok {
		t.Error("state must not advance when nothing was sent")
	}
}

func TestRunOnce_DryRun(t *testing.T) {
	store := &stubStore{triggers: []types.Trigger{testTrigger("trg_1", "spot_a")}}
	ledger := &stubLedger{}
	channel := &stubChannel{}

	o := newTestOrchestrator(store, ledger, &stubProvider{snapshot: matchingSnapshot()}, channel)
	summary, err := o.RunOnce(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.WouldSend != 1 || summary.Sent != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if channel.delivered != 0 {
		t.Error("dry run must not dispatch")
	}
	if len(ledger.recorded) != 0 {
		t.Error("dry run must not write the ledger")
	}
	if len(store.stateWrites) != 0 {
		t.Error("dry run must not advance evaluation state")
	}
}

func TestRunOnce_InvalidTriggerSkipped(t *testing.T) {
	bad := testTrigger("trg_bad", "spot_a")
	min, max := 8.0, 2.0
	bad.MinWaveHeight = &min
	bad.MaxWaveHeight = &max
	store := &stubStore{triggers: []types.Trigger{bad, testTrigger("trg_ok", "spot_a")}}
	provider := &stubProvider{snapshot: matchingSnapshot()}

	o := newTestOrchestrator(store, &stubLedger{}, provider, &stubChannel{})
	summary, err := o.RunOnce(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Failed != 1 {
		t.Errorf("failed = %d, want 1", summary.Failed)
	}
	if summary.Evaluated != 1 || summary.Sent != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunOnce_ListFailureAborts(t *testing.T) {
	store := &stubStore{listErr: errors.New("db down")}

	o := newTestOrchestrator(store, &stubLedger{}, &stubProvider{}, &stubChannel{})
	if _, err := o.RunOnce(context.Background(), Options{}); err == nil {
		t.Fatal("expected error when listing fails")
	}
}

func TestRunOnce_NoEnabledChannelsSkipped(t *testing.T) {
	trg := testTrigger("trg_1", "spot_a")
	trg.Recipient.Channels = nil
	store := &stubStore{triggers: []types.Trigger{trg}}
	ledger := &stubLedger{}
	channel := &stubChannel{}

	o := newTestOrchestrator(store, ledger, &stubProvider{snapshot: matchingSnapshot()}, channel)
	summary, err := o.RunOnce(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", summary.Skipped)
	}
	if summary.Failed != 0 {
		t.Errorf("failed = %d, want 0 (no channel is not a delivery failure)", summary.Failed)
	}
	if channel.delivered != 0 {
		t.Error("nothing must be delivered without an enabled channel")
	}
	if len(ledger.recorded) != 0 {
		t.Error("unsent alert must not reach the ledger")
	}
	// State stays untouched so enabling a channel mid-swell still alerts.
	if _, ok := store.stateWrites["trg_1"]; ok {
		t.Error("state must not advance when no channel was available")
	}
}

func TestRunOnce_TriggersProcessedConcurrently(t *testing.T) {
	store := &stubStore{triggers: []types.Trigger{
		testTrigger("trg_1", "spot_a"),
		testTrigger("trg_2", "spot_a"),
		testTrigger("trg_3", "spot_a"),
	}}
	channel := &gaugeChannel{}
	clock := fixedClock{t: time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)}

	o := New(Config{
		Store:              store,
		Ledger:             &stubLedger{},
		Provider:           &stubProvider{snapshot: matchingSnapshot()},
		Guard:              suppress.NewGuard(suppress.DefaultCooldown, clock),
		Generator:          message.New(message.Config{Logger: nopLogger{}}),
		Dispatcher:         dispatch.NewDispatcher([]types.NotificationChannel{channel}, clock, nopLogger{}),
		Clock:              clock,
		Logger:             nopLogger{},
		ProcessConcurrency: 3,
	})
	summary, err := o.RunOnce(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Sent != 3 {
		t.Errorf("sent = %d, want 3", summary.Sent)
	}
	if channel.peak < 2 {
		t.Errorf("peak concurrent deliveries = %d, want >= 2", channel.peak)
	}
}

func TestRunOnce_DeadlineFailsInFlightKeepsCompleted(t *testing.T) {
	store := &stubStore{triggers: []types.Trigger{
		testTrigger("trg_fast", "spot_fast"),
		testTrigger("trg_slow", "spot_slow"),
	}}
	ledger := &stubLedger{}
	provider := &stubProvider{snapshot: matchingSnapshot(), blockSpot: "spot_slow"}
	channel := &stubChannel{}
	clock := fixedClock{t: time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)}

	o := New(Config{
		Store:       store,
		Ledger:      ledger,
		Provider:    provider,
		Guard:       suppress.NewGuard(suppress.DefaultCooldown, clock),
		Generator:   message.New(message.Config{Logger: nopLogger{}}),
		Dispatcher:  dispatch.NewDispatcher([]types.NotificationChannel{channel}, clock, nopLogger{}),
		Clock:       clock,
		Logger:      nopLogger{},
		RunDeadline: 100 * time.Millisecond,
	})
	summary, err := o.RunOnce(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Failed != 1 {
		t.Errorf("failed = %d, want 1 (trigger abandoned at the deadline)", summary.Failed)
	}
	if summary.Sent != 1 {
		t.Errorf("sent = %d, want 1", summary.Sent)
	}
	// The completed trigger's ledger row is retained.
	if len(ledger.recorded) != 1 || ledger.recorded[0].TriggerID != "trg_fast" {
		t.Errorf("ledger rows = %+v", ledger.recorded)
	}
	// The abandoned trigger's evaluation state must be untouched.
	if _, ok := store.stateWrites["trg_slow"]; ok {
		t.Error("state must not advance for a trigger abandoned at the deadline")
	}
}

func TestRunOnce_NoMatchAdvancesState(t *testing.T) {
	trg := testTrigger("trg_1", "spot_a")
	big := 20.0
	trg.MinWaveHeight = &big
	store := &stubStore{triggers: []types.Trigger{trg}}

	o := newTestOrchestrator(store, &stubLedger{}, &stubProvider{snapshot: matchingSnapshot()}, &stubChannel{})
	summary, err := o.RunOnce(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Matched != 0 || summary.Evaluated != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if matched, ok := store.stateWrites["trg_1"]; !ok || matched {
		t.Errorf("state writes = %v, want non-match recorded", store.stateWrites)
	}
}
