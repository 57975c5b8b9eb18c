package message

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"swellwatch/internal/types"
)

func f(v float64) *float64 { return &v }

// mockTextGen implements types.TextGenerator with scripted behavior.
type mockTextGen struct {
	text        string
	err         error
	block       bool
	calls       int
	instruction string
	facts       string
}

func (m *mockTextGen) Generate(ctx context.Context, instruction string, facts string) (string, error) {
	m.calls++
	m.instruction = instruction
	m.facts = facts
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.text, m.err
}

func matchWith(snapshot types.ConditionSnapshot) types.MatchResult {
	return types.MatchResult{Matched: true, Snapshot: snapshot}
}

func sampleTrigger(style types.NotificationStyle) *types.Trigger {
	return &types.Trigger{
		ID:    "trg_1",
		Label: types.LabelGood,
		Style: style,
		Spot:  types.Spot{ID: "spot_1", Name: "Steamer Lane"},
	}
}

func sampleSnapshot() types.ConditionSnapshot {
	return types.ConditionSnapshot{
		WaveHeightFt:      f(5),
		WavePeriodS:       f(12),
		SwellDirectionDeg: f(300),
		WindSpeedKt:       f(5),
		WindDirectionDeg:  f(90),
		TideHeightFt:      f(2.5),
		TidePhase:         types.TideRising,
	}
}

func TestRender_CustomTemplate_SubstitutesTokens(t *testing.T) {
	trigger := sampleTrigger(types.StyleCustomTemplate)
	trigger.CustomTemplate = "{{spotName}} is {{conditionLabel}}: {{waveHeight}} @ {{wavePeriod}}, wind {{windSpeed}}, tide {{tideDirection}}"

	gen := New(Config{})
	text, fallback := gen.Render(context.Background(), trigger, matchWith(sampleSnapshot()))

	if fallback {
		t.Fatal("template rendering must not report fallback")
	}
	want := "Steamer Lane is good: 5.0ft @ 12s, wind 5kt, tide rising"
	if text != want {
		t.Errorf("got %q, want %q", text, want)
	}
}

func TestRender_CustomTemplate_UnknownTokenLeftVerbatim(t *testing.T) {
	trigger := sampleTrigger(types.StyleCustomTemplate)
	trigger.CustomTemplate = "{{spotName}} {{doesNotExist}} {{waveHeight}}"

	gen := New(Config{})
	text, _ := gen.Render(context.Background(), trigger, matchWith(sampleSnapshot()))

	if !strings.Contains(text, "{{doesNotExist}}") {
		t.Errorf("unknown token must remain verbatim, got %q", text)
	}
}

func TestRender_CustomTemplate_MissingValuesRenderNA(t *testing.T) {
	trigger := sampleTrigger(types.StyleCustomTemplate)
	trigger.CustomTemplate = "tide {{tideHeight}}"

	gen := New(Config{})
	text, _ := gen.Render(context.Background(), trigger, matchWith(types.ConditionSnapshot{WaveHeightFt: f(5)}))

	if text != "tide n/a" {
		t.Errorf("got %q, want %q", text, "tide n/a")
	}
}

func TestRender_CustomTemplate_IsDeterministic(t *testing.T) {
	trigger := sampleTrigger(types.StyleCustomTemplate)
	trigger.CustomTemplate = "{{spotName}}: {{waveHeight}}"
	match := matchWith(sampleSnapshot())

	gen := New(Config{})
	first, _ := gen.Render(context.Background(), trigger, match)
	for i := 0; i < 5; i++ {
		again, _ := gen.Render(context.Background(), trigger, match)
		if again != first {
			t.Fatal("template rendering must be deterministic")
		}
	}
}

func TestRender_LocalVoice_UsesGeneratedText(t *testing.T) {
	tg := &mockTextGen{text: "Steamer Lane is firing, get down here."}
	gen := New(Config{TextGen: tg})

	text, fallback := gen.Render(context.Background(), sampleTrigger(types.StyleLocalVoice), matchWith(sampleSnapshot()))

	if fallback {
		t.Fatal("successful generation must not report fallback")
	}
	if text != tg.text {
		t.Errorf("got %q, want generated text", text)
	}
	if !strings.Contains(tg.instruction, "laid-back") {
		t.Errorf("local voice must use the local instruction, got %q", tg.instruction)
	}
	if !strings.Contains(tg.facts, "wave height: 5.0 ft") {
		t.Errorf("facts must embed condition values, got %q", tg.facts)
	}
}

func TestRender_HypedVoice_UsesHypedInstruction(t *testing.T) {
	tg := &mockTextGen{text: "CONDITIONS JUST WENT OFF."}
	gen := New(Config{TextGen: tg})

	gen.Render(context.Background(), sampleTrigger(types.StyleHypedVoice), matchWith(sampleSnapshot()))

	if !strings.Contains(tg.instruction, "hype") {
		t.Errorf("hyped voice must use the hype instruction, got %q", tg.instruction)
	}
}

func TestRender_GenerationError_FallsBack(t *testing.T) {
	tg := &mockTextGen{err: errors.New("upstream 500")}
	gen := New(Config{TextGen: tg})

	text, fallback := gen.Render(context.Background(), sampleTrigger(types.StyleLocalVoice), matchWith(sampleSnapshot()))

	if !fallback {
		t.Fatal("generation failure must report fallback")
	}
	for _, want := range []string{"Steamer Lane", "good", "5.0ft", "wind 5kt"} {
		if !strings.Contains(text, want) {
			t.Errorf("fallback must contain %q, got %q", want, text)
		}
	}
}

func TestRender_EmptyGeneration_FallsBack(t *testing.T) {
	tg := &mockTextGen{text: "   "}
	gen := New(Config{TextGen: tg})

	text, fallback := gen.Render(context.Background(), sampleTrigger(types.StyleLocalVoice), matchWith(sampleSnapshot()))

	if !fallback {
		t.Fatal("blank generation must report fallback")
	}
	if !strings.Contains(text, "Steamer Lane") {
		t.Errorf("fallback text expected, got %q", text)
	}
}

func TestRender_GenerationTimeout_FallsBack(t *testing.T) {
	tg := &mockTextGen{block: true}
	gen := New(Config{TextGen: tg, Timeout: 10 * time.Millisecond})

	done := make(chan struct{})
	var fallback bool
	go func() {
		_, fallback = gen.Render(context.Background(), sampleTrigger(types.StyleLocalVoice), matchWith(sampleSnapshot()))
		close(done)
	}()

	select {
	case <-done:
		if !fallback {
			t.Fatal("timed-out generation must report fallback")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("render did not respect the generation timeout")
	}
}

func TestRender_NilTextGen_FallsBack(t *testing.T) {
	gen := New(Config{})

	_, fallback := gen.Render(context.Background(), sampleTrigger(types.StyleLocalVoice), matchWith(sampleSnapshot()))
	if !fallback {
		t.Fatal("missing generator must fall back, not panic")
	}
}

func TestFallbackMessage_OmitsMissingFields(t *testing.T) {
	trigger := sampleTrigger(types.StyleLocalVoice)
	text := FallbackMessage(trigger, matchWith(types.ConditionSnapshot{WaveHeightFt: f(4)}))

	if strings.Contains(text, "tide") || strings.Contains(text, "wind") {
		t.Errorf("missing fields must be omitted, got %q", text)
	}
	if !strings.Contains(text, "4.0ft") {
		t.Errorf("present fields must be rendered, got %q", text)
	}
}

func TestSubject(t *testing.T) {
	trigger := sampleTrigger(types.StyleLocalVoice)
	trigger.DisplayName = "Dawn Patrol"
	trigger.Emoji = "🌊"

	got := Subject(trigger)
	want := "🌊 Surf alert: Dawn Patrol is good"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	trigger.Label = ""
	trigger.Emoji = ""
	if got := Subject(trigger); got != "Surf alert: Dawn Patrol" {
		t.Errorf("got %q", got)
	}
}
