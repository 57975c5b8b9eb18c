// Package message renders the outbound alert text for a matched trigger.
//
// Rendering is a closed set of style variants: custom templates substitute
// condition values deterministically and always succeed; the two voiced
// styles delegate to the external text generation service and fall back to
// a deterministic message on any failure, so a genuine match always
// produces some alert text.
package message

import (
	"context"
	"fmt"
	"strings"
	"time"

	"swellwatch/internal/types"
)

// DefaultGenerateTimeout bounds a single text generation call. Generation
// failures and timeouts are recovered locally; no retries within a run.
const DefaultGenerateTimeout = 10 * time.Second

// unavailable is rendered for tokens whose measurement is missing.
const unavailable = "n/a"

// Style instructions handed to the text generation service. The condition
// facts travel separately as structured input.
const (
	localVoiceInstruction = "You are a laid-back local surfer giving a friend a heads-up " +
		"that their spot is working. Use the provided conditions. Keep it to 1-2 casual " +
		"sentences, no hashtags, no emoji."
	hypedVoiceInstruction = "You are an over-the-top hype man announcing that surf " +
		"conditions just lined up. Use the provided conditions. Keep it to 1-2 short, " +
		"high-energy sentences, no hashtags."
)

// Generator renders alert text for matched triggers.
type Generator struct {
	textGen types.TextGenerator
	timeout time.Duration
	logger  types.Logger
}

// Config holds the dependencies for a Generator.
type Config struct {
	TextGen types.TextGenerator
	// Timeout bounds each generation call; zero means DefaultGenerateTimeout.
	Timeout time.Duration
	Logger  types.Logger
}

// New creates a Generator.
func New(cfg Config) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}
	return &Generator{
		textGen: cfg.TextGen,
		timeout: timeout,
		logger:  cfg.Logger,
	}
}

// Render produces the outbound alert text for a match. The second return
// reports whether the deterministic fallback path was used, for run
// accounting.
func (g *Generator) Render(ctx context.Context, trigger *types.Trigger, match types.MatchResult) (string, bool) {
	switch trigger.Style {
	case types.StyleCustomTemplate:
		return g.renderTemplate(trigger, match), false
	case types.StyleLocalVoice, types.StyleHypedVoice:
		return g.renderVoiced(ctx, trigger, match)
	default:
		// Unknown style: deterministic fallback rather than an error, the
		// pipeline never fails to produce text for a genuine match.
		if g.logger != nil {
			g.logger.Warn("unknown notification style, using fallback",
				"trigger_id", trigger.ID,
				"style", string(trigger.Style),
			)
		}
		return FallbackMessage(trigger, match), true
	}
}

// renderTemplate substitutes the documented token set into the trigger's
// custom template. Unknown tokens are left verbatim; substitution never
// fails.
func (g *Generator) renderTemplate(trigger *types.Trigger, match types.MatchResult) string {
	tmpl := trigger.CustomTemplate
	if tmpl == "" {
		return FallbackMessage(trigger, match)
	}

	pairs := make([]string, 0, 2*len(tokenOrder))
	tokens := tokenValues(trigger, match.Snapshot)
	for _, name := range tokenOrder {
		pairs = append(pairs, "{{"+name+"}}", tokens[name])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// renderVoiced delegates to the text generation service with a
// style-specific instruction, recovering any failure with the fallback.
func (g *Generator) renderVoiced(ctx context.Context, trigger *types.Trigger, match types.MatchResult) (string, bool) {
	if g.textGen == nil {
		return FallbackMessage(trigger, match), true
	}

	instruction := localVoiceInstruction
	if trigger.Style == types.StyleHypedVoice {
		instruction = hypedVoiceInstruction
	}

	genCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.textGen.Generate(genCtx, instruction, conditionFacts(trigger, match.Snapshot))
	if err != nil {
		if g.logger != nil {
			g.logger.Warn("text generation failed, using fallback",
				"trigger_id", trigger.ID,
				"style", string(trigger.Style),
				"error", err.Error(),
			)
		}
		return FallbackMessage(trigger, match), true
	}

	text = strings.TrimSpace(text)
	if text == "" {
		if g.logger != nil {
			g.logger.Warn("text generation returned empty response, using fallback",
				"trigger_id", trigger.ID,
			)
		}
		return FallbackMessage(trigger, match), true
	}

	return text, false
}

// tokenOrder is the documented template token set, in substitution order.
var tokenOrder = []string{
	"spotName",
	"conditionLabel",
	"triggerName",
	"waveHeight",
	"wavePeriod",
	"swellDirection",
	"windSpeed",
	"windDirection",
	"tideHeight",
	"tideDirection",
}

// tokenValues builds the token substitution map from the snapshot the
// match was decided against.
func tokenValues(trigger *types.Trigger, s types.ConditionSnapshot) map[string]string {
	label := string(trigger.Label)
	if label == "" {
		label = "matching"
	}
	return map[string]string{
		"spotName":       trigger.Spot.Name,
		"conditionLabel": label,
		"triggerName":    trigger.Name(),
		"waveHeight":     fmtValue(s.WaveHeightFt, "%.1fft"),
		"wavePeriod":     fmtValue(s.WavePeriodS, "%.0fs"),
		"swellDirection": fmtValue(s.SwellDirectionDeg, "%.0f°"),
		"windSpeed":      fmtValue(s.WindSpeedKt, "%.0fkt"),
		"windDirection":  fmtValue(s.WindDirectionDeg, "%.0f°"),
		"tideHeight":     fmtValue(s.TideHeightFt, "%.1fft"),
		"tideDirection":  tidePhaseString(s.TidePhase),
	}
}

// conditionFacts flattens the snapshot into the structured fact block the
// text generation service receives alongside the style instruction.
func conditionFacts(trigger *types.Trigger, s types.ConditionSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "spot: %s\n", trigger.Spot.Name)
	if trigger.Label != "" {
		fmt.Fprintf(&b, "rating: %s\n", trigger.Label)
	}
	fmt.Fprintf(&b, "wave height: %s\n", fmtValue(s.WaveHeightFt, "%.1f ft"))
	fmt.Fprintf(&b, "wave period: %s\n", fmtValue(s.WavePeriodS, "%.0f s"))
	fmt.Fprintf(&b, "swell direction: %s\n", fmtValue(s.SwellDirectionDeg, "%.0f deg"))
	fmt.Fprintf(&b, "wind: %s at %s\n",
		fmtValue(s.WindDirectionDeg, "%.0f deg"), fmtValue(s.WindSpeedKt, "%.0f kt"))
	fmt.Fprintf(&b, "tide: %s, %s", fmtValue(s.TideHeightFt, "%.1f ft"), tidePhaseString(s.TidePhase))
	if s.Buoy != nil && s.Buoy.WaveHeightFt != nil {
		fmt.Fprintf(&b, "\nlive buoy %s: %s", s.Buoy.StationID, fmtValue(s.Buoy.WaveHeightFt, "%.1f ft"))
	}
	return b.String()
}

// FallbackMessage assembles the deterministic alert text used when a
// voiced style cannot be generated. Built purely from the raw condition
// values and the condition label.
func FallbackMessage(trigger *types.Trigger, match types.MatchResult) string {
	s := match.Snapshot
	label := string(trigger.Label)
	if label == "" {
		label = "matching"
	}

	parts := []string{
		fmt.Sprintf("%s conditions at %s", label, trigger.Spot.Name),
	}
	if s.WaveHeightFt != nil {
		wave := fmt.Sprintf("%.1fft", *s.WaveHeightFt)
		if s.WavePeriodS != nil {
			wave += fmt.Sprintf(" @ %.0fs", *s.WavePeriodS)
		}
		parts = append(parts, wave)
	}
	if s.SwellDirectionDeg != nil {
		parts = append(parts, fmt.Sprintf("swell %.0f°", *s.SwellDirectionDeg))
	}
	if s.WindSpeedKt != nil {
		wind := fmt.Sprintf("wind %.0fkt", *s.WindSpeedKt)
		if s.WindDirectionDeg != nil {
			wind += fmt.Sprintf(" from %.0f°", *s.WindDirectionDeg)
		}
		parts = append(parts, wind)
	}
	if s.TideHeightFt != nil {
		tide := fmt.Sprintf("tide %.1fft", *s.TideHeightFt)
		if s.TidePhase != "" {
			tide += fmt.Sprintf(" %s", s.TidePhase)
		}
		parts = append(parts, tide)
	}

	return strings.Join(parts, ", ") + "."
}

// Subject builds the short headline used as email subject and push title.
func Subject(trigger *types.Trigger) string {
	name := trigger.Name()
	subject := fmt.Sprintf("Surf alert: %s", name)
	if trigger.Label != "" {
		subject = fmt.Sprintf("Surf alert: %s is %s", name, trigger.Label)
	}
	if trigger.Emoji != "" {
		subject = trigger.Emoji + " " + subject
	}
	return subject
}

func fmtValue(v *float64, format string) string {
	if v == nil {
		return unavailable
	}
	return fmt.Sprintf(format, *v)
}

func tidePhaseString(p types.TidePhase) string {
	if p == "" {
		return unavailable
	}
	return string(p)
}
