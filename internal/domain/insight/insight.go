// Package insight turns a forecast into a short, human-readable assessment.
//
// The assessment is a decision table: the predicted score picks a band, and
// within the band the expected change (predicted minus current) and the
// recent score trend pick the advice.
package insight

import (
	"fmt"

	"github.com/okian/progresscast/internal/domain/model"
)

// Band is a proficiency level derived from the predicted score.
type Band int

const (
	BandStruggling Band = iota
	BandForming
	BandConfident
	BandMastery
)

// String returns the status phrase that opens every insight of the band.
func (b Band) String() string {
	switch b {
	case BandMastery:
		return "Mastery level."
	case BandConfident:
		return "Confident command of the skill."
	case BandForming:
		return "Skill is actively forming."
	default:
		return "Needs closer attention."
	}
}

// Policy holds the decision thresholds. Deltas are predicted minus current.
type Policy struct {
	MasteryScore   float64 `koanf:"mastery_score"`
	ConfidentScore float64 `koanf:"confident_score"`
	FormingScore   float64 `koanf:"forming_score"`

	// Mastery band.
	MasteryDropDelta float64 `koanf:"mastery_drop_delta"`
	TopScore         float64 `koanf:"top_score"`
	MasteryTrend     float64 `koanf:"mastery_trend"`

	// Confident band.
	SurgeTrend         float64 `koanf:"surge_trend"`
	ConfidentGain      float64 `koanf:"confident_gain"`
	ConfidentDropDelta float64 `koanf:"confident_drop_delta"`

	// Forming band.
	FormingTrend        float64 `koanf:"forming_trend"`
	FormingDeclineTrend float64 `koanf:"forming_decline_trend"`

	// Struggling band.
	BreakthroughGain float64 `koanf:"breakthrough_gain"`
	CriticalScore    float64 `koanf:"critical_score"`
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MasteryScore:        90,
		ConfidentScore:      75,
		FormingScore:        60,
		MasteryDropDelta:    -5,
		TopScore:            95,
		MasteryTrend:        0.5,
		SurgeTrend:          2.0,
		ConfidentGain:       5,
		ConfidentDropDelta:  -10,
		FormingTrend:        1.5,
		FormingDeclineTrend: -1.0,
		BreakthroughGain:    10,
		CriticalScore:       30,
	}
}

// Validate checks that the band cut-offs are ordered within 0..100.
func (p Policy) Validate() error {
	if !(0 <= p.FormingScore && p.FormingScore < p.ConfidentScore &&
		p.ConfidentScore < p.MasteryScore && p.MasteryScore <= model.MaxScore) {
		return fmt.Errorf("%w: need 0 <= forming (%v) < confident (%v) < mastery (%v) <= %d",
			ErrInvalidPolicy, p.FormingScore, p.ConfidentScore, p.MasteryScore, model.MaxScore)
	}
	return nil
}

// Band classifies a predicted score.
func (p Policy) Band(predicted float64) Band {
	switch {
	case predicted >= p.MasteryScore:
		return BandMastery
	case predicted >= p.ConfidentScore:
		return BandConfident
	case predicted >= p.FormingScore:
		return BandForming
	default:
		return BandStruggling
	}
}

// Input is what a forecast contributes to the insight.
type Input struct {
	Predicted float64
	Current   float64
	Trend     float64
	Activity  model.Activity
}

// Delta is the expected change from the current score.
func (in Input) Delta() float64 { return in.Predicted - in.Current }

// Option applies a configuration option to a Table.
type Option func(*Table)

// WithPolicy replaces the default thresholds.
func WithPolicy(p Policy) Option {
	return func(t *Table) { t.policy = p }
}

// WithLabels sets how activities are named inside advice text.
func WithLabels(labels map[model.Activity]string, fallback string) Option {
	return func(t *Table) {
		t.labels = make(map[model.Activity]string, len(labels))
		for a, l := range labels {
			if l != "" {
				t.labels[a] = l
			}
		}
		if fallback != "" {
			t.fallback = fallback
		}
	}
}

// Table generates insights from a Policy.
type Table struct {
	policy   Policy
	labels   map[model.Activity]string
	fallback string
}

// New creates a table with the default policy and English activity labels.
func New(opts ...Option) *Table {
	t := &Table{
		policy:   DefaultPolicy(),
		labels:   defaultLabels(),
		fallback: "this activity",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Policy returns the thresholds in use.
func (t *Table) Policy() Policy { return t.policy }

// Label names an activity for use inside a sentence.
func (t *Table) Label(a model.Activity) string {
	if l, ok := t.labels[a]; ok {
		return l
	}
	return t.fallback
}

// Generate returns "<status> <advice>" for the input. Branches within a band
// are tried in order and the first match wins.
func (t *Table) Generate(in Input) string {
	band := t.policy.Band(in.Predicted)
	return band.String() + " " + t.advice(band, in)
}

func (t *Table) advice(band Band, in Input) string {
	p := t.policy
	label := t.Label(in.Activity)
	delta := in.Delta()

	switch band {
	case BandMastery:
		switch {
		case delta < p.MasteryDropDelta:
			return fmt.Sprintf("Despite high results, performance in %s is expected to drop. "+
				"The child may be tired or losing interest in repetitive tasks. "+
				"Take a break or switch to a different activity.", label)
		case in.Current >= p.TopScore && delta >= 0:
			return fmt.Sprintf("The skill in %s is fully mastered. "+
				"Move on to considerably harder tasks or use this game as a motivational bonus.", label)
		case in.Trend > p.MasteryTrend:
			return "Steady positive momentum. The child is consolidating the material with confidence. " +
				"Difficulty can safely be raised."
		default:
			return fmt.Sprintf("Results are consistently high. Practice %s now and then to prevent forgetting, "+
				"but shift the main focus to other skills.", label)
		}

	case BandConfident:
		switch {
		case in.Trend > p.SurgeTrend:
			return fmt.Sprintf("Rapid progress in %s! The child is in a flow state. "+
				"Keep the momentum with praise and do not interrupt the series of sessions.", label)
		case delta > p.ConfidentGain:
			return "High growth potential. Results are expected to improve over the next attempts. " +
				"Continue at the current pace."
		case delta < p.ConfidentDropDelta:
			return "Warning: a substantial drop in performance is forecast. " +
				"The task may have become too hard or too dull. Try simplifying it."
		default:
			return fmt.Sprintf("A good working level in %s, with room to improve reaction speed. "+
				"Regular practice is recommended.", label)
		}

	case BandForming:
		switch {
		case in.Trend > p.FormingTrend && delta > 0:
			return fmt.Sprintf("A positive shift in %s. The child is starting to grasp how the task works. "+
				"Hold the difficulty steady for now to lock in the success.", label)
		case in.Trend < p.FormingDeclineTrend:
			return "Scores are trending down and the child may feel frustrated. " +
				"Offer more hints or step back to an easier level."
		case delta < 0:
			return fmt.Sprintf("Results in %s are unstable and performance is expected to fluctuate. "+
				"A specialist should keep a closer eye on it.", label)
		default:
			return fmt.Sprintf("Moderate progress in %s. The child completes the tasks but needs more time to think. "+
				"Let them work at their own pace.", label)
		}

	default:
		switch {
		case delta > p.BreakthroughGain:
			return fmt.Sprintf("A significant breakthrough in %s is forecast! "+
				"The child seems to have understood the idea of the task. Be sure to encourage these attempts.", label)
		case in.Trend > 0:
			return fmt.Sprintf("First signs of improvement, but the skill in %s is not formed yet. "+
				"Use visual materials and work through tasks together.", label)
		case in.Trend < 0 && in.Current < p.CriticalScore:
			return fmt.Sprintf("Critically low results. The child is not coping with %s. "+
				"Change the teaching approach or pause this exercise for a while.", label)
		default:
			return fmt.Sprintf("Persistent difficulties with %s. "+
				"Break tasks into simpler steps and hold shorter, more frequent sessions.", label)
		}
	}
}

func defaultLabels() map[model.Activity]string {
	return map[model.Activity]string{
		model.ActivityMath:         "math",
		model.ActivityMemory:       "memory games",
		model.ActivityWords:        "word puzzles",
		model.ActivitySound:        "sound games",
		model.ActivitySentences:    "sentence building",
		model.ActivityArticulation: "articulation exercises",
		model.ActivityAttention:    "attention exercises",
	}
}
