package learn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/batonhq/baton"
	"github.com/batonhq/baton/event"
	"github.com/batonhq/baton/id"
	"github.com/batonhq/baton/state"
)

const (
	// DefaultTTL is the retention horizon for patterns and feedback.
	// Reinforcement rewrites the pattern, so the horizon runs from last
	// use, not creation.
	DefaultTTL = 2160 * time.Hour

	// DefaultThreshold is the minimum Jaccard similarity for a pattern
	// to match a request. Candidates must be strictly above it.
	DefaultThreshold = 0.3

	// matchLimit caps how many patterns Match returns.
	matchLimit = 10
	// hintLimit caps how many hints Enhance derives from those matches.
	hintLimit = 5
)

// Learner records feedback and serves pattern-based planning advice.
// Methods are safe for concurrent use. Storage failures degrade to no-ops:
// feedback is dropped with a warning and advice queries come back empty.
type Learner struct {
	store     *state.Store
	bus       *event.Bus
	logger    *slog.Logger
	ttl       time.Duration
	threshold float64

	// foldMu serializes pattern read-modify-write cycles so two identical
	// requests cannot both seed a pattern for the same keyword set.
	foldMu sync.Mutex

	recorded   atomic.Int64
	dropped    atomic.Int64
	seeded     atomic.Int64
	reinforced atomic.Int64
}

// Option configures a Learner.
type Option func(*Learner)

// WithBus announces recorded feedback on the given bus.
func WithBus(bus *event.Bus) Option {
	return func(l *Learner) { l.bus = bus }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Learner) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithTTL overrides the retention horizon for patterns and feedback.
func WithTTL(ttl time.Duration) Option {
	return func(l *Learner) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithThreshold overrides the minimum similarity for a pattern match.
func WithThreshold(threshold float64) Option {
	return func(l *Learner) {
		if threshold > 0 && threshold <= 1 {
			l.threshold = threshold
		}
	}
}

// New creates a learner over the given store.
func New(store *state.Store, opts ...Option) *Learner {
	l := &Learner{
		store:     store,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		ttl:       DefaultTTL,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record stamps and persists the feedback, then folds it into the pattern
// library: feedback whose keyword set exactly matches an existing pattern
// of the same category reinforces that pattern, anything else seeds a new
// one. Failures are logged and swallowed; recording never fails a caller.
func (l *Learner) Record(ctx context.Context, fb *Feedback) {
	if fb == nil {
		return
	}

	if fb.ID.IsNil() {
		fb.ID = id.NewFeedbackID()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	if fb.Kind == "" {
		fb.Kind = KindSuccess
	}

	if l.store.Set(ctx, state.FeedbackKey(fb.ID.String()), fb, l.ttl) {
		l.recorded.Add(1)
	} else {
		l.dropped.Add(1)
		l.logger.Warn("learn: feedback dropped",
			slog.String("feedback_id", fb.ID.String()),
			slog.String("kind", string(fb.Kind)),
		)
	}

	patterns := l.fold(ctx, fb)

	l.logger.Info("learn: feedback recorded",
		slog.String("feedback_id", fb.ID.String()),
		slog.String("kind", string(fb.Kind)),
		slog.Int("patterns", patterns),
	)

	if l.bus != nil {
		opts := []event.EmitOption{}
		if fb.UserID != "" {
			opts = append(opts, event.WithUser(fb.UserID))
		}
		if !fb.RunID.IsNil() {
			opts = append(opts, event.WithCorrelation(fb.RunID.String()))
		}
		l.bus.Emit(ctx, event.FeedbackRecorded, "learn", map[string]any{
			"feedback_id":         fb.ID.String(),
			"kind":                string(fb.Kind),
			"patterns_identified": patterns,
		}, opts...)
	}
}

// fold derives a pattern from the feedback and writes it, reinforcing an
// existing pattern when one covers the same keyword set. It returns how
// many patterns were written.
func (l *Learner) fold(ctx context.Context, fb *Feedback) int {
	keywords := Keywords(fb.Prompt)
	if len(keywords) == 0 {
		return 0
	}

	l.foldMu.Lock()
	defer l.foldMu.Unlock()

	now := time.Now().UTC()
	category := seedCategory(fb.Kind)

	for _, p := range l.scan(ctx) {
		if p.Category != category || !sameSet(keywords, p.Keywords) {
			continue
		}
		reinforce(p, fb.outcome(), now)
		if l.store.Set(ctx, state.PatternKey(p.ID.String()), p, l.ttl) {
			l.reinforced.Add(1)
			return 1
		}
		return 0
	}

	p := &Pattern{
		ID:          id.NewPatternID(),
		Keywords:    keywords,
		Category:    category,
		Actions:     fb.Actions,
		Confidence:  seedConfidence(fb.Kind),
		SuccessRate: fb.outcome(),
		UsageCount:  1,
		CreatedAt:   now,
		LastUsed:    now,
	}
	if l.store.Set(ctx, state.PatternKey(p.ID.String()), p, l.ttl) {
		l.seeded.Add(1)
		return 1
	}
	return 0
}

// Reinforce folds one observed outcome into a pattern: usage count up by
// one, confidence nudged up (capped at 1.0), success rate rolled with the
// new observation. The engine calls this when a run that followed the
// pattern's advice reaches a terminal state.
func (l *Learner) Reinforce(ctx context.Context, patternID id.PatternID, succeeded bool) error {
	l.foldMu.Lock()
	defer l.foldMu.Unlock()

	var p Pattern
	if !l.store.Get(ctx, state.PatternKey(patternID.String()), &p) {
		return fmt.Errorf("baton/learn: reinforce %s: %w", patternID, baton.ErrPatternNotFound)
	}

	outcome := 0.0
	if succeeded {
		outcome = 1.0
	}
	reinforce(&p, outcome, time.Now().UTC())

	if !l.store.Set(ctx, state.PatternKey(p.ID.String()), &p, l.ttl) {
		return fmt.Errorf("baton/learn: reinforce %s: store rejected write", patternID)
	}
	l.reinforced.Add(1)
	return nil
}

// reinforce applies the in-place update shared by Record and Reinforce.
// The rolling success rate weighs prior observations by usage count.
func reinforce(p *Pattern, outcome float64, now time.Time) {
	n := float64(p.UsageCount)
	p.SuccessRate = (p.SuccessRate*n + outcome) / (n + 1)
	p.UsageCount++
	p.Confidence = min(p.Confidence+0.1, 1.0)
	p.LastUsed = now
}

// Match returns stored patterns whose triggers are similar to the prompt,
// ranked best first. Patterns at or below the similarity threshold are
// excluded; cautionary patterns rank by similarity alone at the tail.
func (l *Learner) Match(ctx context.Context, prompt string) []Match {
	keywords := Keywords(prompt)
	if len(keywords) == 0 {
		return nil
	}

	var matches []Match
	for _, p := range l.scan(ctx) {
		sim := Jaccard(keywords, p.Keywords)
		if sim <= l.threshold {
			continue
		}
		matches = append(matches, Match{Pattern: p, Similarity: sim})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score() != matches[j].Score() {
			return matches[i].Score() > matches[j].Score()
		}
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		if matches[i].Pattern.UsageCount != matches[j].Pattern.UsageCount {
			return matches[i].Pattern.UsageCount > matches[j].Pattern.UsageCount
		}
		return matches[i].Pattern.ID.String() < matches[j].Pattern.ID.String()
	})

	if len(matches) > matchLimit {
		matches = matches[:matchLimit]
	}
	return matches
}

// Hints distills planner hints from ranked matches. Callers that already
// hold matches (to track which patterns advised a run) use this instead of
// a second Enhance scan.
func Hints(matches []Match) []string {
	if len(matches) == 0 {
		return nil
	}
	if len(matches) > hintLimit {
		matches = matches[:hintLimit]
	}

	hints := make([]string, 0, len(matches))
	for _, m := range matches {
		hints = append(hints, m.Hint())
	}
	return hints
}

// Enhance distills planner hints from the patterns matching a prompt. It
// is fail-open: an empty prompt, no matches, or a degraded store all yield
// nil, and orchestration proceeds unadvised.
func (l *Learner) Enhance(ctx context.Context, prompt string) []string {
	return Hints(l.Match(ctx, prompt))
}

// Feedback loads one stored feedback record.
func (l *Learner) Feedback(ctx context.Context, feedbackID id.FeedbackID) (*Feedback, error) {
	var fb Feedback
	if !l.store.Get(ctx, state.FeedbackKey(feedbackID.String()), &fb) {
		return nil, fmt.Errorf("baton/learn: feedback %s: %w", feedbackID, baton.ErrFeedbackNotFound)
	}
	return &fb, nil
}

// Pattern loads one stored pattern.
func (l *Learner) Pattern(ctx context.Context, patternID id.PatternID) (*Pattern, error) {
	var p Pattern
	if !l.store.Get(ctx, state.PatternKey(patternID.String()), &p) {
		return nil, fmt.Errorf("baton/learn: pattern %s: %w", patternID, baton.ErrPatternNotFound)
	}
	return &p, nil
}

// Patterns returns every stored pattern, most recently used first.
func (l *Learner) Patterns(ctx context.Context) []*Pattern {
	patterns := l.scan(ctx)
	sort.Slice(patterns, func(i, j int) bool {
		if !patterns[i].LastUsed.Equal(patterns[j].LastUsed) {
			return patterns[i].LastUsed.After(patterns[j].LastUsed)
		}
		return patterns[i].ID.String() < patterns[j].ID.String()
	})
	return patterns
}

// scan loads all stored patterns, skipping records that fail to decode.
func (l *Learner) scan(ctx context.Context) []*Pattern {
	keys := l.store.Keys(ctx, state.PatternPrefix)
	patterns := make([]*Pattern, 0, len(keys))
	for _, key := range keys {
		var p Pattern
		if !l.store.Get(ctx, key, &p) {
			continue
		}
		patterns = append(patterns, &p)
	}
	return patterns
}

// Stats is a point-in-time snapshot of learner activity.
type Stats struct {
	Recorded   int64 `json:"recorded"`
	Dropped    int64 `json:"dropped"`
	Seeded     int64 `json:"seeded"`
	Reinforced int64 `json:"reinforced"`
}

// Stats returns the learner's counters.
func (l *Learner) Stats() Stats {
	return Stats{
		Recorded:   l.recorded.Load(),
		Dropped:    l.dropped.Load(),
		Seeded:     l.seeded.Load(),
		Reinforced: l.reinforced.Load(),
	}
}
