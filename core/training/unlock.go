package training

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
)

type Reason string

const (
	ReasonFirstModule               Reason = "first_module"
	ReasonNoPreviousModule          Reason = "no_previous_module"
	ReasonPreviousModuleIncomplete  Reason = "previous_module_incomplete"
	ReasonScoreTooLow               Reason = "score_too_low"
	ReasonRequirementsMet           Reason = "requirements_met"
	ReasonFirstSection              Reason = "first_section"
	ReasonPreviousSectionIncomplete Reason = "previous_section_incomplete"
)

// Decision is the outcome of an unlock evaluation.
type Decision struct {
	Unlocked          bool   `json:"unlocked"`
	Reason            Reason `json:"reason"`
	RequiredModuleID  string `json:"required_module_id,omitempty"`
	RequiredSectionID string `json:"required_section_id,omitempty"`
	RequiredScore     int    `json:"required_score,omitempty"`
	CurrentScore      int    `json:"current_score"`
}

// AdmissionError converts a locked decision into the error returned to callers.
func (d Decision) AdmissionError() error {
	if d.Unlocked {
		return nil
	}
	msg := "complete the previous module first"
	switch d.Reason {
	case ReasonScoreTooLow:
		msg = "a higher score on the previous assessment is required"
	case ReasonPreviousSectionIncomplete:
		msg = "complete the previous section first"
	}
	return core.NewAdmissionError(string(d.Reason), msg, d)
}

// ProgressIndex maps units to a user's progress records.
type ProgressIndex map[Unit]Progress

func IndexProgress(records []Progress) ProgressIndex {
	idx := make(ProgressIndex, len(records))
	for _, p := range records {
		idx[p.Unit] = p
	}
	return idx
}

// Get returns the record of unit, or a not started one.
func (idx ProgressIndex) Get(unit Unit) Progress {
	if p, ok := idx[unit]; ok {
		return p
	}
	return NotStarted("", unit)
}

// Evaluator decides whether a user may access a module or section. It never writes.
type Evaluator struct {
	catalog   Catalog
	store     Store
	passScore int
	metrics   core.Metrics
}

func NewEvaluator(catalog Catalog, store Store, passScore int, metrics core.Metrics) *Evaluator {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Evaluator{catalog: catalog, store: store, passScore: passScore, metrics: metrics}
}

func (ev *Evaluator) PassScore() int { return ev.passScore }

func (ev *Evaluator) Evaluate(ctx context.Context, userID, moduleID string) (Decision, error) {
	modules, idx, err := ev.load(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	target, ok := findModule(modules, moduleID)
	if !ok {
		return Decision{}, ErrModuleNotFound
	}
	d := DecideModule(target, modules, idx, ev.passScore)
	ev.metrics.UnlockDecided(string(d.Reason))
	return d, nil
}

func (ev *Evaluator) EvaluateSection(ctx context.Context, userID, sectionID string) (Decision, error) {
	sec, err := ev.catalog.GetSection(ctx, sectionID)
	if err != nil {
		return Decision{}, err
	}
	modules, idx, err := ev.load(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	mod, ok := findModule(modules, sec.ModuleID)
	if !ok {
		return Decision{}, ErrModuleNotFound
	}
	d := DecideSection(sec, mod, modules, idx, ev.passScore)
	ev.metrics.UnlockDecided(string(d.Reason))
	return d, nil
}

// EvaluateUnit dispatches on the unit kind.
func (ev *Evaluator) EvaluateUnit(ctx context.Context, userID string, unit Unit) (Decision, error) {
	if unit.Kind == KindSection {
		return ev.EvaluateSection(ctx, userID, unit.ID)
	}
	return ev.Evaluate(ctx, userID, unit.ID)
}

func (ev *Evaluator) load(ctx context.Context, userID string) ([]Module, ProgressIndex, error) {
	modules, err := ev.catalog.ListModules(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "listing modules")
	}
	records, err := ev.store.ListProgress(ctx, userID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "listing progress")
	}
	return modules, IndexProgress(records), nil
}

// DecideModule evaluates target against the previous module by number.
// modules need not be sorted.
func DecideModule(target Module, modules []Module, idx ProgressIndex, passScore int) Decision {
	first := true
	var prev *Module
	for i := range modules {
		m := &modules[i]
		if m.Number < target.Number {
			first = false
		}
		if m.Number == target.Number-1 {
			prev = m
		}
	}
	if first {
		return Decision{Unlocked: true, Reason: ReasonFirstModule}
	}
	if prev == nil {
		return Decision{Unlocked: true, Reason: ReasonNoPreviousModule}
	}

	if !prev.HasSections() {
		p := idx.Get(ModuleUnit(prev.ID))
		return decideCompleted(p, passScore, Decision{RequiredModuleID: prev.ID}, ReasonPreviousModuleIncomplete, false)
	}

	// sections take precedence over any module-level record
	for _, sec := range sortedSections(prev.Sections) {
		p := idx.Get(SectionUnit(sec.ID))
		d := decideCompleted(p, passScore,
			Decision{RequiredModuleID: prev.ID, RequiredSectionID: sec.ID}, ReasonPreviousModuleIncomplete, true)
		if !d.Unlocked {
			return d
		}
	}
	return Decision{Unlocked: true, Reason: ReasonRequirementsMet}
}

// DecideSection applies the module decision first, then requires the previous section of the same module.
func DecideSection(sec Section, mod Module, modules []Module, idx ProgressIndex, passScore int) Decision {
	if d := DecideModule(mod, modules, idx, passScore); !d.Unlocked {
		return d
	}

	var prev *Section
	for _, s := range sortedSections(mod.Sections) {
		if s.Position >= sec.Position {
			break
		}
		s := s
		prev = &s
	}
	if prev == nil {
		return Decision{Unlocked: true, Reason: ReasonFirstSection}
	}

	p := idx.Get(SectionUnit(prev.ID))
	return decideCompleted(p, passScore,
		Decision{RequiredModuleID: mod.ID, RequiredSectionID: prev.ID}, ReasonPreviousSectionIncomplete, true)
}

// decideCompleted checks a prerequisite record. Sections additionally need the video watched
// and the transcript viewed.
func decideCompleted(p Progress, passScore int, base Decision, incomplete Reason, strict bool) Decision {
	done := p.AssessmentCompleted
	if strict {
		done = done && p.VideoWatched && p.TranscriptViewed
	}
	if !done {
		base.Reason = incomplete
		return base
	}
	if score := p.BestScore(); score < passScore {
		base.Reason = ReasonScoreTooLow
		base.RequiredScore = passScore
		base.CurrentScore = score
		return base
	}
	return Decision{Unlocked: true, Reason: ReasonRequirementsMet}
}

func findModule(modules []Module, id string) (Module, bool) {
	for _, m := range modules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}

func sortedSections(sections []Section) []Section {
	out := make([]Section, len(sections))
	copy(out, sections)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
