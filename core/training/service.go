package training

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
)

// VideoWatchedThreshold is the watch percentage from which a video counts as watched.
const VideoWatchedThreshold = 90

var NowFunc = time.Now // mockable

type (
	SectionState struct {
		Section  Section  `json:"section"`
		Progress Progress `json:"progress"`
		Access   Decision `json:"access"`
	}

	ModuleState struct {
		Module   Module         `json:"module"`
		Progress Progress       `json:"progress"`
		Access   Decision       `json:"access"`
		Complete bool           `json:"complete"`
		Sections []SectionState `json:"sections,omitempty"`
	}

	// Summary is a user's standing over the whole catalog.
	Summary struct {
		TotalModules     int      `json:"total_modules"`
		CompletedModules int      `json:"completed_modules"`
		AverageScore     int      `json:"average_score"`
		Remaining        []string `json:"remaining_module_ids"`
	}

	Service struct {
		catalog   Catalog
		store     Store
		questions QuestionIndex
		eval      *Evaluator
		logger    core.Logger
	}
)

func NewService(catalog Catalog, store Store, questions QuestionIndex, eval *Evaluator, logger core.Logger) *Service {
	return &Service{catalog: catalog, store: store, questions: questions, eval: eval, logger: logger}
}

func (svc *Service) Evaluator() *Evaluator { return svc.eval }

// ListModules returns every module with the user's progress and access decision.
// When progress cannot be read, every module falls back to not started.
func (svc *Service) ListModules(ctx context.Context, userID string) ([]ModuleState, error) {
	modules, err := svc.catalog.ListModules(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing modules")
	}
	idx := svc.progressIndex(ctx, userID)
	pass := svc.eval.PassScore()

	states := make([]ModuleState, 0, len(modules))
	for _, mod := range modules {
		d := DecideModule(mod, modules, idx, pass)
		state := ModuleState{
			Module:   mod,
			Progress: withUser(idx.Get(ModuleUnit(mod.ID)), userID),
			Access:   d,
			Complete: ModuleComplete(mod, idx, pass),
		}
		state.Module.Transcript = ""
		for _, sec := range sortedSections(mod.Sections) {
			sec.Transcript = ""
			state.Sections = append(state.Sections, SectionState{
				Section:  sec,
				Progress: withUser(idx.Get(SectionUnit(sec.ID)), userID),
				Access:   DecideSection(sec, mod, modules, idx, pass),
			})
		}
		state.Module.Sections = nil
		states = append(states, state)
	}
	return states, nil
}

func (svc *Service) progressIndex(ctx context.Context, userID string) ProgressIndex {
	records, err := svc.store.ListProgress(ctx, userID)
	if err != nil {
		svc.logger.Warn("training.ListModules: progress unavailable, using defaults", err)
		return ProgressIndex{}
	}
	return IndexProgress(records)
}

func withUser(p Progress, userID string) Progress {
	p.UserID = userID
	return p
}

// GetModule returns a module's full content if it is unlocked for the user.
func (svc *Service) GetModule(ctx context.Context, userID, moduleID string) (ModuleState, error) {
	mod, err := svc.catalog.GetModule(ctx, moduleID)
	if err != nil {
		return ModuleState{}, err
	}
	d, err := svc.eval.Evaluate(ctx, userID, moduleID)
	if err != nil {
		return ModuleState{}, err
	}
	if !d.Unlocked {
		return ModuleState{}, d.AdmissionError()
	}
	p, err := svc.store.GetProgress(ctx, userID, ModuleUnit(mod.ID))
	if err != nil {
		return ModuleState{}, errors.Wrap(err, "getting progress")
	}
	return ModuleState{Module: mod, Progress: p, Access: d}, nil
}

// GetSection returns a section's full content if it is unlocked for the user.
func (svc *Service) GetSection(ctx context.Context, userID, sectionID string) (SectionState, error) {
	sec, err := svc.catalog.GetSection(ctx, sectionID)
	if err != nil {
		return SectionState{}, err
	}
	d, err := svc.eval.EvaluateSection(ctx, userID, sectionID)
	if err != nil {
		return SectionState{}, err
	}
	if !d.Unlocked {
		return SectionState{}, d.AdmissionError()
	}
	p, err := svc.store.GetProgress(ctx, userID, SectionUnit(sec.ID))
	if err != nil {
		return SectionState{}, errors.Wrap(err, "getting progress")
	}
	return SectionState{Section: sec, Progress: p, Access: d}, nil
}

// CheckUnit returns a not found error unless unit exists in the catalog, and
// ErrModuleHasSections for a module that is only worked on through its sections.
func (svc *Service) CheckUnit(ctx context.Context, unit Unit) error {
	switch unit.Kind {
	case KindModule:
		mod, err := svc.catalog.GetModule(ctx, unit.ID)
		if err != nil {
			return err
		}
		if mod.HasSections() {
			return ErrModuleHasSections
		}
		return nil
	case KindSection:
		_, err := svc.catalog.GetSection(ctx, unit.ID)
		return err
	default:
		return core.NewNotFoundError("unit")
	}
}

// RequireUnlocked returns an admission error when unit is locked for the user.
func (svc *Service) RequireUnlocked(ctx context.Context, userID string, unit Unit) error {
	d, err := svc.eval.EvaluateUnit(ctx, userID, unit)
	if err != nil {
		return err
	}
	return d.AdmissionError()
}

func (svc *Service) TrackVideo(ctx context.Context, userID string, unit Unit, percentage int) (Progress, error) {
	if percentage < 0 || percentage > 100 {
		return Progress{}, core.NewValidationError(nil,
			core.FieldError{Field: "percentage", Error: "percentage must be between 0 and 100"})
	}
	if err := svc.CheckUnit(ctx, unit); err != nil {
		return Progress{}, err
	}
	if err := svc.RequireUnlocked(ctx, userID, unit); err != nil {
		return Progress{}, err
	}
	watched := percentage >= VideoWatchedThreshold
	return svc.store.UpsertProgress(ctx, userID, unit, ProgressUpdate{
		VideoWatched:         &watched,
		VideoWatchPercentage: &percentage,
	})
}

func (svc *Service) TrackTranscript(ctx context.Context, userID string, unit Unit) (Progress, error) {
	if err := svc.CheckUnit(ctx, unit); err != nil {
		return Progress{}, err
	}
	if err := svc.RequireUnlocked(ctx, userID, unit); err != nil {
		return Progress{}, err
	}
	viewed := true
	return svc.store.UpsertProgress(ctx, userID, unit, ProgressUpdate{TranscriptViewed: &viewed})
}

func (svc *Service) UserProgress(ctx context.Context, userID string) ([]Progress, error) {
	return svc.store.ListProgress(ctx, userID)
}

// OwningModule returns the module a unit belongs to.
func (svc *Service) OwningModule(ctx context.Context, unit Unit) (Module, error) {
	id := unit.ID
	if unit.Kind == KindSection {
		sec, err := svc.catalog.GetSection(ctx, unit.ID)
		if err != nil {
			return Module{}, err
		}
		id = sec.ModuleID
	}
	return svc.catalog.GetModule(ctx, id)
}

// Summarize computes the user's standing over the catalog.
func (svc *Service) Summarize(ctx context.Context, userID string) (Summary, error) {
	modules, err := svc.catalog.ListModules(ctx)
	if err != nil {
		return Summary{}, errors.Wrap(err, "listing modules")
	}
	records, err := svc.store.ListProgress(ctx, userID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "listing progress")
	}
	return Summarize(modules, IndexProgress(records), svc.eval.PassScore()), nil
}

func (svc *Service) CreateModule(ctx context.Context, nm NewModule) (Module, error) {
	return svc.catalog.CreateModule(ctx, Module{
		Number:          nm.Number,
		Title:           nm.Title,
		Description:     nm.Description,
		VideoURL:        nm.VideoURL,
		Transcript:      nm.Transcript,
		DurationMinutes: nm.DurationMinutes,
		CreatedAt:       NowFunc().UTC(),
	})
}

func (svc *Service) CreateSection(ctx context.Context, ns NewSection) (Section, error) {
	if _, err := svc.catalog.GetModule(ctx, ns.ModuleID); err != nil {
		return Section{}, err
	}
	has, err := svc.questions.HasQuestions(ctx, ModuleUnit(ns.ModuleID))
	if err != nil {
		return Section{}, errors.Wrap(err, "checking module questions")
	}
	if has {
		return Section{}, ErrModuleHasQuestions
	}
	return svc.catalog.CreateSection(ctx, Section{
		ModuleID:   ns.ModuleID,
		Code:       ns.Code,
		Position:   ns.Position,
		Title:      ns.Title,
		VideoURL:   ns.VideoURL,
		Transcript: ns.Transcript,
		CreatedAt:  NowFunc().UTC(),
	})
}

// ImportCatalog validates and creates modules with their sections in one transaction.
func (svc *Service) ImportCatalog(ctx context.Context, db core.DB, validate *validator.Validate, modules []CatalogModule) (int, error) {
	var n int
	err := core.WithTx(ctx, db, func(exec core.DBExecutor) error {
		for _, cm := range modules {
			nm := cm.NewModule
			if err := nm.Validate(validate); err != nil {
				return err
			}
			mod, err := svc.catalog.CreateModule(ctx, Module{
				Number:          nm.Number,
				Title:           nm.Title,
				Description:     nm.Description,
				VideoURL:        nm.VideoURL,
				Transcript:      nm.Transcript,
				DurationMinutes: nm.DurationMinutes,
				CreatedAt:       NowFunc().UTC(),
			}, exec)
			if err != nil {
				return errors.Wrapf(err, "creating module %d", nm.Number)
			}
			for _, ns := range cm.Sections {
				ns.ModuleID = mod.ID
				if err = ns.Validate(validate); err != nil {
					return err
				}
				if _, err = svc.catalog.CreateSection(ctx, Section{
					ModuleID:   mod.ID,
					Code:       ns.Code,
					Position:   ns.Position,
					Title:      ns.Title,
					VideoURL:   ns.VideoURL,
					Transcript: ns.Transcript,
					CreatedAt:  NowFunc().UTC(),
				}, exec); err != nil {
					return errors.Wrapf(err, "creating section %s", ns.Code)
				}
			}
			n++
		}
		return nil
	})
	return n, err
}

// CatalogModule is a module with its sections, as read from a catalog file.
type CatalogModule struct {
	NewModule `mapstructure:",squash"`
	Sections  []NewSection `json:"sections" mapstructure:"sections"`
}

// ModuleComplete reports whether a module is completed: its own record for atomic modules,
// every section otherwise.
func ModuleComplete(mod Module, idx ProgressIndex, passScore int) bool {
	if !mod.HasSections() {
		return decideCompleted(idx.Get(ModuleUnit(mod.ID)), passScore, Decision{}, ReasonPreviousModuleIncomplete, false).Unlocked
	}
	for _, sec := range mod.Sections {
		if !decideCompleted(idx.Get(SectionUnit(sec.ID)), passScore, Decision{}, ReasonPreviousModuleIncomplete, true).Unlocked {
			return false
		}
	}
	return true
}

// ModuleScore is the best score of an atomic module, or the floored mean of its sections' best scores.
func ModuleScore(mod Module, idx ProgressIndex) int {
	if !mod.HasSections() {
		return idx.Get(ModuleUnit(mod.ID)).BestScore()
	}
	var sum int
	for _, sec := range mod.Sections {
		sum += idx.Get(SectionUnit(sec.ID)).BestScore()
	}
	return sum / len(mod.Sections)
}

func Summarize(modules []Module, idx ProgressIndex, passScore int) Summary {
	s := Summary{TotalModules: len(modules), Remaining: make([]string, 0)}
	var sum int
	for _, mod := range modules {
		if ModuleComplete(mod, idx, passScore) {
			s.CompletedModules++
		} else {
			s.Remaining = append(s.Remaining, mod.ID)
		}
		sum += ModuleScore(mod, idx)
	}
	if s.TotalModules > 0 {
		s.AverageScore = core.RoundPercent(sum, 100*s.TotalModules)
	}
	return s
}

// AllComplete reports whether every module of a non-empty catalog is completed.
func (s Summary) AllComplete() bool {
	return s.TotalModules > 0 && s.CompletedModules == s.TotalModules
}
