package training_test

import (
	"context"
	"errors"
	"io/ioutil"
	"log"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/assessment"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
	"github.com/cadence/academy/services/logger"
	"github.com/cadence/academy/storage/database/inmem"
	"github.com/cadence/academy/tests"
)

type fixture struct {
	users     user.Repository
	catalog   training.Catalog
	store     training.Store
	questions assessment.Repository
	svc       *training.Service
	logger    core.Logger
}

func setup(t *testing.T) *fixture {
	conf := core.NewTestConfig()
	lgr := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	lgr.Enable(false)

	db := inmemdb.Open()
	f := &fixture{
		users:     inmemdb.NewUserRepository(db),
		catalog:   inmemdb.NewCatalogRepository(db),
		store:     inmemdb.NewProgressRepository(db),
		questions: inmemdb.NewAssessmentRepository(db),
		logger:    lgr,
	}
	f.svc = f.newService(f.store)
	return f
}

func (f *fixture) newService(store training.Store) *training.Service {
	eval := training.NewEvaluator(f.catalog, store, 80, nil)
	return training.NewService(f.catalog, store, f.questions, eval, f.logger)
}

func newValidator() *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	return validate
}

// brokenStore fails every progress read.
type brokenStore struct {
	training.Store
}

var errStoreDown = errors.New("store down")

func (brokenStore) ListProgress(context.Context, string, ...core.DBExecutor) ([]training.Progress, error) {
	return nil, errStoreDown
}

func TestService_ListModules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.users, "Trainee", "trainee@cadence.test", "", "", "")

	mod1 := testutil.CreateModule(t, f.catalog, 1, "Foundations")
	mod2 := testutil.CreateModule(t, f.catalog, 2, "Facilitation")
	sec2a := testutil.CreateSection(t, f.catalog, mod2.ID, "2A", 1)
	sec2b := testutil.CreateSection(t, f.catalog, mod2.ID, "2B", 2)
	testutil.PassUnit(t, f.store, usr.ID, training.ModuleUnit(mod1.ID), 85)

	states, err := f.svc.ListModules(ctx, usr.ID)
	require.NoError(t, err)
	require.Len(t, states, 2)

	assert.Equal(t, training.ReasonFirstModule, states[0].Access.Reason)
	assert.True(t, states[0].Complete)
	assert.Equal(t, 85, states[0].Progress.BestScore())
	assert.Empty(t, states[0].Module.Transcript)

	assert.True(t, states[1].Access.Unlocked)
	assert.False(t, states[1].Complete)
	assert.Equal(t, usr.ID, states[1].Progress.UserID)
	assert.Equal(t, training.StatusNotStarted, states[1].Progress.Status)
	require.Len(t, states[1].Sections, 2)
	assert.Equal(t, sec2a.ID, states[1].Sections[0].Section.ID)
	assert.Equal(t, training.ReasonFirstSection, states[1].Sections[0].Access.Reason)
	assert.Equal(t, sec2b.ID, states[1].Sections[1].Section.ID)
	assert.Equal(t, training.ReasonPreviousSectionIncomplete, states[1].Sections[1].Access.Reason)
	assert.Empty(t, states[1].Sections[0].Section.Transcript)
	assert.Nil(t, states[1].Module.Sections)

	t.Run("progress unavailable", func(t *testing.T) {
		states, err := f.newService(brokenStore{f.store}).ListModules(ctx, usr.ID)
		require.NoError(t, err)
		require.Len(t, states, 2)
		assert.Equal(t, training.StatusNotStarted, states[0].Progress.Status)
		assert.False(t, states[0].Complete)
		assert.True(t, states[0].Access.Unlocked)
		assert.False(t, states[1].Access.Unlocked)
	})
}

func TestService_GetModule(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.users, "Trainee", "trainee@cadence.test", "", "", "")
	mod1 := testutil.CreateModule(t, f.catalog, 1, "Foundations")
	mod2 := testutil.CreateModule(t, f.catalog, 2, "Facilitation")

	_, err := f.svc.GetModule(ctx, usr.ID, "lol")
	assert.True(t, core.IsNotFound(err))

	_, err = f.svc.GetModule(ctx, usr.ID, mod2.ID)
	ae, ok := core.AsAdmissionError(err)
	require.True(t, ok, "GetModule() error = %v", err)
	assert.Equal(t, string(training.ReasonPreviousModuleIncomplete), ae.Reason)

	testutil.PassUnit(t, f.store, usr.ID, training.ModuleUnit(mod1.ID), 70)
	_, err = f.svc.GetModule(ctx, usr.ID, mod2.ID)
	ae, ok = core.AsAdmissionError(err)
	require.True(t, ok)
	assert.Equal(t, string(training.ReasonScoreTooLow), ae.Reason)

	testutil.PassUnit(t, f.store, usr.ID, training.ModuleUnit(mod1.ID), 95)
	state, err := f.svc.GetModule(ctx, usr.ID, mod2.ID)
	require.NoError(t, err)
	assert.Equal(t, "transcript of Facilitation", state.Module.Transcript)
	assert.Equal(t, training.ReasonRequirementsMet, state.Access.Reason)

	t.Run("evaluation needs progress", func(t *testing.T) {
		_, err := f.newService(brokenStore{f.store}).GetModule(ctx, usr.ID, mod2.ID)
		assert.True(t, errors.Is(err, errStoreDown), "GetModule() error = %v", err)
	})
}

func TestService_GetSection(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.users, "Trainee", "trainee@cadence.test", "", "", "")
	mod := testutil.CreateModule(t, f.catalog, 1, "Foundations")
	secA := testutil.CreateSection(t, f.catalog, mod.ID, "1A", 1)
	secB := testutil.CreateSection(t, f.catalog, mod.ID, "1B", 2)

	state, err := f.svc.GetSection(ctx, usr.ID, secA.ID)
	require.NoError(t, err)
	assert.Equal(t, "transcript of 1A", state.Section.Transcript)

	_, err = f.svc.GetSection(ctx, usr.ID, secB.ID)
	ae, ok := core.AsAdmissionError(err)
	require.True(t, ok)
	assert.Equal(t, string(training.ReasonPreviousSectionIncomplete), ae.Reason)

	testutil.PassUnit(t, f.store, usr.ID, training.SectionUnit(secA.ID), 80)
	_, err = f.svc.GetSection(ctx, usr.ID, secB.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetSection(ctx, usr.ID, "lol")
	assert.Equal(t, training.ErrSectionNotFound, err)
}

func TestService_TrackVideo(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.users, "Trainee", "trainee@cadence.test", "", "", "")
	mod1 := testutil.CreateModule(t, f.catalog, 1, "Foundations")
	mod2 := testutil.CreateModule(t, f.catalog, 2, "Facilitation")
	unit := training.ModuleUnit(mod1.ID)

	for _, pct := range []int{-1, 101} {
		_, err := f.svc.TrackVideo(ctx, usr.ID, unit, pct)
		var verr *core.ValidationError
		assert.True(t, errors.As(err, &verr), "TrackVideo(%d) error = %v", pct, err)
	}

	_, err := f.svc.TrackVideo(ctx, usr.ID, training.ModuleUnit(mod2.ID), 50)
	_, ok := core.AsAdmissionError(err)
	assert.True(t, ok, "locked module must not be tracked")

	p, err := f.svc.TrackVideo(ctx, usr.ID, unit, training.VideoWatchedThreshold-1)
	require.NoError(t, err)
	assert.False(t, p.VideoWatched)
	assert.Equal(t, training.StatusInProgress, p.Status)

	p, err = f.svc.TrackVideo(ctx, usr.ID, unit, training.VideoWatchedThreshold)
	require.NoError(t, err)
	assert.True(t, p.VideoWatched)

	p, err = f.svc.TrackVideo(ctx, usr.ID, unit, 10)
	require.NoError(t, err)
	assert.True(t, p.VideoWatched)
	assert.Equal(t, training.VideoWatchedThreshold, p.VideoWatchPercentage)

	p, err = f.svc.TrackTranscript(ctx, usr.ID, unit)
	require.NoError(t, err)
	assert.True(t, p.TranscriptViewed)
	assert.True(t, p.VideoWatched)
}

func TestService_atomicOrSectioned(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.users, "Trainee", "trainee@cadence.test", "", "", "")
	sectioned := testutil.CreateModule(t, f.catalog, 1, "Foundations")
	sec := testutil.CreateSection(t, f.catalog, sectioned.ID, "1A", 1)
	atomic := testutil.CreateModule(t, f.catalog, 2, "Facilitation")
	testutil.CreateMCQ(t, f.questions, training.ModuleUnit(atomic.ID), 1, 1)

	t.Run("module with sections", func(t *testing.T) {
		unit := training.ModuleUnit(sectioned.ID)
		assert.Equal(t, training.ErrModuleHasSections, f.svc.CheckUnit(ctx, unit))

		_, err := f.svc.TrackVideo(ctx, usr.ID, unit, 50)
		assert.Equal(t, training.ErrModuleHasSections, err)
		_, err = f.svc.TrackTranscript(ctx, usr.ID, unit)
		assert.Equal(t, training.ErrModuleHasSections, err)

		records, err := f.store.ListProgress(ctx, usr.ID)
		require.NoError(t, err)
		assert.Empty(t, records)

		// its sections are the units to work on
		assert.NoError(t, f.svc.CheckUnit(ctx, training.SectionUnit(sec.ID)))
		_, err = f.svc.TrackTranscript(ctx, usr.ID, training.SectionUnit(sec.ID))
		assert.NoError(t, err)
	})

	t.Run("module with questions", func(t *testing.T) {
		_, err := f.svc.CreateSection(ctx, training.NewSection{ModuleID: atomic.ID, Code: "2A", Position: 1, Title: "Opening"})
		assert.Equal(t, training.ErrModuleHasQuestions, err)

		mod, err := f.catalog.GetModule(ctx, atomic.ID)
		require.NoError(t, err)
		assert.False(t, mod.HasSections())
		assert.NoError(t, f.svc.CheckUnit(ctx, training.ModuleUnit(atomic.ID)))
	})

	t.Run("unknown unit", func(t *testing.T) {
		assert.True(t, core.IsNotFound(f.svc.CheckUnit(ctx, training.ModuleUnit("lol"))))
		assert.True(t, core.IsNotFound(f.svc.CheckUnit(ctx, training.SectionUnit("lol"))))
	})
}

func TestService_CreateSection(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	training.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { training.NowFunc = time.Now })

	mod, err := f.svc.CreateModule(ctx, training.NewModule{Number: 1, Title: "Foundations"})
	require.NoError(t, err)
	assert.Equal(t, now, mod.CreatedAt)

	sec, err := f.svc.CreateSection(ctx, training.NewSection{ModuleID: mod.ID, Code: "1A", Position: 1, Title: "Opening"})
	require.NoError(t, err)
	assert.Equal(t, now, sec.CreatedAt)
	assert.Equal(t, mod.ID, sec.ModuleID)

	_, err = f.svc.CreateSection(ctx, training.NewSection{ModuleID: "lol", Code: "1B", Position: 2, Title: "Closing"})
	assert.True(t, core.IsNotFound(err), "CreateSection() error = %v", err)
}

func TestService_Summarize(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.users, "Trainee", "trainee@cadence.test", "", "", "")

	s, err := f.svc.Summarize(ctx, usr.ID)
	require.NoError(t, err)
	assert.False(t, s.AllComplete(), "an empty catalog is never complete")

	mod1 := testutil.CreateModule(t, f.catalog, 1, "Foundations")
	mod2 := testutil.CreateModule(t, f.catalog, 2, "Facilitation")
	secA := testutil.CreateSection(t, f.catalog, mod2.ID, "2A", 1)
	secB := testutil.CreateSection(t, f.catalog, mod2.ID, "2B", 2)

	testutil.PassUnit(t, f.store, usr.ID, training.ModuleUnit(mod1.ID), 90)
	testutil.PassUnit(t, f.store, usr.ID, training.SectionUnit(secA.ID), 85)

	s, err = f.svc.Summarize(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalModules)
	assert.Equal(t, 1, s.CompletedModules)
	assert.Equal(t, []string{mod2.ID}, s.Remaining)
	assert.Equal(t, 66, s.AverageScore) // (90 + floor(85/2)) / 2

	testutil.PassUnit(t, f.store, usr.ID, training.SectionUnit(secB.ID), 80)
	s, err = f.svc.Summarize(ctx, usr.ID)
	require.NoError(t, err)
	assert.True(t, s.AllComplete())
	assert.Empty(t, s.Remaining)
	assert.Equal(t, 86, s.AverageScore) // (90 + 82) / 2
}

func TestService_ImportCatalog(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	validate := newValidator()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	training.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { training.NowFunc = time.Now })

	n, err := f.svc.ImportCatalog(ctx, nil, validate, []training.CatalogModule{
		{NewModule: training.NewModule{Number: 1, Title: " Foundations "}},
		{
			NewModule: training.NewModule{Number: 2, Title: "Facilitation"},
			Sections: []training.NewSection{
				{Code: "2B", Position: 2, Title: "Closing"},
				{Code: "2A", Position: 1, Title: "Opening"},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	modules, err := f.catalog.ListModules(ctx)
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, "Foundations", modules[0].Title)
	require.Len(t, modules[1].Sections, 2)
	assert.Equal(t, "2A", modules[1].Sections[0].Code)
	assert.Equal(t, now, modules[0].CreatedAt)
	assert.Equal(t, now, modules[1].Sections[0].CreatedAt)

	_, err = f.svc.ImportCatalog(ctx, nil, validate, []training.CatalogModule{
		{NewModule: training.NewModule{Number: 1, Title: "Again"}},
	})
	assert.True(t, errors.Is(err, training.ErrModuleExists), "ImportCatalog() error = %v", err)

	_, err = f.svc.ImportCatalog(ctx, nil, validate, []training.CatalogModule{
		{NewModule: training.NewModule{Number: 3, Title: "   "}},
	})
	assert.Error(t, err)
}

func TestMigrator_MoveProgress(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, f.users, "Ada", "ada@cadence.test", "", "", "")
	bob := testutil.CreateUser(t, f.users, "Bob", "bob@cadence.test", "", "", "")
	mod := testutil.CreateModule(t, f.catalog, 1, "Foundations")
	secA := testutil.CreateSection(t, f.catalog, mod.ID, "1A", 1)
	secB := testutil.CreateSection(t, f.catalog, mod.ID, "1B", 2)
	from, to := training.SectionUnit(secB.ID), training.SectionUnit(secA.ID)

	testutil.PassUnit(t, f.store, ada.ID, from, 90)
	testutil.PassUnit(t, f.store, bob.ID, from, 60)
	testutil.PassUnit(t, f.store, bob.ID, to, 85)

	m := training.NewMigrator(nil, f.store, f.logger)

	_, err := m.MoveProgress(ctx, from, from)
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr))

	report, err := m.MoveProgress(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, training.MoveReport{Moved: 1, Merged: 1}, report)

	left, err := f.store.ListUnitProgress(ctx, from)
	require.NoError(t, err)
	assert.Empty(t, left)

	p, err := f.store.GetProgress(ctx, ada.ID, to)
	require.NoError(t, err)
	assert.Equal(t, to, p.Unit)
	assert.Equal(t, 90, p.BestScore())
	assert.Equal(t, 1, p.AssessmentAttempts)

	p, err = f.store.GetProgress(ctx, bob.ID, to)
	require.NoError(t, err)
	assert.Equal(t, 85, p.HighestScore)
	assert.Equal(t, 2, p.AssessmentAttempts)
	assert.Equal(t, training.StatusCompleted, p.Status)

	// moving again is a no-op
	report, err = m.MoveProgress(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, training.MoveReport{}, report)
}
