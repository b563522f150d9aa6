package assessment

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNoAssessment = core.NewNotFoundError("assessment")
)

type (
	Repository interface {
		// ListQuestions returns the questions of unit ordered by position, with their options ordered by letter.
		ListQuestions(ctx context.Context, unit training.Unit, exec ...core.DBExecutor) ([]Question, error)
		CreateQuestion(ctx context.Context, q Question, exec ...core.DBExecutor) (Question, error)
		training.QuestionIndex
		// MaxAttemptNumber returns 0 when the user has no responses on unit.
		MaxAttemptNumber(ctx context.Context, userID string, unit training.Unit, exec ...core.DBExecutor) (int, error)
		InsertResponses(ctx context.Context, responses []Response, exec ...core.DBExecutor) error
		ListResponses(ctx context.Context, userID string, unit training.Unit, exec ...core.DBExecutor) ([]Response, error)
	}

	// TrainingGate is the part of the training engine that guards assessments.
	TrainingGate interface {
		CheckUnit(ctx context.Context, unit training.Unit) error
		RequireUnlocked(ctx context.Context, userID string, unit training.Unit) error
		OwningModule(ctx context.Context, unit training.Unit) (training.Module, error)
		Summarize(ctx context.Context, userID string) (training.Summary, error)
	}

	ProfileGate interface {
		RequireTrainingAccess(ctx context.Context, usr user.User) error
	}

	// Notifier sends attempt related emails. Calls must not block.
	Notifier interface {
		AssessmentPassed(usr user.User, title string, percentage int)
		AssessmentFailed(usr user.User, title string, percentage int, retakeAt time.Time)
		ModuleCompleted(usr user.User, mod training.Module)
	}

	Certifier interface {
		// Recompute issues the user's certificate if they are eligible.
		Recompute(ctx context.Context, usr user.User) error
	}

	Service struct {
		db        core.DB
		repo      Repository
		store     training.Store
		training  TrainingGate
		profiles  ProfileGate
		grader    *Grader
		cooldown  time.Duration
		notifier  Notifier
		certifier Certifier
		metrics   core.Metrics
		logger    core.Logger
		dispatch  func(fn func())
	}

	Deps struct {
		DB        core.DB
		Repo      Repository
		Store     training.Store
		Training  TrainingGate
		Profiles  ProfileGate
		Notifier  Notifier
		Certifier Certifier
		Metrics   core.Metrics
		Logger    core.Logger
	}
)

func NewService(deps Deps, conf *core.Config) *Service {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Service{
		db:        deps.DB,
		repo:      deps.Repo,
		store:     deps.Store,
		training:  deps.Training,
		profiles:  deps.Profiles,
		grader:    NewGrader(conf.Training.PassPercentage),
		cooldown:  conf.Training.RetakeCooldown,
		notifier:  deps.Notifier,
		certifier: deps.Certifier,
		metrics:   metrics,
		logger:    deps.Logger,
		dispatch:  func(fn func()) { go fn() },
	}
}

func (svc *Service) Grader() *Grader { return svc.grader }

// Questions returns the unit's questions, without their answers, to a user allowed to take it.
func (svc *Service) Questions(ctx context.Context, usr user.User, unit training.Unit) ([]Question, error) {
	if err := svc.admit(ctx, usr, unit); err != nil {
		return nil, err
	}
	questions, err := svc.repo.ListQuestions(ctx, unit)
	if err != nil {
		return nil, errors.Wrap(err, "listing questions")
	}
	if len(questions) == 0 {
		return nil, ErrNoAssessment
	}
	return questions, nil
}

func (svc *Service) CheckRetakeEligibility(ctx context.Context, userID string, unit training.Unit) (Eligibility, error) {
	p, err := svc.store.GetProgress(ctx, userID, unit)
	if err != nil {
		return Eligibility{}, errors.Wrap(err, "getting progress")
	}
	return CheckRetakeEligibility(p, NowFunc().UTC(), svc.cooldown), nil
}

// Submit admits the user (profile, unlock, retake cooldown) then records the attempt.
func (svc *Service) Submit(ctx context.Context, usr user.User, unit training.Unit, answers []Answer) (Result, error) {
	if err := svc.admit(ctx, usr, unit); err != nil {
		return Result{}, err
	}
	elig, err := svc.CheckRetakeEligibility(ctx, usr.ID, unit)
	if err != nil {
		return Result{}, err
	}
	if !elig.CanRetake {
		msg := fmt.Sprintf("you can retake this assessment in %d hour(s)", elig.HoursRemaining)
		return Result{}, core.NewAdmissionError(ReasonRetakeCooldown, msg, elig)
	}
	return svc.RecordAttempt(ctx, usr, unit, answers)
}

func (svc *Service) admit(ctx context.Context, usr user.User, unit training.Unit) error {
	if err := svc.training.CheckUnit(ctx, unit); err != nil {
		return err
	}
	if err := svc.profiles.RequireTrainingAccess(ctx, usr); err != nil {
		return err
	}
	return svc.training.RequireUnlocked(ctx, usr.ID, unit)
}

// RecordAttempt grades answers, appends them to the response ledger and applies the attempt to the
// user's progress, both in one transaction. It does not check the retake cooldown.
// Notifications and the certificate recompute run in the background.
func (svc *Service) RecordAttempt(ctx context.Context, usr user.User, unit training.Unit, answers []Answer) (Result, error) {
	questions, err := svc.repo.ListQuestions(ctx, unit)
	if err != nil {
		return Result{}, errors.Wrap(err, "listing questions")
	}
	if len(questions) == 0 {
		return Result{}, ErrNoAssessment
	}
	grade, err := svc.grader.Grade(questions, answers)
	if err != nil {
		return Result{}, err
	}

	now := NowFunc().UTC()
	result := Result{
		Unit:        unit,
		Score:       grade.Score,
		TotalPoints: grade.Total,
		Percentage:  grade.Percentage,
		Passed:      grade.Passed,
		Questions:   grade.Questions,
	}
	var wasCompleted bool

	err = core.WithTx(ctx, svc.db, func(exec core.DBExecutor) error {
		prev, err := svc.store.GetProgress(ctx, usr.ID, unit, exec)
		if err != nil {
			return errors.Wrap(err, "getting progress")
		}
		wasCompleted = prev.IsCompleted()

		n, err := svc.repo.MaxAttemptNumber(ctx, usr.ID, unit, exec)
		if err != nil {
			return errors.Wrap(err, "getting attempt number")
		}
		result.AttemptNumber = n + 1

		byID := make(map[string]QuestionResult, len(grade.Questions))
		for _, qr := range grade.Questions {
			byID[qr.QuestionID] = qr
		}
		responses := make([]Response, 0, len(answers))
		for _, a := range answers {
			qr := byID[a.QuestionID]
			responses = append(responses, Response{
				UserID:         usr.ID,
				QuestionID:     a.QuestionID,
				Unit:           unit,
				AttemptNumber:  result.AttemptNumber,
				SelectedAnswer: a.Answer,
				IsCorrect:      qr.IsCorrect,
				PointsEarned:   qr.PointsEarned,
				CreatedAt:      now,
			})
		}
		if err = svc.repo.InsertResponses(ctx, responses, exec); err != nil {
			return errors.Wrap(err, "inserting responses")
		}

		result.Progress, err = svc.store.RecordAttempt(ctx, usr.ID, unit,
			training.Attempt{Score: grade.Percentage, Passed: grade.Passed, At: now}, exec)
		return errors.Wrap(err, "recording attempt")
	})
	if err != nil {
		return Result{}, err
	}

	svc.metrics.AttemptGraded(string(unit.Kind), result.Passed)
	svc.dispatch(func() { svc.afterAttempt(usr, result, !wasCompleted && result.Passed) })
	return result, nil
}

// afterAttempt runs the best-effort side effects of an attempt; failures are logged.
func (svc *Service) afterAttempt(usr user.User, result Result, newlyCompleted bool) {
	ctx := context.Background()
	logErr := func(msg string, err error) {
		svc.logger.Error(fmt.Sprintf("assessment.afterAttempt: %s: %v", msg, err), err, usr, result.Unit)
	}

	mod, err := svc.training.OwningModule(ctx, result.Unit)
	if err != nil {
		logErr("getting module", err)
		return
	}
	title := mod.Title
	if result.Unit.Kind == training.KindSection {
		for _, sec := range mod.Sections {
			if sec.ID == result.Unit.ID {
				title = fmt.Sprintf("%s - %s %s", mod.Title, sec.Code, sec.Title)
			}
		}
	}

	if svc.notifier != nil {
		if result.Passed {
			svc.notifier.AssessmentPassed(usr, title, result.Percentage)
		} else {
			svc.notifier.AssessmentFailed(usr, title, result.Percentage, result.Progress.UpdatedAt.Add(svc.cooldown))
		}
	}
	if !newlyCompleted {
		return
	}

	summary, err := svc.training.Summarize(ctx, usr.ID)
	if err != nil {
		logErr("summarizing progress", err)
		return
	}
	moduleDone := true
	for _, id := range summary.Remaining {
		if id == mod.ID {
			moduleDone = false
		}
	}
	if moduleDone && svc.notifier != nil {
		svc.notifier.ModuleCompleted(usr, mod)
	}
	if summary.AllComplete() && svc.certifier != nil {
		if err = svc.certifier.Recompute(ctx, usr); err != nil {
			logErr("recomputing certificate", err)
		}
	}
}

// Responses returns the user's response ledger on unit.
func (svc *Service) Responses(ctx context.Context, userID string, unit training.Unit) ([]Response, error) {
	return svc.repo.ListResponses(ctx, userID, unit)
}

func (svc *Service) CreateQuestion(ctx context.Context, unit training.Unit, nq NewQuestion) (Question, error) {
	if err := svc.training.CheckUnit(ctx, unit); err != nil {
		return Question{}, err
	}
	q := Question{
		Unit:          unit,
		Type:          nq.Type,
		Prompt:        nq.Prompt,
		CorrectAnswer: nq.CorrectAnswer,
		Points:        nq.Points,
		Position:      nq.Position,
		CreatedAt:     NowFunc().UTC(),
	}
	for _, o := range nq.Options {
		q.Options = append(q.Options, Option{Letter: o.Letter, Text: o.Text, IsCorrect: o.IsCorrect})
	}

	err := core.WithTx(ctx, svc.db, func(exec core.DBExecutor) error {
		var err error
		q, err = svc.repo.CreateQuestion(ctx, q, exec)
		return err
	})
	if err != nil {
		return Question{}, errors.Wrap(err, "creating question")
	}
	return q, nil
}
