package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/assessment"
	"github.com/cadence/academy/core/training"
)

type questionRow struct {
	ID            string    `db:"id"`
	UnitKind      string    `db:"unit_kind"`
	UnitID        string    `db:"unit_id"`
	Type          string    `db:"type"`
	Prompt        string    `db:"prompt"`
	CorrectAnswer string    `db:"correct_answer"`
	Points        int       `db:"points"`
	Position      int       `db:"position"`
	CreatedAt     time.Time `db:"created_at"`
}

type optionRow struct {
	ID         string `db:"id"`
	QuestionID string `db:"question_id"`
	Letter     string `db:"letter"`
	Text       string `db:"text"`
	IsCorrect  bool   `db:"is_correct"`
}

type responseRow struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	QuestionID     string    `db:"question_id"`
	UnitKind       string    `db:"unit_kind"`
	UnitID         string    `db:"unit_id"`
	AttemptNumber  int       `db:"attempt_number"`
	SelectedAnswer string    `db:"selected_answer"`
	IsCorrect      bool      `db:"is_correct"`
	PointsEarned   int       `db:"points_earned"`
	CreatedAt      time.Time `db:"created_at"`
}

type assessmentRepository struct {
	exec core.DBExecutor
}

var _ assessment.Repository = (*assessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(exec core.DBExecutor) assessment.Repository {
	return &assessmentRepository{exec: exec}
}

func (repo assessmentRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.GetExec(repo.exec, svcExec)
}

func (repo assessmentRepository) ListQuestions(ctx context.Context, unit training.Unit, exec ...core.DBExecutor) ([]assessment.Question, error) {
	if _, err := uuid.Parse(unit.ID); err != nil {
		return []assessment.Question{}, nil
	}
	db := repo.getExec(exec)

	var rows []questionRow
	q := `SELECT id, unit_kind, unit_id, type, prompt, correct_answer, points, position, created_at
		FROM questions WHERE unit_kind = $1 AND unit_id = $2 ORDER BY position, created_at`
	if err := selectContext(ctx, db, &rows, q, unit.Kind, unit.ID); err != nil {
		return nil, errors.Wrap(err, "listing questions")
	}
	questions := make([]assessment.Question, 0, len(rows))
	if len(rows) == 0 {
		return questions, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	var opts []optionRow
	q = "SELECT id, question_id, letter, text, is_correct FROM question_options WHERE question_id IN (?) ORDER BY letter"
	if err := selectIn(ctx, db, &opts, q, ids); err != nil {
		return nil, errors.Wrap(err, "listing question options")
	}
	byQuestion := make(map[string][]assessment.Option)
	for _, o := range opts {
		byQuestion[o.QuestionID] = append(byQuestion[o.QuestionID], assessment.Option(o))
	}

	for _, r := range rows {
		questions = append(questions, assessment.Question{
			ID:            r.ID,
			Unit:          training.Unit{Kind: training.UnitKind(r.UnitKind), ID: r.UnitID},
			Type:          assessment.QuestionType(r.Type),
			Prompt:        r.Prompt,
			CorrectAnswer: r.CorrectAnswer,
			Points:        r.Points,
			Position:      r.Position,
			Options:       byQuestion[r.ID],
			CreatedAt:     r.CreatedAt.UTC(),
		})
	}
	return questions, nil
}

func (repo assessmentRepository) HasQuestions(ctx context.Context, unit training.Unit, exec ...core.DBExecutor) (bool, error) {
	if _, err := uuid.Parse(unit.ID); err != nil {
		return false, nil
	}
	var found []bool
	q := "SELECT EXISTS (SELECT 1 FROM questions WHERE unit_kind = $1 AND unit_id = $2)"
	if err := selectContext(ctx, repo.getExec(exec), &found, q, unit.Kind, unit.ID); err != nil {
		return false, errors.Wrap(err, "checking questions")
	}
	return len(found) > 0 && found[0], nil
}

func (repo assessmentRepository) CreateQuestion(ctx context.Context, q assessment.Question, exec ...core.DBExecutor) (assessment.Question, error) {
	db := repo.getExec(exec)

	q.ID = uuid.New().String()
	_, err := db.ExecContext(ctx,
		`INSERT INTO questions (id, unit_kind, unit_id, type, prompt, correct_answer, points, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.ID, q.Unit.Kind, q.Unit.ID, q.Type, q.Prompt, q.CorrectAnswer, q.Points, q.Position, q.CreatedAt.UTC())
	if err != nil {
		return assessment.Question{}, errors.Wrap(err, "inserting question")
	}
	for i := range q.Options {
		o := &q.Options[i]
		o.ID = uuid.New().String()
		o.QuestionID = q.ID
		_, err = db.ExecContext(ctx,
			"INSERT INTO question_options (id, question_id, letter, text, is_correct) VALUES ($1, $2, $3, $4, $5)",
			o.ID, o.QuestionID, o.Letter, o.Text, o.IsCorrect)
		if err != nil {
			return assessment.Question{}, errors.Wrapf(err, "inserting option %s", o.Letter)
		}
	}
	return q, nil
}

func (repo assessmentRepository) MaxAttemptNumber(ctx context.Context, userID string, unit training.Unit, exec ...core.DBExecutor) (int, error) {
	var n int
	q := `SELECT COALESCE(MAX(attempt_number), 0) FROM assessment_responses
		WHERE user_id = $1 AND unit_kind = $2 AND unit_id = $3`
	if err := repo.getExec(exec).QueryRowContext(ctx, q, userID, unit.Kind, unit.ID).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "finding last attempt number")
	}
	return n, nil
}

func (repo assessmentRepository) InsertResponses(ctx context.Context, responses []assessment.Response, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)
	q := `INSERT INTO assessment_responses (id, user_id, question_id, unit_kind, unit_id, attempt_number,
		selected_answer, is_correct, points_earned, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	for _, r := range responses {
		_, err := db.ExecContext(ctx, q, uuid.New().String(), r.UserID, r.QuestionID, r.Unit.Kind, r.Unit.ID,
			r.AttemptNumber, r.SelectedAnswer, r.IsCorrect, r.PointsEarned, r.CreatedAt.UTC())
		if err != nil {
			return errors.Wrap(err, "inserting response")
		}
	}
	return nil
}

func (repo assessmentRepository) ListResponses(ctx context.Context, userID string, unit training.Unit, exec ...core.DBExecutor) ([]assessment.Response, error) {
	var rows []responseRow
	q := `SELECT id, user_id, question_id, unit_kind, unit_id, attempt_number, selected_answer, is_correct,
		points_earned, created_at
		FROM assessment_responses WHERE user_id = $1 AND unit_kind = $2 AND unit_id = $3
		ORDER BY attempt_number, created_at`
	if err := selectContext(ctx, repo.getExec(exec), &rows, q, userID, unit.Kind, unit.ID); err != nil {
		return nil, errors.Wrap(err, "listing responses")
	}
	responses := make([]assessment.Response, 0, len(rows))
	for _, r := range rows {
		responses = append(responses, assessment.Response{
			ID:             r.ID,
			UserID:         r.UserID,
			QuestionID:     r.QuestionID,
			Unit:           training.Unit{Kind: training.UnitKind(r.UnitKind), ID: r.UnitID},
			AttemptNumber:  r.AttemptNumber,
			SelectedAnswer: r.SelectedAnswer,
			IsCorrect:      r.IsCorrect,
			PointsEarned:   r.PointsEarned,
			CreatedAt:      r.CreatedAt.UTC(),
		})
	}
	return responses, nil
}
