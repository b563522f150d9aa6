package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/assessment"
	"github.com/cadence/academy/core/training"
)

type assessmentRepository struct {
	db *DB
}

var _ assessment.Repository = (*assessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(db *DB) assessment.Repository {
	return &assessmentRepository{db: db}
}

func (repo *assessmentRepository) ListQuestions(_ context.Context, unit training.Unit, _ ...core.DBExecutor) ([]assessment.Question, error) {
	repo.db.question.RLock()
	defer repo.db.question.RUnlock()

	questions := make([]assessment.Question, 0)
	for _, q := range repo.db.question.table {
		if q.Unit == unit {
			cp := *q
			cp.Options = append([]assessment.Option(nil), q.Options...)
			questions = append(questions, cp)
		}
	}
	sort.Slice(questions, func(i, j int) bool {
		if questions[i].Position != questions[j].Position {
			return questions[i].Position < questions[j].Position
		}
		return questions[i].CreatedAt.Before(questions[j].CreatedAt)
	})
	return questions, nil
}

func (repo *assessmentRepository) HasQuestions(_ context.Context, unit training.Unit, _ ...core.DBExecutor) (bool, error) {
	repo.db.question.RLock()
	defer repo.db.question.RUnlock()

	for _, q := range repo.db.question.table {
		if q.Unit == unit {
			return true, nil
		}
	}
	return false, nil
}

func (repo *assessmentRepository) CreateQuestion(_ context.Context, q assessment.Question, _ ...core.DBExecutor) (assessment.Question, error) {
	repo.db.question.Lock()
	defer repo.db.question.Unlock()

	q.ID = uuid.New().String()
	for i := range q.Options {
		q.Options[i].ID = uuid.New().String()
		q.Options[i].QuestionID = q.ID
	}
	sort.Slice(q.Options, func(i, j int) bool { return q.Options[i].Letter < q.Options[j].Letter })
	repo.db.question.table[q.ID] = &q
	return q, nil
}

func (repo *assessmentRepository) MaxAttemptNumber(_ context.Context, userID string, unit training.Unit, _ ...core.DBExecutor) (int, error) {
	repo.db.response.RLock()
	defer repo.db.response.RUnlock()

	var n int
	for _, r := range repo.db.response.rows {
		if r.UserID == userID && r.Unit == unit && r.AttemptNumber > n {
			n = r.AttemptNumber
		}
	}
	return n, nil
}

func (repo *assessmentRepository) InsertResponses(_ context.Context, responses []assessment.Response, _ ...core.DBExecutor) error {
	repo.db.response.Lock()
	defer repo.db.response.Unlock()

	for _, r := range responses {
		r.ID = uuid.New().String()
		repo.db.response.rows = append(repo.db.response.rows, r)
	}
	return nil
}

func (repo *assessmentRepository) ListResponses(_ context.Context, userID string, unit training.Unit, _ ...core.DBExecutor) ([]assessment.Response, error) {
	repo.db.response.RLock()
	defer repo.db.response.RUnlock()

	responses := make([]assessment.Response, 0)
	for _, r := range repo.db.response.rows {
		if r.UserID == userID && r.Unit == unit {
			responses = append(responses, r)
		}
	}
	return responses, nil
}
