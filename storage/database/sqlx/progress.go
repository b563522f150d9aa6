package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/training"
)

const progressColumns = `user_id, unit_kind, unit_id, status, video_watched, video_watch_percentage, transcript_viewed,
	assessment_completed, assessment_score, highest_score, assessment_attempts, last_attempt_at, started_at,
	completed_at, updated_at`

// statusRatchet keeps the furthest of the stored and the incoming status.
const statusRatchet = `CASE
		WHEN progress.status = 'completed' OR EXCLUDED.status = 'completed' THEN 'completed'
		WHEN progress.status = 'in_progress' OR EXCLUDED.status = 'in_progress' THEN 'in_progress'
		ELSE progress.status
	END`

const upsertProgressQuery = `
INSERT INTO progress (user_id, unit_kind, unit_id, status, video_watched, video_watch_percentage,
	transcript_viewed, started_at, completed_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (user_id, unit_kind, unit_id) DO UPDATE SET
	status = ` + statusRatchet + `,
	video_watched = progress.video_watched OR EXCLUDED.video_watched,
	video_watch_percentage = GREATEST(progress.video_watch_percentage, EXCLUDED.video_watch_percentage),
	transcript_viewed = progress.transcript_viewed OR EXCLUDED.transcript_viewed,
	started_at = COALESCE(progress.started_at, EXCLUDED.started_at),
	completed_at = COALESCE(progress.completed_at, EXCLUDED.completed_at),
	updated_at = EXCLUDED.updated_at
RETURNING ` + progressColumns

const recordAttemptQuery = `
INSERT INTO progress (user_id, unit_kind, unit_id, status, assessment_completed, assessment_score,
	highest_score, assessment_attempts, last_attempt_at, started_at, completed_at, updated_at)
VALUES ($1, $2, $3, $4, true, $5, $5, 1, $6, $6, $7, $6)
ON CONFLICT (user_id, unit_kind, unit_id) DO UPDATE SET
	status = ` + statusRatchet + `,
	assessment_completed = true,
	assessment_score = EXCLUDED.assessment_score,
	highest_score = GREATEST(progress.highest_score, EXCLUDED.highest_score),
	assessment_attempts = progress.assessment_attempts + 1,
	last_attempt_at = EXCLUDED.last_attempt_at,
	started_at = COALESCE(progress.started_at, EXCLUDED.started_at),
	completed_at = COALESCE(progress.completed_at, EXCLUDED.completed_at),
	updated_at = EXCLUDED.updated_at
RETURNING ` + progressColumns

const saveProgressQuery = `
INSERT INTO progress (` + progressColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (user_id, unit_kind, unit_id) DO UPDATE SET
	status = EXCLUDED.status,
	video_watched = EXCLUDED.video_watched,
	video_watch_percentage = EXCLUDED.video_watch_percentage,
	transcript_viewed = EXCLUDED.transcript_viewed,
	assessment_completed = EXCLUDED.assessment_completed,
	assessment_score = EXCLUDED.assessment_score,
	highest_score = EXCLUDED.highest_score,
	assessment_attempts = EXCLUDED.assessment_attempts,
	last_attempt_at = EXCLUDED.last_attempt_at,
	started_at = EXCLUDED.started_at,
	completed_at = EXCLUDED.completed_at,
	updated_at = EXCLUDED.updated_at`

type progressRow struct {
	UserID               string     `db:"user_id"`
	UnitKind             string     `db:"unit_kind"`
	UnitID               string     `db:"unit_id"`
	Status               string     `db:"status"`
	VideoWatched         bool       `db:"video_watched"`
	VideoWatchPercentage int        `db:"video_watch_percentage"`
	TranscriptViewed     bool       `db:"transcript_viewed"`
	AssessmentCompleted  bool       `db:"assessment_completed"`
	AssessmentScore      int        `db:"assessment_score"`
	HighestScore         int        `db:"highest_score"`
	AssessmentAttempts   int        `db:"assessment_attempts"`
	LastAttemptAt        *time.Time `db:"last_attempt_at"`
	StartedAt            *time.Time `db:"started_at"`
	CompletedAt          *time.Time `db:"completed_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (r progressRow) progress() training.Progress {
	return training.Progress{
		UserID:               r.UserID,
		Unit:                 training.Unit{Kind: training.UnitKind(r.UnitKind), ID: r.UnitID},
		Status:               training.Status(r.Status),
		VideoWatched:         r.VideoWatched,
		VideoWatchPercentage: r.VideoWatchPercentage,
		TranscriptViewed:     r.TranscriptViewed,
		AssessmentCompleted:  r.AssessmentCompleted,
		AssessmentScore:      r.AssessmentScore,
		HighestScore:         r.HighestScore,
		AssessmentAttempts:   r.AssessmentAttempts,
		LastAttemptAt:        utcPtr(r.LastAttemptAt),
		StartedAt:            utcPtr(r.StartedAt),
		CompletedAt:          utcPtr(r.CompletedAt),
		UpdatedAt:            r.UpdatedAt.UTC(),
	}
}

type progressRepository struct {
	exec core.DBExecutor
}

var _ training.Store = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(exec core.DBExecutor) training.Store {
	return &progressRepository{exec: exec}
}

func (repo progressRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.GetExec(repo.exec, svcExec)
}

func (repo progressRepository) list(ctx context.Context, exec []core.DBExecutor, where string, args ...interface{}) ([]training.Progress, error) {
	var rows []progressRow
	q := "SELECT " + progressColumns + " FROM progress WHERE " + where + " ORDER BY user_id, unit_kind, unit_id"
	if err := selectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "listing progress")
	}
	records := make([]training.Progress, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.progress())
	}
	return records, nil
}

func (repo progressRepository) one(ctx context.Context, exec []core.DBExecutor, q string, args ...interface{}) (training.Progress, error) {
	var rows []progressRow
	if err := selectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return training.Progress{}, err
	}
	if len(rows) == 0 {
		return training.Progress{}, errors.New("no progress returned")
	}
	return rows[0].progress(), nil
}

func (repo progressRepository) GetProgress(ctx context.Context, userID string, unit training.Unit, exec ...core.DBExecutor) (training.Progress, error) {
	if _, err := uuid.Parse(unit.ID); err != nil {
		return training.NotStarted(userID, unit), nil
	}
	records, err := repo.list(ctx, exec, "user_id = $1 AND unit_kind = $2 AND unit_id = $3", userID, unit.Kind, unit.ID)
	if err != nil {
		return training.Progress{}, err
	}
	if len(records) == 0 {
		return training.NotStarted(userID, unit), nil
	}
	return records[0], nil
}

func (repo progressRepository) ListProgress(ctx context.Context, userID string, exec ...core.DBExecutor) ([]training.Progress, error) {
	return repo.list(ctx, exec, "user_id = $1", userID)
}

func (repo progressRepository) UpsertProgress(ctx context.Context, userID string, unit training.Unit, upd training.ProgressUpdate, exec ...core.DBExecutor) (training.Progress, error) {
	// the inserted row is what the update makes of a fresh record
	fresh := upd.Apply(training.NotStarted(userID, unit), time.Now().UTC())
	p, err := repo.one(ctx, exec, upsertProgressQuery, userID, unit.Kind, unit.ID, fresh.Status, fresh.VideoWatched,
		fresh.VideoWatchPercentage, fresh.TranscriptViewed, fresh.StartedAt, fresh.CompletedAt, fresh.UpdatedAt)
	if err != nil {
		return training.Progress{}, errors.Wrap(err, "upserting progress")
	}
	return p, nil
}

func (repo progressRepository) RecordAttempt(ctx context.Context, userID string, unit training.Unit, att training.Attempt, exec ...core.DBExecutor) (training.Progress, error) {
	at := att.At.UTC()
	status := training.StatusInProgress
	var completedAt *time.Time
	if att.Passed {
		status = training.StatusCompleted
		completedAt = &at
	}
	p, err := repo.one(ctx, exec, recordAttemptQuery, userID, unit.Kind, unit.ID, status, att.Score, at, completedAt)
	if err != nil {
		return training.Progress{}, errors.Wrap(err, "recording attempt")
	}
	return p, nil
}

func (repo progressRepository) ListUnitProgress(ctx context.Context, unit training.Unit, exec ...core.DBExecutor) ([]training.Progress, error) {
	return repo.list(ctx, exec, "unit_kind = $1 AND unit_id = $2", unit.Kind, unit.ID)
}

func (repo progressRepository) SaveProgress(ctx context.Context, p training.Progress, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, saveProgressQuery, p.UserID, p.Unit.Kind, p.Unit.ID, p.Status,
		p.VideoWatched, p.VideoWatchPercentage, p.TranscriptViewed, p.AssessmentCompleted, p.AssessmentScore,
		p.HighestScore, p.AssessmentAttempts, p.LastAttemptAt, p.StartedAt, p.CompletedAt, p.UpdatedAt.UTC())
	return errors.Wrap(err, "saving progress")
}

func (repo progressRepository) DeleteProgress(ctx context.Context, userID string, unit training.Unit, exec ...core.DBExecutor) error {
	q := "DELETE FROM progress WHERE user_id = $1 AND unit_kind = $2 AND unit_id = $3"
	_, err := repo.getExec(exec).ExecContext(ctx, q, userID, unit.Kind, unit.ID)
	return errors.Wrap(err, "deleting progress")
}
