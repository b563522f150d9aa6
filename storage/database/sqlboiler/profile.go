package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/profile"
)

type profileRepository struct {
	exec core.DBExecutor
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(exec core.DBExecutor) profile.Repository {
	return &profileRepository{exec: exec}
}

func (repo profileRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.GetExec(repo.exec, svcExec)
}

type countRow struct {
	Count int `boil:"count"`
}

func (repo profileRepository) count(ctx context.Context, table, userID string, exec []core.DBExecutor) (int, error) {
	var res countRow
	q := "SELECT COUNT(*) AS count FROM " + table + " WHERE user_id = $1"
	if err := queries.Raw(q, userID).Bind(ctx, repo.getExec(exec), &res); err != nil {
		return 0, errors.Wrapf(err, "counting %s", table)
	}
	return res.Count, nil
}

func (repo profileRepository) delete(ctx context.Context, table, userID, id string, exec []core.DBExecutor) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	q := "DELETE FROM " + table + " WHERE id = $1 AND user_id = $2"
	res, err := queries.Raw(q, id, userID).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return false, errors.Wrapf(err, "deleting from %s", table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "deleting from %s", table)
	}
	return n > 0, nil
}

// Education

type educationRow struct {
	ID           string    `boil:"id"`
	UserID       string    `boil:"user_id"`
	Institution  string    `boil:"institution"`
	Degree       string    `boil:"degree"`
	FieldOfStudy string    `boil:"field_of_study"`
	StartDate    string    `boil:"start_date"`
	EndDate      string    `boil:"end_date"`
	CreatedAt    time.Time `boil:"created_at"`
}

func (repo profileRepository) ListEducation(ctx context.Context, userID string, exec ...core.DBExecutor) ([]profile.EducationEntry, error) {
	var rows []educationRow
	q := `SELECT id, user_id, institution, degree, field_of_study, start_date, end_date, created_at
		FROM education_entries WHERE user_id = $1 ORDER BY created_at`
	if err := queries.Raw(q, userID).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "listing education entries")
	}
	entries := make([]profile.EducationEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, profile.EducationEntry{
			ID:           r.ID,
			UserID:       r.UserID,
			Institution:  r.Institution,
			Degree:       r.Degree,
			FieldOfStudy: r.FieldOfStudy,
			StartDate:    r.StartDate,
			EndDate:      r.EndDate,
			CreatedAt:    r.CreatedAt.UTC(),
		})
	}
	return entries, nil
}

func (repo profileRepository) CreateEducation(ctx context.Context, entry profile.EducationEntry, exec ...core.DBExecutor) (profile.EducationEntry, error) {
	entry.ID = uuid.New().String()
	q := `INSERT INTO education_entries (id, user_id, institution, degree, field_of_study, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := queries.Raw(q, entry.ID, entry.UserID, entry.Institution, entry.Degree, entry.FieldOfStudy,
		entry.StartDate, entry.EndDate, entry.CreatedAt.UTC()).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return profile.EducationEntry{}, errors.Wrap(err, "inserting education entry")
	}
	return entry, nil
}

func (repo profileRepository) DeleteEducation(ctx context.Context, userID, id string, exec ...core.DBExecutor) error {
	ok, err := repo.delete(ctx, "education_entries", userID, id, exec)
	if err != nil {
		return err
	}
	if !ok {
		return profile.ErrEducationNotFound
	}
	return nil
}

func (repo profileRepository) CountEducation(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	return repo.count(ctx, "education_entries", userID, exec)
}

// Employment

type employmentRow struct {
	ID          string    `boil:"id"`
	UserID      string    `boil:"user_id"`
	Employer    string    `boil:"employer"`
	Position    string    `boil:"position"`
	StartDate   string    `boil:"start_date"`
	EndDate     string    `boil:"end_date"`
	Description string    `boil:"description"`
	CreatedAt   time.Time `boil:"created_at"`
}

func (repo profileRepository) ListEmployment(ctx context.Context, userID string, exec ...core.DBExecutor) ([]profile.EmploymentEntry, error) {
	var rows []employmentRow
	q := `SELECT id, user_id, employer, position, start_date, end_date, description, created_at
		FROM employment_entries WHERE user_id = $1 ORDER BY created_at`
	if err := queries.Raw(q, userID).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "listing employment entries")
	}
	entries := make([]profile.EmploymentEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, profile.EmploymentEntry{
			ID:          r.ID,
			UserID:      r.UserID,
			Employer:    r.Employer,
			Position:    r.Position,
			StartDate:   r.StartDate,
			EndDate:     r.EndDate,
			Description: r.Description,
			CreatedAt:   r.CreatedAt.UTC(),
		})
	}
	return entries, nil
}

func (repo profileRepository) CreateEmployment(ctx context.Context, entry profile.EmploymentEntry, exec ...core.DBExecutor) (profile.EmploymentEntry, error) {
	entry.ID = uuid.New().String()
	q := `INSERT INTO employment_entries (id, user_id, employer, position, start_date, end_date, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := queries.Raw(q, entry.ID, entry.UserID, entry.Employer, entry.Position, entry.StartDate,
		entry.EndDate, entry.Description, entry.CreatedAt.UTC()).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return profile.EmploymentEntry{}, errors.Wrap(err, "inserting employment entry")
	}
	return entry, nil
}

func (repo profileRepository) DeleteEmployment(ctx context.Context, userID, id string, exec ...core.DBExecutor) error {
	ok, err := repo.delete(ctx, "employment_entries", userID, id, exec)
	if err != nil {
		return err
	}
	if !ok {
		return profile.ErrEmploymentNotFound
	}
	return nil
}

func (repo profileRepository) CountEmployment(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	return repo.count(ctx, "employment_entries", userID, exec)
}
