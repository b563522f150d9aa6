package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/profile"
)

type profileRepository struct {
	db *DB
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *DB) profile.Repository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) ListEducation(_ context.Context, userID string, _ ...core.DBExecutor) ([]profile.EducationEntry, error) {
	repo.db.education.RLock()
	defer repo.db.education.RUnlock()

	entries := make([]profile.EducationEntry, 0)
	for _, e := range repo.db.education.table {
		if e.UserID == userID {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}

func (repo *profileRepository) CreateEducation(_ context.Context, entry profile.EducationEntry, _ ...core.DBExecutor) (profile.EducationEntry, error) {
	repo.db.education.Lock()
	defer repo.db.education.Unlock()

	entry.ID = uuid.New().String()
	repo.db.education.table[entry.ID] = &entry
	return entry, nil
}

func (repo *profileRepository) DeleteEducation(_ context.Context, userID, id string, _ ...core.DBExecutor) error {
	repo.db.education.Lock()
	defer repo.db.education.Unlock()

	if e, ok := repo.db.education.table[id]; !ok || e.UserID != userID {
		return profile.ErrEducationNotFound
	}
	delete(repo.db.education.table, id)
	return nil
}

func (repo *profileRepository) CountEducation(ctx context.Context, userID string, _ ...core.DBExecutor) (int, error) {
	entries, err := repo.ListEducation(ctx, userID)
	return len(entries), err
}

func (repo *profileRepository) ListEmployment(_ context.Context, userID string, _ ...core.DBExecutor) ([]profile.EmploymentEntry, error) {
	repo.db.employment.RLock()
	defer repo.db.employment.RUnlock()

	entries := make([]profile.EmploymentEntry, 0)
	for _, e := range repo.db.employment.table {
		if e.UserID == userID {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}

func (repo *profileRepository) CreateEmployment(_ context.Context, entry profile.EmploymentEntry, _ ...core.DBExecutor) (profile.EmploymentEntry, error) {
	repo.db.employment.Lock()
	defer repo.db.employment.Unlock()

	entry.ID = uuid.New().String()
	repo.db.employment.table[entry.ID] = &entry
	return entry, nil
}

func (repo *profileRepository) DeleteEmployment(_ context.Context, userID, id string, _ ...core.DBExecutor) error {
	repo.db.employment.Lock()
	defer repo.db.employment.Unlock()

	if e, ok := repo.db.employment.table[id]; !ok || e.UserID != userID {
		return profile.ErrEmploymentNotFound
	}
	delete(repo.db.employment.table, id)
	return nil
}

func (repo *profileRepository) CountEmployment(ctx context.Context, userID string, _ ...core.DBExecutor) (int, error) {
	entries, err := repo.ListEmployment(ctx, userID)
	return len(entries), err
}
