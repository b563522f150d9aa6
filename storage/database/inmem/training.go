package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/training"
)

type catalogRepository struct {
	db *DB
}

var _ training.Catalog = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) training.Catalog {
	return &catalogRepository{db: db}
}

// sectionsOf must be called with the section table locked.
func (repo *catalogRepository) sectionsOf(moduleID string) []training.Section {
	var sections []training.Section
	for _, s := range repo.db.section.table {
		if s.ModuleID == moduleID {
			sections = append(sections, *s)
		}
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Position < sections[j].Position })
	return sections
}

func (repo *catalogRepository) ListModules(_ context.Context, _ ...core.DBExecutor) ([]training.Module, error) {
	repo.db.module.RLock()
	defer repo.db.module.RUnlock()
	repo.db.section.RLock()
	defer repo.db.section.RUnlock()

	modules := make([]training.Module, 0, len(repo.db.module.table))
	for _, m := range repo.db.module.table {
		mod := *m
		mod.Sections = repo.sectionsOf(mod.ID)
		modules = append(modules, mod)
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Number < modules[j].Number })
	return modules, nil
}

func (repo *catalogRepository) GetModule(_ context.Context, id string, _ ...core.DBExecutor) (training.Module, error) {
	repo.db.module.RLock()
	defer repo.db.module.RUnlock()
	repo.db.section.RLock()
	defer repo.db.section.RUnlock()

	m, ok := repo.db.module.table[id]
	if !ok {
		return training.Module{}, training.ErrModuleNotFound
	}
	mod := *m
	mod.Sections = repo.sectionsOf(mod.ID)
	return mod, nil
}

func (repo *catalogRepository) GetSection(_ context.Context, id string, _ ...core.DBExecutor) (training.Section, error) {
	repo.db.section.RLock()
	defer repo.db.section.RUnlock()

	s, ok := repo.db.section.table[id]
	if !ok {
		return training.Section{}, training.ErrSectionNotFound
	}
	return *s, nil
}

func (repo *catalogRepository) CreateModule(_ context.Context, mod training.Module, _ ...core.DBExecutor) (training.Module, error) {
	repo.db.module.Lock()
	defer repo.db.module.Unlock()

	for _, m := range repo.db.module.table {
		if m.Number == mod.Number {
			return training.Module{}, training.ErrModuleExists
		}
	}
	mod.ID = uuid.New().String()
	mod.Sections = nil
	repo.db.module.table[mod.ID] = &mod
	return mod, nil
}

func (repo *catalogRepository) CreateSection(_ context.Context, sec training.Section, _ ...core.DBExecutor) (training.Section, error) {
	repo.db.section.Lock()
	defer repo.db.section.Unlock()

	for _, s := range repo.db.section.table {
		if s.ModuleID == sec.ModuleID && (s.Position == sec.Position || s.Code == sec.Code) {
			return training.Section{}, training.ErrSectionExists
		}
	}
	sec.ID = uuid.New().String()
	repo.db.section.table[sec.ID] = &sec
	return sec, nil
}

type progressRepository struct {
	db *DB
}

var _ training.Store = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) training.Store {
	return &progressRepository{db: db}
}

func (repo *progressRepository) GetProgress(_ context.Context, userID string, unit training.Unit, _ ...core.DBExecutor) (training.Progress, error) {
	repo.db.progress.RLock()
	defer repo.db.progress.RUnlock()

	if p, ok := repo.db.progress.table[progressKey{userID, unit}]; ok {
		return *p, nil
	}
	return training.NotStarted(userID, unit), nil
}

func (repo *progressRepository) ListProgress(_ context.Context, userID string, _ ...core.DBExecutor) ([]training.Progress, error) {
	repo.db.progress.RLock()
	defer repo.db.progress.RUnlock()

	records := make([]training.Progress, 0)
	for k, p := range repo.db.progress.table {
		if k.userID == userID {
			records = append(records, *p)
		}
	}
	sortProgress(records)
	return records, nil
}

func (repo *progressRepository) UpsertProgress(_ context.Context, userID string, unit training.Unit, upd training.ProgressUpdate, _ ...core.DBExecutor) (training.Progress, error) {
	repo.db.progress.Lock()
	defer repo.db.progress.Unlock()

	key := progressKey{userID, unit}
	cur := training.NotStarted(userID, unit)
	if p, ok := repo.db.progress.table[key]; ok {
		cur = *p
	}
	p := upd.Apply(cur, time.Now().UTC())
	repo.db.progress.table[key] = &p
	return p, nil
}

// RecordAttempt holds the table lock for the whole read-modify-write.
func (repo *progressRepository) RecordAttempt(_ context.Context, userID string, unit training.Unit, att training.Attempt, _ ...core.DBExecutor) (training.Progress, error) {
	repo.db.progress.Lock()
	defer repo.db.progress.Unlock()

	key := progressKey{userID, unit}
	cur := training.NotStarted(userID, unit)
	if p, ok := repo.db.progress.table[key]; ok {
		cur = *p
	}
	p := att.Apply(cur)
	repo.db.progress.table[key] = &p
	return p, nil
}

func (repo *progressRepository) ListUnitProgress(_ context.Context, unit training.Unit, _ ...core.DBExecutor) ([]training.Progress, error) {
	repo.db.progress.RLock()
	defer repo.db.progress.RUnlock()

	records := make([]training.Progress, 0)
	for k, p := range repo.db.progress.table {
		if k.unit == unit {
			records = append(records, *p)
		}
	}
	sortProgress(records)
	return records, nil
}

func (repo *progressRepository) SaveProgress(_ context.Context, p training.Progress, _ ...core.DBExecutor) error {
	repo.db.progress.Lock()
	defer repo.db.progress.Unlock()

	repo.db.progress.table[progressKey{p.UserID, p.Unit}] = &p
	return nil
}

func (repo *progressRepository) DeleteProgress(_ context.Context, userID string, unit training.Unit, _ ...core.DBExecutor) error {
	repo.db.progress.Lock()
	defer repo.db.progress.Unlock()

	delete(repo.db.progress.table, progressKey{userID, unit})
	return nil
}

func sortProgress(records []training.Progress) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].UserID != records[j].UserID {
			return records[i].UserID < records[j].UserID
		}
		return records[i].Unit.String() < records[j].Unit.String()
	})
}
