package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/training"
)

const (
	moduleColumns  = "id, number, title, description, video_url, transcript, duration_minutes, created_at"
	sectionColumns = "id, module_id, code, position, title, video_url, transcript, created_at"
)

type moduleRow struct {
	ID              string    `db:"id"`
	Number          int       `db:"number"`
	Title           string    `db:"title"`
	Description     string    `db:"description"`
	VideoURL        string    `db:"video_url"`
	Transcript      string    `db:"transcript"`
	DurationMinutes int       `db:"duration_minutes"`
	CreatedAt       time.Time `db:"created_at"`
}

func (r moduleRow) module() training.Module {
	return training.Module{
		ID:              r.ID,
		Number:          r.Number,
		Title:           r.Title,
		Description:     r.Description,
		VideoURL:        r.VideoURL,
		Transcript:      r.Transcript,
		DurationMinutes: r.DurationMinutes,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

type sectionRow struct {
	ID         string    `db:"id"`
	ModuleID   string    `db:"module_id"`
	Code       string    `db:"code"`
	Position   int       `db:"position"`
	Title      string    `db:"title"`
	VideoURL   string    `db:"video_url"`
	Transcript string    `db:"transcript"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r sectionRow) section() training.Section {
	return training.Section{
		ID:         r.ID,
		ModuleID:   r.ModuleID,
		Code:       r.Code,
		Position:   r.Position,
		Title:      r.Title,
		VideoURL:   r.VideoURL,
		Transcript: r.Transcript,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type catalogRepository struct {
	exec core.DBExecutor
}

var _ training.Catalog = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(exec core.DBExecutor) training.Catalog {
	return &catalogRepository{exec: exec}
}

func (repo catalogRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.GetExec(repo.exec, svcExec)
}

func (repo catalogRepository) ListModules(ctx context.Context, exec ...core.DBExecutor) ([]training.Module, error) {
	db := repo.getExec(exec)

	var mods []moduleRow
	if err := selectContext(ctx, db, &mods, "SELECT "+moduleColumns+" FROM modules ORDER BY number"); err != nil {
		return nil, errors.Wrap(err, "listing modules")
	}
	var secs []sectionRow
	if err := selectContext(ctx, db, &secs, "SELECT "+sectionColumns+" FROM sections ORDER BY position"); err != nil {
		return nil, errors.Wrap(err, "listing sections")
	}

	byModule := make(map[string][]training.Section)
	for _, s := range secs {
		byModule[s.ModuleID] = append(byModule[s.ModuleID], s.section())
	}
	modules := make([]training.Module, 0, len(mods))
	for _, r := range mods {
		m := r.module()
		m.Sections = byModule[m.ID]
		modules = append(modules, m)
	}
	return modules, nil
}

func (repo catalogRepository) GetModule(ctx context.Context, id string, exec ...core.DBExecutor) (training.Module, error) {
	if _, err := uuid.Parse(id); err != nil {
		return training.Module{}, training.ErrModuleNotFound
	}
	db := repo.getExec(exec)

	var mods []moduleRow
	if err := selectContext(ctx, db, &mods, "SELECT "+moduleColumns+" FROM modules WHERE id = $1", id); err != nil {
		return training.Module{}, errors.Wrap(err, "finding module")
	}
	if len(mods) == 0 {
		return training.Module{}, training.ErrModuleNotFound
	}
	var secs []sectionRow
	q := "SELECT " + sectionColumns + " FROM sections WHERE module_id = $1 ORDER BY position"
	if err := selectContext(ctx, db, &secs, q, id); err != nil {
		return training.Module{}, errors.Wrap(err, "listing module sections")
	}

	m := mods[0].module()
	for _, s := range secs {
		m.Sections = append(m.Sections, s.section())
	}
	return m, nil
}

func (repo catalogRepository) GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (training.Section, error) {
	if _, err := uuid.Parse(id); err != nil {
		return training.Section{}, training.ErrSectionNotFound
	}
	var secs []sectionRow
	if err := selectContext(ctx, repo.getExec(exec), &secs, "SELECT "+sectionColumns+" FROM sections WHERE id = $1", id); err != nil {
		return training.Section{}, errors.Wrap(err, "finding section")
	}
	if len(secs) == 0 {
		return training.Section{}, training.ErrSectionNotFound
	}
	return secs[0].section(), nil
}

func (repo catalogRepository) CreateModule(ctx context.Context, mod training.Module, exec ...core.DBExecutor) (training.Module, error) {
	mod.ID = uuid.New().String()
	mod.Sections = nil
	q := "INSERT INTO modules (" + moduleColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)"
	_, err := repo.getExec(exec).ExecContext(ctx, q, mod.ID, mod.Number, mod.Title, mod.Description, mod.VideoURL,
		mod.Transcript, mod.DurationMinutes, mod.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return training.Module{}, training.ErrModuleExists
		}
		return training.Module{}, errors.Wrap(err, "inserting module")
	}
	return mod, nil
}

func (repo catalogRepository) CreateSection(ctx context.Context, sec training.Section, exec ...core.DBExecutor) (training.Section, error) {
	sec.ID = uuid.New().String()
	q := "INSERT INTO sections (" + sectionColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)"
	_, err := repo.getExec(exec).ExecContext(ctx, q, sec.ID, sec.ModuleID, sec.Code, sec.Position, sec.Title,
		sec.VideoURL, sec.Transcript, sec.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return training.Section{}, training.ErrSectionExists
		}
		return training.Section{}, errors.Wrap(err, "inserting section")
	}
	return sec, nil
}
