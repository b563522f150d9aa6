package inmemdb

import (
	"context"
	"fmt"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/analytics"
	"github.com/cadence/academy/core/training"
)

type analyticsRepository struct {
	db *DB
}

var _ analytics.Repository = (*analyticsRepository)(nil) // interface compliance check

func NewAnalyticsRepository(db *DB) analytics.Repository {
	return &analyticsRepository{db: db}
}

func (repo *analyticsRepository) activeUsers() map[string]bool {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	ids := make(map[string]bool, len(repo.db.user.table))
	for id, u := range repo.db.user.table {
		if !u.IsDeleted() {
			ids[id] = true
		}
	}
	return ids
}

func (repo *analyticsRepository) CountUsersBy(_ context.Context, column string, _ ...core.DBExecutor) (map[string]int, error) {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	counts := make(map[string]int)
	for _, u := range repo.db.user.table {
		if u.IsDeleted() {
			continue
		}
		switch column {
		case analytics.ByStatus:
			counts[u.Status]++
		case analytics.ByRole:
			counts[u.Role]++
		default:
			return nil, fmt.Errorf("cannot count users by %q", column)
		}
	}
	return counts, nil
}

func (repo *analyticsRepository) CountCertificates(_ context.Context, _ ...core.DBExecutor) (int, error) {
	active := repo.activeUsers()

	repo.db.certificate.RLock()
	defer repo.db.certificate.RUnlock()

	var n int
	for uid := range repo.db.certificate.table {
		if active[uid] {
			n++
		}
	}
	return n, nil
}

func (repo *analyticsRepository) ModuleStats(ctx context.Context, _ ...core.DBExecutor) ([]analytics.ModuleStats, error) {
	modules, err := NewCatalogRepository(repo.db).ListModules(ctx)
	if err != nil {
		return nil, err
	}
	active := repo.activeUsers()

	repo.db.progress.RLock()
	defer repo.db.progress.RUnlock()

	stats := make([]analytics.ModuleStats, 0, len(modules))
	for _, mod := range modules {
		units := []training.Unit{training.ModuleUnit(mod.ID)}
		if mod.HasSections() {
			units = units[:0]
			for _, sec := range mod.Sections {
				units = append(units, training.SectionUnit(sec.ID))
			}
		}

		completed := make(map[string]int)
		var scoreSum, scored int
		for k, p := range repo.db.progress.table {
			if !active[k.userID] || !containsUnit(units, k.unit) {
				continue
			}
			if _, ok := completed[k.userID]; !ok {
				completed[k.userID] = 0
			}
			if p.IsCompleted() {
				completed[k.userID]++
			}
			if p.AssessmentAttempts > 0 {
				scoreSum += p.HighestScore
				scored++
			}
		}

		st := analytics.ModuleStats{ModuleID: mod.ID, Number: mod.Number, Title: mod.Title, Started: len(completed)}
		for _, n := range completed {
			if n == len(units) {
				st.Completed++
			}
		}
		if scored > 0 {
			st.AverageScore = core.RoundPercent(scoreSum, 100*scored)
		}
		stats = append(stats, st)
	}
	return stats, nil
}

func containsUnit(units []training.Unit, u training.Unit) bool {
	for _, unit := range units {
		if unit == u {
			return true
		}
	}
	return false
}
