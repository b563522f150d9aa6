package training

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
)

// MoveReport counts the records touched by Migrator.MoveProgress.
type MoveReport struct {
	Moved  int `json:"moved"`  // users with no record on the target unit
	Merged int `json:"merged"` // users whose records were merged into an existing one
}

// Migrator moves progress between units when the catalog is restructured
// (module renumbering, sections merged into one).
type Migrator struct {
	db     core.DB
	store  Store
	logger core.Logger
}

func NewMigrator(db core.DB, store Store, logger core.Logger) *Migrator {
	return &Migrator{db: db, store: store, logger: logger}
}

// MoveProgress moves every user's progress on from to to, merging with existing records (see Merge).
// Response history stays attached to the original unit.
func (m *Migrator) MoveProgress(ctx context.Context, from, to Unit) (MoveReport, error) {
	var report MoveReport
	if from == to {
		return report, core.NewValidationError(fmt.Errorf("cannot move %s onto itself", from))
	}

	err := core.WithTx(ctx, m.db, func(exec core.DBExecutor) error {
		src, err := m.store.ListUnitProgress(ctx, from, exec)
		if err != nil {
			return errors.Wrap(err, "listing source progress")
		}
		dst, err := m.store.ListUnitProgress(ctx, to, exec)
		if err != nil {
			return errors.Wrap(err, "listing target progress")
		}
		existing := make(map[string]Progress, len(dst))
		for _, p := range dst {
			existing[p.UserID] = p
		}

		for _, p := range src {
			out := p
			if cur, ok := existing[p.UserID]; ok {
				out = Merge(cur, p)
				report.Merged++
			} else {
				report.Moved++
			}
			out.Unit = to
			if err = m.store.SaveProgress(ctx, out, exec); err != nil {
				return errors.Wrapf(err, "saving progress of user %s", p.UserID)
			}
			if err = m.store.DeleteProgress(ctx, p.UserID, from, exec); err != nil {
				return errors.Wrapf(err, "deleting progress of user %s", p.UserID)
			}
		}
		return nil
	})
	if err != nil {
		return MoveReport{}, err
	}

	m.logger.Info(fmt.Sprintf("training.MoveProgress: %d moved, %d merged", report.Moved, report.Merged), from, to)
	return report, nil
}
