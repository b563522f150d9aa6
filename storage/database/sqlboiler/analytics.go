package boiledrepos

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/analytics"
)

type analyticsRepository struct {
	exec core.DBExecutor
}

var _ analytics.Repository = (*analyticsRepository)(nil) // interface compliance check

func NewAnalyticsRepository(exec core.DBExecutor) analytics.Repository {
	return &analyticsRepository{exec: exec}
}

func (repo analyticsRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.GetExec(repo.exec, svcExec)
}

func (repo analyticsRepository) CountUsersBy(ctx context.Context, column string, exec ...core.DBExecutor) (map[string]int, error) {
	if column != analytics.ByStatus && column != analytics.ByRole {
		return nil, fmt.Errorf("cannot count users by %q", column)
	}
	var rows []struct {
		Value string `boil:"value"`
		Count int    `boil:"count"`
	}
	q := fmt.Sprintf("SELECT %[1]s AS value, COUNT(*) AS count FROM users WHERE deleted_at IS NULL GROUP BY %[1]s", column)
	if err := queries.Raw(q).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrapf(err, "counting users by %s", column)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Value] = r.Count
	}
	return counts, nil
}

func (repo analyticsRepository) CountCertificates(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var res countRow
	q := `SELECT COUNT(*) AS count FROM certificates c JOIN users u ON u.id = c.user_id WHERE u.deleted_at IS NULL`
	if err := queries.Raw(q).Bind(ctx, repo.getExec(exec), &res); err != nil {
		return 0, errors.Wrap(err, "counting certificates")
	}
	return res.Count, nil
}

// units lists every module's units: its sections, or the module itself.
const moduleStatsQuery = `
WITH units AS (
	SELECT m.id AS module_id, 'section' AS unit_kind, s.id AS unit_id FROM modules m JOIN sections s ON s.module_id = m.id
	UNION ALL
	SELECT m.id, 'module', m.id FROM modules m WHERE NOT EXISTS (SELECT 1 FROM sections s WHERE s.module_id = m.id)
),
records AS (
	SELECT u.module_id, p.user_id, p.status, p.highest_score, p.assessment_attempts
	FROM units u
	JOIN progress p ON p.unit_kind = u.unit_kind AND p.unit_id = u.unit_id
	JOIN users usr ON usr.id = p.user_id AND usr.deleted_at IS NULL
),
per_user AS (
	SELECT module_id, user_id, bool_and(status = 'completed') AS completed
	FROM records GROUP BY module_id, user_id
)
SELECT m.id AS module_id, m.number, m.title,
	(SELECT COUNT(*) FROM per_user pu WHERE pu.module_id = m.id) AS started,
	(SELECT COUNT(*) FROM per_user pu WHERE pu.module_id = m.id AND pu.completed) AS completed,
	COALESCE((SELECT ROUND(AVG(r.highest_score)) FROM records r
		WHERE r.module_id = m.id AND r.assessment_attempts > 0), 0)::integer AS average_score
FROM modules m
ORDER BY m.number`

func (repo analyticsRepository) ModuleStats(ctx context.Context, exec ...core.DBExecutor) ([]analytics.ModuleStats, error) {
	var stats []analytics.ModuleStats
	if err := queries.Raw(moduleStatsQuery).Bind(ctx, repo.getExec(exec), &stats); err != nil {
		return nil, errors.Wrap(err, "computing module stats")
	}
	return stats, nil
}
