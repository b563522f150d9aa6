package boiledrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/certificate"
)

type certificateRow struct {
	ID           string    `boil:"id"`
	UserID       string    `boil:"user_id"`
	AverageScore int       `boil:"average_score"`
	URL          string    `boil:"url"`
	IssuedAt     time.Time `boil:"issued_at"`
}

func (r certificateRow) certificate() certificate.Certificate {
	return certificate.Certificate{
		ID:           r.ID,
		UserID:       r.UserID,
		AverageScore: r.AverageScore,
		URL:          r.URL,
		IssuedAt:     r.IssuedAt.UTC(),
	}
}

type certificateRepository struct {
	exec core.DBExecutor
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(exec core.DBExecutor) certificate.Repository {
	return &certificateRepository{exec: exec}
}

func (repo certificateRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.GetExec(repo.exec, svcExec)
}

func (repo certificateRepository) GetByUser(ctx context.Context, userID string, exec ...core.DBExecutor) (certificate.Certificate, error) {
	var row certificateRow
	q := "SELECT id, user_id, average_score, url, issued_at FROM certificates WHERE user_id = $1"
	if err := queries.Raw(q, userID).Bind(ctx, repo.getExec(exec), &row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return certificate.Certificate{}, certificate.ErrNotFound
		}
		return certificate.Certificate{}, errors.Wrap(err, "finding certificate")
	}
	return row.certificate(), nil
}

func (repo certificateRepository) CreateIfNotExists(ctx context.Context, cert certificate.Certificate, exec ...core.DBExecutor) (certificate.Certificate, bool, error) {
	q := `INSERT INTO certificates (id, user_id, average_score, url, issued_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING`
	res, err := queries.Raw(q, cert.ID, cert.UserID, cert.AverageScore, cert.URL, cert.IssuedAt.UTC()).
		ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return certificate.Certificate{}, false, errors.Wrap(err, "inserting certificate")
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return cert, true, nil
	}

	stored, err := repo.GetByUser(ctx, cert.UserID, exec...)
	return stored, false, err
}
