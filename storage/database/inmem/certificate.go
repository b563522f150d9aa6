package inmemdb

import (
	"context"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/certificate"
)

type certificateRepository struct {
	db *DB
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) GetByUser(_ context.Context, userID string, _ ...core.DBExecutor) (certificate.Certificate, error) {
	repo.db.certificate.RLock()
	defer repo.db.certificate.RUnlock()

	if c, ok := repo.db.certificate.table[userID]; ok {
		return *c, nil
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) CreateIfNotExists(_ context.Context, cert certificate.Certificate, _ ...core.DBExecutor) (certificate.Certificate, bool, error) {
	repo.db.certificate.Lock()
	defer repo.db.certificate.Unlock()

	if c, ok := repo.db.certificate.table[cert.UserID]; ok {
		return *c, false, nil
	}
	repo.db.certificate.table[cert.UserID] = &cert
	return cert, true, nil
}
