package analytics

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
)

type (
	ModuleStats struct {
		ModuleID     string `json:"module_id" db:"module_id" boil:"module_id"`
		Number       int    `json:"number" db:"number" boil:"number"`
		Title        string `json:"title" db:"title" boil:"title"`
		Started      int    `json:"started" db:"started" boil:"started"`
		Completed    int    `json:"completed" db:"completed" boil:"completed"`
		AverageScore int    `json:"average_highest_score" db:"average_score" boil:"average_score"`
	}

	Overview struct {
		TotalUsers         int            `json:"total_users"`
		UsersByStatus      map[string]int `json:"users_by_status"`
		UsersByRole        map[string]int `json:"users_by_role"`
		CertificatesIssued int            `json:"certificates_issued"`
		Modules            []ModuleStats  `json:"modules"`
	}

	// Repository aggregates over non-deleted users only.
	Repository interface {
		CountUsersBy(ctx context.Context, column string, exec ...core.DBExecutor) (map[string]int, error)
		CountCertificates(ctx context.Context, exec ...core.DBExecutor) (int, error)
		// ModuleStats returns one entry per module, ordered by number. The records of a module with
		// sections are its section records. Started counts users with any record, Completed those with
		// every record completed, AverageScore is the rounded mean highest score of attempted records.
		ModuleStats(ctx context.Context, exec ...core.DBExecutor) ([]ModuleStats, error)
	}

	Service struct {
		repo Repository
	}
)

// Columns CountUsersBy accepts.
const (
	ByStatus = "status"
	ByRole   = "role"
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Overview(ctx context.Context) (Overview, error) {
	var (
		ov  Overview
		err error
	)
	if ov.UsersByStatus, err = svc.repo.CountUsersBy(ctx, ByStatus); err != nil {
		return Overview{}, errors.Wrap(err, "counting users by status")
	}
	if ov.UsersByRole, err = svc.repo.CountUsersBy(ctx, ByRole); err != nil {
		return Overview{}, errors.Wrap(err, "counting users by role")
	}
	for _, n := range ov.UsersByStatus {
		ov.TotalUsers += n
	}
	if ov.CertificatesIssued, err = svc.repo.CountCertificates(ctx); err != nil {
		return Overview{}, errors.Wrap(err, "counting certificates")
	}
	if ov.Modules, err = svc.repo.ModuleStats(ctx); err != nil {
		return Overview{}, errors.Wrap(err, "computing module stats")
	}
	return ov, nil
}
