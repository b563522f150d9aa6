package certificate

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
)

const ReasonNotEligible = "certificate_not_eligible"

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound = core.NewNotFoundError("certificate")
)

type (
	Repository interface {
		GetByUser(ctx context.Context, userID string, exec ...core.DBExecutor) (Certificate, error)
		// CreateIfNotExists stores cert unless the user already has a certificate, and returns the stored one.
		// created is false when an existing certificate was returned.
		CreateIfNotExists(ctx context.Context, cert Certificate, exec ...core.DBExecutor) (stored Certificate, created bool, err error)
	}

	// Storage persists artifacts and returns their public URL.
	Storage interface {
		Save(ctx context.Context, name string, r io.Reader, contentType string) (string, error)
	}

	Generator interface {
		Generate(data ArtifactData) ([]byte, error)
		ContentType() string
		Ext() string
	}

	Summarizer interface {
		Summarize(ctx context.Context, userID string) (training.Summary, error)
	}

	// Notifier must not block.
	Notifier interface {
		CertificateReady(usr user.User, cert Certificate)
	}

	Service struct {
		repo      Repository
		progress  Summarizer
		storage   Storage
		generator Generator
		notifier  Notifier
		programme string
		issuer    string
		logger    core.Logger
	}
)

func NewService(repo Repository, progress Summarizer, storage Storage, generator Generator, notifier Notifier,
	conf *core.Config, logger core.Logger) *Service {
	return &Service{
		repo:      repo,
		progress:  progress,
		storage:   storage,
		generator: generator,
		notifier:  notifier,
		programme: conf.Training.CertificateProgramme,
		issuer:    conf.Training.CertificateIssuer,
		logger:    logger,
	}
}

func (svc *Service) Get(ctx context.Context, userID string) (Certificate, error) {
	return svc.repo.GetByUser(ctx, userID)
}

func (svc *Service) Eligibility(ctx context.Context, userID string) (Eligibility, error) {
	s, err := svc.progress.Summarize(ctx, userID)
	if err != nil {
		return Eligibility{}, err
	}
	return Eligibility{
		Eligible:         s.AllComplete(),
		TotalModules:     s.TotalModules,
		CompletedModules: s.CompletedModules,
		AverageScore:     s.AverageScore,
		Remaining:        s.Remaining,
	}, nil
}

// Issue returns the user's certificate, generating it on the first call once every module is completed.
// Repeated calls return the same certificate.
func (svc *Service) Issue(ctx context.Context, usr user.User) (Certificate, error) {
	cert, err := svc.repo.GetByUser(ctx, usr.ID)
	if err == nil {
		return cert, nil
	}
	if !core.IsNotFound(err) {
		return Certificate{}, errors.Wrap(err, "getting certificate")
	}

	elig, err := svc.Eligibility(ctx, usr.ID)
	if err != nil {
		return Certificate{}, err
	}
	if !elig.Eligible {
		return Certificate{}, core.NewAdmissionError(ReasonNotEligible, "complete every module to receive your certificate", elig)
	}

	now := NowFunc().UTC()
	cert = Certificate{
		ID:           uuid.New().String(),
		UserID:       usr.ID,
		AverageScore: elig.AverageScore,
		IssuedAt:     now,
	}
	artifact, err := svc.generator.Generate(ArtifactData{
		CertificateID:  cert.ID,
		TraineeName:    usr.DisplayName(),
		Programme:      svc.programme,
		Issuer:         svc.issuer,
		CompletionDate: now,
		AverageScore:   cert.AverageScore,
	})
	if err != nil {
		return Certificate{}, err
	}
	cert.URL, err = svc.storage.Save(ctx, "certificates/"+cert.ID+svc.generator.Ext(), bytes.NewReader(artifact), svc.generator.ContentType())
	if err != nil {
		return Certificate{}, errors.Wrap(err, "storing certificate")
	}

	stored, created, err := svc.repo.CreateIfNotExists(ctx, cert)
	if err != nil {
		return Certificate{}, errors.Wrap(err, "creating certificate")
	}
	if created {
		svc.logger.Info("certificate issued", usr)
		if svc.notifier != nil {
			svc.notifier.CertificateReady(usr, stored)
		}
	}
	return stored, nil
}

// Recompute issues the certificate of an eligible user; it is a no-op otherwise.
func (svc *Service) Recompute(ctx context.Context, usr user.User) error {
	_, err := svc.Issue(ctx, usr)
	if ae, ok := core.AsAdmissionError(err); ok && ae.Reason == ReasonNotEligible {
		return nil
	}
	return err
}
