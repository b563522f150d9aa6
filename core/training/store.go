package training

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
)

var (
	// errors
	ErrModuleNotFound  = core.NewNotFoundError("module")
	ErrSectionNotFound = core.NewNotFoundError("section")
	ErrModuleExists    = core.NewValidationError(nil, core.FieldError{Field: "number", Error: "a module with this number already exists"})
	ErrSectionExists   = core.NewValidationError(nil, core.FieldError{Field: "position", Error: "a section with this position or code already exists"})

	// a module is either atomic or composed of sections, never both
	ErrModuleHasSections  = core.NewValidationError(errors.New("module is composed of sections; work on its sections instead"))
	ErrModuleHasQuestions = core.NewValidationError(errors.New("module has its own assessment; it cannot be split into sections"))
)

type (
	// Catalog is the read/write access to training content.
	Catalog interface {
		// ListModules returns all modules ordered by number, each with its sections ordered by position.
		ListModules(ctx context.Context, exec ...core.DBExecutor) ([]Module, error)
		GetModule(ctx context.Context, id string, exec ...core.DBExecutor) (Module, error)
		GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (Section, error)
		CreateModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
		CreateSection(ctx context.Context, sec Section, exec ...core.DBExecutor) (Section, error)
	}

	// QuestionIndex tells whether a unit carries its own assessment.
	QuestionIndex interface {
		HasQuestions(ctx context.Context, unit Unit, exec ...core.DBExecutor) (bool, error)
	}

	// Store persists per-user, per-unit progress. Records are created lazily.
	Store interface {
		// GetProgress returns NotStarted(userID, unit) when no record exists.
		GetProgress(ctx context.Context, userID string, unit Unit, exec ...core.DBExecutor) (Progress, error)
		ListProgress(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Progress, error)
		// UpsertProgress creates the record on first write or merges the set fields of upd (see ProgressUpdate.Apply).
		UpsertProgress(ctx context.Context, userID string, unit Unit, upd ProgressUpdate, exec ...core.DBExecutor) (Progress, error)
		// RecordAttempt applies att atomically (see Attempt.Apply); concurrent attempts never lose the highest score.
		RecordAttempt(ctx context.Context, userID string, unit Unit, att Attempt, exec ...core.DBExecutor) (Progress, error)

		// ListUnitProgress returns every user's record for unit.
		ListUnitProgress(ctx context.Context, unit Unit, exec ...core.DBExecutor) ([]Progress, error)
		// SaveProgress overwrites (or creates) the record of p.UserID on p.Unit.
		SaveProgress(ctx context.Context, p Progress, exec ...core.DBExecutor) error
		DeleteProgress(ctx context.Context, userID string, unit Unit, exec ...core.DBExecutor) error
	}
)
