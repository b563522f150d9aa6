package profile

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/user"
)

const ReasonProfileIncomplete = "profile_incomplete"

var (
	// errors
	ErrEducationNotFound  = core.NewNotFoundError("education entry")
	ErrEmploymentNotFound = core.NewNotFoundError("employment entry")
)

type (
	Repository interface {
		ListEducation(ctx context.Context, userID string, exec ...core.DBExecutor) ([]EducationEntry, error)
		CreateEducation(ctx context.Context, entry EducationEntry, exec ...core.DBExecutor) (EducationEntry, error)
		// DeleteEducation returns ErrEducationNotFound unless userID owns the entry.
		DeleteEducation(ctx context.Context, userID, id string, exec ...core.DBExecutor) error
		CountEducation(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error)

		ListEmployment(ctx context.Context, userID string, exec ...core.DBExecutor) ([]EmploymentEntry, error)
		CreateEmployment(ctx context.Context, entry EmploymentEntry, exec ...core.DBExecutor) (EmploymentEntry, error)
		// DeleteEmployment returns ErrEmploymentNotFound unless userID owns the entry.
		DeleteEmployment(ctx context.Context, userID, id string, exec ...core.DBExecutor) error
		CountEmployment(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo  Repository
		users UserGetter
	}
)

func NewService(repo Repository, users UserGetter) *Service {
	return &Service{repo: repo, users: users}
}

// Compute derives the completeness of a profile given its education & employment entry counts.
func Compute(p user.Profile, educationCount, employmentCount int) Completeness {
	values := map[string]bool{
		FieldFirstName:        p.FirstName != "",
		FieldLastName:         p.LastName != "",
		FieldPhone:            p.Phone != "",
		FieldAge:              p.Age > 0,
		FieldStreetAddress:    p.StreetAddress != "",
		FieldCity:             p.City != "",
		FieldState:            p.State != "",
		FieldZipCode:          p.ZipCode != "",
		FieldHighestEducation: p.HighestEducation != "",
	}

	c := Completeness{
		MissingFields:     make([]string, 0),
		MissingEducation:  educationCount == 0,
		MissingEmployment: employmentCount == 0,
	}
	for _, f := range RequiredFields {
		if !values[f] {
			c.MissingFields = append(c.MissingFields, f)
		}
	}

	total := len(RequiredFields) + 2
	completed := len(RequiredFields) - len(c.MissingFields)
	if !c.MissingEducation {
		completed++
	}
	if !c.MissingEmployment {
		completed++
	}
	c.Percentage = core.RoundPercent(completed, total)
	c.IsComplete = c.Percentage == 100
	return c
}

func (svc *Service) CalculateCompleteness(ctx context.Context, userID string) (Completeness, error) {
	usr, err := svc.users.GetByID(ctx, userID)
	if err != nil {
		return Completeness{}, err
	}
	return svc.completeness(ctx, usr)
}

func (svc *Service) completeness(ctx context.Context, usr user.User) (Completeness, error) {
	edu, err := svc.repo.CountEducation(ctx, usr.ID)
	if err != nil {
		return Completeness{}, errors.Wrap(err, "counting education entries")
	}
	emp, err := svc.repo.CountEmployment(ctx, usr.ID)
	if err != nil {
		return Completeness{}, errors.Wrap(err, "counting employment entries")
	}
	return Compute(usr.Profile, edu, emp), nil
}

// CanAccessTraining lets staff through unconditionally; everyone else needs a complete profile.
func (svc *Service) CanAccessTraining(ctx context.Context, usr user.User) (Access, error) {
	if usr.IsStaff() {
		return Access{CanAccess: true}, nil
	}
	c, err := svc.completeness(ctx, usr)
	if err != nil {
		return Access{}, err
	}
	if !c.IsComplete {
		return Access{CanAccess: false, Completeness: &c}, nil
	}
	return Access{CanAccess: true}, nil
}

// RequireTrainingAccess turns a denied CanAccessTraining into an admission error.
func (svc *Service) RequireTrainingAccess(ctx context.Context, usr user.User) error {
	access, err := svc.CanAccessTraining(ctx, usr)
	if err != nil {
		return err
	}
	if !access.CanAccess {
		return core.NewAdmissionError(ReasonProfileIncomplete, "complete your profile to access training", access.Completeness)
	}
	return nil
}

func (svc *Service) ListEducation(ctx context.Context, userID string) ([]EducationEntry, error) {
	return svc.repo.ListEducation(ctx, userID)
}

func (svc *Service) AddEducation(ctx context.Context, userID string, ne NewEducation) (EducationEntry, error) {
	return svc.repo.CreateEducation(ctx, EducationEntry{
		UserID:       userID,
		Institution:  ne.Institution,
		Degree:       ne.Degree,
		FieldOfStudy: ne.FieldOfStudy,
		StartDate:    ne.StartDate,
		EndDate:      ne.EndDate,
		CreatedAt:    time.Now().UTC(),
	})
}

func (svc *Service) RemoveEducation(ctx context.Context, userID, id string) error {
	return svc.repo.DeleteEducation(ctx, userID, id)
}

func (svc *Service) ListEmployment(ctx context.Context, userID string) ([]EmploymentEntry, error) {
	return svc.repo.ListEmployment(ctx, userID)
}

func (svc *Service) AddEmployment(ctx context.Context, userID string, ne NewEmployment) (EmploymentEntry, error) {
	return svc.repo.CreateEmployment(ctx, EmploymentEntry{
		UserID:      userID,
		Employer:    ne.Employer,
		Position:    ne.Position,
		StartDate:   ne.StartDate,
		EndDate:     ne.EndDate,
		Description: ne.Description,
		CreatedAt:   time.Now().UTC(),
	})
}

func (svc *Service) RemoveEmployment(ctx context.Context, userID, id string) error {
	return svc.repo.DeleteEmployment(ctx, userID, id)
}
