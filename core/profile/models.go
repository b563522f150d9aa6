package profile

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cadence/academy/core"
)

// Required profile fields, by their JSON names.
const (
	FieldFirstName        = "first_name"
	FieldLastName         = "last_name"
	FieldPhone            = "phone"
	FieldAge              = "age"
	FieldStreetAddress    = "street_address"
	FieldCity             = "city"
	FieldState            = "state"
	FieldZipCode          = "zip_code"
	FieldHighestEducation = "highest_education"
)

var RequiredFields = []string{
	FieldFirstName, FieldLastName, FieldPhone, FieldAge, FieldStreetAddress,
	FieldCity, FieldState, FieldZipCode, FieldHighestEducation,
}

type EducationEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Institution  string    `json:"institution"`
	Degree       string    `json:"degree"`
	FieldOfStudy string    `json:"field_of_study"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	CreatedAt    time.Time `json:"created_at"`
}

type EmploymentEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Employer    string    `json:"employer"`
	Position    string    `json:"position"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type NewEducation struct {
	Institution  string `json:"institution" validate:"required,notblank,max=200"`
	Degree       string `json:"degree" validate:"required,notblank,max=200"`
	FieldOfStudy string `json:"field_of_study" validate:"max=200"`
	StartDate    string `json:"start_date" validate:"date"`
	EndDate      string `json:"end_date" validate:"date"`
}

func (ne *NewEducation) Validate(validate *validator.Validate) error {
	ne.Institution = core.CleanString(ne.Institution)
	ne.Degree = core.CleanString(ne.Degree)
	ne.FieldOfStudy = core.CleanString(ne.FieldOfStudy)
	ne.StartDate = core.CleanString(ne.StartDate)
	ne.EndDate = core.CleanString(ne.EndDate)
	if err := validate.Struct(ne); err != nil {
		return err
	}
	return checkDateRange(ne.StartDate, ne.EndDate)
}

type NewEmployment struct {
	Employer    string `json:"employer" validate:"required,notblank,max=200"`
	Position    string `json:"position" validate:"required,notblank,max=200"`
	StartDate   string `json:"start_date" validate:"date"`
	EndDate     string `json:"end_date" validate:"date"`
	Description string `json:"description" validate:"max=2000"`
}

func (ne *NewEmployment) Validate(validate *validator.Validate) error {
	ne.Employer = core.CleanString(ne.Employer)
	ne.Position = core.CleanString(ne.Position)
	ne.StartDate = core.CleanString(ne.StartDate)
	ne.EndDate = core.CleanString(ne.EndDate)
	ne.Description = core.CleanString(ne.Description)
	if err := validate.Struct(ne); err != nil {
		return err
	}
	return checkDateRange(ne.StartDate, ne.EndDate)
}

// checkDateRange expects dates already validated with the `date` tag.
func checkDateRange(start, end string) error {
	if start == "" || end == "" {
		return nil
	}
	s, _ := time.Parse(core.DateLayout, start)
	e, _ := time.Parse(core.DateLayout, end)
	if e.Before(s) {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "end_date cannot be before start_date"})
	}
	return nil
}

// Completeness reports which profile requirements are still missing.
type Completeness struct {
	IsComplete        bool     `json:"is_complete"`
	Percentage        int      `json:"percentage"`
	MissingFields     []string `json:"missing_fields"`
	MissingEducation  bool     `json:"missing_education"`
	MissingEmployment bool     `json:"missing_employment"`
}

type Access struct {
	CanAccess    bool          `json:"can_access"`
	Completeness *Completeness `json:"completeness,omitempty"`
}
