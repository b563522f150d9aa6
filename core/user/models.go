package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/cadence/academy/core"
)

// Roles
const (
	RoleAdmin       = "admin"
	RoleInstructor  = "instructor"
	RoleProvider    = "provider"
	RoleTrainee     = "trainee"
	RoleFacilitator = "facilitator"
	RolePatient     = "patient"
)

// Statuses
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusCompleted = "completed"
)

var (
	AllRoles    = []string{RoleAdmin, RoleInstructor, RoleProvider, RoleTrainee, RoleFacilitator, RolePatient}
	AllStatuses = []string{StatusPending, StatusActive, StatusSuspended, StatusCompleted}

	// TrainingRoles may use the training procedures.
	TrainingRoles = []string{RoleTrainee, RoleFacilitator, RoleInstructor, RoleAdmin, RoleProvider}
	// StaffRoles bypass the profile completeness gate.
	StaffRoles = []string{RoleAdmin, RoleInstructor}

	rolePriorities = map[string]int{
		RoleAdmin:       30,
		RoleInstructor:  20,
		RoleProvider:    15,
		RoleFacilitator: 10,
		RoleTrainee:     5,
		RolePatient:     1,
	}

	Roles = []Role{
		{Name: "Trainee", Value: RoleTrainee},
		{Name: "Facilitator", Value: RoleFacilitator},
		{Name: "Provider", Value: RoleProvider},
		{Name: "Patient", Value: RolePatient},
		{Name: "Instructor", Value: RoleInstructor},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Profile holds the personal fields checked by the profile completeness gate.
type Profile struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Phone            string `json:"phone"`
	Age              int    `json:"age"`
	StreetAddress    string `json:"street_address"`
	City             string `json:"city"`
	State            string `json:"state"`
	ZipCode          string `json:"zip_code"`
	HighestEducation string `json:"highest_education"`
}

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	Profile      Profile    `json:"profile"`
	PasswordHash []byte     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`           // UTC
	UpdatedAt    time.Time  `json:"updated_at"`           // UTC
	LastLogin    time.Time  `json:"last_login,omitempty"` // UTC
	DeletedAt    *time.Time `json:"deleted_at,omitempty"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool      { return u.Role == RoleAdmin }
func (u *User) IsStaff() bool      { return u.HasAnyRole(StaffRoles...) }
func (u *User) IsDeleted() bool    { return u.DeletedAt != nil }
func (u *User) IsSuspended() bool  { return u.Status == StatusSuspended }
func (u *User) DisplayName() string {
	if u.Profile.FirstName != "" {
		return u.Profile.FirstName + " " + u.Profile.LastName
	}
	return u.Name
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"omitempty,role"`
	Status          string `json:"status" validate:"omitempty,userstatus"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information may be provided by an admin to modify an existing User.
type UpdateUser struct {
	Name            string  `json:"name"`
	Email           string  `json:"email" validate:"omitempty,email"`
	Role            *string `json:"role" validate:"omitempty,role"`
	Status          *string `json:"status" validate:"omitempty,userstatus"`
	Password        string  `json:"password" validate:"omitempty"`
	PasswordConfirm string  `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc *Service) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Email, origUsr)
}

// UpdateProfile is what a user may change about themselves.
type UpdateProfile struct {
	FirstName        string `json:"first_name" validate:"max=100"`
	LastName         string `json:"last_name" validate:"max=100"`
	Phone            string `json:"phone" validate:"omitempty,max=30"`
	Age              int    `json:"age" validate:"omitempty,min=16,max=120"`
	StreetAddress    string `json:"street_address" validate:"max=200"`
	City             string `json:"city" validate:"max=100"`
	State            string `json:"state" validate:"max=100"`
	ZipCode          string `json:"zip_code" validate:"max=20"`
	HighestEducation string `json:"highest_education" validate:"max=100"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.FirstName = core.CleanString(up.FirstName)
	up.LastName = core.CleanString(up.LastName)
	up.Phone = core.CleanString(up.Phone)
	up.StreetAddress = core.CleanString(up.StreetAddress)
	up.City = core.CleanString(up.City)
	up.State = core.CleanString(up.State)
	up.ZipCode = core.CleanString(up.ZipCode)
	up.HighestEducation = core.CleanString(up.HighestEducation)
	return validate.Struct(up)
}

func (up UpdateProfile) Profile() Profile {
	return Profile(up)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// HardDeleteRequest must repeat the email of the user being permanently deleted.
type HardDeleteRequest struct {
	ConfirmEmail string `json:"confirm_email" validate:"required"`
}

type QueryFilter struct {
	Search         string   `query:"search"`
	Roles          []string `query:"role"`
	Statuses       []string `query:"status"`
	IncludeDeleted bool     `query:"include_deleted"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects a single user; the first non-empty field wins.
type GetFilter struct {
	ID             string
	Email          string
	IncludeDeleted bool
}
