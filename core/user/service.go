package user

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/cadence/academy/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user")
	ErrUserExists         = errors.New("a user with this email already exists")
	ErrConfirmationFailed = errors.New("confirmation email does not match the user's email")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		// Soft-deleted users are left out unless QueryFilter.IncludeDeleted is set.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// DeleteUsersByID hard deletes users and every row they own.
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	// Mailer sends the account related emails.
	Mailer interface {
		SendPasswordReset(usr User, uid, token string)
	}

	Service struct {
		db     core.DB
		repo   Repository
		mailer Mailer
		tokens tokenGenerator
	}
)

func NewService(db core.DB, repo Repository, mailer Mailer, conf *core.Config) *Service {
	return &Service{
		db:     db,
		repo:   repo,
		mailer: mailer,
		tokens: tokenGenerator{secretKey: conf.SecretKey, timeout: conf.PasswordResetTimeoutDelta},
	}
}

func (svc *Service) CheckUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers); err != nil {
		if err == ErrUserExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return pkgerrors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		Status:    nu.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Role == "" {
		usr.Role = RoleTrainee
	}
	if usr.Status == "" {
		usr.Status = StatusActive
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

// Get returns the user selected by filter; only Get with IncludeDeleted sees soft-deleted users.
func (svc *Service) Get(ctx context.Context, filter GetFilter) (User, error) {
	filter.Email = core.CleanString(filter.Email, true /* lower */)
	return svc.repo.GetUser(ctx, filter)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Email = uu.Email
	if uu.Role != nil {
		usr.Role = *uu.Role
	}
	if uu.Status != nil {
		usr.Status = *uu.Status
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, pkgerrors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error) {
	usr.Profile = up.Profile()
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetStatus moves a user to the given lifecycle status.
func (svc *Service) SetStatus(ctx context.Context, usr User, status string) (User, error) {
	if usr.Status == status {
		return usr, nil
	}
	usr.Status = status
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SoftDelete marks the user as deleted; its rows are kept until HardDelete.
func (svc *Service) SoftDelete(ctx context.Context, usr User) (User, error) {
	if usr.IsDeleted() {
		return usr, nil
	}
	now := time.Now().UTC()
	usr.DeletedAt = &now
	usr.UpdatedAt = now
	return svc.repo.UpdateUser(ctx, usr)
}

// HardDelete permanently deletes the user and everything it owns.
// confirmEmail must match the user's email (case-insensitive).
func (svc *Service) HardDelete(ctx context.Context, id, confirmEmail string) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id, IncludeDeleted: true})
	if err != nil {
		return err
	}
	if core.CleanString(confirmEmail, true /* lower */) != usr.Email {
		return core.NewValidationError(ErrConfirmationFailed,
			core.FieldError{Field: "confirm_email", Error: ErrConfirmationFailed.Error()})
	}

	return core.WithTx(ctx, svc.db, func(exec core.DBExecutor) error {
		if _, err := svc.repo.DeleteUsersByID(ctx, []string{usr.ID}, exec); err != nil {
			return pkgerrors.Wrap(err, "deleting user")
		}
		return nil
	})
}

// RequestPasswordReset emails a password reset link to the active user owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr.IsSuspended() {
		return ErrNotFound
	}
	token, err := svc.tokens.MakeToken(usr)
	if err != nil {
		return pkgerrors.Wrap(err, "making token")
	}
	svc.mailer.SendPasswordReset(usr, EncodeUID(usr), token)
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalidErr := func(field string) error {
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: "invalid value"})
	}

	uid, err := decodeUID(data.UID)
	if err != nil {
		return invalidErr("uid")
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		if core.IsNotFound(err) {
			return invalidErr("uid")
		}
		return pkgerrors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return invalidErr("token")
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return pkgerrors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// MakePasswordResetToken is used by the admin CLI to hand out reset links.
func (svc *Service) MakePasswordResetToken(usr User) (string, error) {
	return svc.tokens.MakeToken(usr)
}
