package user_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/user"
	"github.com/cadence/academy/storage/database/inmem"
	"github.com/cadence/academy/tests"
)

const pwd = "Qx7#vLp2!mZr"

type resetMail struct {
	usr        user.User
	uid, token string
}

type fakeMailer struct {
	sent []resetMail
}

func (m *fakeMailer) SendPasswordReset(usr user.User, uid, token string) {
	m.sent = append(m.sent, resetMail{usr, uid, token})
}

type fixture struct {
	repo     user.Repository
	mailer   *fakeMailer
	svc      *user.Service
	validate *validator.Validate
}

func setup() *fixture {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	repo := inmemdb.NewUserRepository(inmemdb.Open())
	mailer := &fakeMailer{}
	return &fixture{
		repo:     repo,
		mailer:   mailer,
		svc:      user.NewService(nil, repo, mailer, core.NewTestConfig()),
		validate: validate,
	}
}

func TestNewUser_Validate(t *testing.T) {
	f := setup()
	ctx := context.Background()
	testutil.CreateUser(t, f.repo, "Taken", "taken@cadence.test", "", "", "")

	tests := []struct {
		name    string
		nu      user.NewUser
		wantErr bool
	}{
		{name: "valid", nu: user.NewUser{Name: " Ada ", Email: " ADA@cadence.test ", Password: pwd, PasswordConfirm: pwd}},
		{name: "valid with role", nu: user.NewUser{Name: "Ada", Email: "ada@cadence.test", Password: pwd, PasswordConfirm: pwd, Role: user.RoleFacilitator}},
		{name: "unknown role", nu: user.NewUser{Name: "Ada", Email: "ada@cadence.test", Password: pwd, PasswordConfirm: pwd, Role: "guest"}, wantErr: true},
		{name: "unknown status", nu: user.NewUser{Name: "Ada", Email: "ada@cadence.test", Password: pwd, PasswordConfirm: pwd, Status: "gone"}, wantErr: true},
		{name: "bad email", nu: user.NewUser{Name: "Ada", Email: "ada", Password: pwd, PasswordConfirm: pwd}, wantErr: true},
		{name: "password mismatch", nu: user.NewUser{Name: "Ada", Email: "ada@cadence.test", Password: pwd, PasswordConfirm: pwd + "x"}, wantErr: true},
		{name: "short password", nu: user.NewUser{Name: "Ada", Email: "ada@cadence.test", Password: "Aa1!", PasswordConfirm: "Aa1!"}, wantErr: true},
		{name: "numeric password", nu: user.NewUser{Name: "Ada", Email: "ada@cadence.test", Password: "1234567890", PasswordConfirm: "1234567890"}, wantErr: true},
		{name: "email taken", nu: user.NewUser{Name: "Ada", Email: "TAKEN@cadence.test", Password: pwd, PasswordConfirm: pwd}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(ctx, f.validate, f.svc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "Ada", tt.nu.Name)
			assert.Equal(t, "ada@cadence.test", tt.nu.Email)
		})
	}
}

func TestService_Create(t *testing.T) {
	f := setup()
	ctx := context.Background()

	usr, err := f.svc.Create(ctx, user.NewUser{Name: "Ada", Email: "ada@cadence.test", Password: pwd})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.Equal(t, user.RoleTrainee, usr.Role)
	assert.Equal(t, user.StatusActive, usr.Status)
	assert.NoError(t, usr.CheckPassword(pwd))
	assert.Error(t, usr.CheckPassword("wrong"))

	got, err := f.svc.GetByEmail(ctx, " ADA@cadence.test")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	err = f.svc.CheckUniqueness(ctx, "ada@cadence.test")
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, user.ErrUserExists, verr.Err)
	assert.NoError(t, f.svc.CheckUniqueness(ctx, "ada@cadence.test", usr))
}

func TestService_PasswordReset(t *testing.T) {
	f := setup()
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.repo, "Ada", "ada@cadence.test", pwd, "", "")
	suspended := testutil.CreateUser(t, f.repo, "Sus", "sus@cadence.test", pwd, "", user.StatusSuspended)

	assert.True(t, core.IsNotFound(f.svc.RequestPasswordReset(ctx, "nobody@cadence.test")))
	assert.Equal(t, user.ErrNotFound, f.svc.RequestPasswordReset(ctx, suspended.Email))
	assert.Empty(t, f.mailer.sent)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ADA@cadence.test"))
	require.Len(t, f.mailer.sent, 1)
	mail := f.mailer.sent[0]
	assert.Equal(t, usr.ID, mail.usr.ID)
	assert.Equal(t, user.EncodeUID(usr), mail.uid)

	const newPwd = "N3w!passWord"
	invalidField := func(err error) string {
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			return ""
		}
		return verr.Fields[0].Field
	}

	tests := []struct {
		name      string
		data      user.ResetUserPassword
		wantField string
	}{
		{name: "bad uid", data: user.ResetUserPassword{UID: "!!", Token: mail.token, Password: newPwd}, wantField: "uid"},
		{name: "unknown uid", data: user.ResetUserPassword{UID: user.EncodeUID(user.User{ID: "nope"}), Token: mail.token, Password: newPwd}, wantField: "uid"},
		{name: "other user's uid", data: user.ResetUserPassword{UID: user.EncodeUID(suspended), Token: mail.token, Password: newPwd}, wantField: "token"},
		{name: "bad token", data: user.ResetUserPassword{UID: mail.uid, Token: "HE4TS-sigsig-sig", Password: newPwd}, wantField: "token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantField, invalidField(f.svc.ResetPassword(ctx, tt.data)))
		})
	}

	require.NoError(t, f.svc.ResetPassword(ctx, user.ResetUserPassword{UID: mail.uid, Token: mail.token, Password: newPwd}))
	got, err := f.svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, got.CheckPassword(newPwd))

	// tokens are single use
	err = f.svc.ResetPassword(ctx, user.ResetUserPassword{UID: mail.uid, Token: mail.token, Password: pwd})
	assert.Equal(t, "token", invalidField(err))
}

func TestService_Delete(t *testing.T) {
	f := setup()
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.repo, "Ada", "ada@cadence.test", "", "", "")

	deleted, err := f.svc.SoftDelete(ctx, usr)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted())

	_, err = f.svc.GetByID(ctx, usr.ID)
	assert.True(t, core.IsNotFound(err))
	got, err := f.svc.Get(ctx, user.GetFilter{ID: usr.ID, IncludeDeleted: true})
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())

	err = f.svc.HardDelete(ctx, usr.ID, "someone@cadence.test")
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, user.ErrConfirmationFailed, verr.Err)

	require.NoError(t, f.svc.HardDelete(ctx, usr.ID, " ADA@cadence.test "))
	_, err = f.svc.Get(ctx, user.GetFilter{ID: usr.ID, IncludeDeleted: true})
	assert.True(t, core.IsNotFound(err))
}

func TestService_SetStatus(t *testing.T) {
	f := setup()
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.repo, "Ada", "ada@cadence.test", "", "", "")

	usr, err := f.svc.SetStatus(ctx, usr, user.StatusSuspended)
	require.NoError(t, err)
	assert.True(t, usr.IsSuspended())

	users, err := f.svc.Query(ctx, &user.QueryFilter{Statuses: []string{user.StatusSuspended}}, nil)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, usr.ID, users[0].ID)
}
