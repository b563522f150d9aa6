package profile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/profile"
	"github.com/cadence/academy/core/user"
	"github.com/cadence/academy/storage/database/inmem"
	"github.com/cadence/academy/tests"
)

func full() user.Profile {
	return user.Profile{
		FirstName:        "Ada",
		LastName:         "Lovelace",
		Phone:            "+243 810 000 000",
		Age:              36,
		StreetAddress:    "12 Avenue de la Paix",
		City:             "Kinshasa",
		State:            "Kinshasa",
		ZipCode:          "00243",
		HighestEducation: "Masters",
	}
}

func TestCompute(t *testing.T) {
	partial := full()
	partial.Phone = ""
	partial.Age = 0

	tests := []struct {
		name          string
		profile       user.Profile
		edu, emp      int
		wantPct       int
		wantComplete  bool
		wantMissing   []string
		wantEducation bool
		wantEmploy    bool
	}{
		{
			name:          "empty",
			wantPct:       0,
			wantMissing:   profile.RequiredFields,
			wantEducation: true,
			wantEmploy:    true,
		},
		{
			name:          "fields only",
			profile:       full(),
			wantPct:       82,
			wantMissing:   []string{},
			wantEducation: true,
			wantEmploy:    true,
		},
		{
			name:        "two fields missing",
			profile:     partial,
			edu:         2,
			emp:         1,
			wantPct:     82,
			wantMissing: []string{profile.FieldPhone, profile.FieldAge},
		},
		{
			name:        "no employment, two fields missing",
			profile:     partial,
			edu:         1,
			wantPct:     73,
			wantMissing: []string{profile.FieldPhone, profile.FieldAge},
			wantEmploy:  true,
		},
		{
			name:         "complete",
			profile:      full(),
			edu:          1,
			emp:          3,
			wantPct:      100,
			wantComplete: true,
			wantMissing:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := profile.Compute(tt.profile, tt.edu, tt.emp)
			assert.Equal(t, tt.wantPct, got.Percentage)
			assert.Equal(t, tt.wantComplete, got.IsComplete)
			assert.Equal(t, tt.wantMissing, got.MissingFields)
			assert.Equal(t, tt.wantEducation, got.MissingEducation)
			assert.Equal(t, tt.wantEmploy, got.MissingEmployment)
		})
	}
}

type fixture struct {
	users    user.Repository
	profiles profile.Repository
	svc      *profile.Service
}

func setup() *fixture {
	db := inmemdb.Open()
	f := &fixture{
		users:    inmemdb.NewUserRepository(db),
		profiles: inmemdb.NewProfileRepository(db),
	}
	usrSvc := user.NewService(nil, f.users, nil, core.NewTestConfig())
	f.svc = profile.NewService(f.profiles, usrSvc)
	return f
}

func TestService_CanAccessTraining(t *testing.T) {
	f := setup()
	ctx := context.Background()

	trainee := testutil.CreateUser(t, f.users, "Trainee", "trainee@cadence.test", "", user.RoleTrainee, "")
	admin := testutil.CreateUser(t, f.users, "Admin", "admin@cadence.test", "", user.RoleAdmin, "")
	instructor := testutil.CreateUser(t, f.users, "Instructor", "instructor@cadence.test", "", user.RoleInstructor, "")
	facilitator := testutil.CreateUser(t, f.users, "Facilitator", "facilitator@cadence.test", "", user.RoleFacilitator, "")
	completed := testutil.CompleteProfile(t, f.users, f.profiles,
		testutil.CreateUser(t, f.users, "Done", "done@cadence.test", "", "", ""))

	tests := []struct {
		name string
		usr  user.User
		want bool
	}{
		{name: "trainee with an empty profile", usr: trainee},
		{name: "facilitator with an empty profile", usr: facilitator},
		{name: "admin", usr: admin, want: true},
		{name: "instructor", usr: instructor, want: true},
		{name: "complete profile", usr: completed, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			access, err := f.svc.CanAccessTraining(ctx, tt.usr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, access.CanAccess)
			if tt.want {
				assert.Nil(t, access.Completeness)
				assert.NoError(t, f.svc.RequireTrainingAccess(ctx, tt.usr))
				return
			}
			require.NotNil(t, access.Completeness)
			assert.False(t, access.Completeness.IsComplete)

			ae, ok := core.AsAdmissionError(f.svc.RequireTrainingAccess(ctx, tt.usr))
			require.True(t, ok)
			assert.Equal(t, profile.ReasonProfileIncomplete, ae.Reason)
			assert.Equal(t, access.Completeness, ae.Detail)
		})
	}
}

func TestService_CalculateCompleteness(t *testing.T) {
	f := setup()
	ctx := context.Background()

	_, err := f.svc.CalculateCompleteness(ctx, "missing")
	assert.True(t, core.IsNotFound(err))

	usr := testutil.CreateUser(t, f.users, "Trainee", "trainee@cadence.test", "", "", "")
	usr.Profile = full()
	usr, err = f.users.UpdateUser(ctx, usr)
	require.NoError(t, err)

	c, err := f.svc.CalculateCompleteness(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 82, c.Percentage)
	assert.True(t, c.MissingEducation)

	_, err = f.svc.AddEducation(ctx, usr.ID, profile.NewEducation{Institution: "UNIKIN", Degree: "BSc"})
	require.NoError(t, err)
	emp, err := f.svc.AddEmployment(ctx, usr.ID, profile.NewEmployment{Employer: "Cadence", Position: "Facilitator"})
	require.NoError(t, err)

	c, err = f.svc.CalculateCompleteness(ctx, usr.ID)
	require.NoError(t, err)
	assert.True(t, c.IsComplete)

	// entries are owned by their user
	other := testutil.CreateUser(t, f.users, "Other", "other@cadence.test", "", "", "")
	err = f.svc.RemoveEmployment(ctx, other.ID, emp.ID)
	assert.True(t, errors.Is(err, profile.ErrEmploymentNotFound))

	require.NoError(t, f.svc.RemoveEmployment(ctx, usr.ID, emp.ID))
	c, err = f.svc.CalculateCompleteness(ctx, usr.ID)
	require.NoError(t, err)
	assert.False(t, c.IsComplete)
	assert.True(t, c.MissingEmployment)
	assert.Equal(t, 91, c.Percentage)
}

func TestNewEducation_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	tests := []struct {
		name    string
		ne      profile.NewEducation
		wantErr bool
	}{
		{name: "valid", ne: profile.NewEducation{Institution: " UNIKIN ", Degree: "BSc", StartDate: "2010-09-01", EndDate: "2014-06-30"}},
		{name: "no dates", ne: profile.NewEducation{Institution: "UNIKIN", Degree: "BSc"}},
		{name: "blank institution", ne: profile.NewEducation{Institution: "  ", Degree: "BSc"}, wantErr: true},
		{name: "bad date", ne: profile.NewEducation{Institution: "UNIKIN", Degree: "BSc", StartDate: "01/09/2010"}, wantErr: true},
		{name: "end before start", ne: profile.NewEducation{Institution: "UNIKIN", Degree: "BSc", StartDate: "2014-06-30", EndDate: "2010-09-01"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ne.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewEmployment_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	ne := profile.NewEmployment{Employer: "Cadence", Position: "Facilitator", StartDate: "2020-01-01", EndDate: "2019-01-01"}
	err := ne.Validate(validate)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "end_date", verr.Fields[0].Field)

	ne.EndDate = ""
	assert.NoError(t, ne.Validate(validate))
}
