package livesession_test

import (
	"context"
	"io/ioutil"
	"log"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/livesession"
	"github.com/cadence/academy/core/user"
	"github.com/cadence/academy/services/logger"
	"github.com/cadence/academy/storage/database/inmem"
	"github.com/cadence/academy/tests"
)

type reminder struct {
	email     string
	sessionID string
}

type fakeNotifier struct {
	sent []reminder
}

func (n *fakeNotifier) SessionReminder(usr user.User, s livesession.Session) {
	n.sent = append(n.sent, reminder{usr.Email, s.ID})
}

type fixture struct {
	users    user.Repository
	notifier *fakeNotifier
	svc      *livesession.Service
	now      time.Time
	admin    user.User
}

func setup(t *testing.T) *fixture {
	conf := core.NewTestConfig()
	conf.Training.ReminderWindow = 24 * time.Hour
	lgr := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	lgr.Enable(false)

	db := inmemdb.Open()
	f := &fixture{
		users:    inmemdb.NewUserRepository(db),
		notifier: &fakeNotifier{},
		now:      time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC),
	}
	usrSvc := user.NewService(nil, f.users, nil, conf)
	f.svc = livesession.NewService(inmemdb.NewSessionRepository(db), usrSvc, f.notifier, conf, lgr)
	f.admin = testutil.CreateUser(t, f.users, "Admin", "admin@cadence.test", "", user.RoleAdmin, "")

	livesession.NowFunc = func() time.Time { return f.now }
	t.Cleanup(func() { livesession.NowFunc = time.Now })
	return f
}

func (f *fixture) schedule(t *testing.T, title string, in time.Duration, minutes int) livesession.Session {
	s, err := f.svc.Schedule(context.Background(), f.admin, livesession.NewSession{
		Title:           title,
		StartsAt:        f.now.Add(in),
		DurationMinutes: minutes,
		JoinURL:         "https://meet.test/" + title,
	})
	require.NoError(t, err)
	return s
}

func TestService_SendReminders(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	testutil.CreateUser(t, f.users, "Trainee", "trainee@cadence.test", "", user.RoleTrainee, "")
	testutil.CreateUser(t, f.users, "Facilitator", "facilitator@cadence.test", "", user.RoleFacilitator, "")
	testutil.CreateUser(t, f.users, "Patient", "patient@cadence.test", "", user.RolePatient, "")
	testutil.CreateUser(t, f.users, "Suspended", "suspended@cadence.test", "", user.RoleTrainee, user.StatusSuspended)

	soon := f.schedule(t, "soon", 2*time.Hour, 60)
	f.schedule(t, "later", 48*time.Hour, 60)
	f.schedule(t, "past", -3*time.Hour, 60)

	n, err := f.svc.SendReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	emails := make([]string, 0, len(f.notifier.sent))
	for _, r := range f.notifier.sent {
		assert.Equal(t, soon.ID, r.sessionID)
		emails = append(emails, r.email)
	}
	sort.Strings(emails)
	assert.Equal(t, []string{"admin@cadence.test", "facilitator@cadence.test", "trainee@cadence.test"}, emails)

	// each session is reminded once
	n, err = f.svc.SendReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.notifier.sent, 3)

	// "later" enters the window a day after
	f.now = f.now.Add(25 * time.Hour)
	n, err = f.svc.SendReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, f.notifier.sent, 6)
}

func TestService_Attend(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.users, "Trainee", "trainee@cadence.test", "", "", "")
	s := f.schedule(t, "standup", time.Hour, 30)
	start := s.StartsAt

	_, err := f.svc.Attend(ctx, usr, "missing")
	assert.True(t, core.IsNotFound(err))

	tests := []struct {
		name string
		at   time.Time
		open bool
	}{
		{name: "an hour early", at: start.Add(-time.Hour)},
		{name: "16 minutes early", at: start.Add(-16 * time.Minute)},
		{name: "15 minutes early", at: start.Add(-15 * time.Minute), open: true},
		{name: "at start", at: start, open: true},
		{name: "at the end", at: start.Add(30 * time.Minute), open: true},
		{name: "after the end", at: start.Add(31 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.now = tt.at
			a, err := f.svc.Attend(ctx, usr, s.ID)
			if !tt.open {
				ae, ok := core.AsAdmissionError(err)
				require.True(t, ok, "Attend() error = %v", err)
				assert.Equal(t, livesession.ReasonNotOpen, ae.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, usr.ID, a.UserID)
		})
	}

	// attendance is recorded once, at the first check-in
	attendance, err := f.svc.Attendance(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, attendance, 1)
	assert.Equal(t, start.Add(-15*time.Minute), attendance[0].AttendedAt)
}

func TestService_Upcoming(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	later := f.schedule(t, "later", 48*time.Hour, 60)
	running := f.schedule(t, "running", -30*time.Minute, 60)
	f.schedule(t, "over", -2*time.Hour, 60)

	sessions, err := f.svc.Upcoming(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, running.ID, sessions[0].ID)
	assert.Equal(t, later.ID, sessions[1].ID)

	got, err := f.svc.Get(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, got.CreatedBy)
	assert.Equal(t, later.StartsAt, got.StartsAt)
}

func TestNewSession_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	now := time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		ns      livesession.NewSession
		wantErr bool
	}{
		{name: "valid", ns: livesession.NewSession{Title: " Q&A ", StartsAt: now.Add(time.Hour), DurationMinutes: 45}},
		{name: "blank title", ns: livesession.NewSession{Title: " ", StartsAt: now.Add(time.Hour), DurationMinutes: 45}, wantErr: true},
		{name: "in the past", ns: livesession.NewSession{Title: "Q&A", StartsAt: now.Add(-time.Hour), DurationMinutes: 45}, wantErr: true},
		{name: "no duration", ns: livesession.NewSession{Title: "Q&A", StartsAt: now.Add(time.Hour)}, wantErr: true},
		{name: "too long", ns: livesession.NewSession{Title: "Q&A", StartsAt: now.Add(time.Hour), DurationMinutes: 601}, wantErr: true},
		{name: "bad url", ns: livesession.NewSession{Title: "Q&A", StartsAt: now.Add(time.Hour), DurationMinutes: 45, JoinURL: "not a url"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ns.Validate(validate, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "Q&A", tt.ns.Title)
		})
	}
}
