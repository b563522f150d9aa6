package livesession

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/user"
)

const (
	ReasonNotOpen = "session_not_open"

	// attendance may be recorded from this long before a session starts
	checkInWindow = 15 * time.Minute
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound = core.NewNotFoundError("session")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, s Session, exec ...core.DBExecutor) (Session, error)
		GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (Session, error)
		// ListSessions returns the sessions ending after from, ordered by start.
		ListSessions(ctx context.Context, from time.Time, exec ...core.DBExecutor) ([]Session, error)
		// ListDueReminders returns the sessions starting in [from, to] whose reminder was not sent yet.
		ListDueReminders(ctx context.Context, from, to time.Time, exec ...core.DBExecutor) ([]Session, error)
		MarkReminded(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error
		// RecordAttendance is a no-op when the attendance already exists.
		RecordAttendance(ctx context.Context, a Attendance, exec ...core.DBExecutor) (Attendance, error)
		ListAttendance(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]Attendance, error)
	}

	UserQuerier interface {
		Query(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
	}

	// Notifier must not block.
	Notifier interface {
		SessionReminder(usr user.User, s Session)
	}

	Service struct {
		repo     Repository
		users    UserQuerier
		notifier Notifier
		window   time.Duration
		logger   core.Logger
	}
)

func NewService(repo Repository, users UserQuerier, notifier Notifier, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		notifier: notifier,
		window:   conf.Training.ReminderWindow,
		logger:   logger,
	}
}

func (svc *Service) Schedule(ctx context.Context, createdBy user.User, ns NewSession) (Session, error) {
	return svc.repo.CreateSession(ctx, Session{
		Title:           ns.Title,
		Description:     ns.Description,
		StartsAt:        ns.StartsAt.UTC(),
		DurationMinutes: ns.DurationMinutes,
		JoinURL:         ns.JoinURL,
		CreatedBy:       createdBy.ID,
		CreatedAt:       NowFunc().UTC(),
	})
}

// Upcoming lists the sessions that have not ended yet.
func (svc *Service) Upcoming(ctx context.Context) ([]Session, error) {
	return svc.repo.ListSessions(ctx, NowFunc().UTC())
}

func (svc *Service) Get(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

// Attend records the user's attendance while the session is open.
func (svc *Service) Attend(ctx context.Context, usr user.User, sessionID string) (Attendance, error) {
	s, err := svc.repo.GetSession(ctx, sessionID)
	if err != nil {
		return Attendance{}, err
	}
	now := NowFunc().UTC()
	if now.Before(s.StartsAt.Add(-checkInWindow)) || now.After(s.EndsAt()) {
		return Attendance{}, core.NewAdmissionError(ReasonNotOpen, "attendance can only be recorded while the session is open", s)
	}
	return svc.repo.RecordAttendance(ctx, Attendance{SessionID: s.ID, UserID: usr.ID, AttendedAt: now})
}

func (svc *Service) Attendance(ctx context.Context, sessionID string) ([]Attendance, error) {
	if _, err := svc.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return svc.repo.ListAttendance(ctx, sessionID)
}

// SendReminders emails active training users about the sessions starting within the reminder
// window. Each session is reminded once. It returns the number of sessions reminded.
func (svc *Service) SendReminders(ctx context.Context) (int, error) {
	now := NowFunc().UTC()
	sessions, err := svc.repo.ListDueReminders(ctx, now, now.Add(svc.window))
	if err != nil {
		return 0, errors.Wrap(err, "listing due reminders")
	}
	if len(sessions) == 0 {
		return 0, nil
	}

	users, err := svc.users.Query(ctx, &user.QueryFilter{Roles: user.TrainingRoles, Statuses: []string{user.StatusActive}}, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying users")
	}

	var n int
	for _, s := range sessions {
		// at most one reminder per session
		if err = svc.repo.MarkReminded(ctx, s.ID, now); err != nil {
			svc.logger.Error(fmt.Sprintf("livesession.SendReminders: marking %s: %v", s.ID, err), err)
			continue
		}
		for _, usr := range users {
			svc.notifier.SessionReminder(usr, s)
		}
		n++
	}
	return n, nil
}
