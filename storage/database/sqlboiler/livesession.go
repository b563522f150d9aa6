package boiledrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/livesession"
)

const sessionColumns = "id, title, description, starts_at, duration_minutes, join_url, created_by, reminder_sent_at, created_at"

type sessionRow struct {
	ID              string      `boil:"id"`
	Title           string      `boil:"title"`
	Description     string      `boil:"description"`
	StartsAt        time.Time   `boil:"starts_at"`
	DurationMinutes int         `boil:"duration_minutes"`
	JoinURL         string      `boil:"join_url"`
	CreatedBy       null.String `boil:"created_by"`
	ReminderSentAt  null.Time   `boil:"reminder_sent_at"`
	CreatedAt       time.Time   `boil:"created_at"`
}

func (r sessionRow) session() livesession.Session {
	s := livesession.Session{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		StartsAt:        r.StartsAt.UTC(),
		DurationMinutes: r.DurationMinutes,
		JoinURL:         r.JoinURL,
		CreatedBy:       r.CreatedBy.String,
		CreatedAt:       r.CreatedAt.UTC(),
	}
	if r.ReminderSentAt.Valid {
		t := r.ReminderSentAt.Time.UTC()
		s.ReminderSentAt = &t
	}
	return s
}

type attendanceRow struct {
	SessionID  string    `boil:"session_id"`
	UserID     string    `boil:"user_id"`
	AttendedAt time.Time `boil:"attended_at"`
}

type sessionRepository struct {
	exec core.DBExecutor
}

var _ livesession.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(exec core.DBExecutor) livesession.Repository {
	return &sessionRepository{exec: exec}
}

func (repo sessionRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.GetExec(repo.exec, svcExec)
}

func (repo sessionRepository) list(ctx context.Context, exec []core.DBExecutor, where string, args ...interface{}) ([]livesession.Session, error) {
	var rows []sessionRow
	q := "SELECT " + sessionColumns + " FROM live_sessions WHERE " + where + " ORDER BY starts_at"
	if err := queries.Raw(q, args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "listing live sessions")
	}
	sessions := make([]livesession.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.session())
	}
	return sessions, nil
}

func (repo sessionRepository) CreateSession(ctx context.Context, s livesession.Session, exec ...core.DBExecutor) (livesession.Session, error) {
	s.ID = uuid.New().String()
	q := "INSERT INTO live_sessions (" + sessionColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)"
	_, err := queries.Raw(q, s.ID, s.Title, s.Description, s.StartsAt.UTC(), s.DurationMinutes, s.JoinURL,
		null.NewString(s.CreatedBy, s.CreatedBy != ""), null.TimeFromPtr(s.ReminderSentAt), s.CreatedAt.UTC(),
	).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return livesession.Session{}, errors.Wrap(err, "inserting live session")
	}
	return s, nil
}

func (repo sessionRepository) GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (livesession.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return livesession.Session{}, livesession.ErrNotFound
	}
	var row sessionRow
	q := "SELECT " + sessionColumns + " FROM live_sessions WHERE id = $1"
	if err := queries.Raw(q, id).Bind(ctx, repo.getExec(exec), &row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return livesession.Session{}, livesession.ErrNotFound
		}
		return livesession.Session{}, errors.Wrap(err, "finding live session")
	}
	return row.session(), nil
}

func (repo sessionRepository) ListSessions(ctx context.Context, from time.Time, exec ...core.DBExecutor) ([]livesession.Session, error) {
	return repo.list(ctx, exec, "starts_at + duration_minutes * interval '1 minute' > $1", from.UTC())
}

func (repo sessionRepository) ListDueReminders(ctx context.Context, from, to time.Time, exec ...core.DBExecutor) ([]livesession.Session, error) {
	return repo.list(ctx, exec, "reminder_sent_at IS NULL AND starts_at BETWEEN $1 AND $2", from.UTC(), to.UTC())
}

func (repo sessionRepository) MarkReminded(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error {
	q := "UPDATE live_sessions SET reminder_sent_at = $2 WHERE id = $1"
	if _, err := queries.Raw(q, id, at.UTC()).ExecContext(ctx, repo.getExec(exec)); err != nil {
		return errors.Wrap(err, "marking live session reminded")
	}
	return nil
}

func (repo sessionRepository) RecordAttendance(ctx context.Context, a livesession.Attendance, exec ...core.DBExecutor) (livesession.Attendance, error) {
	var row attendanceRow
	q := `INSERT INTO session_attendance (session_id, user_id, attended_at) VALUES ($1, $2, $3)
		ON CONFLICT (session_id, user_id) DO UPDATE SET session_id = EXCLUDED.session_id
		RETURNING session_id, user_id, attended_at`
	if err := queries.Raw(q, a.SessionID, a.UserID, a.AttendedAt.UTC()).Bind(ctx, repo.getExec(exec), &row); err != nil {
		return livesession.Attendance{}, errors.Wrap(err, "recording attendance")
	}
	return livesession.Attendance{SessionID: row.SessionID, UserID: row.UserID, AttendedAt: row.AttendedAt.UTC()}, nil
}

func (repo sessionRepository) ListAttendance(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]livesession.Attendance, error) {
	var rows []attendanceRow
	q := "SELECT session_id, user_id, attended_at FROM session_attendance WHERE session_id = $1 ORDER BY attended_at"
	if err := queries.Raw(q, sessionID).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "listing attendance")
	}
	out := make([]livesession.Attendance, 0, len(rows))
	for _, r := range rows {
		out = append(out, livesession.Attendance{SessionID: r.SessionID, UserID: r.UserID, AttendedAt: r.AttendedAt.UTC()})
	}
	return out, nil
}
