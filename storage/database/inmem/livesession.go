package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/livesession"
)

type sessionRepository struct {
	db *DB
}

var _ livesession.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) livesession.Repository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSession(_ context.Context, s livesession.Session, _ ...core.DBExecutor) (livesession.Session, error) {
	repo.db.session.Lock()
	defer repo.db.session.Unlock()

	s.ID = uuid.New().String()
	repo.db.session.table[s.ID] = &s
	return s, nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string, _ ...core.DBExecutor) (livesession.Session, error) {
	repo.db.session.RLock()
	defer repo.db.session.RUnlock()

	if s, ok := repo.db.session.table[id]; ok {
		return *s, nil
	}
	return livesession.Session{}, livesession.ErrNotFound
}

func (repo *sessionRepository) filter(keep func(s livesession.Session) bool) []livesession.Session {
	repo.db.session.RLock()
	defer repo.db.session.RUnlock()

	sessions := make([]livesession.Session, 0)
	for _, s := range repo.db.session.table {
		if keep(*s) {
			sessions = append(sessions, *s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartsAt.Before(sessions[j].StartsAt) })
	return sessions
}

func (repo *sessionRepository) ListSessions(_ context.Context, from time.Time, _ ...core.DBExecutor) ([]livesession.Session, error) {
	return repo.filter(func(s livesession.Session) bool { return s.EndsAt().After(from) }), nil
}

func (repo *sessionRepository) ListDueReminders(_ context.Context, from, to time.Time, _ ...core.DBExecutor) ([]livesession.Session, error) {
	return repo.filter(func(s livesession.Session) bool {
		return s.ReminderSentAt == nil && !s.StartsAt.Before(from) && !s.StartsAt.After(to)
	}), nil
}

func (repo *sessionRepository) MarkReminded(_ context.Context, id string, at time.Time, _ ...core.DBExecutor) error {
	repo.db.session.Lock()
	defer repo.db.session.Unlock()

	s, ok := repo.db.session.table[id]
	if !ok {
		return livesession.ErrNotFound
	}
	s.ReminderSentAt = &at
	return nil
}

func (repo *sessionRepository) RecordAttendance(_ context.Context, a livesession.Attendance, _ ...core.DBExecutor) (livesession.Attendance, error) {
	repo.db.attendance.Lock()
	defer repo.db.attendance.Unlock()

	key := attendanceKey{a.SessionID, a.UserID}
	if cur, ok := repo.db.attendance.table[key]; ok {
		return *cur, nil
	}
	repo.db.attendance.table[key] = &a
	return a, nil
}

func (repo *sessionRepository) ListAttendance(_ context.Context, sessionID string, _ ...core.DBExecutor) ([]livesession.Attendance, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	attendance := make([]livesession.Attendance, 0)
	for k, a := range repo.db.attendance.table {
		if k.sessionID == sessionID {
			attendance = append(attendance, *a)
		}
	}
	sort.Slice(attendance, func(i, j int) bool { return attendance[i].AttendedAt.Before(attendance[j].AttendedAt) })
	return attendance, nil
}
