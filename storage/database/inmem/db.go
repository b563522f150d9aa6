package inmemdb

import (
	"sync"

	"github.com/cadence/academy/core/assessment"
	"github.com/cadence/academy/core/certificate"
	"github.com/cadence/academy/core/livesession"
	"github.com/cadence/academy/core/profile"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
)

type (
	// DB is an in-memory database for tests & local development.
	// Tables are locked independently; repositories run without transactions.
	DB struct {
		user        *userTable
		education   *educationTable
		employment  *employmentTable
		module      *moduleTable
		section     *sectionTable
		question    *questionTable
		progress    *progressTable
		response    *responseTable
		certificate *certificateTable
		session     *sessionTable
		attendance  *attendanceTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	educationTable struct {
		sync.RWMutex
		table map[string]*profile.EducationEntry
	}

	employmentTable struct {
		sync.RWMutex
		table map[string]*profile.EmploymentEntry
	}

	moduleTable struct {
		sync.RWMutex
		table map[string]*training.Module // without sections
	}

	sectionTable struct {
		sync.RWMutex
		table map[string]*training.Section
	}

	questionTable struct {
		sync.RWMutex
		table map[string]*assessment.Question
	}

	progressKey struct {
		userID string
		unit   training.Unit
	}

	progressTable struct {
		sync.RWMutex
		table map[progressKey]*training.Progress
	}

	responseTable struct {
		sync.RWMutex
		rows []assessment.Response
	}

	certificateTable struct {
		sync.RWMutex
		table map[string]*certificate.Certificate // by user ID
	}

	sessionTable struct {
		sync.RWMutex
		table map[string]*livesession.Session
	}

	attendanceKey struct {
		sessionID string
		userID    string
	}

	attendanceTable struct {
		sync.RWMutex
		table map[attendanceKey]*livesession.Attendance
	}
)

func Open() *DB {
	return &DB{
		user:        &userTable{table: make(map[string]*user.User)},
		education:   &educationTable{table: make(map[string]*profile.EducationEntry)},
		employment:  &employmentTable{table: make(map[string]*profile.EmploymentEntry)},
		module:      &moduleTable{table: make(map[string]*training.Module)},
		section:     &sectionTable{table: make(map[string]*training.Section)},
		question:    &questionTable{table: make(map[string]*assessment.Question)},
		progress:    &progressTable{table: make(map[progressKey]*training.Progress)},
		response:    &responseTable{},
		certificate: &certificateTable{table: make(map[string]*certificate.Certificate)},
		session:     &sessionTable{table: make(map[string]*livesession.Session)},
		attendance:  &attendanceTable{table: make(map[attendanceKey]*livesession.Attendance)},
	}
}

// deleteUserRows removes every row owned by the given users, like the ON DELETE CASCADE constraints.
func (db *DB) deleteUserRows(ids map[string]bool) {
	db.education.Lock()
	for id, e := range db.education.table {
		if ids[e.UserID] {
			delete(db.education.table, id)
		}
	}
	db.education.Unlock()

	db.employment.Lock()
	for id, e := range db.employment.table {
		if ids[e.UserID] {
			delete(db.employment.table, id)
		}
	}
	db.employment.Unlock()

	db.progress.Lock()
	for k := range db.progress.table {
		if ids[k.userID] {
			delete(db.progress.table, k)
		}
	}
	db.progress.Unlock()

	db.response.Lock()
	rows := db.response.rows[:0]
	for _, r := range db.response.rows {
		if !ids[r.UserID] {
			rows = append(rows, r)
		}
	}
	db.response.rows = rows
	db.response.Unlock()

	db.certificate.Lock()
	for uid := range db.certificate.table {
		if ids[uid] {
			delete(db.certificate.table, uid)
		}
	}
	db.certificate.Unlock()

	db.attendance.Lock()
	for k := range db.attendance.table {
		if ids[k.userID] {
			delete(db.attendance.table, k)
		}
	}
	db.attendance.Unlock()

	db.session.Lock()
	for _, s := range db.session.table {
		if ids[s.CreatedBy] {
			s.CreatedBy = ""
		}
	}
	db.session.Unlock()
}
