package livesession

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cadence/academy/core"
)

type Session struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	StartsAt        time.Time  `json:"starts_at"`
	DurationMinutes int        `json:"duration_minutes"`
	JoinURL         string     `json:"join_url"`
	CreatedBy       string     `json:"created_by"`
	ReminderSentAt  *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (s Session) EndsAt() time.Time {
	return s.StartsAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

type Attendance struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	AttendedAt time.Time `json:"attended_at"`
}

type NewSession struct {
	Title           string    `json:"title" validate:"required,notblank,max=200"`
	Description     string    `json:"description" validate:"max=2000"`
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=1,max=600"`
	JoinURL         string    `json:"join_url" validate:"omitempty,url"`
}

func (ns *NewSession) Validate(validate *validator.Validate, now time.Time) error {
	ns.Title = core.CleanString(ns.Title)
	ns.Description = core.CleanString(ns.Description)
	ns.JoinURL = core.CleanString(ns.JoinURL)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if !ns.StartsAt.After(now) {
		return core.NewValidationError(nil, core.FieldError{Field: "starts_at", Error: "starts_at must be in the future"})
	}
	return nil
}
