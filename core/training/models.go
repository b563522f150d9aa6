package training

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cadence/academy/core"
)

type UnitKind string

const (
	KindModule  UnitKind = "module"
	KindSection UnitKind = "section"
)

// Unit identifies a completable unit: an atomic module or one section of a module.
// A module that owns sections is never completed through its own record.
type Unit struct {
	Kind UnitKind `json:"kind"`
	ID   string   `json:"id"`
}

func ModuleUnit(id string) Unit  { return Unit{Kind: KindModule, ID: id} }
func SectionUnit(id string) Unit { return Unit{Kind: KindSection, ID: id} }

func (u Unit) String() string { return fmt.Sprintf("%s:%s", u.Kind, u.ID) }
func (u Unit) IsZero() bool   { return u.ID == "" }

// ParseUnit parses the "<kind>:<id>" form of Unit.String.
func ParseUnit(s string) (Unit, error) {
	for _, kind := range []UnitKind{KindModule, KindSection} {
		prefix := string(kind) + ":"
		if len(s) > len(prefix) && s[:len(prefix)] == prefix {
			return Unit{Kind: kind, ID: s[len(prefix):]}, nil
		}
	}
	return Unit{}, fmt.Errorf("invalid unit %q: want module:<id> or section:<id>", s)
}

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

var statusRanks = map[Status]int{StatusNotStarted: 0, StatusInProgress: 1, StatusCompleted: 2}

// Furthest returns the most advanced of two statuses.
func Furthest(a, b Status) Status {
	if statusRanks[b] > statusRanks[a] {
		return b
	}
	return a
}

type Module struct {
	ID              string    `json:"id"`
	Number          int       `json:"number"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	VideoURL        string    `json:"video_url"`
	Transcript      string    `json:"transcript,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	Sections        []Section `json:"sections,omitempty"` // ordered by position
	CreatedAt       time.Time `json:"created_at"`
}

func (m Module) HasSections() bool { return len(m.Sections) > 0 }

type Section struct {
	ID         string    `json:"id"`
	ModuleID   string    `json:"module_id"`
	Code       string    `json:"code"` // e.g. "1A"
	Position   int       `json:"position"`
	Title      string    `json:"title"`
	VideoURL   string    `json:"video_url"`
	Transcript string    `json:"transcript,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Progress is a user's progress on a single unit. Zero values mean "not started".
type Progress struct {
	UserID               string     `json:"user_id"`
	Unit                 Unit       `json:"unit"`
	Status               Status     `json:"status"`
	VideoWatched         bool       `json:"video_watched"`
	VideoWatchPercentage int        `json:"video_watch_percentage"`
	TranscriptViewed     bool       `json:"transcript_viewed"`
	AssessmentCompleted  bool       `json:"assessment_completed"`
	AssessmentScore      int        `json:"assessment_score"` // latest attempt, 0-100
	HighestScore         int        `json:"highest_score"`
	AssessmentAttempts   int        `json:"assessment_attempts"`
	LastAttemptAt        *time.Time `json:"last_attempt_at,omitempty"`
	StartedAt            *time.Time `json:"started_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// NotStarted is what GetProgress returns when no record exists.
func NotStarted(userID string, unit Unit) Progress {
	return Progress{UserID: userID, Unit: unit, Status: StatusNotStarted}
}

// BestScore is max(highest score, latest score, 0).
func (p Progress) BestScore() int {
	best := p.HighestScore
	if p.AssessmentScore > best {
		best = p.AssessmentScore
	}
	if best < 0 {
		return 0
	}
	return best
}

func (p Progress) IsCompleted() bool { return p.Status == StatusCompleted }

// ProgressUpdate holds the fields UpsertProgress may set; nil fields are left unchanged.
type ProgressUpdate struct {
	Status               *Status
	VideoWatched         *bool
	VideoWatchPercentage *int
	TranscriptViewed     *bool
}

// Apply merges upd into p as of now. A new record starts in progress.
// Completed is never downgraded and watch percentage never decreases.
func (upd ProgressUpdate) Apply(p Progress, now time.Time) Progress {
	if p.StartedAt == nil {
		p.StartedAt = &now
		if p.Status == "" || p.Status == StatusNotStarted {
			p.Status = StatusInProgress
		}
	}
	if upd.Status != nil {
		p.Status = Furthest(p.Status, *upd.Status)
		if p.Status == StatusCompleted && p.CompletedAt == nil {
			p.CompletedAt = &now
		}
	}
	if upd.VideoWatched != nil {
		p.VideoWatched = p.VideoWatched || *upd.VideoWatched
	}
	if upd.VideoWatchPercentage != nil && *upd.VideoWatchPercentage > p.VideoWatchPercentage {
		p.VideoWatchPercentage = *upd.VideoWatchPercentage
	}
	if upd.TranscriptViewed != nil {
		p.TranscriptViewed = p.TranscriptViewed || *upd.TranscriptViewed
	}
	p.UpdatedAt = now
	return p
}

// Attempt is a graded assessment submission applied by RecordAttempt.
type Attempt struct {
	Score  int // percentage, 0-100
	Passed bool
	At     time.Time
}

// Apply folds an attempt into p. It is the reference semantics of Store.RecordAttempt.
func (a Attempt) Apply(p Progress) Progress {
	at := a.At
	if p.StartedAt == nil {
		p.StartedAt = &at
	}
	p.AssessmentAttempts++
	p.AssessmentScore = a.Score
	if a.Score > p.HighestScore {
		p.HighestScore = a.Score
	}
	p.LastAttemptAt = &at
	p.AssessmentCompleted = true
	if a.Passed {
		if p.CompletedAt == nil {
			p.CompletedAt = &at
		}
		p.Status = StatusCompleted
	} else if p.Status != StatusCompleted {
		p.Status = StatusInProgress
	}
	p.UpdatedAt = at
	return p
}

// Merge combines the progress records of two units being folded into one.
// Flags are OR-ed, attempts summed, the latest score comes from the most recent attempt,
// status ratchets to the furthest and the earliest start & completion dates win.
func Merge(dst, src Progress) Progress {
	out := dst
	out.Status = Furthest(dst.Status, src.Status)
	out.VideoWatched = dst.VideoWatched || src.VideoWatched
	out.TranscriptViewed = dst.TranscriptViewed || src.TranscriptViewed
	out.AssessmentCompleted = dst.AssessmentCompleted || src.AssessmentCompleted
	out.AssessmentAttempts = dst.AssessmentAttempts + src.AssessmentAttempts
	if src.VideoWatchPercentage > out.VideoWatchPercentage {
		out.VideoWatchPercentage = src.VideoWatchPercentage
	}
	if src.HighestScore > out.HighestScore {
		out.HighestScore = src.HighestScore
	}
	if src.LastAttemptAt != nil && (dst.LastAttemptAt == nil || src.LastAttemptAt.After(*dst.LastAttemptAt)) {
		out.AssessmentScore = src.AssessmentScore
		out.LastAttemptAt = src.LastAttemptAt
	}
	out.StartedAt = earliest(dst.StartedAt, src.StartedAt)
	out.CompletedAt = earliest(dst.CompletedAt, src.CompletedAt)
	if out.Status != StatusCompleted {
		out.CompletedAt = nil
	}
	if src.UpdatedAt.After(out.UpdatedAt) {
		out.UpdatedAt = src.UpdatedAt
	}
	return out
}

func earliest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Before(*a):
		return b
	}
	return a
}

// NewModule is used by admins to author the catalog.
type NewModule struct {
	Number          int    `json:"number" validate:"required,min=1"`
	Title           string `json:"title" validate:"required,notblank,max=200"`
	Description     string `json:"description"`
	VideoURL        string `json:"video_url" mapstructure:"video_url" validate:"omitempty,url"`
	Transcript      string `json:"transcript"`
	DurationMinutes int    `json:"duration_minutes" mapstructure:"duration_minutes" validate:"min=0"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.VideoURL = core.CleanString(nm.VideoURL)
	return validate.Struct(nm)
}

type NewSection struct {
	ModuleID   string `json:"module_id" mapstructure:"module_id" validate:"required"`
	Code       string `json:"code" validate:"required,sectioncode"`
	Position   int    `json:"position" validate:"required,min=1"`
	Title      string `json:"title" validate:"required,notblank,max=200"`
	VideoURL   string `json:"video_url" mapstructure:"video_url" validate:"omitempty,url"`
	Transcript string `json:"transcript"`
}

func (ns *NewSection) Validate(validate *validator.Validate) error {
	ns.Code = strings.ToUpper(core.CleanString(ns.Code))
	ns.Title = core.CleanString(ns.Title)
	ns.VideoURL = core.CleanString(ns.VideoURL)
	return validate.Struct(ns)
}
