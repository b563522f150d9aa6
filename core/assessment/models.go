package assessment

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/training"
)

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeShortAnswer    QuestionType = "short_answer"
)

// OptionLetters are the letters multiple-choice options may use, in order.
var OptionLetters = []string{"A", "B", "C", "D", "E"}

type Option struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Letter     string `json:"letter"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"-"`
}

// Question belongs to exactly one unit. CorrectAnswer is a letter for multiple-choice
// questions and a comma-separated keyword list for short answers.
type Question struct {
	ID            string        `json:"id"`
	Unit          training.Unit `json:"unit"`
	Type          QuestionType  `json:"type"`
	Prompt        string        `json:"prompt"`
	CorrectAnswer string        `json:"-"`
	Points        int           `json:"points"`
	Position      int           `json:"position"`
	Options       []Option      `json:"options,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Response is an append-only ledger row: one per answered question per attempt.
type Response struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	QuestionID     string        `json:"question_id"`
	Unit           training.Unit `json:"unit"`
	AttemptNumber  int           `json:"attempt_number"`
	SelectedAnswer string        `json:"selected_answer"`
	IsCorrect      bool          `json:"is_correct"`
	PointsEarned   int           `json:"points_earned"`
	CreatedAt      time.Time     `json:"created_at"`
}

type Answer struct {
	QuestionID string `json:"question_id" validate:"required"`
	Answer     string `json:"answer" validate:"max=2000"`
}

type Submission struct {
	Answers []Answer `json:"answers" validate:"required,min=1,dive"`
}

func (s *Submission) Validate(validate *validator.Validate) error {
	for i := range s.Answers {
		s.Answers[i].QuestionID = core.CleanString(s.Answers[i].QuestionID)
		s.Answers[i].Answer = core.CleanString(s.Answers[i].Answer)
	}
	return validate.Struct(s)
}

type QuestionResult struct {
	QuestionID   string `json:"question_id"`
	Answered     bool   `json:"answered"`
	IsCorrect    bool   `json:"is_correct"`
	PointsEarned int    `json:"points_earned"`
	Points       int    `json:"points"`
}

// Result is the outcome of a recorded attempt.
type Result struct {
	Unit          training.Unit     `json:"unit"`
	AttemptNumber int               `json:"attempt_number"`
	Score         int               `json:"score"` // points earned
	TotalPoints   int               `json:"total_points"`
	Percentage    int               `json:"percentage"` // floored
	Passed        bool              `json:"passed"`
	Questions     []QuestionResult  `json:"questions"`
	Progress      training.Progress `json:"progress"`
}

type Eligibility struct {
	CanRetake      bool       `json:"can_retake"`
	HoursRemaining int        `json:"hours_remaining,omitempty"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
	NextAttemptAt  *time.Time `json:"next_attempt_at,omitempty"`
}

type NewOption struct {
	Letter    string `json:"letter" validate:"required,oneof=A B C D E"`
	Text      string `json:"text" validate:"required,notblank"`
	IsCorrect bool   `json:"is_correct"`
}

// NewQuestion is used by admins to author an assessment.
type NewQuestion struct {
	Type          QuestionType `json:"type" validate:"required,oneof=multiple_choice short_answer"`
	Prompt        string       `json:"prompt" validate:"required,notblank"`
	CorrectAnswer string       `json:"correct_answer" validate:"required,notblank"`
	Points        int          `json:"points" validate:"required,min=1"`
	Position      int          `json:"position" validate:"min=0"`
	Options       []NewOption  `json:"options" validate:"dive"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Prompt = core.CleanString(nq.Prompt)
	nq.CorrectAnswer = core.CleanString(nq.CorrectAnswer)
	if nq.Type == TypeMultipleChoice {
		nq.CorrectAnswer = strings.ToUpper(nq.CorrectAnswer)
	}
	for i := range nq.Options {
		nq.Options[i].Letter = strings.ToUpper(core.CleanString(nq.Options[i].Letter))
		nq.Options[i].Text = core.CleanString(nq.Options[i].Text)
	}
	if err := validate.Struct(nq); err != nil {
		return err
	}
	if nq.Type != TypeMultipleChoice {
		if len(nq.Options) > 0 {
			return optionsErr("short answer questions cannot have options")
		}
		return nil
	}

	// exactly one correct option, unique letters, agreeing with the correct answer
	if len(nq.Options) < 2 {
		return optionsErr("multiple choice questions need at least 2 options")
	}
	seen := make(map[string]bool, len(nq.Options))
	var correct []string
	for _, opt := range nq.Options {
		if seen[opt.Letter] {
			return optionsErr("option letters must be unique")
		}
		seen[opt.Letter] = true
		if opt.IsCorrect {
			correct = append(correct, opt.Letter)
		}
	}
	if len(correct) != 1 {
		return optionsErr("exactly one option must be correct")
	}
	if correct[0] != nq.CorrectAnswer {
		return core.NewValidationError(nil, core.FieldError{Field: "correct_answer", Error: "correct_answer must match the correct option"})
	}
	return nil
}

func optionsErr(msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: "options", Error: msg})
}
