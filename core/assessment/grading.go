package assessment

import (
	"fmt"
	"strings"

	"github.com/cadence/academy/core"
)

// GradingStrategy decides whether an answer to a question is correct.
type GradingStrategy interface {
	IsCorrect(q Question, answer string) bool
}

// MultipleChoice compares letters, ignoring surrounding whitespace and case.
type MultipleChoice struct{}

func (MultipleChoice) IsCorrect(q Question, answer string) bool {
	letter := strings.ToUpper(strings.TrimSpace(answer))
	return letter != "" && letter == strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
}

// KeywordMatch accepts an answer containing at least one of the comma-separated keywords
// of the correct answer, case-insensitively. It is lenient on purpose: "not sure about
// music" matches the keyword "music".
type KeywordMatch struct{}

func (KeywordMatch) IsCorrect(q Question, answer string) bool {
	answer = strings.ToLower(answer)
	if strings.TrimSpace(answer) == "" {
		return false
	}
	for _, kw := range strings.Split(q.CorrectAnswer, ",") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(answer, kw) {
			return true
		}
	}
	return false
}

// Grade is the outcome of grading a set of answers, before it is recorded.
type Grade struct {
	Score      int
	Total      int
	Percentage int
	Passed     bool
	Questions  []QuestionResult
}

// Grader scores submissions with a strategy per question type.
type Grader struct {
	strategies     map[QuestionType]GradingStrategy
	passPercentage int
}

func NewGrader(passPercentage int) *Grader {
	return &Grader{
		strategies: map[QuestionType]GradingStrategy{
			TypeMultipleChoice: MultipleChoice{},
			TypeShortAnswer:    KeywordMatch{},
		},
		passPercentage: passPercentage,
	}
}

// WithStrategy replaces the strategy used for t.
func (g *Grader) WithStrategy(t QuestionType, s GradingStrategy) *Grader {
	g.strategies[t] = s
	return g
}

func (g *Grader) PassPercentage() int { return g.passPercentage }

// Grade scores answers against every question of the assessment; unanswered questions earn nothing.
// An answer to a question outside the set, or a second answer to the same question, is a validation error.
func (g *Grader) Grade(questions []Question, answers []Answer) (Grade, error) {
	byID := make(map[string]Answer, len(answers))
	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}
	for i, a := range answers {
		field := fmt.Sprintf("answers[%d].question_id", i)
		if !known[a.QuestionID] {
			return Grade{}, core.NewValidationError(nil, core.FieldError{Field: field, Error: "unknown question"})
		}
		if _, dup := byID[a.QuestionID]; dup {
			return Grade{}, core.NewValidationError(nil, core.FieldError{Field: field, Error: "question answered twice"})
		}
		byID[a.QuestionID] = a
	}

	var grade Grade
	grade.Questions = make([]QuestionResult, 0, len(questions))
	for _, q := range questions {
		res := QuestionResult{QuestionID: q.ID, Points: q.Points}
		grade.Total += q.Points

		if a, ok := byID[q.ID]; ok {
			res.Answered = true
			strategy, ok := g.strategies[q.Type]
			if !ok {
				return Grade{}, fmt.Errorf("no grading strategy for %q questions", q.Type)
			}
			if strategy.IsCorrect(q, a.Answer) {
				res.IsCorrect = true
				res.PointsEarned = q.Points
				grade.Score += q.Points
			}
		}
		grade.Questions = append(grade.Questions, res)
	}

	if grade.Total > 0 {
		grade.Percentage = 100 * grade.Score / grade.Total
		grade.Passed = grade.Score*100 >= grade.Total*g.passPercentage
	}
	return grade, nil
}
