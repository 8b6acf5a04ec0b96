package quiz

import (
	"math"

	"github.com/pkg/errors"
)

// DefaultTimeLimit is the time budget of an attempt, in seconds.
const DefaultTimeLimit = 1200

var (
	ErrNoQuestions        = errors.New("this quiz has no questions")
	ErrNotInProgress      = errors.New("quiz is not in progress")
	ErrAlreadyStarted     = errors.New("quiz already started")
	ErrNotSubmitted       = errors.New("quiz has not been submitted")
	ErrIncomplete         = errors.New("please answer every question before submitting")
	ErrQuestionOutOfRange = errors.New("question index out of range")
	ErrOptionOutOfRange   = errors.New("option index out of range")
	ErrSessionClosed      = errors.New("quiz session closed")
	ErrSessionNotFound    = errors.New("quiz session not found")

	errStaleTick = errors.New("stale tick")
)

// Question is a single multiple-choice item with one correct option.
type Question struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation,omitempty"`
}

// HasValidAnswer reports whether CorrectAnswerIndex points into Options.
func (q Question) HasValidAnswer() bool {
	return q.CorrectAnswerIndex >= 0 && q.CorrectAnswerIndex < len(q.Options)
}

func (q Question) clone() Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}

func cloneQuestions(qs []Question) []Question {
	if qs == nil {
		return nil
	}
	out := make([]Question, len(qs))
	for i, q := range qs {
		out[i] = q.clone()
	}
	return out
}

// Phase is the discrete stage of a quiz attempt.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseSubmitted  Phase = "submitted"
)

// Snapshot is a read-only view of a session, derived values included.
type Snapshot struct {
	Phase              Phase       `json:"phase"`
	CurrentIndex       int         `json:"currentIndex"`
	TotalQuestions     int         `json:"totalQuestions"`
	Answers            map[int]int `json:"answers"`
	RemainingSeconds   int         `json:"remainingSeconds"`
	Score              int         `json:"score"`
	Percentage         int         `json:"percentage"`
	AnsweredCount      int         `json:"answeredCount"`
	ProgressPercentage int         `json:"progressPercentage"`
	ShowExplanation    bool        `json:"showExplanation"`
	AutoSubmitted      bool        `json:"autoSubmitted"`
	CanSubmit          bool        `json:"canSubmit"`
}

// ReviewItem describes the outcome of one question after submission.
type ReviewItem struct {
	Index         int      `json:"index"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	Selected      *int     `json:"selected,omitempty"`
	CorrectIndex  int      `json:"correctIndex"`
	CorrectOption string   `json:"correctOption"`
	IsCorrect     bool     `json:"isCorrect"`
	Explanation   string   `json:"explanation,omitempty"`
}

// Result is the final outcome of a submitted attempt.
type Result struct {
	Score         int    `json:"score"`
	Total         int    `json:"total"`
	Percentage    int    `json:"percentage"`
	Verdict       string `json:"verdict"`
	AutoSubmitted bool   `json:"autoSubmitted"`
}

// Passed reports whether the attempt reached the pass mark.
func (r Result) Passed() bool { return r.Percentage >= 80 }

// Verdict returns the message shown for a percentage.
func Verdict(percentage int) string {
	switch {
	case percentage >= 80:
		return "Excellent! You have mastered this course."
	case percentage >= 60:
		return "Good job! Review the lessons you missed."
	default:
		return "Needs improvement. Go through the course again and retry."
	}
}

// percent returns round(100*part/total), 0 when total is 0.
func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}
