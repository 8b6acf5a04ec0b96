package course

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core/quiz"
)

// Course is the course document served by the backend.
type Course struct {
	ID            string       `json:"_id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Category      string       `json:"category"`
	Level         string       `json:"level"`
	Price         Scalar       `json:"price"`
	Duration      Scalar       `json:"duration"`
	ImageURL      string       `json:"imageUrl"`
	Instructor    Instructor   `json:"instructor"`
	Details       Details      `json:"details"`
	Reviews       []Review     `json:"reviews"`
	Rating        null.Float64 `json:"rating"`
	EnrolledUsers []string     `json:"enrolledUsers"`
	FavoriteUsers []string     `json:"favoriteUsers"`
}

type Details struct {
	Type     string          `json:"type"`
	Duration Scalar          `json:"duration,omitempty"`
	Content  string          `json:"content,omitempty"`
	Chapters []Chapter       `json:"chapters"`
	Quiz     []quiz.Question `json:"quiz,omitempty"`
}

type Review struct {
	UserName string  `json:"userName"`
	Rating   float64 `json:"rating"`
	Comment  string  `json:"comment"`
}

// Instructor is either a populated user or a bare user ID.
type Instructor struct {
	ID     string      `json:"_id,omitempty"`
	Name   string      `json:"name,omitempty"`
	Bio    null.String `json:"bio"`
	Avatar null.String `json:"avatar"`
}

func (in *Instructor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*in = Instructor{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*in = Instructor{ID: id}
		return nil
	}
	type plain Instructor
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*in = Instructor(p)
	return nil
}

// AvatarURL falls back to the default avatar when none is set.
func (in Instructor) AvatarURL() string {
	if in.Avatar.Valid && in.Avatar.String != "" {
		return in.Avatar.String
	}
	return "/default-avatar.jpg"
}

// Scalar is a JSON string or number kept as text (prices and durations come in both forms).
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return err
		}
		*s = Scalar(num.String())
	}
	return nil
}

func (s Scalar) String() string { return string(s) }

// Lesson is the smallest unit of content.
type Lesson struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	VideoURL string `json:"videoUrl"`
}

// Chapter groups lessons; it must keep at least one.
type Chapter struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Lessons     []Lesson `json:"lessons"`
}

// DraftDetails holds the nested content of a Draft.
type DraftDetails struct {
	Type     string    `json:"type" validate:"notblank"`
	Chapters []Chapter `json:"chapters"`
}

// Draft is the in-progress, unsaved course being authored.
type Draft struct {
	Title       string          `json:"title" validate:"notblank"`
	Description string          `json:"description" validate:"notblank"`
	Category    string          `json:"category" validate:"notblank"`
	Level       string          `json:"level" validate:"notblank"`
	Price       string          `json:"price" validate:"notblank"`
	Duration    string          `json:"duration" validate:"notblank"`
	ImageURL    string          `json:"imageUrl" validate:"notblank"`
	Details     DraftDetails    `json:"details"`
	Quiz        []quiz.Question `json:"quiz"`
}

func blankLesson() Lesson { return Lesson{} }

func blankChapter() Chapter {
	return Chapter{Lessons: []Lesson{blankLesson()}}
}

func blankQuestion() quiz.Question {
	return quiz.Question{Options: []string{"", ""}, CorrectAnswerIndex: 0}
}

// NewDraft returns the empty default draft: one chapter holding one lesson, no quiz.
func NewDraft() Draft {
	return Draft{
		Details: DraftDetails{Chapters: []Chapter{blankChapter()}},
		Quiz:    []quiz.Question{},
	}
}

// clone deep-copies d so that edits never alias a previous value.
func (d Draft) clone() Draft {
	chapters := make([]Chapter, len(d.Details.Chapters))
	for i, ch := range d.Details.Chapters {
		ch.Lessons = append([]Lesson(nil), ch.Lessons...)
		chapters[i] = ch
	}
	d.Details.Chapters = chapters

	qs := make([]quiz.Question, len(d.Quiz))
	for i, q := range d.Quiz {
		q.Options = append([]string(nil), q.Options...)
		qs[i] = q
	}
	d.Quiz = qs
	return d
}

// NewCourse is the payload sent to the backend to create a course.
type NewCourse struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Level       string           `json:"level"`
	Price       string           `json:"price"`
	Duration    string           `json:"duration"`
	Instructor  string           `json:"instructor"`
	ImageURL    string           `json:"imageUrl"`
	Details     NewCourseDetails `json:"details"`
}

type NewCourseDetails struct {
	Type     string          `json:"type"`
	Chapters []Chapter       `json:"chapters"`
	Quiz     []quiz.Question `json:"quiz"`
}

// Payload builds the creation payload of d on behalf of instructorID.
// Blank quiz options are dropped and the correct answer index follows its option.
func (d Draft) Payload(instructorID string) NewCourse {
	d = d.clone()
	qs := make([]quiz.Question, 0, len(d.Quiz))
	for _, q := range d.Quiz {
		qs = append(qs, trimOptions(q))
	}
	return NewCourse{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Category:    strings.TrimSpace(d.Category),
		Level:       strings.TrimSpace(d.Level),
		Price:       strings.TrimSpace(d.Price),
		Duration:    strings.TrimSpace(d.Duration),
		Instructor:  instructorID,
		ImageURL:    strings.TrimSpace(d.ImageURL),
		Details: NewCourseDetails{
			Type:     strings.TrimSpace(d.Details.Type),
			Chapters: d.Details.Chapters,
			Quiz:     qs,
		},
	}
}

func trimOptions(q quiz.Question) quiz.Question {
	opts := make([]string, 0, len(q.Options))
	correct := 0
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			continue
		}
		if i == q.CorrectAnswerIndex {
			correct = len(opts)
		}
		opts = append(opts, opt)
	}
	q.Options = opts
	q.CorrectAnswerIndex = correct
	return q
}
