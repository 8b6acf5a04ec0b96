package course

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/quiz"
)

// Rejected edits leave the draft unchanged and return one of these warnings.
var (
	ErrLastChapter     = errors.New("a course must have at least one chapter")
	ErrLastLesson      = errors.New("a chapter must have at least one lesson")
	ErrMinOptions      = errors.New("a question must have at least 2 options")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrUnknownField    = errors.New("unknown field")
	ErrUnknownOp       = errors.New("unknown operation")
)

const detailsPrefix = "details."

// Every edit below works on a deep copy: the receiver is never modified.

// SetField sets a top-level field or a `details.<field>` path.
func (d Draft) SetField(path, value string) (Draft, error) {
	d = d.clone()
	if strings.HasPrefix(path, detailsPrefix) {
		switch strings.TrimPrefix(path, detailsPrefix) {
		case "type":
			d.Details.Type = value
		default:
			return d, errors.Wrap(ErrUnknownField, path)
		}
		return d, nil
	}

	switch path {
	case "title":
		d.Title = value
	case "description":
		d.Description = value
	case "category":
		d.Category = value
	case "level":
		d.Level = value
	case "price":
		d.Price = value
	case "duration":
		d.Duration = value
	case "imageUrl":
		d.ImageURL = value
	default:
		return d, errors.Wrap(ErrUnknownField, path)
	}
	return d, nil
}

func (d Draft) AddChapter() Draft {
	d = d.clone()
	d.Details.Chapters = append(d.Details.Chapters, blankChapter())
	return d
}

func (d Draft) RemoveChapter(index int) (Draft, error) {
	if !d.hasChapter(index) {
		return d, ErrIndexOutOfRange
	}
	if len(d.Details.Chapters) <= 1 {
		return d, ErrLastChapter
	}
	d = d.clone()
	d.Details.Chapters = append(d.Details.Chapters[:index], d.Details.Chapters[index+1:]...)
	return d, nil
}

func (d Draft) SetChapterField(index int, field, value string) (Draft, error) {
	if !d.hasChapter(index) {
		return d, ErrIndexOutOfRange
	}
	d = d.clone()
	ch := &d.Details.Chapters[index]
	switch field {
	case "title":
		ch.Title = value
	case "description":
		ch.Description = value
	default:
		return d, errors.Wrap(ErrUnknownField, field)
	}
	return d, nil
}

func (d Draft) AddLesson(chapterIndex int) (Draft, error) {
	if !d.hasChapter(chapterIndex) {
		return d, ErrIndexOutOfRange
	}
	d = d.clone()
	ch := &d.Details.Chapters[chapterIndex]
	ch.Lessons = append(ch.Lessons, blankLesson())
	return d, nil
}

func (d Draft) RemoveLesson(chapterIndex, lessonIndex int) (Draft, error) {
	if !d.hasLesson(chapterIndex, lessonIndex) {
		return d, ErrIndexOutOfRange
	}
	if len(d.Details.Chapters[chapterIndex].Lessons) <= 1 {
		return d, ErrLastLesson
	}
	d = d.clone()
	ch := &d.Details.Chapters[chapterIndex]
	ch.Lessons = append(ch.Lessons[:lessonIndex], ch.Lessons[lessonIndex+1:]...)
	return d, nil
}

func (d Draft) SetLessonField(chapterIndex, lessonIndex int, field, value string) (Draft, error) {
	if !d.hasLesson(chapterIndex, lessonIndex) {
		return d, ErrIndexOutOfRange
	}
	d = d.clone()
	l := &d.Details.Chapters[chapterIndex].Lessons[lessonIndex]
	switch field {
	case "title":
		l.Title = value
	case "content":
		l.Content = value
	case "videoUrl":
		l.VideoURL = value
	default:
		return d, errors.Wrap(ErrUnknownField, field)
	}
	return d, nil
}

// ReorderChapters moves the chapter at from to position to.
func (d Draft) ReorderChapters(from, to int) (Draft, error) {
	if !d.hasChapter(from) || !d.hasChapter(to) {
		return d, ErrIndexOutOfRange
	}
	d = d.clone()
	d.Details.Chapters = move(d.Details.Chapters, from, to)
	return d, nil
}

func (d Draft) AddQuizQuestion() Draft {
	d = d.clone()
	d.Quiz = append(d.Quiz, blankQuestion())
	return d
}

func (d Draft) RemoveQuizQuestion(index int) (Draft, error) {
	if !d.hasQuestion(index) {
		return d, ErrIndexOutOfRange
	}
	d = d.clone()
	d.Quiz = append(d.Quiz[:index], d.Quiz[index+1:]...)
	return d, nil
}

func (d Draft) SetQuestionText(index int, value string) (Draft, error) {
	if !d.hasQuestion(index) {
		return d, ErrIndexOutOfRange
	}
	d = d.clone()
	d.Quiz[index].Question = value
	return d, nil
}

func (d Draft) SetExplanation(index int, value string) (Draft, error) {
	if !d.hasQuestion(index) {
		return d, ErrIndexOutOfRange
	}
	d = d.clone()
	d.Quiz[index].Explanation = value
	return d, nil
}

func (d Draft) SetQuizOption(qIndex, optIndex int, value string) (Draft, error) {
	if !d.hasOption(qIndex, optIndex) {
		return d, ErrIndexOutOfRange
	}
	d = d.clone()
	d.Quiz[qIndex].Options[optIndex] = value
	return d, nil
}

func (d Draft) AddQuizOption(qIndex int) (Draft, error) {
	if !d.hasQuestion(qIndex) {
		return d, ErrIndexOutOfRange
	}
	d = d.clone()
	d.Quiz[qIndex].Options = append(d.Quiz[qIndex].Options, "")
	return d, nil
}

// RemoveQuizOption drops an option and keeps the correct answer on the same logical option.
// Removing the correct option itself resets the correct answer to the first option.
func (d Draft) RemoveQuizOption(qIndex, optIndex int) (Draft, error) {
	if !d.hasOption(qIndex, optIndex) {
		return d, ErrIndexOutOfRange
	}
	if len(d.Quiz[qIndex].Options) <= 2 {
		return d, ErrMinOptions
	}
	d = d.clone()
	q := &d.Quiz[qIndex]
	q.Options = append(q.Options[:optIndex], q.Options[optIndex+1:]...)
	switch {
	case q.CorrectAnswerIndex == optIndex:
		q.CorrectAnswerIndex = 0
	case q.CorrectAnswerIndex > optIndex:
		q.CorrectAnswerIndex--
	}
	return d, nil
}

// SetCorrectAnswer is not validated until submission.
func (d Draft) SetCorrectAnswer(qIndex, optIndex int) (Draft, error) {
	if !d.hasQuestion(qIndex) {
		return d, ErrIndexOutOfRange
	}
	d = d.clone()
	d.Quiz[qIndex].CorrectAnswerIndex = optIndex
	return d, nil
}

func (d Draft) hasChapter(i int) bool {
	return i >= 0 && i < len(d.Details.Chapters)
}

func (d Draft) hasLesson(ci, li int) bool {
	return d.hasChapter(ci) && li >= 0 && li < len(d.Details.Chapters[ci].Lessons)
}

func (d Draft) hasQuestion(i int) bool {
	return i >= 0 && i < len(d.Quiz)
}

func (d Draft) hasOption(qi, oi int) bool {
	return d.hasQuestion(qi) && oi >= 0 && oi < len(d.Quiz[qi].Options)
}

func move[T any](s []T, from, to int) []T {
	item := s[from]
	s = append(s[:from], s[from+1:]...)
	s = append(s[:to], append([]T{item}, s[to:]...)...)
	return s
}

// Form is the authoring state: the draft plus the expand/collapse flags of its chapters and questions.
// Flags stay index-aligned with the content they describe.
type Form struct {
	Draft            Draft  `json:"draft"`
	ExpandedChapters []bool `json:"expandedChapters"`
	ExpandedQuiz     []bool `json:"expandedQuiz"`
}

func NewForm() *Form {
	f := &Form{Draft: NewDraft()}
	f.syncFlags()
	return f
}

// syncFlags re-derives missing flags: chapters and questions are expanded by default.
func (f *Form) syncFlags() {
	f.ExpandedChapters = resize(f.ExpandedChapters, len(f.Draft.Details.Chapters))
	f.ExpandedQuiz = resize(f.ExpandedQuiz, len(f.Draft.Quiz))
}

func resize(flags []bool, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		if i < len(flags) {
			out[i] = flags[i]
		} else {
			out[i] = true
		}
	}
	return out
}

func removeAt(flags []bool, i int) []bool {
	out := append([]bool(nil), flags[:i]...)
	return append(out, flags[i+1:]...)
}

// Reset drops the draft and returns to the blank default.
func (f *Form) Reset() Draft {
	*f = *NewForm()
	return f.Draft
}

// Op is a serialized edit, as received from the API or the command line.
type Op struct {
	Name     string `json:"op"`
	Field    string `json:"field,omitempty"`
	Value    string `json:"value,omitempty"`
	Chapter  int    `json:"chapter,omitempty"`
	Lesson   int    `json:"lesson,omitempty"`
	Question int    `json:"question,omitempty"`
	Option   int    `json:"option,omitempty"`
	From     int    `json:"from,omitempty"`
	To       int    `json:"to,omitempty"`
}

// Apply runs op against the form. On error the form is left unchanged.
func (f *Form) Apply(op Op) (Draft, error) {
	var (
		d   = f.Draft
		err error
	)
	switch op.Name {
	case "setField":
		d, err = d.SetField(op.Field, op.Value)
	case "addChapter":
		d = d.AddChapter()
		f.ExpandedChapters = append(append([]bool(nil), f.ExpandedChapters...), true)
	case "removeChapter":
		if d, err = d.RemoveChapter(op.Chapter); err == nil {
			f.ExpandedChapters = removeAt(f.ExpandedChapters, op.Chapter)
		}
	case "toggleChapter":
		if !d.hasChapter(op.Chapter) {
			err = ErrIndexOutOfRange
			break
		}
		f.ExpandedChapters = append([]bool(nil), f.ExpandedChapters...)
		f.ExpandedChapters[op.Chapter] = !f.ExpandedChapters[op.Chapter]
	case "setChapterField":
		d, err = d.SetChapterField(op.Chapter, op.Field, op.Value)
	case "addLesson":
		d, err = d.AddLesson(op.Chapter)
	case "removeLesson":
		d, err = d.RemoveLesson(op.Chapter, op.Lesson)
	case "setLessonField":
		d, err = d.SetLessonField(op.Chapter, op.Lesson, op.Field, op.Value)
	case "reorderChapters":
		if d, err = d.ReorderChapters(op.From, op.To); err == nil {
			f.ExpandedChapters = move(append([]bool(nil), f.ExpandedChapters...), op.From, op.To)
		}
	case "addQuestion":
		d = d.AddQuizQuestion()
		f.ExpandedQuiz = append(append([]bool(nil), f.ExpandedQuiz...), true)
	case "removeQuestion":
		if d, err = d.RemoveQuizQuestion(op.Question); err == nil {
			f.ExpandedQuiz = removeAt(f.ExpandedQuiz, op.Question)
		}
	case "toggleQuestion":
		if !d.hasQuestion(op.Question) {
			err = ErrIndexOutOfRange
			break
		}
		f.ExpandedQuiz = append([]bool(nil), f.ExpandedQuiz...)
		f.ExpandedQuiz[op.Question] = !f.ExpandedQuiz[op.Question]
	case "setQuestion":
		d, err = d.SetQuestionText(op.Question, op.Value)
	case "setExplanation":
		d, err = d.SetExplanation(op.Question, op.Value)
	case "setOption":
		d, err = d.SetQuizOption(op.Question, op.Option, op.Value)
	case "addOption":
		d, err = d.AddQuizOption(op.Question)
	case "removeOption":
		d, err = d.RemoveQuizOption(op.Question, op.Option)
	case "setCorrectAnswer":
		d, err = d.SetCorrectAnswer(op.Question, op.Option)
	case "reset":
		return f.Reset(), nil
	default:
		err = errors.Wrap(ErrUnknownOp, op.Name)
	}
	if err != nil {
		return f.Draft, err
	}
	f.Draft = d
	return d, nil
}

// Questions returns the quiz of the draft as it would be published.
func (f *Form) Questions() []quiz.Question {
	return f.Draft.Payload("").Details.Quiz
}
