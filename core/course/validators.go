package course

import (
	"fmt"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

// Validate checks that d is ready to be submitted.
// All problems are listed in the returned *core.ValidationError, in form order.
func (d Draft) Validate(validate *validator.Validate, translator ut.Translator) error {
	fldErrs := d.fieldErrors(validate, translator)
	if len(fldErrs) == 0 {
		return nil
	}
	return core.NewValidationError(nil, fldErrs...)
}

func (d Draft) fieldErrors(validate *validator.Validate, translator ut.Translator) []core.FieldError {
	var fldErrs []core.FieldError
	if err := validate.Struct(d); err != nil {
		var vErrs validator.ValidationErrors
		if !errors.As(err, &vErrs) {
			return []core.FieldError{{Field: "", Error: err.Error()}}
		}
		fldErrs = core.TranslateErrors(vErrs, translator)
	}

	add := func(field, format string, args ...interface{}) {
		fldErrs = append(fldErrs, core.FieldError{Field: field, Error: fmt.Sprintf(format, args...)})
	}

	if len(d.Details.Chapters) == 0 {
		add("details.chapters", "the course needs at least one chapter")
	}
	for i, ch := range d.Details.Chapters {
		path := fmt.Sprintf("details.chapters[%d]", i)
		if blank(ch.Title) {
			add(path+".title", "chapter %d needs a title", i+1)
		}
		if len(ch.Lessons) == 0 {
			add(path+".lessons", "chapter %d needs at least one lesson", i+1)
		}
		for j, l := range ch.Lessons {
			if blank(l.Title) {
				add(fmt.Sprintf("%s.lessons[%d].title", path, j), "lesson %d of chapter %d needs a title", j+1, i+1)
			}
		}
	}

	for i, q := range d.Quiz {
		path := fmt.Sprintf("quiz[%d]", i)
		if blank(q.Question) {
			add(path+".question", "question %d must not be empty", i+1)
		}
		if len(q.Options) < 2 {
			add(path+".options", "question %d needs at least 2 options", i+1)
			continue
		}
		// blank options are dropped on submit as long as two remain
		filled, firstBlank := 0, -1
		for j, opt := range q.Options {
			if !blank(opt) {
				filled++
			} else if firstBlank < 0 {
				firstBlank = j
			}
		}
		if filled < 2 {
			add(fmt.Sprintf("%s.options[%d]", path, firstBlank), "option %d of question %d must not be empty", firstBlank+1, i+1)
			continue
		}
		idx := q.CorrectAnswerIndex
		if idx < 0 || idx >= len(q.Options) || blank(q.Options[idx]) {
			add(path+".correctAnswerIndex", "question %d has an invalid correct answer", i+1)
		}
	}
	return fldErrs
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
