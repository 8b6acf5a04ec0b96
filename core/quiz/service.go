package quiz

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

// Source fetches the quiz of a course when the course document does not embed it.
type Source interface {
	FetchQuiz(ctx context.Context, courseID string) ([]Question, error)
}

type Service struct {
	src     Source
	mailSvc core.EmailService
	conf    *core.Config
	logger  core.Logger
}

func NewService(src Source, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		src:     src,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

// SessionOptions returns the session options derived from the configuration.
func (svc *Service) SessionOptions() []Option {
	return []Option{WithTimeLimit(svc.conf.Quiz.TimeLimit)}
}

// Questions returns the embedded questions, or fetches them from the backend when there are none.
func (svc *Service) Questions(ctx context.Context, courseID string, embedded []Question) ([]Question, error) {
	if len(embedded) > 0 {
		return cloneQuestions(embedded), nil
	}
	qs, err := svc.src.FetchQuiz(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching quiz")
	}
	return qs, nil
}

// NewSession loads the questions of a course into a fresh session.
func (svc *Service) NewSession(ctx context.Context, courseID string, embedded []Question) (*Session, error) {
	qs, err := svc.Questions(ctx, courseID, embedded)
	if err != nil {
		return nil, err
	}
	return NewSession(qs, svc.SessionOptions()...), nil
}

type resultMailData struct {
	Name          string
	CourseTitle   string
	Score         int
	Total         int
	Percentage    int
	Verdict       string
	AutoSubmitted bool
}

// MailResult emails the outcome of an attempt to usr. Users without an email are skipped.
func (svc *Service) MailResult(usr core.Profile, courseTitle string, res Result) {
	if usr.Email == "" {
		return
	}
	name := usr.Name
	if name == "" {
		name = usr.Email
	}
	svc.logger.Debug(fmt.Sprintf("mailing quiz result of %q to %s", courseTitle, usr.Email), usr)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:              []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:         fmt.Sprintf("Your quiz result: %s", courseTitle),
		TemplateName:    "quiz_result",
		FrontendBaseURL: svc.conf.FrontendBaseURL,
		TemplateData: resultMailData{
			Name:          name,
			CourseTitle:   courseTitle,
			Score:         res.Score,
			Total:         res.Total,
			Percentage:    res.Percentage,
			Verdict:       res.Verdict,
			AutoSubmitted: res.AutoSubmitted,
		},
	})
}
