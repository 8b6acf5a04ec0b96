package echoapi

import (
	"net/http"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/quiz"
)

type quizApi struct {
	svc        *quiz.Service
	sessions   *quiz.Manager
	catalogSvc *catalog.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerQuizAPI(g *echo.Group, jwt, wsJWT echo.MiddlewareFunc, deps ServerDeps) {
	api := quizApi{
		svc:        deps.QuizSvc,
		sessions:   deps.Sessions,
		catalogSvc: deps.CatalogSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	qg := g.Group("/quiz-sessions")
	qg.GET("/:id/ws", api.stream, wsJWT)

	ag := qg.Group("", jwt)
	ag.POST("", api.create)
	ag.GET("/:id", api.retrieve)
	ag.DELETE("/:id", api.destroy)
	ag.POST("/:id/start", api.start)
	ag.PUT("/:id/answers", api.answer)
	ag.POST("/:id/navigate", api.navigate)
	ag.POST("/:id/submit", api.submit)
	ag.POST("/:id/reset", api.reset)
	ag.POST("/:id/explanation", api.toggleExplanation)
	ag.GET("/:id/review", api.review)
}

// Handlers

func (api *quizApi) create(ctx echo.Context) error {
	var data CreateQuizSessionRequest
	if err := bindAndValidate(ctx, &data, api.validate, api.translator); err != nil {
		return err
	}
	usr, _, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	detail, err := api.catalogSvc.Detail(rctx, data.CourseID, usr)
	if err != nil {
		return errors.Wrap(err, "fetching course detail")
	}
	if err := detail.CheckAccess(); err != nil {
		return err
	}
	questions, err := api.svc.Questions(rctx, data.CourseID, detail.Course.Details.Quiz)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return quiz.ErrNoQuestions
	}

	entry := api.sessions.Create(usr.ID, data.CourseID, detail.Course.Title, questions)
	api.watch(entry, usr)
	quizSessions.Set(float64(api.sessions.Len()))
	return ctx.JSON(http.StatusCreated, newSessionView(entry, entry.Session.Snapshot()))
}

// watch mails the result of every submitted attempt of entry.
func (api *quizApi) watch(entry quiz.Entry, usr core.Profile) {
	var mu sync.Mutex
	last := quiz.PhaseNotStarted
	entry.Session.Subscribe(func(snap quiz.Snapshot) {
		mu.Lock()
		submitted := snap.Phase == quiz.PhaseSubmitted && last != quiz.PhaseSubmitted
		last = snap.Phase
		mu.Unlock()
		if !submitted {
			return
		}
		res := resultOf(snap)
		recordSubmission(res)
		api.svc.MailResult(usr, entry.CourseTitle, res)
	})
}

func (api *quizApi) entry(ctx echo.Context) (quiz.Entry, error) {
	usr, _, err := getContextUser(ctx)
	if err != nil {
		return quiz.Entry{}, err
	}
	return api.sessions.Get(ctx.Param("id"), usr.ID)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	entry, err := api.entry(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionView(entry, entry.Session.Snapshot()))
}

func (api *quizApi) destroy(ctx echo.Context) error {
	usr, _, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.sessions.Remove(ctx.Param("id"), usr.ID); err != nil {
		return err
	}
	quizSessions.Set(float64(api.sessions.Len()))
	return ctx.NoContent(http.StatusNoContent)
}

// act runs op on the session of the request and responds with its new state.
func (api *quizApi) act(ctx echo.Context, op func(*quiz.Session) error) error {
	entry, err := api.entry(ctx)
	if err != nil {
		return err
	}
	if err := op(entry.Session); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionView(entry, entry.Session.Snapshot()))
}

func (api *quizApi) start(ctx echo.Context) error {
	return api.act(ctx, (*quiz.Session).Start)
}

func (api *quizApi) answer(ctx echo.Context) error {
	var data AnswerRequest
	if err := bindAndValidate(ctx, &data, api.validate, api.translator); err != nil {
		return err
	}
	return api.act(ctx, func(s *quiz.Session) error {
		return s.SelectOption(*data.Question, *data.Option)
	})
}

func (api *quizApi) navigate(ctx echo.Context) error {
	var data NavigateRequest
	if err := bindAndValidate(ctx, &data, api.validate, api.translator); err != nil {
		return err
	}
	return api.act(ctx, func(s *quiz.Session) error {
		if data.Direction == "prev" {
			return s.Prev()
		}
		return s.Next()
	})
}

func (api *quizApi) submit(ctx echo.Context) error {
	return api.act(ctx, (*quiz.Session).Submit)
}

func (api *quizApi) reset(ctx echo.Context) error {
	return api.act(ctx, (*quiz.Session).Reset)
}

func (api *quizApi) toggleExplanation(ctx echo.Context) error {
	return api.act(ctx, (*quiz.Session).ToggleExplanation)
}

func (api *quizApi) review(ctx echo.Context) error {
	entry, err := api.entry(ctx)
	if err != nil {
		return err
	}
	res, err := entry.Session.Result()
	if err != nil {
		return err
	}
	items, err := entry.Session.Review()
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ReviewResponse{Result: res, Items: items})
}

func resultOf(snap quiz.Snapshot) quiz.Result {
	return quiz.Result{
		Score:         snap.Score,
		Total:         snap.TotalQuestions,
		Percentage:    snap.Percentage,
		Verdict:       quiz.Verdict(snap.Percentage),
		AutoSubmitted: snap.AutoSubmitted,
	}
}

// newSessionView renders snap. The correct answers stay hidden until the attempt is submitted.
func newSessionView(entry quiz.Entry, snap quiz.Snapshot) SessionView {
	view := SessionView{
		ID:          entry.ID,
		CourseID:    entry.CourseID,
		CourseTitle: entry.CourseTitle,
		Snapshot:    snap,
	}

	questions := entry.Session.Questions()
	if snap.CurrentIndex >= 0 && snap.CurrentIndex < len(questions) {
		q := questions[snap.CurrentIndex]
		qv := QuestionView{
			Index:    snap.CurrentIndex,
			Question: q.Question,
			Options:  q.Options,
		}
		if ans, ok := snap.Answers[snap.CurrentIndex]; ok {
			qv.Selected = &ans
		}
		if snap.Phase == quiz.PhaseSubmitted {
			correct := q.CorrectAnswerIndex
			qv.CorrectIndex = &correct
			if snap.ShowExplanation {
				qv.Explanation = q.Explanation
			}
		}
		view.Current = &qv
	}

	if snap.Phase == quiz.PhaseSubmitted {
		res := resultOf(snap)
		view.Result = &res
	}
	return view
}

type (
	CreateQuizSessionRequest struct {
		CourseID string `json:"courseId" validate:"notblank"`
	}

	AnswerRequest struct {
		Question *int `json:"question" validate:"required"`
		Option   *int `json:"option" validate:"required"`
	}

	NavigateRequest struct {
		Direction string `json:"direction" validate:"oneof=next prev"`
	}

	QuestionView struct {
		Index        int      `json:"index"`
		Question     string   `json:"question"`
		Options      []string `json:"options"`
		Selected     *int     `json:"selected,omitempty"`
		CorrectIndex *int     `json:"correctIndex,omitempty"`
		Explanation  string   `json:"explanation,omitempty"`
	}

	SessionView struct {
		ID          string `json:"id"`
		CourseID    string `json:"courseId"`
		CourseTitle string `json:"courseTitle"`
		quiz.Snapshot
		Current *QuestionView `json:"current,omitempty"`
		Result  *quiz.Result  `json:"result,omitempty"`
	}

	ReviewResponse struct {
		Result quiz.Result       `json:"result"`
		Items  []quiz.ReviewItem `json:"items"`
	}
)
