package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/course"
)

var errCourseIDRequired = core.NewValidationError(nil, core.FieldError{Field: "courseId", Error: "courseId is required"})

type catalogApi struct {
	svc *catalog.Service
}

func registerCatalogAPI(g *echo.Group, jwt, optionalJWT echo.MiddlewareFunc, svc *catalog.Service) {
	api := catalogApi{svc: svc}

	g.GET("/courses/:id", api.retrieve, optionalJWT)
	g.POST("/favorites/toggle", api.toggleFavorite, jwt)
}

// Handlers

func (api *catalogApi) retrieve(ctx echo.Context) error {
	var query CourseQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to CourseQuery")
	}
	tab, err := catalog.ParseTab(query.Tab)
	if err != nil {
		return err
	}

	usr, _ := getOptionalUser(ctx)
	detail, err := api.svc.Detail(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "fetching course detail")
	}

	resp := CourseResponse{Detail: detail, Tab: tab}
	// the answers are only revealed by a submitted quiz session
	resp.Course.Details.Quiz = nil
	resp.HasQuiz = len(detail.Course.Details.Quiz) > 0

	if tab == catalog.TabContent {
		if err := detail.CheckAccess(); err != nil {
			resp.Notice = err.Error()
			resp.Course.Details.Chapters = outline(detail.Course.Details.Chapters)
		} else if lv, ok := lessonView(detail.Course, query.Chapter, query.Lesson); ok {
			resp.Lesson = &lv
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *catalogApi) toggleFavorite(ctx echo.Context) error {
	var data ToggleFavoriteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ToggleFavoriteRequest")
	}
	if data.CourseID == "" {
		return errCourseIDRequired
	}

	_, token, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	fav, err := api.svc.ToggleFavorite(ctx.Request().Context(), token, data.CourseID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ToggleFavoriteResponse{IsFavorite: fav})
}

// outline drops the lesson contents of a course the user did not buy.
func outline(chapters []course.Chapter) []course.Chapter {
	out := make([]course.Chapter, len(chapters))
	for i, ch := range chapters {
		lessons := make([]course.Lesson, len(ch.Lessons))
		for j, l := range ch.Lessons {
			lessons[j] = course.Lesson{Title: l.Title}
		}
		ch.Lessons = lessons
		out[i] = ch
	}
	return out
}

func lessonView(c course.Course, chapter, lesson int) (LessonView, bool) {
	chapters := c.Details.Chapters
	if chapter < 0 || chapter >= len(chapters) {
		return LessonView{}, false
	}
	lessons := chapters[chapter].Lessons
	if lesson < 0 || lesson >= len(lessons) {
		return LessonView{}, false
	}
	l := lessons[lesson]
	lv := LessonView{
		Chapter:  chapter,
		Lesson:   lesson,
		Title:    l.Title,
		VideoURL: l.VideoURL,
		Blocks:   catalog.LessonBlocks(l.Content),
	}
	if l.VideoURL != "" {
		if embed, ok := catalog.EmbedURL(l.VideoURL); ok {
			lv.EmbedURL = embed
		}
	}
	return lv, true
}

type (
	CourseQuery struct {
		Tab     string `query:"tab"`
		Chapter int    `query:"chapter"`
		Lesson  int    `query:"lesson"`
	}

	CourseResponse struct {
		catalog.Detail
		Tab     catalog.Tab `json:"tab"`
		HasQuiz bool        `json:"hasQuiz"`
		Notice  string      `json:"notice,omitempty"`
		Lesson  *LessonView `json:"lesson,omitempty"`
	}

	LessonView struct {
		Chapter  int             `json:"chapter"`
		Lesson   int             `json:"lesson"`
		Title    string          `json:"title"`
		VideoURL string          `json:"videoUrl,omitempty"`
		EmbedURL string          `json:"embedUrl,omitempty"`
		Blocks   []catalog.Block `json:"blocks"`
	}

	ToggleFavoriteRequest struct {
		CourseID string `json:"courseId"`
	}

	ToggleFavoriteResponse struct {
		IsFavorite bool `json:"isFavorite"`
	}
)
