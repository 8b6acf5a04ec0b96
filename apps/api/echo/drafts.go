package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/course"
)

type draftApi struct {
	svc        *course.Service
	store      core.KVStore
	locks      *core.KeyedMutex // serializes the edits of each user
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
}

func registerDraftAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := draftApi{
		svc:        deps.CourseSvc,
		store:      deps.Store,
		locks:      new(core.KeyedMutex),
		logger:     deps.Logger,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	dg := g.Group("/drafts", jwt)
	dg.GET("", api.retrieve)
	dg.PUT("", api.replace)
	dg.DELETE("", api.destroy)
	dg.POST("/ops", api.apply)
	dg.POST("/validate", api.check)
	dg.POST("/submit", api.submit)
	dg.POST("/image", api.uploadImage)
}

// drafts returns the draft store of the caller along with their credentials.
func (api *draftApi) drafts(ctx echo.Context) (*course.DraftStore, core.Profile, string, error) {
	usr, token, err := getContextUser(ctx)
	if err != nil {
		return nil, core.Profile{}, "", err
	}
	return course.NewDraftStore(api.store, course.UserDraftKey(usr.ID), api.logger), usr, token, nil
}

// Handlers

func (api *draftApi) retrieve(ctx echo.Context) error {
	store, _, _, err := api.drafts(ctx)
	if err != nil {
		return err
	}
	f, err := store.Load(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *draftApi) replace(ctx echo.Context) error {
	store, usr, _, err := api.drafts(ctx)
	if err != nil {
		return err
	}
	defer api.locks.Lock(usr.ID)()
	f := course.NewForm()
	if err := ctx.Bind(f); err != nil {
		return errors.Wrap(err, "binding to course.Form")
	}

	rctx := ctx.Request().Context()
	if err := store.Save(rctx, f); err != nil {
		return err
	}
	// reload to get the repaired structure
	if f, err = store.Load(rctx); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *draftApi) destroy(ctx echo.Context) error {
	store, usr, _, err := api.drafts(ctx)
	if err != nil {
		return err
	}
	defer api.locks.Lock(usr.ID)()
	if err := store.Clear(ctx.Request().Context()); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// apply runs a batch of edit operations. The batch stops at the first rejected operation;
// the operations before it are kept.
func (api *draftApi) apply(ctx echo.Context) error {
	var data DraftOpsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DraftOpsRequest")
	}
	store, usr, _, err := api.drafts(ctx)
	if err != nil {
		return err
	}
	defer api.locks.Lock(usr.ID)()

	rctx := ctx.Request().Context()
	f, err := store.Load(rctx)
	if err != nil {
		return err
	}

	var opErr error
	applied := 0
	for _, op := range data.Ops {
		if _, opErr = f.Apply(op); opErr != nil {
			break
		}
		applied++
	}
	if applied > 0 {
		if err := store.Save(rctx, f); err != nil {
			return err
		}
	}
	if opErr != nil {
		return ctx.JSON(http.StatusBadRequest, DraftOpsResponse{
			Form:    f,
			Applied: applied,
			Error:   errors.Cause(opErr).Error(),
		})
	}
	return ctx.JSON(http.StatusOK, DraftOpsResponse{Form: f, Applied: applied})
}

func (api *draftApi) check(ctx echo.Context) error {
	store, _, _, err := api.drafts(ctx)
	if err != nil {
		return err
	}
	f, err := store.Load(ctx.Request().Context())
	if err != nil {
		return err
	}
	if err := api.svc.Validate(f); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"valid": true})
}

func (api *draftApi) submit(ctx echo.Context) error {
	store, usr, token, err := api.drafts(ctx)
	if err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	f, err := store.Load(rctx)
	if err != nil {
		return err
	}
	if err := api.svc.Submit(rctx, token, usr, f); err != nil {
		return err
	}
	coursesCreated.Inc()
	if err := store.Clear(rctx); err != nil {
		api.logger.Error("clearing submitted draft", err, usr)
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": "Course created successfully."})
}

func (api *draftApi) uploadImage(ctx echo.Context) error {
	file, err := ctx.FormFile("image")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "image", Error: "image is required"})
	}
	store, usr, _, err := api.drafts(ctx)
	if err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded image")
	}
	defer src.Close()

	defer api.locks.Lock(usr.ID)()
	rctx := ctx.Request().Context()
	f, err := store.Load(rctx)
	if err != nil {
		return err
	}
	if _, err := api.svc.UploadImage(rctx, f, file.Filename, src, file.Size); err != nil {
		return err
	}
	if err := store.Save(rctx, f); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

type (
	DraftOpsRequest struct {
		Ops []course.Op `json:"ops"`
	}

	DraftOpsResponse struct {
		Form    *course.Form `json:"form"`
		Applied int          `json:"applied"`
		Error   string       `json:"error,omitempty"`
	}
)
