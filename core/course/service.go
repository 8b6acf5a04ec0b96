package course

import (
	"context"
	"io"
	"path"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

// Backend creates courses on behalf of an instructor.
type Backend interface {
	CreateCourse(ctx context.Context, token string, nc NewCourse) error
}

// ImageUploader stores a course image and returns its public URL.
type ImageUploader interface {
	UploadImage(ctx context.Context, name string, r io.Reader, size int64) (string, error)
}

var ErrInvalidImage = errors.New("only .jpg, .jpeg, .png, .gif and .webp images are accepted")

type Service struct {
	backend    Backend
	images     ImageUploader
	validate   *validator.Validate
	translator ut.Translator
	logger     core.Logger
	inFlight   core.InFlightSet
}

func NewService(
	backend Backend,
	images ImageUploader,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) *Service {
	return &Service{
		backend:    backend,
		images:     images,
		validate:   validate,
		translator: translator,
		logger:     logger,
	}
}

// Validate lists every problem of the draft of f.
func (svc *Service) Validate(f *Form) error {
	return f.Draft.Validate(svc.validate, svc.translator)
}

// Submit validates then publishes the draft of f as usr. On success f is reset;
// the caller is responsible for clearing the persisted copy.
// Only one submission per user may be in flight at a time.
func (svc *Service) Submit(ctx context.Context, token string, usr core.Profile, f *Form) error {
	if !svc.inFlight.Begin(usr.ID) {
		return core.ErrInFlight
	}
	defer svc.inFlight.End(usr.ID)

	if token == "" || usr.ID == "" {
		return core.ErrNotAuthenticated
	}
	if err := svc.Validate(f); err != nil {
		return err
	}

	if err := svc.backend.CreateCourse(ctx, token, f.Draft.Payload(usr.ID)); err != nil {
		svc.logger.Error("creating course", err, usr)
		return errors.Wrap(err, "creating course")
	}
	svc.logger.Info("course created", usr, map[string]interface{}{"title": strings.TrimSpace(f.Draft.Title)})
	f.Reset()
	return nil
}

// UploadImage stores the course image and points the draft of f at it.
func (svc *Service) UploadImage(ctx context.Context, f *Form, name string, r io.Reader, size int64) (Draft, error) {
	if svc.images == nil {
		return f.Draft, errors.New("image uploads are not configured")
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		return f.Draft, ErrInvalidImage
	}

	url, err := svc.images.UploadImage(ctx, name, r, size)
	if err != nil {
		return f.Draft, errors.Wrap(err, "uploading course image")
	}
	return f.Apply(Op{Name: "setField", Field: "imageUrl", Value: url})
}
