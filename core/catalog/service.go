package catalog

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/course"
)

var ErrLoginRequired = errors.New("please log in to use this feature")

// Backend serves course documents and favorites.
type Backend interface {
	FetchCourse(ctx context.Context, id, userID string) (course.Course, error)
	ToggleFavorite(ctx context.Context, token, courseID string) (bool, error)
}

type Service struct {
	backend  Backend
	logger   core.Logger
	inFlight core.InFlightSet
}

func NewService(backend Backend, logger core.Logger) *Service {
	return &Service{backend: backend, logger: logger}
}

// Detail fetches a course as seen by usr (the zero Profile for anonymous visitors).
func (svc *Service) Detail(ctx context.Context, id string, usr core.Profile) (Detail, error) {
	c, err := svc.backend.FetchCourse(ctx, id, usr.ID)
	if err != nil {
		return Detail{}, errors.Wrapf(err, "fetching course %s", id)
	}
	return NewDetail(c, usr.ID), nil
}

// ToggleFavorite flips the favorite flag of a course and returns its new value.
func (svc *Service) ToggleFavorite(ctx context.Context, token, courseID string) (bool, error) {
	if token == "" {
		return false, ErrLoginRequired
	}
	if !svc.inFlight.Begin(token) {
		return false, core.ErrInFlight
	}
	defer svc.inFlight.End(token)

	fav, err := svc.backend.ToggleFavorite(ctx, token, courseID)
	if err != nil {
		svc.logger.Warn("toggling favorite", err, map[string]interface{}{"courseId": courseID})
		return false, errors.Wrap(err, "toggling favorite")
	}
	return fav, nil
}
