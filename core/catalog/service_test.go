package catalog_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/tests"
)

type fakeBackend struct {
	gotUserID string
	favorites map[string]bool
	err       error
}

func (b *fakeBackend) FetchCourse(_ context.Context, id, userID string) (course.Course, error) {
	b.gotUserID = userID
	if b.err != nil {
		return course.Course{}, b.err
	}
	return course.Course{ID: id, EnrolledUsers: []string{"u1"}}, nil
}

func (b *fakeBackend) ToggleFavorite(_ context.Context, _, courseID string) (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	b.favorites[courseID] = !b.favorites[courseID]
	return b.favorites[courseID], nil
}

func TestService_Detail(t *testing.T) {
	backend := &fakeBackend{}
	svc := catalog.NewService(backend, testutil.NewLogger())

	d, err := svc.Detail(context.Background(), "c1", core.Profile{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", backend.gotUserID)
	assert.True(t, d.IsEnrolled)

	backend.err = &core.RequestError{Status: 404, Message: "course not found"}
	_, err = svc.Detail(context.Background(), "c2", core.Profile{})
	assert.Empty(t, backend.gotUserID)
	assert.Equal(t, "course not found", core.UserMessage(err, "could not load the course"))
}

func TestService_ToggleFavorite(t *testing.T) {
	backend := &fakeBackend{favorites: map[string]bool{}}
	svc := catalog.NewService(backend, testutil.NewLogger())

	_, err := svc.ToggleFavorite(context.Background(), "", "c1")
	assert.Equal(t, catalog.ErrLoginRequired, err)
	assert.Empty(t, backend.favorites)

	fav, err := svc.ToggleFavorite(context.Background(), "token", "c1")
	require.NoError(t, err)
	assert.True(t, fav)

	fav, err = svc.ToggleFavorite(context.Background(), "token", "c1")
	require.NoError(t, err)
	assert.False(t, fav)

	backend.err = errors.Wrap(core.ErrConnection, "POST /api/favorites/toggle")
	_, err = svc.ToggleFavorite(context.Background(), "token", "c1")
	assert.Equal(t, core.ErrConnection, errors.Cause(err))
	assert.Equal(t, "connection error", core.UserMessage(err, ""))
}
