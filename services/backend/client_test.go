package backendsvc

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/course"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClientWith(srv.URL, srv.Client())
}

func TestClient_FetchCourse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/courses/c1", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("userId"))
		_, _ = w.Write([]byte(`{
			"_id": "c1", "title": "Go 101", "price": 100000, "duration": "10h",
			"instructor": {"name": "Amani", "bio": null},
			"rating": 4.5, "enrolledUsers": ["u1"], "favoriteUsers": [],
			"details": {"type": "video", "chapters": [{"title": "Basics", "lessons": [{"title": "Hello", "videoUrl": "https://youtu.be/x"}]}]}
		}`))
	})

	crs, err := c.FetchCourse(context.Background(), "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Go 101", crs.Title)
	assert.Equal(t, course.Scalar("100000"), crs.Price)
	assert.Equal(t, course.Scalar("10h"), crs.Duration)
	assert.Equal(t, "Amani", crs.Instructor.Name)
	assert.False(t, crs.Instructor.Bio.Valid)
	assert.Equal(t, "/default-avatar.jpg", crs.Instructor.AvatarURL())
	assert.Equal(t, 4.5, crs.Rating.Float64)
	assert.Equal(t, "https://youtu.be/x", crs.Details.Chapters[0].Lessons[0].VideoURL)
}

func TestClient_FetchCourseWithInstructorID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"_id": "c1", "instructor": "u7", "rating": null}`))
	})

	crs, err := c.FetchCourse(context.Background(), "c1", "")
	require.NoError(t, err)
	assert.Equal(t, "u7", crs.Instructor.ID)
	assert.False(t, crs.Rating.Valid)
}

func TestClient_Errors(t *testing.T) {
	t.Run("server message", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message": "course not found"}`))
		})
		_, err := c.FetchCourse(context.Background(), "nope", "")
		var reqErr *core.RequestError
		require.True(t, errors.As(err, &reqErr))
		assert.Equal(t, http.StatusNotFound, reqErr.Status)
		assert.Equal(t, "course not found", core.UserMessage(err, "could not load the course"))
	})

	t.Run("no message", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`<html>oops</html>`))
		})
		_, err := c.CreateQR(context.Background(), "c1", "u1")
		assert.Equal(t, "could not start the payment", core.UserMessage(err, "could not start the payment"))
	})

	t.Run("connection", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c := NewClientWith(srv.URL, http.DefaultClient)

		_, err := c.FetchQuiz(context.Background(), "c1")
		assert.Equal(t, core.ErrConnection, errors.Cause(err))
		assert.Equal(t, "connection error", core.UserMessage(err, ""))
	})
}

func TestClient_FetchQuiz(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/courses/c1/quiz", r.URL.Path)
		_, _ = w.Write([]byte(`{"quiz": [{"question": "2+2?", "options": ["3", "4"], "correctAnswerIndex": 1}]}`))
	})

	qs, err := c.FetchQuiz(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, 1, qs[0].CorrectAnswerIndex)
}

func TestClient_CreateCourse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/courses", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var nc course.NewCourse
		require.NoError(t, json.NewDecoder(r.Body).Decode(&nc))
		assert.Equal(t, "Go 101", nc.Title)
		assert.Equal(t, "u1", nc.Instructor)
		w.WriteHeader(http.StatusCreated)
	})

	err := c.CreateCourse(context.Background(), "tok", course.NewCourse{Title: "Go 101", Instructor: "u1"})
	assert.NoError(t, err)
}

func TestClient_CreateCourseRequiresCreated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	err := c.CreateCourse(context.Background(), "tok", course.NewCourse{Title: "Go 101"})
	var reqErr *core.RequestError
	require.True(t, errors.As(err, &reqErr), "got %v", err)
	assert.Equal(t, http.StatusOK, reqErr.Status)
	assert.Equal(t, "could not create the course", core.UserMessage(err, "could not create the course"))
}

func TestClient_UploadImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload", r.URL.Path)
		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		data, _ := ioutil.ReadAll(f)
		assert.Equal(t, "cover.png", hdr.Filename)
		assert.Equal(t, "png-bytes", string(data))
		_, _ = w.Write([]byte(`{"imageUrl": "https://cdn.test/cover.png"}`))
	})

	u, err := c.UploadImage(context.Background(), "cover.png", strings.NewReader("png-bytes"), 9)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/cover.png", u)
}

func TestClient_CreateQRAndToggleFavorite(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Path {
		case "/api/create-qr":
			assert.Equal(t, map[string]string{"courseId": "c1", "userId": "u1"}, body)
			_, _ = w.Write([]byte(`{"url": "https://pay.test/qr"}`))
		case "/api/favorites/toggle":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.Equal(t, map[string]string{"courseId": "c1"}, body)
			_, _ = w.Write([]byte(`{"isFavorite": true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	u, err := c.CreateQR(context.Background(), "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.test/qr", u)

	fav, err := c.ToggleFavorite(context.Background(), "tok", "c1")
	require.NoError(t, err)
	assert.True(t, fav)
}
