package testutil

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/quiz"
)

var (
	Student  = core.Profile{ID: "u1", Name: "Amani", Email: "amani@test.cd"}
	Stranger = core.Profile{ID: "u2", Name: "Neema", Email: "neema@test.cd"}
)

// FakeBackend serves the course backend endpoints used by the apps.
// c1 embeds its quiz, c2 has it served separately; Student is enrolled in both.
type FakeBackend struct {
	mu        sync.Mutex
	courses   map[string]course.Course
	quizzes   map[string][]quiz.Question
	created   []course.NewCourse
	favorites map[string]bool
	uploads   []string
}

func NewFakeBackend() *FakeBackend {
	questions := []quiz.Question{
		{Question: "2+2?", Options: []string{"3", "4"}, CorrectAnswerIndex: 1, Explanation: "basic maths"},
		{Question: "Capital of DRC?", Options: []string{"Kinshasa", "Goma", "Lubumbashi"}, CorrectAnswerIndex: 0},
	}
	return &FakeBackend{
		courses: map[string]course.Course{
			"c1": {
				ID:         "c1",
				Title:      "Go 101",
				Price:      "100000",
				Instructor: course.Instructor{ID: "i1", Name: "Trez"},
				Rating:     null.Float64From(3.5),
				Details: course.Details{
					Type: "video",
					Chapters: []course.Chapter{{
						Title: "Basics",
						Lessons: []course.Lesson{{
							Title:    "Hello",
							Content:  "Intro\nBước 1: install Go\n💡 read the docs",
							VideoURL: "https://youtu.be/abc-123",
						}},
					}},
					Quiz: questions,
				},
				EnrolledUsers: []string{Student.ID},
			},
			"c2": {
				ID:            "c2",
				Title:         "Rust 101",
				Details:       course.Details{Chapters: []course.Chapter{{Title: "Intro"}}},
				EnrolledUsers: []string{Student.ID},
			},
		},
		quizzes: map[string][]quiz.Question{
			"c2": {{Question: "Borrow checker?", Options: []string{"yes", "no"}, CorrectAnswerIndex: 0}},
		},
		favorites: make(map[string]bool),
	}
}

func (b *FakeBackend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/courses/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		c, ok := b.courses[r.PathValue("id")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Course not found"})
			return
		}
		writeJSON(w, http.StatusOK, c)
	})
	mux.HandleFunc("GET /api/courses/{id}/quiz", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{"quiz": b.quizzes[r.PathValue("id")]})
	})
	mux.HandleFunc("POST /api/courses", func(w http.ResponseWriter, r *http.Request) {
		var nc course.NewCourse
		if err := json.NewDecoder(r.Body).Decode(&nc); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		b.mu.Lock()
		b.created = append(b.created, nc)
		b.mu.Unlock()
		writeJSON(w, http.StatusCreated, nc)
	})
	mux.HandleFunc("POST /api/favorites/toggle", func(w http.ResponseWriter, r *http.Request) {
		var data struct {
			CourseID string `json:"courseId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&data)
		key := r.Header.Get("Authorization") + data.CourseID
		b.mu.Lock()
		b.favorites[key] = !b.favorites[key]
		fav := b.favorites[key]
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]bool{"isFavorite": fav})
	})
	mux.HandleFunc("POST /api/create-qr", func(w http.ResponseWriter, r *http.Request) {
		var data struct {
			CourseID string `json:"courseId"`
			UserID   string `json:"userId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&data)
		writeJSON(w, http.StatusOK, map[string]string{"url": "https://pay.test/" + data.CourseID + "/" + data.UserID})
	})
	mux.HandleFunc("POST /api/upload", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("image")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "image is required"})
			return
		}
		_ = file.Close()
		b.mu.Lock()
		b.uploads = append(b.uploads, header.Filename)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"imageUrl": "https://cdn.test/" + header.Filename})
	})
	return mux
}

// CreatedCourses returns the courses submitted so far.
func (b *FakeBackend) CreatedCourses() []course.NewCourse {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]course.NewCourse(nil), b.created...)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
