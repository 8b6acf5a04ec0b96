package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/purchase"
	"github.com/trezcool/elimu/core/quiz"
	appfs "github.com/trezcool/elimu/fs"
	backendsvc "github.com/trezcool/elimu/services/backend"
	emailsvc "github.com/trezcool/elimu/services/email"
	eventsvc "github.com/trezcool/elimu/services/events"
	sqlkv "github.com/trezcool/elimu/storage/kv/sqldb"
	testutil "github.com/trezcool/elimu/tests"
)

// syncBuffer is the output of a command running in another goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type fixture struct {
	cli     *commandLine
	out     *syncBuffer
	conf    *core.Config
	client  *backendsvc.Client
	backend *testutil.FakeBackend
	broker  *eventsvc.Broker
}

func setup(t *testing.T) *fixture {
	conf := core.NewTestConfig()
	conf.Payment.PollInterval = 10 * time.Millisecond
	logger := testutil.NewLogger()
	validate, translator := testutil.NewValidator()
	core.ParseEmailTemplates(appfs.FS, true, logger)

	// set up DB & backend
	db := testutil.PrepareSQLite(t)
	store := sqlkv.NewStore(db, conf.Store.Namespace)
	backend := testutil.NewFakeBackend()
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)
	client := backendsvc.NewClientWith(srv.URL, srv.Client())
	broker := eventsvc.NewBroker()
	out := new(syncBuffer)

	// start CLI
	cli := &commandLine{
		conf:       conf,
		logger:     logger,
		db:         db,
		auth:       auth.NewStore(store, logger),
		drafts:     course.NewDraftStore(store, course.DraftKey, logger),
		catalogSvc: catalog.NewService(client, logger),
		quizSvc:    quiz.NewService(client, emailsvc.NewConsoleServiceMock(conf), conf, logger),
		courseSvc:  course.NewService(client, client, validate, translator, logger),
		flow:       purchase.NewFlow(client, nil, broker, conf, logger),
		in:         strings.NewReader(""),
		out:        out,
	}
	return &fixture{cli: cli, out: out, conf: conf, client: client, backend: backend, broker: broker}
}

// exec runs a command with input typed by the user and returns what it printed.
func (f *fixture) exec(input string, args ...string) (string, error) {
	return f.execFrom(strings.NewReader(input), args...)
}

func (f *fixture) execFrom(in io.Reader, args ...string) (string, error) {
	f.out.Reset()
	f.cli.in = in
	err := f.cli.run(append([]string{"elimu"}, args...))
	return f.out.String(), err
}

func (f *fixture) login(t *testing.T, usr core.Profile) {
	_, err := f.exec("", "login", "-token", signToken(t, usr))
	require.NoError(t, err)
}

func signToken(t *testing.T, usr core.Profile) string {
	claims := auth.Claims{ID: usr.ID, Name: usr.Name, Email: usr.Email}
	claims.ExpiresAt = time.Now().Add(time.Hour).Unix()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, f *fixture, tests []cliTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.exec("", tt.args...)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_help(t *testing.T) {
	f := setup(t)
	readPasswordFunc = func(fd int) ([]byte, error) { return nil, nil }

	runCLITests(t, f, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "login: no token", args: []string{"login"}, wantErr: errHelp},
		{name: "course: no id", args: []string{"course"}, wantErr: errHelp},
		{name: "favorite: no id", args: []string{"favorite"}, wantErr: errHelp},
		{name: "quiz: no id", args: []string{"quiz"}, wantErr: errHelp},
		{name: "buy: no id", args: []string{"buy"}, wantErr: errHelp},
		{name: "draft: no subcommand", args: []string{"draft"}, wantErr: errHelp},
		{name: "draft: unknown subcommand", args: []string{"draft", "lol"}, wantErr: errHelp},
		{name: "draft edit: no op", args: []string{"draft", "edit"}, wantErr: errHelp},
		{name: "draft image: no file", args: []string{"draft", "image"}, wantErr: errHelp},
		{name: "migrate: no subcommand", args: []string{"migrate"}, wantErr: errHelp},
	})
}

func Test_commandLine_session(t *testing.T) {
	f := setup(t)
	token := signToken(t, testutil.Student)

	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(token + "\n"), nil
	}

	out, err := f.exec("", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Amani")

	out, err = f.exec("", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Amani (u1)\n", out)

	runCLITests(t, f, []cliTest{
		{name: "invalid token", args: []string{"login", "-token", "lol"}, wantErr: auth.ErrInvalidToken},
		{name: "token flag", args: []string{"login", "-token", signToken(t, testutil.Stranger)}},
		{name: "logout", args: []string{"logout"}},
		{name: "logged out", args: []string{"whoami"}, wantErr: core.ErrNotAuthenticated},
	})
}

func Test_commandLine_course(t *testing.T) {
	f := setup(t)

	t.Run("anonymous visitors see the outline", func(t *testing.T) {
		out, err := f.exec("", "course", "-id", "c1")
		require.NoError(t, err)
		assert.Contains(t, out, "Go 101")
		assert.Contains(t, out, "★★★½☆ 3.5 | Trez | 100000")
		assert.Contains(t, out, catalog.ErrNotEnrolled.Error())
		assert.Contains(t, out, "1.1 Hello")
		assert.NotContains(t, out, "install Go")
	})

	t.Run("enrolled users see the lesson", func(t *testing.T) {
		f.login(t, testutil.Student)
		out, err := f.exec("", "course", "-id", "c1", "-chapter", "0", "-lesson", "0")
		require.NoError(t, err)
		assert.Contains(t, out, "Enrolled")
		assert.Contains(t, out, "Basics > Hello")
		assert.Contains(t, out, "Video: https://www.youtube.com/embed/abc-123")
		assert.Contains(t, out, "[STEP] Bước 1: install Go")
		assert.Contains(t, out, "[IMPORTANT] 💡 read the docs")
	})

	t.Run("instructor", func(t *testing.T) {
		out, err := f.exec("", "course", "-id", "c1", "-tab", "instructor")
		require.NoError(t, err)
		assert.Contains(t, out, "Trez")
	})

	t.Run("reviews", func(t *testing.T) {
		out, err := f.exec("", "course", "-id", "c1", "-tab", "reviews")
		require.NoError(t, err)
		assert.Contains(t, out, "No reviews yet")
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := f.exec("", "course", "-id", "c9")
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), "Course not found")
		}
	})

	runCLITests(t, f, []cliTest{
		{name: "unknown tab", args: []string{"course", "-id", "c1", "-tab", "lol"}, wantErr: catalog.ErrUnknownTab},
		{name: "lesson out of range", args: []string{"course", "-id", "c1", "-lesson", "3"}, wantErr: course.ErrIndexOutOfRange},
	})
}

func Test_commandLine_favorite(t *testing.T) {
	f := setup(t)

	_, err := f.exec("", "favorite", "-id", "c1")
	assert.Equal(t, catalog.ErrLoginRequired, errors.Cause(err))

	f.login(t, testutil.Student)
	out, err := f.exec("", "favorite", "-id", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Added to favorites\n", out)

	out, err = f.exec("", "favorite", "-id", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Removed from favorites\n", out)
}

func Test_commandLine_quiz(t *testing.T) {
	f := setup(t)

	_, err := f.exec("", "quiz", "-id", "c1")
	assert.Equal(t, core.ErrNotAuthenticated, errors.Cause(err), "login required")

	f.login(t, testutil.Stranger)
	_, err = f.exec("", "quiz", "-id", "c1")
	assert.Equal(t, catalog.ErrNotEnrolled, errors.Cause(err))

	f.login(t, testutil.Student)

	t.Run("perfect score", func(t *testing.T) {
		out, err := f.exec("\n2\nn\n1\ns\n\n", "quiz", "-id", "c1")
		require.NoError(t, err)
		assert.Contains(t, out, "Go 101: 2 questions, 20:00 to answer them all.")
		assert.Contains(t, out, "Question 2/2 (50% answered")
		assert.Contains(t, out, "Score: 2/2 (100%)")
		assert.Contains(t, out, quiz.Verdict(100))
		assert.Contains(t, out, "basic maths")
	})

	t.Run("every question must be answered", func(t *testing.T) {
		out, err := f.exec("\n2\ns\nq\n", "quiz", "-id", "c1")
		require.NoError(t, err)
		assert.Contains(t, out, quiz.ErrIncomplete.Error())
		assert.NotContains(t, out, "Score:")
	})

	t.Run("retake", func(t *testing.T) {
		out, err := f.exec("\n1\nn\n2\ns\nr\n\n2\nn\n1\ns\n\n", "quiz", "-id", "c1")
		require.NoError(t, err)
		assert.Contains(t, out, "Score: 0/2 (0%)")
		assert.Contains(t, out, "Your answer: Goma")
		assert.Contains(t, out, "Score: 2/2 (100%)")
	})

	t.Run("quiz served separately", func(t *testing.T) {
		out, err := f.exec("\n1\ns\n\n", "quiz", "-id", "c2")
		require.NoError(t, err)
		assert.Contains(t, out, "Score: 1/1 (100%)")
	})

	t.Run("invalid option", func(t *testing.T) {
		out, err := f.exec("\n7\nlol\nq\n", "quiz", "-id", "c1")
		require.NoError(t, err)
		assert.Contains(t, out, quiz.ErrOptionOutOfRange.Error())
		assert.Contains(t, out, "Type an option number")
	})

	t.Run("time is up", func(t *testing.T) {
		conf := *f.conf
		conf.Quiz.TimeLimit = time.Second
		f.cli.quizSvc = quiz.NewService(f.client, emailsvc.NewConsoleServiceMock(&conf), &conf, testutil.NewLogger())

		pr, pw := io.Pipe()
		done := make(chan error, 1)
		go func() {
			_, err := f.execFrom(pr, "quiz", "-id", "c1")
			done <- err
		}()
		_, err := pw.Write([]byte("\n"))
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			return strings.Contains(f.out.String(), "Time is up")
		}, 3*time.Second, 20*time.Millisecond)
		require.NoError(t, pw.Close())
		require.NoError(t, <-done)
		assert.Contains(t, f.out.String(), "Score: 0/2 (0%)")
	})
}

func draftArgs(op course.Op) []string {
	args := []string{"draft", "edit", "-op", op.Name}
	if op.Field != "" {
		args = append(args, "-field", op.Field, "-value", op.Value)
	} else if op.Value != "" {
		args = append(args, "-value", op.Value)
	}
	return append(args,
		"-chapter", strconv.Itoa(op.Chapter),
		"-lesson", strconv.Itoa(op.Lesson),
		"-question", strconv.Itoa(op.Question),
		"-option", strconv.Itoa(op.Option),
	)
}

func Test_commandLine_draft(t *testing.T) {
	f := setup(t)

	t.Run("blank draft is invalid", func(t *testing.T) {
		out, err := f.exec("", "draft", "validate")
		assert.Error(t, err)
		assert.Contains(t, out, "title: title is required")
	})

	ops := []course.Op{
		{Name: "setField", Field: "title", Value: "Go 101"},
		{Name: "setField", Field: "description", Value: "Learn Go"},
		{Name: "setField", Field: "category", Value: "programming"},
		{Name: "setField", Field: "level", Value: "beginner"},
		{Name: "setField", Field: "price", Value: "100000"},
		{Name: "setField", Field: "duration", Value: "10"},
		{Name: "setField", Field: "details.type", Value: "video"},
		{Name: "setChapterField", Chapter: 0, Field: "title", Value: "Basics"},
		{Name: "setLessonField", Chapter: 0, Lesson: 0, Field: "title", Value: "Hello"},
		{Name: "addQuestion"},
		{Name: "setQuestion", Question: 0, Value: "2+2?"},
		{Name: "setOption", Question: 0, Option: 0, Value: "3"},
		{Name: "setOption", Question: 0, Option: 1, Value: "4"},
		{Name: "setCorrectAnswer", Question: 0, Option: 1},
	}
	for _, op := range ops {
		_, err := f.exec("", draftArgs(op)...)
		require.NoError(t, err, "%+v", op)
	}

	t.Run("edits are persisted", func(t *testing.T) {
		out, err := f.exec("", "draft", "show")
		require.NoError(t, err)
		assert.Contains(t, out, `"title": "Go 101"`)
		assert.Contains(t, out, `"question": "2+2?"`)
	})

	runCLITests(t, f, []cliTest{
		{name: "last chapter", args: []string{"draft", "edit", "-op", "removeChapter"}, wantErr: course.ErrLastChapter},
		{name: "unknown op", args: []string{"draft", "edit", "-op", "lol"}, wantErr: course.ErrUnknownOp},
	})

	t.Run("image", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "cover.png")
		require.NoError(t, os.WriteFile(path, []byte("png"), 0o600))

		out, err := f.exec("", "draft", "image", "-file", path)
		require.NoError(t, err)
		assert.Equal(t, "Image uploaded: https://cdn.test/cover.png\n", out)

		notes := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(notes, []byte("txt"), 0o600))
		_, err = f.exec("", "draft", "image", "-file", notes)
		assert.Equal(t, course.ErrInvalidImage, errors.Cause(err))
	})

	t.Run("valid draft", func(t *testing.T) {
		out, err := f.exec("", "draft", "validate")
		require.NoError(t, err)
		assert.Equal(t, "Draft is valid\n", out)
	})

	t.Run("submit", func(t *testing.T) {
		_, err := f.exec("", "draft", "submit")
		assert.Equal(t, core.ErrNotAuthenticated, errors.Cause(err))

		f.login(t, testutil.Student)
		out, err := f.exec("", "draft", "submit")
		require.NoError(t, err)
		assert.Equal(t, "Course created successfully.\n", out)

		created := f.backend.CreatedCourses()
		require.Len(t, created, 1)
		assert.Equal(t, "Go 101", created[0].Title)
		assert.Equal(t, testutil.Student.ID, created[0].Instructor)
		assert.Equal(t, "https://cdn.test/cover.png", created[0].ImageURL)

		out, err = f.exec("", "draft", "show")
		require.NoError(t, err)
		assert.Contains(t, out, `"title": ""`, "the draft is cleared")
	})

	t.Run("reset", func(t *testing.T) {
		_, err := f.exec("", "draft", "edit", "-op", "setField", "-field", "title", "-value", "Rust 101")
		require.NoError(t, err)

		out, err := f.exec("", "draft", "reset")
		require.NoError(t, err)
		assert.Equal(t, "Draft cleared\n", out)

		out, err = f.exec("", "draft", "show")
		require.NoError(t, err)
		assert.NotContains(t, out, "Rust 101")
	})
}

func Test_commandLine_buy(t *testing.T) {
	t.Run("login required", func(t *testing.T) {
		f := setup(t)
		_, err := f.exec("\n", "buy", "-id", "c9")
		assert.Equal(t, core.ErrNotAuthenticated, errors.Cause(err))
	})

	t.Run("paid", func(t *testing.T) {
		f := setup(t)
		f.login(t, testutil.Student)

		pr, pw := io.Pipe()
		t.Cleanup(func() { _ = pw.Close() })
		done := make(chan error, 1)
		go func() {
			_, err := f.execFrom(pr, "buy", "-id", "c9")
			done <- err
		}()

		require.Eventually(t, func() bool { return f.broker.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
		msg := purchase.Message{PaymentStatus: purchase.StatusSuccess, CourseID: "c9", UserID: testutil.Student.ID}
		require.NoError(t, f.broker.Publish(context.Background(), msg))

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("checkout never ended")
		}
		out := f.out.String()
		assert.Contains(t, out, "https://pay.test/c9/u1")
		assert.Contains(t, out, "Payment received")
	})

	t.Run("closed by the user", func(t *testing.T) {
		f := setup(t)
		f.login(t, testutil.Student)

		out, err := f.exec("\n", "buy", "-id", "c9")
		require.NoError(t, err)
		assert.Contains(t, out, "Payment page closed.")
	})
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	runMigrationsFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}
	t.Cleanup(func() { runMigrationsFunc = sqlkv.RunMigrations })

	runCLITests(t, f, []cliTest{
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
	})

	t.Run("no database", func(t *testing.T) {
		db := f.cli.db
		f.cli.db = nil
		defer func() { f.cli.db = db }()
		_, err := f.exec("", "migrate", "up")
		assert.Equal(t, errNoDatabase, err)
	})
}

func Test_commandLine_migrateForReal(t *testing.T) {
	f := setup(t)
	_, err := f.exec("", "migrate", "version")
	assert.NoError(t, err)
}
