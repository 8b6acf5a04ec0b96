package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/purchase"
	"github.com/trezcool/elimu/core/quiz"
	"github.com/trezcool/elimu/fs"
	"github.com/trezcool/elimu/services/backend"
	"github.com/trezcool/elimu/services/email"
	"github.com/trezcool/elimu/services/events"
	"github.com/trezcool/elimu/storage/kv/inmem"
	"github.com/trezcool/elimu/tests"
)

var (
	student  = testutil.Student
	stranger = testutil.Stranger

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type fixture struct {
	app      *echoapi.Server
	conf     *core.Config
	backend  *testutil.FakeBackend
	broker   *eventsvc.Broker
	sessions *quiz.Manager
}

func setup(t *testing.T, configure ...func(*core.Config)) *fixture {
	conf := core.NewTestConfig()
	conf.Payment.PollInterval = 10 * time.Millisecond
	for _, fn := range configure {
		fn(conf)
	}
	logger := testutil.NewLogger()
	validate, translator := testutil.NewValidator()
	core.ParseEmailTemplates(appfs.FS, true, logger)

	backend := testutil.NewFakeBackend()
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)
	client := backendsvc.NewClientWith(srv.URL, srv.Client())

	quizSvc := quiz.NewService(client, emailsvc.NewConsoleServiceMock(conf), conf, logger)
	sessions := quiz.NewManager(quizSvc.SessionOptions()...)
	broker := eventsvc.NewBroker()

	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Store:      inmemkv.New(),
		QuizSvc:    quizSvc,
		Sessions:   sessions,
		CourseSvc:  course.NewService(client, client, validate, translator, logger),
		CatalogSvc: catalog.NewService(client, logger),
		Purchases:  purchase.NewFlow(client, nil, broker, conf, logger),
		Publisher:  broker,
	})
	t.Cleanup(func() { _ = app.Close() })

	return &fixture{
		app:      app,
		conf:     conf,
		backend:  backend,
		broker:   broker,
		sessions: sessions,
	}
}

func (f *fixture) token(t *testing.T, usr core.Profile) string {
	token, err := echoapi.GenerateToken(f.conf.SecretKey, usr, time.Hour)
	require.NoError(t, err)
	return token
}

// serve runs a JSON request against the app.
func (f *fixture) serve(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "code; body %s", rec.Body.String())
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, f *fixture, tests []httpTest) {
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tc.body != nil {
				rec = f.serve(tc.method, tc.path, tc.token, tc.body)
			} else {
				rec = f.serve(tc.method, tc.path, tc.token)
			}
			checkCodeAndData(t, tc, rec)
		})
	}
}
