package quiz_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/quiz"
	"github.com/trezcool/elimu/tests"
)

type fakeSource struct {
	calls int
	qs    []quiz.Question
	err   error
}

func (src *fakeSource) FetchQuiz(_ context.Context, _ string) ([]quiz.Question, error) {
	src.calls++
	return src.qs, src.err
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (m *recordingMailer) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, messages...)
}

func newService(src quiz.Source, mailer core.EmailService) *quiz.Service {
	return quiz.NewService(src, mailer, core.NewTestConfig(), testutil.NewLogger())
}

func TestService_Questions(t *testing.T) {
	embedded := []quiz.Question{{Question: "embedded", Options: []string{"a", "b"}}}
	fetched := []quiz.Question{{Question: "fetched", Options: []string{"a", "b"}}}

	t.Run("embedded questions win", func(t *testing.T) {
		src := &fakeSource{qs: fetched}
		qs, err := newService(src, nil).Questions(context.Background(), "c1", embedded)
		require.NoError(t, err)
		assert.Equal(t, embedded, qs)
		assert.Zero(t, src.calls)
	})

	t.Run("falls back to the backend", func(t *testing.T) {
		src := &fakeSource{qs: fetched}
		qs, err := newService(src, nil).Questions(context.Background(), "c1", nil)
		require.NoError(t, err)
		assert.Equal(t, fetched, qs)
		assert.Equal(t, 1, src.calls)
	})

	t.Run("fetch failure", func(t *testing.T) {
		src := &fakeSource{err: core.ErrConnection}
		_, err := newService(src, nil).Questions(context.Background(), "c1", nil)
		assert.Equal(t, core.ErrConnection, errors.Cause(err))
	})
}

func TestService_NewSessionUsesConfiguredLimit(t *testing.T) {
	src := &fakeSource{qs: []quiz.Question{{Question: "q", Options: []string{"a", "b"}}}}
	s, err := newService(src, nil).NewSession(context.Background(), "c1", nil)
	require.NoError(t, err)
	defer s.Close()

	snap := s.Snapshot()
	assert.Equal(t, quiz.PhaseNotStarted, snap.Phase)
	assert.Equal(t, 1200, snap.RemainingSeconds)
}

func TestService_MailResult(t *testing.T) {
	mailer := new(recordingMailer)
	svc := newService(&fakeSource{}, mailer)
	res := quiz.Result{Score: 2, Total: 3, Percentage: 67, Verdict: quiz.Verdict(67)}

	svc.MailResult(core.Profile{ID: "u1"}, "Go 101", res)
	assert.Empty(t, mailer.sent)

	svc.MailResult(core.Profile{ID: "u1", Name: "Amani", Email: "amani@test.cd"}, "Go 101", res)
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "amani@test.cd", msg.To[0].Address)
	assert.Equal(t, "quiz_result", msg.TemplateName)
	assert.Equal(t, "Your quiz result: Go 101", msg.Subject)
}

func TestManager(t *testing.T) {
	m := quiz.NewManager()
	defer m.Close()

	qs := []quiz.Question{{Question: "q", Options: []string{"a", "b"}}}
	e1 := m.Create("alice", "c1", "Go 101", qs)
	e2 := m.Create("bob", "c1", "Go 101", qs)
	assert.NotEqual(t, e1.ID, e2.ID)
	assert.Equal(t, 2, m.Len())

	got, err := m.Get(e1.ID, "alice")
	require.NoError(t, err)
	assert.Same(t, e1.Session, got.Session)

	_, err = m.Get(e1.ID, "bob")
	assert.Equal(t, quiz.ErrSessionNotFound, err)
	assert.Equal(t, quiz.ErrSessionNotFound, m.Remove(e1.ID, "bob"))

	require.NoError(t, e1.Session.Start())
	require.NoError(t, m.Remove(e1.ID, "alice"))
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, quiz.ErrSessionClosed, e1.Session.SelectOption(0, 0))

	_, err = m.Get(e1.ID, "alice")
	assert.Equal(t, quiz.ErrSessionNotFound, err)
}

func TestManager_OneSessionPerCourse(t *testing.T) {
	m := quiz.NewManager()
	defer m.Close()

	qs := []quiz.Question{{Question: "q", Options: []string{"a", "b"}}}
	old := m.Create("alice", "c1", "Go 101", qs)
	other := m.Create("alice", "c2", "Rust 101", qs)
	renewed := m.Create("alice", "c1", "Go 101", qs)
	assert.Equal(t, 2, m.Len())

	_, err := m.Get(old.ID, "alice")
	assert.Equal(t, quiz.ErrSessionNotFound, err)
	assert.Equal(t, quiz.ErrSessionClosed, old.Session.Start(), "replaced sessions are closed")

	for _, e := range []quiz.Entry{other, renewed} {
		_, err := m.Get(e.ID, "alice")
		assert.NoError(t, err)
	}
}

func TestManager_DropsIdleSessions(t *testing.T) {
	m := quiz.NewManager()
	defer m.Close()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })
	m.SetIdleTimeout(time.Hour)

	qs := []quiz.Question{{Question: "q", Options: []string{"a", "b"}}}
	idle := m.Create("alice", "c1", "Go 101", qs)
	used := m.Create("bob", "c1", "Go 101", qs)

	now = now.Add(45 * time.Minute)
	_, err := m.Get(used.ID, "bob")
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	fresh := m.Create("carol", "c1", "Go 101", qs)
	assert.Equal(t, 2, m.Len())

	_, err = m.Get(idle.ID, "alice")
	assert.Equal(t, quiz.ErrSessionNotFound, err)
	for _, e := range []quiz.Entry{used, fresh} {
		_, err := m.Get(e.ID, e.Owner)
		assert.NoError(t, err)
	}
}
