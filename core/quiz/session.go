package quiz

import (
	"context"
	"sync"
	"time"
)

type (
	// Ticker delivers the one-second ticks of a running attempt.
	Ticker interface {
		C() <-chan time.Time
		Stop()
	}

	// NewTickerFunc builds the Ticker of an attempt.
	NewTickerFunc func(d time.Duration) Ticker

	Option func(*Session)

	stdTicker struct{ t *time.Ticker }
)

func (t stdTicker) C() <-chan time.Time { return t.t.C }
func (t stdTicker) Stop()               { t.t.Stop() }

func newStdTicker(d time.Duration) Ticker { return stdTicker{t: time.NewTicker(d)} }

// WithTimeLimit sets the time budget of every attempt (rounded down to the second).
func WithTimeLimit(d time.Duration) Option {
	return func(s *Session) {
		if secs := int(d / time.Second); secs > 0 {
			s.limit = secs
		}
	}
}

// WithTicker replaces the wall-clock ticker.
func WithTicker(fn NewTickerFunc) Option {
	return func(s *Session) { s.newTicker = fn }
}

// Session is the state machine of a single quiz attempt:
// NotStarted -> InProgress (countdown running) -> Submitted (review), and back via Reset.
// It is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	questions       []Question
	answers         map[int]int
	current         int
	phase           Phase
	remaining       int
	limit           int
	score           int
	autoSubmitted   bool
	showExplanation bool
	closed          bool

	gen       uint64 // bumped on every start/reset/close; stale ticks carry an older value
	cancel    context.CancelFunc
	newTicker NewTickerFunc

	observers map[int]func(Snapshot)
	nextObsID int
}

func NewSession(questions []Question, opts ...Option) *Session {
	s := &Session{
		questions: cloneQuestions(questions),
		answers:   make(map[int]int),
		phase:     PhaseNotStarted,
		limit:     DefaultTimeLimit,
		newTicker: newStdTicker,
		observers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.remaining = s.limit
	return s
}

// Subscribe registers fn to receive a Snapshot after every state change.
// fn is called outside the session lock, possibly from the timer goroutine.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// update runs fn under the lock and notifies observers when fn succeeds.
func (s *Session) update(fn func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.snapshot()
	obs := make([]func(Snapshot), 0, len(s.observers))
	for _, o := range s.observers {
		obs = append(obs, o)
	}
	s.mu.Unlock()

	for _, o := range obs {
		o(snap)
	}
	return nil
}

// Load replaces the question list and resets the attempt.
func (s *Session) Load(questions []Question) error {
	return s.update(func() error {
		s.questions = cloneQuestions(questions)
		s.resetLocked()
		return nil
	})
}

// Start begins the attempt and its countdown.
func (s *Session) Start() error {
	return s.update(func() error {
		if len(s.questions) == 0 {
			return ErrNoQuestions
		}
		if s.phase != PhaseNotStarted {
			return ErrAlreadyStarted
		}
		s.answers = make(map[int]int)
		s.current = 0
		s.remaining = s.limit
		s.score = 0
		s.autoSubmitted = false
		s.showExplanation = false
		s.phase = PhaseInProgress

		s.gen++
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go s.run(ctx, s.gen, s.newTicker(time.Second))
		return nil
	})
}

func (s *Session) run(ctx context.Context, gen uint64, t Ticker) {
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if !s.tick(gen) {
				return
			}
		}
	}
}

// Tick applies one elapsed second to the running attempt.
// It reports whether the attempt is still in progress afterwards.
func (s *Session) Tick() bool {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	return s.tick(gen)
}

func (s *Session) tick(gen uint64) bool {
	running := false
	err := s.update(func() error {
		if s.gen != gen || s.phase != PhaseInProgress {
			return errStaleTick
		}
		s.remaining--
		if s.remaining <= 0 {
			s.remaining = 0
			s.submitLocked(true)
		}
		running = s.phase == PhaseInProgress
		return nil
	})
	return err == nil && running
}

// SelectOption records (or overwrites) the answer of question q.
func (s *Session) SelectOption(q, opt int) error {
	return s.update(func() error {
		if s.phase != PhaseInProgress {
			return ErrNotInProgress
		}
		if q < 0 || q >= len(s.questions) {
			return ErrQuestionOutOfRange
		}
		if opt < 0 || opt >= len(s.questions[q].Options) {
			return ErrOptionOutOfRange
		}
		s.answers[q] = opt
		return nil
	})
}

// Submit scores the attempt. Every question must be answered.
// Submitting an already submitted attempt is a no-op.
func (s *Session) Submit() error {
	return s.update(func() error {
		switch s.phase {
		case PhaseSubmitted:
			return nil
		case PhaseNotStarted:
			return ErrNotInProgress
		}
		if !s.allAnsweredLocked() {
			return ErrIncomplete
		}
		s.submitLocked(false)
		return nil
	})
}

func (s *Session) submitLocked(auto bool) {
	if s.phase != PhaseInProgress {
		return
	}
	score := 0
	for i, q := range s.questions {
		if ans, ok := s.answers[i]; ok && ans == q.CorrectAnswerIndex {
			score++
		}
	}
	s.score = score
	s.autoSubmitted = auto
	s.phase = PhaseSubmitted
	s.stopTimerLocked()
}

func (s *Session) stopTimerLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) allAnsweredLocked() bool {
	for i := range s.questions {
		if _, ok := s.answers[i]; !ok {
			return false
		}
	}
	return true
}

// Reset returns to NotStarted, dropping answers, score and the timer.
func (s *Session) Reset() error {
	return s.update(func() error {
		s.resetLocked()
		return nil
	})
}

func (s *Session) resetLocked() {
	s.stopTimerLocked()
	s.gen++
	s.phase = PhaseNotStarted
	s.answers = make(map[int]int)
	s.current = 0
	s.remaining = s.limit
	s.score = 0
	s.autoSubmitted = false
	s.showExplanation = false
}

// Navigate moves the current question by delta, clamped to the question list.
// It is allowed in every phase.
func (s *Session) Navigate(delta int) error {
	return s.update(func() error {
		idx := s.current + delta
		if last := len(s.questions) - 1; idx > last {
			idx = last
		}
		if idx < 0 {
			idx = 0
		}
		s.current = idx
		return nil
	})
}

func (s *Session) Next() error { return s.Navigate(1) }
func (s *Session) Prev() error { return s.Navigate(-1) }

// ToggleExplanation flips the explanation display flag of a submitted attempt.
func (s *Session) ToggleExplanation() error {
	return s.update(func() error {
		if s.phase != PhaseSubmitted {
			return ErrNotSubmitted
		}
		s.showExplanation = !s.showExplanation
		return nil
	})
}

// Close stops the timer for good. Every later operation returns ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopTimerLocked()
	s.gen++
	s.closed = true
	s.observers = make(map[int]func(Snapshot))
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() Snapshot {
	n := len(s.questions)
	answers := make(map[int]int, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	snap := Snapshot{
		Phase:              s.phase,
		CurrentIndex:       s.current,
		TotalQuestions:     n,
		Answers:            answers,
		RemainingSeconds:   s.remaining,
		AnsweredCount:      len(s.answers),
		ProgressPercentage: percent(len(s.answers), n),
		ShowExplanation:    s.showExplanation,
		AutoSubmitted:      s.autoSubmitted,
		CanSubmit:          s.phase == PhaseInProgress && s.allAnsweredLocked(),
	}
	if s.phase == PhaseSubmitted {
		snap.Score = s.score
		snap.Percentage = percent(s.score, n)
	}
	return snap
}

// Questions returns a copy of the question list.
func (s *Session) Questions() []Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneQuestions(s.questions)
}

// Current returns the question at the current index; false when there is none.
func (s *Session) Current() (Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return Question{}, false
	}
	return s.questions[s.current].clone(), true
}

func (s *Session) Result() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseSubmitted {
		return Result{}, ErrNotSubmitted
	}
	pct := percent(s.score, len(s.questions))
	return Result{
		Score:         s.score,
		Total:         len(s.questions),
		Percentage:    pct,
		Verdict:       Verdict(pct),
		AutoSubmitted: s.autoSubmitted,
	}, nil
}

// Review lists every question with the selected and the correct option.
func (s *Session) Review() ([]ReviewItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseSubmitted {
		return nil, ErrNotSubmitted
	}
	items := make([]ReviewItem, 0, len(s.questions))
	for i, q := range s.questions {
		item := ReviewItem{
			Index:        i,
			Question:     q.Question,
			Options:      append([]string(nil), q.Options...),
			CorrectIndex: q.CorrectAnswerIndex,
			Explanation:  q.Explanation,
		}
		if q.HasValidAnswer() {
			item.CorrectOption = q.Options[q.CorrectAnswerIndex]
		}
		if ans, ok := s.answers[i]; ok {
			ans := ans
			item.Selected = &ans
			item.IsCorrect = ans == q.CorrectAnswerIndex
		}
		items = append(items, item)
	}
	return items, nil
}
