package course

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/quiz"
)

// DraftKey is the storage key of the draft of a single-user client.
const DraftKey = "courseDraft"

// UserDraftKey scopes the draft key to a user, for stores shared between users.
func UserDraftKey(userID string) string {
	return DraftKey + ":" + userID
}

// DraftStore persists the authoring form so that it survives restarts.
type DraftStore struct {
	kv     core.KVStore
	key    string
	logger core.Logger
}

func NewDraftStore(kv core.KVStore, key string, logger core.Logger) *DraftStore {
	return &DraftStore{kv: kv, key: key, logger: logger}
}

// Load returns the persisted form, or a blank one when nothing (readable) is stored.
// Unreadable data is discarded.
func (s *DraftStore) Load(ctx context.Context) (*Form, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Cause(err) == core.ErrKeyNotFound {
			return NewForm(), nil
		}
		return nil, errors.Wrap(err, "loading draft")
	}

	f := new(Form)
	if err := json.Unmarshal([]byte(raw), f); err != nil {
		s.logger.Warn("discarding corrupt course draft", err, map[string]interface{}{"key": s.key})
		if err := s.kv.Remove(ctx, s.key); err != nil {
			s.logger.Error("removing corrupt course draft", err)
		}
		return NewForm(), nil
	}
	f.repair()
	return f, nil
}

func (s *DraftStore) Save(ctx context.Context, f *Form) error {
	data, err := json.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "encoding draft")
	}
	return errors.Wrap(s.kv.Set(ctx, s.key, string(data)), "saving draft")
}

func (s *DraftStore) Clear(ctx context.Context) error {
	return errors.Wrap(s.kv.Remove(ctx, s.key), "clearing draft")
}

// repair restores the structural guarantees of a form decoded from storage.
func (f *Form) repair() {
	d := &f.Draft
	if len(d.Details.Chapters) == 0 {
		d.Details.Chapters = []Chapter{blankChapter()}
	}
	for i := range d.Details.Chapters {
		if len(d.Details.Chapters[i].Lessons) == 0 {
			d.Details.Chapters[i].Lessons = []Lesson{blankLesson()}
		}
	}
	if d.Quiz == nil {
		d.Quiz = []quiz.Question{}
	}
	for i := range d.Quiz {
		for len(d.Quiz[i].Options) < 2 {
			d.Quiz[i].Options = append(d.Quiz[i].Options, "")
		}
	}
	f.syncFlags()
}
