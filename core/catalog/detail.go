package catalog

import (
	"math"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/course"
)

// Tab is a section of the course detail page.
type Tab string

const (
	TabContent    Tab = "content"
	TabOverview   Tab = "overview"
	TabInstructor Tab = "instructor"
	TabReviews    Tab = "reviews"
)

var (
	Tabs = []Tab{TabContent, TabOverview, TabInstructor, TabReviews}

	ErrUnknownTab  = errors.New("unknown tab")
	ErrNotEnrolled = errors.New("please buy this course to see its content")
)

// ParseTab returns the tab named s; an empty name selects the content tab.
func ParseTab(s string) (Tab, error) {
	if s == "" {
		return TabContent, nil
	}
	for _, t := range Tabs {
		if string(t) == s {
			return t, nil
		}
	}
	return "", errors.Wrap(ErrUnknownTab, s)
}

// Detail is a course as seen by one (possibly anonymous) user.
type Detail struct {
	Course     course.Course `json:"course"`
	IsEnrolled bool          `json:"isEnrolled"`
	IsFavorite bool          `json:"isFavorite"`
	Stars      Stars         `json:"stars"`
}

func NewDetail(c course.Course, userID string) Detail {
	var rating float64
	if c.Rating.Valid {
		rating = c.Rating.Float64
	}
	return Detail{
		Course:     c,
		IsEnrolled: userID != "" && contains(c.EnrolledUsers, userID),
		IsFavorite: userID != "" && contains(c.FavoriteUsers, userID),
		Stars:      NewStars(rating),
	}
}

// CheckAccess rejects users that did not buy the course.
func (d Detail) CheckAccess() error {
	if !d.IsEnrolled {
		return ErrNotEnrolled
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Stars is the 5-star breakdown of a rating.
type Stars struct {
	Full  int  `json:"full"`
	Half  bool `json:"half"`
	Empty int  `json:"empty"`
}

func NewStars(rating float64) Stars {
	rating = math.Max(0, math.Min(5, rating))
	full := int(math.Floor(rating))
	s := Stars{Full: full, Half: rating-float64(full) >= 0.5}
	s.Empty = 5 - full
	if s.Half {
		s.Empty--
	}
	return s
}

func (s Stars) String() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("★", s.Full))
	if s.Half {
		b.WriteString("½")
	}
	b.WriteString(strings.Repeat("☆", s.Empty))
	return b.String()
}

var youtubeRe = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([\w-]+)`)

// EmbedURL converts a YouTube watch or short link into its embeddable form.
// ok is false, and url returned as is, for any other link.
func EmbedURL(url string) (embed string, ok bool) {
	m := youtubeRe.FindStringSubmatch(url)
	if m == nil {
		return url, false
	}
	return "https://www.youtube.com/embed/" + m[1], true
}

// BlockKind classifies a block of lesson content.
type BlockKind string

const (
	BlockText      BlockKind = "text"
	BlockStep      BlockKind = "step"
	BlockTip       BlockKind = "tip"
	BlockImportant BlockKind = "important"
	BlockNote      BlockKind = "note"
	BlockCode      BlockKind = "code"
)

type Block struct {
	Kind BlockKind `json:"kind"`
	Text string    `json:"text"`
}

var (
	blockStartRe = regexp.MustCompile(`^(?:Bước \d+:|👉|💡|📝|` + "```" + `)`)
	blockMarkers = []struct {
		prefix string
		kind   BlockKind
	}{
		{"Bước", BlockStep},
		{"👉", BlockTip},
		{"💡", BlockImportant},
		{"📝", BlockNote},
		{"```", BlockCode},
	}
)

// LessonBlocks splits lesson content into blocks. A block starts on every line opening
// with a step header (`Bước N:`), a marker emoji or a code fence.
func LessonBlocks(content string) []Block {
	if content == "" {
		return nil
	}

	var parts []string
	lines := strings.Split(content, "\n")
	cur := lines[0]
	for _, line := range lines[1:] {
		if blockStartRe.MatchString(line) {
			parts = append(parts, cur)
			cur = line
			continue
		}
		cur += "\n" + line
	}
	parts = append(parts, cur)

	blocks := make([]Block, 0, len(parts))
	for _, p := range parts {
		b := Block{Kind: BlockText, Text: p}
		for _, m := range blockMarkers {
			if strings.HasPrefix(p, m.prefix) {
				b.Kind = m.kind
				break
			}
		}
		if b.Kind == BlockCode {
			b.Text = strings.TrimSpace(strings.ReplaceAll(p, "```", ""))
		}
		blocks = append(blocks, b)
	}
	return blocks
}
