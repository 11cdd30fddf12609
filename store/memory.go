package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cppla/topichub/models"
)

// MemoryContentStore is a process-resident ContentStore. It is the fallback
// when no search cluster is configured and the fixture used by tests; it
// honors the same contract, including fuzzy search tolerant of small edit
// distance.
type MemoryContentStore struct {
	mu    sync.RWMutex
	posts map[string]models.Post
}

// NewMemoryContentStore returns an empty in-memory store.
func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{posts: make(map[string]models.Post)}
}

func (m *MemoryContentStore) Save(_ context.Context, post models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[post.ID] = post
	return nil
}

func (m *MemoryContentStore) Get(_ context.Context, id string) (models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	post, ok := m.posts[id]
	if !ok {
		return models.Post{}, ErrNotFound
	}
	return post, nil
}

func (m *MemoryContentStore) Update(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok {
		return ErrNotFound
	}
	for key, val := range fields {
		switch key {
		case "title":
			if s, ok := val.(string); ok {
				post.Title = s
			}
		case "topic":
			if s, ok := val.(string); ok {
				post.Topic = s
			}
		case "description":
			if s, ok := val.(string); ok {
				post.Description = s
			}
		case "author":
			if s, ok := val.(string); ok {
				post.Author = s
			}
		case "image":
			if s, ok := val.(string); ok {
				post.Image = s
			}
		case "dateCreated":
			switch t := val.(type) {
			case time.Time:
				post.DateCreated = t
			case string:
				if parsed, err := time.Parse(time.RFC3339, t); err == nil {
					post.DateCreated = parsed
				}
			}
		}
	}
	m.posts[id] = post
	return nil
}

func (m *MemoryContentStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *MemoryContentStore) All(_ context.Context) ([]models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Post, 0, len(m.posts))
	for _, p := range m.posts {
		out = append(out, p)
	}
	sortPostsByDateDesc(out)
	return out, nil
}

func (m *MemoryContentStore) ByTopic(_ context.Context, topic string) ([]models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Post, 0)
	for _, p := range m.posts {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	sortPostsByDateDesc(out)
	return out, nil
}

func (m *MemoryContentStore) Search(_ context.Context, text string) ([]models.Post, error) {
	terms := strings.Fields(strings.ToLower(text))
	if len(terms) == 0 {
		return []models.Post{}, nil
	}

	type scored struct {
		post  models.Post
		score int
	}
	m.mu.RLock()
	matches := make([]scored, 0)
	for _, p := range m.posts {
		s := scorePost(p, terms)
		if s > 0 {
			matches = append(matches, scored{post: p, score: s})
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].post.DateCreated.After(matches[j].post.DateCreated)
	})
	if len(matches) > searchResultCap {
		matches = matches[:searchResultCap]
	}
	out := make([]models.Post, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.post)
	}
	return out, nil
}

// scorePost counts query terms that match any token of title, topic or
// description, exact matches weighing more than fuzzy ones.
func scorePost(p models.Post, terms []string) int {
	tokens := strings.Fields(strings.ToLower(p.Title + " " + p.Topic + " " + p.Description))
	score := 0
	for _, term := range terms {
		best := 0
		for _, tok := range tokens {
			if tok == term {
				best = 2
				break
			}
			if fuzzyMatch(term, tok) {
				best = 1
			}
		}
		score += best
	}
	return score
}

// fuzzyMatch reports whether two tokens are within the edit distance the
// search cluster's AUTO fuzziness would allow: 0 below three runes, 1 up to
// five, 2 above.
func fuzzyMatch(a, b string) bool {
	allowed := 0
	switch l := len(a); {
	case l >= 6:
		allowed = 2
	case l >= 3:
		allowed = 1
	}
	if allowed == 0 {
		return a == b
	}
	return levenshtein(a, b) <= allowed
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(curr[j-1]+1, minInt(prev[j]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func sortPostsByDateDesc(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].DateCreated.After(posts[j].DateCreated)
	})
}

// MemoryNotificationLog is a process-resident NotificationLog used as the
// no-cluster fallback and by tests.
type MemoryNotificationLog struct {
	mu      sync.RWMutex
	entries map[string][]models.Notification // keyed by recipient
}

// NewMemoryNotificationLog returns an empty in-memory log.
func NewMemoryNotificationLog() *MemoryNotificationLog {
	return &MemoryNotificationLog{entries: make(map[string][]models.Notification)}
}

func (m *MemoryNotificationLog) Append(_ context.Context, n models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[n.Username] = append(m.entries[n.Username], n)
	return nil
}

func (m *MemoryNotificationLog) ListFor(_ context.Context, username string) ([]models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Notification, len(m.entries[username]))
	copy(out, m.entries[username])
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (m *MemoryNotificationLog) ClearFor(_ context.Context, username string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := len(m.entries[username])
	delete(m.entries, username)
	return removed, nil
}
