package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/cppla/topichub/models"
)

// searchResultCap bounds ranked full-text results.
const searchResultCap = 100

// listResultCap bounds unranked listing queries.
const listResultCap = 1000

// ContentStore persists published posts and answers topic and full-text
// queries. Save must be visible to a ByTopic/Search issued immediately
// afterwards in the same publish operation.
type ContentStore interface {
	Save(ctx context.Context, post models.Post) error
	Get(ctx context.Context, id string) (models.Post, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	All(ctx context.Context) ([]models.Post, error)
	ByTopic(ctx context.Context, topic string) ([]models.Post, error)
	Search(ctx context.Context, text string) ([]models.Post, error)
}

// SearchContentStore keeps posts in a search cluster index. Writes refresh
// synchronously so the fan-out engine reads its own writes.
type SearchContentStore struct {
	client *opensearch.Client
	index  string
}

// NewSearchContentStore returns a store backed by the given index.
func NewSearchContentStore(client *opensearch.Client, index string) *SearchContentStore {
	return &SearchContentStore{client: client, index: index}
}

func (s *SearchContentStore) Save(ctx context.Context, post models.Post) error {
	body, err := json.Marshal(post)
	if err != nil {
		return err
	}
	req := opensearchapi.IndexRequest{
		Index:      s.index,
		DocumentID: post.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: index post: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: index post: %s", ErrUnavailable, res.Status())
	}
	return nil
}

func (s *SearchContentStore) Get(ctx context.Context, id string) (models.Post, error) {
	req := opensearchapi.GetRequest{Index: s.index, DocumentID: id}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return models.Post{}, fmt.Errorf("%w: get post: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return models.Post{}, ErrNotFound
	}
	if res.IsError() {
		return models.Post{}, fmt.Errorf("%w: get post: %s", ErrUnavailable, res.Status())
	}

	var doc struct {
		Source models.Post `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return models.Post{}, err
	}
	doc.Source.ID = id
	return doc.Source, nil
}

// Update applies a partial document merge. Arbitrary fields are accepted,
// including topic; past notifications are never re-evaluated.
func (s *SearchContentStore) Update(ctx context.Context, id string, fields map[string]any) error {
	delete(fields, "id")
	body, err := json.Marshal(map[string]any{"doc": fields})
	if err != nil {
		return err
	}
	req := opensearchapi.UpdateRequest{
		Index:      s.index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: update post: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return ErrNotFound
	}
	if res.IsError() {
		return fmt.Errorf("%w: update post: %s", ErrUnavailable, res.Status())
	}
	return nil
}

func (s *SearchContentStore) Delete(ctx context.Context, id string) error {
	req := opensearchapi.DeleteRequest{
		Index:      s.index,
		DocumentID: id,
		Refresh:    "true",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: delete post: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return ErrNotFound
	}
	if res.IsError() {
		return fmt.Errorf("%w: delete post: %s", ErrUnavailable, res.Status())
	}
	return nil
}

func (s *SearchContentStore) All(ctx context.Context) ([]models.Post, error) {
	query := fmt.Sprintf(`{
	  "size": %d,
	  "query": {"match_all": {}},
	  "sort": [{"dateCreated": {"order": "desc"}}]
	}`, listResultCap)
	return s.runSearch(ctx, query)
}

func (s *SearchContentStore) ByTopic(ctx context.Context, topic string) ([]models.Post, error) {
	body, _ := json.Marshal(map[string]any{
		"size":  listResultCap,
		"query": map[string]any{"term": map[string]any{"topic.raw": topic}},
		"sort":  []any{map[string]any{"dateCreated": map[string]any{"order": "desc"}}},
	})
	return s.runSearch(ctx, string(body))
}

// Search ranks posts across title, topic and description with fuzzy
// matching, tolerant of small edit distance.
func (s *SearchContentStore) Search(ctx context.Context, text string) ([]models.Post, error) {
	body, _ := json.Marshal(map[string]any{
		"size": searchResultCap,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     text,
				"fields":    []string{"title", "topic", "description"},
				"fuzziness": "AUTO",
			},
		},
	})
	return s.runSearch(ctx, string(body))
}

func (s *SearchContentStore) runSearch(ctx context.Context, body string) ([]models.Post, error) {
	req := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  strings.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("%w: search posts: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("%w: search posts: %s", ErrUnavailable, string(raw))
	}

	var env searchEnvelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return nil, err
	}
	posts := make([]models.Post, 0, len(env.Hits.Hits))
	for _, hit := range env.Hits.Hits {
		var p models.Post
		if err := json.Unmarshal(hit.Source, &p); err != nil {
			continue
		}
		p.ID = hit.ID
		posts = append(posts, p)
	}
	return posts, nil
}
