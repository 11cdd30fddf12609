package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/cppla/topichub/models"
)

// NotificationLog is the append-only per-user backlog of notifications.
// A client that publishes then immediately lists must see the new entry.
type NotificationLog interface {
	Append(ctx context.Context, n models.Notification) error
	ListFor(ctx context.Context, username string) ([]models.Notification, error)
	ClearFor(ctx context.Context, username string) (int, error)
}

// SearchNotificationLog keeps the backlog in a search cluster index.
type SearchNotificationLog struct {
	client *opensearch.Client
	index  string
}

// NewSearchNotificationLog returns a log backed by the given index.
func NewSearchNotificationLog(client *opensearch.Client, index string) *SearchNotificationLog {
	return &SearchNotificationLog{client: client, index: index}
}

func (l *SearchNotificationLog) Append(ctx context.Context, n models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req := opensearchapi.IndexRequest{
		Index:      l.index,
		DocumentID: n.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		return fmt.Errorf("%w: append notification: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: append notification: %s", ErrUnavailable, res.Status())
	}
	return nil
}

// ListFor returns the user's backlog sorted newest-first.
func (l *SearchNotificationLog) ListFor(ctx context.Context, username string) ([]models.Notification, error) {
	body, _ := json.Marshal(map[string]any{
		"size":  listResultCap,
		"query": map[string]any{"term": map[string]any{"username": username}},
		"sort":  []any{map[string]any{"timestamp": map[string]any{"order": "desc"}}},
	})
	req := opensearchapi.SearchRequest{
		Index: []string{l.index},
		Body:  strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		return nil, fmt.Errorf("%w: list notifications: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("%w: list notifications: %s", ErrUnavailable, res.Status())
	}

	var env searchEnvelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return nil, err
	}
	items := make([]models.Notification, 0, len(env.Hits.Hits))
	for _, hit := range env.Hits.Hits {
		var n models.Notification
		if err := json.Unmarshal(hit.Source, &n); err != nil {
			continue
		}
		n.ID = hit.ID
		items = append(items, n)
	}
	return items, nil
}

// ClearFor bulk-deletes the user's backlog and returns how many entries
// were removed. Other users' logs are untouched.
func (l *SearchNotificationLog) ClearFor(ctx context.Context, username string) (int, error) {
	body, _ := json.Marshal(map[string]any{
		"query": map[string]any{"term": map[string]any{"username": username}},
	})
	refresh := true
	req := opensearchapi.DeleteByQueryRequest{
		Index:   []string{l.index},
		Body:    strings.NewReader(string(body)),
		Refresh: &refresh,
	}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		return 0, fmt.Errorf("%w: clear notifications: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("%w: clear notifications: %s", ErrUnavailable, res.Status())
	}

	var out struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}
