package store

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/cppla/topichub/config"
)

// Index mappings follow the logical schemas of the two document types:
// posts carry full-text fields plus a keyword image reference, notifications
// are keyword/date/boolean structured records with a full-text message.
const postMapping = `{
  "mappings": {
    "properties": {
      "title":       {"type": "text"},
      "topic":       {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "description": {"type": "text"},
      "author":      {"type": "keyword"},
      "dateCreated": {"type": "date"},
      "image":       {"type": "keyword"}
    }
  }
}`

const notificationMapping = `{
  "mappings": {
    "properties": {
      "username":  {"type": "keyword"},
      "message":   {"type": "text"},
      "timestamp": {"type": "date"},
      "postId":    {"type": "keyword"},
      "topic":     {"type": "keyword"},
      "read":      {"type": "boolean"}
    }
  }
}`

// NewSearchClient connects to the search cluster and verifies it is
// reachable before returning, so a bad address fails at boot rather than on
// the first publish.
func NewSearchClient(ctx context.Context, cfg config.AppConfig) (*opensearch.Client, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:  cfg.SearchAddresses,
		Username:   cfg.SearchUsername,
		Password:   cfg.SearchPassword,
		MaxRetries: 3,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.SearchInsecureTLS},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("%w: cluster info returned %s", ErrUnavailable, res.Status())
	}
	return client, nil
}

// EnsureIndexes provisions the post and notification indexes. Creating an
// index that already exists is treated as success, not failure.
func EnsureIndexes(ctx context.Context, client *opensearch.Client, cfg config.AppConfig) error {
	indexes := map[string]string{
		cfg.SearchPostIndex:         postMapping,
		cfg.SearchNotificationIndex: notificationMapping,
	}
	for name, mapping := range indexes {
		if err := ensureIndex(ctx, client, name, mapping); err != nil {
			return err
		}
	}
	return nil
}

func ensureIndex(ctx context.Context, client *opensearch.Client, name, mapping string) error {
	req := opensearchapi.IndicesCreateRequest{
		Index: name,
		Body:  strings.NewReader(mapping),
	}
	res, err := req.Do(ctx, client)
	if err != nil {
		return fmt.Errorf("%w: create index %s: %v", ErrUnavailable, name, err)
	}
	defer res.Body.Close()

	if !res.IsError() {
		return nil
	}
	body, _ := io.ReadAll(res.Body)
	if strings.Contains(string(body), "resource_already_exists_exception") {
		return nil
	}
	return fmt.Errorf("%w: create index %s: %s", ErrUnavailable, name, string(body))
}

// searchEnvelope is the subset of a search response we care about.
type searchEnvelope struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}
