package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/topichub/config"
	"github.com/cppla/topichub/fanout"
	"github.com/cppla/topichub/registry"
	"github.com/cppla/topichub/routes"
	"github.com/cppla/topichub/store"
	"github.com/cppla/topichub/ws"
)

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "topichub-test")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Point every side-effecting path at the temp dir and keep the rate
	// limiter out of the way. Redis is pointed at an unused port so every
	// read goes to the store, not a stale cache.
	os.Setenv("GIN_MODE", "test")
	os.Setenv("GIN_PATH", tmp+"/gin.log")
	os.Setenv("LOG_PATH", tmp+"/app.log")
	os.Setenv("UPLOAD_DIR", tmp+"/uploads")
	os.Setenv("RATE_LIMIT_PER_MINUTE", "100000")
	os.Setenv("REDIS_PORT", "6399")
	config.Load()

	code := m.Run()
	os.RemoveAll(tmp)
	os.Exit(code)
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter() (*gin.Engine, *registry.Registry) {
	cs := store.NewMemoryContentStore()
	nl := store.NewMemoryNotificationLog()
	reg := registry.New(nil)
	engine := fanout.New(cs, nl, reg, nil)
	return routes.SetupRouter(engine, cs, nl, reg, ws.NewHub(reg)), reg
}

func doRequest(r *gin.Engine, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doJSON(r *gin.Engine, method, path, payload string) *httptest.ResponseRecorder {
	return doRequest(r, method, path, strings.NewReader(payload), "application/json")
}

func decode(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func postForm(t *testing.T, r *gin.Engine, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return doRequest(r, http.MethodPost, "/api/v1/posts", &buf, mw.FormDataContentType())
}

func samplePost(id string) map[string]string {
	return map[string]string{
		"id":          id,
		"title":       "Game Day",
		"topic":       "sports",
		"description": "the season opener",
		"author":      "bob",
		"dateCreated": time.Now().UTC().Format(time.RFC3339),
	}
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter()
	w := doRequest(r, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, 0, resp.Code)
}

func TestUnknownRoute(t *testing.T) {
	r, _ := newTestRouter()
	w := doRequest(r, http.MethodGet, "/api/v1/nope/nope", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40400, decode(t, w).Code)
}

func TestCreatePost(t *testing.T) {
	t.Run("missing fields rejected", func(t *testing.T) {
		r, _ := newTestRouter()
		w := postForm(t, r, map[string]string{"id": "p1", "title": "Game Day"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40001, decode(t, w).Code)
	})

	t.Run("bad dateCreated rejected", func(t *testing.T) {
		r, _ := newTestRouter()
		fields := samplePost("p1")
		fields["dateCreated"] = "yesterday"
		w := postForm(t, r, fields)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40001, decode(t, w).Code)
	})

	t.Run("publish fans out to subscribers", func(t *testing.T) {
		r, _ := newTestRouter()
		w := doJSON(r, http.MethodPost, "/api/v1/subscribe", `{"username":"alice","topic":"sports"}`)
		require.Equal(t, http.StatusOK, w.Code)

		w = postForm(t, r, samplePost("p1"))
		require.Equal(t, http.StatusOK, w.Code)
		var result struct {
			Post struct {
				ID    string `json:"id"`
				Topic string `json:"topic"`
			} `json:"post"`
			Subscribers int `json:"subscribers"`
		}
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
		assert.Equal(t, "p1", result.Post.ID)
		assert.Equal(t, 1, result.Subscribers)

		w = doRequest(r, http.MethodGet, "/api/v1/notifications/alice", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		var backlog struct {
			Notifications []struct {
				PostID  string `json:"postId"`
				Message string `json:"message"`
				Read    bool   `json:"read"`
			} `json:"notifications"`
		}
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &backlog))
		require.Len(t, backlog.Notifications, 1)
		assert.Equal(t, "p1", backlog.Notifications[0].PostID)
		assert.Equal(t, "New post in sports posted by bob: Game Day", backlog.Notifications[0].Message)
		assert.False(t, backlog.Notifications[0].Read)
	})
}

func TestListPosts(t *testing.T) {
	r, _ := newTestRouter()
	require.Equal(t, http.StatusOK, postForm(t, r, samplePost("p1")).Code)

	second := samplePost("p2")
	second["topic"] = "tech"
	second["title"] = "Compiler Notes"
	require.Equal(t, http.StatusOK, postForm(t, r, second).Code)

	var listing struct {
		Posts []struct {
			ID    string `json:"id"`
			Topic string `json:"topic"`
		} `json:"posts"`
	}

	w := doRequest(r, http.MethodGet, "/api/v1/posts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &listing))
	assert.Len(t, listing.Posts, 2)

	w = doRequest(r, http.MethodGet, "/api/v1/posts/sports", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &listing))
	require.Len(t, listing.Posts, 1)
	assert.Equal(t, "p1", listing.Posts[0].ID)

	w = doRequest(r, http.MethodGet, "/api/v1/posts/cooking", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &listing))
	assert.Empty(t, listing.Posts)
}

func TestUpdatePost(t *testing.T) {
	r, _ := newTestRouter()
	require.Equal(t, http.StatusOK, postForm(t, r, samplePost("p1")).Code)

	t.Run("partial merge", func(t *testing.T) {
		w := doJSON(r, http.MethodPut, "/api/v1/posts/p1", `{"title":"Game Day (updated)"}`)
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(r, http.MethodGet, "/api/v1/posts/sports", nil, "")
		var listing struct {
			Posts []struct {
				Title  string `json:"title"`
				Author string `json:"author"`
			} `json:"posts"`
		}
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &listing))
		require.Len(t, listing.Posts, 1)
		assert.Equal(t, "Game Day (updated)", listing.Posts[0].Title)
		assert.Equal(t, "bob", listing.Posts[0].Author)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := doJSON(r, http.MethodPut, "/api/v1/posts/ghost", `{"title":"x"}`)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, 40401, decode(t, w).Code)
	})

	t.Run("empty payload rejected", func(t *testing.T) {
		w := doJSON(r, http.MethodPut, "/api/v1/posts/p1", `{}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40001, decode(t, w).Code)
	})
}

func TestDeletePost(t *testing.T) {
	r, _ := newTestRouter()
	require.Equal(t, http.StatusOK, postForm(t, r, samplePost("p1")).Code)

	w := doRequest(r, http.MethodDelete, "/api/v1/posts/p1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodDelete, "/api/v1/posts/p1", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40401, decode(t, w).Code)
}

func TestSearchPosts(t *testing.T) {
	r, _ := newTestRouter()
	require.Equal(t, http.StatusOK, postForm(t, r, samplePost("p1")).Code)

	t.Run("query required", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/v1/search", nil, "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40001, decode(t, w).Code)
	})

	t.Run("fuzzy match", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/v1/search?q=sporst", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		var listing struct {
			Posts []struct {
				ID string `json:"id"`
			} `json:"posts"`
		}
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &listing))
		require.Len(t, listing.Posts, 1)
		assert.Equal(t, "p1", listing.Posts[0].ID)
	})
}

func TestSubscriptions(t *testing.T) {
	r, reg := newTestRouter()

	t.Run("validation", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/api/v1/subscribe", `{"username":"alice"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40001, decode(t, w).Code)

		w = doJSON(r, http.MethodPost, "/api/v1/subscribe", `{"username":"  ","topic":"sports"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("round trip", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/api/v1/subscribe", `{"username":"alice","topic":"sports"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"sports"}, reg.TopicsOf("alice"))

		w = doRequest(r, http.MethodGet, "/api/v1/subscriptions/alice", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		var subs struct {
			Topics []string `json:"topics"`
		}
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &subs))
		assert.Equal(t, []string{"sports"}, subs.Topics)

		w = doJSON(r, http.MethodPost, "/api/v1/unsubscribe", `{"username":"alice","topic":"sports"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, reg.TopicsOf("alice"))
	})
}

func TestClearNotifications(t *testing.T) {
	r, _ := newTestRouter()
	require.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/api/v1/subscribe", `{"username":"alice","topic":"sports"}`).Code)
	require.Equal(t, http.StatusOK, postForm(t, r, samplePost("p1")).Code)

	w := doRequest(r, http.MethodPost, "/api/v1/notifications/alice/clear", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var cleared struct {
		Removed int `json:"removed"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &cleared))
	assert.Equal(t, 1, cleared.Removed)

	w = doRequest(r, http.MethodGet, "/api/v1/notifications/alice", nil, "")
	var backlog struct {
		Notifications []json.RawMessage `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &backlog))
	assert.Empty(t, backlog.Notifications)
}
