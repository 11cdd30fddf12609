package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/cppla/topichub/models"
	"github.com/cppla/topichub/registry"
	"github.com/cppla/topichub/store"
	"github.com/cppla/topichub/utils"
)

// opTimeout bounds each store call so a slow backend cannot stall a publish
// indefinitely.
const opTimeout = 5 * time.Second

// Pusher delivers a notification to one live session, best-effort. A false
// return means the session is gone or saturated; the caller drops it.
type Pusher interface {
	Send(sessionID string, n models.Notification) bool
}

// Engine performs the publish pipeline: persist the post, snapshot the
// topic's subscribers, durably record one notification per subscriber, and
// push to live sessions. Persistence comes first so the backlog is an
// at-least-once record even when every live push fails.
type Engine struct {
	content   store.ContentStore
	log       store.NotificationLog
	registry  *registry.Registry
	transport Pusher
}

// Result reports a completed publish.
type Result struct {
	Post        models.Post `json:"post"`
	Subscribers int         `json:"subscribers"`
}

// New wires the engine. transport may be nil when no real-time delivery is
// attached (pushes degrade to no-ops).
func New(content store.ContentStore, log store.NotificationLog, reg *registry.Registry, transport Pusher) *Engine {
	return &Engine{content: content, log: log, registry: reg, transport: transport}
}

// Publish persists post and fans out to the topic's subscribers. An error
// is returned only when persisting the post itself fails; no notification
// side effects occur in that case. Per-subscriber append failures are
// logged and skipped so the remaining subscribers are still processed.
func (e *Engine) Publish(ctx context.Context, post models.Post) (Result, error) {
	saveCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := e.content.Save(saveCtx, post); err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	subscribers := e.registry.SubscribersOf(post.Topic)

	notifications := make(map[string]models.Notification, len(subscribers))
	var wg sync.WaitGroup
	for _, username := range subscribers {
		n := models.NewPostNotification(username, post, now)
		notifications[username] = n

		wg.Add(1)
		go func(n models.Notification) {
			defer wg.Done()
			appendCtx, cancel := context.WithTimeout(ctx, opTimeout)
			defer cancel()
			if err := e.log.Append(appendCtx, n); err != nil && utils.Sugar != nil {
				utils.Sugar.Warnf("fanout: append notification for %s failed: %v", n.Username, err)
			}
		}(n)
	}
	wg.Wait()

	e.push(post, notifications, now)

	return Result{Post: post, Subscribers: len(subscribers)}, nil
}

// push delivers the notification to every session bound to a notified user
// plus every session joined to the topic's transport group, once per
// session. Failures are silently dropped; the backlog is the source of
// truth for later retrieval.
func (e *Engine) push(post models.Post, notifications map[string]models.Notification, now time.Time) {
	if e.transport == nil {
		return
	}
	seen := make(map[string]struct{})
	for username, n := range notifications {
		for _, sessionID := range e.registry.SessionsOf(username) {
			if _, dup := seen[sessionID]; dup {
				continue
			}
			seen[sessionID] = struct{}{}
			e.transport.Send(sessionID, n)
		}
	}

	// Transport-group members receive the broadcast even without a durable
	// subscription; nothing is logged for them.
	groupNote := models.NewPostNotification("", post, now)
	for _, sessionID := range e.registry.SessionsInTopic(post.Topic) {
		if _, dup := seen[sessionID]; dup {
			continue
		}
		seen[sessionID] = struct{}{}
		e.transport.Send(sessionID, groupNote)
	}
}
