package registry

import (
	"sort"
	"sync"
)

// Registry is the authoritative mapping of users to topics and of live
// sessions to users and transport groups. Every connect, subscribe and
// publish touches it, so the lock is held only for map mutation and
// snapshot copies, never across I/O.
//
// Durable (username, topic) subscriptions and transport-level topic group
// memberships are distinct: joining a group without a matching subscription
// receives broadcasts but is never logged to the notification backlog.
type Registry struct {
	mu sync.RWMutex

	userTopics map[string]map[string]struct{} // username -> topics
	topicUsers map[string]map[string]struct{} // topic -> usernames

	sessionUser   map[string]string              // session id -> bound username
	userSessions  map[string]map[string]struct{} // username -> session ids
	sessionTopics map[string]map[string]struct{} // session id -> joined topics
	topicSessions map[string]map[string]struct{} // topic -> session ids

	store SubscriptionStore // optional durable backing, may be nil
}

// New creates a Registry. store may be nil for purely process-resident
// subscriptions.
func New(store SubscriptionStore) *Registry {
	return &Registry{
		userTopics:    make(map[string]map[string]struct{}),
		topicUsers:    make(map[string]map[string]struct{}),
		sessionUser:   make(map[string]string),
		userSessions:  make(map[string]map[string]struct{}),
		sessionTopics: make(map[string]map[string]struct{}),
		topicSessions: make(map[string]map[string]struct{}),
		store:         store,
	}
}

// Restore loads all persisted subscription pairs into the registry. Called
// once at boot, before the server accepts traffic.
func (r *Registry) Restore() error {
	if r.store == nil {
		return nil
	}
	pairs, err := r.store.All()
	if err != nil {
		return err
	}
	r.mu.Lock()
	for _, p := range pairs {
		addPair(r.userTopics, p.Username, p.Topic)
		addPair(r.topicUsers, p.Topic, p.Username)
	}
	r.mu.Unlock()
	return nil
}

// Subscribe records durable interest of username in topic. Adding an
// existing pair is a no-op.
func (r *Registry) Subscribe(username, topic string) error {
	r.mu.Lock()
	if _, ok := r.userTopics[username][topic]; ok {
		r.mu.Unlock()
		return nil
	}
	addPair(r.userTopics, username, topic)
	addPair(r.topicUsers, topic, username)
	r.mu.Unlock()

	if r.store != nil {
		return r.store.Save(username, topic)
	}
	return nil
}

// Unsubscribe removes the pair. Removing a non-existent pair is a no-op.
func (r *Registry) Unsubscribe(username, topic string) error {
	r.mu.Lock()
	if _, ok := r.userTopics[username][topic]; !ok {
		r.mu.Unlock()
		return nil
	}
	removePair(r.userTopics, username, topic)
	removePair(r.topicUsers, topic, username)
	r.mu.Unlock()

	if r.store != nil {
		return r.store.Delete(username, topic)
	}
	return nil
}

// TopicsOf returns the topics username is subscribed to, sorted for stable
// output.
func (r *Registry) TopicsOf(username string) []string {
	r.mu.RLock()
	out := keysOf(r.userTopics[username])
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// SubscribersOf returns a snapshot of usernames subscribed to topic at this
// instant; subscribers added afterwards are not included.
func (r *Registry) SubscribersOf(topic string) []string {
	r.mu.RLock()
	out := keysOf(r.topicUsers[topic])
	r.mu.RUnlock()
	return out
}

// BindSession records which user owns a session. At most one username per
// session; later calls for a bound session are ignored.
func (r *Registry) BindSession(sessionID, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, bound := r.sessionUser[sessionID]; bound {
		return
	}
	r.sessionUser[sessionID] = username
	addPair(r.userSessions, username, sessionID)
}

// JoinTopic adds the session to the topic's transport group.
func (r *Registry) JoinTopic(sessionID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addPair(r.sessionTopics, sessionID, topic)
	addPair(r.topicSessions, topic, sessionID)
}

// LeaveTopic removes the session from the topic's transport group.
func (r *Registry) LeaveTopic(sessionID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removePair(r.sessionTopics, sessionID, topic)
	removePair(r.topicSessions, topic, sessionID)
}

// DropSession removes all transport state for a disconnected session. The
// underlying (username, topic) subscriptions persist independently, since
// notifications must still be logged for users with no live session.
func (r *Registry) DropSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic := range r.sessionTopics[sessionID] {
		removePair(r.topicSessions, topic, sessionID)
	}
	delete(r.sessionTopics, sessionID)
	if username, ok := r.sessionUser[sessionID]; ok {
		removePair(r.userSessions, username, sessionID)
		delete(r.sessionUser, sessionID)
	}
}

// SessionsOf returns the live session ids currently bound to username.
func (r *Registry) SessionsOf(username string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return keysOf(r.userSessions[username])
}

// SessionsInTopic returns the live session ids joined to the topic's
// transport group.
func (r *Registry) SessionsInTopic(topic string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return keysOf(r.topicSessions[topic])
}

func addPair(m map[string]map[string]struct{}, key, member string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[member] = struct{}{}
}

func removePair(m map[string]map[string]struct{}, key, member string) {
	if set, ok := m[key]; ok {
		delete(set, member)
		if len(set) == 0 {
			delete(m, key)
		}
	}
}

func keysOf(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
