package registry_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/topichub/models"
	"github.com/cppla/topichub/registry"
)

func TestRegistry_SubscribeUnsubscribe(t *testing.T) {
	t.Parallel()

	t.Run("subscribe then unsubscribe round trip", func(t *testing.T) {
		reg := registry.New(nil)

		require.NoError(t, reg.Subscribe("alice", "sports"))
		require.NoError(t, reg.Subscribe("alice", "tech"))
		require.NoError(t, reg.Subscribe("bob", "sports"))

		assert.Equal(t, []string{"sports", "tech"}, reg.TopicsOf("alice"))
		assert.ElementsMatch(t, []string{"alice", "bob"}, reg.SubscribersOf("sports"))

		require.NoError(t, reg.Unsubscribe("alice", "sports"))
		assert.Equal(t, []string{"tech"}, reg.TopicsOf("alice"))
		assert.ElementsMatch(t, []string{"bob"}, reg.SubscribersOf("sports"))
	})

	t.Run("repeated calls are idempotent", func(t *testing.T) {
		reg := registry.New(nil)

		for i := 0; i < 3; i++ {
			require.NoError(t, reg.Subscribe("alice", "sports"))
		}
		assert.Equal(t, []string{"alice"}, reg.SubscribersOf("sports"))

		for i := 0; i < 3; i++ {
			require.NoError(t, reg.Unsubscribe("alice", "sports"))
		}
		assert.Empty(t, reg.SubscribersOf("sports"))
	})

	t.Run("unsubscribe unknown pair is a no-op", func(t *testing.T) {
		reg := registry.New(nil)
		require.NoError(t, reg.Unsubscribe("nobody", "nothing"))
		assert.Empty(t, reg.TopicsOf("nobody"))
	})
}

func TestRegistry_Sessions(t *testing.T) {
	t.Parallel()

	t.Run("bind is set once", func(t *testing.T) {
		reg := registry.New(nil)

		reg.BindSession("s1", "alice")
		reg.BindSession("s1", "mallory")

		assert.Equal(t, []string{"s1"}, reg.SessionsOf("alice"))
		assert.Empty(t, reg.SessionsOf("mallory"))
	})

	t.Run("multiple concurrent sessions per user", func(t *testing.T) {
		reg := registry.New(nil)

		reg.BindSession("s1", "alice")
		reg.BindSession("s2", "alice")
		assert.ElementsMatch(t, []string{"s1", "s2"}, reg.SessionsOf("alice"))

		reg.DropSession("s1")
		assert.Equal(t, []string{"s2"}, reg.SessionsOf("alice"))
	})

	t.Run("topic groups are independent of subscriptions", func(t *testing.T) {
		reg := registry.New(nil)

		reg.BindSession("s1", "alice")
		reg.JoinTopic("s1", "sports")

		assert.Equal(t, []string{"s1"}, reg.SessionsInTopic("sports"))
		assert.Empty(t, reg.SubscribersOf("sports"))

		reg.LeaveTopic("s1", "sports")
		assert.Empty(t, reg.SessionsInTopic("sports"))
	})

	t.Run("drop session clears transport state but not subscriptions", func(t *testing.T) {
		reg := registry.New(nil)

		require.NoError(t, reg.Subscribe("alice", "sports"))
		reg.BindSession("s1", "alice")
		reg.JoinTopic("s1", "sports")
		reg.JoinTopic("s1", "tech")

		reg.DropSession("s1")

		assert.Empty(t, reg.SessionsOf("alice"))
		assert.Empty(t, reg.SessionsInTopic("sports"))
		assert.Empty(t, reg.SessionsInTopic("tech"))
		assert.Equal(t, []string{"alice"}, reg.SubscribersOf("sports"))
	})
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	t.Parallel()

	reg := registry.New(nil)
	require.NoError(t, reg.Subscribe("alice", "sports"))

	snapshot := reg.SubscribersOf("sports")
	require.NoError(t, reg.Subscribe("bob", "sports"))

	// The earlier snapshot must not observe later mutations.
	assert.Equal(t, []string{"alice"}, snapshot)
	assert.ElementsMatch(t, []string{"alice", "bob"}, reg.SubscribersOf("sports"))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	reg := registry.New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i)
			session := fmt.Sprintf("session-%d", i)
			for j := 0; j < 50; j++ {
				_ = reg.Subscribe(user, "sports")
				reg.BindSession(session, user)
				reg.JoinTopic(session, "sports")
				_ = reg.SubscribersOf("sports")
				_ = reg.SessionsInTopic("sports")
				reg.LeaveTopic(session, "sports")
				_ = reg.Unsubscribe(user, "sports")
			}
			reg.DropSession(session)
		}(i)
	}
	wg.Wait()

	assert.Empty(t, reg.SubscribersOf("sports"))
	assert.Empty(t, reg.SessionsInTopic("sports"))
}

type recordingStore struct {
	mu    sync.Mutex
	saves []models.Subscription
	dels  []models.Subscription
	seed  []models.Subscription
}

func (r *recordingStore) Save(username, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, models.Subscription{Username: username, Topic: topic})
	return nil
}

func (r *recordingStore) Delete(username, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dels = append(r.dels, models.Subscription{Username: username, Topic: topic})
	return nil
}

func (r *recordingStore) All() ([]models.Subscription, error) {
	return r.seed, nil
}

func TestRegistry_DurableStore(t *testing.T) {
	t.Parallel()

	t.Run("restore loads persisted pairs", func(t *testing.T) {
		st := &recordingStore{seed: []models.Subscription{
			{Username: "alice", Topic: "sports"},
			{Username: "bob", Topic: "tech"},
		}}
		reg := registry.New(st)
		require.NoError(t, reg.Restore())

		assert.Equal(t, []string{"alice"}, reg.SubscribersOf("sports"))
		assert.Equal(t, []string{"tech"}, reg.TopicsOf("bob"))
	})

	t.Run("duplicate subscribe hits the store once", func(t *testing.T) {
		st := &recordingStore{}
		reg := registry.New(st)

		require.NoError(t, reg.Subscribe("alice", "sports"))
		require.NoError(t, reg.Subscribe("alice", "sports"))

		assert.Len(t, st.saves, 1)
	})
}
