package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aretw0/intake/pkg/adapters/memory"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
	"github.com/aretw0/intake/pkg/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s SlowStore) Save(ctx context.Context, sess *domain.Session) error {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Save(ctx, sess)
}

func (s SlowStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Load(ctx, id)
}

func TestManager_WithLockSerializesReadModifyWrite(t *testing.T) {
	store := SlowStore{memory.NewStore()}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	require.NoError(t, manager.Save(ctx, domain.NewSession(id, "e", "o", time.Now())))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, id, func(ctx context.Context) error {
				s, err := store.Load(ctx, id)
				if err != nil {
					return err
				}
				s.Attempts++
				return store.Save(ctx, s)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, s.Attempts, "read-modify-write must not lose updates")
}

func TestManager_DistinctSessionsRunInParallel(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	aDone := make(chan struct{})

	go func() {
		defer close(aDone)
		_ = manager.WithLock(ctx, "a", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	go func() {
		defer close(done)
		_ = manager.WithLock(ctx, "b", func(context.Context) error { return nil })
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("session b was blocked by session a")
	}
	close(release)
	<-aDone
}

func TestManager_LoadDeleteList(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, manager.Save(ctx, domain.NewSession("a", "e", "o", time.Now())))
	require.NoError(t, manager.Save(ctx, domain.NewSession("b", "e", "o", time.Now())))

	ids, err := manager.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	require.NoError(t, manager.Delete(ctx, "a"))
	require.NoError(t, manager.Delete(ctx, "a"), "deleting twice is not an error")

	_, err = manager.Load(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	ids, err = manager.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

type countingLocker struct {
	locks, unlocks atomic.Int32
	ttl            time.Duration
	fail           error
}

func (l *countingLocker) Lock(_ context.Context, _ string, ttl time.Duration) (ports.UnlockFunc, error) {
	if l.fail != nil {
		return nil, l.fail
	}
	l.ttl = ttl
	l.locks.Add(1)
	return func(context.Context) error {
		l.unlocks.Add(1)
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &countingLocker{}
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Minute))

	err := manager.WithLock(context.Background(), "s", func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, int32(1), locker.locks.Load())
	assert.Equal(t, int32(1), locker.unlocks.Load())
	assert.Equal(t, time.Minute, locker.ttl)

	locker.fail = errors.New("redis down")
	called := false
	err = manager.WithLock(context.Background(), "s", func(context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called, "fn must not run without the distributed lock")
}
