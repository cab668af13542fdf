package actor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TweetWatch/internal/domain"
	"TweetWatch/internal/infrastructure/storage"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// manualScheduler records armed reminders; tests fire them explicitly.
type manualScheduler struct {
	mu    sync.Mutex
	armed map[string]func(domain.Reminder)
	rems  map[string]domain.Reminder
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{armed: map[string]func(domain.Reminder){}, rems: map[string]domain.Reminder{}}
}

func (m *manualScheduler) Arm(r domain.Reminder, fire func(domain.Reminder)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.armed[r.EntityID+"/"+r.Name] = fire
	m.rems[r.EntityID+"/"+r.Name] = r
	return nil
}

func (m *manualScheduler) Start(context.Context) error { return nil }
func (m *manualScheduler) Stop(context.Context) error  { return nil }

func (m *manualScheduler) fire(entityID, name string) bool {
	m.mu.Lock()
	fn, ok := m.armed[entityID+"/"+name]
	r := m.rems[entityID+"/"+name]
	m.mu.Unlock()
	if ok {
		fn(r)
	}
	return ok
}

type recordingActor struct {
	host        Host
	activations *atomic.Int32
	inFlight    *atomic.Int32
	overlapped  *atomic.Bool
	fires       chan string
	failFires   *atomic.Int32
}

func (p *recordingActor) OnActivate(ctx context.Context) error {
	p.activations.Add(1)
	_, err := p.host.State.TryCreate(ctx, "ActivatedAt", []byte("1"))
	return err
}

func (p *recordingActor) ReceiveReminder(_ context.Context, name string, _ []byte, _, _ time.Duration) error {
	if p.failFires.Load() > 0 {
		p.failFires.Add(-1)
		p.fires <- "failed:" + name
		return errors.New("upstream down")
	}
	p.fires <- name
	return nil
}

func (p *recordingActor) work(d time.Duration) {
	if p.inFlight.Add(1) > 1 {
		p.overlapped.Store(true)
	}
	time.Sleep(d)
	p.inFlight.Add(-1)
}

type recorder struct {
	activations atomic.Int32
	inFlight    atomic.Int32
	overlapped  atomic.Bool
	failFires   atomic.Int32
	fires       chan string
}

func newRuntime(t *testing.T, p *recorder, sched *manualScheduler, repo *storage.MemoryRepository, opts Options) *Runtime[*recordingActor] {
	t.Helper()
	rt := NewRuntime(Deps[*recordingActor]{
		State:     repo,
		Reminders: repo,
		Scheduler: sched,
		Factory: func(host Host) *recordingActor {
			return &recordingActor{
				host:        host,
				activations: &p.activations,
				inFlight:    &p.inFlight,
				overlapped:  &p.overlapped,
				fires:       p.fires,
				failFires:   &p.failFires,
			}
		},
		Options: opts,
		Logger:  testLogger,
	})
	require.NoError(t, rt.Start(context.Background()))
	t.Cleanup(func() { _ = rt.Stop(context.Background()) })
	return rt
}

func TestRuntimeSerializesCallsPerEntity(t *testing.T) {
	t.Parallel()

	p := &recorder{fires: make(chan string, 8)}
	rt := newRuntime(t, p, newManualScheduler(), storage.NewMemoryRepository(), Options{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := rt.Call(context.Background(), "acct1", func(_ context.Context, a *recordingActor) error {
				a.work(5 * time.Millisecond)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, p.overlapped.Load(), "calls into one entity must not overlap")
	assert.Equal(t, int32(1), p.activations.Load())
}

func TestRuntimeRunsEntitiesInParallel(t *testing.T) {
	t.Parallel()

	p := &recorder{fires: make(chan string, 8)}
	rt := newRuntime(t, p, newManualScheduler(), storage.NewMemoryRepository(), Options{})

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var wg sync.WaitGroup
	for _, id := range []string{"acct1", "acct2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = rt.Call(context.Background(), id, func(context.Context, *recordingActor) error {
				started <- struct{}{}
				<-release
				return nil
			})
		}(id)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("entities did not run concurrently")
		}
	}
	close(release)
	wg.Wait()
	assert.Equal(t, int32(2), p.activations.Load())
}

func TestRuntimeSkipsCancelledCalls(t *testing.T) {
	t.Parallel()

	p := &recorder{fires: make(chan string, 8)}
	rt := newRuntime(t, p, newManualScheduler(), storage.NewMemoryRepository(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := rt.Call(ctx, "acct1", func(context.Context, *recordingActor) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestRuntimeRecoversPanickingTurn(t *testing.T) {
	t.Parallel()

	p := &recorder{fires: make(chan string, 8)}
	rt := newRuntime(t, p, newManualScheduler(), storage.NewMemoryRepository(), Options{})

	err := rt.Call(context.Background(), "acct1", func(context.Context, *recordingActor) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	require.NoError(t, rt.Call(context.Background(), "acct1", func(context.Context, *recordingActor) error { return nil }))
}

func TestRuntimeDeliversRegisteredReminder(t *testing.T) {
	t.Parallel()

	p := &recorder{fires: make(chan string, 8)}
	sched := newManualScheduler()
	repo := storage.NewMemoryRepository()
	rt := newRuntime(t, p, sched, repo, Options{})

	err := rt.Call(context.Background(), "acct1", func(ctx context.Context, a *recordingActor) error {
		return a.host.Reminders.Register(ctx, "TweetReminder", nil, time.Minute, 10*time.Minute)
	})
	require.NoError(t, err)

	err = rt.Call(context.Background(), "acct1", func(ctx context.Context, a *recordingActor) error {
		return a.host.Reminders.Register(ctx, "TweetReminder", nil, time.Minute, 10*time.Minute)
	})
	require.ErrorIs(t, err, ErrReminderExists)

	require.True(t, sched.fire("acct1", "TweetReminder"))
	select {
	case name := <-p.fires:
		assert.Equal(t, "TweetReminder", name)
	case <-time.After(2 * time.Second):
		t.Fatal("reminder turn not delivered")
	}
}

func TestRuntimeRestoresRemindersAfterRestart(t *testing.T) {
	t.Parallel()

	repo := storage.NewMemoryRepository()
	_, err := repo.SaveReminder(context.Background(), domain.Reminder{
		EntityID:     "acct7",
		Name:         "TweetReminder",
		DueTime:      time.Minute,
		Period:       10 * time.Minute,
		RegisteredAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	p := &recorder{fires: make(chan string, 8)}
	sched := newManualScheduler()
	newRuntime(t, p, sched, repo, Options{})

	require.True(t, sched.fire("acct7", "TweetReminder"), "persisted reminder must be re-armed on start")
	select {
	case name := <-p.fires:
		assert.Equal(t, "TweetReminder", name)
	case <-time.After(2 * time.Second):
		t.Fatal("restored reminder not delivered")
	}
	assert.Equal(t, int32(1), p.activations.Load(), "reminder fire lazily activates the entity")
}

func TestRuntimeRetriesFailedReminderTurn(t *testing.T) {
	t.Parallel()

	p := &recorder{fires: make(chan string, 8)}
	p.failFires.Store(1)
	sched := newManualScheduler()
	repo := storage.NewMemoryRepository()
	rt := newRuntime(t, p, sched, repo, Options{RetryDelay: 10 * time.Millisecond, MaxRetries: 2})

	require.NoError(t, rt.Call(context.Background(), "acct1", func(ctx context.Context, a *recordingActor) error {
		return a.host.Reminders.Register(ctx, "TweetReminder", nil, time.Minute, time.Minute)
	}))
	require.True(t, sched.fire("acct1", "TweetReminder"))

	var got []string
	for len(got) < 2 {
		select {
		case name := <-p.fires:
			got = append(got, name)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected retry, got %v", got)
		}
	}
	assert.Equal(t, []string{"failed:TweetReminder", "TweetReminder"}, got)
}

func TestRuntimeRejectsCallsAfterStop(t *testing.T) {
	t.Parallel()

	p := &recorder{fires: make(chan string, 8)}
	rt := newRuntime(t, p, newManualScheduler(), storage.NewMemoryRepository(), Options{})
	require.NoError(t, rt.Stop(context.Background()))

	err := rt.Call(context.Background(), "acct1", func(context.Context, *recordingActor) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}
