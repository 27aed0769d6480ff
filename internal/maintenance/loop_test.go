package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hove-io/navitia-sub004/internal/storage/realtime"
	"github.com/hove-io/navitia-sub004/internal/storage/snapshot"
	"github.com/hove-io/navitia-sub004/internal/telemetry/logger"
)

type stubSource struct{}

func (stubSource) Fetch(context.Context) ([]byte, error) { return nil, nil }
func (stubSource) String() string                        { return "stub" }

// fakeReloader records reloads. When hold is set every reload waits for a
// receive on it.
type fakeReloader struct {
	mu       sync.Mutex
	loads    []snapshot.LoadOptions
	loadedAt []time.Time
	realtime int
	hold     chan struct{}
}

func (f *fakeReloader) wait(ctx context.Context) {
	if f.hold == nil {
		return
	}
	select {
	case <-f.hold:
	case <-ctx.Done():
	}
}

func (f *fakeReloader) Load(ctx context.Context, opts snapshot.LoadOptions) bool {
	f.mu.Lock()
	f.loads = append(f.loads, opts)
	f.loadedAt = append(f.loadedAt, time.Now())
	f.mu.Unlock()
	f.wait(ctx)
	return true
}

func (f *fakeReloader) ApplyRealtime(ctx context.Context, _ realtime.Source, _ []string) bool {
	f.mu.Lock()
	f.realtime++
	f.mu.Unlock()
	f.wait(ctx)
	return true
}

func (f *fakeReloader) counts() (loads, rt int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads), f.realtime
}

func startLoop(t *testing.T, cfg Config, f *fakeReloader) *Loop {
	t.Helper()
	l := New(cfg, f, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("maintenance loop did not stop")
		}
	})
	return l
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"base", KindBase, false},
		{" Realtime\n", KindRealtime, false},
		{"", 0, true},
		{"everything", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownKind, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, mustParse(t, got.String()))
	}
}

func mustParse(t *testing.T, s string) Kind {
	t.Helper()
	k, err := ParseKind(s)
	require.NoError(t, err)
	return k
}

func TestLoop_InitialLoad(t *testing.T) {
	f := &fakeReloader{}
	cfg := Config{BasePath: "/data/extract.zip", Contributors: []string{"agency:1"}, CacheSize: 64, Realtime: stubSource{}}
	startLoop(t, cfg, f)

	require.Eventually(t, func() bool { n, _ := f.counts(); return n == 1 }, time.Second, 5*time.Millisecond)
	f.mu.Lock()
	opts := f.loads[0]
	f.mu.Unlock()
	assert.Equal(t, "/data/extract.zip", opts.BasePath)
	assert.Equal(t, []string{"agency:1"}, opts.Contributors)
	assert.Equal(t, 64, opts.CacheSize)
	assert.NotNil(t, opts.Realtime)
	assert.False(t, opts.Force)
}

func TestLoop_TriggerRealtime(t *testing.T) {
	t.Run("with a source", func(t *testing.T) {
		f := &fakeReloader{}
		l := startLoop(t, Config{BasePath: "x", Realtime: stubSource{}}, f)
		require.Eventually(t, func() bool { n, _ := f.counts(); return n == 1 }, time.Second, 5*time.Millisecond)

		l.TriggerRealtime()
		require.Eventually(t, func() bool { _, rt := f.counts(); return rt == 1 }, time.Second, 5*time.Millisecond)
		n, _ := f.counts()
		assert.Equal(t, 1, n)
	})

	t.Run("without a source", func(t *testing.T) {
		f := &fakeReloader{}
		l := startLoop(t, Config{BasePath: "x"}, f)
		require.Eventually(t, func() bool { n, _ := f.counts(); return n == 1 }, time.Second, 5*time.Millisecond)

		l.TriggerRealtime()
		l.TriggerBase()
		require.Eventually(t, func() bool { n, _ := f.counts(); return n == 2 }, time.Second, 5*time.Millisecond)
		_, rt := f.counts()
		assert.Zero(t, rt)
	})
}

func TestLoop_CoalescesTriggers(t *testing.T) {
	f := &fakeReloader{hold: make(chan struct{})}
	l := startLoop(t, Config{BasePath: "x", Realtime: stubSource{}}, f)

	// The initial load is running; everything below piles up behind it.
	require.Eventually(t, func() bool { n, _ := f.counts(); return n == 1 }, time.Second, 5*time.Millisecond)
	for i := 0; i < 5; i++ {
		l.TriggerBase()
		l.TriggerRealtime()
	}
	f.hold <- struct{}{}

	require.Eventually(t, func() bool { n, _ := f.counts(); return n == 2 }, time.Second, 5*time.Millisecond)
	f.hold <- struct{}{}

	assert.Never(t, func() bool { n, rt := f.counts(); return n > 2 || rt > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestLoop_MinReloadGap(t *testing.T) {
	f := &fakeReloader{}
	l := startLoop(t, Config{BasePath: "x", MinReloadGap: 200 * time.Millisecond}, f)

	require.Eventually(t, func() bool { n, _ := f.counts(); return n == 1 }, time.Second, 5*time.Millisecond)
	l.TriggerBase()
	require.Eventually(t, func() bool { n, _ := f.counts(); return n == 2 }, 2*time.Second, 5*time.Millisecond)

	f.mu.Lock()
	gap := f.loadedAt[1].Sub(f.loadedAt[0])
	f.mu.Unlock()
	assert.GreaterOrEqual(t, gap, 150*time.Millisecond)
}

func TestLoop_Interval(t *testing.T) {
	t.Run("base without realtime", func(t *testing.T) {
		f := &fakeReloader{}
		startLoop(t, Config{BasePath: "x", Interval: 20 * time.Millisecond}, f)
		require.Eventually(t, func() bool { n, _ := f.counts(); return n >= 3 }, 2*time.Second, 5*time.Millisecond)
	})

	t.Run("realtime when configured", func(t *testing.T) {
		f := &fakeReloader{}
		startLoop(t, Config{BasePath: "x", Interval: 20 * time.Millisecond, Realtime: stubSource{}}, f)
		require.Eventually(t, func() bool { _, rt := f.counts(); return rt >= 2 }, 2*time.Second, 5*time.Millisecond)
		n, _ := f.counts()
		assert.Equal(t, 1, n)
	})
}

func TestLoop_WatchBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extract.zip")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	f := &fakeReloader{}
	startLoop(t, Config{BasePath: path, Watch: true}, f)
	require.Eventually(t, func() bool { n, _ := f.counts(); return n == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	require.Eventually(t, func() bool { n, _ := f.counts(); return n >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestLoop_WatchMissingDirectory(t *testing.T) {
	l := New(Config{BasePath: "/nonexistent/dir/extract.zip", Watch: true}, &fakeReloader{}, nil)
	err := l.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch")
}

func startNATS(t *testing.T) *nats.Conn {
	t.Helper()
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	t.Cleanup(ns.Shutdown)
	require.True(t, ns.ReadyForConnections(5*time.Second))

	nc, err := ConnectNATS(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestLoop_Subscribe(t *testing.T) {
	nc := startNATS(t)
	f := &fakeReloader{}
	l := startLoop(t, Config{BasePath: "x", Realtime: stubSource{}}, f)
	require.Eventually(t, func() bool { n, _ := f.counts(); return n == 1 }, time.Second, 5*time.Millisecond)

	sub, err := l.Subscribe(nc, "")
	require.NoError(t, err)
	defer sub.Unsubscribe()
	assert.Equal(t, DefaultSubject, sub.Subject)

	require.NoError(t, nc.Publish(DefaultSubject, []byte("realtime")))
	require.NoError(t, nc.Flush())
	require.Eventually(t, func() bool { _, rt := f.counts(); return rt == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, nc.Publish(DefaultSubject, []byte("rebuild everything")))
	require.NoError(t, nc.Publish(DefaultSubject, []byte("base")))
	require.NoError(t, nc.Flush())
	require.Eventually(t, func() bool { n, _ := f.counts(); return n == 2 }, 2*time.Second, 5*time.Millisecond)
	_, rt := f.counts()
	assert.Equal(t, 1, rt)
}
