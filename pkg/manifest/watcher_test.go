package manifest

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/autoblog/autoblog-procman/pkg/errors"
	"github.com/autoblog/autoblog-procman/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const singleAppManifest = `
apps:
  - name: autoblog-web
    script: gunicorn
`

const twoAppManifest = `
apps:
  - name: autoblog-web
    script: gunicorn
  - name: autoblog-worker
    script: scheduler.py
    watch: false
`

// send never blocks the watch loop on a full channel
func send[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func TestWatcher_Reload(t *testing.T) {
	path := writeManifest(t, "ecosystem.config.yaml", singleAppManifest)

	watcher := NewWatcher(path, logging.NewNopLogger(), WithDebounce(50*time.Millisecond))
	received := make(chan *Manifest, 1)
	watcher.OnReload(func(m *Manifest) {
		send(received, m)
	})

	require.NoError(t, watcher.Start())
	defer func() {
		assert.NoError(t, watcher.Stop())
	}()

	require.NotNil(t, watcher.Current())
	assert.Equal(t, []string{"autoblog-web"}, watcher.Current().Names())

	// Wait for watcher to initialize
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(twoAppManifest), 0o644))

	select {
	case m := <-received:
		assert.Equal(t, []string{"autoblog-web", "autoblog-worker"}, m.Names())
		assert.Equal(t, m.Names(), watcher.Current().Names())
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for manifest reload")
	}
}

func TestWatcher_InvalidEditKeepsPrevious(t *testing.T) {
	path := writeManifest(t, "ecosystem.config.yaml", singleAppManifest)

	reloadErrors := make(chan error, 1)
	watcher := NewWatcher(path, logging.NewNopLogger(),
		WithDebounce(50*time.Millisecond),
		WithErrorHandler(func(err error) {
			send(reloadErrors, err)
		}),
	)
	var reloaded atomic.Bool
	watcher.OnReload(func(*Manifest) {
		reloaded.Store(true)
	})

	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	before := watcher.Current()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`
apps:
  - name: autoblog-web
    script: gunicorn
  - name: autoblog-web
    script: gunicorn
`), 0o644))

	select {
	case err := <-reloadErrors:
		assert.True(t, errors.IsConfigurationError(err))
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for reload error")
	}

	assert.Same(t, before, watcher.Current())
	assert.False(t, reloaded.Load())
}

func TestWatcher_Unsubscribe(t *testing.T) {
	path := writeManifest(t, "ecosystem.config.yaml", singleAppManifest)

	watcher := NewWatcher(path, logging.NewNopLogger(), WithDebounce(50*time.Millisecond))
	unsubscribed := make(chan *Manifest, 1)
	subscribed := make(chan *Manifest, 1)

	unsubscribe := watcher.OnReload(func(m *Manifest) {
		send(unsubscribed, m)
	})
	watcher.OnReload(func(m *Manifest) {
		send(subscribed, m)
	})
	unsubscribe()

	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(twoAppManifest), 0o644))

	select {
	case <-subscribed:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for manifest reload")
	}

	select {
	case <-unsubscribed:
		t.Fatal("unsubscribed handler was called")
	default:
	}
}

func TestWatcher_StartFailsWithoutManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecosystem.config.yaml")

	watcher := NewWatcher(path, logging.NewNopLogger())
	err := watcher.Start()
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
	assert.Nil(t, watcher.Current())
	assert.NoError(t, watcher.Stop())
}

func TestWatcher_StartTwice(t *testing.T) {
	path := writeManifest(t, "ecosystem.config.yaml", singleAppManifest)

	watcher := NewWatcher(path, logging.NewNopLogger())
	require.NoError(t, watcher.Start())

	err := watcher.Start()
	require.Error(t, err)
	assert.True(t, errors.IsInternalError(err))

	assert.NotPanics(t, func() {
		assert.NoError(t, watcher.Stop())
	})
}
