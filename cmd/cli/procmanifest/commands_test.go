package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/autoblog/autoblog-procman/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exampleManifest = filepath.Join("..", "..", "..", "ecosystem.config.yaml")

func newTestApp() (*app, *bytes.Buffer) {
	out := &bytes.Buffer{}
	a := newApp(out)
	a.logger = logging.NewNopLogger()
	a.environ = func() []string { return []string{"NODE_ENV=development", "PATH=/usr/bin"} }
	return a, out
}

func TestValidate(t *testing.T) {
	a, out := newTestApp()
	errOut := &bytes.Buffer{}

	code := run(a, []string{"-c", exampleManifest, "validate"}, errOut)
	assert.Equal(t, 0, code, errOut.String())
	assert.Equal(t, exampleManifest+": ok, 2 processes\n", out.String())
}

func TestValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecosystem.config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
apps:
  - name: autoblog-web
    script: gunicorn
  - name: autoblog-web
`), 0o644))

	a, out := newTestApp()
	errOut := &bytes.Buffer{}

	code := run(a, []string{"--config", path, "validate"}, errOut)
	assert.Equal(t, 1, code)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "duplicate process name 'autoblog-web'")
	assert.Contains(t, errOut.String(), "has no script")
}

func TestValidate_Missing(t *testing.T) {
	a, _ := newTestApp()
	errOut := &bytes.Buffer{}

	code := run(a, []string{"-c", filepath.Join(t.TempDir(), "ecosystem.config.yaml"), "validate"}, errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "not_found")
}

func TestShow(t *testing.T) {
	a, out := newTestApp()

	code := run(a, []string{"-c", exampleManifest, "show"}, &bytes.Buffer{})
	require.Equal(t, 0, code)

	expected := `name:        autoblog-web
script:      gunicorn
args:        --workers 3 --bind 0.0.0.0:8000 app:app
interpreter: python3
env:         NODE_ENV=production

name:        autoblog-worker
script:      scheduler.py
interpreter: python3
watch:       false
env:         NODE_ENV=production
`
	assert.Equal(t, expected, out.String())
}

func TestPlan(t *testing.T) {
	a, out := newTestApp()

	code := run(a, []string{"-c", exampleManifest, "plan"}, &bytes.Buffer{})
	require.Equal(t, 0, code)

	expected := `[autoblog-web]
command: python3 gunicorn --workers 3 --bind 0.0.0.0:8000 app:app
env:     NODE_ENV=production

[autoblog-worker]
command: python3 scheduler.py
env:     NODE_ENV=production
`
	assert.Equal(t, expected, out.String())
}

func TestWatch_StopsOnCancel(t *testing.T) {
	a, out := newTestApp()
	a.watchContext = func() (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx, cancel
	}

	code := run(a, []string{"-c", exampleManifest, "watch"}, &bytes.Buffer{})
	require.Equal(t, 0, code)
	assert.Equal(t, "watching "+exampleManifest+": autoblog-web, autoblog-worker\n", out.String())
}

func TestMissingCommand(t *testing.T) {
	a, _ := newTestApp()
	errOut := &bytes.Buffer{}

	code := run(a, []string{"-c", exampleManifest}, errOut)
	assert.Equal(t, 1, code)
	assert.NotEmpty(t, errOut.String())
}
