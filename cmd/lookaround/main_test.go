package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const listing = `<html><head><title>Jobs</title></head><body>
<ul id="results">
  <li class="result-item"><a href="/job/1">Backend Engineer</a></li>
  <li class="result-item"><a href="/job/2">Site Reliability Engineer</a></li>
</ul>
</body></html>`

func jobServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listing)
	})
	mux.HandleFunc("/job/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body><h1>Posting %s</h1></body></html>", strings.TrimPrefix(r.URL.Path, "/job/"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with an observed logger
func execute(t *testing.T, args ...string) (string, *observer.ObservedLogs, error) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	a := newApp()
	a.logger = zap.New(core)

	var out bytes.Buffer
	root := a.rootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), logs, err
}

const visitScript = `
engine: static
actions:
  - type: list
    children: ["id=results", "class=result-item"]
    actions:
      - type: click
        children: ["tag=a"]
      - type: handle
        name: print
      - type: handle
        name: save
      - type: back
`

func TestRunCommand(t *testing.T) {
	srv := jobServer(t)
	dir := t.TempDir()
	samples := filepath.Join(dir, "samples")
	cfg := writeFile(t, dir, "lookaround.yaml", fmt.Sprintf("handlers:\n  print:\n    chars: 45\n  save:\n    dir: %s\n", samples))
	sc := writeFile(t, dir, "jobs.yaml", visitScript)

	out, logs, err := execute(t, "run", sc, "--config", cfg, "--url", srv.URL+"/")
	require.NoError(t, err)

	assert.Contains(t, out, "<html><body><h1>Posting 1</h1></body></html>")
	assert.Contains(t, out, "<html><body><h1>Posting 2</h1></body></html>")

	saved, err := filepath.Glob(filepath.Join(samples, "0000", "*-raw.html"))
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	assert.Zero(t, logs.FilterMessage("action failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("run finished").Len())
}

func TestRunCommandRecordWithoutFrames(t *testing.T) {
	srv := jobServer(t)
	dir := t.TempDir()
	sc := writeFile(t, dir, "snap.yaml", `
- type: handle
  name: snapshot
`)
	gif := filepath.Join(dir, "out.gif")

	_, logs, err := execute(t, "run", sc, "--config", writeFile(t, dir, "c.yaml", "{}"),
		"--url", srv.URL, "--engine", "static", "--record", gif)
	require.NoError(t, err)

	// the static engine cannot take screenshots
	assert.Equal(t, 1, logs.FilterMessage("nothing to record: no snapshot was taken").Len())
	assert.NoFileExists(t, gif)
}

func TestRunCommandErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "c.yaml", "{}")
	invalid := writeFile(t, dir, "invalid.yaml", `
url: http://127.0.0.1:1/
engine: static
actions:
  - type: click
    children: ["bogus"]
`)

	_, _, err := execute(t, "run", invalid, "--config", cfg, "--strict")
	assert.ErrorContains(t, err, "invalid script")

	noURL := writeFile(t, dir, "nourl.yaml", "- type: back\n")
	_, _, err = execute(t, "run", noURL, "--config", cfg)
	assert.ErrorContains(t, err, "no start page")

	_, _, err = execute(t, "run", noURL, "--config", cfg, "--url", "http://x", "--engine", "safari")
	assert.ErrorContains(t, err, "unsupported")

	_, _, err = execute(t, "run", filepath.Join(dir, "missing.yaml"), "--config", cfg)
	assert.ErrorContains(t, err, "open script")

	_, _, err = execute(t, "run", noURL, "--config", filepath.Join(dir, "missing-config.yaml"))
	assert.ErrorContains(t, err, "failed to load config")

	// without --strict the invalid click is skipped, and the unreachable
	// start page aborts the run
	_, logs, err := execute(t, "run", invalid, "--config", cfg)
	assert.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("invalid action will be skipped").Len())
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "c.yaml", "{}")

	out, _, err := execute(t, "validate", writeFile(t, dir, "ok.yaml", visitScript), "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "1 top-level actions")
	assert.Contains(t, out, "handle")
	assert.Contains(t, out, "[print save]")
	assert.Contains(t, out, "✓ valid")

	out, _, err = execute(t, "validate", writeFile(t, dir, "bad.yaml", `
- type: sleep
  min: one
- type: handle
- type: list
  children: ["id=x[-1]"]
`), "--config", cfg)
	assert.ErrorContains(t, err, "3 invalid action(s)")
	assert.Equal(t, 3, strings.Count(out, "✗"))
}
