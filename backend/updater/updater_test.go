package updater

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	http "github.com/bogdanfinn/fhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	manifestURL = "https://updates.example.test/version.json"
	bundleURL   = "https://updates.example.test/extension-2.0.0.zip"
)

// routeClient answers requests from an in-memory table of URL to body
type routeClient struct {
	mu     sync.Mutex
	routes map[string][]byte
	hits   map[string]int
}

func newRouteClient() *routeClient {
	return &routeClient{routes: make(map[string][]byte), hits: make(map[string]int)}
}

func (c *routeClient) set(url string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[url] = body
}

func (c *routeClient) count(url string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits[url]
}

func (c *routeClient) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	url := req.URL.String()
	c.hits[url]++

	body, ok := c.routes[url]
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
		body = []byte("not found")
	}
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    req,
	}, nil
}

type staticPath string

func (p staticPath) ResolvePath(ctx context.Context) (string, error) {
	return string(p), nil
}

type countingHub struct {
	calls atomic.Int32
}

func (h *countingHub) BroadcastReload(ctx context.Context) int {
	h.calls.Add(1)
	return 1
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func manifestJSON(version string) []byte {
	return []byte(fmt.Sprintf(`{"version": %q, "download_url": %q}`, version, bundleURL))
}

func TestCheckAndApply_InstallsNewVersion(t *testing.T) {
	dir := t.TempDir()
	client := newRouteClient()
	client.set(manifestURL, manifestJSON("2.0.0"))
	client.set(bundleURL, buildZip(t, map[string]string{
		"manifest.json":    `{"name": "LeClasseur"}`,
		"js/background.js": "console.log('hi')",
	}))
	hub := &countingHub{}

	u, err := New(staticPath(dir), hub, WithClient(client))
	require.NoError(t, err)

	updated, err := u.CheckAndApply(context.Background(), manifestURL)
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, "2.0.0", LocalVersion(dir))
	assert.FileExists(t, filepath.Join(dir, "manifest.json"))
	assert.FileExists(t, filepath.Join(dir, "js", "background.js"))
	assert.Equal(t, int32(1), hub.calls.Load())

	// Already current: nothing is downloaded again
	updated, err = u.CheckAndApply(context.Background(), manifestURL)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Equal(t, 1, client.count(bundleURL))
	assert.Equal(t, int32(1), hub.calls.Load())
}

func TestCheckAndApply_ManifestErrors(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"missing", nil},
		{"malformed", []byte("{not json")},
		{"no version", []byte(`{"download_url": "https://x.test/a.zip"}`)},
		{"no download url", []byte(`{"version": "1.0.0"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newRouteClient()
			if tt.body != nil {
				client.set(manifestURL, tt.body)
			}
			u, err := New(staticPath(t.TempDir()), nil, WithClient(client))
			require.NoError(t, err)

			updated, err := u.CheckAndApply(context.Background(), manifestURL)
			assert.Error(t, err)
			assert.False(t, updated)
		})
	}
}

func TestCheckAndApply_DownloadFailureKeepsOldVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, versionFileName), []byte("1.0.0"), 0o644))
	client := newRouteClient()
	client.set(manifestURL, manifestJSON("2.0.0"))

	u, err := New(staticPath(dir), nil, WithClient(client))
	require.NoError(t, err)

	_, err = u.CheckAndApply(context.Background(), manifestURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, "1.0.0", LocalVersion(dir))
}

func TestInstall_SkipsEntriesOutsideDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "ext")
	archive := buildZip(t, map[string]string{
		"../escape.txt": "nope",
		"popup.html":    "<html></html>",
	})

	require.NoError(t, Install(dir, archive, "3.1.0"))

	assert.FileExists(t, filepath.Join(dir, "popup.html"))
	assert.NoFileExists(t, filepath.Join(root, "escape.txt"))
	assert.Equal(t, "3.1.0", LocalVersion(dir))
}

func TestInstall_RejectsCorruptArchive(t *testing.T) {
	err := Install(t.TempDir(), []byte("not a zip"), "1.0.0")
	assert.Error(t, err)
}

func TestLocalVersion_Missing(t *testing.T) {
	assert.Equal(t, "", LocalVersion(t.TempDir()))
}

func TestNeedsUpdate(t *testing.T) {
	tests := []struct {
		local, remote string
		want          bool
	}{
		{"", "1.0.0", true},
		{"1.0.0", "1.0.0", false},
		{"1.0", "1.0.0", false},
		{"1.0.0\n", "1.0.0", false},
		{"1.0.0", "1.1.0", true},
		{"1.1.0", "1.0.0", true},
		{"build-7", "build-7", false},
		{"build-7", "build-8", true},
	}

	for _, tt := range tests {
		t.Run(tt.local+"->"+tt.remote, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsUpdate(tt.local, tt.remote))
		})
	}
}
