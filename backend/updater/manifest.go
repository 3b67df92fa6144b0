package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	http "github.com/bogdanfinn/fhttp"
	"github.com/hashicorp/go-version"
)

const versionFileName = "version.txt"

// Manifest is the remote document describing the latest extension bundle
type Manifest struct {
	Version     string `json:"version"`
	DownloadURL string `json:"download_url"`
}

// FetchManifest downloads and decodes the manifest
func (u *Updater) FetchManifest(ctx context.Context, manifestURL string) (*Manifest, error) {
	body, err := u.get(ctx, manifestURL, "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, fmt.Errorf("malformed manifest: %w", err)
	}
	manifest.Version = strings.TrimSpace(manifest.Version)
	if manifest.Version == "" {
		return nil, fmt.Errorf("manifest has no version")
	}
	if manifest.DownloadURL == "" {
		return nil, fmt.Errorf("manifest has no download url")
	}

	return &manifest, nil
}

func (u *Updater) get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = http.Header{
		"accept":     {accept},
		"user-agent": {userAgent},
		http.HeaderOrderKey: {
			"accept",
			"user-agent",
		},
	}

	resp, err := u.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status code %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// LocalVersion returns the version of the bundle installed in dir, or an
// empty string when nothing is installed.
func LocalVersion(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, versionFileName))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// NeedsUpdate reports whether the remote version differs from the local
// one. Versions are compared semantically when both parse, so "1.2" and
// "1.2.0" are the same version. Any difference counts, including a lower
// remote version, which lets the server roll a bad release back.
func NeedsUpdate(local, remote string) bool {
	local, remote = strings.TrimSpace(local), strings.TrimSpace(remote)
	if local == "" {
		return remote != ""
	}

	lv, lerr := version.NewVersion(local)
	rv, rerr := version.NewVersion(remote)
	if lerr == nil && rerr == nil {
		return !lv.Equal(rv)
	}
	return local != remote
}
