package updater

import (
	"context"
	"fmt"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36"

// Doer sends HTTP requests
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PathResolver returns the install directory
type PathResolver interface {
	ResolvePath(ctx context.Context) (string, error)
}

// Broadcaster notifies the installed extension that its files changed
type Broadcaster interface {
	BroadcastReload(ctx context.Context) int
}

// Updater compares the remote manifest with the installed bundle and
// installs the remote bundle when they differ.
type Updater struct {
	client Doer
	paths  PathResolver
	hub    Broadcaster
	group  singleflight.Group
}

type Option func(*Updater)

// WithClient replaces the default TLS client
func WithClient(client Doer) Option {
	return func(u *Updater) {
		u.client = client
	}
}

func New(paths PathResolver, hub Broadcaster, opts ...Option) (*Updater, error) {
	u := &Updater{paths: paths, hub: hub}
	for _, opt := range opts {
		opt(u)
	}

	if u.client == nil {
		jar := tls_client.NewCookieJar()
		options := []tls_client.HttpClientOption{
			tls_client.WithTimeoutSeconds(120),
			tls_client.WithClientProfile(profiles.Chrome_120),
			tls_client.WithCookieJar(jar),
			// The manifest host serves a self-signed certificate in dev.
			tls_client.WithInsecureSkipVerify(),
		}

		client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS client: %w", err)
		}
		u.client = client
	}

	return u, nil
}

// CheckAndApply installs the bundle described by the manifest when it
// differs from the installed one. Concurrent calls for the same manifest
// share a single check. It reports whether a new bundle was installed.
func (u *Updater) CheckAndApply(ctx context.Context, manifestURL string) (bool, error) {
	v, err, shared := u.group.Do(manifestURL, func() (any, error) {
		return u.checkAndApply(ctx, manifestURL)
	})
	if shared {
		log.Debug("joined an update check already in flight")
	}
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (u *Updater) checkAndApply(ctx context.Context, manifestURL string) (bool, error) {
	log.Debugf("checking for extension update at %s", manifestURL)
	manifest, err := u.FetchManifest(ctx, manifestURL)
	if err != nil {
		return false, err
	}

	dir, err := u.paths.ResolvePath(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to resolve install dir: %w", err)
	}

	current := LocalVersion(dir)
	if !NeedsUpdate(current, manifest.Version) {
		log.Debugf("extension %s is up to date", current)
		return false, nil
	}

	log.Infof("updating extension from %q to %q", current, manifest.Version)
	archive, err := u.get(ctx, manifest.DownloadURL, "application/zip")
	if err != nil {
		return false, fmt.Errorf("failed to download bundle: %w", err)
	}

	if err := Install(dir, archive, manifest.Version); err != nil {
		return false, err
	}

	if u.hub != nil {
		n := u.hub.BroadcastReload(ctx)
		log.Infof("reload sent to %d extension(s)", n)
	}
	return true, nil
}
