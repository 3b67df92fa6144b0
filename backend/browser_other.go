//go:build !windows

package backend

import (
	"context"

	"github.com/pkg/browser"
)

func openExtensionsPage(ctx context.Context) error {
	return browser.OpenURL(extensionsPageURL)
}
