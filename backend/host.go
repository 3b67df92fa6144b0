package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/wailsapp/wails/v3/pkg/application"
)

// Host is the desktop shell the wizard drives
type Host interface {
	ResolvePath(ctx context.Context) (string, error)
	OpenExtensionsPage(ctx context.Context) error
	CopyToClipboard(text string) error
	Terminate()
}

// Emitter pushes named events to the frontend and to Go listeners
type Emitter interface {
	Emit(name string, data ...any)
}

// EventBus is both ends of the application event channel
type EventBus interface {
	Emitter
	Subscriber
}

// DesktopHost implements Host and EventBus on top of the Wails application
type DesktopHost struct {
	installDirName string

	mu  sync.RWMutex
	app *application.App
}

func NewDesktopHost(installDirName string) *DesktopHost {
	return &DesktopHost{installDirName: installDirName}
}

// SetApp attaches the application once it has been created
func (h *DesktopHost) SetApp(app *application.App) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.app = app
}

func (h *DesktopHost) application() *application.App {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.app
}

// ResolvePath returns the directory the extension bundle is installed into,
// creating it if needed.
func (h *DesktopHost) ResolvePath(ctx context.Context) (string, error) {
	return ensureInstallDir(xdg.DataHome, h.installDirName)
}

// OpenExtensionsPage launches Chrome
func (h *DesktopHost) OpenExtensionsPage(ctx context.Context) error {
	return openExtensionsPage(ctx)
}

func (h *DesktopHost) CopyToClipboard(text string) error {
	app := h.application()
	if app == nil {
		return ErrNoApplication
	}
	if !app.Clipboard.SetText(text) {
		return ErrClipboardUnavailable
	}
	return nil
}

func (h *DesktopHost) Terminate() {
	if app := h.application(); app != nil {
		app.Quit()
	}
}

func (h *DesktopHost) Emit(name string, data ...any) {
	if app := h.application(); app != nil {
		app.Event.Emit(name, data...)
	}
}

func (h *DesktopHost) On(name string, handler func()) func() {
	app := h.application()
	if app == nil {
		return func() {}
	}
	return app.Event.On(name, func(*application.CustomEvent) {
		handler()
	})
}

func ensureInstallDir(base, name string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("no local data directory")
	}
	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create install directory: %w", err)
	}
	return dir, nil
}
