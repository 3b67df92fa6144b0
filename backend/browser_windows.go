//go:build windows

package backend

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows/registry"
)

const kChromeAppPathKey = "Software\\Microsoft\\Windows\\CurrentVersion\\App Paths\\chrome.exe"

// findChrome looks up chrome.exe in the App Paths registry key, per user
// first, then machine wide, in both the 64-bit and 32-bit registry views.
func findChrome() (string, error) {
	for _, rootKey := range []registry.Key{registry.CURRENT_USER, registry.LOCAL_MACHINE} {
		for _, access := range []uint32{registry.READ, registry.READ | registry.WOW64_32KEY} {
			path, err := chromeFromRegistry(rootKey, access)
			if err != nil {
				continue
			}
			return path, nil
		}
	}
	return "", fmt.Errorf("chrome not found in registry")
}

func chromeFromRegistry(rootKey registry.Key, access uint32) (string, error) {
	regKey, err := registry.OpenKey(rootKey, kChromeAppPathKey, access)
	if err != nil {
		return "", err
	}
	defer regKey.Close()

	// The default value holds the full executable path
	path, _, err := regKey.GetStringValue("")
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("empty chrome.exe App Paths value")
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("chrome path does not exist: %s", path)
	}
	return path, nil
}

// openExtensionsPage starts Chrome. Chrome refuses chrome:// addresses passed
// on the command line, the user pastes the copied address instead.
func openExtensionsPage(ctx context.Context) error {
	chrome, err := findChrome()
	if err != nil {
		log.Debugf("falling back to shell start: %v", err)
		cmd := exec.Command("cmd", "/C", "start", "chrome")
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to start chrome: %w", err)
		}
		return nil
	}

	log.Debugf("starting chrome from %s", chrome)
	if err := exec.Command(chrome).Start(); err != nil {
		return fmt.Errorf("failed to start chrome: %w", err)
	}
	return nil
}
