//go:build windows

package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/sqweek/dialog"
)

// fatal reports an error the application cannot recover from. Windows
// builds have no console, so the error is also shown in a native dialog.
func fatal(err error) {
	log.Errorf("fatal: %v", err)
	dialog.Message("The updater could not start:\n\n%s", err.Error()).
		Title("LeClasseur Extension").
		Error()
	os.Exit(1)
}
