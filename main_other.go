//go:build !windows

package main

import (
	log "github.com/sirupsen/logrus"
)

func fatal(err error) {
	log.Fatal(err)
}
