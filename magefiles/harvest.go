//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Harvest groups targets that run the built CLI against the local state directory.
type Harvest mg.Namespace

func bin() string { return "./" + binDir + "/" + binName }

// Crawl builds the CLI and runs one local-only crawl.
func (Harvest) Crawl() error {
	mg.Deps(Build)
	return sh.RunV(bin(), "crawl", "--state-dir", stateDir())
}

// Push builds the CLI and uploads the shards left in the state directory.
func (Harvest) Push() error {
	mg.Deps(Build)
	return sh.RunV(bin(), "push", "--state-dir", stateDir())
}

// Status builds the CLI and prints the state directory summary.
func (Harvest) Status() error {
	mg.Deps(Build)
	return sh.RunV(bin(), "status", "--state-dir", stateDir())
}
