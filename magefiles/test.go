//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every test of the module.
func (Test) All() error {
	return goTest()
}

// Runs every test with the race detector, the config watcher runs on its own goroutine.
func (Test) Race() error {
	return goTest("-race")
}
