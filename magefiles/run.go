//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Renders the sample pipeline headless.
func (Run) Engine() error {
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", "main.go", "-pipeline", "assets/pipeline.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Renders the sample pipeline and reloads it on every change until interrupted.
func (Run) Watch() error {
	mg.Deps(Test.All)
	if _, err := executeCmd("go", withArgs("run", "main.go", "-pipeline", "assets/pipeline.toml", "-watch", "-forever"), withStream()); err != nil {
		return err
	}
	return nil
}
