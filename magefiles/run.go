//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the demo scene on the headless device. FRAMEFORGE_CONFIG selects a config file.
func (Run) Engine() error {
	args := []string{"run", "."}
	if path := os.Getenv("FRAMEFORGE_CONFIG"); path != "" {
		args = append(args, "-config", path, "-watch")
	}
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs(args...), withStream()); err != nil {
		return err
	}
	return nil
}
