package internal

import (
	"os"
	"os/exec"
)

func UnbreakDocker() {
	// XXX: This is bad code. Do not do this.
	//
	// When tests run from inside a dev container, that container lives on a
	// different docker network than the valkey test container. For the two to
	// talk they need a network in common, and the easiest one is the default
	// "bridge" network. It is a horrifying monstrosity, but it works.
	if hostname, err := os.Hostname(); err == nil {
		exec.Command("docker", "network", "connect", "bridge", hostname).Run()
	}
}
