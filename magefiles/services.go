//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Services groups targets that manage the local backing services.
type Services mg.Namespace

const (
	redisContainer  = "doc-collector-redis"
	ollamaContainer = "doc-collector-ollama"
	markitdownImage = "markitdown:latest"
)

// Up starts Redis and Ollama containers with docker.
func (Services) Up() error {
	if err := startContainer(redisContainer, "-p", "6379:6379", "redis:7-alpine"); err != nil {
		return err
	}
	return startContainer(ollamaContainer, "-p", "11434:11434", "ollama/ollama")
}

// Down stops and removes the service containers.
func (Services) Down() error {
	for _, name := range []string{redisContainer, ollamaContainer} {
		if err := sh.Run("docker", "rm", "-f", name); err != nil {
			fmt.Printf("  %s: %v\n", name, err)
		}
	}
	return nil
}

// Pull downloads a model into the Ollama container, e.g. mage services:pull llama3.2:3b.
func (Services) Pull(model string) error {
	return sh.RunV("docker", "exec", ollamaContainer, "ollama", "pull", model)
}

// Markitdown builds the document conversion image used for PDF and Office files.
func (Services) Markitdown() error {
	return sh.RunV("docker", "build", "-t", markitdownImage, "-f", "build/markitdown.Dockerfile", "build")
}

func startContainer(name string, args ...string) error {
	if out, _ := sh.Output("docker", "ps", "-q", "-f", "name="+name); out != "" {
		fmt.Printf("  %s already running\n", name)
		return nil
	}
	sh.Run("docker", "rm", "-f", name)
	run := append([]string{"run", "-d", "--name", name}, args...)
	if err := sh.RunV("docker", run...); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}
	return nil
}
