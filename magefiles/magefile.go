//go:build mage

// Package main provides build targets for veridian using Mage.
//
// Usage:
//
//	mage build          Compile the veridian binary to bin/
//	mage test           Run all tests (postgres tests need Docker)
//	mage testShort      Run tests without containers
//	mage lint           Run golangci-lint
//	mage run            Build and serve on the in-memory store with debug logging
//	mage clean          Remove build artifacts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "veridian"
	binaryDir  = "bin"
	mainPkg    = "."
)

var binaryPath = filepath.Join(binaryDir, binaryName)

// Build compiles the veridian binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-v", "-o", binaryPath, mainPkg)
}

// Test runs all tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// TestShort runs the tests that need neither Docker nor network access.
func TestShort() error {
	return sh.RunWithV(map[string]string{"VERIDIAN_SKIP_CONTAINERS": "1"}, "go", "test", "-short", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Run builds and starts a development server.
func Run() error {
	mg.Deps(Build)
	return sh.RunV(binaryPath, "serve", "--store", "memory", "--log-level", "debug", "--mock-seed", "1")
}

// Clean removes build artifacts.
func Clean() error {
	return os.RemoveAll(binaryDir)
}
