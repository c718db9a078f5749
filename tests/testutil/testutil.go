package testutil

import (
	"os"
	"testing"
)

// UseTestEnvironment pins GO_ENV to "test" for the lifetime of t so that
// nothing under test loads a development or production .env file.
func UseTestEnvironment(t *testing.T) {
	t.Helper()

	t.Setenv("GO_ENV", "test")
	if os.Getenv("GO_ENV") != "test" {
		t.Fatal("Failed to verify GO_ENV=test")
	}
}

// SkipWhenSet skips the test when the named variable is "true".
// Suites that need network access to the identity provider use SKIP_AUTH_TESTS.
func SkipWhenSet(t *testing.T, name string) {
	t.Helper()

	if os.Getenv(name) == "true" {
		t.Skipf("Skipping: %s=true", name)
	}
}
