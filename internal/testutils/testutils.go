// Package testutils holds helpers shared by package tests.
package testutils

import (
	"bytes"
	"log/slog"
)

// SetupTestLogger creates a DEBUG-level slog.Logger backed by a buffer, so
// tests can assert on emitted log lines without polluting test output.
func SetupTestLogger() (*slog.Logger, *bytes.Buffer) {
	var logBuf bytes.Buffer
	handler := slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), &logBuf
}
