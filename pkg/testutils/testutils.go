// Package testutils holds fixtures and doubles shared by the package tests.
package testutils

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

// Context returns a context carrying a logger that writes through t
func Context(t testing.TB) context.Context {
	t.Helper()
	logger := zerolog.New(zerolog.TestWriter{T: t}).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}
