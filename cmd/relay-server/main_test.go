package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"assistant-relay/internal/config"
)

func TestShutdownGraceOutlastsMessageDeadline(t *testing.T) {
	assert.Equal(t, 65*time.Second, shutdownGrace(config.Config{}))

	cfg := config.Config{PollInterval: 2 * time.Second, PollMaxAttempts: 90}
	assert.Equal(t, 215*time.Second, shutdownGrace(cfg))
}
