package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/polyagent/internal/agent"
)

func TestExitCode(t *testing.T) {
	// Intentional early termination: the scheduler must not alert
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 0, exitCode(agent.ErrLeaseHeld))
	assert.Equal(t, 0, exitCode(agent.ErrDead))
	assert.Equal(t, 0, exitCode(fmt.Errorf("agent.Run: capital exhausted: %w", agent.ErrDead)))

	// A real failure exits 1
	assert.Equal(t, 1, exitCode(errors.New("sqlite locked")))
}
