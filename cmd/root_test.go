package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"aegisrt/internal/apicore"
)

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", GetVersion())
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "aegisrt", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestSubcommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, expected := range []string{"version", "start", "status", "snapshot", "inspect"} {
		assert.True(t, names[expected], "expected subcommand %s to be registered", expected)
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCodeConfigurationErr, getExitCode(apicore.NewConfigurationError("db", "bad")))
	assert.Equal(t, ExitCodeShutdownTimeout, getExitCode(apicore.NewShutdownTimeoutError("db", "30s")))
	assert.Equal(t, ExitCodeStartupFailure, getExitCode(&startupFailureError{service: "db", cause: apicore.ErrServiceNotFound}))
	assert.Equal(t, ExitCodeGeneralError, getExitCode(apicore.ErrOrchestratorClosed))
}
