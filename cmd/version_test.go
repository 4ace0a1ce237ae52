package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCommandPrintsVersion(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()
	rootCmd.Version = "1.2.3-test"

	versionCmd := newVersionCmd()
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, []string{})

	assert.Equal(t, "aegisrt version 1.2.3-test\n", buf.String())
}

func TestCheckUpdateRejectsDevVersion(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()
	rootCmd.Version = "dev"

	err := runCheckUpdate(newCheckUpdateCmd(), nil)
	assert.ErrorContains(t, err, "cannot check updates for a development version")
}

func TestVersionCommandHasCheckUpdateSubcommand(t *testing.T) {
	versionCmd := newVersionCmd()
	names := make(map[string]bool)
	for _, c := range versionCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["check-update"])
}
