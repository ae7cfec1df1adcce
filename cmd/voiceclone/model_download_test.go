package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelDownload_RequiresRepo(t *testing.T) {
	_, _, err := runRoot(t, "", "model", "download", "--log-level=error")

	assert.Error(t, err)
}

func TestModelDownload_Flags(t *testing.T) {
	cmd := newModelDownloadCmd()

	for _, name := range []string{"hf-repo", "revision", "out-dir", "hf-token", "hub-url"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %q", name)
	}
}
