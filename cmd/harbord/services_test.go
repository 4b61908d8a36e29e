package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrell/harbord"
)

func TestParseWorkerFlags(t *testing.T) {
	wf, err := parseWorkerFlags(harbord.RoleLightClient, []string{
		"--data-dir", "/data/lc", "--prune-point", "c0ffee:123",
	})
	require.NoError(t, err)
	assert.Equal(t, "/data/lc", wf.dataDir)
	assert.Equal(t, "c0ffee:123", wf.prunePoint)
}

func TestParseWorkerFlags_RequiresDataDir(t *testing.T) {
	_, err := parseWorkerFlags(harbord.RoleIndexer, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--data-dir")
}

func TestEntryPoints_CoverEveryRole(t *testing.T) {
	entries := entryPoints()
	for _, role := range harbord.Roles {
		assert.Contains(t, entries, role)
	}
}
