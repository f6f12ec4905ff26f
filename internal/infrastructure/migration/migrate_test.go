package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoshop/backend/migrations"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), upSuffix):
			ups[strings.TrimSuffix(e.Name(), upSuffix)] = true
		case strings.HasSuffix(e.Name(), downSuffix):
			downs[strings.TrimSuffix(e.Name(), downSuffix)] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
	assert.True(t, ups["000001_create_invoices"])
	assert.True(t, ups["000002_create_sequence_counters"])
	assert.True(t, ups["000003_create_outbox_events"])
}

func TestEmbeddedSource_WalksVersions(t *testing.T) {
	src, err := EmbeddedSource(migrations.FS)
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)

	up, ident, err := src.ReadUp(3)
	require.NoError(t, err)
	defer up.Close()
	assert.Equal(t, "create_outbox_events", ident)
}
