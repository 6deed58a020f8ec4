package postgres

import (
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-chat/internal/adapters/driven/storage/postgres/migrations"
	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

func TestNullIfEmpty(t *testing.T) {
	assert.Nil(t, nullIfEmpty(""))

	got := nullIfEmpty("text/plain")
	require.NotNil(t, got)
	assert.Equal(t, "text/plain", *got)
}

func TestReverseMessages(t *testing.T) {
	msgs := []domain.Message{{ID: 3}, {ID: 2}, {ID: 1}}
	reverseMessages(msgs)
	assert.Equal(t, int64(1), msgs[0].ID)
	assert.Equal(t, int64(2), msgs[1].ID)
	assert.Equal(t, int64(3), msgs[2].ID)

	var empty []domain.Message
	reverseMessages(empty)
	assert.Empty(t, empty)
}

func TestSourcesOrEmpty(t *testing.T) {
	assert.Equal(t, []domain.Source{}, sourcesOrEmpty(nil))

	sources := []domain.Source{{SourceID: "S1"}}
	assert.Equal(t, sources, sourcesOrEmpty(sources))
}

func TestMetadataOrEmpty(t *testing.T) {
	assert.Equal(t, map[string]any{}, metadataOrEmpty(nil))

	metadata := map[string]any{"route": "rag"}
	assert.Equal(t, metadata, metadataOrEmpty(metadata))
}

// Every embedded up migration must carry a parseable leading version so
// the migration loop does not silently skip it.
func TestMigrationFilesHaveVersions(t *testing.T) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	require.NoError(t, err)

	var upFiles int
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		upFiles++

		var version int
		_, err := fmt.Sscanf(name, "%d_", &version)
		require.NoError(t, err, "migration %s has no leading version", name)
		assert.Greater(t, version, 0, "migration %s", name)
	}
	require.Greater(t, upFiles, 0, "no up migrations embedded")
}
