package export_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calliope-press/sectionmatch/pkg/export"
)

func TestReadSelections(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "books.json"), []byte(`["c9"]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arts.json"), []byte(`["c1", "c3"]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	selections, err := export.ReadSelections(dir, nil)
	require.NoError(t, err)

	require.Len(t, selections, 2)
	assert.Equal(t, "ARTS", selections[0].Section)
	assert.Equal(t, []string{"c1", "c3"}, selections[0].IDs)
	assert.Equal(t, "BOOKS", selections[1].Section)
	assert.Equal(t, []string{"c9"}, selections[1].IDs)
}

func TestReadSelectionsSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "arts.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "books.json"), []byte(`["c2"]`), 0o644))

	var warned []string
	selections, err := export.ReadSelections(dir, func(path string, err error) {
		warned = append(warned, path)
	})
	require.NoError(t, err)

	require.Len(t, selections, 1)
	assert.Equal(t, "BOOKS", selections[0].Section)
	assert.Equal(t, []string{bad}, warned)
}

func TestReadSelectionsMissingDir(t *testing.T) {
	selections, err := export.ReadSelections(filepath.Join(t.TempDir(), "absent"), nil)
	require.NoError(t, err)
	assert.Empty(t, selections)
}
