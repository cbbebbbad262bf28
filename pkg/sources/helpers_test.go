package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, root, name, description string) string {
	t.Helper()

	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "references"), 0o755))
	content := "---\nname: " + name + "\ndescription: " + description + "\nversion: 1.0.0\n---\n\nSee [guide](references/guide.md).\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "references", "guide.md"), []byte("# Guide\n"), 0o644))
	return dir
}
