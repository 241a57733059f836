package sync

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreList_DefaultAndCustomRules(t *testing.T) {
	afs := afero.NewMemMapFs()
	ignore := NewIgnoreList(afs, "/proj")
	ignore.Load()

	assert.True(t, ignore.ShouldIgnoreDir(".git"))
	assert.True(t, ignore.ShouldIgnoreDir("sub/.vscode"))
	assert.True(t, ignore.ShouldIgnore("astra.json"))
	assert.True(t, ignore.ShouldIgnore("notes/todo.txt.swp"))
	assert.True(t, ignore.ShouldIgnore("cache/blob.tmp"))
	assert.False(t, ignore.ShouldIgnore("src/main.go"))
	assert.False(t, ignore.ShouldIgnore("node_modules/x.js"))

	custom := []byte(`
# comment
node_modules/
*.log
`)
	require.NoError(t, afero.WriteFile(afs, "/proj/.astraignore", custom, 0o644))
	ignore.Load()

	assert.True(t, ignore.ShouldIgnoreDir("node_modules"))
	assert.True(t, ignore.ShouldIgnore("logs/app.log"))
	assert.False(t, ignore.ShouldIgnore("src/main.go"))
}

func TestIgnoreList_NilIgnoresNothing(t *testing.T) {
	var ignore *IgnoreList
	assert.False(t, ignore.ShouldIgnore("anything"))
	assert.False(t, ignore.ShouldIgnoreDir(".git"))
}
