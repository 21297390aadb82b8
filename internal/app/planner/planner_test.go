package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadOutState_MissingDir(t *testing.T) {
	st, err := ReadOutState(filepath.Join(t.TempDir(), "output_pages"))
	require.NoError(t, err)
	assert.Empty(t, st.Existing)
}

func TestPlanPage_SkipExistingUnlessForce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Rolex_Submariner.html"), []byte("x"), 0o644))

	st, err := ReadOutState(dir)
	require.NoError(t, err)

	p := PlanPage("Rolex_Submariner.html", st, false)
	assert.True(t, p.Exists)
	assert.True(t, p.Skip)
	assert.Equal(t, filepath.Join(dir, "Rolex_Submariner.html"), p.Path)

	p = PlanPage("Rolex_Submariner.html", st, true)
	assert.True(t, p.Exists)
	assert.False(t, p.Skip, "--force 时重新生成")

	p = PlanPage("Cartier_Crash.html", st, false)
	assert.False(t, p.Exists)
	assert.False(t, p.Skip)
}
