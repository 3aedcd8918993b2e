package preprocess

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scibuild/fab/internal/runtime"
	"github.com/scibuild/fab/internal/store"
)

func TestPragmaStep_WrapsIncludesWithFabPragmas(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	src := filepath.Join(srcDir, "util.c")
	content := "#include <stdio.h>\n#include \"util.h\"\nint local_fn(void) { return 0; }\n"
	require.NoError(t, os.WriteFile(src, []byte(content), 0o644))

	scope := runtime.NewScope()
	scope.Store.Set(store.CBuildFiles, []string{src})

	step := PragmaStep{OutDir: outDir}
	require.NoError(t, step.Run(context.Background(), scope))

	rewritten, err := store.Get[[]string](scope.Store, store.CBuildFiles)
	require.NoError(t, err)
	require.Len(t, rewritten, 1)
	assert.Equal(t, ".prag", filepath.Ext(rewritten[0]))

	raw, err := os.ReadFile(rewritten[0])
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "# pragma FAB SysIncludeStart")
	assert.Contains(t, body, "#include <stdio.h>")
	assert.Contains(t, body, "# pragma FAB SysIncludeEnd")
	assert.Contains(t, body, "# pragma FAB UsrIncludeStart")
	assert.Contains(t, body, "#include \"util.h\"")

	pragmad, err := store.Get[[]string](scope.Store, store.PragmadC)
	require.NoError(t, err)
	assert.Equal(t, rewritten, pragmad)
}

func TestReadAnnotated_ClassifiesLinesByEnclosingIncludeRegion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "util.prag")
	content := `# pragma FAB SysIncludeStart
extern int printf(const char *, ...);
# pragma FAB SysIncludeEnd
int local_fn(void) { return 0; }
# pragma FAB UsrIncludeStart
int from_header(void);
# pragma FAB UsrIncludeEnd
int another(void) { return local_fn(); }
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	lines, err := ReadAnnotated(path)
	require.NoError(t, err)
	require.Len(t, lines, 4)
	assert.Equal(t, SysInclude, lines[0].Kind)
	assert.Equal(t, NoInclude, lines[1].Kind)
	assert.Equal(t, UsrInclude, lines[2].Kind)
	assert.Equal(t, NoInclude, lines[3].Kind)
}
