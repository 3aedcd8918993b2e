package e2e

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeSources materialises files (relative path -> content) under a
// fresh temp directory and returns its root.
func writeSources(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// sharedModuleSources is the fixture spec.md §8's S1 describes: two
// programs, each pulling in its own leaf module, both of which in turn
// depend on a shared constants module.
func sharedModuleSources() map[string]string {
	return map[string]string{
		"constants_mod.F90": `MODULE constants_mod
IMPLICIT NONE
INTEGER, PARAMETER :: wp = 8
END MODULE constants_mod
`,
		"greeting_mod.F90": `MODULE greeting_mod
USE constants_mod
IMPLICIT NONE
CONTAINS
SUBROUTINE greet()
END SUBROUTINE greet
END MODULE greeting_mod
`,
		"bye_mod.F90": `MODULE bye_mod
USE constants_mod
IMPLICIT NONE
CONTAINS
SUBROUTINE bye()
END SUBROUTINE bye
END MODULE bye_mod
`,
		"first.F90": `PROGRAM first
USE greeting_mod
CALL greet()
END PROGRAM first
`,
		"second.F90": `PROGRAM second
USE bye_mod
CALL bye()
END PROGRAM second
`,
	}
}
