package analysis

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/scibuild/fab/internal/prebuild"
)

func TestRecord_RoundTripIsByteIdentical(t *testing.T) {
	cacheDir := t.TempDir()
	cache, err := prebuild.Open(cacheDir)
	require.NoError(t, err)

	original := &AnalysedFortran{base: base{
		PathField:        "greeting_mod.f90",
		ContentHashField: 123,
		ModuleDefsField:  []string{"greeting_mod"},
		ModuleDepsField:  []string{"other_mod"},
		SymbolDepsField:  []string{"helper"},
	}}
	original.sort()

	key := analysisKey("greeting_mod", original.ContentHash())
	path, err := storeRecord(cache, key, cacheDir, original)
	require.NoError(t, err)

	firstWrite, err := os.ReadFile(path)
	require.NoError(t, err)

	var reloaded AnalysedFortran
	require.NoError(t, loadRecord(path, &reloaded))
	reloaded.sort()

	secondMarshal, err := yaml.Marshal(&reloaded)
	require.NoError(t, err)

	assert.Equal(t, string(firstWrite), string(secondMarshal), "deserialise-then-serialise must be byte-identical")

	secondPath, err := storeRecord(cache, key, cacheDir, original)
	require.NoError(t, err)
	assert.Equal(t, path, secondPath, "re-storing an identical key is a no-op, not a second write")
}
