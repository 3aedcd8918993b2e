package prebuild

import (
	"fmt"
	"regexp"
)

// nameGrammar is the normative prebuild filename grammar from spec.md §6:
// STEM '.' HEX-HASH '.' SUFFIX, where SUFFIX is an, o or mod, or the f90
// and c suffixes the preprocessor driver stores its outputs under. The
// stem itself may contain dots (a source stem like "greeting.test" is
// legal), so the hash and suffix are anchored from the right rather than
// the stem from the left.
var nameGrammar = regexp.MustCompile(`^(.+)\.([0-9a-f]+)\.(an|o|mod|f90|c)$`)

// BadEntryName reports a file in the prebuild directory that does not match
// the normative grammar. Any such file is never produced by this engine;
// seeing one indicates a corrupted or foreign cache directory.
type BadEntryName struct {
	FileName string
}

func (e *BadEntryName) Error() string {
	return fmt.Sprintf("prebuild: %q does not match STEM.HEX.SUFFIX", e.FileName)
}

// Key identifies one prebuild entry: the logical artefact (stem+suffix) and
// the specific variant of it (hash) produced by a given set of inputs.
type Key struct {
	Stem   string
	Hash   uint64
	Suffix string
}

// FileName renders the canonical on-disk name for k.
func (k Key) FileName() string {
	return fmt.Sprintf("%s.%x.%s", k.Stem, k.Hash, k.Suffix)
}

// ParseFileName parses a prebuild entry's base name back into a Key.
// Entries are immutable and filenames are the sole index (spec.md §3), so
// this is the only way anything in the engine discovers what a prebuild
// file is without reading its contents.
func ParseFileName(fileName string) (Key, error) {
	m := nameGrammar.FindStringSubmatch(fileName)
	if m == nil {
		return Key{}, &BadEntryName{FileName: fileName}
	}
	var hash uint64
	if _, err := fmt.Sscanf(m[2], "%x", &hash); err != nil {
		return Key{}, &BadEntryName{FileName: fileName}
	}
	return Key{Stem: m[1], Hash: hash, Suffix: m[3]}, nil
}
