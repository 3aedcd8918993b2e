package compile

import "strings"

// moduleFlag returns the module-output-folder flag the given compiler
// command understands, per spec.md §4.8's managed-flags paragraph:
// gfortran takes -J, ifort takes -module. Detected from the configured
// command name rather than a config field, since the engine already
// knows the tool identity's binary name and nothing else distinguishes
// the two in this configuration surface.
func moduleFlag(command string) string {
	if strings.Contains(command, "ifort") {
		return "-module"
	}
	return "-J"
}

// syntaxOnlyFlag is the flag that makes pass A of a two-stage Fortran
// compile produce only a .mod file and no object. gfortran and ifort both
// accept -fsyntax-only for this purpose (ifort through its
// gcc-compatibility flag set).
const syntaxOnlyFlag = "-fsyntax-only"
