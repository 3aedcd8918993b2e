package preprocess

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/scibuild/fab/internal/runtime"
	"github.com/scibuild/fab/internal/store"
)

// PragmaStep runs before C preprocessing. For every #include directive in
// a C source it wraps the directive in a `# pragma FAB SysIncludeStart` /
// `UsrIncludeStart`/`...End` pair (system for angle-bracket includes,
// user for quoted ones) and writes the result to a .prag file, which then
// replaces C_BUILD_FILES so CStep preprocesses the marked-up version
// instead of the original. cpp passes unrecognised #pragma lines through
// untouched, so the markers survive into the preprocessed output and tell
// the source analyser which expanded regions came from a system header.
type PragmaStep struct {
	OutDir string
}

func (s PragmaStep) Name() string { return "c-pragma-inject" }

func (s PragmaStep) Run(ctx context.Context, scope *runtime.Scope) error {
	files, err := store.Get[[]string](scope.Store, store.CBuildFiles)
	if err != nil {
		return err
	}

	rewritten, err := runtime.MapMP(ctx, files, func(ctx context.Context, path string) (string, error) {
		if filepath.Ext(path) != ".c" {
			return path, nil
		}
		return s.inject(path)
	})
	if err != nil {
		return err
	}

	scope.Store.Set(store.CBuildFiles, rewritten)
	scope.Store.Set(store.PragmadC, rewritten)
	return nil
}

var includeRe = regexp.MustCompile(`^\s*#\s*include\s*([<"])`)

func (s PragmaStep) inject(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("preprocess: pragma-inject %s: %w", path, err)
	}
	defer in.Close()

	if err := os.MkdirAll(s.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("preprocess: pragma-inject %s: %w", path, err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	destPath := filepath.Join(s.OutDir, stem+".prag")

	tmp, err := os.CreateTemp(s.OutDir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("preprocess: pragma-inject %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	writer := bufio.NewWriter(tmp)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if m := includeRe.FindStringSubmatch(line); m != nil {
			start, end := "UsrIncludeStart", "UsrIncludeEnd"
			if m[1] == "<" {
				start, end = "SysIncludeStart", "SysIncludeEnd"
			}
			fmt.Fprintf(writer, "# pragma FAB %s\n%s\n# pragma FAB %s\n", start, line, end)
			continue
		}
		fmt.Fprintln(writer, line)
	}
	if err := scanner.Err(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("preprocess: pragma-inject %s: %w", path, err)
	}
	if err := writer.Flush(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("preprocess: pragma-inject %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("preprocess: pragma-inject %s: %w", path, err)
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		return "", fmt.Errorf("preprocess: pragma-inject %s: %w", path, err)
	}
	return destPath, nil
}

// IncludeKind classifies which kind of #include region a line of
// preprocessed C source falls under.
type IncludeKind int

const (
	NoInclude IncludeKind = iota
	SysInclude
	UsrInclude
)

// Line is one line of a preprocessed, pragma-annotated C file, tagged
// with the include region it falls inside (if any).
type Line struct {
	Text string
	Kind IncludeKind
}

var fabPragmaRe = regexp.MustCompile(`^\s*#\s*pragma\s+FAB\s+(Sys|Usr)Include(Start|End)\s*$`)

// ReadAnnotated scans a preprocessed C file for the FAB Sys/UsrInclude
// pragma markers PragmaStep inserted and returns every non-pragma line
// tagged with its enclosing region, nested regions resolving to the
// innermost open one. The source analyser uses this to skip symbol
// definitions/references that originated in a system header.
func ReadAnnotated(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("preprocess: read %s: %w", path, err)
	}
	defer f.Close()

	var lines []Line
	var stack []IncludeKind
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		raw := scanner.Text()
		if m := fabPragmaRe.FindStringSubmatch(raw); m != nil {
			kind := SysInclude
			if m[1] == "Usr" {
				kind = UsrInclude
			}
			if m[2] == "Start" {
				stack = append(stack, kind)
			} else if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		}
		kind := NoInclude
		if len(stack) > 0 {
			kind = stack[len(stack)-1]
		}
		lines = append(lines, Line{Text: raw, Kind: kind})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("preprocess: read %s: %w", path, err)
	}
	return lines, nil
}
