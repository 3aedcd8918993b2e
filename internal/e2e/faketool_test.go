// Package e2e wires the full discover-through-link pipeline together
// against a fake toolrun.Tool, so spec.md's cross-step invariants can be
// asserted without a real Fortran/C toolchain on the test machine.
package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/scibuild/fab/internal/fingerprint"
	"github.com/scibuild/fab/internal/toolrun"
)

// Tool identities, distinguished by command string so a single fakeTool
// can tell which real tool it is standing in for without guessing from
// argument shape alone.
const (
	FppCommand = "fake-fpp"
	FcCommand  = "fake-fc"
	CcCommand  = "fake-cc"
	ArCommand  = "fake-ar"
	LdCommand  = "fake-ld"
)

// toolCall records one invocation, for tests that assert on what ran (or
// didn't).
type toolCall struct {
	Command string
	Args    []string
}

// fakeTool stands in for a real compiler toolchain. It implements the
// parts of preprocessing, compilation, archiving and linking that matter
// to the engine's own orchestration logic (dependency waves, caching,
// fingerprinting) without running any real Fortran/C tool: a trivial
// line-based conditional-compilation pass for preprocessing, and
// deterministic, content-derived placeholder bytes everywhere else.
type fakeTool struct {
	mu    sync.Mutex
	calls []toolCall
}

func newFakeTool() *fakeTool {
	return &fakeTool{}
}

func (t *fakeTool) record(command string, args []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, toolCall{Command: command, Args: append([]string(nil), args...)})
}

// CallsFor returns every recorded invocation of the given command, in
// call order.
func (t *fakeTool) CallsFor(command string) []toolCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []toolCall
	for _, c := range t.calls {
		if c.Command == command {
			out = append(out, c)
		}
	}
	return out
}

// CompiledPaths returns the source path argument of every fake-fc/fake-cc
// invocation that produced an object file (i.e. every real compile, not a
// cache hit recovered without running the tool). fake-cc also handles C
// preprocessing, so those calls are told apart by their -o extension.
func (t *fakeTool) CompiledPaths() []string {
	return t.basenamesWhere(func(c toolCall) bool {
		if c.Command == FcCommand {
			return true
		}
		return c.Command == CcCommand && strings.HasSuffix(flagValue(c.Args, "-o"), ".o")
	})
}

// PreprocessedPaths returns the source path argument of every fake-fpp or
// preprocessing fake-cc invocation (i.e. every real preprocess, not a
// cache hit).
func (t *fakeTool) PreprocessedPaths() []string {
	return t.basenamesWhere(func(c toolCall) bool {
		if c.Command == FppCommand {
			return true
		}
		return c.Command == CcCommand && strings.HasSuffix(flagValue(c.Args, "-o"), ".c")
	})
}

func (t *fakeTool) basenamesWhere(match func(toolCall) bool) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, c := range t.calls {
		if !match(c) {
			continue
		}
		if src := lastSourceArg(c.Args); src != "" {
			out = append(out, filepath.Base(src))
		}
	}
	sort.Strings(out)
	return out
}

func (t *fakeTool) Run(ctx context.Context, command string, args []string, dir string) (toolrun.Result, error) {
	t.record(command, args)

	switch command {
	case FppCommand:
		return t.runPreprocess(args)
	case CcCommand:
		if out := flagValue(args, "-o"); strings.HasSuffix(out, ".c") {
			return t.runPreprocess(args)
		}
		return t.runCompile(args, dir)
	case FcCommand:
		return t.runCompile(args, dir)
	case ArCommand:
		return t.runArchive(args)
	case LdCommand:
		return t.runLink(args)
	default:
		return toolrun.Result{}, fmt.Errorf("faketool: unrecognised command %q", command)
	}
}

// runPreprocess resolves #ifdef/#ifndef/#if defined(...)/#else/#endif
// blocks against the -D flags present in args and copies every surviving
// line through unchanged, mimicking just enough of cpp's behaviour for
// conditional-include scenarios to exercise real fingerprint divergence.
func (t *fakeTool) runPreprocess(args []string) (toolrun.Result, error) {
	src := flagValue(args, "")
	out := flagValue(args, "-o")
	if src == "" || out == "" {
		return toolrun.Result{}, fmt.Errorf("faketool: preprocess invocation missing source/-o: %v", args)
	}

	defined := definedMacros(args)
	data, err := os.ReadFile(src)
	if err != nil {
		return toolrun.Result{}, err
	}

	lines, err := evalConditionals(strings.Split(string(data), "\n"), defined)
	if err != nil {
		return toolrun.Result{}, err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return toolrun.Result{}, err
	}
	if err := os.WriteFile(out, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return toolrun.Result{}, err
	}
	return toolrun.Result{Command: FppCommand, ExitCode: 0}, nil
}

var (
	ifdefRe   = regexp.MustCompile(`^\s*#\s*ifdef\s+(\w+)`)
	ifndefRe  = regexp.MustCompile(`^\s*#\s*ifndef\s+(\w+)`)
	ifDefdRe  = regexp.MustCompile(`^\s*#\s*if\s+defined\s*\(\s*(\w+)\s*\)`)
	elseRe    = regexp.MustCompile(`^\s*#\s*else\b`)
	endifRe   = regexp.MustCompile(`^\s*#\s*endif\b`)
)

// evalConditionals strips #ifdef/#ifndef/#if defined()/#else/#endif
// directive lines and keeps only the lines whose branch is taken, given
// the macro set defined. Nested blocks are tracked on a stack; an #else
// simply flips the top frame's own taken/not-taken state without
// affecting an already-false parent frame.
func evalConditionals(lines []string, defined map[string]bool) ([]string, error) {
	// A line is emitted only when every frame currently on the stack has
	// taken==true; #else flips just the top frame's own taken bit.
	type frame struct {
		taken bool
	}
	var stack []frame
	visible := func() bool {
		for _, f := range stack {
			if !f.taken {
				return false
			}
		}
		return true
	}

	var out []string
	for _, line := range lines {
		switch {
		case ifdefRe.MatchString(line):
			m := ifdefRe.FindStringSubmatch(line)
			stack = append(stack, frame{taken: defined[m[1]]})
			continue
		case ifndefRe.MatchString(line):
			m := ifndefRe.FindStringSubmatch(line)
			stack = append(stack, frame{taken: !defined[m[1]]})
			continue
		case ifDefdRe.MatchString(line):
			m := ifDefdRe.FindStringSubmatch(line)
			stack = append(stack, frame{taken: defined[m[1]]})
			continue
		case elseRe.MatchString(line):
			if len(stack) == 0 {
				return nil, fmt.Errorf("faketool: #else without matching #if")
			}
			stack[len(stack)-1].taken = !stack[len(stack)-1].taken
			continue
		case endifRe.MatchString(line):
			if len(stack) == 0 {
				return nil, fmt.Errorf("faketool: #endif without matching #if")
			}
			stack = stack[:len(stack)-1]
			continue
		}
		if visible() {
			out = append(out, line)
		}
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("faketool: unterminated conditional block")
	}
	return out, nil
}

func definedMacros(args []string) map[string]bool {
	defined := map[string]bool{}
	for _, a := range args {
		if strings.HasPrefix(a, "-D") {
			name := strings.TrimPrefix(a, "-D")
			if i := strings.IndexByte(name, '='); i >= 0 {
				name = name[:i]
			}
			defined[name] = true
		}
	}
	return defined
}

// runCompile fabricates an object file (when the invocation carries an
// -o) and a .mod file for every MODULE this source defines (Fortran
// only; the regexp simply never matches a C file). Output bytes are a
// pure function of the source content and the base names of the
// invocation arguments, so two invocations that receive the same content
// and arguments - single-stage and two-stage pass B being the canonical
// example - produce byte-identical results, even from two different
// workspace directories.
func (t *fakeTool) runCompile(args []string, dir string) (toolrun.Result, error) {
	src := lastSourceArg(args)
	if src == "" {
		return toolrun.Result{}, fmt.Errorf("faketool: compile invocation has no source path: %v", args)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return toolrun.Result{}, err
	}

	parts := []string{string(data)}
	for _, a := range args {
		parts = append(parts, filepath.Base(a))
	}
	digest := fingerprint.Strings(parts)

	if out := flagValue(args, "-o"); out != "" {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return toolrun.Result{}, err
		}
		content := fmt.Sprintf("OBJ %s %x\n", filepath.Base(src), digest)
		if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
			return toolrun.Result{}, err
		}
	}

	for _, name := range moduleDefsIn(string(data)) {
		modPath := filepath.Join(dir, name+".mod")
		content := fmt.Sprintf("MOD %s %x\n", name, digest)
		if err := os.WriteFile(modPath, []byte(content), 0o644); err != nil {
			return toolrun.Result{}, err
		}
	}

	return toolrun.Result{Command: FcCommand, ExitCode: 0}, nil
}

var (
	moduleLineRe     = regexp.MustCompile(`(?i)^\s*MODULE\s+([A-Za-z_]\w*)\s*$`)
	moduleProcLineRe = regexp.MustCompile(`(?i)^\s*MODULE\s+PROCEDURE\b`)
)

func moduleDefsIn(source string) []string {
	var names []string
	for _, line := range strings.Split(source, "\n") {
		if moduleProcLineRe.MatchString(line) {
			continue
		}
		if m := moduleLineRe.FindStringSubmatch(line); m != nil {
			names = append(names, m[1])
		}
	}
	return names
}

// runArchive writes a dummy static archive whose content is the
// concatenation of its member object files, in the order given.
func (t *fakeTool) runArchive(args []string) (toolrun.Result, error) {
	idx := indexOf(args, "cr")
	if idx < 0 || idx+1 >= len(args) {
		return toolrun.Result{}, fmt.Errorf("faketool: archive invocation missing 'cr' <archive>: %v", args)
	}
	archivePath := args[idx+1]
	members := args[idx+2:]

	var body strings.Builder
	body.WriteString("AR\n")
	for _, m := range members {
		data, err := os.ReadFile(m)
		if err != nil {
			return toolrun.Result{}, err
		}
		body.Write(data)
	}
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return toolrun.Result{}, err
	}
	if err := os.WriteFile(archivePath, []byte(body.String()), 0o644); err != nil {
		return toolrun.Result{}, err
	}
	return toolrun.Result{Command: ArCommand, ExitCode: 0}, nil
}

// runLink writes a dummy executable whose content is the concatenation of
// every non-flag input (objects or a single archive), in the order given.
func (t *fakeTool) runLink(args []string) (toolrun.Result, error) {
	out := flagValue(args, "-o")
	if out == "" {
		return toolrun.Result{}, fmt.Errorf("faketool: link invocation missing -o: %v", args)
	}

	var body strings.Builder
	body.WriteString("EXE\n")
	for i := 0; i < len(args); i++ {
		if args[i] == "-o" {
			i++
			continue
		}
		if !strings.HasSuffix(args[i], ".o") && !strings.HasSuffix(args[i], ".a") {
			continue
		}
		data, err := os.ReadFile(args[i])
		if err != nil {
			return toolrun.Result{}, err
		}
		body.Write(data)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return toolrun.Result{}, err
	}
	if err := os.WriteFile(out, []byte(body.String()), 0o644); err != nil {
		return toolrun.Result{}, err
	}
	return toolrun.Result{Command: LdCommand, ExitCode: 0}, nil
}

// flagValue returns the value following flag in args. An empty flag means
// "the first positional argument that doesn't itself look like a flag and
// isn't the value of a preceding -o" - used to find the preprocessor's
// lone source path.
// valueFlags lists every flag this fake tool's callers pass as two
// separate argv entries (flag, then value), so scanning for the lone
// positional source path doesn't mistake a flag's value for it.
var valueFlags = map[string]bool{"-o": true, "-J": true, "-module": true}

func flagValue(args []string, flag string) string {
	if flag != "" {
		for i, a := range args {
			if a == flag && i+1 < len(args) {
				return args[i+1]
			}
		}
		return ""
	}
	for i := 0; i < len(args); i++ {
		if valueFlags[args[i]] {
			i++
			continue
		}
		if strings.HasPrefix(args[i], "-") {
			continue
		}
		return args[i]
	}
	return ""
}

// lastSourceArg returns the last positional (non-flag, non-flag-value)
// argument, which is always the source path for both preprocess.File's
// and compileBatch's argument construction.
func lastSourceArg(args []string) string {
	var last string
	for i := 0; i < len(args); i++ {
		if valueFlags[args[i]] {
			i++
			continue
		}
		if strings.HasPrefix(args[i], "-") {
			continue
		}
		last = args[i]
	}
	return last
}

func indexOf(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return -1
}
