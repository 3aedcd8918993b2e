package compile

import gitignore "github.com/sabhiram/go-gitignore"

// compileGlob compiles a path_flags glob the same way the source
// discoverer compiles ignore patterns (internal/discover), reusing
// go-gitignore's pattern engine for its "**" support rather than adding a
// second glob dependency: `*/um/**` needs to match any depth under a um/
// directory, which filepath.Match cannot express.
func compileGlob(pattern string) (*gitignore.GitIgnore, error) {
	return gitignore.CompileIgnoreLines(pattern), nil
}
