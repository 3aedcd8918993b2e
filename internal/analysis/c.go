package analysis

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"github.com/scibuild/fab/internal/preprocess"
)

// analyseC parses a preprocessed, pragma-annotated C file with
// tree-sitter's C grammar. It walks function_definition nodes for
// symbol_defs (skipping static ones, which are file-local) and
// call_expression nodes for symbol_deps, skipping anything that lands
// inside a system-include region per the .prag stream spec.md §4.6
// describes.
func analyseC(path string, contentHash uint64) (*AnalysedC, error) {
	lines, err := preprocess.ReadAnnotated(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var text strings.Builder
	for _, l := range lines {
		text.WriteString(l.Text)
		text.WriteByte('\n')
	}
	source := []byte(text.String())

	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer tree.Close()

	result := &AnalysedC{base: base{PathField: path, ContentHashField: contentHash}}
	defined := map[string]bool{}

	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if node.Type() != "translation_unit" && inSystemRegion(lines, node) {
			return
		}

		switch node.Type() {
		case "function_definition":
			if name := functionDefinitionName(node, source); name != "" {
				defined[name] = true
				if !isStatic(node, source) {
					result.SymbolDefsField = append(result.SymbolDefsField, name)
				}
			}
		case "call_expression":
			if fn := node.ChildByFieldName("function"); fn != nil && fn.Type() == "identifier" {
				result.SymbolDepsField = append(result.SymbolDepsField, nodeText(fn, source))
			}
		}

		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(tree.RootNode())

	// symbol_deps only covers identifiers not defined in this same file;
	// cross-file resolution happens later at graph assembly, but a call
	// to a function this file itself defines is never an edge.
	deps := result.SymbolDepsField[:0:0]
	for _, d := range result.SymbolDepsField {
		if !defined[d] {
			deps = append(deps, d)
		}
	}
	result.SymbolDepsField = deps

	result.sort()
	dedupe(&result.SymbolDefsField)
	dedupe(&result.SymbolDepsField)
	return result, nil
}

func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

func inSystemRegion(lines []preprocess.Line, node *sitter.Node) bool {
	row := int(node.StartPoint().Row)
	return row < len(lines) && lines[row].Kind == preprocess.SysInclude
}

func isStatic(fnDef *sitter.Node, source []byte) bool {
	for i := 0; i < int(fnDef.ChildCount()); i++ {
		child := fnDef.Child(i)
		if child.Type() == "storage_class_specifier" && nodeText(child, source) == "static" {
			return true
		}
	}
	return false
}

// functionDefinitionName descends through function_definition's
// declarator field, unwrapping pointer_declarator layers (for functions
// returning a pointer), to the function_declarator's own declarator
// field, which holds the identifier.
func functionDefinitionName(fnDef *sitter.Node, source []byte) string {
	declarator := fnDef.ChildByFieldName("declarator")
	for declarator != nil && declarator.Type() == "pointer_declarator" {
		declarator = declarator.ChildByFieldName("declarator")
	}
	if declarator == nil || declarator.Type() != "function_declarator" {
		return ""
	}
	name := declarator.ChildByFieldName("declarator")
	if name == nil || name.Type() != "identifier" {
		return ""
	}
	return nodeText(name, source)
}

func dedupe(s *[]string) {
	if len(*s) < 2 {
		return
	}
	out := (*s)[:1]
	for _, v := range (*s)[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	*s = out
}
