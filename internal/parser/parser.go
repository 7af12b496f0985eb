package parser

import (
	"errors"
	"fmt"
	"path/filepath"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrSyntax marks a file whose source could not be parsed. The caller
// degrades such a file to zero outgoing edges instead of aborting the
// whole scan.
var ErrSyntax = errors.New("syntax error")

type Parser struct {
	loader     *GrammarLoader
	extractors map[string]Extractor // language -> extractor
}

type Extractor interface {
	Extract(node *sitter.Node, source []byte, filePath string) (*File, error)
}

func NewParser(loader *GrammarLoader) *Parser {
	return &Parser{
		loader:     loader,
		extractors: make(map[string]Extractor),
	}
}

func (p *Parser) RegisterExtractor(lang string, e Extractor) {
	p.extractors[lang] = e
}

func (p *Parser) IsSupportedPath(path string) bool {
	return p.detectLanguage(path) != ""
}

func (p *Parser) ParseFile(path string, content []byte) (*File, error) {
	lang := p.detectLanguage(path)
	if lang == "" {
		return nil, errors.New("unsupported language")
	}

	grammar := p.loader.languages[lang]
	if grammar == nil {
		return nil, fmt.Errorf("grammar not loaded: %s", lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("%w: %s", ErrSyntax, path)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: %s", ErrSyntax, path)
	}

	extractor := p.extractors[lang]
	if extractor == nil {
		return nil, fmt.Errorf("no extractor for: %s", lang)
	}

	return extractor.Extract(root, content, path)
}

func (p *Parser) detectLanguage(path string) string {
	switch filepath.Ext(path) {
	case ".py":
		return "python"
	default:
		return ""
	}
}
