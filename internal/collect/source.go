package collect

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"go.uber.org/zap"

	"legacymod/internal/graph"
	"legacymod/internal/logging"
)

// SourceCollector extracts JavaClassNodes from .java source text using a
// tree-sitter grammar: one parser per goroutine, a parse context per
// file, and a tree walk that turns nodes into type-declaration facts.
type SourceCollector struct {
	parser *sitter.Parser
	cache  *PackageNodeCache
	log    *zap.Logger
}

func NewSourceCollector(cache *PackageNodeCache) *SourceCollector {
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())
	return &SourceCollector{parser: p, cache: cache, log: logging.Named("collect.source")}
}

// Close releases the tree-sitter parser.
func (c *SourceCollector) Close() { c.parser.Close() }

// Collect parses a .java source file and returns one JavaClassNode per
// top-level or nested type declaration, plus their extends/implements
// edges.
func (c *SourceCollector) Collect(sourceFilePath string, content []byte) ([]*graph.Node, []*graph.Edge, error) {
	tree, err := c.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		c.log.Warn("source parse failed", zap.String("file", sourceFilePath), zap.Error(err))
		return nil, nil, fmt.Errorf("collect: parsing %s: %w", sourceFilePath, err)
	}
	defer tree.Close()

	pkg := extractPackageName(tree.RootNode(), content)

	var nodes []*graph.Node
	var edges []*graph.Edge

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		classType, ok := nodeKindToClassType(n.Type())
		if ok {
			name := childByFieldText(n, "name", content)
			if name != "" {
				fqn := pkg + "." + name
				if pkg == "" {
					fqn = name
				}
				node := graph.NewJavaClass(fqn, name, graph.NormalizePackageName(pkg), sourceFilePath, classType, graph.SourceTypeSource)
				nodes = append(nodes, node)

				if super := childByFieldText(n, "superclass", content); super != "" {
					edges = append(edges, graph.NewEdge(fqn, strings.TrimPrefix(super, "extends "), graph.EdgeExtends))
				}
				if impl := childByFieldText(n, "interfaces", content); impl != "" {
					for _, iface := range splitTypeList(impl) {
						edges = append(edges, graph.NewEdge(fqn, iface, graph.EdgeImplements))
					}
				}
				c.cache.GetOrCreateAndAttach(pkg, fqn, classType)
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())

	return nodes, edges, nil
}

func extractPackageName(root *sitter.Node, content []byte) string {
	for i := 0; i < int(root.ChildCount()); i++ {
		n := root.Child(i)
		if n.Type() == "package_declaration" {
			text := n.Content(content)
			text = strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(text, "package")), ";")
			return strings.TrimSpace(text)
		}
	}
	return ""
}

func nodeKindToClassType(kind string) (graph.ClassType, bool) {
	switch kind {
	case "class_declaration":
		return graph.ClassTypeClass, true
	case "interface_declaration":
		return graph.ClassTypeInterface, true
	case "enum_declaration":
		return graph.ClassTypeEnum, true
	case "annotation_type_declaration":
		return graph.ClassTypeAnnotation, true
	case "record_declaration":
		return graph.ClassTypeRecord, true
	default:
		return "", false
	}
}

func childByFieldText(n *sitter.Node, field string, content []byte) string {
	c := n.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return c.Content(content)
}

func splitTypeList(s string) []string {
	s = strings.TrimPrefix(s, "implements")
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
