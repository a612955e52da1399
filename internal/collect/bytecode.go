package collect

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"legacymod/internal/graph"
	"legacymod/internal/javaclass"
	"legacymod/internal/logging"
)

// BytecodeCollector turns a single .class file's bytes into a
// JavaClassNode plus extends/implements edges, attaching the class to its
// package via the shared cache.
type BytecodeCollector struct {
	cache *PackageNodeCache
	log   *zap.Logger
}

func NewBytecodeCollector(cache *PackageNodeCache) *BytecodeCollector {
	return &BytecodeCollector{cache: cache, log: logging.Named("collect.bytecode")}
}

func internalNameToFQN(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

func packageOf(fqn string) string {
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return fqn[:i]
	}
	return ""
}

func simpleNameOf(fqn string) string {
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return fqn[i+1:]
	}
	return fqn
}

func classifyKind(cf *javaclass.ClassFile) graph.ClassType {
	switch {
	case cf.IsAnnotation():
		return graph.ClassTypeAnnotation
	case cf.IsEnum():
		return graph.ClassTypeEnum
	case cf.IsInterface():
		return graph.ClassTypeInterface
	case cf.IsRecord:
		return graph.ClassTypeRecord
	default:
		return graph.ClassTypeClass
	}
}

// Collect parses classBytes and returns the JavaClassNode it describes
// plus any extends/implements edges. sourceFilePath identifies the
// ProjectFile this class came from for the skip contract.
func (c *BytecodeCollector) Collect(sourceFilePath string, classBytes []byte) (*graph.Node, []*graph.Edge, error) {
	cf, err := javaclass.Parse(classBytes)
	if err != nil {
		c.log.Warn("bytecode parse failed", zap.String("file", sourceFilePath), zap.Error(err))
		return nil, nil, fmt.Errorf("collect: parsing %s: %w", sourceFilePath, err)
	}

	fqn := internalNameToFQN(cf.ThisClass)
	pkg := packageOf(fqn)
	classType := classifyKind(cf)

	node := graph.NewJavaClass(fqn, simpleNameOf(fqn), graph.NormalizePackageName(pkg), sourceFilePath, classType, graph.SourceTypeBinary)

	var edges []*graph.Edge
	if cf.SuperClass != "" && cf.SuperClass != "java/lang/Object" {
		edges = append(edges, graph.NewEdge(fqn, internalNameToFQN(cf.SuperClass), graph.EdgeExtends))
	}
	for _, iface := range cf.Interfaces {
		edges = append(edges, graph.NewEdge(fqn, internalNameToFQN(iface), graph.EdgeImplements))
	}

	c.cache.GetOrCreateAndAttach(pkg, fqn, classType)
	return node, edges, nil
}
