package collect_test

import (
	"os"
	"path/filepath"
	"testing"

	"legacymod/internal/collect"
	"legacymod/internal/graph"
	"legacymod/internal/graphstore"
)

func TestEngineRunCollectsJavaAndSkipsUnknownExtensions(t *testing.T) {
	projectRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(projectRoot, "Foo.java"), []byte("package com.example;\npublic class Foo {}\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(projectRoot, "README.md"), []byte("# hi"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	store, err := graphstore.Open(filepath.Join(t.TempDir(), "graph"), graph.NewRegistry())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	store.AddNode(graph.NewNode("Foo.java", graph.NodeTypeProjectFile, "Foo.java"))
	store.AddNode(graph.NewNode("README.md", graph.NodeTypeProjectFile, "README.md"))

	engine := collect.NewEngine(store, false)
	defer engine.Close()

	stats := engine.Run(projectRoot)
	if stats.FilesSeen != 2 {
		t.Errorf("FilesSeen = %d, want 2", stats.FilesSeen)
	}
	if stats.FilesCollected != 1 {
		t.Errorf("FilesCollected = %d, want 1 (only Foo.java)", stats.FilesCollected)
	}
	if stats.ClassesCreated != 1 {
		t.Errorf("ClassesCreated = %d, want 1", stats.ClassesCreated)
	}

	classes := store.FindByNodeType(graph.NodeTypeJavaClass)
	if len(classes) != 1 || classes[0].ID != "com.example.Foo" {
		t.Errorf("classes = %v, want one com.example.Foo node", classes)
	}
}

func TestEngineRunSkipsExistingClassesWhenConfigured(t *testing.T) {
	projectRoot := t.TempDir()
	os.WriteFile(filepath.Join(projectRoot, "Foo.java"), []byte("package com.example;\npublic class Foo {}\n"), 0o644)

	store, err := graphstore.Open(filepath.Join(t.TempDir(), "graph"), graph.NewRegistry())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	store.AddNode(graph.NewNode("Foo.java", graph.NodeTypeProjectFile, "Foo.java"))
	existing := graph.NewJavaClass("com.example.Foo", "Foo", "com.example", "Foo.java", graph.ClassTypeClass, graph.SourceTypeSource)
	store.AddNode(existing)

	engine := collect.NewEngine(store, true)
	defer engine.Close()

	stats := engine.Run(projectRoot)
	if stats.FilesSkipped != 1 {
		t.Errorf("FilesSkipped = %d, want 1", stats.FilesSkipped)
	}
	if stats.FilesCollected != 0 {
		t.Errorf("FilesCollected = %d, want 0", stats.FilesCollected)
	}
}

func TestEngineRunRecordsParseErrorsForMissingFile(t *testing.T) {
	projectRoot := t.TempDir()

	store, err := graphstore.Open(filepath.Join(t.TempDir(), "graph"), graph.NewRegistry())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	store.AddNode(graph.NewNode("Missing.java", graph.NodeTypeProjectFile, "Missing.java"))

	engine := collect.NewEngine(store, false)
	defer engine.Close()

	stats := engine.Run(projectRoot)
	if stats.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", stats.ParseErrors)
	}
}
