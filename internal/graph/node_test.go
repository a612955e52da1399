package graph_test

import (
	"testing"

	"legacymod/internal/graph"
)

func TestSetPropertyBoolBecomesTag(t *testing.T) {
	n := graph.NewNode("id1", graph.NodeTypeProjectFile, "id1")
	n.SetProperty("isPublic", graph.Bool(true))

	if _, ok := n.GetProperty("isPublic"); ok {
		t.Error("boolean property should not be stored in Properties")
	}
	if !n.HasTag("isPublic") {
		t.Error("boolean property should become a tag")
	}
}

func TestTagListSorted(t *testing.T) {
	n := graph.NewNode("id1", graph.NodeTypeProjectFile, "id1")
	n.EnableTag("zeta")
	n.EnableTag("alpha")
	n.EnableTag("mid")

	got := n.TagList()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("TagList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TagList()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestNewJavaClass(t *testing.T) {
	n := graph.NewJavaClass("com.example.Foo", "Foo", "com.example", "Foo.java", graph.ClassTypeClass, graph.SourceTypeSource)
	if n.NodeType != graph.NodeTypeJavaClass {
		t.Errorf("NodeType = %v, want %v", n.NodeType, graph.NodeTypeJavaClass)
	}
	if n.ID != "com.example.Foo" {
		t.Errorf("ID = %s", n.ID)
	}
	simple, ok := n.GetProperty("simpleName")
	if !ok || simple.S != "Foo" {
		t.Errorf("simpleName = %v", simple)
	}
}

func TestNormalizePackageName(t *testing.T) {
	if got := graph.NormalizePackageName(""); got != "(default)" {
		t.Errorf("NormalizePackageName(\"\") = %s, want (default)", got)
	}
	if got := graph.NormalizePackageName("com.example"); got != "com.example" {
		t.Errorf("NormalizePackageName(com.example) = %s", got)
	}
}

func TestNewPackageDefault(t *testing.T) {
	n := graph.NewPackage("")
	if n.ID != "(default)" {
		t.Errorf("ID = %s, want (default)", n.ID)
	}
	if n.NodeType != graph.NodeTypePackage {
		t.Errorf("NodeType = %v", n.NodeType)
	}
}

func TestMetrics(t *testing.T) {
	n := graph.NewNode("id1", graph.NodeTypeJavaClass, "id1")
	n.SetMetric(graph.MetricInstability, 0.5)
	v, ok := n.GetMetric(graph.MetricInstability)
	if !ok || v != 0.5 {
		t.Errorf("GetMetric = %v, %v", v, ok)
	}
}
