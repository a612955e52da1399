package javaclass_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"legacymod/internal/javaclass"
)

// buildClass assembles just enough of a .class file for Parse to
// succeed: a this_class/super_class pair resolved through the constant
// pool, zero interfaces, zero fields, zero methods, and either zero
// top-level attributes or a single named one (recordAttrName).
func buildClass(t *testing.T, thisName, superName string, accessFlags uint16, recordAttrName string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := func(v interface{}) {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			t.Fatalf("writing %v: %v", v, err)
		}
	}

	w(uint32(0xCAFEBABE))
	w(uint16(0))  // minor
	w(uint16(61)) // major (Java 17)

	entries := 4
	if recordAttrName != "" {
		entries++
	}
	w(uint16(entries + 1)) // constant_pool_count

	// #1 UTF8 thisName
	w(uint8(1))
	w(uint16(len(thisName)))
	buf.WriteString(thisName)
	// #2 Class -> #1
	w(uint8(7))
	w(uint16(1))
	// #3 UTF8 superName
	w(uint8(1))
	w(uint16(len(superName)))
	buf.WriteString(superName)
	// #4 Class -> #3
	w(uint8(7))
	w(uint16(3))
	if recordAttrName != "" {
		// #5 UTF8 recordAttrName
		w(uint8(1))
		w(uint16(len(recordAttrName)))
		buf.WriteString(recordAttrName)
	}

	w(accessFlags)
	w(uint16(2)) // this_class
	w(uint16(4)) // super_class
	w(uint16(0)) // interfaces_count

	w(uint16(0)) // fields_count
	w(uint16(0)) // methods_count

	if recordAttrName != "" {
		w(uint16(1))  // attributes_count
		w(uint16(5))  // attribute_name_index -> #5
		w(uint32(0))  // attribute_length
	} else {
		w(uint16(0)) // attributes_count
	}

	return buf.Bytes()
}

func TestParseResolvesThisAndSuperClass(t *testing.T) {
	data := buildClass(t, "com/example/Foo", "java/lang/Object", 0x0001, "")
	cf, err := javaclass.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cf.ThisClass != "com/example/Foo" {
		t.Errorf("ThisClass = %q, want com/example/Foo", cf.ThisClass)
	}
	if cf.SuperClass != "java/lang/Object" {
		t.Errorf("SuperClass = %q, want java/lang/Object", cf.SuperClass)
	}
	if len(cf.Interfaces) != 0 {
		t.Errorf("Interfaces = %v, want none", cf.Interfaces)
	}
	if cf.IsRecord {
		t.Error("expected IsRecord=false when no Record attribute is present")
	}
}

func TestParseRecordAttributeDetected(t *testing.T) {
	data := buildClass(t, "com/example/Point", "java/lang/Record", 0x0011, "Record")
	cf, err := javaclass.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cf.IsRecord {
		t.Error("expected IsRecord=true when a top-level Record attribute is present")
	}
}

func TestParseClassificationFlags(t *testing.T) {
	data := buildClass(t, "com/example/Marker", "java/lang/Object", 0x0001, "")
	cf, err := javaclass.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cf.IsInterface() {
		t.Error("ACC_PUBLIC alone should not report as an interface")
	}
	if cf.IsEnum() {
		t.Error("ACC_PUBLIC alone should not report as an enum")
	}
	if cf.IsAnnotation() {
		t.Error("ACC_PUBLIC alone should not report as an annotation")
	}

	iface := buildClass(t, "com/example/Iface", "java/lang/Object", 0x0001|0x0200, "")
	cfIface, err := javaclass.Parse(iface)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfIface.IsInterface() {
		t.Error("ACC_INTERFACE should report as an interface")
	}
}

func TestParseBadMagicRejected(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 0}
	if _, err := javaclass.Parse(data); err == nil {
		t.Error("expected an error for a bad magic number")
	}
}

func TestParseTruncatedDataRejected(t *testing.T) {
	// Cut off inside the header, before the lossy trailing attribute
	// scan (which swallows its own read errors), so truncation surfaces
	// as a real error.
	truncated := []byte{0xCA, 0xFE, 0xBA, 0xBE, 0x00, 0x00}
	if _, err := javaclass.Parse(truncated); err == nil {
		t.Error("expected an error when the class file is truncated")
	}
}
