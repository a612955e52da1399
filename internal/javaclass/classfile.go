// Package javaclass reads the structural facts this workbench needs out
// of a compiled JVM .class file: its own name, superclass, declared
// interfaces, and enough of the constant pool to resolve those names. It
// implements only the subset of the class file format (JVMS §4) required
// to answer those questions — it is not a general-purpose bytecode
// disassembler.
package javaclass

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const magic = 0xCAFEBABE

// constant pool tags, JVMS §4.4.
const (
	tagUTF8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// access flags relevant to class-kind classification, JVMS §4.1.
const (
	accPublic     = 0x0001
	accInterface  = 0x0200
	accAbstract   = 0x0400
	accAnnotation = 0x2000
	accEnum       = 0x4000
	accModule     = 0x8000
	accRecord     = 0x0010 // overloaded with ACC_SUPER on classes; disambiguated via RecordAttribute below
)

// ClassFile is the subset of a parsed .class file this workbench cares
// about.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	AccessFlags  uint16
	// ThisClass/SuperClass/Interfaces are already resolved to
	// slash-separated internal names (e.g. "java/lang/Object").
	ThisClass  string
	SuperClass string
	Interfaces []string
	IsRecord   bool
}

// IsInterface reports whether ACC_INTERFACE is set.
func (c *ClassFile) IsInterface() bool { return c.AccessFlags&accInterface != 0 }

// IsEnum reports whether ACC_ENUM is set.
func (c *ClassFile) IsEnum() bool { return c.AccessFlags&accEnum != 0 }

// IsAnnotation reports whether ACC_ANNOTATION is set.
func (c *ClassFile) IsAnnotation() bool { return c.AccessFlags&accAnnotation != 0 }

type cpEntry struct {
	tag        uint8
	utf8       string
	classIndex uint16 // tagClass, tagModule, tagPackage
}

// Parse decodes a .class file from raw bytes.
func Parse(data []byte) (*ClassFile, error) {
	r := bytes.NewReader(data)

	var gotMagic uint32
	if err := binary.Read(r, binary.BigEndian, &gotMagic); err != nil {
		return nil, fmt.Errorf("javaclass: reading magic: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("javaclass: bad magic 0x%08X", gotMagic)
	}

	var minor, major uint16
	if err := binary.Read(r, binary.BigEndian, &minor); err != nil {
		return nil, fmt.Errorf("javaclass: reading minor version: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &major); err != nil {
		return nil, fmt.Errorf("javaclass: reading major version: %w", err)
	}

	pool, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}

	var accessFlags, thisClassIdx, superClassIdx uint16
	if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
		return nil, fmt.Errorf("javaclass: reading access flags: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &thisClassIdx); err != nil {
		return nil, fmt.Errorf("javaclass: reading this_class: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &superClassIdx); err != nil {
		return nil, fmt.Errorf("javaclass: reading super_class: %w", err)
	}

	var interfacesCount uint16
	if err := binary.Read(r, binary.BigEndian, &interfacesCount); err != nil {
		return nil, fmt.Errorf("javaclass: reading interfaces_count: %w", err)
	}
	ifaceIdx := make([]uint16, interfacesCount)
	for i := range ifaceIdx {
		if err := binary.Read(r, binary.BigEndian, &ifaceIdx[i]); err != nil {
			return nil, fmt.Errorf("javaclass: reading interface index %d: %w", i, err)
		}
	}

	cf := &ClassFile{
		MinorVersion: minor,
		MajorVersion: major,
		AccessFlags:  accessFlags,
	}
	cf.ThisClass, err = resolveClassName(pool, thisClassIdx)
	if err != nil {
		return nil, fmt.Errorf("javaclass: resolving this_class: %w", err)
	}
	if superClassIdx != 0 {
		cf.SuperClass, err = resolveClassName(pool, superClassIdx)
		if err != nil {
			return nil, fmt.Errorf("javaclass: resolving super_class: %w", err)
		}
	}
	for _, idx := range ifaceIdx {
		name, err := resolveClassName(pool, idx)
		if err != nil {
			return nil, fmt.Errorf("javaclass: resolving interface: %w", err)
		}
		cf.Interfaces = append(cf.Interfaces, name)
	}

	cf.IsRecord = scanForRecordAttribute(r, pool)
	return cf, nil
}

func readConstantPool(r *bytes.Reader) ([]cpEntry, error) {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("javaclass: reading constant_pool_count: %w", err)
	}
	// Entries are 1-indexed; Long/Double occupy two slots.
	pool := make([]cpEntry, count)
	for i := 1; i < int(count); i++ {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, fmt.Errorf("javaclass: reading constant pool tag %d: %w", i, err)
		}
		entry := cpEntry{tag: tag}
		switch tag {
		case tagUTF8:
			var length uint16
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return nil, err
			}
			buf := make([]byte, length)
			if _, err := r.Read(buf); err != nil {
				return nil, err
			}
			entry.utf8 = string(buf)
		case tagClass, tagMethodType, tagModule, tagPackage:
			if err := binary.Read(r, binary.BigEndian, &entry.classIndex); err != nil {
				return nil, err
			}
		case tagString:
			if _, err := r.Seek(2, 1); err != nil {
				return nil, err
			}
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			if _, err := r.Seek(4, 1); err != nil {
				return nil, err
			}
		case tagInteger, tagFloat:
			if _, err := r.Seek(4, 1); err != nil {
				return nil, err
			}
		case tagLong, tagDouble:
			if _, err := r.Seek(8, 1); err != nil {
				return nil, err
			}
			i++ // occupies two pool slots
		case tagMethodHandle:
			if _, err := r.Seek(3, 1); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("javaclass: unknown constant pool tag %d at index %d", tag, i)
		}
		pool[i] = entry
	}
	return pool, nil
}

func resolveClassName(pool []cpEntry, idx uint16) (string, error) {
	if int(idx) >= len(pool) {
		return "", fmt.Errorf("constant pool index %d out of range", idx)
	}
	classEntry := pool[idx]
	if classEntry.tag != tagClass {
		return "", fmt.Errorf("constant pool index %d is not a Class entry", idx)
	}
	if int(classEntry.classIndex) >= len(pool) {
		return "", fmt.Errorf("constant pool name index %d out of range", classEntry.classIndex)
	}
	nameEntry := pool[classEntry.classIndex]
	if nameEntry.tag != tagUTF8 {
		return "", fmt.Errorf("constant pool index %d is not a UTF8 entry", classEntry.classIndex)
	}
	return nameEntry.utf8, nil
}

// scanForRecordAttribute looks for a top-level "Record" attribute name in
// the remaining class-file attribute table. It is deliberately lossy: any
// read error simply yields false, since record-ness is a nice-to-have
// classification and never required for correctness elsewhere.
func scanForRecordAttribute(r *bytes.Reader, pool []cpEntry) bool {
	// Skip fields and methods sections; both share the same
	// (access_flags, name_index, descriptor_index, attributes_count,
	// attributes[]) shape, so a generic skip routine handles both.
	skipMembers := func() bool {
		var count uint16
		if binary.Read(r, binary.BigEndian, &count) != nil {
			return false
		}
		for i := uint16(0); i < count; i++ {
			if _, err := r.Seek(6, 1); err != nil { // access_flags, name_index, descriptor_index
				return false
			}
			if !skipAttributes(r) {
				return false
			}
		}
		return true
	}
	if !skipMembers() { // fields
		return false
	}
	if !skipMembers() { // methods
		return false
	}
	return hasAttribute(r, pool, "Record")
}

func skipAttributes(r *bytes.Reader) bool {
	var count uint16
	if binary.Read(r, binary.BigEndian, &count) != nil {
		return false
	}
	for i := uint16(0); i < count; i++ {
		if _, err := r.Seek(2, 1); err != nil { // attribute_name_index
			return false
		}
		var length uint32
		if binary.Read(r, binary.BigEndian, &length) != nil {
			return false
		}
		if _, err := r.Seek(int64(length), 1); err != nil {
			return false
		}
	}
	return true
}

func hasAttribute(r *bytes.Reader, pool []cpEntry, name string) bool {
	var count uint16
	if binary.Read(r, binary.BigEndian, &count) != nil {
		return false
	}
	for i := uint16(0); i < count; i++ {
		var nameIdx uint16
		if binary.Read(r, binary.BigEndian, &nameIdx) != nil {
			return false
		}
		var length uint32
		if binary.Read(r, binary.BigEndian, &length) != nil {
			return false
		}
		if int(nameIdx) < len(pool) && pool[nameIdx].tag == tagUTF8 && pool[nameIdx].utf8 == name {
			return true
		}
		if _, err := r.Seek(int64(length), 1); err != nil {
			return false
		}
	}
	return false
}
