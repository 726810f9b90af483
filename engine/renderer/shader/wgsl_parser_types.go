package shader

import "github.com/cogentcore/webgpu/wgpu"

// wgslTypeLayout holds the byte size and alignment for a WGSL type per the WGSL specification.
// Used to compute MinBindingSize for buffer bindings and the uniform table.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}

// parsedBinding is one @group/@binding declaration with its classified layout entry.
type parsedBinding struct {
	group        int
	binding      int
	addressSpace string
	varName      string
	typeName     string
	entry        wgpu.BindGroupLayoutEntry
}
