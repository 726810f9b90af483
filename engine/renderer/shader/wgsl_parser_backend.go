package shader

import (
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslPrimitiveLayoutMap holds size and alignment of the host-shareable types a uniform may be
// built from. Vectors and matrices are f32 only.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var wgslPrimitiveLayoutMap = map[string]wgslTypeLayout{
	"f32": {4, 4},
	"i32": {4, 4},
	"u32": {4, 4},

	"vec2<f32>": {8, 8},
	"vec2f":     {8, 8},
	"vec3<f32>": {12, 16},
	"vec3f":     {12, 16},
	"vec4<f32>": {16, 16},
	"vec4f":     {16, 16},

	// columns are vec3/vec4, so every column is 16 aligned
	"mat3x3<f32>": {48, 16},
	"mat4x4<f32>": {64, 16},
}

// roundUpAlign rounds value up to a multiple of alignment, which must be a power of two.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// resolveTypeLayout looks typeName up among the primitives and the structs resolved so far.
// Fixed-size arrays resolve through their element type.
//
// Parameters:
//   - typeName: e.g. "f32", "Material", "array<Light, 4>"
//   - knownTypes: struct layouts resolved so far
//
// Returns:
//   - wgslTypeLayout: the layout
//   - bool: false for unknown types and runtime-sized arrays
func resolveTypeLayout(typeName string, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	if layout, ok := wgslPrimitiveLayoutMap[typeName]; ok {
		return layout, true
	}
	if layout, ok := knownTypes[typeName]; ok {
		return layout, true
	}

	elemType, count, ok := splitArrayType(typeName)
	if !ok {
		return wgslTypeLayout{}, false
	}
	elem, ok := resolveTypeLayout(elemType, knownTypes)
	if !ok {
		return wgslTypeLayout{}, false
	}
	return wgslTypeLayout{uint64(count) * roundUpAlign(elem.align, elem.size), elem.align}, true
}

// computeStructLayout places each field at its next aligned offset and rounds the total up to
// the widest field alignment. @builtin fields are not part of any buffer and are skipped.
func computeStructLayout(ps parsedStruct, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	var offset uint64
	align := uint64(1)

	for _, field := range ps.fields {
		if field.isBuiltin {
			continue
		}
		fl, ok := resolveTypeLayout(field.typeName, knownTypes)
		if !ok {
			return wgslTypeLayout{}, false
		}
		offset = roundUpAlign(fl.align, offset) + fl.size
		align = max(align, fl.align)
	}

	return wgslTypeLayout{roundUpAlign(align, offset), align}, true
}

// computeStructSizes resolves every struct it can. Structs may reference each other in any
// source order, so it keeps sweeping until a pass resolves nothing new.
func computeStructSizes(structs []parsedStruct) map[string]wgslTypeLayout {
	resolved := make(map[string]wgslTypeLayout, len(structs))
	pending := append([]parsedStruct(nil), structs...)

	for len(pending) > 0 {
		var unresolved []parsedStruct
		for _, ps := range pending {
			if layout, ok := computeStructLayout(ps, resolved); ok {
				resolved[ps.name] = layout
			} else {
				unresolved = append(unresolved, ps)
			}
		}
		if len(unresolved) == len(pending) {
			break
		}
		pending = unresolved
	}

	return resolved
}

// classifyResource builds the layout entry for one declaration. var<uniform> becomes a uniform
// buffer, "sampler" a filtering sampler and texture_* a sampled texture. Anything else is left
// with no binding type set.
//
// Parameters:
//   - binding: the @binding index
//   - visibility: the stages the entry is visible to
//   - addressSpace: the var<...> qualifier, empty for textures and samplers
//   - typeName: the declared type
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the entry
func classifyResource(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
	}

	switch {
	case addressSpace == "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case addressSpace != "":
	case typeName == "sampler":
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	default:
		base, param := splitTypeParams(typeName)
		if dim, ok := wgslSampledTextureMap[base]; ok {
			entry.Texture.ViewDimension = dim
			entry.Texture.SampleType = wgslSampleTypeMap[param]
		}
	}

	return entry
}

// splitTypeParams splits "texture_2d<f32>" into ("texture_2d", "f32"). A type without angle
// brackets is returned as is with empty params.
func splitTypeParams(typeName string) (base string, params string) {
	base, params, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return base, strings.TrimSpace(strings.TrimSuffix(params, ">"))
}

// stripComments blanks out // line comments and nested /* */ block comments.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))

	depth := 0
	for i := 0; i < len(source); i++ {
		rest := source[i:]
		switch {
		case strings.HasPrefix(rest, "/*"):
			depth++
			i++
		case depth > 0 && strings.HasPrefix(rest, "*/"):
			depth--
			i++
		case depth > 0:
		case strings.HasPrefix(rest, "//"):
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				return sb.String()
			}
			i += end - 1
		default:
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}

// isVertexInputStruct reports whether ps carries @location fields and no @builtin ones. Vertex
// outputs always carry @builtin(position), so this tells the two apart.
func isVertexInputStruct(ps parsedStruct) bool {
	hasLocation := false
	for _, f := range ps.fields {
		if f.isBuiltin {
			return false
		}
		hasLocation = hasLocation || f.location >= 0
	}
	return hasLocation
}

// buildVertexBufferLayout packs the fields of a vertex input struct back to back, in declaration
// order, into one per-vertex buffer layout.
//
// Parameters:
//   - ps: a vertex input struct
//
// Returns:
//   - wgpu.VertexBufferLayout: the layout
//   - bool: false if a field type has no vertex format
func buildVertexBufferLayout(ps parsedStruct) (wgpu.VertexBufferLayout, bool) {
	layout := wgpu.VertexBufferLayout{StepMode: wgpu.VertexStepModeVertex}

	for _, f := range ps.fields {
		format, ok := wgslVertexFormatMap[f.typeName]
		if !ok {
			return wgpu.VertexBufferLayout{}, false
		}
		layout.Attributes = append(layout.Attributes, wgpu.VertexAttribute{
			Format:         format,
			Offset:         layout.ArrayStride,
			ShaderLocation: uint32(f.location),
		})
		layout.ArrayStride += wgslPrimitiveLayoutMap[f.typeName].size
	}

	return layout, true
}

// splitAtTopLevelCommas splits a struct body on the commas outside angle brackets, so the
// comma in "array<Light, 4>" does not end a field.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, c := range s {
		switch {
		case c == '<':
			depth++
		case c == '>' && depth > 0:
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// splitArrayType returns the element type and count of a fixed-size array<T, N>.
//
// Parameters:
//   - typeName: the WGSL type string
//
// Returns:
//   - string: the element type
//   - int: the element count
//   - bool: false for any other type, runtime-sized arrays included
func splitArrayType(typeName string) (string, int, bool) {
	base, params := splitTypeParams(typeName)
	if base != "array" {
		return "", 0, false
	}
	elem, countStr, ok := strings.Cut(params, ",")
	if !ok {
		return "", 0, false
	}
	count, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil || count <= 0 {
		return "", 0, false
	}
	return strings.TrimSpace(elem), count, true
}

// arrayStride returns the byte stride between elements of an array of elem. Arrays in the
// uniform address space have their stride rounded up to 16 bytes.
func arrayStride(elem wgslTypeLayout, addressSpace string) uint64 {
	align := elem.align
	if addressSpace == "uniform" && align < 16 {
		align = 16
	}
	return roundUpAlign(align, elem.size)
}

// resolveBindingLayout resolves the size and alignment of a buffer binding's declared type,
// applying the uniform array stride rule to top-level fixed-size arrays.
func resolveBindingLayout(pb parsedBinding, structSizes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	if elemType, count, ok := splitArrayType(pb.typeName); ok {
		elem, ok := resolveTypeLayout(elemType, structSizes)
		if !ok {
			return wgslTypeLayout{}, false
		}
		return wgslTypeLayout{uint64(count) * arrayStride(elem, pb.addressSpace), elem.align}, true
	}
	return resolveTypeLayout(pb.typeName, structSizes)
}
