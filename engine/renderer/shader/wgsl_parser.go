package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslVertexFormatMap maps the WGSL types a vertex input field may have to their vertex format.
// Byte sizes come from wgslPrimitiveLayoutMap.
var wgslVertexFormatMap = map[string]wgpu.VertexFormat{
	"f32":       wgpu.VertexFormatFloat32,
	"vec2f":     wgpu.VertexFormatFloat32x2,
	"vec2<f32>": wgpu.VertexFormatFloat32x2,
	"vec3f":     wgpu.VertexFormatFloat32x3,
	"vec3<f32>": wgpu.VertexFormatFloat32x3,
	"vec4f":     wgpu.VertexFormatFloat32x4,
	"vec4<f32>": wgpu.VertexFormatFloat32x4,
	"u32":       wgpu.VertexFormatUint32,
}

// wgslSampledTextureMap maps sampled texture types to their view dimension.
var wgslSampledTextureMap = map[string]wgpu.TextureViewDimension{
	"texture_2d":       wgpu.TextureViewDimension2D,
	"texture_2d_array": wgpu.TextureViewDimension2DArray,
	"texture_cube":     wgpu.TextureViewDimensionCube,
}

// wgslSampleTypeMap maps a texture's scalar parameter to its sample type.
var wgslSampleTypeMap = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex matches a struct field line: optional attributes, name, colon, type.
	// The type capture (.+) is greedy to handle parameterized types like array<T, N>.
	fieldRegex = regexp.MustCompile(`(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)

	// vertexEntryRegex matches @vertex functions and captures the entry point name
	vertexEntryRegex = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)

	// fragmentEntryRegex matches @fragment functions and captures the entry point name
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(0) var<uniform> model: mat4x4<f32>;
	// or handle types: @group(1) @binding(0) var diffuse_map: texture_2d<f32>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// parseVertexLayouts extracts vertex buffer layouts from WGSL source code.
// It finds all structs that are pure vertex inputs (have @location attributes but no @builtin fields)
// and converts them into wgpu.VertexBufferLayout entries in source order. Structs containing
// unrecognized WGSL types are skipped.
//
// Parameters:
//   - source: the WGSL source code with comments already stripped
//
// Returns:
//   - []wgpu.VertexBufferLayout: one layout per vertex input struct
func parseVertexLayouts(source string) []wgpu.VertexBufferLayout {
	var result []wgpu.VertexBufferLayout
	for _, ps := range parseStructBlocks(source) {
		if !isVertexInputStruct(ps) {
			continue
		}
		layout, ok := buildVertexBufferLayout(ps)
		if !ok {
			continue
		}
		result = append(result, layout)
	}
	return result
}

// parseBindings extracts all @group(N) @binding(M) resource declarations from WGSL source,
// classifies each one and sets MinBindingSize on buffer entries from the resolved type layout.
//
// Parameters:
//   - source: the WGSL source code with comments already stripped
//   - visibility: the shader stage visibility flag to set on each entry
//   - structSizes: resolved struct layouts for the same source
//
// Returns:
//   - []parsedBinding: all declarations in source order
func parseBindings(source string, visibility wgpu.ShaderStage, structSizes map[string]wgslTypeLayout) []parsedBinding {
	matches := bindGroupDeclRegex.FindAllStringSubmatch(source, -1)
	bindings := make([]parsedBinding, 0, len(matches))

	for _, match := range matches {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		pb := parsedBinding{
			group:        group,
			binding:      binding,
			addressSpace: strings.TrimSpace(match[3]),
			varName:      strings.TrimSpace(match[4]),
			typeName:     strings.TrimSpace(match[5]),
		}
		pb.entry = classifyResource(uint32(binding), visibility, pb.addressSpace, pb.typeName)

		if pb.entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if layout, ok := resolveBindingLayout(pb, structSizes); ok && layout.size > 0 {
				pb.entry.Buffer.MinBindingSize = layout.size
			}
		}
		bindings = append(bindings, pb)
	}

	return bindings
}

// buildBindGroupLayouts groups the parsed bindings into one layout descriptor per group, each
// with its entries in binding order.
func buildBindGroupLayouts(bindings []parsedBinding) map[int]wgpu.BindGroupLayoutDescriptor {
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)
	for _, pb := range bindings {
		groups[pb.group] = append(groups[pb.group], pb.entry)
	}

	result := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		result[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return result
}

// buildUniformTable indexes every buffer binding by variable name. Texture and sampler bindings
// are not writable as uniforms and are left out.
//
// Parameters:
//   - bindings: the parsed bindings
//   - structSizes: resolved struct layouts for the same source
//
// Returns:
//   - map[string]UniformInfo: buffer bindings keyed by WGSL variable name
func buildUniformTable(bindings []parsedBinding, structSizes map[string]wgslTypeLayout) map[string]UniformInfo {
	table := make(map[string]UniformInfo)
	for _, pb := range bindings {
		if pb.entry.Buffer.Type == wgpu.BufferBindingTypeUndefined {
			continue
		}
		info := UniformInfo{
			Name:    pb.varName,
			Group:   pb.group,
			Binding: pb.binding,
			Type:    pb.typeName,
		}
		if layout, ok := resolveBindingLayout(pb, structSizes); ok {
			info.Size = layout.size
		}
		if elemType, count, isArray := splitArrayType(pb.typeName); isArray {
			info.Array = true
			info.Count = count
			if elemLayout, ok := resolveTypeLayout(elemType, structSizes); ok {
				info.Stride = arrayStride(elemLayout, pb.addressSpace)
			}
		}
		table[pb.varName] = info
	}
	return table
}

// parseEntryPoint extracts the entry point function name for the given stage from WGSL source.
// Returns an empty string if no matching entry point annotation is found.
//
// Parameters:
//   - source: the WGSL source code with comments already stripped
//   - stage: the stage to search for
//
// Returns:
//   - string: the entry point function name, or empty string if not found
func parseEntryPoint(source string, stage Stage) string {
	var re *regexp.Regexp
	switch stage {
	case StageVertex:
		re = vertexEntryRegex
	case StageFragment:
		re = fragmentEntryRegex
	default:
		return ""
	}

	if match := re.FindStringSubmatch(source); match != nil {
		return match[1]
	}
	return ""
}

// parseStructBlocks finds all struct { ... } blocks in the cleaned WGSL source
// and parses their fields including @location and @builtin attributes
//
// Parameters:
//   - source: WGSL source with comments already stripped
//
// Returns:
//   - []parsedStruct: all struct blocks found in the source
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))

	for _, match := range matches {
		structs = append(structs, parsedStruct{
			name:   match[1],
			fields: parseStructFields(match[2]),
		})
	}

	return structs
}

// parseStructFields parses the body of a struct block into individual fields,
// extracting @location and @builtin attributes along with the field name and type
func parseStructFields(body string) []parsedField {
	lines := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field := parsedField{location: -1}
		if builtinRegex.MatchString(line) {
			field.isBuiltin = true
		}
		if locMatch := locationRegex.FindStringSubmatch(line); locMatch != nil {
			if loc, err := strconv.Atoi(locMatch[1]); err == nil {
				field.location = loc
			}
		}

		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			continue
		}
		field.name = fm[1]
		field.typeName = strings.TrimSpace(fm[2])

		fields = append(fields, field)
	}

	return fields
}
