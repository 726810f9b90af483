package shader

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	// ErrUniformNotFound is returned when a uniform name is not declared by the shader.
	ErrUniformNotFound = errors.New("uniform not found")

	// ErrIndexOutOfRange is returned when an indexed uniform name addresses past the end of its array.
	ErrIndexOutOfRange = errors.New("uniform index out of range")

	// ErrNotArray is returned when an index is applied to a uniform that is not a fixed-size array.
	ErrNotArray = errors.New("uniform is not an array")
)

// uniformNameRegex matches "name" or "name[index]".
var uniformNameRegex = regexp.MustCompile(`^(\w+)(?:\[(\d+)\])?$`)

// UniformInfo describes one buffer binding declared in a WGSL module.
type UniformInfo struct {
	// Name is the WGSL variable name.
	Name string

	// Group is the @group index.
	Group int

	// Binding is the @binding index within the group.
	Binding int

	// Type is the declared WGSL type string, e.g. "mat4x4<f32>" or "array<Light, 4>".
	Type string

	// Size is the total byte size of the binding.
	Size uint64

	// Array is true when the binding is a fixed-size array.
	Array bool

	// Count is the element count of an array binding.
	Count int

	// Stride is the byte stride between array elements.
	Stride uint64
}

// UniformLocation addresses a byte range inside the buffer backing a uniform binding.
type UniformLocation struct {
	Group   int
	Binding int
	Offset  uint64
	Size    uint64
}

// String implements fmt.Stringer.
func (l UniformLocation) String() string {
	return fmt.Sprintf("group(%d) binding(%d) [%d:%d]", l.Group, l.Binding, l.Offset, l.Offset+l.Size)
}

// resolveLocation resolves a uniform name against a uniform table. A bare array name addresses
// the whole array; name[i] addresses a single element.
//
// Parameters:
//   - table: the uniform table of a parsed shader
//   - name: "name" or "name[index]"
//
// Returns:
//   - UniformLocation: the resolved byte range
//   - error: ErrUniformNotFound, ErrNotArray or ErrIndexOutOfRange
func resolveLocation(table map[string]UniformInfo, name string) (UniformLocation, error) {
	match := uniformNameRegex.FindStringSubmatch(name)
	if match == nil {
		return UniformLocation{}, fmt.Errorf("%w: %q", ErrUniformNotFound, name)
	}

	info, ok := table[match[1]]
	if !ok {
		return UniformLocation{}, fmt.Errorf("%w: %q", ErrUniformNotFound, name)
	}

	loc := UniformLocation{
		Group:   info.Group,
		Binding: info.Binding,
		Size:    info.Size,
	}
	if match[2] == "" {
		return loc, nil
	}

	if !info.Array {
		return UniformLocation{}, fmt.Errorf("%w: %q", ErrNotArray, name)
	}
	index, err := strconv.Atoi(match[2])
	if err != nil || index >= info.Count {
		return UniformLocation{}, fmt.Errorf("%w: %q has %d elements", ErrIndexOutOfRange, name, info.Count)
	}

	loc.Offset = uint64(index) * info.Stride
	loc.Size = info.Stride
	return loc, nil
}
