package common

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Mat4Size is the byte size of a column-major mat4x4<f32>.
const Mat4Size = 64

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(size)*len(data))
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice using unsafe.
// The returned slice has length equal to the struct's size in memory.
//
// Parameters:
//   - v: pointer to the struct to reinterpret
//
// Returns:
//   - []byte: byte slice view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(size))
}

// Mat4ToBytes serializes a matrix into a fresh 64-byte little-endian buffer.
// mgl32 stores matrices column-major, which is the layout WGSL expects for mat4x4<f32>.
//
// Parameters:
//   - m: the matrix to serialize
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func Mat4ToBytes(m mgl32.Mat4) []byte {
	buf := make([]byte, Mat4Size)
	PutFloat32s(buf, 0, m[:]...)
	return buf
}

func putFloat32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}
