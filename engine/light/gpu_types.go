package light

import (
	_ "embed"
	"encoding/binary"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-learn/common"
)

// GPULightSize is the byte size of one marshaled GPULight, which is also the
// array stride of array<Light, N> in a uniform block.
const GPULightSize = 64

// GPULightSource is the canonical WGSL definition of the Light struct.
// Matches GPULight layout exactly (64 bytes, uniform/std140 aligned).
//
//go:embed assets/light.wgsl
var GPULightSource string

// GPULight is the GPU-aligned representation of a single light source.
// Matches the WGSL Light struct layout exactly (see GPULightSource).
// Size: 64 bytes.
type GPULight struct {
	Position   [3]float32 // offset  0: position (point/spot) or unused (directional)
	LightType  uint32     // offset 12: 0 = directional, 1 = point, 2 = spot
	Color      [3]float32 // offset 16: RGB color
	Intensity  float32    // offset 28: scalar multiplier
	Direction  [3]float32 // offset 32: normalized direction (directional/spot) or unused (point)
	LightRange float32    // offset 44: attenuation cutoff distance
	InnerCone  float32    // offset 48: cos(inner half-angle) for spot
	OuterCone  float32    // offset 52: cos(outer half-angle) for spot
	Enabled    uint32     // offset 56: 1 = enabled, 0 = disabled
	_pad       uint32     // offset 60: padding to 64-byte alignment
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, GPULightSize)
	off := common.PutFloat32s(buf, 0, g.Position[:]...)
	binary.LittleEndian.PutUint32(buf[off:], g.LightType)
	off = common.PutFloat32s(buf, off+4, g.Color[:]...)
	off = common.PutFloat32s(buf, off, g.Intensity)
	off = common.PutFloat32s(buf, off, g.Direction[:]...)
	off = common.PutFloat32s(buf, off, g.LightRange, g.InnerCone, g.OuterCone)
	binary.LittleEndian.PutUint32(buf[off:], g.Enabled)
	return buf
}

// ToGPU snapshots a Light into its GPU representation. Disabled lights keep their
// parameters but have zero intensity so the shader can loop over every slot.
//
// Parameters:
//   - l: the light to convert
//
// Returns:
//   - GPULight: the GPU-ready light record
func ToGPU(l Light) GPULight {
	g := GPULight{
		Position:   l.Position(),
		LightType:  uint32(l.Type()),
		Color:      l.Color(),
		Intensity:  l.Intensity(),
		Direction:  l.Direction(),
		LightRange: l.Range(),
		InnerCone:  l.InnerCone(),
		OuterCone:  l.OuterCone(),
	}
	if l.Enabled() {
		g.Enabled = 1
	} else {
		g.Intensity = 0
	}
	return g
}
