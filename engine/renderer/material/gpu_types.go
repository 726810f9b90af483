package material

import (
	_ "embed"
	"encoding/binary"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-learn/common"
)

// GPUMaterialSize is the byte size of one marshaled GPUMaterial.
const GPUMaterialSize = 48

// Texture flag bits reported to the shader in GPUMaterial.TextureFlags.
const (
	TextureFlagDiffuse  uint32 = 1 << 0
	TextureFlagSpecular uint32 = 1 << 1
)

// GPUMaterialSource is the canonical WGSL definition of the Material struct.
// Matches GPUMaterial layout exactly (48 bytes, uniform aligned).
//
//go:embed assets/material.wgsl
var GPUMaterialSource string

// GPUMaterial is the GPU-aligned uniform block for a material payload.
// Matches the WGSL Material struct layout exactly (see GPUMaterialSource).
// Size: 48 bytes.
type GPUMaterial struct {
	BaseColor    [4]float32 // offset  0: RGBA albedo
	Specular     [3]float32 // offset 16: RGB specular color
	Shininess    float32    // offset 28: specular exponent
	Metallic     float32    // offset 32
	Roughness    float32    // offset 36
	TextureFlags uint32     // offset 40: TextureFlagDiffuse | TextureFlagSpecular
	_pad         uint32     // offset 44
}

// Size returns the size of the GPUMaterial struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes (48)
func (g *GPUMaterial) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterial struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload
func (g *GPUMaterial) Marshal() []byte {
	buf := make([]byte, GPUMaterialSize)
	off := common.PutFloat32s(buf, 0, g.BaseColor[:]...)
	off = common.PutFloat32s(buf, off, g.Specular[:]...)
	common.PutFloat32s(buf, off, g.Shininess, g.Metallic, g.Roughness)
	binary.LittleEndian.PutUint32(buf[40:44], g.TextureFlags)
	return buf
}

// ToGPU snapshots a Material into its GPU representation. Every field is copied as set.
//
// Parameters:
//   - m: the material to convert
//
// Returns:
//   - GPUMaterial: the GPU-ready material record
func ToGPU(m Material) GPUMaterial {
	g := GPUMaterial{
		BaseColor: m.BaseColor(),
		Specular:  m.Specular(),
		Shininess: m.Shininess(),
		Metallic:  m.Metallic(),
		Roughness: m.Roughness(),
	}
	if m.DiffuseTexture() != nil {
		g.TextureFlags |= TextureFlagDiffuse
	}
	if m.SpecularTexture() != nil {
		g.TextureFlags |= TextureFlagSpecular
	}
	return g
}
