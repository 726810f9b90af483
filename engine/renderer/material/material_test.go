package material

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-learn/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32At(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func TestNewMaterialDefaults(t *testing.T) {
	m := NewMaterial()
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, m.BaseColor())
	assert.Equal(t, float32(32), m.Shininess())
	assert.Equal(t, float32(1), m.Roughness())
	assert.Nil(t, m.DiffuseTexture())
}

func TestMaterialOptionsAndSetters(t *testing.T) {
	diffuse := &common.TextureRef{Name: "diffuse", Path: "container.png"}
	m := NewMaterial(
		WithName("crate"),
		WithBaseColor(0.2, 0.4, 0.6, 1),
		WithSpecular(1, 1, 1, 64),
		WithMetallic(0.5),
		WithRoughness(0.25),
		WithDiffuseTexture(diffuse),
	)
	assert.Equal(t, "crate", m.Name())
	assert.Same(t, diffuse, m.DiffuseTexture())
	assert.Equal(t, float32(64), m.Shininess())

	m.SetBaseColor(mgl32.Vec4{0, 0, 0, 1})
	m.SetSpecular(mgl32.Vec3{0.1, 0.1, 0.1})
	m.SetShininess(8)
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, m.BaseColor())
	assert.Equal(t, mgl32.Vec3{0.1, 0.1, 0.1}, m.Specular())
	assert.Equal(t, float32(8), m.Shininess())
}

func TestGPUMaterialMarshalLayout(t *testing.T) {
	m := NewMaterial(
		WithBaseColor(0.1, 0.2, 0.3, 0.4),
		WithSpecular(0.5, 0.6, 0.7, 16),
		WithMetallic(0.8),
		WithRoughness(0.9),
		WithSpecularTexture(&common.TextureRef{Name: "spec"}),
	)
	g := ToGPU(m)
	require.Equal(t, GPUMaterialSize, g.Size())

	buf := g.Marshal()
	require.Len(t, buf, GPUMaterialSize)
	assert.Equal(t, float32(0.4), f32At(buf, 12))
	assert.Equal(t, float32(0.7), f32At(buf, 24))
	assert.Equal(t, float32(16), f32At(buf, 28))
	assert.Equal(t, float32(0.8), f32At(buf, 32))
	assert.Equal(t, float32(0.9), f32At(buf, 36))
	assert.Equal(t, TextureFlagSpecular, binary.LittleEndian.Uint32(buf[40:]))
}

func TestToGPUKeepsZeroShininess(t *testing.T) {
	m := NewMaterial(WithSpecular(1, 1, 1, 0))
	g := ToGPU(m)
	assert.Equal(t, float32(0), g.Shininess)
	assert.Equal(t, float32(0), f32At(g.Marshal(), 28))
}
