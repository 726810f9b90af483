package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32At(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func TestNewLightDefaults(t *testing.T) {
	l := NewLight(LightTypePoint)

	assert.Equal(t, LightTypePoint, l.Type())
	assert.Equal(t, mgl32.Vec3{0, -1, 0}, l.Direction())
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, l.Color())
	assert.Equal(t, float32(1), l.Intensity())
	assert.Equal(t, float32(10), l.Range())
	assert.True(t, l.Enabled())
	assert.InDelta(t, 0.9063, l.InnerCone(), 1e-4)
	assert.InDelta(t, 0.8192, l.OuterCone(), 1e-4)
}

func TestBuilderOptions(t *testing.T) {
	l := NewLight(LightTypeSpot,
		WithName("lamp"),
		WithPosition(1, 2, 3),
		WithDirection(0, 0, -5),
		WithColor(0.5, 0.25, 1),
		WithIntensity(3),
		WithRange(20),
		WithSpotCone(0, 90),
		WithEnabled(false),
	)

	assert.Equal(t, "lamp", l.Name())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, l.Position())
	assert.Equal(t, mgl32.Vec3{0, 0, -1}, l.Direction())
	assert.Equal(t, mgl32.Vec3{0.5, 0.25, 1}, l.Color())
	assert.Equal(t, float32(3), l.Intensity())
	assert.Equal(t, float32(20), l.Range())
	assert.InDelta(t, 1, l.InnerCone(), 1e-6)
	assert.InDelta(t, 0, l.OuterCone(), 1e-6)
	assert.False(t, l.Enabled())
}

func TestSetDirectionZeroLength(t *testing.T) {
	l := NewLight(LightTypeDirectional)
	l.SetDirection(0, 0, 0)
	assert.Equal(t, mgl32.Vec3{}, l.Direction())
}

func TestLightTypeString(t *testing.T) {
	assert.Equal(t, "directional", LightTypeDirectional.String())
	assert.Equal(t, "point", LightTypePoint.String())
	assert.Equal(t, "spot", LightTypeSpot.String())
	assert.Equal(t, "unknown", LightType(42).String())
}

func TestGPULightMarshalLayout(t *testing.T) {
	l := NewLight(LightTypeSpot,
		WithPosition(1, 2, 3),
		WithColor(0.1, 0.2, 0.3),
		WithIntensity(4),
		WithRange(5),
	)
	g := ToGPU(l)
	require.Equal(t, GPULightSize, g.Size())

	buf := g.Marshal()
	require.Len(t, buf, GPULightSize)
	assert.Equal(t, float32(3), f32At(buf, 8))
	assert.Equal(t, uint32(LightTypeSpot), binary.LittleEndian.Uint32(buf[12:]))
	assert.Equal(t, float32(0.2), f32At(buf, 20))
	assert.Equal(t, float32(4), f32At(buf, 28))
	assert.Equal(t, float32(5), f32At(buf, 44))
	assert.Equal(t, g.InnerCone, f32At(buf, 48))
	assert.Equal(t, g.OuterCone, f32At(buf, 52))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[56:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[60:]))
}

func TestToGPUDisabledLightHasZeroIntensity(t *testing.T) {
	l := NewLight(LightTypePoint, WithIntensity(7), WithEnabled(false))
	g := ToGPU(l)
	assert.Equal(t, float32(0), g.Intensity)
	assert.Equal(t, uint32(0), g.Enabled)
}

func TestGPULightSourceDeclaresStruct(t *testing.T) {
	assert.Contains(t, GPULightSource, "struct Light")
}
