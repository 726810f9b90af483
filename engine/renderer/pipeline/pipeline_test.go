package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tintSource = `
@group(0) @binding(0) var<uniform> tint: vec4<f32>;
@group(2) @binding(0) var<uniform> model: mat4x4<f32>;
@vertex fn vs() -> @builtin(position) vec4<f32> { return model * tint; }
@fragment fn fs() -> @location(0) vec4<f32> { return tint; }
`

func newTestShader(t *testing.T) shader.Shader {
	t.Helper()
	s, err := shader.NewShaderFromSource("tint", tintSource)
	require.NoError(t, err)
	return s
}

func TestNewPipelineDefaults(t *testing.T) {
	s := newTestShader(t)
	p := NewPipeline("tint", s)

	assert.NotZero(t, p.ID())
	assert.Equal(t, "tint", p.PipelineKey())
	assert.Same(t, s, p.Shader())
	assert.Nil(t, p.RenderPipeline())
	assert.Nil(t, p.Blend())
	assert.Equal(t, wgpu.PrimitiveState{
		Topology:  wgpu.PrimitiveTopologyTriangleList,
		FrontFace: wgpu.FrontFaceCCW,
		CullMode:  wgpu.CullModeNone,
	}, p.Primitive())
}

func TestPipelineIDsAreUnique(t *testing.T) {
	s := newTestShader(t)
	a := NewPipeline("a", s)
	b := NewPipeline("b", s)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestNewPipelineNilShaderPanics(t *testing.T) {
	assert.Panics(t, func() { NewPipeline("bad", nil) })
}

func TestBuilderOptions(t *testing.T) {
	p := NewPipeline("tint", newTestShader(t),
		WithCullMode(wgpu.CullModeBack),
		WithAlphaBlend(),
	)
	assert.Equal(t, wgpu.CullModeBack, p.Primitive().CullMode)
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Primitive().Topology)
	require.NotNil(t, p.Blend())
	assert.Equal(t, wgpu.BlendFactorSrcAlpha, p.Blend().Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorOneMinusSrcAlpha, p.Blend().Color.DstFactor)
}

func TestLocationDelegatesToShader(t *testing.T) {
	p := NewPipeline("tint", newTestShader(t))

	loc, err := p.Location("model")
	require.NoError(t, err)
	assert.Equal(t, 2, loc.Group)
	assert.Equal(t, uint64(64), loc.Size)

	_, err = p.Location("nope")
	assert.ErrorIs(t, err, shader.ErrUniformNotFound)
}

func TestStaleTracksShaderVersion(t *testing.T) {
	p := NewPipeline("tint", newTestShader(t))
	assert.True(t, p.Stale())

	p.SetRenderPipeline(nil, p.Shader().Snapshot())
	assert.False(t, p.Stale())
}

func TestLocationUsesBuiltTableAfterReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tint.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(tintSource), 0o644))
	s, err := shader.NewShader("tint", path)
	require.NoError(t, err)

	p := NewPipeline("tint", s)
	p.SetRenderPipeline(nil, s.Snapshot())

	grown := `
@group(0) @binding(0) var<uniform> tint: array<vec4<f32>, 8>;
@group(1) @binding(0) var<uniform> extra: vec4<f32>;
@group(2) @binding(0) var<uniform> model: mat4x4<f32>;
@vertex fn vs() -> @builtin(position) vec4<f32> { return model * tint[0]; }
@fragment fn fs() -> @location(0) vec4<f32> { return tint[1] + extra; }
`
	require.NoError(t, os.WriteFile(path, []byte(grown), 0o644))
	require.NoError(t, s.Reload())
	assert.True(t, p.Stale())

	// the shader sees the new table, the pipeline keeps the one its buffers were built for
	live, err := s.Location("tint")
	require.NoError(t, err)
	assert.Equal(t, uint64(128), live.Size)

	loc, err := p.Location("tint")
	require.NoError(t, err)
	assert.Equal(t, uint64(16), loc.Size)
	_, err = p.Location("tint[1]")
	assert.ErrorIs(t, err, shader.ErrNotArray)
	_, err = p.Location("extra")
	assert.ErrorIs(t, err, shader.ErrUniformNotFound)

	_, ok := p.BindGroupLayout(1)
	assert.False(t, ok)
	_, ok = p.BindGroupLayout(0)
	assert.True(t, ok)

	p.SetRenderPipeline(nil, s.Snapshot())
	assert.False(t, p.Stale())
	loc, err = p.Location("tint[1]")
	require.NoError(t, err)
	assert.Equal(t, uint64(16), loc.Offset)
}

func TestBindGroupLayoutBeforeBuild(t *testing.T) {
	p := NewPipeline("tint", newTestShader(t))
	_, ok := p.BindGroupLayout(2)
	assert.True(t, ok)
	_, ok = p.BindGroupLayout(1)
	assert.False(t, ok)
}

func TestBindGroupProvidersOrderedByGroup(t *testing.T) {
	p := NewPipeline("tint", newTestShader(t))
	g0 := bind_group_provider.NewBindGroupProvider("g0")
	g2 := bind_group_provider.NewBindGroupProvider("g2")
	p.SetBindGroupProviders(map[int]bind_group_provider.BindGroupProvider{0: g0, 2: g2})

	ordered := p.BindGroupProviders()
	require.Len(t, ordered, 3)
	assert.Same(t, g0, ordered[0])
	assert.Nil(t, ordered[1])
	assert.Same(t, g2, ordered[2])
	assert.Same(t, g2, p.BindGroupProvider(2))
	assert.Nil(t, p.BindGroupProvider(1))

	p.Release()
	assert.Empty(t, p.BindGroupProviders())
}
