package instance

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-learn/common"
	"github.com/Carmen-Shannon/oxy-learn/engine/light"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const programSource = `
struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) color: vec3<f32>,
};

struct VertexOutput {
    @builtin(position) clip: vec4<f32>,
    @location(0) color: vec3<f32>,
};

@group(0) @binding(0) var<uniform> model: mat4x4<f32>;
@group(0) @binding(1) var<uniform> material: Material;
@group(0) @binding(2) var<uniform> lights: array<Light, 4>;
@group(1) @binding(0) var<uniform> sun: Light;

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.clip = model * vec4<f32>(in.position, 1.0);
    out.color = in.color;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(in.color, 1.0) * material.base_color;
}
`

type fakeProgram uint64

func (p fakeProgram) ID() uint64 { return uint64(p) }

// fakeTarget backs every uniform of a parsed shader with a CPU byte slice.
type fakeTarget struct {
	id      uint64
	s       shader.Shader
	buffers map[[2]int][]byte
	writes  int
}

func newFakeTarget(t *testing.T, id uint64) *fakeTarget {
	t.Helper()
	s, err := shader.NewShaderFromSource("program", material.GPUMaterialSource+light.GPULightSource+programSource)
	require.NoError(t, err)

	ft := &fakeTarget{id: id, s: s, buffers: make(map[[2]int][]byte)}
	for _, u := range s.Uniforms() {
		ft.buffers[[2]int{u.Group, u.Binding}] = make([]byte, u.Size)
	}
	return ft
}

func (f *fakeTarget) ProgramID() uint64 { return f.id }

func (f *fakeTarget) Location(name string) (shader.UniformLocation, error) {
	return f.s.Location(name)
}

func (f *fakeTarget) Write(loc shader.UniformLocation, data []byte) error {
	if uint64(len(data)) > loc.Size {
		return fmt.Errorf("%d bytes exceed %s", len(data), loc)
	}
	buf := f.buffers[[2]int{loc.Group, loc.Binding}]
	copy(buf[loc.Offset:], data)
	f.writes++
	return nil
}

func (f *fakeTarget) read(t *testing.T, name string) []byte {
	t.Helper()
	loc, err := f.s.Location(name)
	require.NoError(t, err)
	return f.buffers[[2]int{loc.Group, loc.Binding}][loc.Offset : loc.Offset+loc.Size]
}

func marshalMaterial(m material.Material) []byte {
	g := material.ToGPU(m)
	return g.Marshal()
}

func marshalLight(l light.Light) []byte {
	g := light.ToGPU(l)
	return g.Marshal()
}

func TestPushMaterial(t *testing.T) {
	target := newFakeTarget(t, 7)
	m := material.NewMaterial(material.WithBaseColor(1, 0.5, 0.25, 1))
	model := mgl32.Translate3D(1, 2, 3)

	inst := New(fakeProgram(7), "model", "material",
		WithName("tinted"),
		WithMatrix(model),
		WithPayload(MaterialPayload(m)),
	)
	require.NoError(t, inst.Push(target))

	assert.Equal(t, 2, target.writes)
	assert.Equal(t, common.Mat4ToBytes(model), target.read(t, "model"))
	assert.Equal(t, marshalMaterial(m), target.read(t, "material"))
}

func TestPushLightsZeroFillsRemainingSlots(t *testing.T) {
	target := newFakeTarget(t, 1)
	a := light.NewLight(light.LightTypePoint, light.WithPosition(1, 0, 0))
	b := light.NewLight(light.LightTypeSpot, light.WithPosition(0, 1, 0))
	c := light.NewLight(light.LightTypeDirectional)

	inst := New(fakeProgram(1), "model", "lights", WithPayload(LightPayload(a, b, c)))
	require.NoError(t, inst.Push(target))
	assert.Equal(t, 1+4, target.writes)
	assert.Equal(t, marshalLight(b), target.read(t, "lights[1]"))

	inst.Bind(LightPayload(b))
	require.NoError(t, inst.Push(target))

	assert.Equal(t, marshalLight(b), target.read(t, "lights[0]"))
	zero := make([]byte, light.GPULightSize)
	for idx := 1; idx < 4; idx++ {
		assert.Equal(t, zero, target.read(t, fmt.Sprintf("lights[%d]", idx)), "slot %d", idx)
	}
}

func TestPushTooManyLightsWritesNothing(t *testing.T) {
	target := newFakeTarget(t, 1)
	lights := make([]light.Light, 5)
	for idx := range lights {
		lights[idx] = light.NewLight(light.LightTypePoint)
	}

	inst := New(fakeProgram(1), "model", "lights", WithPayload(LightPayload(lights...)))
	err := inst.Push(target)
	assert.ErrorIs(t, err, shader.ErrIndexOutOfRange)
	assert.Zero(t, target.writes)
}

func TestPushSingleLightUniform(t *testing.T) {
	target := newFakeTarget(t, 1)
	sun := light.NewLight(light.LightTypeDirectional, light.WithIntensity(2))

	inst := New(fakeProgram(1), "model", "sun", WithPayload(LightPayload(sun)))
	require.NoError(t, inst.Push(target))
	assert.Equal(t, marshalLight(sun), target.read(t, "sun"))

	inst.Bind(LightPayload(sun, sun))
	assert.ErrorIs(t, inst.Push(target), shader.ErrIndexOutOfRange)
}

func TestPushProgramMismatchWritesNothing(t *testing.T) {
	target := newFakeTarget(t, 2)
	inst := New(fakeProgram(1), "model", "material", WithPayload(MaterialPayload(material.NewMaterial())))

	err := inst.Push(target)
	assert.ErrorIs(t, err, ErrProgramMismatch)
	assert.Zero(t, target.writes)
}

func TestPushWithoutPayload(t *testing.T) {
	target := newFakeTarget(t, 1)
	inst := New(fakeProgram(1), "model", "material")

	assert.ErrorIs(t, inst.Push(target), ErrNoPayload)
	assert.Zero(t, target.writes)

	inst.Bind(MaterialPayload(nil))
	assert.ErrorIs(t, inst.Push(target), ErrNoPayload)
}

func TestPushMismatchCheckedBeforePayload(t *testing.T) {
	target := newFakeTarget(t, 2)
	inst := New(fakeProgram(1), "model", "material")
	assert.ErrorIs(t, inst.Push(target), ErrProgramMismatch)
}

func TestPushUnknownUniformWritesNothing(t *testing.T) {
	target := newFakeTarget(t, 1)

	inst := New(fakeProgram(1), "model", "missing", WithPayload(MaterialPayload(material.NewMaterial())))
	assert.ErrorIs(t, inst.Push(target), shader.ErrUniformNotFound)

	inst = New(fakeProgram(1), "world", "material", WithPayload(MaterialPayload(material.NewMaterial())))
	assert.ErrorIs(t, inst.Push(target), shader.ErrUniformNotFound)
	assert.Zero(t, target.writes)
}

func TestPushOversizedPayloadWritesNothing(t *testing.T) {
	target := newFakeTarget(t, 1)

	// a 64 byte light into the 48 byte material uniform
	lamp := light.NewLight(light.LightTypePoint)
	inst := New(fakeProgram(1), "model", "material", WithPayload(LightPayload(lamp)))
	assert.ErrorIs(t, inst.Push(target), ErrWriteTooLarge)
	assert.Zero(t, target.writes)

	// a 64 byte transform into the same uniform
	inst = New(fakeProgram(1), "material", "material", WithPayload(MaterialPayload(material.NewMaterial())))
	assert.ErrorIs(t, inst.Push(target), ErrWriteTooLarge)
	assert.Zero(t, target.writes)
}

func TestLastBoundPayloadWins(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	target := newFakeTarget(t, 1)

	materials := []material.Material{
		material.NewMaterial(material.WithName("red"), material.WithBaseColor(1, 0, 0, 1)),
		material.NewMaterial(material.WithName("green"), material.WithBaseColor(0, 1, 0, 1)),
		material.NewMaterial(material.WithName("blue"), material.WithBaseColor(0, 0, 1, 1), material.WithSpecular(1, 1, 1, 64)),
	}
	inst := New(fakeProgram(1), "model", "material")

	for round := 0; round < 200; round++ {
		var last material.Material
		for n := 1 + rng.Intn(5); n > 0; n-- {
			last = materials[rng.Intn(len(materials))]
			inst.Bind(MaterialPayload(last))
		}
		require.NoError(t, inst.Push(target))
		require.True(t, bytes.Equal(marshalMaterial(last), target.read(t, "material")),
			"round %d: expected %s", round, last.Name())
	}
}

func TestLastBoundLightPayloadWins(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	target := newFakeTarget(t, 1)
	pool := []light.Light{
		light.NewLight(light.LightTypePoint, light.WithColor(1, 0, 0)),
		light.NewLight(light.LightTypeSpot, light.WithColor(0, 1, 0)),
		light.NewLight(light.LightTypeDirectional, light.WithColor(0, 0, 1)),
		light.NewLight(light.LightTypePoint, light.WithEnabled(false)),
	}
	inst := New(fakeProgram(1), "model", "lights")

	for round := 0; round < 100; round++ {
		var last []light.Light
		for n := 1 + rng.Intn(4); n > 0; n-- {
			last = make([]light.Light, 1+rng.Intn(4))
			for idx := range last {
				last[idx] = pool[rng.Intn(len(pool))]
			}
			inst.Bind(LightPayload(last...))
		}
		require.NoError(t, inst.Push(target))
		for idx := 0; idx < 4; idx++ {
			want := make([]byte, light.GPULightSize)
			if idx < len(last) {
				want = marshalLight(last[idx])
			}
			require.Equal(t, want, target.read(t, fmt.Sprintf("lights[%d]", idx)), "round %d slot %d", round, idx)
		}
	}
}

func TestRebind(t *testing.T) {
	first := newFakeTarget(t, 1)
	second := newFakeTarget(t, 2)
	m := material.NewMaterial()

	inst := New(fakeProgram(1), "model", "material", WithPayload(MaterialPayload(m)))
	require.NoError(t, inst.Push(first))

	inst.Rebind(fakeProgram(2))
	assert.Equal(t, uint64(2), inst.ProgramID())
	assert.ErrorIs(t, inst.Push(first), ErrProgramMismatch)
	require.NoError(t, inst.Push(second))
	assert.Equal(t, marshalMaterial(m), second.read(t, "material"))

	inst.Rebind(nil)
	assert.Equal(t, uint64(2), inst.ProgramID())
}

func TestUpdate(t *testing.T) {
	inst := New(fakeProgram(1), "model", "material",
		WithUpdate(func(tr *Transform, dt float64) {
			tr.Matrix = mgl32.Translate3D(float32(dt), 0, 0).Mul4(tr.Matrix)
		}),
	)
	inst.Update(0.5)
	inst.Update(0.25)

	tr := inst.Transform()
	assert.Equal(t, "model", tr.Name)
	assert.InDelta(t, 0.75, tr.Matrix.At(0, 3), 1e-6)

	still := New(fakeProgram(1), "model", "material")
	still.Update(1)
	assert.Equal(t, mgl32.Ident4(), still.Transform().Matrix)
}

func TestAccessors(t *testing.T) {
	inst := New(fakeProgram(3), "model", "lights", WithName("lamp"))
	assert.Equal(t, "lamp", inst.Name())
	assert.Equal(t, "model", inst.TransformName())
	assert.Equal(t, "lights", inst.PayloadName())
	assert.True(t, inst.Payload().IsZero())

	m := mgl32.Scale3D(2, 2, 2)
	inst.SetMatrix(m)
	assert.Equal(t, m, inst.Transform().Matrix)
}

func TestNewWithoutProgramPanics(t *testing.T) {
	assert.Panics(t, func() { New(nil, "model", "material") })
}

func TestPayloadConstructors(t *testing.T) {
	assert.True(t, MaterialPayload(nil).IsZero())
	assert.True(t, LightPayload().IsZero())
	assert.True(t, LightPayload(nil, nil).IsZero())

	m := material.NewMaterial()
	p := MaterialPayload(m)
	assert.Equal(t, PayloadMaterial, p.Kind())
	assert.Same(t, m, p.Material())
	assert.Nil(t, p.Lights())

	l := light.NewLight(light.LightTypePoint)
	p = LightPayload(nil, l)
	assert.Equal(t, PayloadLight, p.Kind())
	assert.Nil(t, p.Material())
	lights := p.Lights()
	require.Len(t, lights, 1)
	lights[0] = nil
	assert.NotNil(t, p.Lights()[0])
}

func TestPayloadKindString(t *testing.T) {
	assert.Equal(t, "none", PayloadNone.String())
	assert.Equal(t, "material", PayloadMaterial.String())
	assert.Equal(t, "light", PayloadLight.String())
	assert.Equal(t, "unknown", PayloadKind(9).String())
}

func TestConcurrentBindAndPush(t *testing.T) {
	target := newFakeTarget(t, 1)
	m := material.NewMaterial()
	inst := New(fakeProgram(1), "model", "material", WithPayload(MaterialPayload(m)))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				inst.Bind(MaterialPayload(m))
				inst.Update(0.01)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, inst.Push(target))
	assert.Equal(t, marshalMaterial(m), target.read(t, "material"))
}
