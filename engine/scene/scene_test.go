package scene

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxy-learn/engine/instance"
	"github.com/Carmen-Shannon/oxy-learn/engine/light"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProgram uint64

func (p fakeProgram) ID() uint64 { return uint64(p) }

// recordingTarget accepts any uniform name and records the names written, in order.
type recordingTarget struct {
	id      uint64
	written []string
	names   map[shader.UniformLocation]string
	missing string
}

func newRecordingTarget(id uint64) *recordingTarget {
	return &recordingTarget{id: id, names: make(map[shader.UniformLocation]string)}
}

func (r *recordingTarget) ProgramID() uint64 { return r.id }

func (r *recordingTarget) Location(name string) (shader.UniformLocation, error) {
	if name == r.missing {
		return shader.UniformLocation{}, shader.ErrUniformNotFound
	}
	loc := shader.UniformLocation{Binding: len(r.names), Size: 1024}
	r.names[loc] = name
	return loc, nil
}

func (r *recordingTarget) Write(loc shader.UniformLocation, data []byte) error {
	r.written = append(r.written, r.names[loc])
	return nil
}

func newMaterialInstance(name string, program uint64, payloadName string) instance.Instance {
	return instance.New(fakeProgram(program), "model", payloadName,
		instance.WithName(name),
		instance.WithPayload(instance.MaterialPayload(material.NewMaterial())),
	)
}

func TestNewSceneAssignsIncreasingIDs(t *testing.T) {
	a := NewScene("a")
	defer a.Close()
	b := NewScene("b")
	defer b.Close()

	assert.NotZero(t, a.ID())
	assert.Greater(t, b.ID(), a.ID())
	assert.Equal(t, "a", a.Name())
	assert.True(t, a.Active())
}

func TestSceneOptions(t *testing.T) {
	inst := newMaterialInstance("tri", 1, "material")
	sun := light.NewLight(light.LightTypeDirectional)

	s := NewScene("opts",
		WithActive(false),
		WithAmbient(0.2, 0.3, 0.4),
		WithInstances(inst, nil, inst),
		WithLights(sun, nil),
		WithUpdateWorkers(0),
	)
	defer s.Close()

	assert.False(t, s.Active())
	assert.Equal(t, mgl32.Vec3{0.2, 0.3, 0.4}, s.Ambient())
	assert.Equal(t, 1, s.Count())
	assert.Equal(t, []light.Light{sun}, s.Lights())

	s.SetName("renamed")
	s.SetActive(true)
	s.SetAmbient(0, 0, 0)
	assert.Equal(t, "renamed", s.Name())
	assert.True(t, s.Active())
	assert.Equal(t, mgl32.Vec3{}, s.Ambient())
}

func TestInstanceRegistry(t *testing.T) {
	s := NewScene("registry")
	defer s.Close()

	a := newMaterialInstance("a", 1, "material")
	b := newMaterialInstance("b", 1, "material")
	c := newMaterialInstance("c", 2, "material")
	s.Add(a, b, c)
	s.Add(b)

	require.Equal(t, 3, s.Count())
	assert.Equal(t, []instance.Instance{a, b, c}, s.Instances())
	assert.Same(t, b, s.Get("b"))
	assert.Nil(t, s.Get("missing"))

	assert.True(t, s.Remove(b))
	assert.False(t, s.Remove(b))
	assert.Equal(t, []instance.Instance{a, c}, s.Instances())

	s.AddLight(light.NewLight(light.LightTypePoint))
	s.Clear()
	assert.Zero(t, s.Count())
	assert.Empty(t, s.Lights())
}

func TestLightRegistry(t *testing.T) {
	s := NewScene("lights")
	defer s.Close()

	a := light.NewLight(light.LightTypePoint)
	b := light.NewLight(light.LightTypeSpot)
	s.AddLight(a, b)

	lights := s.Lights()
	lights[0] = nil
	assert.Equal(t, []light.Light{a, b}, s.Lights())

	assert.True(t, s.RemoveLight(a))
	assert.False(t, s.RemoveLight(a))
	assert.Equal(t, []light.Light{b}, s.Lights())
}

func TestUpdateRunsEveryInstance(t *testing.T) {
	s := NewScene("update", WithUpdateWorkers(4))
	defer s.Close()

	var calls atomic.Int64
	for i := 0; i < 64; i++ {
		s.Add(instance.New(fakeProgram(1), "model", "material",
			instance.WithUpdate(func(tr *instance.Transform, dt float64) {
				calls.Add(1)
				tr.Matrix = mgl32.Translate3D(float32(dt), 0, 0).Mul4(tr.Matrix)
			}),
		))
	}

	s.Update(0.5)
	assert.Equal(t, int64(64), calls.Load())
	s.Update(0.5)
	assert.Equal(t, int64(128), calls.Load())

	for _, inst := range s.Instances() {
		assert.InDelta(t, 1.0, inst.Transform().Matrix.At(0, 3), 1e-6)
	}
}

func TestUpdateEmptyScene(t *testing.T) {
	s := NewScene("empty")
	defer s.Close()
	assert.NotPanics(t, func() { s.Update(0.016) })
}

func TestPushInInsertionOrderForMatchingProgram(t *testing.T) {
	s := NewScene("push")
	defer s.Close()

	s.Add(
		newMaterialInstance("first", 1, "first_material"),
		newMaterialInstance("other", 2, "other_material"),
		newMaterialInstance("second", 1, "second_material"),
	)

	target := newRecordingTarget(1)
	require.NoError(t, s.Push(target))
	assert.Equal(t, []string{"model", "first_material", "model", "second_material"}, target.written)
}

func TestPushJoinsErrorsAndContinues(t *testing.T) {
	s := NewScene("errors")
	defer s.Close()

	s.Add(
		instance.New(fakeProgram(1), "model", "material", instance.WithName("empty")),
		newMaterialInstance("broken", 1, "missing"),
		newMaterialInstance("ok", 1, "material"),
	)

	target := newRecordingTarget(1)
	target.missing = "missing"
	err := s.Push(target)
	require.Error(t, err)
	assert.True(t, errors.Is(err, instance.ErrNoPayload))
	assert.True(t, errors.Is(err, shader.ErrUniformNotFound))
	assert.Equal(t, []string{"model", "material"}, target.written)
}
