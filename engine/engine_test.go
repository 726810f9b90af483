package engine

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-learn/common"
	"github.com/Carmen-Shannon/oxy-learn/engine/instance"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-learn/engine/scene"
	"github.com/Carmen-Shannon/oxy-learn/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flatSource = `
@group(0) @binding(0) var<uniform> model: mat4x4<f32>;
@group(0) @binding(1) var<uniform> material: vec4<f32>;

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
    return model * vec4<f32>(position, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return material;
}
`

// fakeWindow runs the update callback a fixed number of times, or until RequestClose.
type fakeWindow struct {
	frames int
	ran    int

	update  func()
	resize  func(width, height int)
	keyDown func(keyCode uint32)

	closeRequested bool
	closed         bool
}

var _ window.Window = &fakeWindow{}

func (w *fakeWindow) SetUpdateCallback(cb func()) { w.update = cb }
func (w *fakeWindow) SetResizeCallback(cb func(width, height int)) { w.resize = cb }
func (w *fakeWindow) SetKeyDownCallback(cb func(keyCode uint32)) { w.keyDown = cb }
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (w *fakeWindow) IsRunning() bool { return !w.closed }
func (w *fakeWindow) RequestClose() { w.closeRequested = true }
func (w *fakeWindow) Title() string { return "fake" }
func (w *fakeWindow) Width() int { return 800 }
func (w *fakeWindow) Height() int { return 600 }
func (w *fakeWindow) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWindow) ProcessMessages() {
	for w.ran < w.frames && !w.closeRequested {
		w.ran++
		if w.update != nil {
			w.update()
		}
	}
}

// fakeTarget gives every uniform name its own binding and records the names written.
type fakeTarget struct {
	id     uint64
	names  map[shader.UniformLocation]string
	writes *[]string
}

func (t *fakeTarget) ProgramID() uint64 { return t.id }

func (t *fakeTarget) Location(name string) (shader.UniformLocation, error) {
	loc := shader.UniformLocation{Binding: len(t.names), Size: 1024}
	t.names[loc] = name
	return loc, nil
}

func (t *fakeTarget) Write(loc shader.UniformLocation, data []byte) error {
	*t.writes = append(*t.writes, t.names[loc])
	return nil
}

// fakeRenderer records the calls the frame loop makes, as one ordered log.
type fakeRenderer struct {
	pipelines map[string]pipeline.Pipeline
	calls     []string
	writes    []string
	sizes     [][2]int
	rebuilds  int
	beginErr  error
	drawErr   error
	released  bool
}

var _ renderer.Renderer = &fakeRenderer{}

func newFakeRenderer(ps ...pipeline.Pipeline) *fakeRenderer {
	r := &fakeRenderer{pipelines: make(map[string]pipeline.Pipeline)}
	for _, p := range ps {
		r.pipelines[p.PipelineKey()] = p
	}
	return r
}

func (r *fakeRenderer) Pipeline(key string) pipeline.Pipeline { return r.pipelines[key] }

func (r *fakeRenderer) Pipelines() map[string]pipeline.Pipeline {
	cp := make(map[string]pipeline.Pipeline, len(r.pipelines))
	for k, v := range r.pipelines {
		cp[k] = v
	}
	return cp
}

func (r *fakeRenderer) RegisterPipeline(p pipeline.Pipeline) error {
	r.pipelines[p.PipelineKey()] = p
	return nil
}

func (r *fakeRenderer) RebuildStale() ([]string, error) {
	r.rebuilds++
	return nil, nil
}

func (r *fakeRenderer) InitMeshBuffers(bind_group_provider.BindGroupProvider, []byte, int) error {
	return nil
}

func (r *fakeRenderer) InitTexture(pipeline.Pipeline, int, int, *common.TextureRef) error {
	return nil
}

func (r *fakeRenderer) Bind(p pipeline.Pipeline) instance.Target {
	r.calls = append(r.calls, "bind:"+p.PipelineKey())
	return &fakeTarget{id: p.ID(), names: make(map[shader.UniformLocation]string), writes: &r.writes}
}

func (r *fakeRenderer) Flush() {}

func (r *fakeRenderer) BeginFrame() error {
	r.calls = append(r.calls, "begin")
	return r.beginErr
}

func (r *fakeRenderer) Draw(p pipeline.Pipeline, _ bind_group_provider.BindGroupProvider) error {
	r.calls = append(r.calls, "draw:"+p.PipelineKey())
	return r.drawErr
}

func (r *fakeRenderer) EndFrame() { r.calls = append(r.calls, "end") }
func (r *fakeRenderer) Present() { r.calls = append(r.calls, "present") }
func (r *fakeRenderer) Resize(width, height int) { r.sizes = append(r.sizes, [2]int{width, height}) }
func (r *fakeRenderer) SetPresentMode(renderer.PresentMode) {}
func (r *fakeRenderer) SetClearColor(renderer.ClearColor) {}
func (r *fakeRenderer) Release() { r.released = true }

// fakeWatcher reports a fixed set of dirty keys once.
type fakeWatcher struct {
	added  []string
	dirty  []string
	closed bool
}

func (w *fakeWatcher) Add(s shader.Shader) error {
	w.added = append(w.added, s.Key())
	return nil
}

func (w *fakeWatcher) Dirty() []string {
	d := w.dirty
	w.dirty = nil
	return d
}

func (w *fakeWatcher) Close() error {
	w.closed = true
	return nil
}

func newFilePipeline(t *testing.T, key string) (pipeline.Pipeline, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), key+".wgsl")
	require.NoError(t, os.WriteFile(path, []byte(flatSource), 0o644))
	s, err := shader.NewShader(key, path)
	require.NoError(t, err)
	return pipeline.NewPipeline(key, s), path
}

func newTintedInstance(p pipeline.Pipeline) instance.Instance {
	return instance.New(p, "model", "material",
		instance.WithPayload(instance.MaterialPayload(material.NewMaterial())),
	)
}

func TestNewEngineRequiresWindowAndRenderer(t *testing.T) {
	assert.Panics(t, func() { NewEngine(WithRenderer(newFakeRenderer())) })
	assert.Panics(t, func() { NewEngine(WithWindow(&fakeWindow{})) })
}

func TestRunDrawsEachFrameAndReleases(t *testing.T) {
	p, _ := newFilePipeline(t, "flat")
	r := newFakeRenderer(p)
	w := &fakeWindow{frames: 2}
	s := scene.NewScene("main", scene.WithInstances(newTintedInstance(p)))

	e := NewEngine(WithWindow(w), WithRenderer(r), WithScene(0, s), WithDrawable(p, nil))

	var rendered int
	e.SetRenderCallback(func(float32) { rendered++ })
	e.Run()

	frame := []string{"begin", "bind:flat", "draw:flat", "end", "present"}
	assert.Equal(t, append(append([]string{}, frame...), frame...), r.calls)
	assert.Equal(t, []string{"model", "material", "model", "material"}, r.writes)
	assert.Equal(t, 2, rendered)
	assert.True(t, r.released)
	assert.True(t, w.closed)
}

func TestInactiveScenesAreSkipped(t *testing.T) {
	p, _ := newFilePipeline(t, "flat")
	r := newFakeRenderer(p)
	w := &fakeWindow{frames: 1}
	s := scene.NewScene("hidden", scene.WithActive(false), scene.WithInstances(newTintedInstance(p)))

	NewEngine(WithWindow(w), WithRenderer(r), WithScene(0, s), WithDrawable(p, nil)).Run()

	assert.Equal(t, []string{"begin", "end", "present"}, r.calls)
	assert.Empty(t, r.writes)
}

func TestScenesDrawInKeyOrder(t *testing.T) {
	p, _ := newFilePipeline(t, "flat")
	r := newFakeRenderer(p)
	w := &fakeWindow{frames: 1}
	back := scene.NewScene("back")
	defer back.Close()
	front := scene.NewScene("front")
	defer front.Close()

	e := NewEngine(WithWindow(w), WithRenderer(r), WithScene(10, front), WithScene(-1, back))
	assert.Equal(t, []scene.Scene{back, front}, e.(*engine).activeScenes())

	e.RemoveScene(10)
	assert.Nil(t, e.Scene(10))
	assert.Len(t, e.Scenes(), 1)
}

func TestBeginFrameErrorSkipsDrawing(t *testing.T) {
	p, _ := newFilePipeline(t, "flat")
	r := newFakeRenderer(p)
	r.beginErr = errors.New("surface lost")
	w := &fakeWindow{frames: 2}

	NewEngine(WithWindow(w), WithRenderer(r), WithDrawable(p, nil),
		WithScene(0, scene.NewScene("main"))).Run()

	assert.Equal(t, []string{"begin", "begin"}, r.calls)
}

func TestQuitRequestsClose(t *testing.T) {
	r := newFakeRenderer()
	w := &fakeWindow{frames: 100}
	e := NewEngine(WithWindow(w), WithRenderer(r))

	frames := 0
	e.SetRenderCallback(func(float32) {
		frames++
		if frames == 3 {
			e.Quit()
		}
	})
	e.Run()

	assert.Equal(t, 3, frames)
	assert.Equal(t, 4, w.ran)
	assert.True(t, w.closeRequested)
}

func TestKeyRReloadsShadersAndForwards(t *testing.T) {
	p, path := newFilePipeline(t, "flat")
	r := newFakeRenderer(p)
	w := &fakeWindow{frames: 1}
	e := NewEngine(WithWindow(w), WithRenderer(r))

	var keys []uint32
	e.SetKeyDownCallback(func(k uint32) { keys = append(keys, k) })

	require.NoError(t, os.WriteFile(path, []byte(flatSource+"\n// edited\n"), 0o644))
	before := p.Shader().Version()
	w.keyDown(common.KeyR)
	w.keyDown(common.KeyP)
	e.Run()

	assert.Equal(t, []uint32{common.KeyR, common.KeyP}, keys)
	assert.Equal(t, before+1, p.Shader().Version())
	assert.Equal(t, 1, r.rebuilds)
}

func TestFailedReloadKeepsPreviousSource(t *testing.T) {
	p, path := newFilePipeline(t, "flat")
	r := newFakeRenderer(p)
	w := &fakeWindow{frames: 1}
	e := NewEngine(WithWindow(w), WithRenderer(r))

	require.NoError(t, os.WriteFile(path, []byte("not a shader"), 0o644))
	before := p.Shader().Version()
	e.RequestReload()
	e.Run()

	assert.Equal(t, before, p.Shader().Version())
	assert.Equal(t, flatSource, p.Shader().Source())
	assert.Equal(t, 1, r.rebuilds)
}

func TestWatcherReloadsOnlyDirtyShaders(t *testing.T) {
	a, pathA := newFilePipeline(t, "a")
	b, pathB := newFilePipeline(t, "b")
	r := newFakeRenderer(a, b)
	w := &fakeWindow{frames: 2}
	watch := &fakeWatcher{dirty: []string{"b"}}

	require.NoError(t, os.WriteFile(pathA, []byte(flatSource+"\n"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte(flatSource+"\n"), 0o644))
	va, vb := a.Shader().Version(), b.Shader().Version()

	NewEngine(WithWindow(w), WithRenderer(r), WithShaderWatcher(watch)).Run()

	sort.Strings(watch.added)
	assert.Equal(t, []string{"a", "b"}, watch.added)
	assert.Equal(t, va, a.Shader().Version())
	assert.Equal(t, vb+1, b.Shader().Version())
	assert.Equal(t, 1, r.rebuilds)
	assert.True(t, watch.closed)
}

func TestResizeForwardsToRenderer(t *testing.T) {
	r := newFakeRenderer()
	w := &fakeWindow{}
	NewEngine(WithWindow(w), WithRenderer(r))

	w.resize(1024, 768)
	assert.Equal(t, [][2]int{{1024, 768}}, r.sizes)
}

func TestTickRunsAtFixedRate(t *testing.T) {
	e := NewEngine(WithWindow(&fakeWindow{}), WithRenderer(newFakeRenderer()), WithTickRate(10)).(*engine)

	var ticks []float32
	e.SetTickCallback(func(dt float32) { ticks = append(ticks, dt) })

	e.tick(250 * time.Millisecond)
	assert.Len(t, ticks, 2)
	e.tick(50 * time.Millisecond)
	assert.Len(t, ticks, 3)
	assert.InDelta(t, 0.1, ticks[0], 1e-6)
}

func TestPeriods(t *testing.T) {
	assert.Equal(t, tickPeriod(60), tickPeriod(0))
	assert.Zero(t, framePeriod(0))
	assert.Equal(t, time.Second/120, framePeriod(120))
}
