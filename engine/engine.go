package engine

import (
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-learn/common"
	"github.com/Carmen-Shannon/oxy-learn/engine/profiler"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-learn/engine/scene"
	"github.com/Carmen-Shannon/oxy-learn/engine/window"
)

// drawable is one mesh drawn with one pipeline every frame.
type drawable struct {
	p    pipeline.Pipeline
	mesh bind_group_provider.BindGroupProvider
}

// engine implements the Engine interface.
// Everything runs on the thread that called Run: the window's message loop calls frame once
// per iteration.
type engine struct {
	mu sync.Mutex

	window   window.Window
	renderer renderer.Renderer
	watcher  shader.Watcher

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate  time.Duration
	tickAccumulator time.Duration
	tickCallback    func(deltaTime float32)
	renderCallback  func(deltaTime float32)
	keyDownCallback func(keyCode uint32)

	scenes    map[int]scene.Scene
	drawables []drawable

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	reloadRequested atomic.Bool
	quitRequested   atomic.Bool
	lastFrame       time.Time
	lastFrameErr    string
}

// Engine is the main entry point for the engine.
// It owns the frame loop: poll input, reload changed shaders, tick, update scenes, push their
// instances, draw and present.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer frames are drawn with.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	// The tick callback is called at this fixed rate from the frame loop.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the tick length in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each frame is presented.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetKeyDownCallback registers a function receiving key presses. R is handled by the engine
	// first (shader reload) and then forwarded.
	//
	// Parameters:
	//   - callback: function receiving the key code (see common.Key*)
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddScene registers a scene at the given z-index key.
	// Scenes are drawn in ascending key order.
	//
	// Parameters:
	//   - key: the z-index determining render order (lower renders first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to retrieve
	//
	// Returns:
	//   - scene.Scene: the scene at the key, or nil if not found
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	//
	// Returns:
	//   - map[int]scene.Scene: a copy of the scenes map
	Scenes() map[int]scene.Scene

	// AddDrawable draws mesh with p every frame. Before the draw, every active scene pushes the
	// instances bound to p.
	//
	// Parameters:
	//   - p: a pipeline registered with the renderer
	//   - mesh: the provider holding the vertex buffer
	AddDrawable(p pipeline.Pipeline, mesh bind_group_provider.BindGroupProvider)

	// RequestReload asks the loop to reload every shader backing a registered pipeline and rebuild
	// the pipelines that changed, at the start of the next frame. A failed reload is logged and
	// the previous program keeps drawing.
	RequestReload()

	// Run starts the frame loop on the calling thread and blocks until the window closes.
	// On return the scenes, the shader watcher, the renderer and the window are released.
	Run()

	// Quit asks the frame loop to stop after the current frame.
	// Safe to call multiple times and from any goroutine.
	Quit()
}

// NewEngine creates a new Engine with the provided options. A window and a renderer are required;
// NewEngine panics without them.
//
// Parameters:
//   - options: functional options for engine configuration (window, renderer, profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		scenes:           make(map[int]scene.Scene),
		profiler:         profiler.NewProfiler(),
		profilingEnabled: false,
		engineTickRate:   time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window == nil {
		panic("engine: NewEngine requires a window (WithWindow)")
	}
	if e.renderer == nil {
		panic("engine: NewEngine requires a renderer (WithRenderer)")
	}

	e.window.SetResizeCallback(func(width, height int) {
		e.renderer.Resize(width, height)
	})
	e.window.SetKeyDownCallback(e.handleKeyDown)

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Run() {
	if e.watcher != nil {
		for _, p := range e.renderer.Pipelines() {
			if err := e.watcher.Add(p.Shader()); err != nil {
				log.Printf("[Engine] not watching shader %q: %v", p.Shader().Key(), err)
			}
		}
	}

	e.lastFrame = time.Now()
	e.window.SetUpdateCallback(e.frame)
	e.window.ProcessMessages()
	e.shutdown()
}

func (e *engine) Quit() {
	e.quitRequested.Store(true)
}

func (e *engine) RequestReload() {
	e.reloadRequested.Store(true)
}

// handleKeyDown reloads shaders on R and forwards every key to the user callback.
func (e *engine) handleKeyDown(keyCode uint32) {
	if keyCode == common.KeyR {
		e.RequestReload()
	}
	e.mu.Lock()
	cb := e.keyDownCallback
	e.mu.Unlock()
	if cb != nil {
		cb(keyCode)
	}
}

// frame runs one iteration of the loop.
func (e *engine) frame() {
	if e.quitRequested.Load() {
		e.window.RequestClose()
		return
	}

	now := time.Now()
	elapsed := now.Sub(e.lastFrame)
	e.lastFrame = now
	dt := elapsed.Seconds()

	e.reloadShaders()
	e.tick(elapsed)

	scenes := e.activeScenes()
	for _, s := range scenes {
		s.Update(dt)
	}

	e.mu.Lock()
	drawables := make([]drawable, len(e.drawables))
	copy(drawables, e.drawables)
	e.mu.Unlock()

	if err := e.renderer.BeginFrame(); err != nil {
		e.logFrameError("begin frame", err)
	} else {
		for _, s := range scenes {
			for _, d := range drawables {
				if err := s.Push(e.renderer.Bind(d.p)); err != nil {
					e.logFrameError("push", err)
				}
				if err := e.renderer.Draw(d.p, d.mesh); err != nil {
					e.logFrameError("draw", err)
				}
			}
		}
		e.renderer.EndFrame()
		e.renderer.Present()
	}

	e.mu.Lock()
	renderCallback := e.renderCallback
	profiling := e.profilingEnabled
	limit := e.renderFrameLimit
	e.mu.Unlock()

	if renderCallback != nil {
		renderCallback(float32(dt))
	}

	if profiling && e.profiler != nil {
		e.profiler.Tick()
	}

	if limit > 0 {
		if remaining := limit - time.Since(now); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

// tick calls the tick callback once per whole tick period contained in the accumulated frame time.
func (e *engine) tick(elapsed time.Duration) {
	e.mu.Lock()
	cb := e.tickCallback
	rate := e.engineTickRate
	e.mu.Unlock()
	if cb == nil {
		return
	}

	e.tickAccumulator += elapsed
	for e.tickAccumulator >= rate {
		cb(float32(rate.Seconds()))
		e.tickAccumulator -= rate
	}
}

// reloadShaders reloads the shaders that were requested or reported dirty by the watcher and
// rebuilds their pipelines. Runs on the render thread.
func (e *engine) reloadShaders() {
	all := e.reloadRequested.Swap(false)
	dirty := make(map[string]bool)
	if e.watcher != nil {
		for _, key := range e.watcher.Dirty() {
			dirty[key] = true
		}
	}
	if !all && len(dirty) == 0 {
		return
	}

	seen := make(map[string]bool)
	for _, p := range e.renderer.Pipelines() {
		s := p.Shader()
		if seen[s.Key()] || s.Path() == "" || (!all && !dirty[s.Key()]) {
			continue
		}
		seen[s.Key()] = true
		if err := s.Reload(); err != nil {
			log.Printf("[Engine] shader reload failed, keeping previous program: %v", err)
			continue
		}
		log.Printf("[Engine] reloaded shader %q (v%d)", s.Key(), s.Version())
	}

	rebuilt, err := e.renderer.RebuildStale()
	if err != nil {
		log.Printf("[Engine] pipeline rebuild failed, keeping previous program: %v", err)
	}
	for _, key := range rebuilt {
		log.Printf("[Engine] rebuilt pipeline %q", key)
	}
}

// logFrameError logs a per-frame error once, until a different error occurs.
func (e *engine) logFrameError(stage string, err error) {
	msg := stage + ": " + err.Error()
	if msg == e.lastFrameErr {
		return
	}
	e.lastFrameErr = msg
	log.Printf("[Engine] %s", msg)
}

// activeScenes returns the active scenes in ascending key order.
func (e *engine) activeScenes() []scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys := make([]int, 0, len(e.scenes))
	for k := range e.scenes {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	active := make([]scene.Scene, 0, len(keys))
	for _, k := range keys {
		if s := e.scenes[k]; s.Active() {
			active = append(active, s)
		}
	}
	return active
}

// shutdown releases everything the engine owns once the loop has exited.
func (e *engine) shutdown() {
	e.mu.Lock()
	scenes := make([]scene.Scene, 0, len(e.scenes))
	for _, s := range e.scenes {
		scenes = append(scenes, s)
	}
	e.mu.Unlock()

	for _, s := range scenes {
		s.Close()
	}
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			log.Printf("[Engine] failed to close shader watcher: %v", err)
		}
	}
	e.renderer.Release()
	if err := e.window.Close(); err != nil {
		log.Printf("[Engine] failed to close window: %v", err)
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in ticks per second.
func (e *engine) SetTickRate(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.engineTickRate = tickPeriod(fps)
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderCallback = callback
}

func (e *engine) SetKeyDownCallback(callback func(keyCode uint32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keyDownCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderFrameLimit = framePeriod(fps)
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make(map[int]scene.Scene, len(e.scenes))
	for k, v := range e.scenes {
		cp[k] = v
	}
	return cp
}

func (e *engine) AddDrawable(p pipeline.Pipeline, mesh bind_group_provider.BindGroupProvider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drawables = append(e.drawables, drawable{p: p, mesh: mesh})
}

// tickPeriod converts a tick rate to a period; rates <= 0 mean 60Hz.
func tickPeriod(fps float64) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(float64(time.Second) / fps)
}

// framePeriod converts a frame cap to a minimum frame duration; caps <= 0 mean uncapped.
func framePeriod(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
