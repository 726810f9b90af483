package engine

import (
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-learn/engine/scene"
	"github.com/Carmen-Shannon/oxy-learn/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the engine tick rate in ticks per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.engineTickRate = tickPeriod(fps)
	}
}

// WithWindow sets the window the engine runs its loop on. Required.
//
// Parameters:
//   - w: a created Window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer sets the renderer frames are drawn with. Required.
//
// Parameters:
//   - r: a Renderer created for the engine's window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithShaderWatcher reloads shaders whose files change on disk. The engine adds the shader of
// every registered pipeline to the watcher when Run starts and closes it on shutdown.
//
// Parameters:
//   - w: the watcher
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithShaderWatcher(w shader.Watcher) EngineBuilderOption {
	return func(e *engine) {
		e.watcher = w
	}
}

// WithScene registers a scene at the given z-index key during engine construction.
// Scenes are drawn in ascending key order.
//
// Parameters:
//   - key: the z-index determining render order (lower renders first)
//   - s: the Scene to register
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(key int, s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scenes[key] = s
	}
}

// WithDrawable draws mesh with p every frame.
//
// Parameters:
//   - p: a pipeline registered with the renderer
//   - mesh: the provider holding the vertex buffer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithDrawable(p pipeline.Pipeline, mesh bind_group_provider.BindGroupProvider) EngineBuilderOption {
	return func(e *engine) {
		e.drawables = append(e.drawables, drawable{p: p, mesh: mesh})
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.renderFrameLimit = framePeriod(fps)
	}
}
