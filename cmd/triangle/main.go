// Command triangle opens a window and draws a single colored triangle. A material instance tints
// the triangle and a light instance orbits a point light around it.
//
// Keys: Escape closes the window, R reloads assets/shaders/triangle.wgsl. The shader file is also
// reloaded whenever it changes on disk.
//
// Exit codes: 0 on a clean exit, -1 if the window cannot be created, -2 if the graphics backend
// cannot be initialized, 1 for any other startup failure.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/Carmen-Shannon/oxy-learn/common"
	"github.com/Carmen-Shannon/oxy-learn/engine"
	"github.com/Carmen-Shannon/oxy-learn/engine/instance"
	"github.com/Carmen-Shannon/oxy-learn/engine/light"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-learn/engine/scene"
	"github.com/Carmen-Shannon/oxy-learn/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	exitWindowFailure  = -1
	exitBackendFailure = -2
	exitStartupFailure = 1

	shaderPath = "assets/shaders/triangle.wgsl"

	// radians per second
	orbitSpeed = 1.2
)

// vertex matches the VertexInput struct in triangle.wgsl.
type vertex struct {
	Position [3]float32
	Color    [3]float32
}

var triangle = []vertex{
	{Position: [3]float32{-0.5, -0.5, 0}, Color: [3]float32{1, 0, 0}},
	{Position: [3]float32{0.5, -0.5, 0}, Color: [3]float32{0, 1, 0}},
	{Position: [3]float32{0, 0.5, 0}, Color: [3]float32{0, 0, 1}},
}

func main() {
	os.Exit(run())
}

// run builds everything, runs the frame loop and returns the process exit code.
func run() int {
	// ── Window ──────────────────────────────────────────────────────────
	win, err := window.NewWindow(
		window.WithTitle("oxy-learn - Triangle"),
		window.WithSize(800, 600),
	)
	if err != nil {
		log.Printf("[Triangle] failed to create window: %v", err)
		return exitWindowFailure
	}

	// ── Shader + Pipeline ───────────────────────────────────────────────
	s, err := shader.NewShader("triangle", shaderPath)
	if err != nil {
		log.Printf("[Triangle] %v", err)
		_ = win.Close()
		return exitStartupFailure
	}
	p := pipeline.NewPipeline("triangle", s,
		pipeline.WithCullMode(wgpu.CullModeBack),
		pipeline.WithAlphaBlend(),
	)

	// ── Renderer ────────────────────────────────────────────────────────
	r, err := renderer.NewRenderer(win,
		renderer.WithPipeline(p),
		renderer.WithPresentMode(renderer.PresentModeVSync),
		renderer.WithClearColor(0.2, 0.3, 0.3, 1.0),
	)
	if err != nil {
		log.Printf("[Triangle] %v", err)
		_ = win.Close()
		if errors.Is(err, renderer.ErrBackendInit) {
			return exitBackendFailure
		}
		return exitStartupFailure
	}

	mesh := bind_group_provider.NewBindGroupProvider("triangle_mesh")
	if err := r.InitMeshBuffers(mesh, common.SliceToBytes(triangle), len(triangle)); err != nil {
		log.Printf("[Triangle] %v", err)
		r.Release()
		_ = win.Close()
		return exitStartupFailure
	}

	// ── Scene ───────────────────────────────────────────────────────────
	sc := scene.NewScene("triangle",
		scene.WithInstances(newTintInstance(p), newLampInstance(p)),
	)

	opts := []engine.EngineBuilderOption{
		engine.WithWindow(win),
		engine.WithRenderer(r),
		engine.WithScene(0, sc),
		engine.WithDrawable(p, mesh),
		engine.WithProfiling(false),
	}
	if w, err := shader.NewWatcher(); err != nil {
		log.Printf("[Triangle] shader hot reload disabled: %v", err)
	} else {
		opts = append(opts, engine.WithShaderWatcher(w))
	}
	eng := engine.NewEngine(opts...)

	eng.SetKeyDownCallback(func(keyCode uint32) {
		if keyCode == common.KeyP {
			eng.EnableProfiler()
		}
	})

	fmt.Println("╔══════════════════════════════════════════════════════╗")
	fmt.Println("║  oxy-learn - Triangle                                ║")
	fmt.Println("╠══════════════════════════════════════════════════════╣")
	fmt.Println("║  Esc=Quit  R=Reload shader  P=Profiler               ║")
	fmt.Println("╚══════════════════════════════════════════════════════╝")

	eng.Run()
	return 0
}

// newTintInstance returns the triangle's material instance. It pushes the model matrix and a
// warm material into the "model" and "material" uniforms.
func newTintInstance(p pipeline.Pipeline) instance.Instance {
	return instance.New(p, "model", "material",
		instance.WithName("triangle"),
		instance.WithPayload(instance.MaterialPayload(material.NewMaterial(
			material.WithName("warm"),
			material.WithBaseColor(1.0, 0.9, 0.8, 1.0),
			material.WithSpecular(1, 1, 1, 32),
		))),
	)
}

// newLampInstance returns a light instance whose transform spins a point light around the z axis.
// The shader moves the light by "light_model" so the light record itself is never mutated.
func newLampInstance(p pipeline.Pipeline) instance.Instance {
	lamp := light.NewLight(light.LightTypePoint,
		light.WithName("lamp"),
		light.WithPosition(0.6, 0, 0.4),
		light.WithColor(1.0, 0.95, 0.8),
		light.WithIntensity(1.5),
		light.WithRange(2.0),
	)

	return instance.New(p, "light_model", "lights",
		instance.WithName("lamp"),
		instance.WithPayload(instance.LightPayload(lamp)),
		instance.WithUpdate(func(t *instance.Transform, dt float64) {
			t.Matrix = mgl32.HomogRotate3DZ(float32(dt * orbitSpeed)).Mul4(t.Matrix)
		}),
	)
}
