package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// open initializes GLFW and creates the window without a client API, since WebGPU brings its own.
//
// Reference: https://www.glfw.org/docs/latest/window_guide.html#window_hints_ctx
func (w *engineWindow) open() error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	width, height := clampSize(w.width, w.height)
	handle, err := glfw.CreateWindow(width, height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %w", err)
	}
	handle.SetSizeLimits(minWidth, minHeight, glfw.DontCare, glfw.DontCare)

	handle.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyUnknown || action == glfw.Release {
			return
		}
		if w.handleKey(uint32(key)) {
			handle.SetShouldClose(true)
		}
	})

	// the surface is sized in pixels, which is the framebuffer size on high-DPI displays
	handle.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.resized(width, height)
	})
	w.width, w.height = handle.GetFramebufferSize()
	w.handle = handle

	return nil
}

// surfaceDescriptor picks the native surface for the platform GLFW is running on.
func surfaceDescriptor(handle *glfw.Window) *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(handle)
}
