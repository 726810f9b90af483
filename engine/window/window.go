package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-learn/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// ErrWindowCreate wraps every failure to bring up the platform window.
var ErrWindowCreate = errors.New("failed to create window")

// ErrNotOpen is returned by Close on a window that was never opened.
var ErrNotOpen = errors.New("window is not open")

const (
	minWidth  = 320
	minHeight = 240
)

// Window provides platform windowing and input event handling.
// The Escape key is consumed by the window itself and closes it; it is never forwarded.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the callback for key press and repeat events.
	//
	// Parameters:
	//   - callback: function receiving the key code (see common.Key*)
	SetKeyDownCallback(callback func(keyCode uint32))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true until the window is asked to close.
	IsRunning() bool

	// RequestClose marks the window as closing. The message loop exits after the current
	// iteration; platform resources stay alive until Close.
	RequestClose()

	// Close destroys the window and terminates GLFW.
	//
	// Returns:
	//   - error: ErrNotOpen if the window was never opened
	Close() error

	// ProcessMessages runs the window message loop.
	// Blocks until the window is closed. Calls the update callback each iteration.
	ProcessMessages()

	Title() string

	// Width returns the current framebuffer width in pixels.
	Width() int

	// Height returns the current framebuffer height in pixels.
	Height() int
}

// engineWindow is a GLFW window with a WebGPU-capable surface.
type engineWindow struct {
	title string

	// width and height track the framebuffer size, which differs from the window size on high-DPI displays.
	width  int
	height int

	handle *glfw.Window
	closed bool

	onUpdate  func()
	onResize  func(width, height int)
	onKeyDown func(keyCode uint32)
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a new Window with the specified options.
// The calling goroutine is locked to its OS thread, which GLFW requires for every later call.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the spawned window
//   - error: an error wrapping ErrWindowCreate if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:  "oxy-learn",
		width:  800,
		height: 600,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := w.open(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWindowCreate, err)
	}
	return w, nil
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.handle == nil {
		return nil
	}
	return surfaceDescriptor(w.handle)
}

func (w *engineWindow) IsRunning() bool {
	return w.handle != nil && !w.closed && !w.handle.ShouldClose()
}

func (w *engineWindow) RequestClose() {
	if w.handle != nil && !w.closed {
		w.handle.SetShouldClose(true)
	}
}

func (w *engineWindow) Close() error {
	if w.handle == nil {
		return ErrNotOpen
	}
	if w.closed {
		return nil
	}
	w.closed = true
	w.handle.Destroy()
	glfw.Terminate()
	return nil
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		glfw.PollEvents()
		if !w.IsRunning() {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Title() string {
	return w.title
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}

// clampSize raises a requested size to the minimum window size.
func clampSize(width, height int) (int, int) {
	return max(width, minWidth), max(height, minHeight)
}

// handleKey routes a key press. Escape is swallowed and reports that the window should close.
func (w *engineWindow) handleKey(keyCode uint32) bool {
	if keyCode == common.KeyEsc {
		return true
	}
	if w.onKeyDown != nil {
		w.onKeyDown(keyCode)
	}
	return false
}

// resized records a new framebuffer size and forwards it.
func (w *engineWindow) resized(width, height int) {
	w.width, w.height = width, height
	if w.onResize != nil {
		w.onResize(width, height)
	}
}
