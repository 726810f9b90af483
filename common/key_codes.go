package common

// Virtual key codes delivered by the window key callbacks.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyP   = 80  // P key (ASCII), toggles the profiler
	KeyR   = 82  // R key (ASCII), shader reload in the tutorial programs
	KeyEsc = 256 // Escape key (GLFW), closes the window and is never forwarded
)
