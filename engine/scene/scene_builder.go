package scene

import (
	"github.com/Carmen-Shannon/oxy-learn/engine/instance"
	"github.com/Carmen-Shannon/oxy-learn/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering. Scenes are active by default.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithAmbient sets the ambient light color of the scene.
//
// Parameters:
//   - r, g, b: the color components
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithAmbient(r, g, b float32) SceneBuilderOption {
	return func(s *scene) {
		s.ambient = mgl32.Vec3{r, g, b}
	}
}

// WithInstances adds initial instances to the scene, in order.
//
// Parameters:
//   - instances: the instances to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithInstances(instances ...instance.Instance) SceneBuilderOption {
	return func(s *scene) {
		s.addLocked(instances...)
	}
}

// WithLights adds initial light sources to the scene, in order.
//
// Parameters:
//   - lights: the lights to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLights(lights ...light.Light) SceneBuilderOption {
	return func(s *scene) {
		s.addLightsLocked(lights...)
	}
}

// WithUpdateWorkers sets the number of worker goroutines used by Update.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of update workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithUpdateWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.updateWorkers = n
	}
}
