package instance

import "github.com/go-gl/mathgl/mgl32"

// InstanceBuilderOption is a functional option used to configure an Instance during construction.
type InstanceBuilderOption func(*instance)

// WithName sets the debug name of the instance.
//
// Parameters:
//   - name: the name used in logs and errors
//
// Returns:
//   - InstanceBuilderOption: a function that sets the name
func WithName(name string) InstanceBuilderOption {
	return func(i *instance) {
		i.name = name
	}
}

// WithMatrix sets the initial model matrix.
//
// Parameters:
//   - m: the model matrix
//
// Returns:
//   - InstanceBuilderOption: a function that sets the matrix
func WithMatrix(m mgl32.Mat4) InstanceBuilderOption {
	return func(i *instance) {
		i.transform.Matrix = m
	}
}

// WithPayload binds an initial payload.
//
// Parameters:
//   - p: the payload
//
// Returns:
//   - InstanceBuilderOption: a function that binds the payload
func WithPayload(p Payload) InstanceBuilderOption {
	return func(i *instance) {
		i.payload = p
	}
}

// WithUpdate sets the per-frame update function.
//
// Parameters:
//   - fn: the update function
//
// Returns:
//   - InstanceBuilderOption: a function that sets the update function
func WithUpdate(fn UpdateFunc) InstanceBuilderOption {
	return func(i *instance) {
		i.update = fn
	}
}
