package instance

import (
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/shader"
)

// Program is the minimal view of a shader program an instance needs: a stable identity.
// pipeline.Pipeline satisfies it.
type Program interface {
	// ID returns the process-unique identifier of the program.
	ID() uint64
}

// Target is the non-owning handle through which an instance pushes uniforms into the currently
// bound shader program. The renderer hands one out per program via Renderer.Bind.
type Target interface {
	// ProgramID returns the ID of the program this target writes into.
	//
	// Returns:
	//   - uint64: the program ID
	ProgramID() uint64

	// Location resolves a uniform name, optionally indexed ("lights[2]"), against the program.
	//
	// Parameters:
	//   - name: the uniform name
	//
	// Returns:
	//   - shader.UniformLocation: the resolved location
	//   - error: shader.ErrUniformNotFound, shader.ErrNotArray or shader.ErrIndexOutOfRange
	Location(name string) (shader.UniformLocation, error)

	// Write stores data at loc. len(data) must not exceed loc.Size.
	//
	// Parameters:
	//   - loc: a location returned by Location
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: if the write cannot be staged
	Write(loc shader.UniformLocation, data []byte) error
}
