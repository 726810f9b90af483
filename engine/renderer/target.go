package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-learn/engine/instance"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/shader"
)

var (
	// ErrWriteTooLarge is returned by a program target when data does not fit the resolved location.
	ErrWriteTooLarge = errors.New("write exceeds uniform size")

	// ErrNoBindGroup is returned by a program target when the program has no bind group for the
	// location's group, usually because the pipeline was never registered.
	ErrNoBindGroup = errors.New("program has no bind group")
)

// programTarget is the instance.Target handed out by Renderer.Bind. It does not own the pipeline;
// writes are staged on the renderer and flushed to the queue before the frame is submitted.
type programTarget struct {
	p     pipeline.Pipeline
	stage func(bind_group_provider.BufferWrite)
}

var _ instance.Target = &programTarget{}

func (t *programTarget) ProgramID() uint64 {
	return t.p.ID()
}

func (t *programTarget) Location(name string) (shader.UniformLocation, error) {
	return t.p.Location(name)
}

func (t *programTarget) Write(loc shader.UniformLocation, data []byte) error {
	if uint64(len(data)) > loc.Size {
		return fmt.Errorf("%w: %d bytes into %s", ErrWriteTooLarge, len(data), loc)
	}
	provider := t.p.BindGroupProvider(loc.Group)
	if provider == nil {
		return fmt.Errorf("%w: %q group %d", ErrNoBindGroup, t.p.PipelineKey(), loc.Group)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	t.stage(bind_group_provider.BufferWrite{
		Provider: provider,
		Binding:  loc.Binding,
		Offset:   loc.Offset,
		Data:     buf,
	})
	return nil
}
