package instance

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-learn/common"
	"github.com/Carmen-Shannon/oxy-learn/engine/light"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrProgramMismatch is returned by Push when the target writes into a different program than
	// the one the instance was bound to. Nothing is written.
	ErrProgramMismatch = errors.New("target program does not match instance program")

	// ErrNoPayload is returned by Push when no payload has been bound. Nothing is written.
	ErrNoPayload = errors.New("instance has no payload")

	// ErrWriteTooLarge is returned by Push when a marshaled value is larger than the uniform it is
	// bound to, e.g. a light pushed into a material uniform. Nothing is written.
	ErrWriteTooLarge = errors.New("value is larger than its uniform")
)

// Transform is the model matrix of an instance together with the uniform name it is written to.
// It is owned by exactly one instance.
type Transform struct {
	Name   string
	Matrix mgl32.Mat4
}

// UpdateFunc mutates an instance's transform once per frame. dt is the frame time in seconds.
// It runs on a worker goroutine and must only touch state owned by the instance.
type UpdateFunc func(t *Transform, dt float64)

// instance is the implementation of the Instance interface.
type instance struct {
	mu sync.Mutex

	name        string
	programID   uint64
	payloadName string
	transform   Transform
	payload     Payload
	update      UpdateFunc
}

// Instance pairs a Transform with a Payload and pushes both into a shader program under two
// uniform names. Binding a payload replaces the previous one; Push always writes the payload
// bound last.
type Instance interface {
	// Name returns the debug name of the instance.
	//
	// Returns:
	//   - string: the name
	Name() string

	// ProgramID returns the ID of the program the instance is bound to.
	//
	// Returns:
	//   - uint64: the program ID
	ProgramID() uint64

	// TransformName returns the uniform name the transform is written to.
	//
	// Returns:
	//   - string: the transform uniform name
	TransformName() string

	// PayloadName returns the uniform name the payload is written to.
	//
	// Returns:
	//   - string: the payload uniform name
	PayloadName() string

	// Transform returns a copy of the current transform.
	//
	// Returns:
	//   - Transform: the transform
	Transform() Transform

	// SetMatrix replaces the model matrix.
	//
	// Parameters:
	//   - m: the new model matrix
	SetMatrix(m mgl32.Mat4)

	// Payload returns the payload bound last.
	//
	// Returns:
	//   - Payload: the payload, or the zero Payload if none was bound
	Payload() Payload

	// Bind replaces the payload. The last payload bound before Push is the one written.
	//
	// Parameters:
	//   - p: the payload to bind
	Bind(p Payload)

	// Rebind moves the instance to another program. The payload and transform are kept.
	//
	// Parameters:
	//   - program: the program to bind to
	Rebind(program Program)

	// Update runs the update function, if any, against the transform.
	//
	// Parameters:
	//   - dt: frame time in seconds
	Update(dt float64)

	// Push writes the transform and then the payload into target. The target must write into the
	// program the instance is bound to. All uniform names are resolved before anything is written,
	// so a failed Push leaves the target untouched.
	//
	// Parameters:
	//   - target: the handle of the currently bound program
	//
	// Returns:
	//   - error: ErrProgramMismatch, ErrNoPayload, a location error or a write error
	Push(target Target) error
}

var _ Instance = &instance{}

// New creates an Instance bound to program, writing its transform to transformName and its
// payload to payloadName.
//
// Parameters:
//   - program: the program to bind to
//   - transformName: the uniform name of the model matrix
//   - payloadName: the uniform name of the material or light array
//   - opts: functional options
//
// Returns:
//   - Instance: the new instance, with an identity transform and no payload unless set by options
func New(program Program, transformName, payloadName string, opts ...InstanceBuilderOption) Instance {
	if program == nil {
		panic("instance: a program is required")
	}
	i := &instance{
		programID:   program.ID(),
		payloadName: payloadName,
		transform: Transform{
			Name:   transformName,
			Matrix: mgl32.Ident4(),
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *instance) Name() string {
	return i.name
}

func (i *instance) ProgramID() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.programID
}

func (i *instance) TransformName() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.transform.Name
}

func (i *instance) PayloadName() string {
	return i.payloadName
}

func (i *instance) Transform() Transform {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.transform
}

func (i *instance) SetMatrix(m mgl32.Mat4) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.transform.Matrix = m
}

func (i *instance) Payload() Payload {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.payload
}

func (i *instance) Bind(p Payload) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.payload = p
}

func (i *instance) Rebind(program Program) {
	if program == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.programID = program.ID()
}

func (i *instance) Update(dt float64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.update != nil {
		i.update(&i.transform, dt)
	}
}

// pendingWrite is one resolved uniform write.
type pendingWrite struct {
	loc  shader.UniformLocation
	data []byte
}

func (i *instance) Push(target Target) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if target.ProgramID() != i.programID {
		return fmt.Errorf("%w: instance %q bound to %d, target is %d", ErrProgramMismatch, i.name, i.programID, target.ProgramID())
	}
	if i.payload.kind == PayloadNone {
		return fmt.Errorf("%w: %q", ErrNoPayload, i.name)
	}

	writes, err := i.plan(target)
	if err != nil {
		return fmt.Errorf("instance %q: %w", i.name, err)
	}
	for _, w := range writes {
		if err := target.Write(w.loc, w.data); err != nil {
			return fmt.Errorf("instance %q: failed to write %s: %w", i.name, w.loc, err)
		}
	}
	return nil
}

// plan resolves every location the push will touch: the transform first, then the payload.
func (i *instance) plan(target Target) ([]pendingWrite, error) {
	loc, err := target.Location(i.transform.Name)
	if err != nil {
		return nil, err
	}
	writes := []pendingWrite{{loc: loc, data: common.Mat4ToBytes(i.transform.Matrix)}}

	switch i.payload.kind {
	case PayloadMaterial:
		loc, err := target.Location(i.payloadName)
		if err != nil {
			return nil, err
		}
		g := material.ToGPU(i.payload.material)
		writes = append(writes, pendingWrite{loc: loc, data: g.Marshal()})
	case PayloadLight:
		lightWrites, err := i.planLights(target)
		if err != nil {
			return nil, err
		}
		writes = append(writes, lightWrites...)
	}

	for _, w := range writes {
		if uint64(len(w.data)) > w.loc.Size {
			return nil, fmt.Errorf("%w: %d bytes into %s", ErrWriteTooLarge, len(w.data), w.loc)
		}
	}
	return writes, nil
}

// planLights writes light i to payloadName[i] and zero-fills every remaining slot so a light
// dropped since the previous push is never seen. A payload uniform that is a single Light
// rather than an array accepts exactly one light.
func (i *instance) planLights(target Target) ([]pendingWrite, error) {
	lights := i.payload.lights

	whole, err := target.Location(i.payloadName)
	if err != nil {
		return nil, err
	}
	first, err := target.Location(i.payloadName + "[0]")
	if errors.Is(err, shader.ErrNotArray) {
		if len(lights) > 1 {
			return nil, fmt.Errorf("%w: %d lights for single light uniform %q", shader.ErrIndexOutOfRange, len(lights), i.payloadName)
		}
		g := light.ToGPU(lights[0])
		return []pendingWrite{{loc: whole, data: g.Marshal()}}, nil
	}
	if err != nil {
		return nil, err
	}

	slots := 0
	if first.Size > 0 {
		slots = int(whole.Size / first.Size)
	}
	if len(lights) > slots {
		return nil, fmt.Errorf("%w: %d lights for %d slots of %q", shader.ErrIndexOutOfRange, len(lights), slots, i.payloadName)
	}

	writes := make([]pendingWrite, 0, slots)
	for idx := 0; idx < slots; idx++ {
		loc, err := target.Location(fmt.Sprintf("%s[%d]", i.payloadName, idx))
		if err != nil {
			return nil, err
		}
		if idx < len(lights) {
			g := light.ToGPU(lights[idx])
			writes = append(writes, pendingWrite{loc: loc, data: g.Marshal()})
		} else {
			writes = append(writes, pendingWrite{loc: loc, data: make([]byte, loc.Size)})
		}
	}
	return writes, nil
}
