package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-learn/common"
	"github.com/Carmen-Shannon/oxy-learn/engine/instance"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-learn/engine/window"
)

var (
	// ErrPipelineNotRegistered is returned when drawing with or texturing a pipeline the renderer
	// has not built.
	ErrPipelineNotRegistered = errors.New("pipeline is not registered")

	// ErrEmptyMesh is returned by Draw when the mesh provider has no vertex buffer or no vertices.
	ErrEmptyMesh = errors.New("mesh has no vertices")

	// ErrUnsupportedBinding is returned when a shader declares a resource other than a uniform
	// buffer, a sampled texture or a filtering sampler.
	ErrUnsupportedBinding = errors.New("unsupported binding type")
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline
	pending       []bind_group_provider.BufferWrite

	backendType RendererBackendType
	backend     RendererBackend

	width  int
	height int

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	presentMode          PresentMode
	clearColor           *ClearColor
	pendingPipelines     []pipeline.Pipeline
}

// Renderer defines the interface for the rendering system.
//
// The Renderer owns the GPU device and surface, builds one render pipeline per registered
// Pipeline and hands out non-owning program targets through which instances push uniforms.
// Uniform writes are staged and flushed to the queue before the next draw, so every draw sees the
// values pushed before it even when several instances share one uniform.
type Renderer interface {
	// Pipeline retrieves the registered Pipeline associated with the given key.
	//
	// Parameters:
	//   - key: the pipeline key
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline, or nil if not registered
	Pipeline(key string) pipeline.Pipeline

	// Pipelines returns a copy of the registered pipelines keyed by pipeline key.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: the registered pipelines
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipeline builds the GPU render pipeline and bind groups for p and caches it by key.
	// Registering a pipeline that is already cached rebuilds it from its shader's current source.
	// Registering a different pipeline under a cached key releases the old one.
	//
	// Parameters:
	//   - p: the pipeline to build
	//
	// Returns:
	//   - error: an error if the GPU objects could not be created; the previous build keeps drawing
	RegisterPipeline(p pipeline.Pipeline) error

	// RebuildStale rebuilds every registered pipeline whose shader changed since its last build.
	//
	// Returns:
	//   - []string: the keys of the pipelines that were rebuilt
	//   - error: the joined errors of the pipelines that failed to rebuild
	RebuildStale() ([]string, error)

	// InitMeshBuffers uploads vertex data and stores the vertex buffer and count on provider.
	//
	// Parameters:
	//   - provider: the mesh provider
	//   - vertexData: interleaved vertex bytes matching the pipeline's vertex layout
	//   - vertexCount: the number of vertices
	//
	// Returns:
	//   - error: an error if the buffer could not be created
	InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData []byte, vertexCount int) error

	// InitTexture decodes ref and uploads it into the texture binding (group, binding) of p,
	// replacing the placeholder. A rebuilt pipeline starts from placeholders again.
	//
	// Parameters:
	//   - p: a registered pipeline
	//   - group: the bind group index
	//   - binding: the texture binding index
	//   - ref: the texture to upload
	//
	// Returns:
	//   - error: a decode error, ErrPipelineNotRegistered, ErrNoBindGroup or a GPU error
	InitTexture(p pipeline.Pipeline, group, binding int, ref *common.TextureRef) error

	// Bind returns the handle through which instances push uniforms into p.
	//
	// Parameters:
	//   - p: the program to write into
	//
	// Returns:
	//   - instance.Target: the program target
	Bind(p pipeline.Pipeline) instance.Target

	// Flush writes all staged uniform writes to the queue in the order they were made.
	Flush()

	// BeginFrame acquires the swapchain texture and begins the main render pass, clearing it.
	//
	// Returns:
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() error

	// Draw flushes staged writes and encodes a draw of every vertex in mesh with p.
	//
	// Parameters:
	//   - p: a registered pipeline
	//   - mesh: the provider holding the vertex buffer
	//
	// Returns:
	//   - error: ErrPipelineNotRegistered or ErrEmptyMesh
	Draw(p pipeline.Pipeline, mesh bind_group_provider.BindGroupProvider) error

	// EndFrame flushes staged writes, ends the render pass and submits the frame.
	EndFrame()

	// Present presents the surface to the display.
	Present()

	// Resize reconfigures the surface for a new size.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	Resize(width, height int)

	// SetPresentMode changes the present mode and reconfigures the surface.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// SetClearColor sets the color frames are cleared to.
	//
	// Parameters:
	//   - c: the clear color
	SetClearColor(c ClearColor)

	// Release frees every registered pipeline and the GPU backend.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer drawing into the given window's surface.
//
// Parameters:
//   - w: the window providing the surface descriptor and initial size
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error wrapping ErrBackendInit if the GPU could not be brought up, or a pipeline
//     registration error for pipelines passed with WithPipeline
func NewRenderer(w window.Window, options ...RendererBuilderOption) (Renderer, error) {
	if w == nil {
		panic("renderer: a window is required")
	}

	r := newRenderer(options...)

	var (
		backend RendererBackend
		err     error
	)
	switch r.backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		backend, err = newWGPURendererBackend(w.SurfaceDescriptor(), r.forceFallbackAdapter)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendInit, err)
	}

	if err := r.attach(backend, w.Width(), w.Height()); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

// newRenderer applies options to a renderer with no backend.
func newRenderer(options ...RendererBuilderOption) *renderer {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   BackendTypeWGPU,
		presentMode:   PresentModeVSync,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// attach configures backend from the collected options and registers pending pipelines.
func (r *renderer) attach(backend RendererBackend, width, height int) error {
	r.backend = backend
	r.width, r.height = width, height

	r.backend.SetPresentMode(r.presentMode)
	if r.clearColor != nil {
		r.backend.SetClearColor(*r.clearColor)
	}
	r.backend.ConfigureSurface(width, height)

	for _, p := range r.pendingPipelines {
		if err := r.RegisterPipeline(p); err != nil {
			return err
		}
	}
	r.pendingPipelines = nil
	return nil
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]pipeline.Pipeline, len(r.pipelineCache))
	for k, p := range r.pipelineCache {
		out[k] = p
	}
	return out
}

func (r *renderer) RegisterPipeline(p pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := p.PipelineKey()
	if err := r.backend.RegisterRenderPipeline(p); err != nil {
		return fmt.Errorf("failed to build pipeline %q: %w", key, err)
	}
	if existing, ok := r.pipelineCache[key]; ok && existing != p {
		existing.Release()
	}
	r.pipelineCache[key] = p
	return nil
}

func (r *renderer) RebuildStale() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		rebuilt []string
		errs    []error
	)
	for key, p := range r.pipelineCache {
		if !p.Stale() {
			continue
		}
		if err := r.backend.RegisterRenderPipeline(p); err != nil {
			errs = append(errs, fmt.Errorf("failed to rebuild pipeline %q: %w", key, err))
			continue
		}
		rebuilt = append(rebuilt, key)
	}
	return rebuilt, errors.Join(errs...)
}

func (r *renderer) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData []byte, vertexCount int) error {
	return r.backend.InitMeshBuffers(provider, vertexData, vertexCount)
}

func (r *renderer) InitTexture(p pipeline.Pipeline, group, binding int, ref *common.TextureRef) error {
	if err := r.checkRegistered(p); err != nil {
		return err
	}
	provider := p.BindGroupProvider(group)
	if provider == nil {
		return fmt.Errorf("%w: %q group %d", ErrNoBindGroup, p.PipelineKey(), group)
	}
	desc, ok := p.BindGroupLayout(group)
	if !ok {
		return fmt.Errorf("%w: %q group %d", ErrNoBindGroup, p.PipelineKey(), group)
	}

	pixels, width, height, err := ref.Decode()
	if err != nil {
		return err
	}
	if err := r.backend.InitTextureView(provider, binding, pixels, width, height); err != nil {
		return fmt.Errorf("failed to upload texture %q: %w", ref.Name, err)
	}
	return r.backend.InitBindGroup(provider, desc)
}

func (r *renderer) Bind(p pipeline.Pipeline) instance.Target {
	return &programTarget{p: p, stage: r.stage}
}

// stage queues a uniform write for the next Flush.
func (r *renderer) stage(w bind_group_provider.BufferWrite) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, w)
}

func (r *renderer) Flush() {
	r.mu.Lock()
	writes := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(writes) > 0 {
		r.backend.WriteBuffers(writes)
	}
}

func (r *renderer) BeginFrame() error {
	return r.backend.BeginFrame()
}

func (r *renderer) Draw(p pipeline.Pipeline, mesh bind_group_provider.BindGroupProvider) error {
	if err := r.checkRegistered(p); err != nil {
		return err
	}
	if mesh == nil || mesh.VertexBuffer() == nil || mesh.VertexCount() == 0 {
		return ErrEmptyMesh
	}
	r.Flush()
	r.backend.DrawCall(p, mesh)
	return nil
}

func (r *renderer) EndFrame() {
	r.Flush()
	r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	r.width, r.height = width, height
	r.mu.Unlock()
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.mu.Lock()
	r.presentMode = mode
	width, height := r.width, r.height
	r.mu.Unlock()

	r.backend.SetPresentMode(mode)
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetClearColor(c ClearColor) {
	r.mu.Lock()
	r.clearColor = &c
	r.mu.Unlock()
	r.backend.SetClearColor(c)
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, p := range r.pipelineCache {
		p.Release()
		delete(r.pipelineCache, key)
	}
	r.pending = nil
	if r.backend != nil {
		r.backend.Release()
	}
}

// checkRegistered returns ErrPipelineNotRegistered unless p is the pipeline cached under its key.
func (r *renderer) checkRegistered(p pipeline.Pipeline) error {
	if p == nil {
		return fmt.Errorf("%w: nil pipeline", ErrPipelineNotRegistered)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pipelineCache[p.PipelineKey()] != p {
		return fmt.Errorf("%w: %q", ErrPipelineNotRegistered, p.PipelineKey())
	}
	return nil
}
