package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// nextID hands out process-wide unique pipeline IDs. Zero is never issued.
var nextID atomic.Uint64

// pipeline is the implementation of the Pipeline interface.
// It holds the shader, the created WebGPU render pipeline and the per-group bind group providers.
type pipeline struct {
	mu sync.RWMutex

	id          uint64
	pipelineKey string
	shader      shader.Shader

	// renderPipeline is nil until the pipeline has been registered with a Renderer.
	renderPipeline *wgpu.RenderPipeline
	// built is the parse renderPipeline and the providers were created from.
	built     *shader.Snapshot
	providers map[int]bind_group_provider.BindGroupProvider

	primitive wgpu.PrimitiveState
	blend     *wgpu.BlendState // nil: blending off
}

// Pipeline is a shader program: one WGSL module with a vertex and a fragment entry point, the
// render pipeline built from it and the bind groups that back its uniforms. The ID is stable for
// the lifetime of the process and survives shader reloads, so handles that refer to a pipeline
// by ID stay valid across a rebuild.
type Pipeline interface {
	// ID returns the process-unique identifier of this pipeline.
	//
	// Returns:
	//   - uint64: the pipeline ID, never zero
	ID() uint64

	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader returns the shader this pipeline is built from.
	//
	// Returns:
	//   - shader.Shader: the shader
	Shader() shader.Shader

	// Location resolves a uniform name against the uniform table the render pipeline was built
	// with. Before the first build it resolves against the shader's current table.
	//
	// Parameters:
	//   - name: "name" or "name[i]"
	//
	// Returns:
	//   - shader.UniformLocation: the resolved location
	//   - error: a shader location error
	Location(name string) (shader.UniformLocation, error)

	// BindGroupLayout returns the layout descriptor of a group as the render pipeline was built
	// with it. Before the first build it reads the shader's current layouts.
	//
	// Parameters:
	//   - group: the @group index
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the descriptor
	//   - bool: false if the group is not declared
	BindGroupLayout(group int) (wgpu.BindGroupLayoutDescriptor, bool)

	// RenderPipeline returns the created render pipeline, or nil if not registered yet.
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the render pipeline
	RenderPipeline() *wgpu.RenderPipeline

	// SetRenderPipeline stores a newly built render pipeline together with the shader parse it
	// was built from. The previous render pipeline, if any, is released.
	//
	// Parameters:
	//   - rp: the WebGPU render pipeline
	//   - built: the snapshot rp was built from
	SetRenderPipeline(rp *wgpu.RenderPipeline, built *shader.Snapshot)

	// Stale reports whether the shader has been reloaded since the render pipeline was built.
	//
	// Returns:
	//   - bool: true if the pipeline needs rebuilding
	Stale() bool

	// BindGroupProvider returns the provider backing the given bind group index.
	//
	// Parameters:
	//   - group: the @group index
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the provider, or nil if the group is not declared
	BindGroupProvider(group int) bind_group_provider.BindGroupProvider

	// BindGroupProviders returns the providers ordered by group index. Missing groups are nil.
	//
	// Returns:
	//   - []bind_group_provider.BindGroupProvider: the providers
	BindGroupProviders() []bind_group_provider.BindGroupProvider

	// SetBindGroupProviders replaces all providers, releasing the previous ones.
	//
	// Parameters:
	//   - providers: providers keyed by group index
	SetBindGroupProviders(providers map[int]bind_group_provider.BindGroupProvider)

	// Primitive returns the primitive state the render pipeline is built with.
	//
	// Returns:
	//   - wgpu.PrimitiveState: topology, winding and cull mode
	Primitive() wgpu.PrimitiveState

	// Blend returns the color blend state, or nil when blending is off.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state
	Blend() *wgpu.BlendState

	// Release releases the render pipeline and all bind group providers.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a new render Pipeline for a shader. The GPU objects are created later by
// Renderer.RegisterPipeline.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - s: the shader providing both the vertex and fragment entry points
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline
func NewPipeline(pipelineKey string, s shader.Shader, opts ...PipelineBuilderOption) Pipeline {
	if s == nil {
		panic("pipeline: " + pipelineKey + " requires a shader")
	}
	p := &pipeline{
		id:          nextID.Add(1),
		pipelineKey: pipelineKey,
		shader:      s,
		providers:   make(map[int]bind_group_provider.BindGroupProvider),
		primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) ID() uint64 {
	return p.id
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader() shader.Shader {
	return p.shader
}

func (p *pipeline) Location(name string) (shader.UniformLocation, error) {
	p.mu.RLock()
	built := p.built
	p.mu.RUnlock()
	if built == nil {
		return p.shader.Location(name)
	}
	return built.Location(name)
}

func (p *pipeline) BindGroupLayout(group int) (wgpu.BindGroupLayoutDescriptor, bool) {
	p.mu.RLock()
	built := p.built
	p.mu.RUnlock()
	if built == nil {
		built = p.shader.Snapshot()
	}
	desc, ok := built.Layouts[group]
	return desc, ok
}

func (p *pipeline) RenderPipeline() *wgpu.RenderPipeline {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.renderPipeline
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline, built *shader.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.renderPipeline != nil && p.renderPipeline != rp {
		p.renderPipeline.Release()
	}
	p.renderPipeline = rp
	p.built = built
}

func (p *pipeline) Stale() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.built == nil || p.built.Version != p.shader.Version()
}

func (p *pipeline) BindGroupProvider(group int) bind_group_provider.BindGroupProvider {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.providers[group]
}

func (p *pipeline) BindGroupProviders() []bind_group_provider.BindGroupProvider {
	p.mu.RLock()
	defer p.mu.RUnlock()
	maxGroup := -1
	for g := range p.providers {
		if g > maxGroup {
			maxGroup = g
		}
	}
	out := make([]bind_group_provider.BindGroupProvider, maxGroup+1)
	for g, bgp := range p.providers {
		out[g] = bgp
	}
	return out
}

func (p *pipeline) SetBindGroupProviders(providers map[int]bind_group_provider.BindGroupProvider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for g, old := range p.providers {
		if old != nil && old != providers[g] {
			old.Release()
		}
	}
	if providers == nil {
		providers = make(map[int]bind_group_provider.BindGroupProvider)
	}
	p.providers = providers
}

func (p *pipeline) Primitive() wgpu.PrimitiveState {
	return p.primitive
}

func (p *pipeline) Blend() *wgpu.BlendState {
	return p.blend
}

func (p *pipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for g, bgp := range p.providers {
		if bgp != nil {
			bgp.Release()
		}
		delete(p.providers, g)
	}
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	p.built = nil
}
