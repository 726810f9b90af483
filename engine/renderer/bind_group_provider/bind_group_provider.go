package bind_group_provider

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// BindGroupProvider owns the GPU resources behind one @group of a pipeline, or the vertex buffer
// of a mesh. The Renderer fills providers in; user code only creates mesh providers and hands
// them to Renderer.InitMeshBuffers.
//
// A pipeline provider holds at most one resource per binding: a uniform buffer, a texture view or
// a sampler, matching what the shader declares at that binding.
type BindGroupProvider interface {
	// Label returns the debug label GPU resources are named after.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the bind group set on the render pass, or nil before initialization.
	BindGroup() *wgpu.BindGroup

	// BindGroupLayout returns the layout the bind group was created with, or nil.
	BindGroupLayout() *wgpu.BindGroupLayout

	// Buffer returns the uniform buffer at binding, or nil.
	Buffer(binding int) *wgpu.Buffer

	// TextureView returns the texture view at binding, or nil.
	TextureView(binding int) *wgpu.TextureView

	// Sampler returns the sampler at binding, or nil.
	Sampler(binding int) *wgpu.Sampler

	// VertexBuffer returns the mesh vertex buffer, or nil.
	VertexBuffer() *wgpu.Buffer

	// VertexCount returns the number of vertices a draw covers.
	VertexCount() int

	SetBindGroup(bg *wgpu.BindGroup)
	SetBindGroupLayout(bgl *wgpu.BindGroupLayout)

	// SetBuffer stores buf at binding, releasing whatever resource was there before.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the uniform buffer
	SetBuffer(binding int, buf *wgpu.Buffer)

	// SetTextureView stores tv at binding, releasing whatever resource was there before.
	// Renderer.InitTexture uses it to replace a placeholder with an uploaded image.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tv: the texture view
	SetTextureView(binding int, tv *wgpu.TextureView)

	// SetSampler stores s at binding, releasing whatever resource was there before.
	//
	// Parameters:
	//   - binding: the binding index
	//   - s: the sampler
	SetSampler(binding int, s *wgpu.Sampler)

	SetVertexBuffer(buf *wgpu.Buffer)
	SetVertexCount(count int)

	// Release releases every GPU resource the provider holds and resets it to empty.
	Release()
}

// resource is whatever sits at one binding. Exactly one field is set.
type resource struct {
	buffer  *wgpu.Buffer
	view    *wgpu.TextureView
	sampler *wgpu.Sampler
}

func (r resource) release() {
	switch {
	case r.buffer != nil:
		r.buffer.Release()
	case r.view != nil:
		r.view.Release()
	case r.sampler != nil:
		r.sampler.Release()
	}
}

type bindGroupProvider struct {
	label string

	bindGroup       *wgpu.BindGroup
	bindGroupLayout *wgpu.BindGroupLayout
	bindings        map[int]resource

	vertexBuffer *wgpu.Buffer
	vertexCount  int
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates an empty provider.
//
// Parameters:
//   - label: a debug label used to name the GPU resources
//
// Returns:
//   - BindGroupProvider: the provider
func NewBindGroupProvider(label string) BindGroupProvider {
	return &bindGroupProvider{
		label:    label,
		bindings: make(map[int]resource),
	}
}

func (p *bindGroupProvider) Label() string { return p.label }

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup { return p.bindGroup }

func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout { return p.bindGroupLayout }

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer { return p.bindings[binding].buffer }

func (p *bindGroupProvider) TextureView(binding int) *wgpu.TextureView {
	return p.bindings[binding].view
}

func (p *bindGroupProvider) Sampler(binding int) *wgpu.Sampler { return p.bindings[binding].sampler }

func (p *bindGroupProvider) VertexBuffer() *wgpu.Buffer { return p.vertexBuffer }

func (p *bindGroupProvider) VertexCount() int { return p.vertexCount }

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) { p.bindGroup = bg }

func (p *bindGroupProvider) SetBindGroupLayout(bgl *wgpu.BindGroupLayout) { p.bindGroupLayout = bgl }

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer) {
	p.set(binding, resource{buffer: buf})
}

func (p *bindGroupProvider) SetTextureView(binding int, tv *wgpu.TextureView) {
	p.set(binding, resource{view: tv})
}

func (p *bindGroupProvider) SetSampler(binding int, s *wgpu.Sampler) {
	p.set(binding, resource{sampler: s})
}

// set replaces the resource at binding. A nil resource clears the binding.
func (p *bindGroupProvider) set(binding int, r resource) {
	if old, ok := p.bindings[binding]; ok && old != r {
		old.release()
	}
	if r == (resource{}) {
		delete(p.bindings, binding)
		return
	}
	p.bindings[binding] = r
}

func (p *bindGroupProvider) SetVertexBuffer(buf *wgpu.Buffer) { p.vertexBuffer = buf }

func (p *bindGroupProvider) SetVertexCount(count int) { p.vertexCount = count }

func (p *bindGroupProvider) Release() {
	for binding, r := range p.bindings {
		r.release()
		delete(p.bindings, binding)
	}
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	if p.bindGroupLayout != nil {
		p.bindGroupLayout.Release()
		p.bindGroupLayout = nil
	}
	if p.vertexBuffer != nil {
		p.vertexBuffer.Release()
		p.vertexBuffer = nil
	}
	p.vertexCount = 0
}
