package renderer

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat        *wgpu.TextureFormat
	renderPassDescriptor *wgpu.RenderPassDescriptor

	presentMode wgpu.PresentMode
	clearColor  wgpu.Color

	// Frame state. A frame is one or more passes over the same surface texture; passDraws counts
	// the draws encoded in the open pass.
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	passDraws    int
}

type wgpuRendererBackend interface {
	// ConfigureSurface is a wrapper for boilerplate logic required when calling ConfigureSurface on a surface.
	// This is required when the surface size changes, such as when the window is resized.
	// A zero width or height (minimized window) leaves the surface as it is.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// SetClearColor sets the color the main render pass clears to.
	//
	// Parameters:
	//   - c: the clear color
	SetClearColor(c ClearColor)

	// RegisterRenderPipeline creates the shader module, one bind group layout and provider per
	// declared group, the pipeline layout and the render pipeline for p, and stores them on p.
	// The previous GPU objects of p are released once the new ones exist.
	//
	// Parameters:
	//   - p: the pipeline whose shader describes the program
	//
	// Returns:
	//   - error: an error if any GPU object could not be created; p is left untouched
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// InitMeshBuffers creates the vertex buffer for a mesh and stores it on the given BindGroupProvider.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the vertex buffer on
	//   - vertexData: the raw interleaved vertex bytes
	//   - vertexCount: the number of vertices in vertexData, used for draw calls
	//
	// Returns:
	//   - error: an error if the buffer could not be created
	InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData []byte, vertexCount int) error

	// InitTextureView uploads RGBA8 pixels into a new texture and stores its view on the provider at
	// binding, releasing the view it replaces. The bind group must be rebuilt with InitBindGroup.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the texture view on
	//   - binding: the binding index of the texture
	//   - pixels: tightly packed RGBA8 pixels
	//   - width: texture width in pixels
	//   - height: texture height in pixels
	//
	// Returns:
	//   - error: an error if the texture could not be created
	InitTextureView(provider bind_group_provider.BindGroupProvider, binding int, pixels []byte, width, height uint32) error

	// InitBindGroup creates any missing uniform buffers, placeholder textures and samplers for the
	// entries of descriptor, then (re)creates the provider's bind group.
	//
	// Parameters:
	//   - provider: the BindGroupProvider holding the layout and resources
	//   - descriptor: the layout descriptor of the group
	//
	// Returns:
	//   - error: an error if a resource or the bind group could not be created
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor) error

	// WriteBuffers writes staged buffer writes to the GPU queue, in order. If draws have been
	// encoded in the open pass, that pass is submitted first and a new one continues the frame
	// without clearing, so those draws read the values they were pushed with.
	//
	// Parameters:
	//   - writes: the staged writes
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// BeginFrame acquires the next swapchain texture, creates a command encoder, and begins
	// the main render pass, clearing to the clear color.
	//
	// Returns:
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() error

	// DrawCall encodes a non-indexed draw of every vertex in meshProvider with the render
	// pipeline and bind groups of p.
	//
	// Parameters:
	//   - p: the pipeline to draw with
	//   - meshProvider: the BindGroupProvider holding the vertex buffer
	DrawCall(p pipeline.Pipeline, meshProvider bind_group_provider.BindGroupProvider)

	// EndFrame ends the current render pass and submits the command buffer to the GPU.
	EndFrame()

	// Present presents the surface to the display and releases the swapchain texture.
	Present()

	// Release frees the device, adapter, surface and instance.
	Release()
}

var _ wgpuRendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) (wgpuRendererBackend, error) {
	if surfaceDescriptor == nil {
		return nil, errors.New("no surface descriptor")
	}
	runtime.LockOSThread()

	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
		clearColor:  wgpu.Color{R: 0.2, G: 0.3, B: 0.3, A: 1.0},
	}
	if w.instance == nil {
		return nil, errors.New("failed to create instance")
	}

	w.surface = w.instance.CreateSurface(surfaceDescriptor)
	if w.surface == nil {
		w.Release()
		return nil, errors.New("failed to create surface")
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		w.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	w.adapter = a

	limits := wgpu.DefaultLimits()
	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		w.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()

	w.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: w.clearColor,
			},
		},
	}

	return w, nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if width <= 0 || height <= 0 {
		return
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	case PresentModeVSync:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
}

func (b *wgpuRendererBackendImpl) SetClearColor(c ClearColor) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.clearColor = wgpu.Color{R: c.R, G: c.G, B: c.B, A: c.A}
	b.renderPassDescriptor.ColorAttachments[0].ClearValue = b.clearColor
}

func (b *wgpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	snap := p.Shader().Snapshot()
	descriptors := snap.Layouts

	b.mu.Lock()
	if b.surfaceFormat == nil {
		b.mu.Unlock()
		return errors.New("surface is not configured")
	}
	format := *b.surfaceFormat
	module, err := b.device.CreateShaderModule(snap.Module)
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to create shader module: %w", err)
	}
	defer module.Release()

	maxGroup := -1
	for g := range descriptors {
		if g > maxGroup {
			maxGroup = g
		}
	}

	providers := make(map[int]bind_group_provider.BindGroupProvider, maxGroup+1)
	releaseProviders := func() {
		for _, bgp := range providers {
			bgp.Release()
		}
	}

	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g := 0; g <= maxGroup; g++ {
		// Groups the shader skips still need a layout in the pipeline layout; they get an empty one.
		desc := descriptors[g]
		desc.Label = fmt.Sprintf("%s Group %d", p.PipelineKey(), g)

		layout, layoutErr := b.device.CreateBindGroupLayout(&desc)
		if layoutErr != nil {
			releaseProviders()
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, layoutErr)
		}
		provider := bind_group_provider.NewBindGroupProvider(desc.Label)
		provider.SetBindGroupLayout(layout)
		providers[g] = provider

		if initErr := b.InitBindGroup(provider, desc); initErr != nil {
			releaseProviders()
			return fmt.Errorf("failed to init bind group %d: %w", g, initErr)
		}
		bindGroupLayouts[g] = layout
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		releaseProviders()
		return err
	}
	defer pipelineLayout.Release()

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: snap.EntryPoints[shader.StageVertex],
			Buffers:    snap.VertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: snap.EntryPoints[shader.StageFragment],
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				Blend:     p.Blend(),
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: p.Primitive(),
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		releaseProviders()
		return err
	}

	p.SetBindGroupProviders(providers)
	p.SetRenderPipeline(created, snap)

	return nil
}

func (b *wgpuRendererBackendImpl) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData []byte, vertexCount int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(vertexData) == 0 {
		return errors.New("no vertex data")
	}

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            provider.Label() + " Vertex Buffer",
		Size:             uint64(len(vertexData)),
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return err
	}
	b.queue.WriteBuffer(buf, 0, vertexData)

	if old := provider.VertexBuffer(); old != nil {
		old.Release()
	}
	provider.SetVertexBuffer(buf)
	provider.SetVertexCount(vertexCount)

	return nil
}

func (b *wgpuRendererBackendImpl) InitTextureView(provider bind_group_provider.BindGroupProvider, binding int, pixels []byte, width, height uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	view, err := b.createTextureView(provider.Label(), wgpu.TextureFormatRGBA8UnormSrgb, pixels, width, height)
	if err != nil {
		return err
	}
	provider.SetTextureView(binding, view)

	return nil
}

func (b *wgpuRendererBackendImpl) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	layout := provider.BindGroupLayout()
	if layout == nil {
		var err error
		layout, err = b.device.CreateBindGroupLayout(&descriptor)
		if err != nil {
			return err
		}
		provider.SetBindGroupLayout(layout)
	}

	bindGroupEntries := make([]wgpu.BindGroupEntry, len(descriptor.Entries))
	for i, entry := range descriptor.Entries {
		binding := int(entry.Binding)

		isTexture := entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined
		isSampler := entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined

		if isTexture {
			tv := provider.TextureView(binding)
			if tv == nil {
				var err error
				tv, err = b.createPlaceholderView(provider.Label())
				if err != nil {
					return fmt.Errorf("texture binding %d: %w", binding, err)
				}
				provider.SetTextureView(binding, tv)
			}
			bindGroupEntries[i] = wgpu.BindGroupEntry{
				Binding:     entry.Binding,
				TextureView: tv,
			}
		} else if isSampler {
			samp := provider.Sampler(binding)
			if samp == nil {
				var err error
				samp, err = b.createSampler(provider.Label())
				if err != nil {
					return fmt.Errorf("sampler binding %d: %w", binding, err)
				}
				provider.SetSampler(binding, samp)
			}
			bindGroupEntries[i] = wgpu.BindGroupEntry{
				Binding: entry.Binding,
				Sampler: samp,
			}
		} else {
			if entry.Buffer.Type != wgpu.BufferBindingTypeUniform {
				return fmt.Errorf("binding %d: %w", binding, ErrUnsupportedBinding)
			}

			buf := provider.Buffer(binding)
			if buf == nil {
				var bufErr error
				buf, bufErr = b.device.CreateBuffer(&wgpu.BufferDescriptor{
					Label: fmt.Sprintf("%s Buffer %d", provider.Label(), binding),
					Size:  entry.Buffer.MinBindingSize,
					Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
				})
				if bufErr != nil {
					return bufErr
				}
				provider.SetBuffer(binding, buf)
			}
			bindGroupEntries[i] = wgpu.BindGroupEntry{
				Binding: entry.Binding,
				Buffer:  buf,
				Offset:  0,
				Size:    wgpu.WholeSize,
			}
		}
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  layout,
		Entries: bindGroupEntries,
	})
	if err != nil {
		return err
	}
	if old := provider.BindGroup(); old != nil {
		old.Release()
	}
	provider.SetBindGroup(bindGroup)

	return nil
}

// createTextureView creates a 2D texture, uploads pixels when given and returns its view.
// Callers hold b.mu.
func (b *wgpuRendererBackendImpl) createTextureView(label string, format wgpu.TextureFormat, pixels []byte, width, height uint32) (*wgpu.TextureView, error) {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label + " Texture",
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		Format:        format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}

	if len(pixels) > 0 {
		b.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  width * 4,
				RowsPerImage: height,
			},
			&wgpu.Extent3D{
				Width:              width,
				Height:             height,
				DepthOrArrayLayers: 1,
			},
		)
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return view, nil
}

// createPlaceholderView returns an opaque white 1x1 view for a texture binding nothing has been
// uploaded to yet. Callers hold b.mu.
func (b *wgpuRendererBackendImpl) createPlaceholderView(label string) (*wgpu.TextureView, error) {
	return b.createTextureView(label+" Placeholder", wgpu.TextureFormatRGBA8UnormSrgb, []byte{255, 255, 255, 255}, 1, 1)
}

// createSampler returns a linear repeat sampler. Callers hold b.mu.
func (b *wgpuRendererBackendImpl) createSampler(label string) (*wgpu.Sampler, error) {
	return b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label + " Sampler",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0.0,
		LodMaxClamp:   32.0,
		MaxAnisotropy: 1,
	})
}

func (b *wgpuRendererBackendImpl) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass != nil && b.passDraws > 0 {
		if err := b.splitPass(); err != nil {
			log.Printf("[Renderer] failed to split render pass: %v", err)
		}
	}

	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			continue
		}
		b.queue.WriteBuffer(buf, w.Offset, w.Data)
	}
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A surface texture still held from the previous frame must be presented first;
	// acquiring another one fails in wgpu-native.
	if b.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	b.renderPassDescriptor.ColorAttachments[0].View = view
	pass := encoder.BeginRenderPass(b.renderPassDescriptor)

	b.frameEncoder = encoder
	b.framePass = pass
	b.frameSurface = surfaceTexture
	b.frameView = view
	b.passDraws = 0

	return nil
}

// splitPass ends and submits the open pass, then opens a pass that loads the frame drawn so far.
// Callers hold b.mu.
func (b *wgpuRendererBackendImpl) splitPass() error {
	if err := b.submitPass(); err != nil {
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.frameEncoder = encoder
	b.framePass = encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    b.frameView,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	b.passDraws = 0
	return nil
}

// submitPass ends the open pass and submits its command buffer. Callers hold b.mu.
func (b *wgpuRendererBackendImpl) submitPass() error {
	b.framePass.End()
	b.framePass.Release()
	b.framePass = nil

	commandBuffer, err := b.frameEncoder.Finish(nil)
	b.frameEncoder.Release()
	b.frameEncoder = nil
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) DrawCall(p pipeline.Pipeline, meshProvider bind_group_provider.BindGroupProvider) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}

	b.framePass.SetPipeline(p.RenderPipeline())

	for i, bg := range p.BindGroupProviders() {
		if bg == nil || bg.BindGroup() == nil {
			continue
		}
		b.framePass.SetBindGroup(uint32(i), bg.BindGroup(), nil)
	}

	b.framePass.SetVertexBuffer(0, meshProvider.VertexBuffer(), 0, wgpu.WholeSize)
	b.framePass.Draw(uint32(meshProvider.VertexCount()), 1, 0, 0)
	b.passDraws++
}

func (b *wgpuRendererBackendImpl) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	if err := b.submitPass(); err != nil {
		log.Printf("[Renderer] failed to submit frame: %v", err)
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameSurface = nil
		b.frameView = nil
	}
	b.passDraws = 0
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}

	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
