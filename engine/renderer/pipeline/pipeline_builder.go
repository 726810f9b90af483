package pipeline

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithCullMode sets which faces are culled. Defaults to wgpu.CullModeNone.
//
// Parameters:
//   - mode: the cull mode (e.g., wgpu.CullModeBack)
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithCullMode(mode wgpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.primitive.CullMode = mode
	}
}

// WithAlphaBlend blends the fragment output over the target by its alpha
// (src*a + dst*(1-a)). Blending is off by default.
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithAlphaBlend() PipelineBuilderOption {
	return func(p *pipeline) {
		p.blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}
}
