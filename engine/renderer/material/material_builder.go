package material

import (
	"github.com/Carmen-Shannon/oxy-learn/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithBaseColor is an option builder that sets the albedo/diffuse RGBA color of the material.
//
// Parameters:
//   - r, g, b, a: the base color components
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color option to a material
func WithBaseColor(r, g, b, a float32) MaterialBuilderOption {
	return func(m *material) {
		m.baseColor = mgl32.Vec4{r, g, b, a}
	}
}

// WithSpecular is an option builder that sets the specular color and exponent.
//
// Parameters:
//   - r, g, b: the specular color components
//   - shininess: the specular exponent
//
// Returns:
//   - MaterialBuilderOption: a function that applies the specular option to a material
func WithSpecular(r, g, b, shininess float32) MaterialBuilderOption {
	return func(m *material) {
		m.specular = mgl32.Vec3{r, g, b}
		m.shininess = shininess
	}
}

// WithMetallic is an option builder that sets the metallic factor of the material.
func WithMetallic(metallic float32) MaterialBuilderOption {
	return func(m *material) {
		m.metallic = metallic
	}
}

// WithRoughness is an option builder that sets the roughness factor of the material.
func WithRoughness(roughness float32) MaterialBuilderOption {
	return func(m *material) {
		m.roughness = roughness
	}
}

// WithDiffuseTexture is an option builder that sets the diffuse texture reference.
//
// Parameters:
//   - tex: the texture reference for the diffuse map
//
// Returns:
//   - MaterialBuilderOption: a function that applies the diffuse texture option to a material
func WithDiffuseTexture(tex *common.TextureRef) MaterialBuilderOption {
	return func(m *material) {
		m.diffuseTexture = tex
	}
}

// WithSpecularTexture is an option builder that sets the specular map reference.
//
// Parameters:
//   - tex: the texture reference for the specular map
//
// Returns:
//   - MaterialBuilderOption: a function that applies the specular texture option to a material
func WithSpecularTexture(tex *common.TextureRef) MaterialBuilderOption {
	return func(m *material) {
		m.specularTexture = tex
	}
}
