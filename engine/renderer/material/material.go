package material

import (
	"github.com/Carmen-Shannon/oxy-learn/common"
	"github.com/go-gl/mathgl/mgl32"
)

// material is the implementation of the Material interface.
type material struct {
	name            string
	baseColor       mgl32.Vec4
	specular        mgl32.Vec3
	shininess       float32
	metallic        float32
	roughness       float32
	diffuseTexture  *common.TextureRef
	specularTexture *common.TextureRef
}

// Material defines the interface for a surface material, the record behind a
// material payload. It is plain data: texture references are CPU-side and any
// GPU texture created from them is owned by the caller, not by the material.
//
// Surface properties are mutable so a bound payload can change between pushes;
// the values observed by the shader are the ones present at push time.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// BaseColor retrieves the albedo/diffuse RGBA color of the material.
	//
	// Returns:
	//   - mgl32.Vec4: the base color as RGBA values
	BaseColor() mgl32.Vec4

	// Specular retrieves the specular RGB color of the material.
	//
	// Returns:
	//   - mgl32.Vec3: the specular color
	Specular() mgl32.Vec3

	// Shininess retrieves the specular exponent of the material.
	//
	// Returns:
	//   - float32: the shininess exponent
	Shininess() float32

	// Metallic retrieves the metallic factor of the material.
	// A value of 0.0 represents a dielectric surface, 1.0 represents a fully metallic surface.
	//
	// Returns:
	//   - float32: the metallic factor
	Metallic() float32

	// Roughness retrieves the roughness factor of the material.
	// A value of 0.0 represents a perfectly smooth surface, 1.0 represents a fully rough surface.
	//
	// Returns:
	//   - float32: the roughness factor
	Roughness() float32

	// DiffuseTexture retrieves the diffuse texture reference, or nil if none is set.
	//
	// Returns:
	//   - *common.TextureRef: the diffuse texture, or nil
	DiffuseTexture() *common.TextureRef

	// SpecularTexture retrieves the specular map reference, or nil if none is set.
	//
	// Returns:
	//   - *common.TextureRef: the specular texture, or nil
	SpecularTexture() *common.TextureRef

	// SetBaseColor sets the albedo/diffuse RGBA color.
	//
	// Parameters:
	//   - color: the new base color
	SetBaseColor(color mgl32.Vec4)

	// SetSpecular sets the specular RGB color.
	//
	// Parameters:
	//   - color: the new specular color
	SetSpecular(color mgl32.Vec3)

	// SetShininess sets the specular exponent.
	//
	// Parameters:
	//   - shininess: the new exponent
	SetShininess(shininess float32)
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		baseColor: mgl32.Vec4{1, 1, 1, 1},
		specular:  mgl32.Vec3{0.5, 0.5, 0.5},
		shininess: 32,
		metallic:  0.0,
		roughness: 1.0,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) BaseColor() mgl32.Vec4 {
	return m.baseColor
}

func (m *material) Specular() mgl32.Vec3 {
	return m.specular
}

func (m *material) Shininess() float32 {
	return m.shininess
}

func (m *material) Metallic() float32 {
	return m.metallic
}

func (m *material) Roughness() float32 {
	return m.roughness
}

func (m *material) DiffuseTexture() *common.TextureRef {
	return m.diffuseTexture
}

func (m *material) SpecularTexture() *common.TextureRef {
	return m.specularTexture
}

func (m *material) SetBaseColor(color mgl32.Vec4) {
	m.baseColor = color
}

func (m *material) SetSpecular(color mgl32.Vec3) {
	m.specular = color
}

func (m *material) SetShininess(shininess float32) {
	m.shininess = shininess
}
