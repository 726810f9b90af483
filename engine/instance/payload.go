package instance

import (
	"github.com/Carmen-Shannon/oxy-learn/engine/light"
	"github.com/Carmen-Shannon/oxy-learn/engine/renderer/material"
)

// PayloadKind tags which variant a Payload holds.
type PayloadKind int

const (
	// PayloadNone is the zero Payload. Pushing an instance with no payload fails with ErrNoPayload.
	PayloadNone PayloadKind = iota

	// PayloadMaterial holds a single material.
	PayloadMaterial

	// PayloadLight holds one or more light sources.
	PayloadLight
)

// String implements fmt.Stringer.
func (k PayloadKind) String() string {
	switch k {
	case PayloadNone:
		return "none"
	case PayloadMaterial:
		return "material"
	case PayloadLight:
		return "light"
	default:
		return "unknown"
	}
}

// Payload is the per-instance data pushed next to the transform. It is a closed variant over
// {material, lights}; the kind decides which accessor carries data.
// Payload is a value type and is copied into an instance on Bind.
type Payload struct {
	kind     PayloadKind
	material material.Material
	lights   []light.Light
}

// MaterialPayload wraps a material. A nil material yields the zero Payload.
//
// Parameters:
//   - m: the material to push
//
// Returns:
//   - Payload: a PayloadMaterial payload
func MaterialPayload(m material.Material) Payload {
	if m == nil {
		return Payload{}
	}
	return Payload{kind: PayloadMaterial, material: m}
}

// LightPayload wraps one or more lights. Light i is written to element i of the payload uniform.
// Nil lights are dropped; with no lights left the zero Payload is returned.
//
// Parameters:
//   - lights: the lights to push, in slot order
//
// Returns:
//   - Payload: a PayloadLight payload
func LightPayload(lights ...light.Light) Payload {
	kept := make([]light.Light, 0, len(lights))
	for _, l := range lights {
		if l != nil {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return Payload{}
	}
	return Payload{kind: PayloadLight, lights: kept}
}

// Kind returns the variant tag.
func (p Payload) Kind() PayloadKind {
	return p.kind
}

// Material returns the material of a PayloadMaterial payload, nil otherwise.
func (p Payload) Material() material.Material {
	return p.material
}

// Lights returns the lights of a PayloadLight payload, nil otherwise.
// The returned slice is a copy.
func (p Payload) Lights() []light.Light {
	if p.lights == nil {
		return nil
	}
	out := make([]light.Light, len(p.lights))
	copy(out, p.lights)
	return out
}

// IsZero reports whether the payload holds nothing.
func (p Payload) IsZero() bool {
	return p.kind == PayloadNone
}
