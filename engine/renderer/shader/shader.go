package shader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// Stage identifies a programmable stage of a render pipeline.
type Stage int

const (
	// StageVertex is the vertex stage, entry point marked @vertex.
	StageVertex Stage = iota

	// StageFragment is the fragment stage, entry point marked @fragment.
	StageFragment
)

var (
	// ErrNoPath is returned by Reload for shaders created from an in-memory source.
	ErrNoPath = errors.New("shader has no source path")

	// ErrMissingEntryPoint is returned when a source lacks a @vertex or @fragment entry point.
	ErrMissingEntryPoint = errors.New("shader is missing an entry point")
)

// shader is the implementation of the Shader interface.
// It holds all of the parsed shader data required for pipeline creation and uniform pushes.
type shader struct {
	mu sync.RWMutex

	key     string
	path    string
	version uint64

	source                     string
	entryPoints                map[Stage]string
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	vertexLayouts              []wgpu.VertexBufferLayout
	uniforms                   map[string]UniformInfo
	module                     *wgpu.ShaderModuleDescriptor
}

// parsedSource is the full result of parsing one WGSL source. It is swapped into a shader
// atomically so a failed reload never leaves partial state behind.
type parsedSource struct {
	source                     string
	entryPoints                map[Stage]string
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	vertexLayouts              []wgpu.VertexBufferLayout
	uniforms                   map[string]UniformInfo
}

// Snapshot is one successful parse of a shader: everything a render pipeline is built from.
// A pipeline keeps the snapshot it was built with, so a reload that fails to build on the GPU
// never changes the layout instances push into.
type Snapshot struct {
	Version       uint64
	Module        *wgpu.ShaderModuleDescriptor
	EntryPoints   map[Stage]string
	Layouts       map[int]wgpu.BindGroupLayoutDescriptor
	VertexLayouts []wgpu.VertexBufferLayout
	Uniforms      map[string]UniformInfo
}

// Location resolves "name" or "name[i]" against the snapshot's uniform table.
//
// Parameters:
//   - name: the uniform variable name, optionally indexed
//
// Returns:
//   - UniformLocation: the resolved location
//   - error: ErrUniformNotFound, ErrNotArray or ErrIndexOutOfRange
func (s *Snapshot) Location(name string) (UniformLocation, error) {
	return resolveLocation(s.Uniforms, name)
}

// Shader is a loaded and parsed WGSL module holding both a vertex and a fragment entry point.
// It exposes the layout metadata needed to build a render pipeline and the uniform table used to
// resolve uniform names to buffer locations.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Path retrieves the file the shader was loaded from, or an empty string for in-memory sources.
	//
	// Returns:
	//   - string: the source path
	Path() string

	// Source retrieves the WGSL shader source code currently in effect.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// Version is incremented every time the source is successfully (re)parsed.
	//
	// Returns:
	//   - uint64: the parse generation, starting at 1
	Version() uint64

	// EntryPoint returns the entry point function name for the given stage.
	//
	// Parameters:
	//   - stage: StageVertex or StageFragment
	//
	// Returns:
	//   - string: the entry point name, or an empty string for an unknown stage
	EntryPoint(stage Stage) string

	// BindGroupLayoutDescriptors retrieves all parsed bind group layout descriptors keyed by group
	// index. Every entry is visible to both the vertex and fragment stage.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// VertexLayouts retrieves the vertex buffer layouts parsed from the vertex input structs.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: one layout per vertex input struct, in source order
	VertexLayouts() []wgpu.VertexBufferLayout

	// Uniforms retrieves the uniform table: every buffer binding keyed by variable name.
	//
	// Returns:
	//   - map[string]UniformInfo: the uniform table
	Uniforms() map[string]UniformInfo

	// Location resolves "name" or "name[i]" to a byte range inside a uniform buffer.
	//
	// Parameters:
	//   - name: the uniform variable name, optionally indexed
	//
	// Returns:
	//   - UniformLocation: the resolved location
	//   - error: ErrUniformNotFound, ErrNotArray or ErrIndexOutOfRange
	Location(name string) (UniformLocation, error)

	// Reload re-reads the source file and re-parses it. On any failure the previous source and
	// tables stay in effect and the error is returned.
	//
	// Returns:
	//   - error: ErrNoPath for in-memory shaders, or the read/parse error
	Reload() error

	// Snapshot returns the parse currently in effect, taken under a single lock.
	//
	// Returns:
	//   - *Snapshot: the current parse; its maps are never mutated afterwards
	Snapshot() *Snapshot

	// Module returns the wgpu.ShaderModuleDescriptor for the current source.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the shader module descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor
}

var _ Shader = &shader{}

// NewShader loads a WGSL file and parses it.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - path: the file path to read WGSL source from
//
// Returns:
//   - Shader: the parsed shader
//   - error: if the file cannot be read or lacks an entry point
func NewShader(key string, path string) (Shader, error) {
	if path == "" {
		return nil, fmt.Errorf("shader %s: %w", key, ErrNoPath)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader %s: failed to read source file: %w", key, err)
	}
	s := &shader{key: key, path: filepath.Clean(path)}
	if err := s.apply(string(data)); err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}
	return s, nil
}

// NewShaderFromSource parses an in-memory WGSL source. The returned shader cannot be reloaded.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - source: the WGSL source code
//
// Returns:
//   - Shader: the parsed shader
//   - error: if the source lacks an entry point
func NewShaderFromSource(key string, source string) (Shader, error) {
	s := &shader{key: key}
	if err := s.apply(source); err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Path() string {
	return s.path
}

func (s *shader) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *shader) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *shader) EntryPoint(stage Stage) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entryPoints[stage]
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bindGroupLayoutDescriptors
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vertexLayouts
}

func (s *shader) Uniforms() map[string]UniformInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uniforms
}

func (s *shader) Location(name string) (UniformLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return resolveLocation(s.uniforms, name)
}

func (s *shader) Reload() error {
	if s.path == "" {
		return fmt.Errorf("shader %s: %w", s.key, ErrNoPath)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("shader %s: failed to read source file: %w", s.key, err)
	}
	if err := s.apply(string(data)); err != nil {
		return fmt.Errorf("shader %s: %w", s.key, err)
	}
	return nil
}

func (s *shader) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Snapshot{
		Version:       s.version,
		Module:        s.module,
		EntryPoints:   s.entryPoints,
		Layouts:       s.bindGroupLayoutDescriptors,
		VertexLayouts: s.vertexLayouts,
		Uniforms:      s.uniforms,
	}
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.module
}

// apply parses source and, only if parsing succeeds, swaps the result into the shader.
func (s *shader) apply(source string) error {
	ps, err := parseSource(source)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = ps.source
	s.entryPoints = ps.entryPoints
	s.bindGroupLayoutDescriptors = ps.bindGroupLayoutDescriptors
	s.vertexLayouts = ps.vertexLayouts
	s.uniforms = ps.uniforms
	s.module = &wgpu.ShaderModuleDescriptor{
		Label: s.key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: ps.source,
		},
	}
	s.version++
	return nil
}

// parseSource extracts entry points, vertex layouts, bind group layouts and the uniform table
// from a WGSL source. Layout entries are visible to both stages since one module holds both.
func parseSource(source string) (parsedSource, error) {
	clean := stripComments(source)

	entryPoints := map[Stage]string{
		StageVertex:   parseEntryPoint(clean, StageVertex),
		StageFragment: parseEntryPoint(clean, StageFragment),
	}
	if entryPoints[StageVertex] == "" {
		return parsedSource{}, fmt.Errorf("%w: @vertex", ErrMissingEntryPoint)
	}
	if entryPoints[StageFragment] == "" {
		return parsedSource{}, fmt.Errorf("%w: @fragment", ErrMissingEntryPoint)
	}

	structSizes := computeStructSizes(parseStructBlocks(clean))
	bindings := parseBindings(clean, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, structSizes)
	layouts := buildBindGroupLayouts(bindings)

	return parsedSource{
		source:                     source,
		entryPoints:                entryPoints,
		bindGroupLayoutDescriptors: layouts,
		vertexLayouts:              parseVertexLayouts(clean),
		uniforms:                   buildUniformTable(bindings, structSizes),
	}, nil
}
