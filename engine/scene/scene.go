package scene

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-learn/engine/instance"
	"github.com/Carmen-Shannon/oxy-learn/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// nextSceneID hands out scene IDs; the first scene gets 1.
var nextSceneID atomic.Uint64

// Scene is a named, flat collection of instances and light sources. Instances are kept in
// insertion order and pushed in that order. There is no hierarchy.
// Thread-safe for concurrent access.
type Scene interface {
	// ID returns the process-unique scene identifier, assigned at construction.
	ID() uint64

	// Name returns the scene's name.
	Name() string

	// SetName sets the scene's name.
	SetName(name string)

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Ambient returns the ambient light color of the scene.
	Ambient() mgl32.Vec3

	// SetAmbient sets the ambient light color of the scene.
	//
	// Parameters:
	//   - r, g, b: the color components
	SetAmbient(r, g, b float32)

	// Add appends instances to the scene. Nil instances and instances already in the scene are skipped.
	//
	// Parameters:
	//   - instances: the instances to add
	Add(instances ...instance.Instance)

	// Remove removes an instance from the scene.
	//
	// Parameters:
	//   - inst: the instance to remove
	//
	// Returns:
	//   - bool: true if the instance was in the scene
	Remove(inst instance.Instance) bool

	// Get returns the first instance with the given name.
	//
	// Parameters:
	//   - name: the instance name
	//
	// Returns:
	//   - instance.Instance: the instance, or nil if none matches
	Get(name string) instance.Instance

	// Instances returns the scene's instances in insertion order. The slice is a copy.
	//
	// Returns:
	//   - []instance.Instance: the instances
	Instances() []instance.Instance

	// Count returns the number of instances in the scene.
	//
	// Returns:
	//   - int: the instance count
	Count() int

	// Clear removes every instance and light from the scene.
	Clear()

	// AddLight appends light sources to the scene. Nil lights are skipped.
	//
	// Parameters:
	//   - lights: the lights to add
	AddLight(lights ...light.Light)

	// RemoveLight removes a light source from the scene.
	//
	// Parameters:
	//   - l: the light to remove
	//
	// Returns:
	//   - bool: true if the light was in the scene
	RemoveLight(l light.Light) bool

	// Lights returns the scene's light sources in insertion order. The slice is a copy.
	//
	// Returns:
	//   - []light.Light: the lights
	Lights() []light.Light

	// Update runs every instance's update function in parallel on the scene's worker pool and
	// returns once all of them finished.
	//
	// Parameters:
	//   - dt: the frame time in seconds
	Update(dt float64)

	// Push pushes every instance bound to the target's program into the target, in insertion order.
	// Instances bound to other programs are skipped. Must be called on the render thread.
	//
	// Parameters:
	//   - target: the handle of the program being drawn
	//
	// Returns:
	//   - error: the joined errors of the instances that failed to push, or nil
	Push(target instance.Target) error

	// Close stops the scene's worker pool. The scene must not be updated afterwards.
	Close()
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu *sync.RWMutex

	id      uint64
	name    string
	active  bool
	ambient mgl32.Vec3

	instances []instance.Instance
	lights    []light.Light

	// updatePool runs instance updates. Workers persist across frames; a WaitGroup is the
	// per-frame barrier because pool.Wait() only returns once workers go idle.
	updatePool    worker.DynamicWorkerPool
	updateWorkers int
}

var _ Scene = &scene{}

// NewScene creates a new Scene with a fresh ID.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:            &sync.RWMutex{},
		id:            nextSceneID.Add(1),
		name:          name,
		active:        true,
		ambient:       mgl32.Vec3{0.1, 0.1, 0.1},
		updateWorkers: max(runtime.NumCPU()-1, 1),
	}

	for _, option := range options {
		option(s)
	}

	// Initialize the pool after options so WithUpdateWorkers can override the default.
	s.updatePool = worker.NewDynamicWorkerPool(s.updateWorkers, 256, 1*time.Second)

	return s
}

func (s *scene) ID() uint64 {
	return s.id
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Ambient() mgl32.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ambient
}

func (s *scene) SetAmbient(r, g, b float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambient = mgl32.Vec3{r, g, b}
}

func (s *scene) Add(instances ...instance.Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(instances...)
}

func (s *scene) addLocked(instances ...instance.Instance) {
	for _, inst := range instances {
		if inst == nil || s.indexOf(inst) >= 0 {
			continue
		}
		s.instances = append(s.instances, inst)
	}
}

// indexOf returns the position of inst, or -1. Callers hold s.mu.
func (s *scene) indexOf(inst instance.Instance) int {
	for i, existing := range s.instances {
		if existing == inst {
			return i
		}
	}
	return -1
}

func (s *scene) Remove(inst instance.Instance) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(inst)
	if i < 0 {
		return false
	}
	s.instances = append(s.instances[:i], s.instances[i+1:]...)
	return true
}

func (s *scene) Get(name string) instance.Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inst := range s.instances {
		if inst.Name() == name {
			return inst
		}
	}
	return nil
}

func (s *scene) Instances() []instance.Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]instance.Instance, len(s.instances))
	copy(out, s.instances)
	return out
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances = nil
	s.lights = nil
}

func (s *scene) AddLight(lights ...light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLightsLocked(lights...)
}

func (s *scene) addLightsLocked(lights ...light.Light) {
	for _, l := range lights {
		if l != nil {
			s.lights = append(s.lights, l)
		}
	}
}

func (s *scene) RemoveLight(l light.Light) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.lights {
		if existing == l {
			s.lights = append(s.lights[:i], s.lights[i+1:]...)
			return true
		}
	}
	return false
}

func (s *scene) Lights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]light.Light, len(s.lights))
	copy(out, s.lights)
	return out
}

func (s *scene) Update(dt float64) {
	instances := s.Instances()
	if len(instances) == 0 {
		return
	}

	var wg sync.WaitGroup
	for id, inst := range instances {
		wg.Add(1)
		s.updatePool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				inst.Update(dt)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (s *scene) Push(target instance.Target) error {
	programID := target.ProgramID()

	var errs []error
	for _, inst := range s.Instances() {
		if inst.ProgramID() != programID {
			continue
		}
		if err := inst.Push(target); err != nil {
			errs = append(errs, fmt.Errorf("scene %q: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *scene) Close() {
	s.updatePool.Stop()
}
