// Package app drives the per-frame cycle: rebuild the grid, upload it with
// the pointer state, dispatch the kernel, wait for it and read particles back.
package app

import (
	"math/rand"
	"time"

	"github.com/gekko3d/boids"
	"github.com/gekko3d/boids/swarmrt/rt/codec"
	"github.com/gekko3d/boids/swarmrt/rt/device"
	"github.com/gekko3d/boids/swarmrt/rt/grid"
	"github.com/gekko3d/boids/swarmrt/rt/particles"
	"github.com/pkg/errors"
)

var ErrNotInitialized = errors.New("app: simulation is not initialized")

// FrameContext is what the host environment supplies for one frame.
type FrameContext struct {
	Dt      time.Duration
	Pointer Pointer
}

// BackendFactory opens the compute device. The session takes ownership of the result.
type BackendFactory func() (device.Backend, error)

type Options struct {
	Settings  grid.Settings
	GroupSize int

	Particles      int
	ViewportWidth  int
	ViewportHeight int
	Seed           int64

	Backend BackendFactory
	Kernel  device.Kernel

	// Prime runs one dispatch and readback during Initialize, so the first
	// Step starts from kernel output rather than the seeded state.
	Prime bool

	Logger  boids.Logger
	Metrics *Metrics

	// OnPhase, when set, is called on every phase transition.
	OnPhase func(Phase)
}

// Simulation owns the host state of one run and the device session behind it.
// It is driven from a single goroutine.
type Simulation struct {
	opts     Options
	logger   boids.Logger
	profiler *Profiler

	phase  Phase
	groups device.WorkGroups
	frames uint64

	store      *particles.Store
	grid       *grid.Grid
	gridBytes  []byte
	mouseBytes []byte
	instances  []particles.Instance

	session *device.Session
}

func NewSimulation(opts Options) *Simulation {
	return &Simulation{
		opts:     opts,
		logger:   boids.OrNop(opts.Logger),
		profiler: NewProfiler(),
	}
}

// WorkGroupsFor covers every grid cell with square groups of groupSize.
func WorkGroupsFor(s grid.Settings, groupSize int) device.WorkGroups {
	return device.WorkGroups{
		X: uint32(ceilDiv(int(s.DimX), groupSize)),
		Y: uint32(ceilDiv(int(s.DimY), groupSize)),
		Z: 1,
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Initialize seeds the particles, builds the first grid and creates the
// device session from them. Any failure leaves nothing allocated. A
// simulation that was shut down can be initialized again and starts over
// at frame 0.
func (s *Simulation) Initialize() error {
	if s.session != nil && s.session.Alive() {
		return errors.New("app: simulation already initialized")
	}
	o := s.opts
	if o.Backend == nil {
		return errors.New("app: no backend factory")
	}
	if o.GroupSize <= 0 {
		return errors.Errorf("app: invalid group size %d", o.GroupSize)
	}
	if o.Particles <= 0 {
		return errors.Errorf("app: invalid particle count %d", o.Particles)
	}
	if o.ViewportWidth <= 0 || o.ViewportHeight <= 0 {
		return errors.Errorf("app: invalid viewport %dx%d", o.ViewportWidth, o.ViewportHeight)
	}

	seed := o.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s.store = particles.NewStore(o.Particles)
	s.store.Randomize(rand.New(rand.NewSource(seed)), o.ViewportWidth, o.ViewportHeight)

	s.grid = grid.NewGrid(o.Settings)
	s.grid.Rebuild(s.store.Data())
	s.gridBytes = codec.Bytes(s.grid.Cells())
	s.mouseBytes = NoMouse.Bytes()
	s.groups = WorkGroupsFor(o.Settings, o.GroupSize)

	backend, err := o.Backend()
	if err != nil {
		return errors.Wrap(err, "open compute backend")
	}
	session, err := device.NewSession(backend, device.InitialContents{
		Settings: codec.Bytes(o.Settings.Words()),
		Grid:     s.gridBytes,
		Particle: s.store.Bytes(),
		Mouse:    s.mouseBytes,
	}, o.Kernel)
	if err != nil {
		return errors.Wrap(err, "create device session")
	}
	s.session = session
	s.frames = 0
	s.phase = Idle
	s.profiler = NewProfiler()

	if o.Prime {
		if err := s.prime(); err != nil {
			s.session.Destroy()
			return errors.Wrap(err, "prime device session")
		}
	}

	if o.Metrics != nil {
		o.Metrics.Particles.Set(float64(s.store.Len()))
	}
	s.logger.Infof("session %s: %d particles, grid %dx%d x%d, groups %dx%d",
		session.ID, s.store.Len(), o.Settings.DimX, o.Settings.DimY, o.Settings.MaxPerCell, s.groups.X, s.groups.Y)
	return nil
}

func (s *Simulation) prime() error {
	if err := s.session.Dispatch(s.groups); err != nil {
		return err
	}
	if err := s.session.Sync(); err != nil {
		return err
	}
	raw, err := s.session.ReadParticles()
	if err != nil {
		return err
	}
	s.store.Replace(raw)
	return nil
}

func (s *Simulation) enter(p Phase) {
	s.phase = p
	if s.opts.OnPhase != nil {
		s.opts.OnPhase(p)
	}
}

func (s *Simulation) run(p Phase, fn func() error) error {
	s.enter(p)
	s.profiler.Begin(p)
	err := fn()
	s.profiler.End(p)
	if err != nil {
		s.enter(Idle)
		return errors.Wrapf(err, "frame %d %s", s.frames, p)
	}
	return nil
}

// Step advances the simulation one frame and returns the per-particle
// instances for display. The returned slice is reused by the next Step.
func (s *Simulation) Step(ctx FrameContext) ([]particles.Instance, error) {
	if s.session == nil || !s.session.Alive() {
		return nil, ErrNotInitialized
	}
	s.profiler.Reset()

	err := s.run(GridUpdate, func() error {
		s.grid.Rebuild(s.store.Data())
		codec.Encode(s.gridBytes, s.grid.Cells())
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.run(BufferUpload, func() error {
		if err := s.session.WriteGrid(s.gridBytes); err != nil {
			return err
		}
		MouseFrom(ctx.Pointer).Encode(s.mouseBytes)
		return s.session.WriteMouse(s.mouseBytes)
	})
	if err != nil {
		return nil, err
	}

	if err := s.run(Dispatch, func() error { return s.session.Dispatch(s.groups) }); err != nil {
		return nil, err
	}
	if err := s.run(Sync, s.session.Sync); err != nil {
		return nil, err
	}

	err = s.run(Readback, func() error {
		raw, err := s.session.ReadParticles()
		if err != nil {
			return err
		}
		s.store.Replace(raw)
		s.instances = s.store.Instances(s.instances)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.enter(Idle)

	s.frames++
	s.profiler.SetCount("binned", s.grid.Binned())
	s.profiler.SetCount("dropped", s.grid.Dropped())
	s.profiler.SetCount("out_of_range", s.grid.OutOfRange())
	if s.opts.Metrics != nil {
		s.opts.Metrics.observeFrame(s.profiler, s.grid)
	}
	if s.logger.DebugEnabled() {
		s.logger.Debugf("frame %d dt=%s cycle=%s dropped=%d out_of_range=%d",
			s.frames, ctx.Dt, s.profiler.Total(), s.grid.Dropped(), s.grid.OutOfRange())
	}
	return s.instances, nil
}

// Shutdown destroys the device session. Calling it again, or before
// Initialize, does nothing.
func (s *Simulation) Shutdown() {
	if s.session == nil || !s.session.Alive() {
		return
	}
	id := s.session.ID
	s.session.Destroy()
	s.phase = Idle
	s.logger.Infof("session %s: released after %d frames", id, s.frames)
}

func (s *Simulation) Phase() Phase                  { return s.phase }
func (s *Simulation) Frames() uint64                { return s.frames }
func (s *Simulation) WorkGroups() device.WorkGroups { return s.groups }
func (s *Simulation) Profiler() *Profiler           { return s.profiler }
func (s *Simulation) Store() *particles.Store       { return s.store }
func (s *Simulation) Grid() *grid.Grid              { return s.grid }
func (s *Simulation) Session() *device.Session      { return s.session }
