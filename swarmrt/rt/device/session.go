package device

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Fixed binding slots shared with the kernel.
const (
	SlotSettings uint32 = 0
	SlotGrid     uint32 = 1
	SlotParticle uint32 = 2
	SlotMouse    uint32 = 3
)

// MouseSentinel fills both mouse buffer words when there is no pointer interaction.
const MouseSentinel float32 = 696969.0

// BufferName is the role of one of the session's buffers.
type BufferName string

const (
	SettingsBuffer BufferName = "settings"
	GridBuffer     BufferName = "grid"
	ParticleBuffer BufferName = "particle"
	MouseBuffer    BufferName = "mouse"
)

// bufferDescriptor is one row of the binding table.
type bufferDescriptor struct {
	name   BufferName
	slot   uint32
	access BufferAccess
}

// BindingTable maps binding slots to buffer identities.
// It is built once per session and reused for every dispatch.
type BindingTable struct {
	rows []bufferDescriptor
}

// DefaultBindingTable is the slot layout the boids kernel is compiled against.
func DefaultBindingTable() BindingTable {
	return BindingTable{rows: []bufferDescriptor{
		{name: SettingsBuffer, slot: SlotSettings, access: Immutable},
		{name: GridBuffer, slot: SlotGrid, access: HostWritable},
		{name: ParticleBuffer, slot: SlotParticle, access: DeviceWritable},
		{name: MouseBuffer, slot: SlotMouse, access: HostWritable},
	}}
}

// Slot returns the binding slot for a buffer name.
func (t BindingTable) Slot(name BufferName) (uint32, bool) {
	for _, r := range t.rows {
		if r.name == name {
			return r.slot, true
		}
	}
	return 0, false
}

// Names lists buffer names in slot order.
func (t BindingTable) Names() []BufferName {
	out := make([]BufferName, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.name
	}
	return out
}

func (t BindingTable) bindings(handles map[BufferName]Handle) ([]Binding, error) {
	out := make([]Binding, 0, len(t.rows))
	for _, r := range t.rows {
		h := handles[r.name]
		if !h.Valid() {
			return nil, errors.Wrapf(ErrMissingBinding, "slot %d (%s)", r.slot, r.name)
		}
		out = append(out, Binding{Slot: r.slot, Buffer: h})
	}
	return out, nil
}

// Kernel describes the compute program to load.
type Kernel struct {
	Label      string
	Source     string
	EntryPoint string
}

// InitialContents holds the starting bytes of each buffer.
type InitialContents struct {
	Settings []byte
	Grid     []byte
	Particle []byte
	Mouse    []byte
}

func (c InitialContents) of(name BufferName) []byte {
	switch name {
	case SettingsBuffer:
		return c.Settings
	case GridBuffer:
		return c.Grid
	case ParticleBuffer:
		return c.Particle
	case MouseBuffer:
		return c.Mouse
	}
	return nil
}

// Session exclusively owns every device resource of one simulation run.
type Session struct {
	ID uuid.UUID

	backend Backend
	table   BindingTable

	buffers  map[BufferName]Handle
	kernel   Handle
	pipeline Handle
	set      Handle

	particleSize int
}

// NewSession allocates the four buffers, compiles the kernel, builds the
// pipeline and binds everything into one set. On failure every resource
// created so far is released, the backend is closed, and the error is returned.
func NewSession(backend Backend, contents InitialContents, kernel Kernel) (*Session, error) {
	s := &Session{
		ID:      uuid.New(),
		backend: backend,
		table:   DefaultBindingTable(),
		buffers: make(map[BufferName]Handle, 4),
	}
	if err := s.create(contents, kernel); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

func (s *Session) create(contents InitialContents, kernel Kernel) error {
	for _, r := range s.table.rows {
		data := contents.of(r.name)
		if len(data) == 0 {
			return errors.Errorf("device: %s buffer has no initial contents", r.name)
		}
		h, err := s.backend.CreateBuffer(string(r.name), data, r.access)
		if err != nil {
			return errors.Wrapf(err, "create %s buffer", r.name)
		}
		s.buffers[r.name] = h
	}
	s.particleSize = len(contents.Particle)

	var err error
	s.kernel, err = s.backend.CreateKernel(kernel.Label, kernel.Source)
	if err != nil {
		return errors.Wrapf(err, "compile kernel %q", kernel.Label)
	}
	s.pipeline, err = s.backend.CreatePipeline(s.kernel, kernel.EntryPoint)
	if err != nil {
		return errors.Wrap(err, "create pipeline")
	}

	bindings, err := s.table.bindings(s.buffers)
	if err != nil {
		return err
	}
	s.set, err = s.backend.CreateBindingSet(s.pipeline, 0, bindings)
	if err != nil {
		return errors.Wrap(err, "create binding set")
	}
	return nil
}

// Buffer returns the handle behind a buffer name, or InvalidHandle.
func (s *Session) Buffer(name BufferName) Handle { return s.buffers[name] }

func (s *Session) Kernel() Handle     { return s.kernel }
func (s *Session) Pipeline() Handle   { return s.pipeline }
func (s *Session) BindingSet() Handle { return s.set }
func (s *Session) Table() BindingTable { return s.table }

// Alive reports whether the session still holds its device.
func (s *Session) Alive() bool { return s.backend != nil }

// WriteGrid overwrites the grid buffer.
func (s *Session) WriteGrid(data []byte) error {
	return s.write(GridBuffer, data)
}

// WriteMouse overwrites the mouse buffer.
func (s *Session) WriteMouse(data []byte) error {
	return s.write(MouseBuffer, data)
}

func (s *Session) write(name BufferName, data []byte) error {
	if !s.Alive() {
		return ErrDestroyed
	}
	return errors.Wrapf(s.backend.WriteBuffer(s.buffers[name], 0, data), "write %s buffer", name)
}

// Dispatch submits one kernel invocation over groups.
func (s *Session) Dispatch(groups WorkGroups) error {
	if !s.Alive() {
		return ErrDestroyed
	}
	return errors.Wrap(s.backend.Submit(s.pipeline, s.set, groups), "submit dispatch")
}

// Sync blocks until the device has finished all submitted work.
func (s *Session) Sync() error {
	if !s.Alive() {
		return ErrDestroyed
	}
	return errors.Wrap(s.backend.Sync(), "sync device")
}

// ReadParticles copies the entire particle buffer back to the host.
func (s *Session) ReadParticles() ([]byte, error) {
	if !s.Alive() {
		return nil, ErrDestroyed
	}
	data, err := s.backend.ReadBuffer(s.buffers[ParticleBuffer])
	if err != nil {
		return nil, errors.Wrap(err, "read particle buffer")
	}
	if len(data) != s.particleSize {
		return nil, errors.Errorf("device: particle readback is %d bytes, want %d", len(data), s.particleSize)
	}
	return data, nil
}

// Destroy releases every owned resource and resets each handle to
// InvalidHandle. The binding set goes first so nothing it references is
// released while it is still alive. Calling Destroy again is a no-op.
func (s *Session) Destroy() {
	if s.backend == nil {
		return
	}

	s.backend.Free(s.set)
	s.set = InvalidHandle

	s.backend.Free(s.pipeline)
	s.pipeline = InvalidHandle

	s.backend.Free(s.kernel)
	s.kernel = InvalidHandle

	for _, name := range s.table.Names() {
		s.backend.Free(s.buffers[name])
		s.buffers[name] = InvalidHandle
	}

	s.backend.Close()
	s.backend = nil
}
