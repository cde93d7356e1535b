// Package viewer shows the swarm in a terminal and turns the mouse into
// pointer interaction for the simulation.
package viewer

import (
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/gekko3d/boids/swarmrt/rt/app"
	"github.com/gekko3d/boids/swarmrt/rt/particles"
)

// Heading glyphs, clockwise from +x. World y grows downwards like the screen.
var arrows = [8]rune{'→', '↘', '↓', '↙', '←', '↖', '↑', '↗'}

// Glyph picks the arrow closest to a heading in radians.
func Glyph(heading float32) rune {
	sector := int(math.Round(float64(heading) / (math.Pi / 4)))
	return arrows[((sector%8)+8)%8]
}

// Viewer maps a world of worldW x worldH units onto the whole terminal.
type Viewer struct {
	screen tcell.Screen
	events chan tcell.Event
	done   chan struct{}

	worldW, worldH float32

	pointer app.Pointer
	quit    bool
}

// Open initializes the terminal.
func Open(worldW, worldH int) (*Viewer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return New(screen, worldW, worldH), nil
}

// New wraps an initialized screen.
func New(screen tcell.Screen, worldW, worldH int) *Viewer {
	screen.EnableMouse()
	screen.HideCursor()
	return &Viewer{
		screen: screen,
		events: make(chan tcell.Event, 100),
		done:   make(chan struct{}),
		worldW: float32(worldW),
		worldH: float32(worldH),
	}
}

// Start polls terminal events in the background. They are applied by Poll.
func (v *Viewer) Start() {
	go v.pump()
}

// pump forwards screen events until the screen is finalized or Close is called.
func (v *Viewer) pump() {
	for {
		ev := v.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case v.events <- ev:
		case <-v.done:
			return
		}
	}
}

// Poll applies every queued event without blocking.
func (v *Viewer) Poll() {
	for {
		select {
		case ev := <-v.events:
			v.HandleEvent(ev)
		default:
			return
		}
	}
}

func (v *Viewer) HandleEvent(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		v.handleKey(ev.Key(), ev.Rune())
	case *tcell.EventMouse:
		x, y := ev.Position()
		v.handleMouse(x, y, ev.Buttons())
	case *tcell.EventResize:
		v.screen.Sync()
	}
}

func (v *Viewer) handleKey(key tcell.Key, r rune) {
	switch {
	case key == tcell.KeyEscape, key == tcell.KeyCtrlC:
		v.quit = true
	case key == tcell.KeyRune && (r == 'q' || r == 'Q'):
		v.quit = true
	}
}

// Only a held left button interacts; release clears the pointer.
func (v *Viewer) handleMouse(x, y int, buttons tcell.ButtonMask) {
	if buttons&tcell.Button1 == 0 {
		v.pointer = app.Pointer{}
		return
	}
	wx, wy := v.ToWorld(x, y)
	v.pointer = app.Pointer{X: wx, Y: wy, Active: true}
}

func (v *Viewer) Pointer() app.Pointer { return v.pointer }
func (v *Viewer) Quit() bool           { return v.quit }

// ToWorld returns the world position at the center of a terminal cell.
func (v *Viewer) ToWorld(col, row int) (float32, float32) {
	w, h := v.screen.Size()
	return (float32(col) + 0.5) * v.worldW / float32(w),
		(float32(row) + 0.5) * v.worldH / float32(h)
}

// ToCell returns the terminal cell covering a world position.
func (v *Viewer) ToCell(x, y float32) (int, int, bool) {
	w, h := v.screen.Size()
	col := int(math.Floor(float64(x * float32(w) / v.worldW)))
	row := int(math.Floor(float64(y * float32(h) / v.worldH)))
	return col, row, col >= 0 && row >= 0 && col < w && row < h
}

// Draw renders one glyph per instance. Later instances overwrite earlier
// ones sharing a cell.
func (v *Viewer) Draw(instances []particles.Instance) {
	v.screen.Clear()
	for i := range instances {
		inst := &instances[i]
		col, row, ok := v.ToCell(inst.Position.X(), inst.Position.Y())
		if !ok {
			continue
		}
		r, g, b := inst.Color.RGB255()
		style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(r), int32(g), int32(b)))
		v.screen.SetContent(col, row, Glyph(inst.Heading), nil, style)
	}
	v.screen.Show()
}

// Close restores the terminal and stops the polling goroutine. Calling it
// again does nothing.
func (v *Viewer) Close() {
	select {
	case <-v.done:
		return
	default:
	}
	close(v.done)
	v.screen.Fini()
}
