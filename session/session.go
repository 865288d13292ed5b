// Package session implements the manual region selection workflow as a pure
// state machine. A Session is a caller-owned value; Apply consumes events and
// returns the actions the host adapter must perform. The session never does
// I/O itself, so hosts (CLI, service, tests) stay in full control of side
// effects and many sessions can coexist.
package session

import "fmt"

type State int

const (
	Loading State = iota
	Ready
	Drawing
	Committing
	Closed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Drawing:
		return "drawing"
	case Committing:
		return "committing"
	case Closed:
		return "closed"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// minDragPx is the smallest drag, in render pixels at the drawing scale, that
// produces a region. Anything smaller is a slip of the hand.
const minDragPx = 10.0

// SelectedRegion is a kept selection in render space. Scale records the
// render scale in effect when it was drawn; commit converts each region to
// page space with its own scale.
type SelectedRegion struct {
	Page       int
	X, Y, W, H float64
	Scale      float64
}

// Events.

type Event interface{ isEvent() }

type DocumentLoaded struct{}
type LoadFailed struct{ Err error }
type BeginDraw struct {
	Page  int
	X, Y  float64
	Scale float64
}
type UpdateDraw struct{ X, Y float64 }
type EndDraw struct{}
type RemoveRegion struct{ Index int }
type ClearPage struct{ Page int }
type Commit struct{}
type CommitOK struct{}
type CommitFailed struct{ Err error }
type Cancel struct{}

func (DocumentLoaded) isEvent() {}
func (LoadFailed) isEvent()     {}
func (BeginDraw) isEvent()      {}
func (UpdateDraw) isEvent()     {}
func (EndDraw) isEvent()        {}
func (RemoveRegion) isEvent()   {}
func (ClearPage) isEvent()      {}
func (Commit) isEvent()         {}
func (CommitOK) isEvent()       {}
func (CommitFailed) isEvent()   {}
func (Cancel) isEvent()         {}

// Actions for the host adapter.

type Action interface{ isAction() }

// PerformCommit asks the host to redact the selected regions and feed back
// CommitOK or CommitFailed.
type PerformCommit struct{ Regions []SelectedRegion }

// ReportError surfaces a load or commit failure to the user.
type ReportError struct{ Err error }

func (PerformCommit) isAction() {}
func (ReportError) isAction()   {}

type drag struct {
	page           int
	scale          float64
	startX, startY float64
	curX, curY     float64
}

// Session is single-threaded cooperative state; hosts that share one across
// goroutines must serialize Apply calls themselves.
type Session struct {
	state   State
	regions []SelectedRegion
	draw    drag
}

// New returns a session waiting for its document.
func New() *Session { return &Session{state: Loading} }

func (s *Session) State() State { return s.state }

// Regions returns a copy of the kept selections.
func (s *Session) Regions() []SelectedRegion {
	out := make([]SelectedRegion, len(s.regions))
	copy(out, s.regions)
	return out
}

// Apply advances the machine. Events that make no sense in the current state
// are ignored; a second Commit while Committing is a deliberate no-op.
func (s *Session) Apply(ev Event) []Action {
	switch s.state {
	case Loading:
		return s.applyLoading(ev)
	case Ready:
		return s.applyReady(ev)
	case Drawing:
		return s.applyDrawing(ev)
	case Committing:
		return s.applyCommitting(ev)
	}
	return nil
}

func (s *Session) applyLoading(ev Event) []Action {
	switch e := ev.(type) {
	case DocumentLoaded:
		s.state = Ready
	case LoadFailed:
		s.state = Closed
		return []Action{ReportError{Err: e.Err}}
	}
	return nil
}

func (s *Session) applyReady(ev Event) []Action {
	switch e := ev.(type) {
	case BeginDraw:
		s.state = Drawing
		s.draw = drag{
			page: e.Page, scale: e.Scale,
			startX: e.X, startY: e.Y, curX: e.X, curY: e.Y,
		}
	case RemoveRegion:
		if e.Index >= 0 && e.Index < len(s.regions) {
			s.regions = append(s.regions[:e.Index], s.regions[e.Index+1:]...)
		}
	case ClearPage:
		kept := s.regions[:0]
		for _, r := range s.regions {
			if r.Page != e.Page {
				kept = append(kept, r)
			}
		}
		s.regions = kept
	case Commit:
		if len(s.regions) == 0 {
			return nil
		}
		s.state = Committing
		return []Action{PerformCommit{Regions: s.Regions()}}
	case Cancel:
		s.state = Cancelled
	}
	return nil
}

func (s *Session) applyDrawing(ev Event) []Action {
	switch e := ev.(type) {
	case UpdateDraw:
		s.draw.curX, s.draw.curY = e.X, e.Y
	case EndDraw:
		s.state = Ready
		if r, ok := s.draw.region(); ok {
			s.regions = append(s.regions, r)
		}
	case Cancel:
		s.state = Cancelled
	}
	return nil
}

func (s *Session) applyCommitting(ev Event) []Action {
	switch e := ev.(type) {
	case CommitOK:
		s.state = Closed
	case CommitFailed:
		// Regions stay; the commit is retryable.
		s.state = Ready
		return []Action{ReportError{Err: e.Err}}
	}
	return nil
}

// region normalizes the drag into a kept selection, or reports a degenerate
// one.
func (d drag) region() (SelectedRegion, bool) {
	x, w := span(d.startX, d.curX)
	y, h := span(d.startY, d.curY)
	if w < minDragPx || h < minDragPx {
		return SelectedRegion{}, false
	}
	return SelectedRegion{Page: d.page, X: x, Y: y, W: w, H: h, Scale: d.scale}, true
}

func span(a, b float64) (min, size float64) {
	if a <= b {
		return a, b - a
	}
	return b, a - b
}
