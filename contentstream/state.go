package contentstream

import (
	"context"

	"github.com/hyeonwoo/redactkit/coords"
	"github.com/hyeonwoo/redactkit/security"
)

// GraphicsState carries the subset of PDF graphics state the redaction
// pipelines consume. Colors are RGB in [0,1].
type GraphicsState struct {
	CTM         coords.Matrix
	FillColor   [3]float64
	StrokeColor [3]float64
	LineWidth   float64
}

// TextState tracks the text object parameters between BT and ET.
type TextState struct {
	Font        string // resource name set by Tf
	FontSize    float64
	Tm          coords.Matrix // text matrix
	Tlm         coords.Matrix // text line matrix
	Leading     float64
	CharSpacing float64
	WordSpacing float64
	HorizScale  float64 // percent, 100 = none
	Rise        float64
	RenderMode  int
}

// State is the combined machine a processor run mutates.
type State struct {
	Graphics GraphicsState
	Text     TextState
	stack    []GraphicsState
}

// NewState returns the default state: identity CTM, black fill, 1pt lines.
func NewState() *State {
	return &State{
		Graphics: GraphicsState{CTM: coords.Identity(), LineWidth: 1},
		Text:     TextState{Tm: coords.Identity(), Tlm: coords.Identity(), HorizScale: 100},
	}
}

func (st *State) save() { st.stack = append(st.stack, st.Graphics) }

func (st *State) restore() {
	if n := len(st.stack); n > 0 {
		st.Graphics = st.stack[n-1]
		st.stack = st.stack[:n-1]
	}
}

// nextLine moves the text position down one line (the T* operator).
func (t *TextState) nextLine() {
	t.Tlm = coords.Translate(0, -t.Leading).Multiply(t.Tlm)
	t.Tm = t.Tlm
}

// ShowAdvance applies the horizontal displacement of shown text to the text
// matrix. The caller computes tx from glyph widths and spacing.
func (t *TextState) ShowAdvance(tx float64) {
	t.Tm = coords.Translate(tx, 0).Multiply(t.Tm)
}

// Origin returns the current text origin in device space.
func (t *TextState) Origin(g GraphicsState) coords.Point {
	return t.Tm.Multiply(g.CTM).Transform(coords.Point{X: 0, Y: t.Rise})
}

// Apply executes the state-changing effect of an operator. Operators without
// a state effect and malformed operand lists are ignored.
func (st *State) Apply(op Op) {
	g := &st.Graphics
	t := &st.Text
	switch op.Operator {
	case "q":
		st.save()
	case "Q":
		st.restore()
	case "cm":
		if v, ok := Floats(op.Operands, 6); ok {
			m := coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
			g.CTM = m.Multiply(g.CTM)
		}
	case "w":
		if v, ok := Floats(op.Operands, 1); ok {
			g.LineWidth = v[0]
		}
	case "rg":
		if v, ok := Floats(op.Operands, 3); ok {
			g.FillColor = [3]float64{v[0], v[1], v[2]}
		}
	case "RG":
		if v, ok := Floats(op.Operands, 3); ok {
			g.StrokeColor = [3]float64{v[0], v[1], v[2]}
		}
	case "g":
		if v, ok := Floats(op.Operands, 1); ok {
			g.FillColor = [3]float64{v[0], v[0], v[0]}
		}
	case "G":
		if v, ok := Floats(op.Operands, 1); ok {
			g.StrokeColor = [3]float64{v[0], v[0], v[0]}
		}
	case "BT":
		t.Tm = coords.Identity()
		t.Tlm = coords.Identity()
	case "Tf":
		if len(op.Operands) >= 2 {
			if name, ok := NameOperand(op.Operands[len(op.Operands)-2]); ok {
				t.Font = name
			}
			if size, ok := Float(op.Operands[len(op.Operands)-1]); ok {
				t.FontSize = size
			}
		}
	case "Td":
		if v, ok := Floats(op.Operands, 2); ok {
			t.Tlm = coords.Translate(v[0], v[1]).Multiply(t.Tlm)
			t.Tm = t.Tlm
		}
	case "TD":
		if v, ok := Floats(op.Operands, 2); ok {
			t.Leading = -v[1]
			t.Tlm = coords.Translate(v[0], v[1]).Multiply(t.Tlm)
			t.Tm = t.Tlm
		}
	case "Tm":
		if v, ok := Floats(op.Operands, 6); ok {
			t.Tlm = coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
			t.Tm = t.Tlm
		}
	case "T*":
		t.nextLine()
	case "TL":
		if v, ok := Floats(op.Operands, 1); ok {
			t.Leading = v[0]
		}
	case "Tc":
		if v, ok := Floats(op.Operands, 1); ok {
			t.CharSpacing = v[0]
		}
	case "Tw":
		if v, ok := Floats(op.Operands, 1); ok {
			t.WordSpacing = v[0]
		}
	case "Tz":
		if v, ok := Floats(op.Operands, 1); ok {
			t.HorizScale = v[0]
		}
	case "Ts":
		if v, ok := Floats(op.Operands, 1); ok {
			t.Rise = v[0]
		}
	case "Tr":
		if v, ok := Floats(op.Operands, 1); ok {
			t.RenderMode = int(v[0])
		}
	case "'":
		t.nextLine()
	case "\"":
		if v, ok := Floats(op.Operands[:max(len(op.Operands)-1, 0)], 2); ok {
			t.WordSpacing = v[0]
			t.CharSpacing = v[1]
		}
		t.nextLine()
	}
}

// HandlerFunc observes one operator after its state effect has been applied.
type HandlerFunc func(st *State, op Op) error

// Processor walks a content stream, maintaining state and dispatching to
// registered handlers.
type Processor struct {
	handlers map[string]HandlerFunc
	limits   security.Limits
}

func NewProcessor(limits security.Limits) *Processor {
	return &Processor{handlers: make(map[string]HandlerFunc), limits: limits.OrDefault()}
}

// Handle registers a handler for one or more operators.
func (p *Processor) Handle(h HandlerFunc, operators ...string) {
	for _, op := range operators {
		p.handlers[op] = h
	}
}

// Run parses data and feeds every operation through the state machine and any
// matching handler.
func (p *Processor) Run(ctx context.Context, data []byte, st *State) error {
	ops, err := Parse(ctx, data, p.limits)
	if err != nil {
		return err
	}
	for _, op := range ops {
		st.Apply(op)
		if h, ok := p.handlers[op.Operator]; ok {
			if err := h(st, op); err != nil {
				return err
			}
		}
	}
	return nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
