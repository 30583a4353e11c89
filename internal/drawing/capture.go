package drawing

// EventKind is the kind of a raw input event.
type EventKind int

const (
	EventPress   EventKind = iota + 1 // mouse button down, first touch contact
	EventMove                         // pointer or touch moved
	EventRelease                      // button up, touch end
	EventCancel                       // touch cancel
	EventLeave                        // pointer left the surface bounds
)

func (k EventKind) String() string {
	switch k {
	case EventPress:
		return "press"
	case EventMove:
		return "move"
	case EventRelease:
		return "release"
	case EventCancel:
		return "cancel"
	case EventLeave:
		return "leave"
	}
	return "unknown"
}

// ParseEventKind maps a wire name back to an EventKind; ok is false for
// unknown names.
func ParseEventKind(s string) (EventKind, bool) {
	switch s {
	case "press":
		return EventPress, true
	case "move":
		return EventMove, true
	case "release":
		return EventRelease, true
	case "cancel":
		return EventCancel, true
	case "leave":
		return EventLeave, true
	}
	return 0, false
}

// InputSource is the device that produced an event.
type InputSource int

const (
	SourceMouse InputSource = iota
	SourceTouch
	SourcePen
)

// Touch is one contact point of a touch event, in client coordinates.
type Touch struct {
	ClientX float64
	ClientY float64
}

// Event is a raw pointer or touch event in client (viewport) coordinates.
// For touch events the first contact in Touches is used when present.
type Event struct {
	Kind    EventKind
	Source  InputSource
	ClientX float64
	ClientY float64
	Touches []Touch
}

func (ev Event) client() (float64, float64) {
	if ev.Source == SourceTouch && len(ev.Touches) > 0 {
		return ev.Touches[0].ClientX, ev.Touches[0].ClientY
	}
	return ev.ClientX, ev.ClientY
}

// Rect is the surface's bounding rectangle in client coordinates.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Logical maps a client position to logical surface coordinates.
func (r Rect) Logical(clientX, clientY float64) Point {
	return Point{X: clientX - r.Left, Y: clientY - r.Top}
}

// Outcome reports what Handle did with an event. PreventDefault is set for
// every handled press, move and release so the host can keep the gesture
// exclusive to the surface (no scrolling, no text selection).
type Outcome struct {
	Handled        bool
	PreventDefault bool
	Appended       bool
	Point          Point
}

// Listener receives events from a Target.
type Listener func(ev Event) Outcome

// Target is a host element that delivers input events and reports its
// current bounding rectangle. BoundingRect is queried on every event.
type Target interface {
	BoundingRect() Rect
	Listen(l Listener) (stop func())
}

// ToolFunc returns the series the next stroke draws into. It is read once
// per press.
type ToolFunc func() SeriesID

// Segment describes one appended point. Continues is false for the point
// that opened the stroke; otherwise From is the previous point of the same
// stroke.
type Segment struct {
	Series    SeriesID
	From      Point
	To        Point
	Continues bool
}

// State is the capture engine's stroke state.
type State int

const (
	StateIdle State = iota
	StateDrawing
)

func (s State) String() string {
	if s == StateDrawing {
		return "drawing"
	}
	return "idle"
}

// Engine is the Pointer Capture Engine. It owns the transient stroke
// session and appends points to a Model.
type Engine struct {
	model   *Model
	tool    ToolFunc
	onPoint func(Segment)
	onError func(error)

	state  State
	active SeriesID
	last   Point

	stop func()
}

// NewEngine creates an idle engine drawing into model. tool is consulted on
// every press.
func NewEngine(model *Model, tool ToolFunc) *Engine {
	return &Engine{model: model, tool: tool}
}

// OnPoint registers a hook run after every appended point.
func (e *Engine) OnPoint(fn func(Segment)) {
	e.onPoint = fn
}

// OnError registers a hook for errors raised while handling events from an
// attached Target.
func (e *Engine) OnError(fn func(error)) {
	e.onError = fn
}

// State returns the current stroke state.
func (e *Engine) State() State {
	return e.state
}

// ActiveSeries returns the series of the in-progress stroke, or "" when
// idle.
func (e *Engine) ActiveSeries() SeriesID {
	if e.state != StateDrawing {
		return ""
	}
	return e.active
}

// Attach subscribes the engine to t. A previously attached target is
// detached first.
func (e *Engine) Attach(t Target) {
	e.Detach()
	e.stop = t.Listen(func(ev Event) Outcome {
		out, err := e.Handle(ev, t.BoundingRect())
		if err != nil && e.onError != nil {
			e.onError(err)
		}
		return out
	})
}

// Detach unsubscribes from the attached target and ends any stroke.
func (e *Engine) Detach() {
	if e.stop != nil {
		e.stop()
		e.stop = nil
	}
	e.Abort()
}

// Abort ends the in-progress stroke without appending a point.
func (e *Engine) Abort() {
	e.state = StateIdle
	e.active = ""
}

// Handle applies one event. rect must be the surface's bounding rectangle
// at the time of the event.
func (e *Engine) Handle(ev Event, rect Rect) (Outcome, error) {
	switch ev.Kind {
	case EventPress:
		if e.state == StateDrawing {
			// Extra contacts while a stroke is open stay inside the gesture.
			return Outcome{Handled: true, PreventDefault: true}, nil
		}
		id := e.tool()
		p := rect.Logical(ev.client())
		if err := e.model.AppendPoint(id, p); err != nil {
			return Outcome{}, err
		}
		e.state = StateDrawing
		e.active = id
		e.last = p
		e.emit(Segment{Series: id, To: p})
		return Outcome{Handled: true, PreventDefault: true, Appended: true, Point: p}, nil

	case EventMove:
		if e.state != StateDrawing {
			return Outcome{}, nil
		}
		p := rect.Logical(ev.client())
		if err := e.model.AppendPoint(e.active, p); err != nil {
			return Outcome{}, err
		}
		prev := e.last
		e.last = p
		e.emit(Segment{Series: e.active, From: prev, To: p, Continues: true})
		return Outcome{Handled: true, PreventDefault: true, Appended: true, Point: p}, nil

	case EventRelease:
		if e.state != StateDrawing {
			return Outcome{}, nil
		}
		e.Abort()
		return Outcome{Handled: true, PreventDefault: true}, nil

	case EventCancel, EventLeave:
		if e.state != StateDrawing {
			return Outcome{}, nil
		}
		e.Abort()
		return Outcome{Handled: true}, nil
	}
	return Outcome{}, nil
}

func (e *Engine) emit(s Segment) {
	if e.onPoint != nil {
		e.onPoint(s)
	}
}
