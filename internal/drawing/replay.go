package drawing

// Surface is implemented by Signature and Chart.
type Surface interface {
	Handle(ev Event, rect Rect) (Outcome, error)
	State() State
}

// Recorded is one captured event together with the bounding rectangle
// observed when it fired.
type Recorded struct {
	Event Event
	Rect  Rect
}

// Replay feeds recorded events through s in order and returns how many
// points were appended. It stops at the first error.
func Replay(s Surface, events []Recorded) (int, error) {
	n := 0
	for _, r := range events {
		out, err := s.Handle(r.Event, r.Rect)
		if err != nil {
			return n, err
		}
		if out.Appended {
			n++
		}
	}
	return n, nil
}
