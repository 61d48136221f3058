package boardspec

import "encoding/json"

// Cell is a board coordinate.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Envelope is the wire representation of a Board. safe_start must
// round-trip under both "safe_start" and "safeStart" (spec.md §6), so it
// is emitted under both keys and accepted from either on decode.
type Envelope struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Mines      int    `json:"mines"`
	Seed       string `json:"seed"`
	Difficulty string `json:"difficulty"`
	SafeStart  Cell   `json:"-"`
}

func NewEnvelope(b Board) Envelope {
	return Envelope{
		Width:      b.Width,
		Height:     b.Height,
		Mines:      b.Mines,
		Seed:       b.Seed,
		Difficulty: b.Difficulty,
		SafeStart:  Cell{X: b.SafeStartX, Y: b.SafeStartY},
	}
}

type envelopeWire struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Mines      int    `json:"mines"`
	Seed       string `json:"seed"`
	Difficulty string `json:"difficulty"`
	SafeStart  Cell   `json:"safe_start"`
	SafeStart2 Cell   `json:"safeStart"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeWire{
		Width:      e.Width,
		Height:     e.Height,
		Mines:      e.Mines,
		Seed:       e.Seed,
		Difficulty: e.Difficulty,
		SafeStart:  e.SafeStart,
		SafeStart2: e.SafeStart,
	})
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w envelopeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Width, e.Height, e.Mines, e.Seed, e.Difficulty = w.Width, w.Height, w.Mines, w.Seed, w.Difficulty
	if w.SafeStart != (Cell{}) {
		e.SafeStart = w.SafeStart
	} else {
		e.SafeStart = w.SafeStart2
	}
	return nil
}
