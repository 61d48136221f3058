package match

import "encoding/json"

// progressDoc is the minimal shape this service understands inside the
// opaque `progress` blob (spec.md §9: "tagged record {board: {cells, status, ...}}
// without re-validating cell semantics"). Everything else in the blob is
// preserved verbatim and round-tripped to clients untouched.
type progressDoc struct {
	Board struct {
		Cells []progressCell `json:"cells"`
		Status string        `json:"status"`
	} `json:"board"`
}

type progressCell struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Revealed bool   `json:"revealed"`
	Mine     bool   `json:"mine"`
}

// revealedNonMineCount counts revealed non-mine cells in a progress blob.
// Returns ok=false if the blob is empty, can't be parsed as the expected
// shape, or lists no cells. computeRanks then falls back to the step-log
// heuristic; Finish leaves a submitted win unchanged.
func revealedNonMineCount(progress string) (count int, ok bool) {
	if progress == "" {
		return 0, false
	}
	var doc progressDoc
	if err := json.Unmarshal([]byte(progress), &doc); err != nil {
		return 0, false
	}
	if len(doc.Board.Cells) == 0 {
		return 0, false
	}
	n := 0
	for _, c := range doc.Board.Cells {
		if c.Revealed && !c.Mine {
			n++
		}
	}
	return n, true
}

// totalNonMineCells is the denominator the win-coercion heuristic compares
// against (spec.md §4.3 finish rule).
func totalNonMineCells(width, height, mines int) int {
	total := width * height - mines
	if total < 0 {
		return 0
	}
	return total
}

// revealedFromSteps approximates revealed-cell count from the step log
// alone, when no usable progress snapshot was submitted: the count of
// distinct (x, y) cells named by reveal/chord actions. This is a
// deliberately simple heuristic — the server does not know the mine
// layout and therefore cannot replay flood-fill reveals (spec.md §9); it
// only orders players relative to each other.
func revealedFromSteps(steps []stepView) int {
	seen := make(map[[2]int]struct{}, len(steps))
	for _, s := range steps {
		if s.Action != "reveal" && s.Action != "chord" {
			continue
		}
		seen[[2]int{s.X, s.Y}] = struct{}{}
	}
	return len(seen)
}

type stepView struct {
	Action string
	X, Y   int
}
