package traceenergy

// Phases of a case window. Only PhaseStable feeds statistics.
const (
	PhaseLeadIn = 0
	PhaseStable = 1
	PhaseTrail  = 2
)

// CaseWindow is a contiguous run of aligned samples sharing one case and phase.
type CaseWindow struct {
	CaseID int `json:"case_id"`
	Phase  int `json:"phase"`
	Start  int `json:"start"`
	End    int `json:"end"` // exclusive
}

// Len returns the number of samples in the window.
func (w CaseWindow) Len() int {
	return w.End - w.Start
}

// Locate maps an aligned sample position to its case (1-based) and phase.
// Each position is computed independently, so a fractional caseRows never
// accumulates drift across the trace.
func Locate(i int, caseRows float64, cases int) (caseID, phase int) {
	caseID = int(float64(i)/caseRows)%cases + 1
	phase = int(float64(i)/(caseRows/3)) % 3
	return caseID, phase
}

// Segment partitions positions [0,n) into maximal runs of equal (case, phase).
func Segment(n int, caseRows float64, cases int) []CaseWindow {
	if n <= 0 || caseRows <= 0 || cases <= 0 {
		return nil
	}
	windows := make([]CaseWindow, 0, 3*cases)
	caseID, phase := Locate(0, caseRows, cases)
	cur := CaseWindow{CaseID: caseID, Phase: phase, Start: 0}
	for i := 1; i < n; i++ {
		caseID, phase = Locate(i, caseRows, cases)
		if caseID == cur.CaseID && phase == cur.Phase {
			continue
		}
		cur.End = i
		windows = append(windows, cur)
		cur = CaseWindow{CaseID: caseID, Phase: phase, Start: i}
	}
	cur.End = n
	return append(windows, cur)
}

// PhaseSamples groups the samples of one phase by case id, preserving order.
func PhaseSamples(trace Trace, caseRows float64, cases, phase int) map[int]Trace {
	out := make(map[int]Trace)
	for i, s := range trace {
		caseID, p := Locate(i, caseRows, cases)
		if p != phase {
			continue
		}
		out[caseID] = append(out[caseID], s)
	}
	return out
}
