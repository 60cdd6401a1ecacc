package traceenergy

import "testing"

func TestSegmentCoversEveryIndexOnce(t *testing.T) {
	for _, tc := range []struct {
		caseRows float64
		cases    int
	}{
		{10, 4},
		{7.3, 5},
		{4545.4545, 3},
		{3.1, 43},
	} {
		n := int(float64(tc.cases) * tc.caseRows)
		windows := Segment(n, tc.caseRows, tc.cases)
		next := 0
		for _, w := range windows {
			if w.Start != next || w.Len() <= 0 {
				t.Fatalf("caseRows=%v: window %+v does not continue at %d", tc.caseRows, w, next)
			}
			if w.CaseID < 1 || w.CaseID > tc.cases || w.Phase < 0 || w.Phase > 2 {
				t.Fatalf("caseRows=%v: window %+v out of range", tc.caseRows, w)
			}
			for i := w.Start; i < w.End; i++ {
				caseID, phase := Locate(i, tc.caseRows, tc.cases)
				if caseID != w.CaseID || phase != w.Phase {
					t.Fatalf("caseRows=%v: index %d located at (%d,%d), window says (%d,%d)", tc.caseRows, i, caseID, phase, w.CaseID, w.Phase)
				}
			}
			next = w.End
		}
		if next != n {
			t.Fatalf("caseRows=%v: windows end at %d want %d", tc.caseRows, next, n)
		}
	}
}

func TestLocateWrapsAfterLastCase(t *testing.T) {
	if c, p := Locate(41, 10, 4); c != 1 || p != 0 {
		t.Fatalf("Locate(41)=(%d,%d) want (1,0)", c, p)
	}
	if c, p := Locate(15, 10, 4); c != 2 || p != 1 {
		t.Fatalf("Locate(15)=(%d,%d) want (2,1)", c, p)
	}
}

func TestPhaseSamplesStableThird(t *testing.T) {
	trace := buildTrace(repeat(0.01, 40), 1000)
	groups := PhaseSamples(trace, 10, 4, PhaseStable)
	if len(groups) != 4 {
		t.Fatalf("groups=%d want 4", len(groups))
	}
	// int(i/(10/3)) == 1 for i = 4, 5, 6
	for id, g := range groups {
		if len(g) != 3 {
			t.Fatalf("case %d has %d stable samples, want 3", id, len(g))
		}
	}
}
