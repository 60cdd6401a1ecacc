package traceenergy

import "sort"

// AggregationKind selects the representative statistic of a case.
type AggregationKind string

const (
	// AggregateMean is used for steady states (idle, sleep, RX, LEDs).
	AggregateMean AggregationKind = "mean"
	// AggregateMax is used for intrinsically bursty states (active transmission).
	AggregateMax AggregationKind = "max"
)

// CaseInfo is the meaning of one case id in an experiment.
type CaseInfo struct {
	Label string          `json:"label"`
	Kind  AggregationKind `json:"kind"`
	Event bool            `json:"event"`
}

// Taxonomy maps case ids to their meaning. Ids without an entry are sync or
// guard cases and never appear in results.
type Taxonomy map[int]CaseInfo

// Lookup returns the info for caseID.
func (t Taxonomy) Lookup(caseID int) (CaseInfo, bool) {
	info, ok := t[caseID]
	return info, ok
}

// IDs returns the known case ids in ascending order.
func (t Taxonomy) IDs() []int {
	ids := make([]int, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// EventIDs returns the ids of event cases in ascending order.
func (t Taxonomy) EventIDs() []int {
	ids := make([]int, 0)
	for _, id := range t.IDs() {
		if t[id].Event {
			ids = append(ids, id)
		}
	}
	return ids
}

// CaseByLabel returns the lowest case id carrying label.
func (t Taxonomy) CaseByLabel(label string) (int, bool) {
	for _, id := range t.IDs() {
		if t[id].Label == label {
			return id, true
		}
	}
	return 0, false
}

// Labels returns case labels ordered by case id, without duplicates.
func (t Taxonomy) Labels() []string {
	seen := make(map[string]struct{}, len(t))
	out := make([]string, 0, len(t))
	for _, id := range t.IDs() {
		label := t[id].Label
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}
