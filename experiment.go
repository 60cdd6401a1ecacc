package traceenergy

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/lucasjlepore/trace-analyzer/oml"
	"gopkg.in/yaml.v3"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// DefaultFilenamePattern extracts the node id and an optional free-text label
// from instrument capture names such as m3-123.oml or m3_123_broadcast.oml.
const DefaultFilenamePattern = `m3[-_]([0-9]+)(?:[-_](.+?))?\.oml$`

// BaselineSource selects where the event baseline comes from.
type BaselineSource string

const (
	// BaselineNone subtracts nothing.
	BaselineNone BaselineSource = "none"
	// BaselineCase uses the mean of a named case of the same file.
	BaselineCase BaselineSource = "case"
	// BaselinePhase0 uses the mean of every lead-in phase sample of the aligned trace.
	BaselinePhase0 BaselineSource = "phase0"
)

// SyncConfig describes the start-of-experiment marker.
type SyncConfig struct {
	Kind SyncKind `yaml:"kind" json:"kind"`
	// Code and Bits describe a bit marker.
	Code uint64 `yaml:"code" json:"code,omitempty"`
	Bits int    `yaml:"bits" json:"bits,omitempty"`
	// Strip removes the marker samples after alignment so case 1 starts
	// right after the marker. Always on for constant-level markers.
	Strip bool `yaml:"strip" json:"strip"`
	// Transmissions, RowError and Level describe a constant-level marker.
	Transmissions int     `yaml:"transmissions" json:"transmissions,omitempty"`
	RowError      float64 `yaml:"row_error" json:"row_error,omitempty"`
	Level         float64 `yaml:"level" json:"level,omitempty"`
}

// RadioConfig sizes one transmitted frame.
type RadioConfig struct {
	FrameBytes int     `yaml:"frame_bytes" json:"frame_bytes"`
	RateKbps   float64 `yaml:"rate_kbps" json:"rate_kbps"`
}

// DurationUS is the on-air time of one frame in microseconds.
func (r RadioConfig) DurationUS() float64 {
	if r.FrameBytes <= 0 || r.RateKbps <= 0 {
		return 0
	}
	return TransmissionDurationUS(r.FrameBytes, r.RateKbps)
}

// BaselineConfig selects the baseline subtracted from event windows.
type BaselineConfig struct {
	Source BaselineSource `yaml:"source" json:"source"`
	Case   string         `yaml:"case" json:"case,omitempty"`
}

// PlotConfig styles the optional verification plot.
type PlotConfig struct {
	// FirstCase is the first case drawn with an alternating marker.
	FirstCase    int        `yaml:"first_case" json:"first_case"`
	MarkerLevels [2]float64 `yaml:"marker_levels" json:"marker_levels"`
}

// TaxonomyEntry describes one case id or a range of ids. Label is a
// text/template rendered with ID, Offset (ID-From), Index (Offset/Stride),
// Value (Values[Index]) and Even (ID%2 == 0).
type TaxonomyEntry struct {
	ID     int             `yaml:"id"`
	From   int             `yaml:"from"`
	To     int             `yaml:"to"`
	Label  string          `yaml:"label"`
	Values []string        `yaml:"values"`
	Stride int             `yaml:"stride"`
	Kind   AggregationKind `yaml:"kind"`
	Event  bool            `yaml:"event"`
}

// Experiment is one recognized experiment type: the case timeline, the sync
// marker, the radio frame and the case taxonomy.
type Experiment struct {
	Name               string          `yaml:"name" json:"name"`
	Description        string          `yaml:"description" json:"description,omitempty"`
	Cases              int             `yaml:"cases" json:"cases"`
	CaseDurationS      float64         `yaml:"case_duration_s" json:"case_duration_s"`
	StartupS           float64         `yaml:"startup_s" json:"startup_s,omitempty"`
	IntervalLookback   int             `yaml:"interval_lookback" json:"interval_lookback"`
	IntervalLookbackUS int             `yaml:"interval_lookback_us" json:"interval_lookback_us"`
	Bounds             Bounds          `yaml:"bounds" json:"bounds"`
	Sync               SyncConfig      `yaml:"sync" json:"sync"`
	Radio              RadioConfig     `yaml:"radio" json:"radio"`
	Baseline           BaselineConfig  `yaml:"baseline" json:"baseline"`
	Plot               PlotConfig      `yaml:"plot" json:"-"`
	FilenamePattern    string          `yaml:"filename_pattern" json:"filename_pattern"`
	TaxonomyEntries    []TaxonomyEntry `yaml:"taxonomy" json:"-"`

	taxonomy Taxonomy
}

// Taxonomy returns the compiled case taxonomy. Prepare must have succeeded.
func (e *Experiment) Taxonomy() Taxonomy {
	return e.taxonomy
}

// SyncRowsToStrip returns how many marker rows Trim removes.
func (e *Experiment) SyncRowsToStrip(pattern SyncPattern) int {
	if e.Sync.Kind == SyncConstant || e.Sync.Strip {
		return pattern.Len()
	}
	return 0
}

// Prepare fills defaults, compiles the taxonomy and validates the experiment.
func (e *Experiment) Prepare() error {
	e.applyDefaults()
	tax, err := compileTaxonomy(e.TaxonomyEntries, e.Cases)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidExperiment, e.Name, err)
	}
	e.taxonomy = tax
	if err := e.validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidExperiment, e.Name, err)
	}
	return nil
}

func (e *Experiment) applyDefaults() {
	e.Name = strings.TrimSpace(e.Name)
	if e.IntervalLookback == 0 {
		e.IntervalLookback = DefaultIntervalLookback
	}
	if e.IntervalLookbackUS == 0 {
		e.IntervalLookbackUS = DefaultIntervalLookbackMicros
	}
	if e.Bounds == (Bounds{}) {
		e.Bounds = DefaultBounds
	}
	if e.Sync.Kind == "" {
		e.Sync.Kind = SyncBits
	}
	if e.Sync.Kind == SyncBits && e.Sync.Bits == 0 {
		e.Sync.Bits = 8
	}
	if e.Sync.Kind == SyncConstant && e.Sync.Level == 0 {
		e.Sync.Level = DefaultConstantLevel
	}
	if e.Baseline.Source == "" {
		e.Baseline.Source = BaselineNone
	}
	if e.Plot.FirstCase == 0 {
		e.Plot.FirstCase = 1
	}
	if e.Plot.MarkerLevels == [2]float64{} {
		e.Plot.MarkerLevels = [2]float64{0.115, 0.12}
	}
	if e.FilenamePattern == "" {
		e.FilenamePattern = DefaultFilenamePattern
	}
}

func (e *Experiment) validate() error {
	if e.Name == "" {
		return fmt.Errorf("name is required")
	}
	if e.Cases <= 0 {
		return fmt.Errorf("cases must be positive, got %d", e.Cases)
	}
	if !(e.CaseDurationS > 0) {
		return fmt.Errorf("case_duration_s must be positive, got %g", e.CaseDurationS)
	}
	if e.StartupS < 0 {
		return fmt.Errorf("startup_s must not be negative")
	}
	if e.IntervalLookback < 2 || e.IntervalLookbackUS < 2 {
		return fmt.Errorf("interval lookback must be at least 2 samples")
	}
	if !(e.Bounds.Max > e.Bounds.Min) {
		return fmt.Errorf("bounds max %g must exceed min %g", e.Bounds.Max, e.Bounds.Min)
	}
	switch e.Sync.Kind {
	case SyncBits:
		if e.Sync.Bits <= 0 || e.Sync.Bits > 64 {
			return fmt.Errorf("sync bits must be within 1..64, got %d", e.Sync.Bits)
		}
		if e.Sync.Bits < 64 && e.Sync.Code>>uint(e.Sync.Bits) != 0 {
			return fmt.Errorf("sync code %d does not fit in %d bits", e.Sync.Code, e.Sync.Bits)
		}
	case SyncConstant:
		if e.Sync.Transmissions <= 0 {
			return fmt.Errorf("constant sync needs a positive transmission count")
		}
		if e.Radio.DurationUS() == 0 {
			return fmt.Errorf("constant sync needs radio frame_bytes and rate_kbps")
		}
		if e.Sync.Level <= 0 || e.Sync.Level >= 1 {
			return fmt.Errorf("constant sync level must be within (0,1), got %g", e.Sync.Level)
		}
	default:
		return fmt.Errorf("unsupported sync kind %q", e.Sync.Kind)
	}
	if len(e.taxonomy.EventIDs()) > 0 && e.Radio.DurationUS() == 0 {
		return fmt.Errorf("event cases need radio frame_bytes and rate_kbps")
	}
	if err := oml.ValidatePattern(e.FilenamePattern); err != nil {
		return err
	}
	switch e.Baseline.Source {
	case BaselineNone, BaselinePhase0:
	case BaselineCase:
		if _, ok := e.taxonomy.CaseByLabel(e.Baseline.Case); !ok {
			return fmt.Errorf("baseline case %q is not in the taxonomy", e.Baseline.Case)
		}
	default:
		return fmt.Errorf("unsupported baseline source %q", e.Baseline.Source)
	}
	return nil
}

type labelData struct {
	ID     int
	Offset int
	Index  int
	Value  string
	Even   bool
}

func compileTaxonomy(entries []TaxonomyEntry, cases int) (Taxonomy, error) {
	tax := make(Taxonomy)
	for i, entry := range entries {
		from, to := entry.From, entry.To
		if entry.ID != 0 {
			from, to = entry.ID, entry.ID
		}
		if from <= 0 || to < from || to > cases {
			return nil, fmt.Errorf("taxonomy entry %d: case range %d..%d outside 1..%d", i, from, to, cases)
		}
		kind := entry.Kind
		if kind == "" {
			kind = AggregateMean
		}
		if kind != AggregateMean && kind != AggregateMax {
			return nil, fmt.Errorf("taxonomy entry %d: unsupported kind %q", i, kind)
		}
		stride := entry.Stride
		if stride <= 0 {
			stride = 1
		}
		tmpl, err := template.New("label").Option("missingkey=error").Parse(entry.Label)
		if err != nil {
			return nil, fmt.Errorf("taxonomy entry %d: label template: %w", i, err)
		}
		for id := from; id <= to; id++ {
			data := labelData{ID: id, Offset: id - from, Index: (id - from) / stride, Even: id%2 == 0}
			if len(entry.Values) > 0 {
				if data.Index >= len(entry.Values) {
					return nil, fmt.Errorf("taxonomy entry %d: case %d needs value %d, have %d", i, id, data.Index, len(entry.Values))
				}
				data.Value = entry.Values[data.Index]
			}
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, data); err != nil {
				return nil, fmt.Errorf("taxonomy entry %d: render label for case %d: %w", i, id, err)
			}
			label := strings.TrimSpace(buf.String())
			if label == "" {
				return nil, fmt.Errorf("taxonomy entry %d: empty label for case %d", i, id)
			}
			if _, dup := tax[id]; dup {
				return nil, fmt.Errorf("taxonomy entry %d: case %d defined twice", i, id)
			}
			tax[id] = CaseInfo{Label: label, Kind: kind, Event: entry.Event}
		}
	}
	return tax, nil
}

type experimentFile struct {
	Experiments []Experiment `yaml:"experiments"`
}

// ParseExperiments decodes and prepares every experiment in a YAML document.
func ParseExperiments(data []byte) ([]*Experiment, error) {
	var doc experimentFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode experiments: %w", err)
	}
	out := make([]*Experiment, 0, len(doc.Experiments))
	for i := range doc.Experiments {
		exp := doc.Experiments[i]
		if err := exp.Prepare(); err != nil {
			return nil, err
		}
		out = append(out, &exp)
	}
	return out, nil
}

// Registry holds the recognized experiments by name.
type Registry map[string]*Experiment

// LoadRegistry returns the built-in presets overlaid with the experiments in
// path. An empty path loads the presets only.
func LoadRegistry(path string) (Registry, error) {
	reg := make(Registry)
	err := fs.WalkDir(presetFS, "presets", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := presetFS.ReadFile(name)
		if err != nil {
			return err
		}
		exps, err := ParseExperiments(data)
		if err != nil {
			return fmt.Errorf("preset %s: %w", name, err)
		}
		for _, exp := range exps {
			reg[exp.Name] = exp
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return reg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiments: %w", err)
	}
	exps, err := ParseExperiments(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, exp := range exps {
		reg[exp.Name] = exp
	}
	return reg, nil
}

// Get returns the experiment registered under name.
func (r Registry) Get(name string) (*Experiment, error) {
	exp, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownExperiment, name, strings.Join(r.Names(), ", "))
	}
	return exp, nil
}

// Names returns the registered experiment names, sorted.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
