package oml

import "errors"

const (
	// PreambleLines is the number of header lines the instrument writes before data rows.
	PreambleLines = 9
	// MinFields is the minimum number of tab-separated fields in a data row.
	MinFields = 8
)

var (
	// ErrMalformedRow is returned when a data row cannot be decoded.
	ErrMalformedRow = errors.New("oml: malformed row")
	// ErrFilenameMetadata is returned when a capture name carries no node id.
	ErrFilenameMetadata = errors.New("oml: filename does not match capture pattern")
)

// Record is one decoded measurement row. Power is in W, Voltage in V and
// Current in A.
type Record struct {
	Seconds      int64   `json:"time_s"`
	Microseconds int64   `json:"time_us"`
	Power        float64 `json:"power"`
	Voltage      float64 `json:"voltage"`
	Current      float64 `json:"current"`
}

// Capture is a parsed instrument file.
type Capture struct {
	Records         []Record `json:"-"`
	DataLines       int      `json:"data_lines"`
	BlankLines      int      `json:"blank_lines"`
	SourceSHA256    string   `json:"source_sha256"`
	SourceSizeBytes int64    `json:"source_size_bytes"`
}

// Metadata is what a capture file name says about its origin.
type Metadata struct {
	Node  int    `json:"node"`
	Label string `json:"label,omitempty"`
}
