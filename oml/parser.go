package oml

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const maxLineBytes = 1 << 20

// ParseFile reads and decodes a capture file.
func ParseFile(path string) (*Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes decodes an in-memory capture.
func ParseBytes(data []byte) (*Capture, error) {
	capture, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	capture.SourceSHA256 = hex.EncodeToString(sum[:])
	capture.SourceSizeBytes = int64(len(data))
	return capture, nil
}

// Parse skips the instrument preamble and decodes every data row of r.
func Parse(r io.Reader) (*Capture, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	capture := &Capture{}
	line := 0
	for scanner.Scan() {
		line++
		if line <= PreambleLines {
			continue
		}
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			capture.BlankLines++
			continue
		}
		rec, err := parseRow(text)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, line, err)
		}
		capture.Records = append(capture.Records, rec)
		capture.DataLines++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan capture: %w", err)
	}
	return capture, nil
}

func parseRow(text string) (Record, error) {
	fields := strings.Split(text, "\t")
	if len(fields) < MinFields {
		return Record{}, fmt.Errorf("want at least %d fields, have %d", MinFields, len(fields))
	}
	var (
		rec Record
		err error
	)
	if rec.Seconds, err = strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64); err != nil {
		return Record{}, fmt.Errorf("time_s: %w", err)
	}
	if rec.Microseconds, err = strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64); err != nil {
		return Record{}, fmt.Errorf("time_us: %w", err)
	}
	if rec.Power, err = strconv.ParseFloat(strings.TrimSpace(fields[5]), 64); err != nil {
		return Record{}, fmt.Errorf("power: %w", err)
	}
	if rec.Voltage, err = strconv.ParseFloat(strings.TrimSpace(fields[6]), 64); err != nil {
		return Record{}, fmt.Errorf("voltage: %w", err)
	}
	if rec.Current, err = strconv.ParseFloat(strings.TrimSpace(fields[7]), 64); err != nil {
		return Record{}, fmt.Errorf("current: %w", err)
	}
	return rec, nil
}
