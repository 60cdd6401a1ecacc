package oml

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Encode writes records in the instrument layout: a fixed preamble followed by
// one tab-separated row per record. Synthetic captures round-trip through Parse.
func Encode(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	preamble := []string{
		"protocol: 5.0",
		"domain: iotlab",
		"start-time: 0",
		"sender-id: trace-analyzer",
		"app-name: control_node_measures",
		"schema: 0 _experiment_metadata subject:string key:string value:string",
		"schema: 1 control_node_measures_consumption timestamp_s:uint32 timestamp_us:uint32 power:double voltage:double current:double",
		"content: text",
		"",
	}
	for _, line := range preamble[:PreambleLines] {
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	for i, rec := range records {
		elapsed := float64(rec.Seconds) + float64(rec.Microseconds)/1e6
		_, err := fmt.Fprintf(bw, "%s\t1\t%d\t%d\t%d\t%s\t%s\t%s\n",
			strconv.FormatFloat(elapsed, 'f', 6, 64),
			i+1,
			rec.Seconds,
			rec.Microseconds,
			strconv.FormatFloat(rec.Power, 'g', -1, 64),
			strconv.FormatFloat(rec.Voltage, 'g', -1, 64),
			strconv.FormatFloat(rec.Current, 'g', -1, 64),
		)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}
