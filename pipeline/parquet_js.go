//go:build js

package pipeline

import "fmt"

func marshalAlignedParquet(_ []AlignedSampleRow) ([]byte, error) {
	return nil, fmt.Errorf("parquet output is not available in js builds; use format csv")
}
