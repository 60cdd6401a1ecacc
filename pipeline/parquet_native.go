//go:build !js

package pipeline

import (
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type alignedParquetRow struct {
	Index     int64   `parquet:"name=index, type=INT64"`
	CaseID    int32   `parquet:"name=case_id, type=INT32"`
	Phase     int32   `parquet:"name=phase, type=INT32"`
	Label     string  `parquet:"name=label, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	TimeS     float64 `parquet:"name=time_s, type=DOUBLE"`
	Micros    int64   `parquet:"name=micros, type=INT64"`
	PowerMW   float64 `parquet:"name=power_mw, type=DOUBLE"`
	VoltageV  float64 `parquet:"name=voltage_v, type=DOUBLE"`
	CurrentMA float64 `parquet:"name=current_ma, type=DOUBLE"`
}

func marshalAlignedParquet(rows []AlignedSampleRow) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(alignedParquetRow), 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range rows {
		row := alignedParquetRow{
			Index:     int64(r.Index),
			CaseID:    int32(r.CaseID),
			Phase:     int32(r.Phase),
			Label:     r.Label,
			TimeS:     r.TimeS,
			Micros:    r.Micros,
			PowerMW:   r.PowerMW,
			VoltageV:  r.VoltageV,
			CurrentMA: r.CurrentMA,
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}
