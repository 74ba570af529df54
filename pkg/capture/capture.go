// Package capture exports a generated pulse train as parquet rows for
// offline analysis next to receiver captures.
package capture

import (
	"encoding/json"
	"errors"
	"io"
	"iter"

	"github.com/segmentio/parquet-go"

	"github.com/uu-core/oqpsk/pkg/phy"
)

// MetadataKey is the parquet key/value metadata entry holding Metadata.
const MetadataKey = "oqpsk"

const batchSize = 1024

// Pulse is one run of the switch signal.
type Pulse struct {
	Index  int64 `parquet:"index"`
	High   bool  `parquet:"high"`
	Start  int64 `parquet:"start"` // cycles since the first run
	Cycles int32 `parquet:"cycles"`
}

// Metadata describes how the pulse train was produced.
type Metadata struct {
	Repeat        int     `json:"repeat"`
	Bytes         int     `json:"bytes"`
	Words         int     `json:"words"`
	CyclesPerChip int     `json:"cycles_per_chip"`
	ClockHz       float64 `json:"clock_hz,omitempty"`
}

// Writer writes pulses to a parquet stream.
type Writer struct {
	w     *parquet.GenericWriter[Pulse]
	rows  []Pulse
	index int64
	start int64
}

func NewWriter(w io.Writer, md *Metadata) *Writer {
	mdStr := "{}"
	if md != nil {
		b, _ := json.Marshal(md)
		mdStr = string(b)
	}
	return &Writer{
		w:    parquet.NewGenericWriter[Pulse](w, parquet.KeyValueMetadata(MetadataKey, mdStr)),
		rows: make([]Pulse, 0, batchSize),
	}
}

// WriteRuns appends runs and returns how many were written. Runs from
// several calls continue the same index and start cycle count.
func (w *Writer) WriteRuns(runs iter.Seq[phy.Level]) (int, error) {
	n := 0
	for r := range runs {
		w.rows = append(w.rows, Pulse{
			Index:  w.index,
			High:   r.Kind == phy.High,
			Start:  w.start,
			Cycles: int32(r.Duration),
		})
		w.index++
		w.start += int64(r.Duration)
		n++
		if len(w.rows) == batchSize {
			if err := w.flush(); err != nil {
				return n, err
			}
		}
	}
	return n, w.flush()
}

func (w *Writer) flush() error {
	if len(w.rows) == 0 {
		return nil
	}
	_, err := w.w.Write(w.rows)
	w.rows = w.rows[:0]
	return err
}

// Close writes the parquet footer. It does not close the underlying writer.
func (w *Writer) Close() error {
	if err := w.flush(); err != nil {
		return err
	}
	return w.w.Close()
}

// ReadAll reads back a file written by Writer.
func ReadAll(r io.ReaderAt, size int64) ([]Pulse, *Metadata, error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, nil, err
	}
	var md *Metadata
	if s, ok := f.Lookup(MetadataKey); ok {
		md = new(Metadata)
		if err := json.Unmarshal([]byte(s), md); err != nil {
			return nil, nil, err
		}
	}

	pr := parquet.NewGenericReader[Pulse](r)
	defer pr.Close()
	ret := make([]Pulse, 0, pr.NumRows())
	buf := make([]Pulse, batchSize)
	for {
		n, err := pr.Read(buf)
		ret = append(ret, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return ret, md, nil
}
