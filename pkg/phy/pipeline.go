package phy

import (
	"errors"
	"fmt"
	"iter"
)

var ErrCapacityExceeded = errors.New("word buffer capacity exceeded")

// Convert returns the FIFO word stream that makes the microprogram radiate
// data as O-QPSK with repeat-fold oversampling. Nothing is computed until
// the sequence is ranged over, and ranging again replays it from the start.
func Convert(data []byte, repeat int) (iter.Seq[Word], error) {
	if err := CheckRepeatFactor(repeat); err != nil {
		return nil, err
	}
	return PackWords(GenerateBits(EncodeChips(data, repeat))), nil
}

// Collect materializes at most capacity words. A longer stream is an error
// and nothing is returned.
func Collect(words iter.Seq[Word], capacity int) ([]Word, error) {
	buf := make([]Word, 0, capacity)
	for w := range words {
		if len(buf) == capacity {
			return nil, fmt.Errorf("%w: more than %d words", ErrCapacityExceeded, capacity)
		}
		buf = append(buf, w)
	}
	return buf, nil
}

// Stats summarizes the waveform generated for a byte buffer.
type Stats struct {
	Bytes   int
	Chips   int
	Runs    int
	Cycles  uint64 // after normalization
	Clamped int    // runs stretched to MinPulse
	Bits    int
	Words   int
}

func (s Stats) String() string {
	return fmt.Sprintf("bytes: %d, chips: %d, runs: %d, cycles: %d, clamped: %d, bits: %d, words: %d",
		s.Bytes, s.Chips, s.Runs, s.Cycles, s.Clamped, s.Bits, s.Words)
}

// Measure walks the pipeline once and counts what each stage produces.
func Measure(data []byte, repeat int) (Stats, error) {
	if err := CheckRepeatFactor(repeat); err != nil {
		return Stats{}, err
	}
	s := Stats{Bytes: len(data)}
	chips := EncodeChips(data, repeat)
	for range chips {
		s.Chips++
	}
	s.Bits = 1
	for r := range Runs(chips) {
		s.Runs++
		if r.Duration < MinPulse {
			s.Clamped++
			r.Duration = MinPulse
		}
		s.Cycles += uint64(r.Duration)
		s.Bits += int(UnaryLength(r.Duration)) + 1
	}
	s.Words = (s.Bits + WordBits - 1) / WordBits
	return s, nil
}
