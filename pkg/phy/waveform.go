package phy

import (
	"fmt"
	"iter"
)

type LevelKind byte

const (
	Nop LevelKind = iota
	Low
	High
)

func (k LevelKind) String() string {
	switch k {
	case Nop:
		return "Nop"
	case Low:
		return "Low"
	case High:
		return "High"
	default:
		return "ERROR"
	}
}

// MinPulse is the shortest pulse, in peripheral cycles, the microprogram can
// produce: two cycles of set plus one out/jmp pair.
const MinPulse = 4

// Level is a pin level held for Duration peripheral cycles. A Nop level marks
// a template slot with no segment and never leaves this package.
type Level struct {
	Kind     LevelKind
	Duration uint32
}

func LowFor(d uint32) Level  { return Level{Kind: Low, Duration: d} }
func HighFor(d uint32) Level { return Level{Kind: High, Duration: d} }

func (l Level) String() string {
	if l.Kind == Nop {
		return "Nop"
	}
	return fmt.Sprintf("%s(%d)", l.Kind, l.Duration)
}

// Template returns the half-sine approximation of a chip as up to three
// segments spanning CyclesPerChip cycles. It panics on a chip outside 0-3,
// which can only come from a corrupted spreading table.
func Template(c Chip) [3]Level {
	switch c {
	case 0b00:
		// 0000111111110000
		return [3]Level{LowFor(4), HighFor(8), LowFor(4)}
	case 0b01:
		// 0000000011111111
		return [3]Level{LowFor(8), HighFor(8), {}}
	case 0b10:
		// 1111111100000000
		return [3]Level{HighFor(8), LowFor(8), {}}
	case 0b11:
		// 1111000000001111
		return [3]Level{HighFor(4), LowFor(8), HighFor(4)}
	default:
		panic(fmt.Sprintf("phy: illegal chip %#02b", c))
	}
}

// Runs maps chips to their templates and merges neighbouring segments of the
// same level, across chip boundaries, into single runs. The open run starts
// as Low(0) so the first emitted run is always Low and runs alternate from
// there. The open run is flushed when the chips run out; no chips, no runs.
func Runs(chips iter.Seq[Chip]) iter.Seq[Level] {
	return func(yield func(Level) bool) {
		open := LowFor(0)
		seen := false
		for c := range chips {
			seen = true
			for _, seg := range Template(c) {
				if seg.Kind == Nop {
					continue
				}
				if seg.Kind == open.Kind {
					open.Duration += seg.Duration
					continue
				}
				if !yield(open) {
					return
				}
				open = seg
			}
		}
		if seen {
			yield(open)
		}
	}
}

// Normalize clamps every run to at least MinPulse cycles. A zero length
// leading run becomes a MinPulse run, stretching the waveform; the
// transmitter timing is tuned with this in place.
func Normalize(runs iter.Seq[Level]) iter.Seq[Level] {
	return func(yield func(Level) bool) {
		for r := range runs {
			if r.Duration <= MinPulse {
				r.Duration = MinPulse
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Bit is a single 0/1 value of the unary loop code.
type Bit uint8

// UnaryLength returns the number of 1 bits that encode a run of d cycles.
func UnaryLength(d uint32) uint32 {
	return (d - MinPulse) / 2
}

// UnaryBits encodes normalized runs as the loop/exit code read by the
// microprogram: (d-4)/2 ones then a zero per run. The stream starts with one
// zero that is consumed while the peripheral waits for the start signal.
func UnaryBits(runs iter.Seq[Level]) iter.Seq[Bit] {
	return func(yield func(Bit) bool) {
		if !yield(0) {
			return
		}
		for r := range runs {
			for range UnaryLength(r.Duration) {
				if !yield(1) {
					return
				}
			}
			if !yield(0) {
				return
			}
		}
	}
}

// GenerateBits is the whole waveform stage: chips in, unary bits out.
func GenerateBits(chips iter.Seq[Chip]) iter.Seq[Bit] {
	return UnaryBits(Normalize(Runs(chips)))
}
