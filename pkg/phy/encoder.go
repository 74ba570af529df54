package phy

import (
	"errors"
	"fmt"
	"iter"
)

const (
	// DefaultRepeatFactor is the oversampling used on air: every offset chip
	// is held for 4 templates of 16 peripheral cycles.
	DefaultRepeatFactor = 4
	// CyclesPerChip is the number of peripheral cycles one chip template spans.
	CyclesPerChip = 16
)

var ErrInvalidRepeatFactor = errors.New("repeat factor must be positive")

// CheckRepeatFactor validates an oversampling factor.
func CheckRepeatFactor(k int) error {
	if k < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidRepeatFactor, k)
	}
	return nil
}

// Nibbles yields the low nibble then the high nibble of every byte, which is
// the order 802.15.4 puts symbols on air.
func Nibbles(data []byte) iter.Seq[byte] {
	return func(yield func(byte) bool) {
		for _, b := range data {
			if !yield(b & 0x0f) {
				return
			}
			if !yield(b >> 4) {
				return
			}
		}
	}
}

// Spread replaces each symbol with its 16 chip spreading sequence.
func Spread(symbols iter.Seq[byte]) iter.Seq[Chip] {
	return func(yield func(Chip) bool) {
		for sym := range symbols {
			for _, c := range Symbol(sym) {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// Offset inserts a middle chip between consecutive chips so that only one
// rail changes at a time. The middle chip keeps Q from the previous chip and
// takes I from the current one. The first middle chip only exists because of
// the zero seed and is dropped.
func Offset(chips iter.Seq[Chip]) iter.Seq[Chip] {
	return func(yield func(Chip) bool) {
		var prev Chip
		first := true
		for current := range chips {
			middle := (prev & qBit) | (current & iBit)
			prev = current
			if !first && !yield(middle) {
				return
			}
			first = false
			if !yield(current) {
				return
			}
		}
	}
}

// Oversample repeats every chip k times.
func Oversample(chips iter.Seq[Chip], k int) iter.Seq[Chip] {
	return func(yield func(Chip) bool) {
		for c := range chips {
			for range k {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// EncodeChips turns bytes into the oversampled offset chip stream. The
// returned sequence can be ranged over any number of times.
func EncodeChips(data []byte, k int) iter.Seq[Chip] {
	return Oversample(Offset(Spread(Nibbles(data))), k)
}

// OffsetChipCount is the number of chips Offset yields for n input bytes,
// before oversampling.
func OffsetChipCount(n int) int {
	if n == 0 {
		return 0
	}
	return n*2*ChipsPerSymbol*2 - 1
}
