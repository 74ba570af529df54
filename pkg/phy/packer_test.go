package phy

import (
	"math/rand"
	"reflect"
	"slices"
	"testing"
)

func TestPackWords(t *testing.T) {
	ones := func(n int) []Bit {
		b := make([]Bit, n)
		for i := range b {
			b[i] = 1
		}
		return b
	}
	tests := []struct {
		name string
		bits []Bit
		want []Word
	}{
		{"empty", nil, nil},
		{"one bit", []Bit{1}, []Word{0x80000000}},
		{"pattern", []Bit{1, 0, 1, 0, 0, 0, 0, 1}, []Word{0xA1000000}},
		{"full word", ones(32), []Word{0xFFFFFFFF}},
		{"full word plus one", ones(33), []Word{0xFFFFFFFF, 0x80000000}},
		{"two full words", ones(64), []Word{0xFFFFFFFF, 0xFFFFFFFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(PackWords(slices.Values(tt.bits)))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PackWords() = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestPackWordsReconstruct(t *testing.T) {
	r := rand.New(rand.NewSource(17))
	for _, n := range []int{0, 1, 31, 32, 33, 95, 96, 1000} {
		bits := make([]Bit, n)
		for i := range bits {
			bits[i] = Bit(r.Intn(2))
		}
		words := slices.Collect(PackWords(slices.Values(bits)))
		if want := (n + WordBits - 1) / WordBits; len(words) != want {
			t.Errorf("n=%d: %d words, want %d", n, len(words), want)
		}
		if n%WordBits != 0 {
			pad := WordBits - n%WordBits
			if last := words[len(words)-1]; last&(1<<pad-1) != 0 {
				t.Errorf("n=%d: padding bits of %#08x are not zero", n, last)
			}
		}
		if got := UnpackBits(words, n); !reflect.DeepEqual(got, bits) && n > 0 {
			t.Errorf("n=%d: UnpackBits() does not reproduce the input", n)
		}
	}
}
