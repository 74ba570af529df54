package phy

import "iter"

// Word is one 32-bit entry of the peripheral TX FIFO.
type Word = uint32

const WordBits = 32

// PackWords packs bits MSB first into words. A trailing partial word is
// emitted with its unused low bits zero.
func PackWords(bits iter.Seq[Bit]) iter.Seq[Word] {
	return func(yield func(Word) bool) {
		var w Word
		i := 0
		for b := range bits {
			w |= Word(b&1) << (WordBits - 1 - i)
			if i == WordBits-1 {
				if !yield(w) {
					return
				}
				w, i = 0, 0
				continue
			}
			i++
		}
		if i > 0 {
			yield(w)
		}
	}
}

// UnpackBits is the inverse of PackWords for the first n bits.
func UnpackBits(words []Word, n int) []Bit {
	if n > len(words)*WordBits {
		n = len(words) * WordBits
	}
	ret := make([]Bit, 0, n)
	for i := range n {
		ret = append(ret, Bit(words[i/WordBits]>>(WordBits-1-i%WordBits))&1)
	}
	return ret
}
