package pio

import (
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/uu-core/oqpsk/pkg/phy"
)

var (
	ErrBadProgram  = errors.New("bad program")
	ErrRunaway     = errors.New("program made no progress")
	ErrShortStream = errors.New("word stream ended early")
	ErrMismatch    = errors.New("waveform mismatch")
)

// stepsPerBit bounds how many instructions may run per consumed bit before
// a program is considered stuck.
const stepsPerBit = 16

// Trace is what a program did to the output pin. Segments holds every
// completed pin level; the level still open when the machine stalls is not
// included.
type Trace struct {
	Segments []phy.Level
	Cycles   uint64 // sum of Segments
	Bits     int    // bits shifted out of the OSR
}

// Runs returns the logical waveform. The startup bit drives the first Low
// period, which puts every later run on the opposite pin level, so the first
// segment is dropped and the rest are complemented.
func (t Trace) Runs() []phy.Level {
	if len(t.Segments) == 0 {
		return nil
	}
	ret := make([]phy.Level, 0, len(t.Segments)-1)
	for _, s := range t.Segments[1:] {
		switch s.Kind {
		case phy.Low:
			s.Kind = phy.High
		case phy.High:
			s.Kind = phy.Low
		}
		ret = append(ret, s)
	}
	return ret
}

// Machine is a single state machine with the start pin held low, autopull
// at 32 bits and the OSR shifting left.
type Machine struct {
	prog Program

	pc   int
	x, y uint32
	osr  uint32
	left int // bits left in osr
}

func NewMachine(p Program) (*Machine, error) {
	if len(p.Instrs) == 0 || p.WrapTarget < 0 || p.WrapTarget >= len(p.Instrs) {
		return nil, fmt.Errorf("%w: %d instructions, wrap target %d", ErrBadProgram, len(p.Instrs), p.WrapTarget)
	}
	for i, in := range p.Instrs {
		switch {
		case in.Op == OpJmp && (in.Target < 0 || in.Target >= len(p.Instrs)):
			return nil, fmt.Errorf("%w: %d: jump target %d", ErrBadProgram, i, in.Target)
		case in.Op == OpJmp && in.Reg == RegPins:
			return nil, fmt.Errorf("%w: %d: jmp on pins", ErrBadProgram, i)
		case in.Op == OpSet && in.Reg != RegPins:
			return nil, fmt.Errorf("%w: %d: set only drives pins", ErrBadProgram, i)
		case in.Op == OpOut && (in.Value < 1 || in.Value > phy.WordBits):
			return nil, fmt.Errorf("%w: %d: out of %d bits", ErrBadProgram, i, in.Value)
		}
	}
	return &Machine{prog: p}, nil
}

// Run executes the program from the start until it stalls on an empty OSR
// with no word left, or until nbits bits have been shifted out.
func (m *Machine) Run(words iter.Seq[phy.Word], nbits int) (Trace, error) {
	next, stop := iter.Pull(words)
	defer stop()

	m.pc, m.x, m.y, m.osr, m.left = 0, 0, 0, 0, 0

	var t Trace
	shift := func() (uint32, bool) {
		if t.Bits >= nbits {
			return 0, false
		}
		if m.left == 0 {
			w, ok := next()
			if !ok {
				return 0, false
			}
			m.osr, m.left = w, phy.WordBits
		}
		b := m.osr >> (phy.WordBits - 1)
		m.osr <<= 1
		m.left--
		t.Bits++
		return b, true
	}

	var (
		cycle uint64
		start uint64
		level phy.LevelKind = phy.Nop
	)
	limit := stepsPerBit*(nbits+1) + len(m.prog.Instrs)
	for steps := 0; ; steps++ {
		if steps > limit {
			return t, fmt.Errorf("%w: %d steps for %d bits", ErrRunaway, steps, t.Bits)
		}
		in := m.prog.Instrs[m.pc]
		npc := m.pc + 1
		switch in.Op {
		case OpWait:
			// start pin is already low
		case OpSet:
			if level != phy.Nop {
				d := cycle - start
				t.Segments = append(t.Segments, phy.Level{Kind: level, Duration: uint32(d)})
				t.Cycles += d
			}
			level, start = phy.Low, cycle
			if in.Value&1 == 1 {
				level = phy.High
			}
		case OpOut:
			var v uint32
			for range in.Value {
				b, ok := shift()
				if !ok {
					return t, nil
				}
				v = v<<1 | b
			}
			*m.reg(in.Reg) = v
		case OpJmp:
			r := m.reg(in.Reg)
			if *r != 0 {
				npc = in.Target
			}
			*r--
		}
		cycle += uint64(in.Cycles())
		if npc == len(m.prog.Instrs) {
			npc = m.prog.WrapTarget
		}
		m.pc = npc
	}
}

func (m *Machine) reg(r Reg) *uint32 {
	if r == RegY {
		return &m.y
	}
	return &m.x
}

// Verify runs words through the Backscatter program and checks that all
// nbits bits are consumed and that the logical waveform equals want.
func Verify(words []phy.Word, nbits int, want iter.Seq[phy.Level]) (Trace, error) {
	m, err := NewMachine(Backscatter)
	if err != nil {
		return Trace{}, err
	}
	t, err := m.Run(slices.Values(words), nbits)
	if err != nil {
		return t, err
	}
	if t.Bits != nbits {
		return t, fmt.Errorf("%w: consumed %d of %d bits", ErrShortStream, t.Bits, nbits)
	}
	got := t.Runs()
	i := 0
	for w := range want {
		if i >= len(got) {
			return t, fmt.Errorf("%w: %d runs, want more", ErrMismatch, len(got))
		}
		if got[i] != w {
			return t, fmt.Errorf("%w: run %d is %v, want %v", ErrMismatch, i, got[i], w)
		}
		i++
	}
	if i != len(got) {
		return t, fmt.Errorf("%w: %d runs, want %d", ErrMismatch, len(got), i)
	}
	return t, nil
}
