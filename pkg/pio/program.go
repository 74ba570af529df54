// Package pio models the peripheral state machine program that turns FIFO
// words into the backscatter switch signal.
package pio

import (
	"fmt"
	"strings"
)

type Op byte

const (
	OpWait Op = iota
	OpSet
	OpOut
	OpJmp
)

type Reg byte

const (
	RegPins Reg = iota
	RegX
	RegY
)

func (r Reg) String() string {
	switch r {
	case RegPins:
		return "pins"
	case RegX:
		return "x"
	case RegY:
		return "y"
	default:
		return "ERROR"
	}
}

// Instr is one state machine instruction. Value is the immediate for wait
// and set, and the bit count for out. Jmp branches to Target when the
// register is non-zero, decrementing it either way.
type Instr struct {
	Op     Op
	Reg    Reg
	Value  uint32
	Target int
	Delay  int
}

func (in Instr) Cycles() int { return 1 + in.Delay }

func (in Instr) String() string {
	var s string
	switch in.Op {
	case OpWait:
		s = fmt.Sprintf("wait %d pin %d", in.Value, in.Target)
	case OpSet:
		s = fmt.Sprintf("set %v %d", in.Reg, in.Value)
	case OpOut:
		s = fmt.Sprintf("out %v %d", in.Reg, in.Value)
	case OpJmp:
		s = fmt.Sprintf("jmp %v-- %d", in.Reg, in.Target)
	default:
		s = "ERROR"
	}
	if in.Delay > 0 {
		s += fmt.Sprintf(" [%d]", in.Delay)
	}
	return s
}

// Program is a straight line of instructions executed from 0. After the last
// instruction execution wraps to WrapTarget.
type Program struct {
	Instrs     []Instr
	WrapTarget int
}

// StartupCycles is the length of the Low period driven by the startup bit
// before the first run.
const StartupCycles = 4

// StartPin is the GPIO the host pulls low to start transmission.
const StartPin = 3

// Backscatter is the transmitter program. Each 1 bit read in a loop extends
// the current level by two cycles and the 0 bit ends it, so a level with n
// one bits lasts 2n+4 cycles including the set.
var Backscatter = Program{
	Instrs: []Instr{
		{Op: OpWait, Value: 0, Target: StartPin},
		{Op: OpSet, Reg: RegPins, Value: 0, Delay: 1}, // wrap target
		{Op: OpOut, Reg: RegX, Value: 1},
		{Op: OpJmp, Reg: RegX, Target: 2},
		{Op: OpSet, Reg: RegPins, Value: 1, Delay: 1},
		{Op: OpOut, Reg: RegY, Value: 1},
		{Op: OpJmp, Reg: RegY, Target: 5},
	},
	WrapTarget: 1,
}

func (p Program) String() string {
	var sb strings.Builder
	for i, in := range p.Instrs {
		if i == p.WrapTarget {
			sb.WriteString(".wrap_target\n")
		}
		fmt.Fprintf(&sb, "%2d: %v\n", i, in)
	}
	sb.WriteString(".wrap\n")
	return sb.String()
}
