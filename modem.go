package oqpsk

import (
	"errors"
	"fmt"
	"iter"
	"runtime"
	"time"

	"github.com/uu-core/oqpsk/pkg/phy"
)

var (
	ErrNotStarted  = errors.New("transmission not started")
	ErrModemClosed = errors.New("modem closed")
)

// FIFO is the transmit FIFO of the peripheral running the backscatter
// program. Full must be checked before every Write.
type FIFO interface {
	Full() (bool, error)
	Write(w phy.Word) error
}

// Flusher is implemented by FIFOs that batch writes. Drain flushes after the
// last word.
type Flusher interface {
	Flush() error
}

// Modem drives a transmitter. Start releases the peripheral, which has been
// waiting on the start pin, so words written before Start are buffered and
// sent without a gap.
type Modem interface {
	FIFO
	Start() error
	Reset() error
	Close() error
}

// spins is how many times Drain yields before it starts sleeping on a full
// FIFO.
const spins = 64

var pollInterval = 50 * time.Microsecond

// Drain writes every word to fifo in order, waiting while it is full, and
// returns how many words were written.
func Drain(fifo FIFO, words iter.Seq[phy.Word]) (int, error) {
	n := 0
	for w := range words {
		if err := waitNotFull(fifo); err != nil {
			return n, err
		}
		if err := fifo.Write(w); err != nil {
			return n, fmt.Errorf("write word %d: %w", n, err)
		}
		n++
	}
	return n, flush(fifo)
}

func waitNotFull(fifo FIFO) error {
	for i := 0; ; i++ {
		full, err := fifo.Full()
		if err != nil {
			return fmt.Errorf("poll FIFO: %w", err)
		}
		if !full {
			return nil
		}
		if i < spins {
			runtime.Gosched()
		} else {
			time.Sleep(pollInterval)
		}
	}
}

func flush(fifo FIFO) error {
	if f, ok := fifo.(Flusher); ok {
		return f.Flush()
	}
	return nil
}
