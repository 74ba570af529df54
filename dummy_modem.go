package oqpsk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"gopkg.in/ini.v1"

	"github.com/uu-core/oqpsk/pkg/phy"
)

// DefaultFIFODepth is the depth of the peripheral TX FIFO with the RX FIFO
// joined to it.
const DefaultFIFODepth = 8

var ErrFIFOFull = errors.New("write to full FIFO")

const (
	FormatHex    = "hex"
	FormatBinary = "binary"
)

// DummyModem stands in for the peripheral. Words wait in an emulated FIFO of
// fixed depth until Start, then a shifter goroutine moves them to out at
// WordPeriod per word, either as hex lines or as big-endian uint32s.
type DummyModem struct {
	out        io.Writer
	depth      int
	binary     bool
	wordPeriod time.Duration

	mutex   sync.Mutex
	fifo    *queue.RingBuffer // protected by mutex
	started bool              // protected by mutex
	closed  bool              // protected by mutex
	done    chan struct{}
	err     error // shifter write error, set before done is closed

	written atomic.Uint64
	queued  atomic.Uint64
}

func NewDummyModem(out io.Writer, depth int, format string, wordPeriod time.Duration) (*DummyModem, error) {
	if depth < 1 {
		return nil, fmt.Errorf("FIFO depth %d must be positive", depth)
	}
	var bin bool
	switch format {
	case "", FormatHex:
	case FormatBinary:
		bin = true
	default:
		return nil, fmt.Errorf("unknown word format %q", format)
	}
	return &DummyModem{
		out:        out,
		depth:      depth,
		binary:     bin,
		wordPeriod: wordPeriod,
		fifo:       queue.NewRingBuffer(uint64(depth)),
	}, nil
}

// NewDummyModemFromConfig reads FIFODepth, Format and WordPeriod from the
// modem section.
func NewDummyModemFromConfig(out io.Writer, modemCfg *ini.Section) (*DummyModem, error) {
	depth, depthErr := modemCfg.Key("FIFODepth").Int()
	period, periodErr := modemCfg.Key("WordPeriod").Duration()
	format := modemCfg.Key("Format").In(FormatHex, []string{FormatHex, FormatBinary})
	if !modemCfg.HasKey("FIFODepth") {
		depth, depthErr = DefaultFIFODepth, nil
	}
	if !modemCfg.HasKey("WordPeriod") {
		period, periodErr = 0, nil
	}
	err := errors.Join(depthErr, periodErr)
	if err != nil {
		return nil, err
	}
	return NewDummyModem(out, depth, format, period)
}

func (m *DummyModem) Full() (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return false, ErrModemClosed
	}
	if err := m.shifterErr(); err != nil {
		return false, err
	}
	return m.fifo.Len() >= uint64(m.depth), nil
}

func (m *DummyModem) Write(w phy.Word) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return ErrModemClosed
	}
	if m.fifo.Len() >= uint64(m.depth) {
		return ErrFIFOFull
	}
	if err := m.fifo.Put(w); err != nil {
		return err
	}
	m.queued.Add(1)
	return nil
}

func (m *DummyModem) Start() error {
	log.Printf("[DEBUG] dummy modem Start()")
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return ErrModemClosed
	}
	if m.started {
		return nil
	}
	m.started = true
	m.done = make(chan struct{})
	go m.shift(m.fifo, m.done)
	return nil
}

// Reset drops queued words and puts the peripheral back to waiting for
// Start.
func (m *DummyModem) Reset() error {
	log.Print("[DEBUG] dummy modem Reset()")
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return ErrModemClosed
	}
	m.stopShifter()
	m.fifo = queue.NewRingBuffer(uint64(m.depth))
	m.written.Store(0)
	m.queued.Store(0)
	m.err = nil
	return nil
}

// Close waits for every queued word to reach the output. Words written but
// never started are shifted out directly.
func (m *DummyModem) Close() error {
	log.Print("[DEBUG] dummy modem Close()")
	m.mutex.Lock()
	if m.closed {
		m.mutex.Unlock()
		return nil
	}
	m.closed = true
	started := m.started
	m.mutex.Unlock()

	if !started {
		for m.fifo.Len() > 0 {
			item, err := m.fifo.Get()
			if err != nil {
				return err
			}
			if err := m.emit(item.(phy.Word)); err != nil {
				return err
			}
		}
		m.fifo.Dispose()
		return nil
	}
	for m.written.Load() < m.queued.Load() && m.shifterErr() == nil {
		time.Sleep(pollInterval)
	}
	m.mutex.Lock()
	m.stopShifter()
	err := m.err
	m.mutex.Unlock()
	return err
}

// Written is the number of words shifted out so far.
func (m *DummyModem) Written() uint64 {
	return m.written.Load()
}

func (m *DummyModem) shift(fifo *queue.RingBuffer, done chan struct{}) {
	defer close(done)
	for {
		// Get spins while the ring is empty
		if fifo.Len() == 0 && !fifo.IsDisposed() {
			time.Sleep(pollInterval)
			continue
		}
		item, err := fifo.Get()
		if errors.Is(err, queue.ErrDisposed) {
			return
		}
		if err != nil {
			m.err = err
			return
		}
		if m.wordPeriod > 0 {
			time.Sleep(m.wordPeriod)
		}
		if err := m.emit(item.(phy.Word)); err != nil {
			log.Printf("[ERROR] dummy modem output: %v", err)
			m.err = err
			return
		}
	}
}

func (m *DummyModem) emit(w phy.Word) error {
	var err error
	if m.binary {
		_, err = m.out.Write(binary.BigEndian.AppendUint32(nil, w))
	} else {
		_, err = fmt.Fprintf(m.out, "%08X\n", w)
	}
	if err == nil {
		m.written.Add(1)
	}
	return err
}

// shifterErr returns the error that stopped the shifter, if it has stopped.
func (m *DummyModem) shifterErr() error {
	if m.done == nil {
		return nil
	}
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

// stopShifter must be called with mutex held.
func (m *DummyModem) stopShifter() {
	m.fifo.Dispose()
	if m.done != nil {
		<-m.done
	}
	m.started = false
	m.done = nil
}
