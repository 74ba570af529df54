package oqpsk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"go.bug.st/serial"
	"gopkg.in/ini.v1"

	"github.com/uu-core/oqpsk/pkg/phy"
)

// Bridge MCU commands. Every frame is [cmd, len, payload...] where len counts
// the whole frame. Responses use the same layout.
const (
	serialCmdPing = iota
	serialCmdStart
	serialCmdReset
	serialCmdStatus // response payload: free FIFO slots, uint16 LE
	serialCmdWords  // payload: big-endian words, no response
)

const (
	serialHeaderLen = 2
	// MaxBatch is the most words one command frame can carry.
	MaxBatch = (255 - serialHeaderLen) / 4

	defaultResponseTimeout = time.Second
)

var (
	ErrResponseTimeout = errors.New("modem response timeout")
	ErrModemResponse   = errors.New("modem returned an error")
)

// SerialModem is a bridge MCU that owns the peripheral and accepts words
// over a serial port, or a unix socket when talking to an emulator. Writes
// are batched and limited by credits: the free FIFO slots last reported by
// the bridge, less the words sent since.
type SerialModem struct {
	modem   io.ReadWriteCloser
	timeout time.Duration
	batch   int

	mutex     sync.Mutex
	cmdSource chan byte
	readErr   error // protected by mutex
	credits   int
	pending   []byte
}

func NewSerialModem(modemCfg *ini.Section) (*SerialModem, error) {
	port := modemCfg.Key("Port").String()
	baudRate, baudRateErr := modemCfg.Key("Speed").Int()
	batch, batchErr := modemCfg.Key("Batch").Int()
	timeout, timeoutErr := modemCfg.Key("ResponseTimeout").Duration()
	if !modemCfg.HasKey("Batch") {
		batch, batchErr = MaxBatch, nil
	}
	if !modemCfg.HasKey("ResponseTimeout") {
		timeout, timeoutErr = defaultResponseTimeout, nil
	}

	var err error
	err = errors.Join(
		baudRateErr,
		batchErr,
		timeoutErr,
	)
	if err != nil {
		return nil, err
	}

	var rwc io.ReadWriteCloser
	fi, err := os.Stat(port)
	if err != nil {
		return nil, fmt.Errorf("modem stat: %w", err)
	}
	if fi.Mode()&os.ModeSocket == os.ModeSocket {
		log.Printf("[DEBUG] Opening emulator")
		rwc, err = net.Dial("unix", port)
		if err != nil {
			return nil, fmt.Errorf("modem socket open: %w", err)
		}
	} else {
		log.Printf("[DEBUG] Opening modem")
		mode := &serial.Mode{
			BaudRate: baudRate,
		}
		rwc, err = serial.Open(port, mode)
		if err != nil {
			return nil, fmt.Errorf("modem open: %w", err)
		}
	}
	m, err := newSerialModem(rwc, batch, timeout)
	if err != nil {
		rwc.Close()
		return nil, err
	}
	return m, nil
}

func newSerialModem(rwc io.ReadWriteCloser, batch int, timeout time.Duration) (*SerialModem, error) {
	if batch < 1 || batch > MaxBatch {
		return nil, fmt.Errorf("batch of %d words not in 1-%d", batch, MaxBatch)
	}
	m := &SerialModem{
		modem:     rwc,
		timeout:   timeout,
		batch:     batch,
		cmdSource: make(chan byte, 256),
	}
	go m.processReceivedData()
	err := m.commandWithErrResponse([]byte{serialCmdPing, 0})
	if err != nil {
		return nil, fmt.Errorf("test PING: %w", err)
	}
	return m, nil
}

func (m *SerialModem) processReceivedData() {
	buf := make([]byte, 64)
	for {
		n, err := m.modem.Read(buf)
		for _, b := range buf[:n] {
			m.cmdSource <- b
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, net.ErrClosed) {
				log.Printf("[ERROR] Error reading from modem: %v", err)
			}
			m.mutex.Lock()
			m.readErr = err
			m.mutex.Unlock()
			close(m.cmdSource)
			return
		}
	}
}

// Full asks the bridge for free slots only when the credits run out.
func (m *SerialModem) Full() (bool, error) {
	if m.credits > 0 {
		return false, nil
	}
	if err := m.Flush(); err != nil {
		return false, err
	}
	free, err := m.status()
	if err != nil {
		return false, err
	}
	m.credits = free
	return m.credits == 0, nil
}

func (m *SerialModem) Write(w phy.Word) error {
	if m.credits <= 0 {
		return ErrFIFOFull
	}
	if m.pending == nil {
		m.pending = make([]byte, serialHeaderLen, serialHeaderLen+4*m.batch)
		m.pending[0] = serialCmdWords
	}
	m.pending = binary.BigEndian.AppendUint32(m.pending, w)
	m.credits--
	if len(m.pending) == cap(m.pending) || m.credits == 0 {
		return m.Flush()
	}
	return nil
}

// Flush sends the words batched so far.
func (m *SerialModem) Flush() error {
	if len(m.pending) <= serialHeaderLen {
		return nil
	}
	err := m.command(m.pending)
	m.pending = m.pending[:serialHeaderLen]
	if err != nil {
		return fmt.Errorf("send words: %w", err)
	}
	return nil
}

func (m *SerialModem) Start() error {
	log.Printf("[DEBUG] Start()")
	if err := m.Flush(); err != nil {
		return err
	}
	err := m.commandWithErrResponse([]byte{serialCmdStart, 0})
	if err != nil {
		return fmt.Errorf("send start: %w", err)
	}
	return nil
}

func (m *SerialModem) Reset() error {
	log.Print("[DEBUG] modem Reset()")
	m.pending = nil
	m.credits = 0
	err := m.commandWithErrResponse([]byte{serialCmdReset, 0})
	if err != nil {
		return fmt.Errorf("modem reset: %w", err)
	}
	return nil
}

func (m *SerialModem) Close() error {
	log.Print("[DEBUG] modem Close()")
	err := m.Flush()
	return errors.Join(err, m.modem.Close())
}

func (m *SerialModem) status() (int, error) {
	resp, err := m.commandWithResponse([]byte{serialCmdStatus, 0})
	if err != nil {
		return 0, fmt.Errorf("status: %w", err)
	}
	if len(resp) != 2 {
		return 0, fmt.Errorf("unexpected status response: % 02x", resp)
	}
	return int(binary.LittleEndian.Uint16(resp)), nil
}

func (m *SerialModem) commandWithErrResponse(cmd []byte) error {
	resp, err := m.commandWithResponse(cmd)
	if err != nil {
		return err
	}
	if len(resp) != 1 {
		return fmt.Errorf("unexpected response: % 02x", resp)
	}
	if resp[0] != 0 {
		return fmt.Errorf("%w: %d", ErrModemResponse, resp[0])
	}
	return nil
}

func (m *SerialModem) command(cmd []byte) error {
	if len(cmd) < serialHeaderLen {
		return fmt.Errorf("command cmd length < %d", serialHeaderLen)
	}
	cmd[1] = byte(len(cmd))
	_, err := m.modem.Write(cmd)
	if err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

func (m *SerialModem) commandWithResponse(cmd []byte) ([]byte, error) {
	m.clearResponseBuf()
	err := m.command(cmd)
	if err != nil {
		return nil, err
	}
	hdr, err := m.readResponse(serialHeaderLen)
	if err != nil {
		return nil, err
	}
	if hdr[0] != cmd[0] || hdr[1] < serialHeaderLen {
		return nil, fmt.Errorf("bad response header % 02x to command %d", hdr, cmd[0])
	}
	resp, err := m.readResponse(int(hdr[1]) - serialHeaderLen)
	if err != nil {
		return nil, err
	}
	log.Printf("[DEBUG] commandWithResponse() received: % 02x", resp)
	return resp, nil
}

func (m *SerialModem) readResponse(n int) ([]byte, error) {
	buf := make([]byte, n)
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	for i := range buf {
		select {
		case b, ok := <-m.cmdSource:
			if !ok {
				m.mutex.Lock()
				err := m.readErr
				m.mutex.Unlock()
				return nil, fmt.Errorf("%w: %w", ErrModemClosed, err)
			}
			buf[i] = b
		case <-timer.C:
			return nil, ErrResponseTimeout
		}
	}
	return buf, nil
}

func (m *SerialModem) clearResponseBuf() {
	for {
		select {
		case b, ok := <-m.cmdSource:
			if !ok {
				return
			}
			log.Printf("[DEBUG] serial modem discarding response: %02x", b)
		default:
			return
		}
	}
}
