package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

type PANID uint16
type ShortAddress uint16

// Broadcast is both the broadcast PAN id and the broadcast short address.
const Broadcast = 0xFFFF

// FrameControl is the 16 bit 802.15.4 frame control field.
type FrameControl uint16

type FrameType byte

const (
	FrameTypeBeacon FrameType = iota
	FrameTypeData
	FrameTypeAck
	FrameTypeCommand
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeBeacon:
		return "0 - Beacon"
	case FrameTypeData:
		return "1 - Data"
	case FrameTypeAck:
		return "2 - Ack"
	case FrameTypeCommand:
		return "3 - MAC Command"
	default:
		return "ERROR"
	}
}

const (
	AddrModeNone  = 0
	AddrModeShort = 2
	AddrModeExt   = 3

	FrameVersion2003 = 0
	FrameVersion2006 = 1

	fcSecurity      FrameControl = 1 << 3
	fcFramePending  FrameControl = 1 << 4
	fcAckRequest    FrameControl = 1 << 5
	fcPANIDCompress FrameControl = 1 << 6

	fcDstModeShift = 10
	fcVersionShift = 12
	fcSrcModeShift = 14
)

// DataFrameControl is the only frame control this package writes: a 2006
// data frame, short source and destination addresses, sequence number
// present, no security, no frame pending, no ack request and no PAN id
// compression.
const DataFrameControl = FrameControl(FrameTypeData) |
	AddrModeShort<<fcDstModeShift |
	FrameVersion2006<<fcVersionShift |
	AddrModeShort<<fcSrcModeShift

func (fc FrameControl) FrameType() FrameType   { return FrameType(fc & 0x7) }
func (fc FrameControl) Security() bool         { return fc&fcSecurity != 0 }
func (fc FrameControl) FramePending() bool     { return fc&fcFramePending != 0 }
func (fc FrameControl) AckRequest() bool       { return fc&fcAckRequest != 0 }
func (fc FrameControl) PANIDCompression() bool { return fc&fcPANIDCompress != 0 }
func (fc FrameControl) DstAddrMode() byte      { return byte(fc>>fcDstModeShift) & 0x3 }
func (fc FrameControl) Version() byte          { return byte(fc>>fcVersionShift) & 0x3 }
func (fc FrameControl) SrcAddrMode() byte      { return byte(fc>>fcSrcModeShift) & 0x3 }

const (
	PreambleLen = 4
	SFD         = 0xA7
	// PHYHeaderLen is preamble, SFD and the length byte.
	PHYHeaderLen = PreambleLen + 2
	// MaxMACLen is the longest MAC frame the one byte length field can carry.
	MaxMACLen = 255

	// Worst case MAC header: frame control, sequence number, two PAN ids
	// with extended addresses is 2+1+10, plus 14 for an auxiliary
	// security header.
	maxMACHeaderLen = 2 + 1 + 10 + 14

	// Header length for DataFrameControl: frame control, sequence number
	// and two PAN id/short address pairs.
	dataHeaderLen = 2 + 1 + 2*(2+2)
)

// MaxFrameSize is the buffer capacity needed for a PHY frame carrying up to
// maxPayload bytes, whatever MAC header options are used.
func MaxFrameSize(maxPayload int) int {
	return maxMACHeaderLen + maxPayload + CRCLen + PHYHeaderLen
}

// Header holds the addressing of a data frame.
type Header struct {
	Seq    byte
	DstPAN PANID
	Dst    ShortAddress
	SrcPAN PANID
	Src    ShortAddress
}

// Frame is a PHY frame holding one 802.15.4 data frame. It is built by a
// Builder and not changed afterwards.
type Frame struct {
	Control FrameControl
	Header  Header
	Payload []byte
	FCS     uint16

	phy *Buffer
}

// Builder builds frames whose payload is at most MaxPayload bytes into
// buffers of MaxFrameSize(MaxPayload) bytes.
type Builder struct {
	maxPayload int
	maxFrame   int
}

func NewBuilder(maxPayload int) (*Builder, error) {
	if maxPayload < 0 {
		return nil, fmt.Errorf("max payload size %d is negative", maxPayload)
	}
	return &Builder{
		maxPayload: maxPayload,
		maxFrame:   MaxFrameSize(maxPayload),
	}, nil
}

func (b *Builder) MaxPayload() int   { return b.maxPayload }
func (b *Builder) MaxFrameSize() int { return b.maxFrame }

// Build creates the PHY frame for a data frame from src to dst. The FCS is
// computed over the serialized MAC header and payload, then the frame is
// serialized again with the FCS and wrapped in the PHY preamble, SFD and
// length byte.
func (b *Builder) Build(seq byte, srcPAN PANID, src ShortAddress, dstPAN PANID, dst ShortAddress, payload []byte) (*Frame, error) {
	if len(payload) > b.maxPayload {
		return nil, fmt.Errorf("%w: payload %d bytes > max %d", ErrCapacityExceeded, len(payload), b.maxPayload)
	}
	f := &Frame{
		Control: DataFrameControl,
		Header: Header{
			Seq:    seq,
			DstPAN: dstPAN,
			Dst:    dst,
			SrcPAN: srcPAN,
			Src:    src,
		},
		Payload: bytes.Clone(payload),
	}

	mac := NewBuffer(b.maxFrame)
	err := f.appendMAC(mac, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationOverflow, err)
	}
	f.FCS = CRC(mac.b)

	mac.Reset()
	err = f.appendMAC(mac, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationOverflow, err)
	}
	if mac.Len() > MaxMACLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrLengthFieldOverflow, mac.Len())
	}

	f.phy = NewBuffer(b.maxFrame)
	err = f.phy.Append(0, 0, 0, 0, SFD, byte(mac.Len()))
	if err == nil {
		err = f.phy.Append(mac.b...)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapacityExceeded, err)
	}
	return f, nil
}

// MarshalMAC writes the MAC frame, FCS included, into buf.
func (f *Frame) MarshalMAC(buf *Buffer) error {
	return f.appendMAC(buf, true)
}

func (f *Frame) appendMAC(buf *Buffer, footer bool) error {
	var err error
	appendU16 := func(v uint16) {
		if err == nil {
			err = buf.AppendUint16(v)
		}
	}
	appendU16(uint16(f.Control))
	if err == nil {
		err = buf.Append(f.Header.Seq)
	}
	appendU16(uint16(f.Header.DstPAN))
	appendU16(uint16(f.Header.Dst))
	appendU16(uint16(f.Header.SrcPAN))
	appendU16(uint16(f.Header.Src))
	if err == nil {
		err = buf.Append(f.Payload...)
	}
	if footer {
		appendU16(f.FCS)
	}
	return err
}

// Bytes returns the PHY frame: preamble, SFD, length and MAC frame.
func (f *Frame) Bytes() []byte {
	return f.phy.Bytes()
}

// MAC returns the MAC frame including the FCS.
func (f *Frame) MAC() []byte {
	return f.Bytes()[PHYHeaderLen:]
}

// Len is the size of the PHY frame in bytes.
func (f *Frame) Len() int {
	return f.phy.Len()
}

// CheckFCS reports whether the FCS matches the MAC header and payload.
func (f *Frame) CheckFCS() bool {
	mac := f.MAC()
	return CRC(mac[:len(mac)-CRCLen]) == f.FCS
}

// ParseFrame decodes a PHY frame carrying a data frame with short addresses
// and no PAN id compression, the only layout Builder produces.
func ParseFrame(buf []byte) (*Frame, error) {
	if len(buf) < PHYHeaderLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(buf))
	}
	if buf[PreambleLen] != SFD {
		return nil, fmt.Errorf("%w: %#02x", ErrBadSFD, buf[PreambleLen])
	}
	n := int(buf[PreambleLen+1])
	mac := buf[PHYHeaderLen:]
	if n < dataHeaderLen+CRCLen || len(mac) < n {
		return nil, fmt.Errorf("%w: length field %d, %d bytes", ErrShortFrame, n, len(mac))
	}
	mac = mac[:n]
	fc := FrameControl(binary.LittleEndian.Uint16(mac))
	if fc.FrameType() != FrameTypeData || fc.DstAddrMode() != AddrModeShort || fc.SrcAddrMode() != AddrModeShort ||
		fc.PANIDCompression() || fc.Security() {
		return nil, fmt.Errorf("%w: %#04x", ErrUnsupportedFrame, uint16(fc))
	}
	f := &Frame{
		Control: fc,
		Header: Header{
			Seq:    mac[2],
			DstPAN: PANID(binary.LittleEndian.Uint16(mac[3:])),
			Dst:    ShortAddress(binary.LittleEndian.Uint16(mac[5:])),
			SrcPAN: PANID(binary.LittleEndian.Uint16(mac[7:])),
			Src:    ShortAddress(binary.LittleEndian.Uint16(mac[9:])),
		},
		Payload: bytes.Clone(mac[dataHeaderLen : n-CRCLen]),
		FCS:     binary.LittleEndian.Uint16(mac[n-CRCLen:]),
	}
	if CRC(mac[:n-CRCLen]) != f.FCS {
		return nil, fmt.Errorf("%w: %#04x", ErrBadFCS, f.FCS)
	}
	f.phy = &Buffer{b: bytes.Clone(buf[:PHYHeaderLen+n])}
	return f, nil
}

func (f Frame) String() string {
	return fmt.Sprintf(`{
	Type: %v
	Version: %d
	Seq: %d
	Dst: %04x/%04x
	Src: %04x/%04x
	Payload: [% 02x]
	FCS: %04x
}`, f.Control.FrameType(), f.Control.Version(), f.Header.Seq,
		uint16(f.Header.DstPAN), uint16(f.Header.Dst),
		uint16(f.Header.SrcPAN), uint16(f.Header.Src),
		f.Payload, f.FCS)
}
