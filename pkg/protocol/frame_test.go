package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestBuild(t *testing.T) {
	type args struct {
		seq     byte
		srcPAN  PANID
		src     ShortAddress
		dstPAN  PANID
		dst     ShortAddress
		payload []byte
	}
	maxPayload := make([]byte, 242)
	for i := range maxPayload {
		maxPayload[i] = byte(i)
	}
	tests := []struct {
		name       string
		maxPayload int
		args       args
		wantMAC    []byte // nil to skip
		wantLen    int
		wantFCS    uint16
		wantErr    error
	}{
		{
			name:       "scenario",
			maxPayload: 4,
			args:       args{1, 0x2222, 0x1234, 0x4444, 0xABCD, []byte{0x01, 0x02, 0x0A, 0x0B}},
			wantMAC:    []byte{0x01, 0x98, 0x01, 0x44, 0x44, 0xCD, 0xAB, 0x22, 0x22, 0x34, 0x12, 0x01, 0x02, 0x0A, 0x0B, 0x24, 0xD9},
			wantLen:    23,
			wantFCS:    0xD924,
		},
		{
			name:       "empty payload",
			maxPayload: 8,
			args:       args{0, 0x2222, 0x1234, 0x4444, 0xABCD, nil},
			wantMAC:    []byte{0x01, 0x98, 0x00, 0x44, 0x44, 0xCD, 0xAB, 0x22, 0x22, 0x34, 0x12, 0x30, 0xEA},
			wantLen:    19,
			wantFCS:    0xEA30,
		},
		{
			name:       "longest MAC frame",
			maxPayload: 250,
			args:       args{7, 0x0001, 0x0002, Broadcast, Broadcast, maxPayload},
			wantLen:    PHYHeaderLen + MaxMACLen,
			wantFCS:    0x8F23,
		},
		{
			name:       "payload over declared maximum",
			maxPayload: 4,
			args:       args{1, 0x2222, 0x1234, 0x4444, 0xABCD, []byte{1, 2, 3, 4, 5}},
			wantErr:    ErrCapacityExceeded,
		},
		{
			name:       "length field overflow",
			maxPayload: 250,
			args:       args{1, 0x2222, 0x1234, 0x4444, 0xABCD, make([]byte, 243)},
			wantErr:    ErrLengthFieldOverflow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBuilder(tt.maxPayload)
			if err != nil {
				t.Fatalf("NewBuilder() error = %v", err)
			}
			f, err := b.Build(tt.args.seq, tt.args.srcPAN, tt.args.src, tt.args.dstPAN, tt.args.dst, tt.args.payload)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Build() error = %v, want %v", err, tt.wantErr)
				}
				if f != nil {
					t.Errorf("Build() returned a frame with an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			got := f.Bytes()
			if len(got) != tt.wantLen || f.Len() != tt.wantLen {
				t.Errorf("Build() length = %d, want %d", len(got), tt.wantLen)
			}
			if !bytes.Equal(got[:PHYHeaderLen], []byte{0, 0, 0, 0, SFD, byte(tt.wantLen - PHYHeaderLen)}) {
				t.Errorf("PHY header = [% 02x]", got[:PHYHeaderLen])
			}
			if tt.wantMAC != nil && !bytes.Equal(f.MAC(), tt.wantMAC) {
				t.Errorf("MAC() = [% 02x], want [% 02x]", f.MAC(), tt.wantMAC)
			}
			if f.FCS != tt.wantFCS {
				t.Errorf("FCS = %04x, want %04x", f.FCS, tt.wantFCS)
			}
			if !f.CheckFCS() {
				t.Errorf("CheckFCS() = false")
			}
			if f.Len() > b.MaxFrameSize() {
				t.Errorf("frame of %d bytes exceeds capacity %d", f.Len(), b.MaxFrameSize())
			}
		})
	}
}

func TestBuildDoesNotAlias(t *testing.T) {
	b, _ := NewBuilder(4)
	payload := []byte{1, 2, 3, 4}
	f, err := b.Build(1, 1, 2, 3, 4, payload)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	payload[0] = 0xFF
	out := f.Bytes()
	out[PHYHeaderLen] = 0xFF
	if f.Payload[0] != 1 || !f.CheckFCS() {
		t.Errorf("frame changed through a caller slice")
	}
}

func TestMarshalMAC(t *testing.T) {
	b, _ := NewBuilder(4)
	f, _ := b.Build(1, 0x2222, 0x1234, 0x4444, 0xABCD, []byte{0x01, 0x02, 0x0A, 0x0B})
	buf := NewBuffer(17)
	if err := f.MarshalMAC(buf); err != nil {
		t.Fatalf("MarshalMAC() error = %v", err)
	}
	if !bytes.Equal(buf.Bytes(), f.MAC()) {
		t.Errorf("MarshalMAC() = [% 02x], want [% 02x]", buf.Bytes(), f.MAC())
	}
	small := NewBuffer(16)
	if err := f.MarshalMAC(small); !errors.Is(err, ErrBufferFull) {
		t.Errorf("MarshalMAC() error = %v, want ErrBufferFull", err)
	}
}

func TestFrameControl(t *testing.T) {
	fc := DataFrameControl
	if uint16(fc) != 0x9801 {
		t.Errorf("DataFrameControl = %#04x, want 0x9801", uint16(fc))
	}
	if fc.FrameType() != FrameTypeData || fc.Version() != FrameVersion2006 ||
		fc.DstAddrMode() != AddrModeShort || fc.SrcAddrMode() != AddrModeShort {
		t.Errorf("DataFrameControl fields wrong: %v %d %d %d", fc.FrameType(), fc.Version(), fc.DstAddrMode(), fc.SrcAddrMode())
	}
	if fc.Security() || fc.FramePending() || fc.AckRequest() || fc.PANIDCompression() {
		t.Errorf("DataFrameControl has flags set")
	}
}

func TestParseFrame(t *testing.T) {
	b, _ := NewBuilder(8)
	want, _ := b.Build(9, 0x2222, 0x1234, 0x4444, 0xABCD, []byte("hello"))
	got, err := ParseFrame(want.Bytes())
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if got.Header != want.Header || !reflect.DeepEqual(got.Payload, want.Payload) || got.FCS != want.FCS {
		t.Errorf("ParseFrame() = %v, want %v", got, want)
	}
	if !bytes.Equal(got.Bytes(), want.Bytes()) {
		t.Errorf("ParseFrame().Bytes() = [% 02x], want [% 02x]", got.Bytes(), want.Bytes())
	}

	corrupt := want.Bytes()
	corrupt[len(corrupt)-3] ^= 0x01
	tests := []struct {
		name    string
		buf     []byte
		wantErr error
	}{
		{"short", []byte{0, 0, 0}, ErrShortFrame},
		{"bad sfd", []byte{0, 0, 0, 0, 0xA6, 0}, ErrBadSFD},
		{"truncated", want.Bytes()[:10], ErrShortFrame},
		{"bad fcs", corrupt, ErrBadFCS},
		{"ack frame", []byte{0, 0, 0, 0, SFD, 13, 0x02, 0x98, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, ErrUnsupportedFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFrame(tt.buf); !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseFrame() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaxFrameSize(t *testing.T) {
	if got := MaxFrameSize(4); got != 39 {
		t.Errorf("MaxFrameSize(4) = %d, want 39", got)
	}
	if _, err := NewBuilder(-1); err == nil {
		t.Errorf("NewBuilder(-1) error = nil")
	}
}
