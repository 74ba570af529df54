package oqpsk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"gopkg.in/ini.v1"

	"github.com/uu-core/oqpsk/pkg/phy"
)

func hexLines(words []phy.Word) string {
	var sb strings.Builder
	for _, w := range words {
		fmt.Fprintf(&sb, "%08X\n", w)
	}
	return sb.String()
}

func TestDummyModemPrefill(t *testing.T) {
	var out bytes.Buffer
	m, err := NewDummyModem(&out, 4, FormatHex, 0)
	if err != nil {
		t.Fatalf("NewDummyModem() error = %v", err)
	}
	for i, w := range seqWords(4) {
		if full, _ := m.Full(); full {
			t.Fatalf("Full() before word %d", i)
		}
		if err := m.Write(w); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if full, _ := m.Full(); !full {
		t.Errorf("Full() = false with %d words queued", 4)
	}
	if err := m.Write(5); !errors.Is(err, ErrFIFOFull) {
		t.Errorf("Write() to full FIFO error = %v, want ErrFIFOFull", err)
	}
	if out.Len() != 0 {
		t.Errorf("words shifted out before Start(): %q", out.String())
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got, want := out.String(), hexLines(seqWords(4)); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if err := m.Write(1); !errors.Is(err, ErrModemClosed) {
		t.Errorf("Write() after Close() error = %v, want ErrModemClosed", err)
	}
}

func TestDummyModemTransmission(t *testing.T) {
	want := scenarioWords(t, 1)
	var out bytes.Buffer
	m, err := NewDummyModem(&out, DefaultFIFODepth, FormatBinary, 0)
	if err != nil {
		t.Fatalf("NewDummyModem() error = %v", err)
	}
	tx, err := Prepare(m, scenarioFrame, 1)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if err := tx.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if _, err := tx.Send(); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if m.Written() != uint64(len(want)) {
		t.Errorf("Written() = %d, want %d", m.Written(), len(want))
	}
	var got []phy.Word
	for b := range slices.Chunk(out.Bytes(), 4) {
		got = append(got, binary.BigEndian.Uint32(b))
	}
	if !slices.Equal(got, want) {
		t.Errorf("output differs from the word stream: %d words, want %d", len(got), len(want))
	}
}

func TestDummyModemCloseWithoutStart(t *testing.T) {
	var out bytes.Buffer
	m, _ := NewDummyModem(&out, 8, FormatHex, 0)
	m.Write(0xDEADBEEF)
	m.Write(0x00000001)
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got, want := out.String(), "DEADBEEF\n00000001\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestDummyModemReset(t *testing.T) {
	var out bytes.Buffer
	m, _ := NewDummyModem(&out, 2, FormatHex, 0)
	m.Write(1)
	m.Write(2)
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if full, _ := m.Full(); full {
		t.Errorf("Full() after Reset() = true")
	}
	m.Write(3)
	m.Start()
	m.Close()
	if got := out.String(); got != "00000003\n" {
		t.Errorf("output = %q, want only the word written after Reset()", got)
	}
}

func TestNewDummyModemFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		keys    map[string]string
		wantErr bool
	}{
		{"defaults", nil, false},
		{"all keys", map[string]string{"FIFODepth": "4", "WordPeriod": "1us", "Format": "binary"}, false},
		{"bad depth", map[string]string{"FIFODepth": "four"}, true},
		{"zero depth", map[string]string{"FIFODepth": "0"}, true},
		{"bad period", map[string]string{"WordPeriod": "soon"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ini.Empty()
			sec, _ := cfg.NewSection("Modem")
			for k, v := range tt.keys {
				sec.NewKey(k, v)
			}
			m, err := NewDummyModemFromConfig(&bytes.Buffer{}, sec)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewDummyModemFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if m != nil {
				m.Close()
			}
		})
	}
}
