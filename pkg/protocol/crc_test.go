package protocol

import "testing"

func TestCRC(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty", nil, 0x0000},
		{"check string", []byte("123456789"), 0x2189},
		{"scenario header and payload", []byte{0x01, 0x98, 0x01, 0x44, 0x44, 0xCD, 0xAB, 0x22, 0x22, 0x34, 0x12, 0x01, 0x02, 0x0A, 0x0B}, 0xD924},
		{"empty payload header", []byte{0x01, 0x98, 0x00, 0x44, 0x44, 0xCD, 0xAB, 0x22, 0x22, 0x34, 0x12}, 0xEA30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CRC(tt.data); got != tt.want {
				t.Errorf("CRC() = %04x, want %04x", got, tt.want)
			}
		})
	}
}

func TestCRCResidue(t *testing.T) {
	data := []byte{0x01, 0x98, 0x01, 0x44, 0x44, 0xCD, 0xAB, 0x22, 0x22, 0x34, 0x12, 0x01, 0x02, 0x0A, 0x0B}
	crc := CRC(data)
	if got := CRC(append(data, byte(crc), byte(crc>>8))); got != 0 {
		t.Errorf("CRC over data and FCS = %04x, want 0", got)
	}
}
