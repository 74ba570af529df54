package protocol

import "github.com/sigurn/crc16"

// The 802.15.4 FCS is the ITU-T CRC-16 run LSB first from a zero register,
// which is the CRC-16/KERMIT parameter set.
var crcTable = crc16.MakeTable(crc16.CRC16_KERMIT)

const CRCLen = 2

// CRC computes the 802.15.4 frame check sequence of data.
func CRC(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
