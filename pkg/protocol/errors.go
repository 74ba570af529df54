package protocol

import "errors"

var (
	ErrBufferFull            = errors.New("buffer full")
	ErrSerializationOverflow = errors.New("MAC frame does not fit the serialization buffer")
	ErrCapacityExceeded      = errors.New("frame capacity exceeded")
	ErrLengthFieldOverflow   = errors.New("MAC frame longer than the PHY length field allows")
	ErrShortFrame            = errors.New("frame too short")
	ErrBadSFD                = errors.New("bad start of frame delimiter")
	ErrBadFCS                = errors.New("bad frame check sequence")
	ErrUnsupportedFrame      = errors.New("unsupported frame control")
)
