package clamd

import "encoding/binary"

// Commands and replies are sent with the "n" prefix, so every line ends in '\n'.
const (
	cmdPing     = "nPING\n"
	cmdInstream = "nINSTREAM\n"
	replyPong   = "PONG\n"
)

// frameHeaderLen is the size of the chunk length prefix.
const frameHeaderLen = 4

// terminator is a zero-length chunk; it ends an INSTREAM upload.
var terminator = [frameHeaderLen]byte{}

// putFrameHeader writes the big-endian length n into the first four bytes of frame.
func putFrameHeader(frame []byte, n int) {
	binary.BigEndian.PutUint32(frame[:frameHeaderLen], uint32(n))
}
