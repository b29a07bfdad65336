package clamd

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	replyStreamOK          = "stream: OK"
	replySizeLimitExceeded = "INSTREAM size limit exceeded. ERROR"
)

// replyFoundPattern matches "stream: <signature> FOUND".
var replyFoundPattern = regexp.MustCompile(`^stream: .+ FOUND$`)

// ClassifyReply decodes a raw daemon reply as ASCII, trims it and maps it to a Status.
// The first matching rule wins: "stream: OK", "stream: <signature> FOUND",
// the INSTREAM size limit error, and anything else as StatusUnknown.
func ClassifyReply(reply []byte) (Status, string) {
	message := trimReply(decodeASCII(reply))

	switch {
	case message == replyStreamOK:
		return StatusOK, message
	case replyFoundPattern.MatchString(message):
		return StatusFound, message
	case message == replySizeLimitExceeded:
		return StatusError, message
	default:
		return StatusUnknown, message
	}
}

// decodeASCII replaces every byte outside the ASCII range with U+FFFD.
func decodeASCII(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c < utf8.RuneSelf {
			sb.WriteByte(c)
		} else {
			sb.WriteRune(utf8.RuneError)
		}
	}
	return sb.String()
}

// trimReply strips leading and trailing whitespace and control bytes.
// clamd ends replies with '\n' or NUL depending on the command prefix.
func trimReply(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r <= ' '
	})
}
