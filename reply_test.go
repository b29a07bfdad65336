package clamd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyReply(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		wantStatus  Status
		wantMessage string
	}{
		{"ok", "stream: OK", StatusOK, "stream: OK"},
		{"ok with newline", "stream: OK\n", StatusOK, "stream: OK"},
		{"ok with NUL terminator", "stream: OK\x00", StatusOK, "stream: OK"},
		{"ok with surrounding whitespace", "  stream: OK \r\n", StatusOK, "stream: OK"},
		{"found", "stream: Eicar-Test-Signature FOUND", StatusFound, "stream: Eicar-Test-Signature FOUND"},
		{"found with newline", "stream: Win.Test.EICAR_HDB-1 FOUND\n", StatusFound, "stream: Win.Test.EICAR_HDB-1 FOUND"},
		{"found with spaces in name", "stream: Some Heuristic Thing FOUND", StatusFound, "stream: Some Heuristic Thing FOUND"},
		{"found without name", "stream:  FOUND", StatusUnknown, "stream:  FOUND"},
		{"size limit", "INSTREAM size limit exceeded. ERROR", StatusError, "INSTREAM size limit exceeded. ERROR"},
		{"size limit with NUL", "INSTREAM size limit exceeded. ERROR\x00", StatusError, "INSTREAM size limit exceeded. ERROR"},
		{"other error", "stream: Can't allocate memory ERROR", StatusUnknown, "stream: Can't allocate memory ERROR"},
		{"ok prefix only", "stream: OK and more", StatusUnknown, "stream: OK and more"},
		{"lowercase", "stream: ok", StatusUnknown, "stream: ok"},
		{"garbage", "foo bar", StatusUnknown, "foo bar"},
		{"empty", "", StatusUnknown, ""},
		{"whitespace only", " \n\x00", StatusUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message := ClassifyReply([]byte(tt.reply))
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMessage, message)
		})
	}
}

func TestClassifyReplyNonASCII(t *testing.T) {
	status, message := ClassifyReply([]byte("stream: \xc3\xa4 FOUND\n"))
	assert.Equal(t, StatusFound, status)
	assert.Equal(t, "stream: �� FOUND", message)
}

func TestClassifyReplyNil(t *testing.T) {
	status, message := ClassifyReply(nil)
	assert.Equal(t, StatusUnknown, status)
	assert.Empty(t, message)
}
