package clamd

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"
)

// uploadOutcome is the result of streaming the input to the daemon.
// When aborted is set the daemon replied before the terminator was sent and
// reply holds its premature answer.
type uploadOutcome struct {
	sent    int64
	aborted bool
	reply   []byte
}

// upload streams r to the daemon in frames of at most chunkLength payload
// bytes and finishes with the zero-length terminator. After every frame it
// checks, without blocking, whether the daemon has already answered; if so
// the upload stops and the premature reply is returned.
func upload(s *session, r io.Reader, chunkLength int, log logrus.Ext1FieldLogger) (uploadOutcome, error) {
	frame := make([]byte, frameHeaderLen+chunkLength)
	var sent int64

	for {
		n, readErr := r.Read(frame[frameHeaderLen:])
		if n > 0 {
			log.Tracef("current chunk length: %d", n)
			putFrameHeader(frame, n)
			if err := s.write(frame[:frameHeaderLen+n]); err != nil {
				return abortOnWriteError(s, sent, err)
			}
			sent += int64(n)

			if s.replied() {
				log.WithField("size", sent).Info("clamd replied before the end of the stream")
				reply, err := s.awaitEarlyReply()
				if err != nil {
					return uploadOutcome{sent: sent}, err
				}
				return uploadOutcome{sent: sent, aborted: true, reply: reply}, nil
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return uploadOutcome{sent: sent}, NewValidationError("failed to read data", readErr)
		}
	}

	if err := s.write(terminator[:]); err != nil {
		return abortOnWriteError(s, sent, err)
	}
	return uploadOutcome{sent: sent}, nil
}

// abortOnWriteError handles a failed write. A daemon that rejects the stream
// replies and closes the connection, so a write can fail after a reply has
// already been sent; in that case the reply is reported instead of the error.
func abortOnWriteError(s *session, sent int64, writeErr error) (uploadOutcome, error) {
	reply, err := s.awaitEarlyReply()
	if err != nil || len(reply) == 0 {
		return uploadOutcome{sent: sent}, writeErr
	}
	return uploadOutcome{sent: sent, aborted: true, reply: reply}, nil
}
