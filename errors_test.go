package clamd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  &Error{Code: CodeConnection, Message: "connection refused"},
			want: "connection refused",
		},
		{
			name: "with cause",
			err:  &Error{Code: CodeConnection, Message: "connection refused", Cause: errors.New("dial tcp")},
			want: "connection refused: dial tcp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &Error{Code: CodeTimeout, Message: "timed out", Cause: cause}
	assert.ErrorIs(t, err, cause)

	err2 := &Error{Code: CodeTimeout, Message: "timed out"}
	assert.Nil(t, err2.Unwrap())
}

func TestErrorAs(t *testing.T) {
	err := NewConnectionError("connection refused", nil)
	wrapped := fmt.Errorf("scan failed: %w", err)

	var target *Error
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, CodeConnection, target.Code)
}

func TestErrorConstructors(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	tests := []struct {
		name string
		err  *Error
		code string
		is   func(error) bool
	}{
		{"connection", NewConnectionError("cannot reach clamd", cause), CodeConnection, IsConnectionError},
		{"timeout", NewTimeoutError("read timed out", cause), CodeTimeout, IsTimeoutError},
		{"validation", NewValidationError("bad chunk length", cause), CodeValidation, IsValidationError},
		{"protocol", NewProtocolError("unexpected reply", cause), CodeProtocol, IsProtocolError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Same(t, cause, tt.err.Cause)
			assert.True(t, tt.is(tt.err))
			assert.True(t, tt.is(fmt.Errorf("wrapped: %w", tt.err)), "should work through wrapping")
			assert.False(t, tt.is(errors.New("random error")), "should be false for foreign errors")
		})
	}

	assert.False(t, IsConnectionError(NewTimeoutError("timeout", nil)))
	assert.False(t, IsTimeoutError(NewConnectionError("conn", nil)))
	assert.False(t, IsValidationError(NewProtocolError("proto", nil)))
	assert.False(t, IsProtocolError(NewValidationError("val", nil)))
}

func TestClassifyTransportError(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		is   func(error) bool
	}{
		{"canceled context", canceled, os.ErrDeadlineExceeded, IsTimeoutError},
		{"deadline", context.Background(), os.ErrDeadlineExceeded, IsTimeoutError},
		{"dns", context.Background(), &net.DNSError{Err: "no such host", Name: "clamd.invalid"}, IsConnectionError},
		{"op error", context.Background(), &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, IsConnectionError},
		{"other", context.Background(), errors.New("broken pipe"), IsConnectionError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyTransportError(tt.ctx, "op", tt.err)
			assert.True(t, tt.is(err), "unexpected classification: %v", err)
		})
	}

	assert.NoError(t, classifyTransportError(context.Background(), "op", nil))
}
