// Package analyzer adapts a clamd scanner to the content analyzer contract:
// data is analyzed asynchronously and the findings are written into a
// caller-provided report map.
package analyzer

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	clamd "github.com/DevHatRo/clamd-go"
)

// Report keys written by Analyze.
const (
	KeyStatus    = "clamd.scanresult.status"
	KeyMessage   = "clamd.scanresult.message"
	KeyStarted   = "clamd.scanresult.started"
	KeySize      = "clamd.scanresult.size"
	KeyTimestamp = "clamd.scanresult.timestamp"
)

// Service properties identifying this analyzer.
const (
	Operation = "malware detection"
	Provider  = "clamd"
)

// Scanner scans a stream. *clamd.Client and *clamd.Service satisfy it.
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) (*clamd.ScanResult, error)
}

// Analyzer runs scans in the background and reports their results.
type Analyzer struct {
	scanner Scanner
	logger  logrus.FieldLogger
}

// New creates an analyzer backed by scanner. A nil logger disables logging.
func New(scanner Scanner, logger logrus.FieldLogger) *Analyzer {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Analyzer{scanner: scanner, logger: logger}
}

// Properties returns the operation and provider this analyzer registers with.
func (a *Analyzer) Properties() map[string]string {
	return map[string]string{
		"content.analyzer.operation": Operation,
		"content.analyzer.provider":  Provider,
	}
}

// Analyze scans r on a new goroutine. When the scan is done the result is
// written into report and the returned channel receives nil; on failure it
// receives the error and report is left untouched. The channel is closed
// after the single value. report must not be accessed until then.
func (a *Analyzer) Analyze(ctx context.Context, r io.Reader, report map[string]any) <-chan error {
	done := make(chan error, 1)

	go func() {
		defer close(done)

		result, err := a.scanner.Scan(ctx, r)
		if err != nil {
			a.logger.WithError(err).Error("analyzing content failed")
			done <- err
			return
		}
		Fill(report, result)
		done <- nil
	}()

	return done
}

// Fill copies the fields of result into report.
func Fill(report map[string]any, result *clamd.ScanResult) {
	report[KeyStatus] = result.Status
	report[KeyMessage] = result.Message
	report[KeyStarted] = result.Started
	report[KeySize] = result.Size
	report[KeyTimestamp] = result.Timestamp
}
