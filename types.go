package clamd

import "time"

// Status is the outcome parsed from the daemon's reply.
type Status string

const (
	// StatusOK means no malware was found.
	StatusOK Status = "OK"
	// StatusFound means the daemon reported a signature match.
	StatusFound Status = "FOUND"
	// StatusError means the daemon rejected the stream, e.g. the size limit was exceeded.
	StatusError Status = "ERROR"
	// StatusUnknown means the reply could not be parsed.
	StatusUnknown Status = "UNKNOWN"
)

// ScanResult represents the result of one INSTREAM scan.
type ScanResult struct {
	// Status is the parsed outcome.
	Status Status `json:"status"`
	// Message is the trimmed reply text from the daemon.
	Message string `json:"message"`
	// Started is the time the network operation began.
	Started time.Time `json:"started"`
	// Size is the number of payload bytes sent before the stream ended.
	Size int64 `json:"size"`
	// Timestamp is the time the result was created.
	Timestamp time.Time `json:"timestamp"`
}

func newScanResult(status Status, message string, started time.Time, size int64) *ScanResult {
	return &ScanResult{
		Status:    status,
		Message:   message,
		Started:   started,
		Size:      size,
		Timestamp: time.Now(),
	}
}

// IsInfected returns true if the scan found malware.
func (r *ScanResult) IsInfected() bool {
	return r.Status == StatusFound
}

// IsClean returns true if the daemon reported no malware.
func (r *ScanResult) IsClean() bool {
	return r.Status == StatusOK
}

// Duration returns the time between the start of the scan and the creation of the result.
func (r *ScanResult) Duration() time.Duration {
	return r.Timestamp.Sub(r.Started)
}
