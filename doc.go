// Package clamd provides a Go client for the clamd INSTREAM protocol.
//
// A Client opens one TCP session per operation, streams the input to the
// daemon in length-prefixed chunks and classifies the daemon's final reply
// into a ScanResult. Replies that arrive before the upload is finished
// (for example when StreamMaxLength is exceeded) stop the upload and are
// reported as results with status ERROR instead of failures. Only transport
// problems are returned as errors.
//
// # Quick Start
//
//	client, err := clamd.NewClient(clamd.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	f, _ := os.Open("/path/to/file.pdf")
//	defer f.Close()
//
//	result, err := client.Scan(ctx, f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Status: %s, Infected: %v\n", result.Status, result.IsInfected())
package clamd
