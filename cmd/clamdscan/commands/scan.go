package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	clamd "github.com/DevHatRo/clamd-go"
	"github.com/DevHatRo/clamd-go/report"
)

// stdinSource names standard input on the command line.
const stdinSource = "-"

type scanOptions struct {
	parallel    int
	jsonOutput  bool
	natsURL     string
	natsSubject string
	redisAddr   string
	redisKey    string
	redisMaxLen int64
}

// scanOutcome is the result of scanning one source.
type scanOutcome struct {
	source string
	result *clamd.ScanResult
	err    error
}

func newScanCommand(a *app) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan [file...]",
		Short: "Scan files, or standard input when no file or \"-\" is given",
		Long: `Scan streams every file to clamd and prints one line per file.
Exit status is 0 when everything is clean, 1 when malware was found and 2
when a file could not be scanned or the daemon answered with an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, args, opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.parallel, "parallel", "p", 1, "Number of files scanned concurrently")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print one JSON event per file")
	flags.StringVar(&opts.natsURL, "nats-url", "", "Publish scan events to this NATS server")
	flags.StringVar(&opts.natsSubject, "nats-subject", report.DefaultSubject, "NATS subject for scan events")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "Record scan events in this Redis server")
	flags.StringVar(&opts.redisKey, "redis-key", report.DefaultKey, "Redis list for scan events")
	flags.Int64Var(&opts.redisMaxLen, "redis-max-len", 10000, "Maximum number of events kept in the Redis list (0 keeps all)")

	return cmd
}

func (a *app) runScan(cmd *cobra.Command, args []string, opts *scanOptions) error {
	if opts.parallel < 1 {
		return &ExitError{Code: 2, Err: fmt.Errorf("parallel must be at least 1: %d", opts.parallel)}
	}

	sources := args
	if len(sources) == 0 {
		sources = []string{stdinSource}
	}

	ctx := cmd.Context()
	svc, err := a.service(ctx)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	sink, closeSinks, err := a.openSinks(ctx, opts)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	defer closeSinks()

	outcomes := make([]scanOutcome, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.parallel)
	for i, source := range sources {
		i, source := i, source
		g.Go(func() error {
			outcomes[i] = a.scanSource(gctx, svc, cmd.InOrStdin(), source)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // per-source errors are kept in outcomes

	return a.report(ctx, cmd, outcomes, sink, opts.jsonOutput)
}

func (a *app) scanSource(ctx context.Context, svc *clamd.Service, stdin io.Reader, source string) scanOutcome {
	if source == stdinSource {
		result, err := svc.Scan(ctx, stdin)
		return scanOutcome{source: source, result: result, err: err}
	}

	f, err := os.Open(source)
	if err != nil {
		return scanOutcome{source: source, err: clamd.NewValidationError("failed to open file: "+source, err)}
	}
	defer func() { _ = f.Close() }()

	result, err := svc.Scan(ctx, f)
	return scanOutcome{source: source, result: result, err: err}
}

// report prints the outcomes in command-line order, records them in sink and
// maps them to the exit status.
func (a *app) report(ctx context.Context, cmd *cobra.Command, outcomes []scanOutcome, sink report.Sink, jsonOutput bool) error {
	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)

	var found, failed int
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", o.source, o.err)
			continue
		}

		switch o.result.Status {
		case clamd.StatusFound:
			found++
		case clamd.StatusError, clamd.StatusUnknown:
			failed++
		}

		event := report.NewEvent(o.source, o.result)
		if jsonOutput {
			if err := enc.Encode(event); err != nil {
				return &ExitError{Code: 2, Err: err}
			}
		} else {
			fmt.Fprintf(out, "%s: %s (%s, %d bytes)\n", o.source, o.result.Message, o.result.Status, o.result.Size)
		}

		if sink != nil {
			if err := sink.Record(ctx, event); err != nil {
				a.logger.WithError(err).WithField("source", o.source).Error("failed to report scan result")
			}
		}
	}

	switch {
	case failed > 0:
		return &ExitError{Code: 2}
	case found > 0:
		return &ExitError{Code: 1}
	default:
		return nil
	}
}

// openSinks connects the configured event sinks. The returned sink is nil when none is configured.
func (a *app) openSinks(ctx context.Context, opts *scanOptions) (report.Sink, func(), error) {
	var sinks report.Multi
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if opts.natsURL != "" {
		nc, err := nats.Connect(opts.natsURL, nats.Name("clamdscan"))
		if err != nil {
			return nil, closeAll, fmt.Errorf("failed to connect to NATS at %s: %w", opts.natsURL, err)
		}
		closers = append(closers, func() {
			if err := nc.Drain(); err != nil {
				nc.Close()
			}
		})
		sinks = append(sinks, report.NewNATSPublisher(nc, opts.natsSubject))
		a.logger.WithField("url", opts.natsURL).Info("publishing scan events to NATS")
	}

	if opts.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close() //nolint:errcheck
			closeAll()
			return nil, func() {}, fmt.Errorf("failed to connect to Redis at %s: %w", opts.redisAddr, err)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		sinks = append(sinks, report.NewRedisRecorder(rdb, opts.redisKey, opts.redisMaxLen))
		a.logger.WithField("addr", opts.redisAddr).Info("recording scan events in Redis")
	}

	if len(sinks) == 0 {
		return nil, closeAll, nil
	}
	return sinks, closeAll, nil
}
