package cmd

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lawrencejones/concatsink/pkg/concat"
	"github.com/lawrencejones/concatsink/pkg/pipe"
	"github.com/lawrencejones/concatsink/pkg/targets/file"
	"github.com/lawrencejones/concatsink/pkg/targets/gcs"

	"cloud.google.com/go/storage"
	"contrib.go.opencensus.io/exporter/jaeger"
	"github.com/alecthomas/kingpin"
	"github.com/davecgh/go-spew/spew"
	"github.com/getsentry/sentry-go"
	kitlog "github.com/go-kit/kit/log"
	level "github.com/go-kit/kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opencensus.io/trace"
)

var logger kitlog.Logger

var (
	app = kingpin.New("concatsink", "Write a stream of chunks into a rolling series of segments").Version(versionStanza())

	// Global flags
	debug               = app.Flag("debug", "Enable debug logging").Default("false").Bool()
	metricsAddress      = app.Flag("metrics-address", "Address to bind HTTP metrics listener").Default("127.0.0.1").String()
	metricsPort         = app.Flag("metrics-port", "Port to bind HTTP metrics listener").Default("9525").Uint16()
	jaegerAgentEndpoint = app.Flag("jaeger-agent-endpoint", "Endpoint for Jaeger agent").Default("localhost:6831").String()
	sentryDSN           = app.Flag("sentry-dsn", "Sentry DSN to report pipe failures to").Envar("SENTRY_DSN").String()

	write             = app.Command("write", "Write input, one chunk per line, into rolling segments")
	writeInput        = write.Flag("input", "File to read chunks from").Default("/dev/stdin").String()
	writeFormat       = write.Flag("format", "How each chunk is encoded into segments").Default("raw").Enum("raw", "json")
	writeDryRun       = write.Flag("dry-run", "Print chunks only, ignoring sink").Default("false").Bool()
	writePreventClose = write.Flag("prevent-close", "Leave the final segment unfinalized on success").Default("false").Bool()
	writePreventAbort = write.Flag("prevent-abort", "Leave the final segment in place on failure").Default("false").Bool()

	writeSinkType        = write.Flag("sink", "Type of sink target").Default("file").Enum("file", "gcs")
	writeSinkFileOptions = new(file.Options).Bind(write, "sink.file.")
	writeSinkGCSOptions  = new(gcs.Options).Bind(write, "sink.gcs.")
)

// SilentError should be returned when the command wants to skip all logging of the error
// it has encountered. It wraps no error content as we should never inspect it.
var SilentError = errors.New("silent error")

type UsageError struct {
	error
}

func Run() (err error) {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, level.AllowInfo())
	if *debug {
		logger = level.NewFilter(logger, level.AllowDebug())
	}
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.DefaultCaller)
	stdlog.SetOutput(kitlog.NewStdlibAdapter(logger))

	if *sentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: *sentryDSN, Release: Version}); err != nil {
			return UsageError{fmt.Errorf("invalid sentry configuration: %w", err)}
		}

		defer sentry.Flush(5 * time.Second)
	}

	// Setup an error handler to log and print usage
	defer func() {
		var usageErr UsageError
		switch {
		// Do nothing if no error
		case err == nil:
			return
		// Suppress silent errors
		case errors.Is(err, SilentError):
			return
		// If we're a usage error, unwrap it and print out usage before returning
		case errors.As(err, &usageErr):
			context, _ := app.ParseContext(os.Args[1:])
			app.UsageForContext(context)
			fmt.Fprintf(os.Stderr, "error: %s\n", usageErr.Error())

			err = usageErr.error
			return
		// Otherwise we probably want to log our error
		default:
			if *sentryDSN != "" {
				sentry.CaptureException(err)
			}

			logger.Log("event", "error", "error", err, "msg", "exiting with error")
		}
	}()

	// This is the root context for the application. Once terminated, everything we have
	// started should also finish.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stage our shutdown to first request termination, then cancel contexts if downstream
	// workers haven't responded.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	shutdown := make(chan struct{})

	go func() {
		<-sigc
		close(shutdown)
		select {
		case <-time.After(30 * time.Second):
		case <-sigc:
		}
		cancel()
	}()

	var g run.Group

	{
		logger := kitlog.With(logger, "component", "shutdown_handler")

		ctx, cancel := context.WithCancel(ctx)

		// If we're asked to shutdown, we use the rungroup to trigger interrupts for every
		// component
		g.Add(
			func() error {
				select {
				case <-shutdown:
					logger.Log("event", "requesting_shutdown", "msg", "received signal, requesting shutdown")
				case <-ctx.Done():
				}

				return nil
			},
			func(error) {
				cancel() // end the shutdown select
			},
		)
	}

	{
		logger := kitlog.With(logger, "component", "metrics")

		// Metrics and debug endpoints
		mux := http.NewServeMux()

		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		srv := &http.Server{Addr: fmt.Sprintf("%s:%d", *metricsAddress, *metricsPort), Handler: mux}

		g.Add(
			func() error {
				logger.Log("event", "listen", "address", *metricsAddress, "port", *metricsPort)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}

				return nil
			},
			func(error) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			},
		)
	}

	{
		// Tracing with jaeger
		jexporter, err := jaeger.NewExporter(jaeger.Options{
			AgentEndpoint: *jaegerAgentEndpoint,
			Process: jaeger.Process{
				ServiceName: "concatsink",
			},
		})

		if err != nil {
			return UsageError{err}
		}

		trace.RegisterExporter(jexporter)
		trace.ApplyConfig(trace.Config{DefaultSampler: trace.AlwaysSample()})
	}

	switch command {
	case write.FullCommand():
		input, err := openInput(*writeInput)
		if err != nil {
			return UsageError{fmt.Errorf("failed to open input: %w", err)}
		}

		defer input.Close()

		logger := kitlog.With(logger, "component", "pipe")
		ctx, cancel := context.WithCancel(ctx)

		var scanErr error
		chunks := scanLines(input, func(err error) {
			scanErr = err
			cancel()
		})

		if *writeDryRun {
			g.Add(
				func() error {
					for chunk := range chunks {
						spew.Dump(chunk)
					}

					return scanErr
				},
				func(error) {
					cancel()
				},
			)

			return g.Run()
		}

		supply, err := buildSupply(ctx, logger)
		if err != nil {
			return err
		}

		opts := []concat.Option{concat.WithLogger(logger)}
		if *writePreventClose {
			opts = append(opts, concat.WithPreventClose())
		}
		if *writePreventAbort {
			opts = append(opts, concat.WithPreventAbort())
		}

		sink := concat.New(supply, opts...)

		g.Add(
			func() error {
				err := pipe.Pipe(ctx, logger, chunks, sink)
				if scanErr != nil {
					return fmt.Errorf("failed to read input: %w", scanErr)
				}

				return err
			},
			func(error) {
				cancel()
			},
		)

		return g.Run()
	}

	return UsageError{fmt.Errorf("unsupported command")}
}

func buildSupply(ctx context.Context, logger kitlog.Logger) (concat.Supply[string], error) {
	var serializer file.Serializer[string] = file.Raw[string]{}
	if *writeFormat == "json" {
		serializer = file.JSON[string]{}
	}

	switch *writeSinkType {
	case "file":
		return concat.Generator(file.Segments(logger, serializer, *writeSinkFileOptions)), nil
	case "gcs":
		if writeSinkGCSOptions.Bucket == "" {
			return nil, UsageError{fmt.Errorf("--sink.gcs.bucket is required for the gcs sink")}
		}

		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}

		open := gcs.BucketWriter(client, writeSinkGCSOptions.Bucket, writeSinkGCSOptions.ContentType)
		return concat.Generator(gcs.Objects(logger, open, serializer, *writeSinkGCSOptions)), nil
	}

	return nil, UsageError{fmt.Errorf("unsupported sink type: %s", *writeSinkType)}
}
