package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hanpama/querysign/internal/config"
	"github.com/hanpama/querysign/internal/eventbus"
	"github.com/hanpama/querysign/internal/logging"
	"github.com/hanpama/querysign/internal/metrics"
	"github.com/hanpama/querysign/internal/otel"
	"github.com/hanpama/querysign/internal/pipeline"
	"github.com/hanpama/querysign/internal/runid"
	"github.com/hanpama/querysign/internal/signatures"
	"github.com/hanpama/querysign/internal/signer"
)

const rootLong = `querysign signs Relay persisted queries

Scans <root> for *.graphql.ts request artifacts, signs the query text of
each with HMAC-SHA256 and writes a JSON object mapping operation names to
lowercase hex signatures.

The signing key is read from $SIGNING_KEY (a .env or .env.local file in the
working directory is honoured) and falls back to the second argument.`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

type flags struct {
	configFile      string
	output          string
	strategy        string
	workers         int
	manifest        string
	metricsTextfile string
	allowFailures   bool
	logLevel        string
	logFormat       string
	otelEndpoint    string
	otelService     string
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "querysign <root> [signing-key] [output] [strategy]",
		Short:         "Sign Relay persisted queries",
		Long:          rootLong,
		Args:          cobra.RangeArgs(0, 4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := resolveConfig(cmd, args, &f, stderr)
			if err != nil {
				return err
			}
			return sign(cmd.Context(), cfg, logger, stderr)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configFile, "config", "", "YAML config file")
	fs.StringVarP(&f.output, "out", "o", signatures.DefaultOutput, "signature file to write")
	fs.StringVar(&f.strategy, "strategy", "structural", "extraction strategy: structural (swc) or textual (manual)")
	fs.IntVar(&f.workers, "workers", 0, "worker count (default: number of CPUs)")
	fs.StringVar(&f.manifest, "manifest", "", "also write a detailed manifest to this file")
	fs.StringVar(&f.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file")
	fs.BoolVar(&f.allowFailures, "allow-failures", false, "write signatures even if some files fail to parse")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")
	fs.StringVar(&f.otelEndpoint, "otel-endpoint", "", "OTLP gRPC collector endpoint")
	fs.StringVar(&f.otelService, "otel-service", "querysign", "OpenTelemetry service name")
	return cmd
}

// resolveConfig layers defaults, the config file, the environment,
// positional arguments and explicitly set flags, in that order.
func resolveConfig(cmd *cobra.Command, args []string, f *flags, stderr io.Writer) (config.Config, *logrus.Logger, error) {
	cfg := config.Default()
	if f.configFile != "" {
		if err := cfg.LoadFile(f.configFile); err != nil {
			return cfg, nil, err
		}
	}
	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	logger, err := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return cfg, nil, err
	}

	config.LoadEnvFiles(logger)
	cfg.ApplyEnv(os.LookupEnv)
	envKey := os.Getenv(config.SigningKeyEnv) != ""
	if envKey && len(args) > 1 {
		logger.Debug("signing key taken from " + config.SigningKeyEnv + "; ignoring positional key")
	}
	cfg.ApplyArgs(args, envKey)

	if changed("out") {
		cfg.Output = f.output
	}
	if changed("strategy") {
		cfg.Strategy = f.strategy
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("manifest") {
		cfg.Manifest = f.manifest
	}
	if changed("metrics-textfile") {
		cfg.MetricsTextfile = f.metricsTextfile
	}
	if changed("allow-failures") {
		cfg.AllowFailures = f.allowFailures
	}
	if changed("otel-endpoint") {
		cfg.OTel.Endpoint = f.otelEndpoint
	}
	if changed("otel-service") {
		cfg.OTel.Service = f.otelService
	}

	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func sign(ctx context.Context, cfg config.Config, logger *logrus.Logger, stderr io.Writer) (err error) {
	strategy, err := cfg.ParsedStrategy()
	if err != nil {
		return err
	}

	bus := eventbus.New()
	ctx, rid := runid.NewContext(ctx)
	shutdown, err := otel.Setup(ctx, bus, cfg.OTel.Endpoint, cfg.OTel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	var rec *metrics.Recorder
	if cfg.MetricsTextfile != "" {
		rec = metrics.New()
		rec.Register(bus)
		defer func() {
			if werr := rec.WriteTextfile(cfg.MetricsTextfile); werr != nil {
				err = errors.Join(err, werr)
			}
		}()
	}

	log := logger.WithFields(logrus.Fields{"run_id": rid, "strategy": strategy.String()})
	log.WithField("root", cfg.Root).Info("signing persisted queries")

	p := pipeline.New(
		strategy.Extractor(),
		signer.NewKey([]byte(cfg.SigningKey)),
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithLogger(log),
		pipeline.WithBus(bus),
		pipeline.WithOperationKinds(cfg.Manifest != ""),
	)
	res, runErr := p.Run(ctx, cfg.Root)

	var failed *pipeline.RunError
	if errors.As(runErr, &failed) {
		for _, fe := range failed.Failures {
			fmt.Fprintln(stderr, color.RedString("  ✗ %s", fe))
		}
	}
	if runErr != nil && !(failed != nil && cfg.AllowFailures) {
		return runErr
	}

	if err := signatures.WriteFile(cfg.Output, res.Signatures.Map()); err != nil {
		return err
	}
	if cfg.Manifest != "" {
		m := signatures.NewManifest(cfg.Root, res.Signatures.Entries())
		if err := signatures.WriteManifest(cfg.Manifest, m); err != nil {
			return err
		}
	}

	for _, c := range res.Signatures.Collisions() {
		fmt.Fprintln(stderr, color.YellowString("  ! %s declared by %d files, kept %s", c.Name, len(c.Dropped)+1, c.Kept))
	}
	color.New(color.FgGreen).Fprintf(stderr, "signed %d operations from %d files in %s → %s\n",
		res.Signatures.Len(), res.Files, res.Duration.Round(time.Millisecond), cfg.Output)
	if failed != nil {
		color.New(color.FgYellow).Fprintf(stderr, "%d file(s) failed and were left out\n", len(failed.Failures))
	}
	return nil
}
