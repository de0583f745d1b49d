package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/lifi/adapter"
	redisadapter "github.com/pithecene-io/lifi/adapter/redis"
	"github.com/pithecene-io/lifi/adapter/webhook"
	"github.com/pithecene-io/lifi/capture"
	"github.com/pithecene-io/lifi/cli/config"
	"github.com/pithecene-io/lifi/cli/render"
	"github.com/pithecene-io/lifi/cli/tui"
	"github.com/pithecene-io/lifi/iox"
	"github.com/pithecene-io/lifi/log"
	"github.com/pithecene-io/lifi/metrics"
	"github.com/pithecene-io/lifi/runtime"
	"github.com/pithecene-io/lifi/sink"
)

// defaultAdapterRetries applies when neither flag nor config sets retries.
const defaultAdapterRetries = webhook.DefaultRetries

// ReceiveCommand returns the receive command.
// It is the only command that writes files.
func ReceiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "receive",
		Usage: "Receive a broadcast file from a stream of L1FB tokens",
		Flags: []cli.Flag{
			ConfigFlag,
			FormatFlag,
			TUIFlag,
			&cli.StringFlag{
				Name:  "receiver-id",
				Usage: "Receiver identity used in logs, metrics and events",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
			// Input flags (mutually exclusive)
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Read newline-delimited tokens from FILE (- for stdin, the default)",
			},
			&cli.StringFlag{
				Name:  "recording",
				Usage: "Replay tokens from a recording written by `lifi record`",
			},
			&cli.StringFlag{
				Name:  "device-cmd",
				Usage: "Decoder command printing one token per line, e.g. \"zbarcam --raw\"",
			},
			&cli.StringFlag{
				Name:  "trim-prefix",
				Usage: "Strip this prefix from every input line (e.g. QR-Code:)",
			},
			// Sink flags
			&cli.StringFlag{
				Name:  "sink-backend",
				Usage: "Storage backend for saved files: fs or s3",
			},
			&cli.StringFlag{
				Name:  "sink-path",
				Usage: "Storage path (fs: directory, s3: bucket/prefix)",
			},
			&cli.StringFlag{
				Name:  "s3-region",
				Usage: "AWS region for the s3 backend (optional, uses default chain)",
			},
			&cli.StringFlag{
				Name:  "s3-endpoint",
				Usage: "Custom S3 endpoint for S3-compatible providers",
			},
			&cli.BoolFlag{
				Name:  "s3-path-style",
				Usage: "Use path-style S3 addressing",
			},
			&cli.BoolFlag{
				Name:  "auto-save",
				Usage: "Save the file as soon as every chunk has arrived",
			},
			// Adapter flags
			&cli.StringFlag{
				Name:  "adapter",
				Usage: "Completion adapter: webhook or redis",
			},
			&cli.StringFlag{
				Name:  "adapter-url",
				Usage: "Webhook endpoint or redis URL",
			},
			&cli.StringFlag{
				Name:  "adapter-channel",
				Usage: "Redis pub/sub channel (default " + redisadapter.DefaultChannel + ")",
			},
			&cli.DurationFlag{
				Name:  "adapter-timeout",
				Usage: "Per-attempt adapter timeout",
			},
			&cli.IntFlag{
				Name:  "adapter-retries",
				Usage: "Adapter retry attempts after the first failure",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (e.g. :9464)",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a JSON run report to this path (- for stderr)",
			},
		},
		Action: receiveAction,
	}
}

func receiveAction(c *cli.Context) error {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	if err := applyReceiveFlags(c, cfg); err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), exitConfigError)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	receiverID := cfg.ReceiverID
	if receiverID == "" {
		receiverID = runtime.DefaultReceiverID
	}
	// Log lines would tear the alt screen; a TUI on a terminal logs nowhere.
	errOut := c.App.ErrWriter
	if c.Bool("tui") && isStderrTTY() {
		errOut = io.Discard
	}
	logger, err := log.NewLoggerWithLevel(receiverID, cfg.LogLevel, errOut)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := openInput(cfg.Input, c.App.Reader, errOut)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open input: %v", err), exitConfigError)
	}
	defer iox.DiscardErr(in.close)

	snk, err := buildSink(ctx, cfg.Sink)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create sink: %v", err), exitConfigError)
	}

	adp, err := buildAdapter(cfg.Adapter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create adapter: %v", err), exitConfigError)
	}
	if adp != nil {
		defer iox.DiscardClose(adp)
	}

	backend := cfg.Sink.Backend
	if backend == "" {
		backend = config.SinkFS
	}
	collector := metrics.NewCollector(receiverID, in.kind, backend)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, collector); err != nil {
				logger.Error("metrics server stopped", map[string]any{"addr": cfg.MetricsAddr, "error": err.Error()})
			}
		}()
	}

	station := runtime.NewStation(runtime.Config{
		ReceiverID: receiverID,
		Device:     in.device,
		Sink:       snk,
		Adapter:    adp,
		Metrics:    collector,
		Logger:     logger,
		AutoSave:   cfg.AutoSave,
	})

	start := time.Now()
	var runErr error
	if c.Bool("tui") {
		// The interactive view starts paused; space starts scanning.
		_, runErr = tui.RunReceiver(ctx, station, in.source, collector)
	} else {
		if err := station.SetScanning(ctx, true); err != nil {
			return fmt.Errorf("failed to start capture: %w", err)
		}
		_, runErr = station.Run(ctx, in.source)
	}
	if err := station.SetScanning(context.WithoutCancel(ctx), false); err != nil {
		logger.Warn("failed to stop capture", map[string]any{"error": err.Error()})
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return cli.Exit(runErr.Error(), exitFailure)
	}

	report := runtime.BuildReport(station, time.Since(start))
	if cfg.Report != "" {
		if err := runtime.WriteReport(report, cfg.Report); err != nil {
			logger.Error("failed to write report", map[string]any{"error": err.Error()})
		}
	}

	if err := r.Render(report.Status); err != nil {
		return err
	}
	if report.ExitCode != runtime.ExitCodeComplete {
		return cli.Exit(report.Message, report.ExitCode)
	}
	return nil
}

// applyReceiveFlags overlays explicitly set flags onto cfg.
func applyReceiveFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("receiver-id") {
		cfg.ReceiverID = c.String("receiver-id")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}

	var inputs []string
	if c.IsSet("input") {
		inputs = append(inputs, "--input")
		cfg.Input.Kind, cfg.Input.Path = config.InputFile, c.String("input")
		if cfg.Input.Path == "-" {
			cfg.Input.Kind, cfg.Input.Path = config.InputStdin, ""
		}
	}
	if c.IsSet("recording") {
		inputs = append(inputs, "--recording")
		cfg.Input.Kind, cfg.Input.Path = config.InputRecording, c.String("recording")
	}
	if c.IsSet("device-cmd") {
		inputs = append(inputs, "--device-cmd")
		cfg.Input.Kind, cfg.Input.DeviceCommand = config.InputDevice, c.String("device-cmd")
	}
	if len(inputs) > 1 {
		return fmt.Errorf("%s and %s are mutually exclusive", inputs[0], inputs[1])
	}
	if c.IsSet("trim-prefix") {
		cfg.Input.TrimPrefix = c.String("trim-prefix")
	}

	if c.IsSet("sink-backend") {
		cfg.Sink.Backend = c.String("sink-backend")
	}
	if c.IsSet("sink-path") {
		cfg.Sink.Path = c.String("sink-path")
	}
	if c.IsSet("s3-region") {
		cfg.Sink.Region = c.String("s3-region")
	}
	if c.IsSet("s3-endpoint") {
		cfg.Sink.Endpoint = c.String("s3-endpoint")
	}
	if c.IsSet("s3-path-style") {
		cfg.Sink.S3PathStyle = c.Bool("s3-path-style")
	}
	if c.IsSet("auto-save") {
		cfg.AutoSave = c.Bool("auto-save")
	}

	if c.IsSet("adapter") {
		cfg.Adapter.Type = c.String("adapter")
	}
	if c.IsSet("adapter-url") {
		cfg.Adapter.URL = c.String("adapter-url")
	}
	if c.IsSet("adapter-channel") {
		cfg.Adapter.Channel = c.String("adapter-channel")
	}
	if c.IsSet("adapter-timeout") {
		cfg.Adapter.Timeout = config.Duration{Duration: c.Duration("adapter-timeout")}
	}
	if c.IsSet("adapter-retries") {
		n := c.Int("adapter-retries")
		cfg.Adapter.Retries = &n
	}

	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	if c.IsSet("report") {
		cfg.Report = c.String("report")
	}
	return nil
}

// input is an opened token source with the device that gates it.
type input struct {
	kind   string
	source capture.Source
	device capture.Device
	close  func() error
}

func openInput(cfg config.InputConfig, stdin io.Reader, stderr io.Writer) (*input, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = config.InputStdin
	}

	if kind == config.InputDevice {
		pc, err := capture.ParseCommand(cfg.DeviceCommand)
		if err != nil {
			return nil, err
		}
		pc.TrimPrefix = cfg.TrimPrefix
		pc.Stderr = stderr
		dev, err := capture.NewProcessDevice(pc)
		if err != nil {
			return nil, err
		}
		return &input{kind: kind, source: dev.Source(), device: dev, close: dev.Stop}, nil
	}

	gate := capture.NewGate()
	if kind == config.InputStdin {
		if stdin == nil {
			stdin = os.Stdin
		}
		ls := capture.NewLineSource(stdin)
		ls.TrimPrefix = cfg.TrimPrefix
		return &input{kind: kind, source: gate.Filter(ls), device: gate, close: ls.Close}, nil
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, err
	}
	var src capture.Source
	closeFn := f.Close
	if kind == config.InputRecording {
		src = capture.NewRecordingSource(f)
	} else {
		ls := capture.NewLineSource(f)
		ls.TrimPrefix = cfg.TrimPrefix
		src = ls
		closeFn = func() error { return iox.CloseAll(ls, f) }
	}
	return &input{kind: kind, source: gate.Filter(src), device: gate, close: closeFn}, nil
}

func buildSink(ctx context.Context, cfg config.SinkConfig) (sink.Sink, error) {
	switch cfg.Backend {
	case config.SinkFS, "":
		root := cfg.Path
		if root == "" {
			root = "."
		}
		s, err := sink.NewFS(root)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SinkS3:
		bucket, prefix := sink.ParseS3Path(cfg.Path)
		s, err := sink.NewS3(ctx, sink.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown sink backend: %s (must be fs or s3)", cfg.Backend)
	}
}

func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := defaultAdapterRetries
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	switch cfg.Type {
	case "":
		return nil, nil
	case config.AdapterWebhook:
		a, err := webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case config.AdapterRedis:
		a, err := redisadapter.New(redisadapter.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown adapter: %s (must be webhook or redis)", cfg.Type)
	}
}
