package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/lifi/capture"
	"github.com/pithecene-io/lifi/cli/config"
	"github.com/pithecene-io/lifi/cli/render"
	"github.com/pithecene-io/lifi/iox"
	"github.com/pithecene-io/lifi/receiver"
)

// RecordResponse is the response for the record command.
type RecordResponse struct {
	Path     string `json:"path" yaml:"path"`
	Tokens   int    `json:"tokens" yaml:"tokens"`
	Repeats  int    `json:"repeats_dropped" yaml:"repeats_dropped"`
	Canceled bool   `json:"canceled" yaml:"canceled"`
}

// Line implements render.Liner.
func (r RecordResponse) Line() string {
	return fmt.Sprintf("recorded %d tokens to %s", r.Tokens, r.Path)
}

// RecordCommand returns the record command.
// It captures raw tokens for later replay with `receive --recording`.
func RecordCommand() *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: "Capture tokens into a recording for later replay",
		Flags: []cli.Flag{
			FormatFlag,
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Usage:    "Recording file to write",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Read newline-delimited tokens from FILE (- for stdin, the default)",
			},
			&cli.StringFlag{
				Name:  "device-cmd",
				Usage: "Decoder command printing one token per line",
			},
			&cli.StringFlag{
				Name:  "trim-prefix",
				Usage: "Strip this prefix from every input line",
			},
			&cli.BoolFlag{
				Name:  "drop-repeats",
				Usage: "Skip a token identical to the one before it",
			},
		},
		Action: recordAction,
	}
}

func recordAction(c *cli.Context) error {
	if c.IsSet("input") && c.IsSet("device-cmd") {
		return cli.Exit("--input and --device-cmd are mutually exclusive", exitConfigError)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	inCfg := config.InputConfig{Kind: config.InputStdin, TrimPrefix: c.String("trim-prefix")}
	switch {
	case c.IsSet("device-cmd"):
		inCfg.Kind, inCfg.DeviceCommand = config.InputDevice, c.String("device-cmd")
	case c.IsSet("input") && c.String("input") != "-":
		inCfg.Kind, inCfg.Path = config.InputFile, c.String("input")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := openInput(inCfg, c.App.Reader, c.App.ErrWriter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open input: %v", err), exitConfigError)
	}
	defer iox.DiscardErr(in.close)
	if err := in.device.Start(ctx); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	defer iox.DiscardErr(in.device.Stop)

	out := c.String("out")
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	defer iox.DiscardClose(f)

	resp, err := record(ctx, in.source, capture.NewFrameEncoder(f), c.Bool("drop-repeats"))
	resp.Path = out
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to flush recording: %w", err)
	}
	return r.Render(resp)
}

// record copies tokens from src into enc until EOF or cancellation.
func record(ctx context.Context, src capture.Source, enc *capture.FrameEncoder, dropRepeats bool) (RecordResponse, error) {
	var (
		resp  RecordResponse
		dedup receiver.Deduplicator
	)
	for {
		token, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return resp, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				resp.Canceled = true
				return resp, nil
			}
			return resp, fmt.Errorf("capture source failed: %w", err)
		}
		if dropRepeats && !dedup.ShouldProcess(token) {
			resp.Repeats++
			continue
		}
		if err := enc.WriteToken(token); err != nil {
			return resp, fmt.Errorf("failed to write recording: %w", err)
		}
		resp.Tokens++
	}
}
