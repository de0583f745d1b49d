package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/lifi/capture"
	"github.com/pithecene-io/lifi/cli/reader"
	"github.com/pithecene-io/lifi/cli/render"
	"github.com/pithecene-io/lifi/cli/tui"
	"github.com/pithecene-io/lifi/iox"
)

// InspectCommand returns the inspect command.
// With token arguments it parses each one; with --recording or --input it
// replays the stream through a fresh receiver and summarizes it.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Parse tokens, or summarize a token stream, without saving anything",
		ArgsUsage: "[TOKEN...]",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "recording",
				Usage: "Summarize a recording written by `lifi record`",
			},
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Summarize a file of newline-delimited tokens",
			},
			&cli.StringFlag{
				Name:  "trim-prefix",
				Usage: "Strip this prefix from every input line",
			},
		),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	streamed := c.IsSet("recording") || c.IsSet("input")
	switch {
	case c.IsSet("recording") && c.IsSet("input"):
		return cli.Exit("--recording and --input are mutually exclusive", exitFailure)
	case streamed && c.NArg() > 0:
		return cli.Exit("token arguments cannot be combined with --recording or --input", exitFailure)
	case !streamed && c.NArg() == 0:
		return cli.Exit("at least one token, --recording, or --input is required", exitFailure)
	}

	if !streamed {
		resp := reader.InspectTokens(c.Args().Slice())
		if c.Bool("tui") {
			return tui.Run(tui.ViewInspectTokens, resp)
		}
		return r.Render(resp)
	}

	path := c.String("input")
	if c.IsSet("recording") {
		path = c.String("recording")
	}
	f, err := os.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open %s: %v", path, err), exitFailure)
	}
	defer iox.DiscardClose(f)

	var src capture.Source
	if c.IsSet("recording") {
		src = capture.NewRecordingSource(f)
	} else {
		ls := capture.NewLineSource(f)
		ls.TrimPrefix = c.String("trim-prefix")
		defer iox.DiscardClose(ls)
		src = ls
	}

	summary, err := reader.Summarize(c.Context, src)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read %s: %v", path, err), exitFailure)
	}
	if c.Bool("tui") {
		return tui.Run(tui.ViewInspectRecording, summary)
	}
	return r.Render(summary)
}
