package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/lifi/capture"
	"github.com/pithecene-io/lifi/iox"
	"github.com/pithecene-io/lifi/packet"
)

// TokensCommand returns the tokens command, the sender-side helper that
// turns a file into its broadcast token cycle.
func TokensCommand() *cli.Command {
	return &cli.Command{
		Name:  "tokens",
		Usage: "Emit the L1FB token cycle for a file, one token per line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Usage:    "File to encode",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "Raw bytes per token",
				Value: packet.DefaultChunkSize,
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Filename to announce (default: base name of --file)",
			},
			&cli.IntFlag{
				Name:  "cycles",
				Usage: "Number of times to repeat the full cycle",
				Value: 1,
			},
			&cli.StringFlag{
				Name:  "recording",
				Usage: "Also write the tokens to a recording at this path",
			},
		},
		Action: tokensAction,
	}
}

func tokensAction(c *cli.Context) error {
	path := c.String("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot read %s: %v", path, err), exitConfigError)
	}
	name := c.String("name")
	if name == "" {
		name = filepath.Base(path)
	}
	cycles := c.Int("cycles")
	if cycles < 1 {
		return cli.Exit("--cycles must be >= 1", exitConfigError)
	}

	tokens, err := packet.Tokens(name, data, c.Int("chunk-size"))
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	var enc *capture.FrameEncoder
	if out := c.String("recording"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create recording: %w", err)
		}
		defer iox.DiscardClose(f)
		enc = capture.NewFrameEncoder(f)
	}

	return writeTokens(c.App.Writer, enc, tokens, cycles)
}

func writeTokens(w io.Writer, enc *capture.FrameEncoder, tokens []string, cycles int) error {
	for range cycles {
		for _, tok := range tokens {
			if _, err := fmt.Fprintln(w, tok); err != nil {
				return err
			}
			if enc == nil {
				continue
			}
			if err := enc.WriteToken(tok); err != nil {
				return fmt.Errorf("failed to write recording: %w", err)
			}
		}
	}
	return nil
}
