package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/lifi/cli/render"
	"github.com/pithecene-io/lifi/packet"
	"github.com/pithecene-io/lifi/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version         string `json:"version" yaml:"version"`
	Commit          string `json:"commit" yaml:"commit"`
	ProtocolMagic   string `json:"protocol_magic" yaml:"protocol_magic"`
	ProtocolVersion string `json:"protocol_version" yaml:"protocol_version"`
}

// Line implements render.Liner.
func (v VersionResponse) Line() string {
	return "lifi " + v.Version + " (commit: " + v.Commit + ", protocol " + v.ProtocolMagic + "/" + v.ProtocolVersion + ")"
}

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", exitFailure)
		}

		return r.Render(VersionResponse{
			Version:         types.Version,
			Commit:          commit,
			ProtocolMagic:   packet.Magic,
			ProtocolVersion: packet.Version,
		})
	}
}
