package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/relicrush/relicpack/internal/buildinfo"
)

type versionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	// Artifact is the version a build would stamp when the manifest does not pin one.
	Artifact string `json:"artifact_version,omitempty"`
}

func (a *app) versionCmd() *cobra.Command {
	var artifact bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print relicpack build information",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := versionResult{Version: buildinfo.Version, Commit: buildinfo.Commit, BuildDate: buildinfo.BuildDate}
			if artifact {
				dir, err := os.Getwd()
				if err != nil {
					return err
				}
				if a.cfg != nil {
					dir = a.cfg.Root
				}
				res.Artifact = buildinfo.ResolveVersion(dir, a.now())
			}
			return a.emit(cmd, res, func(w io.Writer) error {
				if _, err := fmt.Fprintln(w, buildinfo.String()); err != nil {
					return err
				}
				if res.Artifact != "" {
					_, err := fmt.Fprintf(w, "artifact version from git: %s\n", res.Artifact)
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&artifact, "git", false, "also resolve the artifact version from the project's git tags")
	return cmd
}
