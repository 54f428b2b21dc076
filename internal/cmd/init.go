package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relicrush/relicpack/internal/config"
	apperr "github.com/relicrush/relicpack/internal/errors"
)

type initResult struct {
	Path  string `json:"path"`
	AppID string `json:"app_id"`
}

// init [name]: write a starter manifest with a fresh AppId.
func (a *app) initCmd() *cobra.Command {
	var (
		dir    string
		format string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Create a relicpack manifest with a new AppId",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				dir = wd
			}
			ext := strings.ToLower(strings.TrimPrefix(format, "."))
			switch ext {
			case "yaml", "yml", "toml":
			default:
				return usageError(fmt.Errorf("unknown manifest format %q", format))
			}
			name := filepath.Base(dir)
			if len(args) == 1 {
				name = args[0]
			}
			tmpl := config.Template(name)
			path := filepath.Join(dir, "relicpack."+ext)
			if err := config.Write(path, tmpl, force); err != nil {
				return apperr.Wrap(apperr.CodeConfigInvalid, "write manifest", err)
			}
			res := initResult{Path: path, AppID: tmpl.App.AppID}
			return a.emit(cmd, res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "wrote %s (AppId %s)\n", res.Path, res.AppID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "project directory (default: working directory)")
	cmd.Flags().StringVar(&format, "format", "yaml", "manifest format: yaml or toml")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing manifest")
	return cmd
}
