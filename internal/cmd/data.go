package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/relicrush/relicpack/internal/datadir"
	apperr "github.com/relicrush/relicpack/internal/errors"
	"github.com/relicrush/relicpack/internal/layout"
)

func (a *app) dataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Inspect or back up the DB folder",
	}
	cmd.AddCommand(a.dataInspectCmd(), a.dataBackupCmd())
	return cmd
}

// dataDir resolves the DB folder from an explicit argument, --root, or the
// manifest's source-db.
func (a *app) dataDir(args []string, root string) (string, error) {
	switch {
	case len(args) == 1:
		return filepath.Abs(args[0])
	case root != "":
		abs, err := filepath.Abs(root)
		return filepath.Join(abs, layout.DataDirName), err
	}
	cfg, err := a.manifest()
	if err != nil {
		return "", err
	}
	return cfg.Resolve(cfg.Build.SourceDB), nil
}

// data inspect [dir]: list the data files and integrity-check SQLite databases.
func (a *app) dataInspectCmd() *cobra.Command {
	var (
		root   string
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "inspect [dir]",
		Short: "Report the DB folder's files and database integrity",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.dataDir(args, root)
			if err != nil {
				return err
			}
			rep, err := datadir.Inspect(cmd.Context(), dir)
			if err != nil {
				return apperr.Wrap(apperr.CodeDataCorrupt, "inspect "+dir, err)
			}
			err = a.emit(cmd, rep, func(w io.Writer) error {
				if !rep.Exists {
					_, errPrint := fmt.Fprintf(w, "%s does not exist\n", rep.Dir)
					return errPrint
				}
				fmt.Fprintf(w, "%s: %d files, %d bytes\n", rep.Dir, len(rep.Files), rep.TotalSize)
				for _, f := range rep.Files {
					status := ""
					if f.Integrity != "" {
						status = "integrity " + f.Integrity
					}
					if _, errPrint := fmt.Fprintf(w, "  %-40s %10d  %s  %s\n", f.Path, f.Size, f.ModTime.Format("2006-01-02 15:04"), status); errPrint != nil {
						return errPrint
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			if bad := rep.Corrupt(); strict && len(bad) > 0 {
				names := make([]string, 0, len(bad))
				for _, f := range bad {
					names = append(names, f.Path)
				}
				return apperr.New(apperr.ExitFailure, apperr.CodeDataCorrupt,
					fmt.Sprintf("%d corrupt database files", len(bad)), nil).WithDetail("files", names)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "install directory whose DB folder to inspect")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when a database does not pass the integrity check")
	return cmd
}

type backupResult struct {
	Dir    string `json:"dir"`
	Backup string `json:"backup"`
}

// data backup [dir]: zip the DB folder.
func (a *app) dataBackupCmd() *cobra.Command {
	var (
		root string
		out  string
	)
	cmd := &cobra.Command{
		Use:   "backup [dir]",
		Short: "Zip the DB folder",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.dataDir(args, root)
			if err != nil {
				return err
			}
			res := backupResult{Dir: dir, Backup: out}
			if res.Backup == "" {
				res.Backup = datadir.BackupName(a.now())
			}
			if res.Backup, err = filepath.Abs(res.Backup); err != nil {
				return err
			}
			if err := datadir.Backup(dir, res.Backup); err != nil {
				return apperr.Wrap(apperr.CodeCopyFailed, "back up "+dir, err)
			}
			return a.emit(cmd, res, func(w io.Writer) error {
				_, errPrint := fmt.Fprintf(w, "backed up %s to %s\n", res.Dir, res.Backup)
				return errPrint
			})
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "install directory whose DB folder to back up")
	cmd.Flags().StringVarP(&out, "out", "o", "", "backup archive (default: DB-backup-<time>.zip)")
	return cmd
}
