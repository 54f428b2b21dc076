package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relicrush/relicpack/internal/config"
	apperr "github.com/relicrush/relicpack/internal/errors"
	"github.com/relicrush/relicpack/internal/innosetup"
	"github.com/relicrush/relicpack/internal/signing"
)

// releaseArtifacts lists the setup program and portable zip that exist on disk.
func releaseArtifacts(cfg *config.Config) []string {
	var out []string
	for _, p := range []string{innosetup.SetupPath(cfg), portableZipPath(cfg)} {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// artifactArgs returns args, or the manifest's release artifacts when args is empty.
func (a *app) artifactArgs(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	cfg, err := a.manifest()
	if err != nil {
		return nil, err
	}
	files := releaseArtifacts(cfg)
	if len(files) == 0 {
		return nil, apperr.New(apperr.ExitFailure, apperr.CodeConfigInvalid,
			"no release artifacts found; run package inno or package zip first", nil)
	}
	return files, nil
}

// sign [artifact...]: write armored detached signatures.
func (a *app) signCmd() *cobra.Command {
	var keyFile string
	cmd := &cobra.Command{
		Use:   "sign [artifact...]",
		Short: "Sign release artifacts with the OpenPGP release key",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := a.artifactArgs(args)
			if err != nil {
				return err
			}
			passphrase := os.Getenv(config.EnvSigningPassphrase)
			if cfg := a.optionalManifest(); cfg != nil {
				if keyFile == "" {
					keyFile = cfg.Resolve(cfg.Signing.KeyFile)
				}
				passphrase = cfg.Signing.Passphrase
			}
			if keyFile == "" {
				return usageError(errors.New("no signing key; set signing.key-file or pass --key"))
			}
			signer, err := signing.LoadSigner(keyFile, []byte(passphrase))
			if err != nil {
				return err
			}
			var sigs []string
			for _, f := range files {
				sig, errSign := signing.Sign(signer, f)
				if errSign != nil {
					return apperr.Wrap(apperr.CodeSignatureInvalid, "sign "+f, errSign)
				}
				log.Infof("signed %s", filepath.Base(f))
				sigs = append(sigs, sig)
			}
			return a.emit(cmd, sigs, func(w io.Writer) error {
				for _, s := range sigs {
					if _, errPrint := fmt.Fprintln(w, s); errPrint != nil {
						return errPrint
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "", "armored private key (default: manifest signing.key-file)")
	return cmd
}

type sigResult struct {
	Artifact string `json:"artifact"`
	Signer   string `json:"signer"`
}

// verify-sig <artifact>: check a detached signature.
func (a *app) verifySigCmd() *cobra.Command {
	var (
		pubKey string
		sig    string
	)
	cmd := &cobra.Command{
		Use:   "verify-sig <artifact>",
		Short: "Check an artifact against its detached signature",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			artifact := args[0]
			if sig == "" {
				sig = artifact + signing.SignatureExt
			}
			signer, err := signing.Verify(pubKey, artifact, sig)
			if err != nil {
				return err
			}
			res := sigResult{Artifact: artifact, Signer: signer}
			return a.emit(cmd, res, func(w io.Writer) error {
				_, errPrint := fmt.Fprintf(w, "good signature on %s from %s\n", filepath.Base(res.Artifact), res.Signer)
				return errPrint
			})
		},
	}
	cmd.Flags().StringVar(&pubKey, "pubkey", "", "armored public key")
	cmd.Flags().StringVar(&sig, "sig", "", "signature file (default: <artifact>.asc)")
	_ = cmd.MarkFlagRequired("pubkey")
	return cmd
}

type checksumResult struct {
	File       string   `json:"file"`
	Mismatched []string `json:"mismatched,omitempty"`
}

// checksums [file...]: write or check a SHA256SUMS file.
func (a *app) checksumsCmd() *cobra.Command {
	var (
		out   string
		check string
	)
	cmd := &cobra.Command{
		Use:   "checksums [file...]",
		Short: "Write SHA256SUMS for release artifacts, or check one with --check",
		RunE: func(cmd *cobra.Command, args []string) error {
			if check != "" {
				bad, err := signing.VerifyChecksums(check)
				if err != nil {
					return apperr.Wrap(apperr.CodeSignatureInvalid, "check "+check, err)
				}
				res := checksumResult{File: check, Mismatched: bad}
				if err := a.emit(cmd, res, func(w io.Writer) error {
					if len(bad) == 0 {
						_, errPrint := fmt.Fprintf(w, "%s: all checksums match\n", check)
						return errPrint
					}
					for _, name := range bad {
						fmt.Fprintf(w, "%s: FAILED\n", name)
					}
					return nil
				}); err != nil {
					return err
				}
				if len(bad) > 0 {
					return apperr.New(apperr.ExitFailure, apperr.CodeSignatureInvalid,
						fmt.Sprintf("%d checksums do not match", len(bad)), nil).WithDetail("files", bad)
				}
				return nil
			}

			files, err := a.artifactArgs(args)
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(filepath.Dir(files[0]), signing.ChecksumFile)
			}
			if err := signing.Checksums(out, files); err != nil {
				return apperr.Wrap(apperr.CodeCopyFailed, "write "+out, err)
			}
			res := checksumResult{File: out}
			return a.emit(cmd, res, func(w io.Writer) error {
				_, errPrint := fmt.Fprintf(w, "wrote %s (%d files)\n", out, len(files))
				return errPrint
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "checksum file (default: SHA256SUMS next to the first file)")
	cmd.Flags().StringVar(&check, "check", "", "verify the files listed in this SHA256SUMS")
	return cmd
}
