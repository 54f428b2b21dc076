// Package signing produces and checks the integrity material shipped next to
// release artifacts: armored detached OpenPGP signatures and a SHA256SUMS file.
package signing

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"

	apperr "github.com/relicrush/relicpack/internal/errors"
)

// SignatureExt is appended to an artifact path to name its signature.
const SignatureExt = ".asc"

// ChecksumFile is the conventional checksum list name.
const ChecksumFile = "SHA256SUMS"

// LoadSigner reads an armored private key and decrypts it with passphrase when
// it is encrypted.
func LoadSigner(keyFile string, passphrase []byte) (*openpgp.Entity, error) {
	f, err := os.Open(keyFile)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeConfigInvalid, "open signing key", err)
	}
	defer f.Close()

	keys, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeConfigInvalid, "read signing key", err)
	}
	var signer *openpgp.Entity
	for _, e := range keys {
		if e.PrivateKey != nil {
			signer = e
			break
		}
	}
	if signer == nil {
		return nil, apperr.Wrap(apperr.CodeConfigInvalid, "read signing key", errors.New("no private key in "+keyFile))
	}
	if signer.PrivateKey.Encrypted {
		if len(passphrase) == 0 {
			return nil, apperr.Wrap(apperr.CodeConfigInvalid, "signing key is encrypted", errors.New("passphrase required"))
		}
		if err := signer.PrivateKey.Decrypt(passphrase); err != nil {
			return nil, apperr.Wrap(apperr.CodeConfigInvalid, "decrypt signing key", err)
		}
	}
	for _, sub := range signer.Subkeys {
		if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
			if err := sub.PrivateKey.Decrypt(passphrase); err != nil {
				return nil, apperr.Wrap(apperr.CodeConfigInvalid, "decrypt signing subkey", err)
			}
		}
	}
	return signer, nil
}

// Sign writes an armored detached signature for artifact to artifact+".asc" and
// returns its path.
func Sign(signer *openpgp.Entity, artifact string) (string, error) {
	in, err := os.Open(artifact)
	if err != nil {
		return "", err
	}
	defer in.Close()

	var buf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&buf, signer, in, nil); err != nil {
		return "", fmt.Errorf("sign %s: %w", filepath.Base(artifact), err)
	}
	sigPath := artifact + SignatureExt
	if err := os.WriteFile(sigPath, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return sigPath, nil
}

// Verify checks sig against artifact with the armored public keys in pubKeyFile
// and returns the signer's primary identity name.
func Verify(pubKeyFile, artifact, sig string) (string, error) {
	kf, err := os.Open(pubKeyFile)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeConfigInvalid, "open public key", err)
	}
	defer kf.Close()
	keys, err := openpgp.ReadArmoredKeyRing(kf)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeConfigInvalid, "read public key", err)
	}

	af, err := os.Open(artifact)
	if err != nil {
		return "", err
	}
	defer af.Close()
	sf, err := os.Open(sig)
	if err != nil {
		return "", err
	}
	defer sf.Close()

	entity, err := openpgp.CheckArmoredDetachedSignature(keys, af, sf, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeSignatureInvalid, "signature does not match "+filepath.Base(artifact), err)
	}
	for name := range entity.Identities {
		return name, nil
	}
	return entity.PrimaryKey.KeyIdString(), nil
}

// FileSHA256 returns the hex SHA-256 digest of path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Checksums writes dst in sha256sum format ("<hex>  <name>") for files, sorted by
// base name.
func Checksums(dst string, files []string) error {
	sorted := append([]string(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return filepath.Base(sorted[i]) < filepath.Base(sorted[j]) })

	var b strings.Builder
	for _, f := range sorted {
		sum, err := FileSHA256(f)
		if err != nil {
			return fmt.Errorf("checksum %s: %w", f, err)
		}
		fmt.Fprintf(&b, "%s  %s\n", sum, filepath.Base(f))
	}
	return os.WriteFile(dst, []byte(b.String()), 0o644)
}

// VerifyChecksums re-hashes every file listed in sumsFile, resolved next to it,
// and returns the names that do not match.
func VerifyChecksums(sumsFile string) ([]string, error) {
	f, err := os.Open(sumsFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dir := filepath.Dir(sumsFile)
	var mismatched []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		want, name, ok := strings.Cut(line, "  ")
		if !ok {
			return nil, fmt.Errorf("malformed line %q", line)
		}
		name = strings.TrimPrefix(name, "*")
		got, err := FileSHA256(filepath.Join(dir, name))
		if err != nil || !strings.EqualFold(got, want) {
			mismatched = append(mismatched, name)
		}
	}
	return mismatched, sc.Err()
}
