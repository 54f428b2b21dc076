package signing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/relicrush/relicpack/internal/errors"
)

func writeKeys(t *testing.T, passphrase []byte) (priv, pub string) {
	t.Helper()
	entity, err := openpgp.NewEntity("RelicRush Releases", "", "releases@example.com", nil)
	require.NoError(t, err)
	dir := t.TempDir()

	pub = filepath.Join(dir, "release.pub.asc")
	pf, err := os.Create(pub)
	require.NoError(t, err)
	w, err := armor.Encode(pf, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.Serialize(w))
	require.NoError(t, w.Close())
	require.NoError(t, pf.Close())

	if len(passphrase) > 0 {
		require.NoError(t, entity.PrivateKey.Encrypt(passphrase))
	}
	priv = filepath.Join(dir, "release.key.asc")
	kf, err := os.Create(priv)
	require.NoError(t, err)
	w, err = armor.Encode(kf, openpgp.PrivateKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.SerializePrivateWithoutSigning(w, nil))
	require.NoError(t, w.Close())
	require.NoError(t, kf.Close())
	return priv, pub
}

func artifact(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "WarframeRelicCompanion-Setup.exe")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestSignVerify(t *testing.T) {
	priv, pub := writeKeys(t, nil)
	signer, err := LoadSigner(priv, nil)
	require.NoError(t, err)

	a := artifact(t, "setup bytes")
	sig, err := Sign(signer, a)
	require.NoError(t, err)
	assert.Equal(t, a+".asc", sig)

	name, err := Verify(pub, a, sig)
	require.NoError(t, err)
	assert.Contains(t, name, "RelicRush Releases")

	require.NoError(t, os.WriteFile(a, []byte("tampered"), 0o644))
	_, err = Verify(pub, a, sig)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeSignatureInvalid))
}

func TestLoadSigner_Encrypted(t *testing.T) {
	priv, pub := writeKeys(t, []byte("hunter2"))

	_, err := LoadSigner(priv, nil)
	require.Error(t, err)
	_, err = LoadSigner(priv, []byte("wrong"))
	require.Error(t, err)

	signer, err := LoadSigner(priv, []byte("hunter2"))
	require.NoError(t, err)
	a := artifact(t, "zip bytes")
	sig, err := Sign(signer, a)
	require.NoError(t, err)
	_, err = Verify(pub, a, sig)
	require.NoError(t, err)
}

func TestChecksums(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "b.zip")
	b := filepath.Join(dir, "a.exe")
	require.NoError(t, os.WriteFile(a, []byte("zip"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte(""), 0o644))

	sums := filepath.Join(dir, ChecksumFile)
	require.NoError(t, Checksums(sums, []string{a, b}))
	data, err := os.ReadFile(sums)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855  a.exe", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "  b.zip"))

	bad, err := VerifyChecksums(sums)
	require.NoError(t, err)
	assert.Empty(t, bad)

	require.NoError(t, os.WriteFile(a, []byte("changed"), 0o644))
	bad, err = VerifyChecksums(sums)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.zip"}, bad)
}
