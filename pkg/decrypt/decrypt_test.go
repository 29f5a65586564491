package decrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecryptOnceRoundTrip(t *testing.T) {
	plaintexts := []string{
		"",
		"a",
		"exactly sixteen!",
		"第一章 开始\n<p>这是一段正文。</p>\n<img src=\"http://example.com/a.png\" alt=\"图\">",
		strings.Repeat("long body ", 200),
	}
	for _, p := range plaintexts {
		ct, err := Encrypt([]byte(p), "passphrase")
		require.NoError(t, err)

		got, err := DecryptOnce(ct, "passphrase")
		require.NoError(t, err)
		assert.Equal(t, p, string(got))
	}
}

func TestDecryptOnceDefaultKey(t *testing.T) {
	ct, err := Encrypt([]byte("hello"), DefaultKey)
	require.NoError(t, err)

	got, err := DecryptOnce(ct, DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestDecryptOnceIgnoresWhitespace(t *testing.T) {
	ct, err := Encrypt([]byte(strings.Repeat("x", 100)), "k")
	require.NoError(t, err)

	wrapped := ct[:20] + "\n" + ct[20:40] + "\r\n " + ct[40:]
	got, err := DecryptOnce(wrapped, "k")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 100), string(got))
}

func TestDecryptOnceErrors(t *testing.T) {
	_, err := DecryptOnce("!!!not base64!!!", "k")
	assert.Error(t, err)

	_, err = DecryptOnce("", "k")
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("12345"))
	_, err = DecryptOnce(short, "k")
	assert.Error(t, err)
}

// encryptRaw encrypts whole blocks without adding any padding.
func encryptRaw(t *testing.T, plain []byte, passphrase string) string {
	t.Helper()
	require.Zero(t, len(plain)%aes.BlockSize)
	block, err := newCipher(passphrase)
	require.NoError(t, err)
	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(out, plain)
	return base64.StdEncoding.EncodeToString(out)
}

func TestDecryptOncePadding(t *testing.T) {
	// the last byte is stripped as a length even when the pad bytes differ
	plain := []byte("0123456789abXYZ\x05")
	got, err := DecryptOnce(encryptRaw(t, plain, "k"), "k")
	require.NoError(t, err)
	assert.Equal(t, "0123456789a", string(got))

	// a length covering the whole buffer leaves nothing
	plain = []byte(strings.Repeat("\x10", 16))
	got, err = DecryptOnce(encryptRaw(t, plain, "k"), "k")
	require.NoError(t, err)
	assert.Empty(t, got)

	// a length past the buffer is rejected
	plain = []byte("0123456789abcde\xff")
	_, err = DecryptOnce(encryptRaw(t, plain, "k"), "k")
	assert.ErrorContains(t, err, "invalid padding length 255")
}
