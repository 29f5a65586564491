// Package decrypt recovers chapter plaintext from the reader's ciphertext.
//
// Chapter bodies are AES-256-CBC encrypted with an all-zero IV. The cipher key
// is the SHA-256 digest of a passphrase, and the ciphertext is stored base64
// encoded with PKCS7 padding.
package decrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// DefaultKey is the reader's built-in passphrase for payloads that are not
// bound to a chapter key.
const DefaultKey = "zG2nSeEfSHfvTCHy5LCcqtBbQehKNLXn"

var errEmptyCiphertext = errors.New("empty ciphertext")

func newCipher(passphrase string) (cipher.Block, error) {
	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("error creating cipher: %w", err)
	}
	return block, nil
}

// DecryptOnce decrypts a base64 ciphertext with a single passphrase. The
// result is not checked for being valid text.
func DecryptOnce(ciphertext, passphrase string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, ciphertext))
	if err != nil {
		return nil, fmt.Errorf("error decoding ciphertext: %w", err)
	}
	if len(data) == 0 {
		return nil, errEmptyCiphertext
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(data))
	}

	block, err := newCipher(passphrase)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, aes.BlockSize)
	res := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(res, data)

	paddingLen := int(res[len(res)-1])
	if paddingLen > len(res) {
		return nil, fmt.Errorf("invalid padding length %d (data length is %d)", paddingLen, len(res))
	}
	return res[:len(res)-paddingLen], nil
}

// Encrypt is the inverse of DecryptOnce.
func Encrypt(plaintext []byte, passphrase string) (string, error) {
	block, err := newCipher(passphrase)
	if err != nil {
		return "", err
	}

	paddingLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	data := append(bytes.Clone(plaintext), bytes.Repeat([]byte{byte(paddingLen)}, paddingLen)...)

	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(data, data)

	return base64.StdEncoding.EncodeToString(data), nil
}
