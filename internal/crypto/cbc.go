package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()-_=+[]{}|;:,.<>?")

// Cipher names a block cipher supported for CBC encryption.
type Cipher string

const (
	CipherAES       Cipher = "AES"
	CipherDES       Cipher = "DES"
	CipherTripleDES Cipher = "3DES"
)

var (
	ErrUnknownCipher = errors.New("crypto: unknown cipher")
	ErrBadPadding    = errors.New("crypto: invalid padding")
)

// KeySize returns the key length in bytes used for c.
func (c Cipher) KeySize() int {
	switch c {
	case CipherAES, CipherTripleDES:
		return 24
	case CipherDES:
		return 8
	}
	return 0
}

// BlockSize returns the block (and IV) length in bytes for c.
func (c Cipher) BlockSize() int {
	switch c {
	case CipherAES:
		return aes.BlockSize
	case CipherDES, CipherTripleDES:
		return des.BlockSize
	}
	return 0
}

func (c Cipher) block(key []byte) (cipher.Block, error) {
	if size := c.KeySize(); size == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, string(c))
	} else if len(key) != size {
		return nil, fmt.Errorf("crypto: %s key must be %d bytes, got %d", c, size, len(key))
	}
	switch c {
	case CipherAES:
		return aes.NewCipher(key)
	case CipherDES:
		return des.NewCipher(key)
	default:
		return des.NewTripleDESCipher(key)
	}
}

// GenerateString returns a random string of length n drawn from a printable alphabet.
func GenerateString(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("length must be positive")
	}
	b := make([]rune, n)
	buf := make([]byte, len(b))
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(buf[i])%len(letters)]
	}
	return string(b), nil
}

// RandomBytes reads n bytes from r, or from crypto/rand when r is nil.
func RandomBytes(r io.Reader, n int) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Encrypt encrypts plaintext in CBC mode with PKCS7 padding.
func Encrypt(c Cipher, key, iv, plaintext []byte) ([]byte, error) {
	block, err := c.block(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("crypto: iv must be %d bytes", block.BlockSize())
	}
	padded := pkcs7Pad(append([]byte(nil), plaintext...), block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// Decrypt reverses Encrypt.
func Decrypt(c Cipher, key, iv, ciphertext []byte) ([]byte, error) {
	block, err := c.block(key)
	if err != nil {
		return nil, err
	}
	bs := block.BlockSize()
	if len(iv) != bs {
		return nil, fmt.Errorf("crypto: iv must be %d bytes", bs)
	}
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return nil, fmt.Errorf("crypto: ciphertext is not a multiple of the block size")
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext, bs)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padtext := bytes.Repeat([]byte{byte(padding)}, padding)
	return append(data, padtext...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrBadPadding
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, ErrBadPadding
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, ErrBadPadding
		}
	}
	return data[:len(data)-padding], nil
}
