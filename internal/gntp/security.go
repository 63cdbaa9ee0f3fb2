package gntp

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/bark-labs/gntp-notify/internal/crypto"
)

// HashAlgorithm names the key hash used to authenticate a message.
type HashAlgorithm string

const (
	HashNone   HashAlgorithm = ""
	HashMD5    HashAlgorithm = "MD5"
	HashSHA1   HashAlgorithm = "SHA1"
	HashSHA256 HashAlgorithm = "SHA256"
	HashSHA512 HashAlgorithm = "SHA512"
)

// EncryptionAlgorithm names the cipher applied to the message body.
type EncryptionAlgorithm string

const (
	EncryptionNone      EncryptionAlgorithm = "NONE"
	EncryptionAES       EncryptionAlgorithm = "AES"
	EncryptionDES       EncryptionAlgorithm = "DES"
	EncryptionTripleDES EncryptionAlgorithm = "3DES"
)

const saltLen = 16

func (h HashAlgorithm) newHash() (hash.Hash, error) {
	switch HashAlgorithm(strings.ToUpper(string(h))) {
	case HashMD5:
		return md5.New(), nil
	case HashSHA1:
		return sha1.New(), nil
	case HashSHA256:
		return sha256.New(), nil
	case HashSHA512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedHash, string(h))
}

func (h HashAlgorithm) sum(b []byte) ([]byte, error) {
	hh, err := h.newHash()
	if err != nil {
		return nil, err
	}
	hh.Write(b)
	return hh.Sum(nil), nil
}

// Size returns the digest length in bytes, or 0 for unknown algorithms.
func (h HashAlgorithm) Size() int {
	hh, err := h.newHash()
	if err != nil {
		return 0
	}
	return hh.Size()
}

func (e EncryptionAlgorithm) normalized() EncryptionAlgorithm {
	if e == "" {
		return EncryptionNone
	}
	return EncryptionAlgorithm(strings.ToUpper(string(e)))
}

func (e EncryptionAlgorithm) cipher() (crypto.Cipher, error) {
	switch e.normalized() {
	case EncryptionAES:
		return crypto.CipherAES, nil
	case EncryptionDES:
		return crypto.CipherDES, nil
	case EncryptionTripleDES:
		return crypto.CipherTripleDES, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedEncryption, string(e))
}

// Security configures message authentication and encryption. The zero value
// sends plain, unauthenticated messages.
type Security struct {
	Password   string
	Hash       HashAlgorithm
	Encryption EncryptionAlgorithm
}

// Enabled reports whether messages carry a key hash.
func (s Security) Enabled() bool { return s.Password != "" }

func (s Security) hash() HashAlgorithm {
	if s.Hash == HashNone {
		return HashSHA256
	}
	return HashAlgorithm(strings.ToUpper(string(s.Hash)))
}

// Validate checks that the hash and cipher can be combined.
func (s Security) Validate() error {
	enc := s.Encryption.normalized()
	if !s.Enabled() {
		if enc != EncryptionNone {
			return ErrPasswordRequired
		}
		return nil
	}
	size := s.hash().Size()
	if size == 0 {
		return fmt.Errorf("%w: %q", ErrUnsupportedHash, string(s.Hash))
	}
	if enc == EncryptionNone {
		return nil
	}
	c, err := enc.cipher()
	if err != nil {
		return err
	}
	if size < c.KeySize() {
		return fmt.Errorf("%w: %s yields %d bytes, %s needs %d", ErrKeyTooShort, s.hash(), size, enc, c.KeySize())
	}
	return nil
}

// keyMaterial is the per-message key derived from the password and a salt.
type keyMaterial struct {
	hash    HashAlgorithm
	key     []byte
	keyHash []byte
	salt    []byte
}

func deriveKey(h HashAlgorithm, password string, salt []byte) (keyMaterial, error) {
	basis := append([]byte(password), salt...)
	key, err := h.sum(basis)
	if err != nil {
		return keyMaterial{}, err
	}
	keyHash, err := h.sum(key)
	if err != nil {
		return keyMaterial{}, err
	}
	return keyMaterial{hash: h, key: key, keyHash: keyHash, salt: salt}, nil
}

func newKeyMaterial(s Security, rnd io.Reader) (keyMaterial, error) {
	salt, err := crypto.RandomBytes(rnd, saltLen)
	if err != nil {
		return keyMaterial{}, err
	}
	return deriveKey(s.hash(), s.Password, salt)
}

// token renders the key hash part of the info line.
func (k keyMaterial) token() string {
	return fmt.Sprintf("%s:%s.%s", k.hash,
		strings.ToUpper(hex.EncodeToString(k.keyHash)),
		strings.ToUpper(hex.EncodeToString(k.salt)))
}

func (k keyMaterial) encrypt(enc EncryptionAlgorithm, iv, plaintext []byte) ([]byte, error) {
	c, err := enc.cipher()
	if err != nil {
		return nil, err
	}
	return crypto.Encrypt(c, k.key[:c.KeySize()], iv, plaintext)
}

func (k keyMaterial) decrypt(enc EncryptionAlgorithm, iv, ciphertext []byte) ([]byte, error) {
	c, err := enc.cipher()
	if err != nil {
		return nil, err
	}
	if len(k.key) < c.KeySize() {
		return nil, ErrKeyTooShort
	}
	return crypto.Decrypt(c, k.key[:c.KeySize()], iv, ciphertext)
}

// parseKeyToken splits "SHA256:KEYHASH.SALT".
func parseKeyToken(tok string) (HashAlgorithm, []byte, []byte, error) {
	alg, rest, ok := strings.Cut(tok, ":")
	if !ok {
		return "", nil, nil, protocolErrorf("malformed key hash %q", tok)
	}
	hashHex, saltHex, ok := strings.Cut(rest, ".")
	if !ok {
		return "", nil, nil, protocolErrorf("key hash %q has no salt", tok)
	}
	h := HashAlgorithm(strings.ToUpper(alg))
	if h.Size() == 0 {
		return "", nil, nil, &ProtocolError{Reason: "key hash", Err: fmt.Errorf("%w: %q", ErrUnsupportedHash, alg)}
	}
	keyHash, err := hex.DecodeString(hashHex)
	if err != nil {
		return "", nil, nil, &ProtocolError{Reason: "key hash", Err: err}
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", nil, nil, &ProtocolError{Reason: "salt", Err: err}
	}
	return h, keyHash, salt, nil
}

// verifyKey derives the key for a received message and checks its hash.
func verifyKey(password string, h HashAlgorithm, keyHash, salt []byte) (keyMaterial, error) {
	km, err := deriveKey(h, password, salt)
	if err != nil {
		return keyMaterial{}, err
	}
	if !bytes.Equal(km.keyHash, keyHash) {
		return keyMaterial{}, protocolErrorf("key hash mismatch")
	}
	return km, nil
}
