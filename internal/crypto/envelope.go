package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// ErrDecrypt is the single failure returned for any undecryptable envelope:
// malformed input, unknown version, or authentication tag mismatch. Callers
// must not be able to tell these apart.
var ErrDecrypt = errors.New("decryption failed")

// envelopeParams is the parameter set selected by an envelope's version byte.
type envelopeParams struct {
	ivLength      int
	saltLength    int
	tagLength     int
	keyLength     int
	keyIterations int
	keyDigest     func() hash.Hash
}

// envelopeVersions maps a version byte to its parameter set. The table is
// append-only: removing or changing an entry breaks every cookie issued
// under it. New parameter sets get a new version byte.
var envelopeVersions = map[byte]envelopeParams{
	1: {
		ivLength:      16,
		saltLength:    64,
		tagLength:     16,
		keyLength:     32,
		keyIterations: 1024,
		keyDigest:     sha512.New,
	},
}

// currentVersion is the highest registered version, used for all encryption.
var currentVersion = func() byte {
	var max byte
	for v := range envelopeVersions {
		if v > max {
			max = v
		}
	}
	return max
}()

// Engine provides versioned authenticated encryption of opaque strings.
//
// Every call derives a fresh AES key from the engine secret and a random
// salt via PBKDF2, then seals the plaintext with AES-GCM. The wire format
// is base64(version || iv || salt || tag || ciphertext); the version byte
// selects the parameter set, so envelopes produced under an older version
// stay decryptable after a new one is registered.
type Engine struct {
	secret []byte
}

// NewEngine creates an engine bound to a long-lived secret.
func NewEngine(secret string) *Engine {
	return &Engine{secret: []byte(secret)}
}

// Encrypt seals plaintext under the current envelope version.
func (e *Engine) Encrypt(plaintext string) (string, error) {
	params := envelopeVersions[currentVersion]

	iv := make([]byte, params.ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	salt := make([]byte, params.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	aead, err := e.aead(salt, params)
	if err != nil {
		return "", err
	}

	// Seal appends ciphertext||tag; the envelope stores tag||ciphertext.
	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-params.tagLength]
	tag := sealed[len(sealed)-params.tagLength:]

	envelope := make([]byte, 0, 1+len(iv)+len(salt)+len(tag)+len(ciphertext))
	envelope = append(envelope, currentVersion)
	envelope = append(envelope, iv...)
	envelope = append(envelope, salt...)
	envelope = append(envelope, tag...)
	envelope = append(envelope, ciphertext...)

	return base64.StdEncoding.EncodeToString(envelope), nil
}

// Decrypt opens an envelope produced by Encrypt under any registered
// version. All failures collapse into ErrDecrypt.
func (e *Engine) Decrypt(envelope string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(raw) < 1 {
		return "", ErrDecrypt
	}

	params, ok := envelopeVersions[raw[0]]
	if !ok {
		return "", ErrDecrypt
	}
	if len(raw) < 1+params.ivLength+params.saltLength+params.tagLength {
		return "", ErrDecrypt
	}

	iv := raw[1 : 1+params.ivLength]
	salt := raw[1+params.ivLength : 1+params.ivLength+params.saltLength]
	tag := raw[1+params.ivLength+params.saltLength : 1+params.ivLength+params.saltLength+params.tagLength]
	ciphertext := raw[1+params.ivLength+params.saltLength+params.tagLength:]

	aead, err := e.aead(salt, params)
	if err != nil {
		return "", ErrDecrypt
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

// aead builds the AES-GCM cipher for one call, deriving the key from the
// engine secret and the per-call salt.
func (e *Engine) aead(salt []byte, params envelopeParams) (cipher.AEAD, error) {
	key := pbkdf2.Key(e.secret, salt, params.keyIterations, params.keyLength, params.keyDigest)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, params.ivLength)
}
