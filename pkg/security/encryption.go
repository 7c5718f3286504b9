package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"

	apperrors "github.com/umedi/intake-api/pkg/errors"
)

var (
	ErrInvalidKeySize = errors.New("invalid key size")
	ErrDecryption     = errors.New("decryption failed")
)

// Encryptor provides a generic interface for field encryption/decryption
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

// FieldCodec encrypts personal fields into printable tokens.
//
// The cipher is AES-CBC with an all-zero IV and PKCS#7 padding and the key is
// zero-padded to the next AES key size. The same plaintext always yields the
// same token, and tokens match pgcrypto's
// encode(encrypt(convert_to(p, 'utf8'), key, 'aes'), 'base64').
type FieldCodec struct {
	block cipher.Block
}

var _ Encryptor = (*FieldCodec)(nil)

// NewFieldCodec creates a codec for a key of 1 to 32 bytes
func NewFieldCodec(key []byte) (*FieldCodec, error) {
	padded, err := padKey(key)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(padded)
	if err != nil {
		return nil, fmt.Errorf("field codec: create cipher: %w", err)
	}

	return &FieldCodec{block: block}, nil
}

func padKey(key []byte) ([]byte, error) {
	var size int
	switch n := len(key); {
	case n == 0:
		return nil, ErrInvalidKeySize
	case n <= 16:
		size = 16
	case n <= 24:
		size = 24
	case n <= 32:
		size = 32
	default:
		return nil, ErrInvalidKeySize
	}

	padded := make([]byte, size)
	copy(padded, key)
	return padded, nil
}

// Encrypt returns the base64 token for plaintext
func (c *FieldCodec) Encrypt(plaintext string) (string, error) {
	data := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(data))

	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, data)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Malformed tokens and wrong keys yield a decode error.
func (c *FieldCodec) Decrypt(token string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", apperrors.Decode("malformed field token", err)
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", apperrors.Decode("malformed field token", ErrDecryption)
	}

	out := make([]byte, len(data))
	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, data)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", apperrors.Decode("field token does not decrypt", err)
	}
	return string(plain), nil
}

// EncryptOptional encrypts *plaintext when set
func (c *FieldCodec) EncryptOptional(plaintext *string) (*string, error) {
	if plaintext == nil {
		return nil, nil
	}
	token, err := c.Encrypt(*plaintext)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// DecryptOptional decrypts *token when set
func (c *FieldCodec) DecryptOptional(token *string) (*string, error) {
	if token == nil {
		return nil, nil
	}
	plain, err := c.Decrypt(*token)
	if err != nil {
		return nil, err
	}
	return &plain, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrDecryption
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrDecryption
		}
	}
	return data[:len(data)-n], nil
}
