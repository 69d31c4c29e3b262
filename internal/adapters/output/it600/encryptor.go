package it600

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"errors"
	"strings"
)

var errBadCiphertext = errors.New("it600: malformed ciphertext")

// Fixed initialisation vector used by the gateway firmware.
var iv = []byte{0x88, 0xa6, 0xb0, 0x79, 0x5d, 0x85, 0xdb, 0xfc, 0xe6, 0xe0, 0xb3, 0xe9, 0xa6, 0x29, 0x65, 0x4b}

// Encryptor implements the gateway's AES-256-CBC envelope. The key is the
// MD5 digest of "Salus-<euid>" followed by 16 zero bytes.
type Encryptor struct {
	block cipher.Block
}

func NewEncryptor(euid string) *Encryptor {
	sum := md5.Sum([]byte("Salus-" + strings.ToLower(euid)))
	key := make([]byte, 32)
	copy(key, sum[:])
	// a 32 byte key never fails
	block, _ := aes.NewCipher(key)
	return &Encryptor{block: block}
}

func (e *Encryptor) Encrypt(plain []byte) []byte {
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(e.block, iv).CryptBlocks(out, padded)
	return out
}

func (e *Encryptor) Decrypt(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, errBadCiphertext
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(e.block, iv).CryptBlocks(out, data)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errBadCiphertext
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errBadCiphertext
		}
	}
	return b[:len(b)-n], nil
}
