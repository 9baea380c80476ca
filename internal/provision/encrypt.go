package provision

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/base64"
	"fmt"
)

// Encrypt encrypts a WiFi passphrase with the keydata-derived scheme the
// device firmware expects:
//
//   - salt: first 8 bytes of keydata, as raw text bytes
//   - IV:   first 16 bytes of keydata
//   - key:  MD5(keydata || salt), i.e. one round of the OpenSSL
//     EVP_BytesToKey derivation with MD5, with keydata as the password and
//     the self-derived salt
//   - AES-128-CBC with PKCS#7 padding, base64-encoded with no header bytes
//
// Everything is derived from keydata, so identical inputs always produce an
// identical string.
//
// When addLengths is true (the calling convention for ConnectHomeNetwork),
// two lowercase zero-padded hex bytes are appended: the base64 string's
// length, then the plaintext passphrase's length.
func Encrypt(keydata, passphrase string, addLengths bool) (string, error) {
	if len(keydata) < 16 {
		return "", fmt.Errorf("provision: keydata too short for IV derivation (%d bytes, need 16)", len(keydata))
	}

	salt := []byte(keydata[:8])
	iv := []byte(keydata[:16])

	sum := md5.Sum(append([]byte(keydata), salt...))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return "", fmt.Errorf("provision: %w", err)
	}

	padded := pkcs7Pad([]byte(passphrase), aes.BlockSize)
	encrypted := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(encrypted, padded)

	out := base64.StdEncoding.EncodeToString(encrypted)
	if addLengths {
		out += fmt.Sprintf("%02x%02x", len(out)&0xff, len(passphrase)&0xff)
	}
	return out, nil
}

// EncryptPassphrase derives keydata from the device identity and encrypts
// the passphrase in one step.
func EncryptPassphrase(passphrase, mac, serial string, method Method, addLengths bool) (string, error) {
	keydata, err := Keydata(method, mac, serial)
	if err != nil {
		return "", err
	}
	return Encrypt(keydata, passphrase, addLengths)
}

// pkcs7Pad pads data to a multiple of blockSize.
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}
