// Package crypto collects the AES and hashing primitives the vmess
// handshake and chunk cipher build on top of.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
)

// NewAesDecryptionStream creates an AES-CFB decryption stream.
// Caller must ensure the length of key and IV is either 16, 24 or 32 bytes.
func NewAesDecryptionStream(key []byte, iv []byte) cipher.Stream {
	return newAesStreamMethod(key, iv, cipher.NewCFBDecrypter)
}

// NewAesEncryptionStream creates an AES-CFB encryption stream.
// Caller must ensure the length of key and IV is either 16, 24 or 32 bytes.
func NewAesEncryptionStream(key []byte, iv []byte) cipher.Stream {
	return newAesStreamMethod(key, iv, cipher.NewCFBEncrypter)
}

func newAesStreamMethod(key []byte, iv []byte, f func(cipher.Block, []byte) cipher.Stream) cipher.Stream {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	return f(block, iv)
}

// CFBEncrypt encrypts data in place using AES-128-CFB under key/iv,
// as the legacy handshake does to its request header.
func CFBEncrypt(key, iv, data []byte) {
	NewAesEncryptionStream(key, iv).XORKeyStream(data, data)
}

// CFBDecrypt decrypts data in place using AES-128-CFB under key/iv, as
// the legacy handshake does to its response header.
func CFBDecrypt(key, iv, data []byte) {
	NewAesDecryptionStream(key, iv).XORKeyStream(data, data)
}

// NewAesGcm creates an AEAD cipher based on AES-GCM.
func NewAesGcm(key []byte) cipher.AEAD {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		panic(err)
	}
	return aead
}

// GCMSeal seals plaintext under key/nonce, appending the result to dst.
// key must be 16 bytes (AES-128-GCM) and nonce 12 bytes.
func GCMSeal(dst, key, nonce, plaintext, additionalData []byte) []byte {
	return NewAesGcm(key).Seal(dst, nonce, plaintext, additionalData)
}

// GCMOpen authenticates and decrypts ciphertext under key/nonce,
// appending the result to dst.
func GCMOpen(dst, key, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	return NewAesGcm(key).Open(dst, nonce, ciphertext, additionalData)
}

// ECBEncryptBlock encrypts a single 16-byte block in place using
// AES-128 in ECB mode, used only to obscure the auth_id block in a
// connection's AEAD handshake envelope (no chaining, no IV).
func ECBEncryptBlock(key, block []byte) {
	c, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	c.Encrypt(block, block)
}
