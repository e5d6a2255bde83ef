package crypto

import (
	"crypto/aes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCFBRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
		iv[i] = byte(i * 2)
	}
	plaintext := []byte("vmess chunk payload bytes")
	data := append([]byte(nil), plaintext...)

	CFBEncrypt(key, iv, data)
	require.NotEqual(t, plaintext, data)

	CFBDecrypt(key, iv, data)
	require.Equal(t, plaintext, data)
}

func TestGCMSealOpenRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	nonce := make([]byte, 12)
	plaintext := []byte("seal me")
	ad := []byte("auth")

	sealed := GCMSeal(nil, key, nonce, plaintext, ad)
	require.NotEqual(t, plaintext, sealed)

	opened, err := GCMOpen(nil, key, nonce, sealed, ad)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestGCMOpenRejectsWrongAdditionalData(t *testing.T) {
	key := make([]byte, 16)
	nonce := make([]byte, 12)
	sealed := GCMSeal(nil, key, nonce, []byte("hello"), []byte("auth-a"))

	_, err := GCMOpen(nil, key, nonce, sealed, []byte("auth-b"))
	require.Error(t, err)
}

func TestECBEncryptBlockIsInvertible(t *testing.T) {
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i + 1)
	}
	block := []byte("0123456789abcdef")
	original := append([]byte(nil), block...)

	ECBEncryptBlock(key, block)
	require.NotEqual(t, original, block)

	c, err := aes.NewCipher(key)
	require.NoError(t, err)
	c.Decrypt(block, block)
	require.Equal(t, original, block)
}
