// Package stdlib registers the host-side standard library primitives as
// extern functions bound through the foreign-call bridge (spec.md 4.G).
// It is the rehomed, bridge-mediated descendant of smog's
// pkg/vm/primitives.go, which called these the same way but through
// direct Go method dispatch on interface{} values rather than through a
// Callable/ExternFunction boundary.
package stdlib

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/kristofer/corevm/internal/vm"
)

// RegisterCrypto binds the crypto primitives as globals on t: aesEncrypt,
// aesDecrypt, md5Sum, sha256Sum, sha512Sum, randomBytes.
func RegisterCrypto(t *vm.Thread) error {
	regs := []struct {
		name string
		args uint32
		fn   func(*vm.Thread, vm.CallContextArgs)
	}{
		{"aesEncrypt", 2, aesEncrypt},
		{"aesDecrypt", 2, aesDecrypt},
		{"md5Sum", 1, md5Sum},
		{"sha256Sum", 1, sha256Sum},
		{"sha512Sum", 1, sha512Sum},
		{"randomBytes", 1, randomBytes},
	}
	for _, r := range regs {
		fn := r.fn
		if err := t.RegisterExternFunction(r.name, r.args, vm.Bridge(t, fn)); err != nil {
			return fmt.Errorf("registering %s: %w", r.name, err)
		}
	}
	return nil
}

// aesEncrypt encrypts args[0] (plaintext) with args[1] (a 32-byte key),
// returning base64(iv || ciphertext) — same padding/IV scheme as smog's
// aesEncrypt.
func aesEncrypt(t *vm.Thread, a vm.CallContextArgs) {
	data, key, err := a.TwoStrings()
	if err != nil {
		a.Fail(err)
		return
	}
	if len(key) != 32 {
		a.Fail(fmt.Errorf("AES key must be 32 bytes, got %d", len(key)))
		return
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		a.Fail(fmt.Errorf("failed to create cipher: %w", err))
		return
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		a.Fail(fmt.Errorf("failed to generate IV: %w", err))
		return
	}
	plaintext := []byte(data)
	padding := aes.BlockSize - (len(plaintext) % aes.BlockSize)
	padded := make([]byte, len(plaintext)+padding)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	a.OkString(base64.StdEncoding.EncodeToString(append(iv, ciphertext...)))
}

// aesDecrypt reverses aesEncrypt.
func aesDecrypt(t *vm.Thread, a vm.CallContextArgs) {
	data, key, err := a.TwoStrings()
	if err != nil {
		a.Fail(err)
		return
	}
	if len(key) != 32 {
		a.Fail(fmt.Errorf("AES key must be 32 bytes, got %d", len(key)))
		return
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		a.Fail(fmt.Errorf("failed to decode base64: %w", err))
		return
	}
	if len(raw) < aes.BlockSize {
		a.Fail(fmt.Errorf("ciphertext too short"))
		return
	}
	iv, ciphertext := raw[:aes.BlockSize], raw[aes.BlockSize:]
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		a.Fail(fmt.Errorf("failed to create cipher: %w", err))
		return
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		a.Fail(fmt.Errorf("ciphertext is not a multiple of the block size"))
		return
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	if n := len(plain); n > 0 {
		padding := int(plain[n-1])
		if padding > 0 && padding <= aes.BlockSize {
			plain = bytes.TrimSuffix(plain, bytes.Repeat([]byte{byte(padding)}, padding))
		}
	}
	a.OkString(string(plain))
}

func md5Sum(t *vm.Thread, a vm.CallContextArgs) {
	s, err := a.OneString()
	if err != nil {
		a.Fail(err)
		return
	}
	sum := md5.Sum([]byte(s))
	a.OkString(hex.EncodeToString(sum[:]))
}

func sha256Sum(t *vm.Thread, a vm.CallContextArgs) {
	s, err := a.OneString()
	if err != nil {
		a.Fail(err)
		return
	}
	sum := sha256.Sum256([]byte(s))
	a.OkString(hex.EncodeToString(sum[:]))
}

func sha512Sum(t *vm.Thread, a vm.CallContextArgs) {
	s, err := a.OneString()
	if err != nil {
		a.Fail(err)
		return
	}
	sum := sha512.Sum512([]byte(s))
	a.OkString(hex.EncodeToString(sum[:]))
}

// randomBytes returns n cryptographically random bytes, base64-encoded.
func randomBytes(t *vm.Thread, a vm.CallContextArgs) {
	n, err := a.OneInt()
	if err != nil {
		a.Fail(err)
		return
	}
	if n < 0 || n > 1<<20 {
		a.Fail(fmt.Errorf("randomBytes: invalid length %d", n))
		return
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		a.Fail(fmt.Errorf("failed to read random bytes: %w", err))
		return
	}
	a.OkString(base64.StdEncoding.EncodeToString(buf))
}
