// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/jeranaias/confidant/internal/util"
)

// sealedPrefix marks a sealed credentials file (format: SEALED:base64(nonce|box)).
const sealedPrefix = "SEALED:"

const (
	keySize   = 32
	nonceSize = 24
)

var (
	// ErrKeyMissing means the file is sealed but the key file is gone.
	ErrKeyMissing = errors.New("credentials key not found")

	// ErrUnsealFailed means the sealed file was tampered with or the key changed.
	ErrUnsealFailed = errors.New("failed to unseal credentials")
)

func isSealed(data []byte) bool {
	return bytes.HasPrefix(data, []byte(sealedPrefix))
}

func seal(plain []byte, key *[keySize]byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], plain, &nonce, key)

	out := make([]byte, len(sealedPrefix)+base64.StdEncoding.EncodedLen(len(box)))
	copy(out, sealedPrefix)
	base64.StdEncoding.Encode(out[len(sealedPrefix):], box)
	return out, nil
}

func open(data []byte, key *[keySize]byte) ([]byte, error) {
	encoded := bytes.TrimSpace(data[len(sealedPrefix):])
	box := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(box, encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsealFailed, err)
	}
	box = box[:n]
	if len(box) < nonceSize+secretbox.Overhead {
		return nil, ErrUnsealFailed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrUnsealFailed
	}
	return plain, nil
}

func loadKey(path string) (*[keySize]byte, error) {
	raw, err := util.ReadFileIfExists(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials key: %w", err)
	}
	if raw == nil {
		return nil, ErrKeyMissing
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("credentials key has %d bytes, want %d", len(raw), keySize)
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}

func loadOrCreateKey(path string) (*[keySize]byte, error) {
	key, err := loadKey(path)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, ErrKeyMissing) {
		return nil, err
	}

	key = new([keySize]byte)
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return nil, fmt.Errorf("failed to generate credentials key: %w", err)
	}
	if err := util.AtomicWriteFile(path, key[:], 0600); err != nil {
		return nil, fmt.Errorf("failed to store credentials key: %w", err)
	}
	return key, nil
}

// removeKey deletes the key file. A missing file is not an error.
func removeKey(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
