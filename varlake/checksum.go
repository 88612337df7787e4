package varlake

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

func (k ChecksumKind) valid() bool {
	switch k {
	case ChecksumSHA256, ChecksumMD5, ChecksumNone:
		return true
	}
	return false
}

func (k ChecksumKind) newHasher() hash.Hash {
	switch k {
	case ChecksumSHA256:
		return sha256.New()
	case ChecksumMD5:
		return md5.New()
	default:
		return nil
	}
}

// sum returns the hex digest of data, or "" when checksums are disabled.
func (k ChecksumKind) sum(data []byte) (string, error) {
	if !k.valid() {
		return "", fmt.Errorf("varlake: checksum kind %q: %w", k, ErrInvalidArgument)
	}
	h := k.newHasher()
	if h == nil {
		return "", nil
	}
	if _, err := h.Write(data); err != nil {
		return "", fmt.Errorf("varlake: compute checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// verify compares data against the recorded digest. An empty want (data
// written without checksums) always passes.
func (k ChecksumKind) verify(path string, data []byte, want string) error {
	if want == "" || k == ChecksumNone {
		return nil
	}
	got, err := k.sum(data)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("varlake: checksum mismatch for %s: %w", path, ErrInconsistentState)
	}
	return nil
}
