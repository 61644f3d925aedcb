package digest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// ChunkSize is the length of the head and tail windows of a partial fingerprint.
	ChunkSize = 4096

	// TailThreshold is the size a file must exceed before its tail is read.
	TailThreshold = 2 * ChunkSize

	fullBufferSize = 256 * 1024
)

// ErrSizeChanged is returned when a file no longer has the size it was bucketed with.
var ErrSizeChanged = errors.New("file size changed since stat")

// Window describes which bytes of a file of the given size enter the partial fingerprint.
// The head is always min(size, ChunkSize) bytes. A tail of ChunkSize bytes starting at
// size-ChunkSize is added only when size > TailThreshold.
func Window(size uint64) (headLen int64, tailOffset int64, hasTail bool) {
	headLen = ChunkSize
	if size < ChunkSize {
		headLen = int64(size)
	}
	if size > TailThreshold {
		return headLen, int64(size) - ChunkSize, true
	}
	return headLen, 0, false
}

// Partial computes the partial fingerprint of the file at path, which is expected
// to be size bytes long.
func Partial(path string, size uint64, alg *Algorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	headLen, tailOffset, hasTail := Window(size)
	buf := make([]byte, ChunkSize)
	hasher := alg.New()

	if _, err := io.ReadFull(f, buf[:headLen]); err != nil {
		return "", fmt.Errorf("failed to read head of %s: %w", path, sizeErr(err))
	}
	hasher.Write(buf[:headLen])

	if hasTail {
		off, err := f.Seek(-ChunkSize, io.SeekEnd)
		if err != nil {
			return "", fmt.Errorf("failed to seek in %s: %w", path, err)
		}
		if off != tailOffset {
			return "", fmt.Errorf("%s: tail at %d, expected %d: %w", path, off, tailOffset, ErrSizeChanged)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return "", fmt.Errorf("failed to read tail of %s: %w", path, sizeErr(err))
		}
		hasher.Write(buf)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Full computes the digest of the entire content of the file at path. The number
// of bytes read must equal size.
func Full(path string, size uint64, alg *Algorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	hasher := alg.New()
	n, err := io.CopyBuffer(hasher, f, make([]byte, fullBufferSize))
	if err != nil {
		return "", fmt.Errorf("failed to hash file %s: %w", path, err)
	}
	if uint64(n) != size {
		return "", fmt.Errorf("%s: read %d bytes, expected %d: %w", path, n, size, ErrSizeChanged)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func sizeErr(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrSizeChanged, err)
	}
	return err
}
