package utils

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// Payloads below this size are stored uncompressed; brotli overhead is
// not worth it.
const compressionFloor = 500

// CompressText brotli-compresses text. The second return value reports
// whether compression was applied.
func CompressText(text string) ([]byte, bool, error) {
	data := []byte(text)
	if len(data) < compressionFloor {
		return data, false, nil
	}

	var buf bytes.Buffer
	writer := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := writer.Write(data); err != nil {
		return nil, false, fmt.Errorf("failed to compress: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, false, fmt.Errorf("failed to close compressor: %w", err)
	}

	// Rarely, already-dense text inflates. Keep the original.
	if buf.Len() >= len(data) {
		return data, false, nil
	}
	return buf.Bytes(), true, nil
}

// DecompressText reverses CompressText given the compressed flag stored
// alongside the payload.
func DecompressText(data []byte, compressed bool) (string, error) {
	if !compressed {
		return string(data), nil
	}

	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	if err != nil {
		return "", fmt.Errorf("failed to decompress: %w", err)
	}
	return string(out), nil
}
