package utils

import (
	"strings"
	"testing"
)

func TestCompressTextRoundTrip(t *testing.T) {
	original := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 100)

	data, compressed, err := CompressText(original)
	if err != nil {
		t.Fatalf("CompressText returned error: %v", err)
	}
	if !compressed {
		t.Fatal("expected repetitive text above the floor to be compressed")
	}
	if len(data) >= len(original) {
		t.Fatalf("compressed size %d not smaller than original %d", len(data), len(original))
	}

	got, err := DecompressText(data, compressed)
	if err != nil {
		t.Fatalf("DecompressText returned error: %v", err)
	}
	if got != original {
		t.Fatal("round trip did not preserve content")
	}
}

func TestCompressTextSmallPayloadSkipped(t *testing.T) {
	data, compressed, err := CompressText("short note")
	if err != nil {
		t.Fatalf("CompressText returned error: %v", err)
	}
	if compressed {
		t.Fatal("payload under the floor should not be compressed")
	}
	if string(data) != "short note" {
		t.Fatalf("payload altered: %q", data)
	}
}

func TestDecompressTextUncompressedPassthrough(t *testing.T) {
	got, err := DecompressText([]byte("plain"), false)
	if err != nil {
		t.Fatalf("DecompressText returned error: %v", err)
	}
	if got != "plain" {
		t.Fatalf("got %q", got)
	}
}
