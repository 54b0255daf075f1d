package submission

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Kind
	}{
		{"pdf", []byte("%PDF-1.7\n..."), KindPDF},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00}, KindImage},
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0}, KindImage},
		{"gif", []byte("GIF89a"), KindImage},
		{"bmp", []byte("BM\x00\x00"), KindImage},
		{"tiff little endian", []byte{'I', 'I', 0x2a, 0x00, 0x08}, KindImage},
		{"tiff big endian", []byte{'M', 'M', 0x00, 0x2a, 0x08}, KindImage},
		{"webp", append([]byte("RIFF\x00\x00\x00\x00"), []byte("WEBPVP8 ")...), KindImage},
		{"riff but not webp", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), KindDocument},
		{"plain text", []byte("hello world"), KindDocument},
		{"empty", nil, KindDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectKind(tt.data); got != tt.want {
				t.Fatalf("DetectKind() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewFile(t *testing.T) {
	data := []byte("%PDF-1.4 stub")
	f := NewFile("essay.pdf", data)
	if f.ID == "" {
		t.Fatal("expected a minted id")
	}
	if f.Kind != KindPDF {
		t.Fatalf("kind = %s, want %s", f.Kind, KindPDF)
	}
	if f.Size != int64(len(data)) {
		t.Fatalf("size = %d, want %d", f.Size, len(data))
	}
	got, err := f.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("Bytes() did not return the payload")
	}
}

func TestNewFileFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.png")
	payload := append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, []byte("body")...)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	f, err := NewFileFromPath(path)
	if err != nil {
		t.Fatalf("NewFileFromPath() error = %v", err)
	}
	if f.Kind != KindImage {
		t.Fatalf("kind = %s, want %s", f.Kind, KindImage)
	}
	if f.Name != "scan.png" {
		t.Fatalf("name = %s, want scan.png", f.Name)
	}
	if f.Data != nil {
		t.Fatal("path-backed file should not hold the payload in memory")
	}
	got, err := f.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("Bytes() did not read the payload back")
	}
}

func TestFileBytesNoPayload(t *testing.T) {
	if _, err := (File{}).Bytes(); err == nil {
		t.Fatal("expected error for file without payload")
	}
}
