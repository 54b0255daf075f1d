package submission

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an uploaded artifact by payload type.
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

// File represents one uploaded artifact handed to the pipeline. The pipeline
// only ever reads the payload; the caller keeps ownership of the original.
// Either Data or Path must be set.
type File struct {
	// ID uniquely identifies the upload. Minted by NewFile when absent.
	ID string `json:"id"`
	// Name is the original filename as supplied by the uploader.
	Name string `json:"name"`
	// Size is the payload size in bytes.
	Size int64 `json:"size"`
	// Kind declares the payload type. DetectKind fills it from magic bytes
	// when the caller has nothing better.
	Kind Kind `json:"kind"`
	// Path points at the stored payload on disk, if any.
	Path string `json:"path,omitempty"`
	// Data carries the payload in memory, if any. Takes precedence over Path.
	Data []byte `json:"data,omitempty"`
	// UploadedAt records when the artifact entered the system.
	UploadedAt time.Time `json:"uploadedAt"`
}

// NewFile wraps an in-memory payload as a File, minting an ID and sniffing
// the kind from the payload's magic bytes.
func NewFile(name string, data []byte) File {
	return File{
		ID:         uuid.NewString(),
		Name:       name,
		Size:       int64(len(data)),
		Kind:       DetectKind(data),
		Data:       data,
		UploadedAt: time.Now().UTC(),
	}
}

// NewFileFromPath wraps an on-disk payload as a File without loading it into
// memory. The kind is sniffed from the file header.
func NewFileFromPath(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	header := make([]byte, 512)
	n, err := f.Read(header)
	if err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	return File{
		ID:         uuid.NewString(),
		Name:       filepath.Base(path),
		Size:       info.Size(),
		Kind:       DetectKind(header[:n]),
		Path:       path,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// Bytes resolves the file payload, preferring in-memory data over the path.
func (f File) Bytes() ([]byte, error) {
	if f.Data != nil {
		return f.Data, nil
	}
	if f.Path == "" {
		return nil, errors.New("file has no payload")
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return data, nil
}

var (
	magicPDF  = []byte("%PDF-")
	magicPNG  = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	magicJPEG = []byte{0xff, 0xd8, 0xff}
	magicGIF  = []byte("GIF8")
	magicBMP  = []byte("BM")
	magicRIFF = []byte("RIFF")
	magicWEBP = []byte("WEBP")
	magicTIFF = [][]byte{{'I', 'I', 0x2a, 0x00}, {'M', 'M', 0x00, 0x2a}}
)

// DetectKind sniffs the payload kind from magic bytes. Unrecognized payloads
// fall into the document catch-all, which downstream components reject or
// route to format-specific handling.
func DetectKind(data []byte) Kind {
	switch {
	case bytes.HasPrefix(data, magicPDF):
		return KindPDF
	case bytes.HasPrefix(data, magicPNG),
		bytes.HasPrefix(data, magicJPEG),
		bytes.HasPrefix(data, magicGIF),
		bytes.HasPrefix(data, magicBMP):
		return KindImage
	case bytes.HasPrefix(data, magicRIFF) && len(data) >= 12 && bytes.Equal(data[8:12], magicWEBP):
		return KindImage
	}
	for _, m := range magicTIFF {
		if bytes.HasPrefix(data, m) {
			return KindImage
		}
	}
	return KindDocument
}
