package media

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/wailsapp/mimetype"

	"upload-ai/internal/domain"
)

// sniffLen is how many leading bytes are inspected for content detection.
const sniffLen = 3072

var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
}

// SourceMedia is one user-selected video file.
type SourceMedia struct {
	Name      string
	MediaType string
	Size      int64

	path string
	data []byte
}

// NewSource wraps an in-memory payload, rejecting non-video media types.
func NewSource(name, mediaType string, data []byte) (*SourceMedia, error) {
	if err := ValidateMediaType(mediaType); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrUnsupportedMediaType, name)
	}

	return &SourceMedia{
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		data:      data,
	}, nil
}

// Open inspects a file on disk and returns it as a video source.
// The declared type comes from the extension and is cross-checked against
// the leading bytes of the file.
func Open(path string) (*SourceMedia, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open source media: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open source media: %s is a directory", path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrUnsupportedMediaType, filepath.Base(path))
	}

	declared := TypeByExtension(filepath.Ext(path))
	if err := ValidateMediaType(declared); err != nil {
		return nil, err
	}

	head, err := readHead(path)
	if err != nil {
		return nil, fmt.Errorf("open source media: %w", err)
	}
	if detected := mimetype.Detect(head); !sniffedAsVideo(detected) {
		return nil, fmt.Errorf("%w: %s content is %s", domain.ErrUnsupportedMediaType, filepath.Base(path), detected.String())
	}

	return &SourceMedia{
		Name:      filepath.Base(path),
		MediaType: declared,
		Size:      info.Size(),
		path:      path,
	}, nil
}

// Load materializes the full payload in memory.
func (s *SourceMedia) Load() ([]byte, error) {
	if s.data != nil {
		return s.data, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read source media %s: %w", s.Name, err)
	}
	return data, nil
}

// open returns a seekable reader over the payload for preview streaming.
func (s *SourceMedia) open() (io.ReadSeekCloser, error) {
	if s.data != nil {
		return nopSeekCloser{bytes.NewReader(s.data)}, nil
	}
	return os.Open(s.path)
}

// ValidateMediaType accepts only video container types.
func ValidateMediaType(mediaType string) error {
	if !IsVideo(mediaType) {
		if strings.TrimSpace(mediaType) == "" {
			mediaType = "unknown"
		}
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedMediaType, mediaType)
	}
	return nil
}

// IsVideo reports whether mediaType names a video container.
func IsVideo(mediaType string) bool {
	base, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(base, "video/")
}

// TypeByExtension resolves a media type from a file extension.
func TypeByExtension(ext string) string {
	ext = strings.ToLower(ext)
	if mediaType, ok := videoExtensions[ext]; ok {
		return mediaType
	}
	return mime.TypeByExtension(ext)
}

// sniffedAsVideo accepts video content and content too opaque to classify.
func sniffedAsVideo(detected *mimetype.MIME) bool {
	if detected == nil || detected.Is("application/octet-stream") {
		return true
	}
	for m := detected; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "video/") {
			return true
		}
	}
	return false
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return head[:n], nil
}

type nopSeekCloser struct {
	io.ReadSeeker
}

func (nopSeekCloser) Close() error { return nil }
