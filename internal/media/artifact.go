package media

import (
	"bytes"
	"io"

	"upload-ai/internal/domain"
)

// AudioArtifact is the encoded audio produced by one conversion.
type AudioArtifact struct {
	Name      string
	MediaType string
	Data      []byte
}

// Reader exposes the payload for multipart uploads.
func (a AudioArtifact) Reader() io.Reader {
	return bytes.NewReader(a.Data)
}

// Info strips the payload for snapshots.
func (a AudioArtifact) Info() domain.ArtifactInfo {
	return domain.ArtifactInfo{
		Name:      a.Name,
		MediaType: a.MediaType,
		Size:      len(a.Data),
	}
}
