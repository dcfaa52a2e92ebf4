package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

// sessionPrefix is the key prefix of archived discovery transcripts.
const sessionPrefix = "discovery/"

// multipartThreshold switches uploads to the multipart manager.
const multipartThreshold = minPartSize

// SessionArchiver stores finished discovery sessions as JSON objects under
// discovery/YYYY/MM/DD/{session id}.json.
type SessionArchiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
}

// NewSessionArchiver creates a SessionArchiver.
func NewSessionArchiver(writer domain.BlobWriter, reader domain.BlobReader) *SessionArchiver {
	return &SessionArchiver{writer: writer, reader: reader}
}

// ArchiveSession uploads s and returns the object key.
func (a *SessionArchiver) ArchiveSession(ctx context.Context, s domain.DiscoverySession) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return "", fmt.Errorf("s3blob: encode session %s: %w", s.ID, err)
	}

	path := sessionPath(s)
	var err error
	if int64(buf.Len()) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, &buf, minPartSize)
	} else {
		err = a.writer.Put(ctx, path, &buf, "application/json")
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive session %s: %w", s.ID, err)
	}
	return path, nil
}

// ListSessions returns the archived transcripts, newest first.
func (a *SessionArchiver) ListSessions(ctx context.Context) ([]domain.BlobInfo, error) {
	infos, err := a.reader.List(ctx, sessionPrefix)
	if err != nil {
		return nil, fmt.Errorf("s3blob: list sessions: %w", err)
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].LastModified.After(infos[j].LastModified)
	})
	return infos, nil
}

// sessionPath partitions transcripts by the day the session finished, or
// started when it never completed.
//
//	discovery/2026/10/18/6f1c...json
func sessionPath(s domain.DiscoverySession) string {
	at := s.StartedAt
	if s.CompletedAt != nil {
		at = *s.CompletedAt
	}
	if at.IsZero() {
		at = time.Now()
	}
	return fmt.Sprintf("%s%s/%s.json", sessionPrefix, at.UTC().Format("2006/01/02"), s.ID)
}

var _ domain.SessionArchiver = (*SessionArchiver)(nil)
