package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/rs/zerolog"
)

// Archiver keeps raw gateway payloads for audit and replay.
type Archiver interface {
	// Store writes body under key. Keys use forward slashes.
	Store(ctx context.Context, key string, body []byte) error
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Key builds the archive key for a gateway payload: a date directory followed
// by the reference, event name and receive time.
func Key(reference, event string, at time.Time) string {
	at = at.UTC()
	name := fmt.Sprintf("%s_%s_%d.json.gz",
		unsafeKeyChars.ReplaceAllString(reference, "-"),
		unsafeKeyChars.ReplaceAllString(event, "-"),
		at.UnixNano())
	return path.Join(at.Format("2006/01/02"), name)
}

func compress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	return buf.Bytes(), nil
}

// fallbackArchiver tries S3 first, then falls back to the local file system.
type fallbackArchiver struct {
	s3        Archiver
	file      Archiver
	s3Prefix  string
	s3Enabled bool
	logger    zerolog.Logger
}

// NewFallbackArchiver creates an archiver that writes to S3 when enabled and
// falls back to file on failure. Either archiver may be nil.
func NewFallbackArchiver(s3Archiver, fileArchiver Archiver, s3Prefix string, s3Enabled bool, logger zerolog.Logger) Archiver {
	return &fallbackArchiver{
		s3:        s3Archiver,
		file:      fileArchiver,
		s3Prefix:  s3Prefix,
		s3Enabled: s3Enabled,
		logger:    logger.With().Str("component", "fallback-archiver").Logger(),
	}
}

// Store writes to S3 under s3Prefix+key, or to the local archive under key.
func (a *fallbackArchiver) Store(ctx context.Context, key string, body []byte) error {
	if a.s3Enabled && a.s3 != nil {
		s3Key := a.s3Prefix + key
		err := a.s3.Store(ctx, s3Key, body)
		if err == nil {
			return nil
		}
		if a.file == nil {
			return err
		}
		a.logger.Warn().Err(err).Str("s3_key", s3Key).Msg("failed to archive to S3, falling back to local file system")
	}

	if a.file == nil {
		a.logger.Debug().Str("key", key).Msg("no archive configured, payload dropped")
		return nil
	}
	return a.file.Store(ctx, key, body)
}

// NopArchiver discards payloads.
type NopArchiver struct{}

func (NopArchiver) Store(context.Context, string, []byte) error { return nil }
