// Package minio mirrors catalog artwork into an S3-compatible bucket.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driven"
	"github.com/custodia-labs/catalog-sync/internal/logger"
)

const (
	// MaxImageSize caps a single download.
	MaxImageSize = 20 << 20

	downloadTimeout = time.Minute
	keyPrefix       = "records"
	fallbackExt     = ".img"
)

// Ensure Mirror implements the interface.
var _ driven.ImageMirror = (*Mirror)(nil)

// objectStore is the subset of *miniogo.Client the mirror needs.
type objectStore interface {
	StatObject(ctx context.Context, bucket, key string, opts miniogo.StatObjectOptions) (miniogo.ObjectInfo, error)
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64,
		opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error)
}

// Mirror downloads images over HTTP and stores them under
// records/<id>/<index><ext> in a bucket.
type Mirror struct {
	store      objectStore
	bucket     string
	httpClient *http.Client
}

// New connects to an S3-compatible endpoint with static credentials.
func New(s domain.ImageSettings) (*Mirror, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("%w: image mirror needs endpoint and bucket", domain.ErrInvalidInput)
	}
	client, err := miniogo.New(s.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(s.AccessKey, s.SecretKey, ""),
		Secure: s.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("image mirror: %w", err)
	}
	return newMirror(client, s.Bucket, nil), nil
}

func newMirror(store objectStore, bucket string, hc *http.Client) *Mirror {
	if hc == nil {
		hc = &http.Client{Timeout: downloadTimeout}
	}
	return &Mirror{store: store, bucket: bucket, httpClient: hc}
}

// Mirror copies one image into the bucket. An object already present
// under the key is kept and its key returned without downloading.
func (m *Mirror) Mirror(ctx context.Context, recordID string, index int, img domain.Image) (string, error) {
	if recordID == "" || img.URI == "" {
		return "", fmt.Errorf("%w: image mirror needs record id and uri", domain.ErrInvalidInput)
	}

	key := ObjectKey(recordID, index, extFromURI(img.URI))
	if _, err := m.store.StatObject(ctx, m.bucket, key, miniogo.StatObjectOptions{}); err == nil {
		return key, nil
	} else if miniogo.ToErrorResponse(err).Code != "NoSuchKey" {
		return "", fmt.Errorf("stat %s: %w", key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, img.URI, nil)
	if err != nil {
		return "", fmt.Errorf("image request: %w", err)
	}
	req.Header.Set("User-Agent", "catalog-sync/1.0")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", img.URI, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: status %d", img.URI, resp.StatusCode)
	}
	if resp.ContentLength > MaxImageSize {
		return "", fmt.Errorf("download %s: %d bytes exceeds limit", img.URI, resp.ContentLength)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// Content-Length may be absent, so the cap is enforced on the bytes read.
	// An oversized image is never stored cut short.
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("download %s: %w", img.URI, err)
	}
	if len(data) > MaxImageSize {
		return "", fmt.Errorf("download %s: body exceeds %d bytes", img.URI, MaxImageSize)
	}

	_, err = m.store.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		miniogo.PutObjectOptions{
			ContentType: contentType,
			UserMetadata: map[string]string{
				"record-id":  recordID,
				"image-type": img.Type,
				"source-uri": img.URI,
			},
		})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	logger.Debug("mirror: stored %s (%s)", key, contentType)
	return key, nil
}

// ObjectKey builds the bucket key for a record's image.
func ObjectKey(recordID string, index int, ext string) string {
	if ext == "" {
		ext = fallbackExt
	}
	return path.Join(keyPrefix, url.PathEscape(recordID), strconv.Itoa(index)+ext)
}

func extFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" || mime.TypeByExtension(ext) == "" {
		return ""
	}
	return ext
}
