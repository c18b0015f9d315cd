// Package attachment keeps photo content durable and hands out opaque
// references that messages carry instead of the bytes.
package attachment

import (
	"bytes"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/mimetypes"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const (
	Scheme         = "blob://"
	DefaultPrefix  = "chat_photos"
	DefaultMaxSize = 10 << 20
	// SniffSize is enough for mimetype to recognise every image format it knows.
	SniffSize = 3072
)

var _ contract.IAttachmentResolver = (*Resolver)(nil)

type Resolver struct {
	log        *slog.Logger
	repository contract.IBlobRepository
	metrics    *observability.Metrics
	prefix     string
	maxSize    int64
	now        func() time.Time
}

func NewResolver(log *slog.Logger, repository contract.IBlobRepository,
	metrics *observability.Metrics, prefix string, maxSize int64) *Resolver {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Resolver{
		log:        log,
		repository: repository,
		metrics:    metrics,
		prefix:     strings.Trim(prefix, "/"),
		maxSize:    maxSize,
		now:        time.Now,
	}
}

// Store reads the whole content and persists it under the last segment of
// name. The reference is returned only once the write is durable; every
// failure is reported as errors.ErrStoreFailed.
func (r *Resolver) Store(ctx context.Context, content io.Reader, name string) (string, error) {
	reference, size, err := r.store(ctx, content, name)
	if err != nil {
		r.metrics.AttachmentFailed()
		r.log.Warn("Attachment not stored", "name", name, "error", err)
		return "", err
	}
	r.metrics.AttachmentStored(size)
	r.log.Debug("Attachment stored", "reference", reference, "size", size)
	return reference, nil
}

func (r *Resolver) store(ctx context.Context, content io.Reader, name string) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, fmt.Errorf("%w: %w", errors.ErrStoreFailed, err)
	}
	key, err := r.key(name)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", errors.ErrStoreFailed, err)
	}

	data, err := io.ReadAll(io.LimitReader(content, r.maxSize+1))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", errors.ErrStoreFailed, err)
	}
	if int64(len(data)) > r.maxSize {
		return "", 0, fmt.Errorf("%w: %w", errors.ErrStoreFailed, errors.ErrAttachmentTooLarge)
	}
	if err := ctx.Err(); err != nil {
		return "", 0, fmt.Errorf("%w: %w", errors.ErrStoreFailed, err)
	}

	attachment := domain.Attachment{
		Name:        key,
		ContentType: mimetype.Detect(data).String(),
		Size:        int64(len(data)),
		Data:        data,
		StoredAt:    r.now().UTC(),
	}
	if err := r.repository.StoreBlob(attachment); err != nil {
		return "", 0, fmt.Errorf("%w: %v", errors.ErrStoreFailed, err)
	}
	return Scheme + key, attachment.Size, nil
}

// Resolve returns the content behind a reference produced by Store.
func (r *Resolver) Resolve(ctx context.Context, reference string) (domain.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Attachment{}, err
	}
	key, ok := strings.CutPrefix(reference, Scheme)
	if !ok || key == "" {
		return domain.Attachment{}, errors.ErrInvalidReference
	}
	attachment, err := r.repository.GetBlob(key)
	switch {
	case errors.Is(err, errors.ErrAttachmentNotFound):
		return domain.Attachment{}, err
	case err != nil:
		return domain.Attachment{}, fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}
	return attachment, nil
}

func (r *Resolver) key(name string) (string, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return "", errors.ErrInvalidAttachmentID
	}
	return r.prefix + "/" + base, nil
}

// SniffImage peeks at the head of content and reports whether it is an
// image. The returned reader still yields the complete content.
func SniffImage(content io.Reader) (io.Reader, bool, error) {
	head := make([]byte, SniffSize)
	n, err := io.ReadFull(content, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, false, err
	}
	head = head[:n]
	isImage := mimetypes.IsImage(mimetype.Detect(head).String())
	return io.MultiReader(bytes.NewReader(head), content), isImage, nil
}
