// Package assets uploads rendered images to blob storage under a key derived
// from the idea id alone and returns the shareable link. The image type
// travels as the blob's content type, so a re-render in another format
// replaces the same blob.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/google/uuid"

	"github.com/JaimeStill/muse/pkg/formatting"
	"github.com/JaimeStill/muse/pkg/images"
	"github.com/JaimeStill/muse/pkg/retry"
	"github.com/JaimeStill/muse/pkg/storage"
)

// ErrUpload wraps every failure to store an asset or issue its link.
var ErrUpload = errors.New("asset upload failed")

// Asset is a stored image.
type Asset struct {
	Key  string `json:"key"`
	Link string `json:"link"`
}

// System stores images for ideas.
type System interface {
	// Upload writes img to Key(ideaID) and returns its link. Uploading
	// again for the same idea replaces the same blob.
	Upload(ctx context.Context, ideaID uuid.UUID, img *images.Image) (*Asset, error)
	// Key returns the storage key used for an idea's image.
	Key(ideaID uuid.UUID) string
	// Link issues a fresh link for a stored key.
	Link(ctx context.Context, key string) (string, error)
}

type uploader struct {
	store  storage.System
	folder string
	policy retry.Policy
	logger *slog.Logger
}

// New creates an uploader that writes into folder.
func New(store storage.System, folder string, policy retry.Policy, logger *slog.Logger) System {
	return &uploader{
		store:  store,
		folder: folder,
		policy: policy,
		logger: logger.With("system", "assets"),
	}
}

func (u *uploader) Key(ideaID uuid.UUID) string {
	return path.Join(u.folder, ideaID.String())
}

func (u *uploader) Link(ctx context.Context, key string) (string, error) {
	link, err := u.store.Link(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: link %s: %w", ErrUpload, key, err)
	}
	return link, nil
}

func (u *uploader) Upload(ctx context.Context, ideaID uuid.UUID, img *images.Image) (*Asset, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUpload)
	}

	key := u.Key(ideaID)

	asset, err := retry.Do(ctx, u.policy, u.logger, "upload "+key, func(ctx context.Context) (*Asset, error) {
		if err := u.store.Upload(ctx, key, bytes.NewReader(img.Data), img.ContentType); err != nil {
			if permanent(err) {
				return nil, retry.Permanent(err)
			}
			return nil, err
		}

		link, err := u.store.Link(ctx, key)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		return &Asset{Key: key, Link: link}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUpload, key, err)
	}

	u.logger.InfoContext(
		ctx, "asset uploaded",
		"idea_id", ideaID,
		"key", key,
		"content_type", img.ContentType,
		"size", formatting.FormatBytes(int64(len(img.Data)), 1),
	)
	return asset, nil
}

// permanent reports key errors that no retry can fix.
func permanent(err error) bool {
	return errors.Is(err, storage.ErrEmptyKey) || errors.Is(err, storage.ErrInvalidKey)
}
