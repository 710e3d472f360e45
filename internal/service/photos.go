package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/storage"
)

func savePhoto(ctx context.Context, store storage.PhotoStore, prefix string, data []byte) (string, error) {
	key, err := store.Save(ctx, prefix, data)
	if err != nil {
		if errors.Is(err, storage.ErrNotImage) || errors.Is(err, storage.ErrPhotoSize) {
			return "", invalidInput(err.Error())
		}
		return "", fmt.Errorf("failed to save photo: %w", err)
	}
	return key, nil
}

// deletePhoto is best effort; orphaned files are logged
func deletePhoto(ctx context.Context, store storage.PhotoStore, logger *zap.Logger, key string) {
	if key == "" {
		return
	}
	if err := store.Delete(ctx, key); err != nil {
		logger.Warn("failed to delete photo", zap.String("key", key), zap.Error(err))
	}
}
