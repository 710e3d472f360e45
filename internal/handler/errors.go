package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/safetrack-backend-go/internal/dataurl"
	"github.com/jengzang/safetrack-backend-go/internal/middleware"
	"github.com/jengzang/safetrack-backend-go/internal/service"
	"github.com/jengzang/safetrack-backend-go/internal/storage"
	"github.com/jengzang/safetrack-backend-go/internal/tracking"
	"github.com/jengzang/safetrack-backend-go/pkg/response"
)

const msgInternal = "Internal server error, please try again"

// writeError maps service errors to status codes. Unknown errors are logged
// and reported generically.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, tracking.ErrInvalidMode):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, "Not found")
	case errors.Is(err, tracking.ErrNoSession):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrConflict):
		response.Conflict(c, err.Error())
	case errors.Is(err, tracking.ErrDeviceUnavailable):
		response.Error(c, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		_ = c.Error(err)
		response.InternalError(c, msgInternal)
	}
}

func caretakerID(c *gin.Context) string {
	return c.GetString(middleware.CaretakerIDKey)
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// readUpload reads a multipart file bounded by the photo size limit
func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > storage.MaxPhotoBytes {
		return nil, errors.New("photo exceeds 10MB")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, storage.MaxPhotoBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > storage.MaxPhotoBytes {
		return nil, errors.New("photo exceeds 10MB")
	}
	return data, nil
}

// decodePhoto accepts an image data URL; the empty string means no photo
func decodePhoto(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return dataurl.DecodeImage(s)
}
