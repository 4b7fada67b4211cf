package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/repair-tracker/internal/domain"
	"github.com/gin-gonic/gin"
)

// UploadImages handles POST /upload
// Every multipart part named "images" is stored; the response lists their
// URLs in the order the parts arrived.
func (h *UploadHandler) UploadImages(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No images provided"})
		return
	}

	headers := form.File["images"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No images provided"})
		return
	}

	urls := make([]string, 0, len(headers))
	for _, fh := range headers {
		if fh.Filename == "" {
			continue
		}

		f, err := fh.Open()
		if err != nil {
			h.logger.Error("Failed to open uploaded file",
				slog.String("filename", fh.Filename),
				slog.Any("error", err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload images"})
			return
		}

		url, err := h.files.Save(fh.Filename, f)
		f.Close()
		if err != nil {
			h.logger.Error("Failed to store uploaded file",
				slog.String("filename", fh.Filename),
				slog.Any("error", err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload images"})
			return
		}

		urls = append(urls, url)
	}

	h.logger.Info("Images uploaded",
		slog.Int64("user_id", currentUserID(c)),
		slog.Int("count", len(urls)),
	)

	c.JSON(http.StatusOK, domain.UploadResponse{URLs: urls})
}
