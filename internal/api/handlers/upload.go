package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"idleassets/api/internal/storage"
)

// imageUpload is an image read from a multipart form field.
type imageUpload struct {
	Data        []byte
	ContentType string
	Ext         string
}

// readImageUpload reads the multipart file in field, rejecting anything that
// is not a supported image or exceeds maxMB. On failure the response has
// already been written.
func readImageUpload(c *gin.Context, field string, maxMB int) (*imageUpload, bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		badRequest(c, fmt.Sprintf("multipart field %q is required", field))
		return nil, false
	}
	contentType := fh.Header.Get("Content-Type")
	ext, err := storage.ImageExt(contentType, fh.Filename)
	if err != nil {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
		return nil, false
	}

	limit := int64(maxMB) << 20
	if fh.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("image exceeds %d MB", maxMB)})
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return nil, false
	}
	if int64(len(data)) > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("image exceeds %d MB", maxMB)})
		return nil, false
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &imageUpload{Data: data, ContentType: contentType, Ext: ext}, true
}
