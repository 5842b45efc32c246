package server

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

// multipart headers and form fields on top of the file itself
const formOverhead = 1 << 20

// validateUpload rejects requests without a "file" part, with a disallowed
// extension, or larger than the configured limit.
func (s *Server) validateUpload() gin.HandlerFunc {
	allowed := make([]string, 0, len(s.Upload.AllowedExtensions))
	for _, ext := range s.Upload.AllowedExtensions {
		allowed = append(allowed, strings.ToLower(ext))
	}
	limit := s.Upload.MaxBytes
	tooLarge := fmt.Sprintf("File exceeds the %s limit", humanize.IBytes(uint64(limit)))

	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)

		fh, err := c.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) || c.Request.ContentLength > limit+formOverhead {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": tooLarge})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
			return
		}

		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !slices.Contains(allowed, ext) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Invalid file type. Only %s files are allowed", strings.Join(allowed, ", ")),
			})
			return
		}

		if fh.Size > limit {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": tooLarge})
			return
		}

		c.Next()
	}
}
