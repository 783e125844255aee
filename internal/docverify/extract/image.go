// internal/docverify/extract/image.go
package extract

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
)

// EncodeImage reads an image file and returns its base64 encoding.
func EncodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DetectMIME guesses the image MIME type from the file extension.
func DetectMIME(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
