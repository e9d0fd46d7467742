// Package uploads decides which resource uploads are acceptable and names
// their objects in storage.
package uploads

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxUploadBytes is the upload size limit (10 MiB).
const DefaultMaxUploadBytes int64 = 10 << 20

var (
	// ErrUploadRejected is the parent of every rejection below.
	ErrUploadRejected = errors.New("upload rejected")
	// ErrFileTooLarge means the file exceeds the configured limit.
	ErrFileTooLarge = fmt.Errorf("%w: file too large", ErrUploadRejected)
	// ErrUnsupportedType means the MIME type is not on the allow-list.
	ErrUnsupportedType = fmt.Errorf("%w: only PDF, DOC, DOCX, PPT and PPTX files are allowed", ErrUploadRejected)
	// ErrEmptyFile means no bytes were sent.
	ErrEmptyFile = fmt.Errorf("%w: file is empty", ErrUploadRejected)
)

// allowed maps accepted MIME types to the short file type stored on a resource.
var allowed = map[string]string{
	"application/pdf":    "pdf",
	"application/msword": "doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   "docx",
	"application/vnd.ms-powerpoint":                                             "ppt",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "pptx",
}

// AllowedFileTypes lists the short file types in a stable order.
func AllowedFileTypes() []string {
	return []string{"pdf", "doc", "docx", "ppt", "pptx"}
}

// Accept checks an upload against the allow-list and size limit and returns
// the short file type ("pdf", "docx", ...). maxBytes <= 0 uses the default.
func Accept(contentType string, size, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if size <= 0 {
		return "", ErrEmptyFile
	}
	if size > maxBytes {
		return "", ErrFileTooLarge
	}
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ft, ok := allowed[mt]
	if !ok {
		return "", ErrUnsupportedType
	}
	return ft, nil
}

var byExtension = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// ContentTypeFor returns declared when it is an allowed type, otherwise the
// type implied by filename's extension. Browsers often send
// application/octet-stream for Office files.
func ContentTypeFor(filename, declared string) string {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	if _, ok := allowed[mt]; ok {
		return mt
	}
	if byExt, ok := byExtension[strings.ToLower(filepath.Ext(filename))]; ok {
		return byExt
	}
	return mt
}

// NewKey builds a unique object key: resources/YYYY/MM/<uuid8>-<filename>.
func NewKey(filename string, now time.Time) string {
	now = now.UTC()
	dateDir := fmt.Sprintf("resources/%04d/%02d", now.Year(), now.Month())
	uniqueName := fmt.Sprintf("%s-%s", uuid.New().String()[:8], SanitizeFilename(filename))
	return filepath.ToSlash(filepath.Join(dateDir, uniqueName))
}

// SanitizeFilename keeps [A-Za-z0-9._-], replaces everything else with '_'
// and caps the length at 100 while preserving a short extension.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if filename == "." || filename == "/" {
		return "file"
	}

	result := make([]byte, 0, len(filename))
	for i := 0; i < len(filename); i++ {
		c := filename[i]
		if isAllowedFilenameChar(c) {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}

	if len(result) == 0 {
		return "file"
	}
	if len(result) > 100 {
		ext := filepath.Ext(string(result))
		if len(ext) > 0 && len(ext) < 10 {
			result = append(result[:100-len(ext)], ext...)
		} else {
			result = result[:100]
		}
	}
	return string(result)
}

func isAllowedFilenameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}
