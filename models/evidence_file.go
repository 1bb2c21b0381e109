package models

import (
	"database/sql/driver"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MediaCategory classifies an evidence file for extraction dispatch
type MediaCategory string

const (
	MediaDocument MediaCategory = "documents"
	MediaPDF      MediaCategory = "pdf"
	MediaImage    MediaCategory = "images"
	MediaAudio    MediaCategory = "audio"
	MediaVideo    MediaCategory = "video"
	MediaUnknown  MediaCategory = "unknown"
)

var mediaExtensions = map[MediaCategory][]string{
	MediaDocument: {".txt", ".md", ".doc", ".docx"},
	MediaPDF:      {".pdf"},
	MediaImage:    {".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"},
	MediaAudio:    {".mp3", ".wav", ".m4a", ".ogg", ".flac"},
	MediaVideo:    {".mp4", ".avi", ".mov", ".mkv", ".webm"},
}

// CategoryForFilename maps a filename to its media category by extension
func CategoryForFilename(filename string) MediaCategory {
	ext := strings.ToLower(filepath.Ext(filename))
	for category, extensions := range mediaExtensions {
		for _, e := range extensions {
			if ext == e {
				return category
			}
		}
	}
	return MediaUnknown
}

// AllowedExtension reports whether the extension is accepted for the category
func AllowedExtension(filename string, category MediaCategory) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range mediaExtensions[category] {
		if ext == e {
			return true
		}
	}
	return false
}

// EvidenceFile represents an uploaded evidence file attached to a case.
// Immutable once uploaded.
type EvidenceFile struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Category    MediaCategory `json:"category"`
	StoragePath string        `json:"storage_path"`
	Size        int64         `json:"size"`
	ContentType string        `json:"content_type"`
	SHA256      string        `json:"sha256"`
	UploadedAt  time.Time     `json:"uploaded_at"`
}

// EvidenceFileList is the case's evidence file set, stored as JSONB
type EvidenceFileList []EvidenceFile

// Value implements driver.Valuer for JSONB
func (e EvidenceFileList) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan implements sql.Scanner for JSONB
func (e *EvidenceFileList) Scan(value interface{}) error {
	if value == nil {
		*e = make(EvidenceFileList, 0)
		return nil
	}
	return scanJSON(value, e)
}
