package types

import (
	"fmt"
	"math"
	"path"
	"strings"
	"time"
)

// FileStatus defines the lifecycle state of a file record
type FileStatus string

const (
	FileStatusPending   FileStatus = "pending"
	FileStatusUploading FileStatus = "uploading"
	FileStatusCompleted FileStatus = "completed"
	FileStatusFailed    FileStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s FileStatus) Terminal() bool {
	return s == FileStatusCompleted || s == FileStatusFailed
}

// FileMeta is the immutable metadata captured when a file is selected
type FileMeta struct {
	Name           string    `json:"name"`
	SizeBytes      int64     `json:"size_bytes"`
	MimeType       string    `json:"mime_type"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

// FileRecord represents a tracked file in the system
type FileRecord struct {
	ID              string     `json:"id"`
	SessionID       string     `json:"session_id"`
	Name            string     `json:"name"`
	SizeBytes       int64      `json:"size_bytes"`
	MimeType        string     `json:"mime_type"`
	LastModifiedAt  time.Time  `json:"last_modified_at"`
	Status          FileStatus `json:"status"`
	ProgressPercent float64    `json:"progress_percent"`
	RemoteURL       string     `json:"remote_url,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// FilePatch describes a partial update to a file record. Nil fields are
// left untouched.
type FilePatch struct {
	Status          *FileStatus `json:"status,omitempty"`
	ProgressPercent *float64    `json:"progress_percent,omitempty"`
	RemoteURL       *string     `json:"remote_url,omitempty"`
}

// UploadSession aggregates one submitted batch of files
type UploadSession struct {
	ID                   string    `json:"id"`
	TotalFiles           int       `json:"total_files"`
	TotalSizeBytes       int64     `json:"total_size_bytes"`
	UploadedSizeBytes    int64     `json:"uploaded_size_bytes"`
	StartedAt            time.Time `json:"started_at"`
	AverageSpeedBytesSec float64   `json:"average_speed_bytes_sec"`
}

// Completed reports whether every byte of the batch has been accounted for.
func (s *UploadSession) Completed() bool {
	return s.UploadedSizeBytes >= s.TotalSizeBytes
}

// SessionSpec fixes the immutable dimensions of a session at creation
type SessionSpec struct {
	TotalFiles     int   `json:"total_files"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
}

// SessionPatch describes a partial update to a session. Setting
// UploadedSizeBytes triggers a speed recomputation in the store.
type SessionPatch struct {
	UploadedSizeBytes *int64 `json:"uploaded_size_bytes,omitempty"`
}

// GlobalStats is the dashboard-level aggregate over all sessions
type GlobalStats struct {
	TotalFiles           int     `json:"total_files"`
	CompletedFiles       int     `json:"completed_files"`
	TotalSizeBytes       int64   `json:"total_size_bytes"`
	UploadedSizeBytes    int64   `json:"uploaded_size_bytes"`
	AverageSpeedBytesSec float64 `json:"average_speed_bytes_sec"`
	ActiveSessions       int     `json:"active_sessions"`
	CompletedSessions    int     `json:"completed_sessions"`
}

// ProgressEvent is emitted for every file state change visible to consumers
type ProgressEvent struct {
	ID              string     `json:"id"`
	SessionID       string     `json:"session_id"`
	Name            string     `json:"name"`
	Status          FileStatus `json:"status"`
	ProgressPercent float64    `json:"progress_percent"`
	RemoteURL       string     `json:"remote_url,omitempty"`
}

// Constraints are the selection-time acceptance rules for incoming files
type Constraints struct {
	MaxFileSizeBytes int64    `json:"max_file_size_bytes" yaml:"max_file_size_bytes"`
	AcceptedTypes    []string `json:"accepted_types" yaml:"accepted_types"`
}

// Accepts checks a candidate file against the configured constraints.
// Type patterns follow the HTML accept attribute: exact MIME types or
// wildcards like "image/*". An empty pattern list accepts everything.
func (c *Constraints) Accepts(meta FileMeta) error {
	if c.MaxFileSizeBytes > 0 && meta.SizeBytes > c.MaxFileSizeBytes {
		return fmt.Errorf("file %q exceeds size limit: %d > %d bytes",
			meta.Name, meta.SizeBytes, c.MaxFileSizeBytes)
	}
	if len(c.AcceptedTypes) == 0 {
		return nil
	}
	for _, pattern := range c.AcceptedTypes {
		if pattern == "*" || pattern == "*/*" {
			return nil
		}
		if ok, _ := path.Match(pattern, meta.MimeType); ok {
			return nil
		}
		if strings.EqualFold(pattern, meta.MimeType) {
			return nil
		}
	}
	return fmt.Errorf("file %q has unaccepted type %q", meta.Name, meta.MimeType)
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count in the largest fitting binary unit
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	i := int(math.Log(float64(bytes)) / math.Log(1024))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(i))
	return fmt.Sprintf("%.1f %s", value, sizeUnits[i])
}

// FormatSpeed renders a transfer rate in the largest fitting binary unit
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "0 B/s"
	}
	i := int(math.Log(bytesPerSec) / math.Log(1024))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	value := bytesPerSec / math.Pow(1024, float64(i))
	return fmt.Sprintf("%.1f %s/s", value, sizeUnits[i])
}
