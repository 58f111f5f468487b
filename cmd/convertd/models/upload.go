package models

import "time"

// OriginalInfo describes the uploaded file before processing
type OriginalInfo struct {
	Name      string `json:"name"`
	Mime      string `json:"mime,omitempty"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Pages     int    `json:"pages,omitempty"`
}

// OutputInfo describes the processed, stored asset
type OutputInfo struct {
	StoredName string `json:"storedName"` // "<id>.<ext>"
	Mime       string `json:"mime"`
	SizeBytes  int64  `json:"sizeBytes"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	HasAlpha   bool   `json:"hasAlpha"`
	ColorSpace string `json:"colorSpace"`
}

// UploadMeta is the sidecar metadata record persisted next to each
// converted asset ("<id>.json" under the session directory)
type UploadMeta struct {
	ID           string       `json:"id"`
	Original     OriginalInfo `json:"original"`
	Output       OutputInfo   `json:"output"`
	ExifStripped bool         `json:"exifStripped"`
	Animated     bool         `json:"animated"`
	UploadedAt   time.Time    `json:"uploadedAt"`
}

// UploadAccepted is one successfully converted file in an upload response
type UploadAccepted struct {
	ID      string      `json:"id"`
	URL     string      `json:"url"`
	MetaURL string      `json:"metaUrl"`
	Meta    *UploadMeta `json:"meta"`
}

// UploadRejected is one failed file in an upload response; rejections are
// transient and never persisted
type UploadRejected struct {
	FileName      string `json:"fileName"`
	Error         string `json:"error"`
	CorrelationID string `json:"clientCorrelationId,omitempty"`
}

// UploadsResponse aggregates per-file outcomes for one upload batch
type UploadsResponse struct {
	Status   string           `json:"status"` // "ok" or "partial"
	Accepted []UploadAccepted `json:"accepted"`
	Rejected []UploadRejected `json:"rejected"`
}
