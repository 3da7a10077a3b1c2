package domain

import "time"

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MIME types accepted at upload time.
const (
	MimePDF  = "application/pdf"
	MimeText = "text/plain"
	MimeDoc  = "application/msword"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var allowedUploadTypes = map[string]struct{}{
	MimePDF:  {},
	MimeText: {},
	MimeDoc:  {},
	MimeDOCX: {},
}

func IsAllowedUploadType(mimeType string) bool {
	_, ok := allowedUploadTypes[mimeType]
	return ok
}

type Document struct {
	ID               string           `json:"id"`
	OwnerID          string           `json:"owner_id"`
	Filename         string           `json:"filename"`
	OriginalFilename string           `json:"original_filename"`
	StoragePath      string           `json:"-"`
	FileSize         int64            `json:"file_size"`
	ContentType      string           `json:"content_type"`
	Processed        bool             `json:"processed"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	Error            string           `json:"-"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// StatusView is the read model returned by status polling.
type StatusView struct {
	DocumentID       string           `json:"document_id"`
	ProcessingStatus ProcessingStatus `json:"status"`
	Processed        bool             `json:"processed"`
}

type ProcessingOutcome struct {
	Status     ProcessingStatus `json:"status"`
	Message    string           `json:"message"`
	DocumentID string           `json:"document_id"`
}

// ProcessRequest is the payload carried by the async processing queue.
type ProcessRequest struct {
	DocumentID  string    `json:"document_id"`
	OwnerID     string    `json:"owner_id"`
	RequestedAt time.Time `json:"requested_at"`
}

type UserIdentity struct {
	UserID string `json:"user_id"`
}
