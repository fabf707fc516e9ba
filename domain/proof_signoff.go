package domain

import (
	"database/sql"
	"time"
)

// ResolutionProof is staff's evidence that work was performed. A complaint
// cannot be marked resolved without at least one proof on file.
type ResolutionProof struct {
	ID             int64
	ComplaintID    int64
	StaffID        int64
	ImageReference string
	Latitude       float64
	Longitude      float64
	CapturedAt     time.Time
	Remarks        string
	IsVerified     bool
	CreatedAt      time.Time
}

// CitizenSignoff is the citizen's response to a RESOLVED complaint: an
// acceptance with a rating, or a dispute awaiting department-head review.
type CitizenSignoff struct {
	ID                     int64
	ComplaintID            int64
	CitizenID              int64
	IsAccepted             bool
	Rating                 sql.NullInt64
	Feedback               sql.NullString
	DisputeReason          sql.NullString
	DisputeImageReference  sql.NullString
	SignedOffAt            time.Time
	DisputeApproved        sql.NullBool
	DisputeApprovedBy      sql.NullInt64
	DisputeReviewedAt      sql.NullTime
	DisputeRejectionReason sql.NullString
}

// IsPendingDispute reports whether this signoff is a dispute awaiting
// review. At most one such row may exist per complaint at a time.
func (s *CitizenSignoff) IsPendingDispute() bool {
	return !s.IsAccepted && !s.DisputeApproved.Valid
}

// Attachment is citizen-submitted evidence captured at filing time,
// distinct from ResolutionProof (which is staff-submitted at resolution
// time).
type Attachment struct {
	ID           int64
	ComplaintID  int64
	FileName     string
	FilePath     string
	EvidenceHash string
	Latitude     sql.NullFloat64
	Longitude    sql.NullFloat64
	CapturedAt   sql.NullTime
	IsPublic     bool
	UploadedBy   int64
	CreatedAt    time.Time
}
