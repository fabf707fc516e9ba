package repository

import (
	"context"
	"fmt"

	"github.com/civictech/grievance-core/domain"
)

// AttachmentRepository persists citizen-submitted evidence captured at
// filing time.
type AttachmentRepository struct {
	db Querier
}

func NewAttachmentRepository(db Querier) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Create(ctx context.Context, a *domain.Attachment) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO complaint_attachments
			(complaint_id, file_name, file_path, evidence_hash, latitude,
			 longitude, captured_at, is_public, uploaded_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ComplaintID, a.FileName, a.FilePath, a.EvidenceHash, a.Latitude,
		a.Longitude, a.CapturedAt, a.IsPublic, a.UploadedBy,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create complaint attachment: %w", err)
	}
	return result.LastInsertId()
}

// ListByComplaint returns every attachment a citizen submitted with a
// complaint, oldest first.
func (r *AttachmentRepository) ListByComplaint(ctx context.Context, complaintID int64) ([]*domain.Attachment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT attachment_id, complaint_id, file_name, file_path, evidence_hash,
			latitude, longitude, captured_at, is_public, uploaded_by, created_at
		FROM complaint_attachments WHERE complaint_id = ? ORDER BY created_at ASC`, complaintID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments for complaint %d: %w", complaintID, err)
	}
	defer rows.Close()
	var out []*domain.Attachment
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(&a.ID, &a.ComplaintID, &a.FileName, &a.FilePath,
			&a.EvidenceHash, &a.Latitude, &a.Longitude, &a.CapturedAt,
			&a.IsPublic, &a.UploadedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
