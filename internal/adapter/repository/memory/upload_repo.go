package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

// uploadRepository implements domain.UploadRepository
type uploadRepository struct {
	mu      sync.RWMutex
	uploads map[uuid.UUID]domain.Upload
}

// NewUploadRepository creates a new upload repository
func NewUploadRepository() domain.UploadRepository {
	return &uploadRepository{uploads: make(map[uuid.UUID]domain.Upload)}
}

// Save creates or replaces an upload
func (r *uploadRepository) Save(ctx context.Context, upload *domain.Upload) error {
	if upload == nil {
		return fmt.Errorf("failed to save upload: nil upload")
	}
	if upload.ID == uuid.Nil {
		return fmt.Errorf("failed to save upload: missing ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads[upload.ID] = copyUpload(*upload)
	return nil
}

// GetByID retrieves an upload by its ID
func (r *uploadRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Upload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	upload, ok := r.uploads[id]
	if !ok {
		return nil, fmt.Errorf("upload %s: %w", id, domain.ErrUploadNotFound)
	}
	out := copyUpload(upload)
	return &out, nil
}

// Delete removes an upload
func (r *uploadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.uploads[id]; !ok {
		return fmt.Errorf("upload %s: %w", id, domain.ErrUploadNotFound)
	}
	delete(r.uploads, id)
	return nil
}

// copyUpload detaches the stored upload from the caller's slices
func copyUpload(u domain.Upload) domain.Upload {
	u.Rows = append([]domain.RecipientRow(nil), u.Rows...)
	u.Report.Valid = append([]domain.ClassifiedRow{}, u.Report.Valid...)
	u.Report.InvalidAddress = append([]domain.ClassifiedRow{}, u.Report.InvalidAddress...)
	u.Report.InvalidAmount = append([]domain.ClassifiedRow{}, u.Report.InvalidAmount...)
	u.Report.Duplicates = append([]domain.ClassifiedRow{}, u.Report.Duplicates...)
	return u
}
