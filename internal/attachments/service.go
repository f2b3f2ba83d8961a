package attachments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/models"
	"github.com/nextoral/backend/internal/records"
	"github.com/nextoral/backend/internal/schema"
	"github.com/nextoral/backend/pkg/storage"
)

// ObjectStore presigns attachment transfers. *storage.S3 implements it.
type ObjectStore interface {
	PresignUpload(ctx context.Context, key, contentType string) (string, error)
	PresignDownload(ctx context.Context, key string) (string, error)
	PresignExpire() time.Duration
	Delete(ctx context.Context, key string) error
}

// Poker notifies an organization's sync clients. *realtime.Hub implements it.
type Poker interface {
	Poke(orgID uuid.UUID)
}

// UploadRequest is the body of POST /api/attachments/upload-url.
type UploadRequest struct {
	ID          string `json:"id" binding:"omitempty,max=64"`
	NoteID      string `json:"noteId" binding:"required,max=64"`
	Filename    string `json:"filename" binding:"required,max=255"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size" binding:"gte=0"`
}

// Upload is the attachment row plus where the browser should PUT the file.
type Upload struct {
	ID          string `json:"id"`
	ObjectKey   string `json:"objectKey"`
	ContentType string `json:"contentType"`
	UploadURL   string `json:"uploadUrl"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// Download is a short-lived link to an attachment.
type Download struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"downloadUrl"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// Service issues presigned URLs for clinical note attachments. Rows go through
// the permission-checked runner, so a caller only reaches its own org's notes.
type Service struct {
	runner  records.Runner
	objects ObjectStore
	poker   Poker
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates an attachments service.
func NewService(runner records.Runner, objects ObjectStore, poker Poker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{runner: runner, objects: objects, poker: poker, logger: logger, now: time.Now}
}

// CreateUpload records the attachment on its note and presigns the upload.
// Nothing is stored when presigning fails.
func (s *Service) CreateUpload(ctx context.Context, id models.Identity, req UploadRequest) (*Upload, error) {
	if req.Size > storage.MaxAttachmentSize {
		return nil, apperr.Validation("file too large")
	}
	if !storage.ValidateAttachmentType(req.ContentType, req.Filename) {
		return nil, apperr.Validation("file type not allowed")
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(req.Filename)
	}
	attachmentID := req.ID
	if attachmentID == "" {
		attachmentID = uuid.NewString()
	}

	var out *Upload
	err := s.runner.Run(ctx, id, func(ctx context.Context, tx records.Tx) error {
		if _, err := tx.Get(ctx, schema.TableClinicalNote, req.NoteID); err != nil {
			return err
		}
		key := storage.AttachmentKey(id.OrgID.String(), attachmentID, req.Filename)
		now := tx.Now()
		err := tx.Insert(ctx, schema.TableAttachment, schema.Row{
			"id":          attachmentID,
			"orgId":       id.OrgID.String(),
			"noteId":      req.NoteID,
			"objectKey":   key,
			"filename":    req.Filename,
			"contentType": contentType,
			"createdAt":   now,
			"updatedAt":   now,
		})
		if err != nil {
			return err
		}
		url, err := s.objects.PresignUpload(ctx, key, contentType)
		if err != nil {
			return err
		}
		out = &Upload{
			ID:          attachmentID,
			ObjectKey:   key,
			ContentType: contentType,
			UploadURL:   url,
			ExpiresAt:   s.now().Add(s.objects.PresignExpire()).UnixMilli(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.poke(id)
	return out, nil
}

// DownloadURL presigns a download for an attachment the caller may read.
func (s *Service) DownloadURL(ctx context.Context, id models.Identity, attachmentID string) (*Download, error) {
	var out *Download
	err := s.runner.Run(ctx, id, func(ctx context.Context, tx records.Tx) error {
		row, err := tx.Get(ctx, schema.TableAttachment, attachmentID)
		if err != nil {
			return err
		}
		url, err := s.objects.PresignDownload(ctx, row.String("objectKey"))
		if err != nil {
			return err
		}
		out = &Download{
			ID:          attachmentID,
			Filename:    row.String("filename"),
			DownloadURL: url,
			ExpiresAt:   s.now().Add(s.objects.PresignExpire()).UnixMilli(),
		}
		return nil
	})
	return out, err
}

// Delete removes the attachment row, then its object. Deleting an unknown attachment succeeds.
func (s *Service) Delete(ctx context.Context, id models.Identity, attachmentID string) error {
	var key string
	err := s.runner.Run(ctx, id, func(ctx context.Context, tx records.Tx) error {
		row, err := tx.Get(ctx, schema.TableAttachment, attachmentID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil
			}
			return err
		}
		key = row.String("objectKey")
		return tx.Delete(ctx, schema.TableAttachment, attachmentID)
	})
	if err != nil || key == "" {
		return err
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		s.logger.Warn("delete attachment object", zap.String("key", key), zap.Error(err))
	}
	s.poke(id)
	return nil
}

func (s *Service) poke(id models.Identity) {
	if s.poker != nil {
		s.poker.Poke(id.OrgID)
	}
}
