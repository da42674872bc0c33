package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aldoetobex/debt-recovery-backend/internal/cases"
	"github.com/aldoetobex/debt-recovery-backend/internal/policy"
	"github.com/aldoetobex/debt-recovery-backend/internal/storage"
	"github.com/aldoetobex/debt-recovery-backend/pkg/apperr"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/utils"
	"github.com/aldoetobex/debt-recovery-backend/pkg/validation"
)

// LegalFolders are the folders listed for legal counsel.
var LegalFolders = []models.DocumentFolder{models.FolderLegalDocuments, models.FolderContracts}

// ===== DTOs =====

// RegisterInput is the metadata returned by the upload service.
type RegisterInput struct {
	Filename     string                `json:"filename" validate:"required,max=255"`
	OriginalName string                `json:"original_name" validate:"required,max=255"`
	URL          string                `json:"url" validate:"required,url,max=2048"`
	StorageKey   string                `json:"storage_key" validate:"max=1024"`
	Size         int64                 `json:"size" validate:"gt=0"`
	MimeType     string                `json:"mime_type" validate:"required,max=120"`
	Folder       models.DocumentFolder `json:"folder" validate:"required,folder"`
	Description  *string               `json:"description" validate:"omitempty,max=1000"`
	IsPublic     bool                  `json:"is_public"`
}

type CaseDocuments struct {
	Documents []models.Document                           `json:"documents"`
	ByFolder  map[models.DocumentFolder][]models.Document `json:"documents_by_folder"`
}

type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresIn int       `json:"expires_in"`
	Now       time.Time `json:"now"`
}

/* ============================== Service ================================= */

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	store  storage.ObjectStore
	urlTTL time.Duration
}

// NewService accepts a nil store; signed URLs then fall back to the stored URL.
func NewService(db *gorm.DB, logger *zap.Logger, store storage.ObjectStore, urlTTL time.Duration) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if urlTTL <= 0 {
		urlTTL = time.Minute
	}
	return &Service{db: db, logger: logger, store: store, urlTTL: urlTTL}
}

// load returns the document and its case.
func (s *Service) load(ctx context.Context, id uuid.UUID) (*models.Document, *models.Case, error) {
	var d models.Document
	if err := s.db.WithContext(ctx).Preload("Case").First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFoundf("document")
		}
		return nil, nil, err
	}
	if d.Case == nil {
		return nil, nil, apperr.NotFoundf("case")
	}
	return &d, d.Case, nil
}

// Register records an uploaded file against a case.
func (s *Service) Register(ctx context.Context, a policy.Actor, caseID uuid.UUID, in RegisterInput) (*models.Document, error) {
	if in.Folder == "" && a.Role == models.RoleClient {
		in.Folder = models.FolderClientUploads
	}
	if err := validation.Check(in); err != nil {
		return nil, err
	}

	cs, err := cases.Find(ctx, s.db, caseID)
	if err != nil {
		return nil, err
	}
	owner := policy.CaseOwner(cs)
	owner.Folder = in.Folder
	owner.UploadedByID = a.ID
	if err := policy.Authorize(policy.Document, policy.Create, a, owner); err != nil {
		return nil, err
	}

	doc := models.Document{
		CaseID:       cs.ID,
		UploadedByID: a.ID,
		Filename:     strings.TrimSpace(in.Filename),
		OriginalName: strings.TrimSpace(in.OriginalName),
		URL:          in.URL,
		StorageKey:   in.StorageKey,
		Size:         in.Size,
		MimeType:     in.MimeType,
		Folder:       in.Folder,
		Description:  in.Description,
		IsPublic:     in.IsPublic,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		return utils.AppendTimeline(ctx, tx, cs.ID, &a.ID, models.EventDocumentUploaded, "Document Uploaded",
			fmt.Sprintf("Document %q uploaded to %s", doc.OriginalName, doc.Folder))
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Preload("UploadedBy").First(&doc, "id = ?", doc.ID).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByCase returns the case's documents visible to the actor, newest first,
// and the same rows grouped by folder.
func (s *Service) ListByCase(ctx context.Context, a policy.Actor, caseID uuid.UUID) (*CaseDocuments, error) {
	if _, err := cases.Authorized(ctx, s.db, a, policy.Read, caseID); err != nil {
		return nil, err
	}

	var docs []models.Document
	if err := s.db.WithContext(ctx).
		Scopes(policy.Documents(a)).
		Preload("UploadedBy").
		Where("documents.case_id = ?", caseID).
		Order("documents.created_at DESC").
		Find(&docs).Error; err != nil {
		return nil, err
	}

	out := &CaseDocuments{Documents: docs, ByFolder: map[models.DocumentFolder][]models.Document{}}
	if out.Documents == nil {
		out.Documents = []models.Document{}
	}
	for _, d := range docs {
		out.ByFolder[d.Folder] = append(out.ByFolder[d.Folder], d)
	}
	return out, nil
}

// ListForClient returns the client's own uploads plus public documents on
// their cases.
func (s *Service) ListForClient(ctx context.Context, a policy.Actor) ([]models.Document, error) {
	if err := policy.Authorize(policy.Document, policy.List, a, policy.Owner{}); err != nil {
		return nil, err
	}
	docs := []models.Document{}
	err := s.db.WithContext(ctx).
		Joins("JOIN cases ON cases.id = documents.case_id").
		Where("documents.uploaded_by_id = ? OR (cases.client_id = ? AND documents.is_public = ?)", a.ID, a.ID, true).
		Preload("Case").Preload("UploadedBy").
		Order("documents.created_at DESC").
		Find(&docs).Error
	return docs, err
}

// ListLegal pages through litigation paperwork across all cases.
func (s *Service) ListLegal(ctx context.Context, a policy.Actor, p utils.Page) (utils.PageResult[models.Document], error) {
	if err := policy.Authorize(policy.Document, policy.ListLegal, a, policy.Owner{}); err != nil {
		return utils.PageResult[models.Document]{}, err
	}
	q := s.db.WithContext(ctx).Model(&models.Document{}).Where("folder IN ?", LegalFolders)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.PageResult[models.Document]{}, err
	}
	var docs []models.Document
	if err := q.Preload("Case").Preload("UploadedBy").
		Order("created_at DESC").Offset(p.Offset).Limit(p.Limit).
		Find(&docs).Error; err != nil {
		return utils.PageResult[models.Document]{}, err
	}
	return utils.Result(docs, total, p), nil
}

// Delete removes a document by id (uploader, LEGAL or ADMIN).
func (s *Service) Delete(ctx context.Context, a policy.Actor, id uuid.UUID) error {
	d, cs, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(policy.Document, policy.Delete, a, policy.DocumentOwner(d, cs)); err != nil {
		return err
	}
	return s.remove(ctx, d)
}

// DeleteFromCase removes a document through its case (assigned STAFF, the
// uploader, LEGAL or ADMIN).
func (s *Service) DeleteFromCase(ctx context.Context, a policy.Actor, caseID, id uuid.UUID) error {
	d, cs, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if d.CaseID != caseID {
		return apperr.NotFoundf("document")
	}
	if err := policy.Authorize(policy.Document, policy.DeleteFromCase, a, policy.DocumentOwner(d, cs)); err != nil {
		return err
	}
	return s.remove(ctx, d)
}

func (s *Service) remove(ctx context.Context, d *models.Document) error {
	if err := s.db.WithContext(ctx).Delete(&models.Document{}, "id = ?", d.ID).Error; err != nil {
		return err
	}
	if s.store != nil && d.StorageKey != "" {
		if err := s.store.Delete(ctx, d.StorageKey); err != nil {
			s.logger.Warn("stored object not removed",
				zap.String("document_id", d.ID.String()),
				zap.String("key", d.StorageKey),
				zap.Error(err))
		}
	}
	return nil
}

// UpdateVisibility flips whether clients can see the document.
func (s *Service) UpdateVisibility(ctx context.Context, a policy.Actor, id uuid.UUID, isPublic bool) (*models.Document, error) {
	d, cs, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.Document, policy.UpdateVisibility, a, policy.DocumentOwner(d, cs)); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", d.ID).Update("is_public", isPublic).Error; err != nil {
		return nil, err
	}

	var out models.Document
	if err := s.db.WithContext(ctx).Preload("UploadedBy").First(&out, "id = ?", d.ID).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// SignedURL returns a short-lived download link for a readable document.
func (s *Service) SignedURL(ctx context.Context, a policy.Actor, id uuid.UUID) (*SignedURL, error) {
	d, cs, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.Document, policy.Read, a, policy.DocumentOwner(d, cs)); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if s.store == nil || d.StorageKey == "" {
		return &SignedURL{URL: d.URL, Now: now}, nil
	}
	url, err := s.store.SignedURL(ctx, d.StorageKey, s.urlTTL)
	if err != nil {
		return nil, apperr.Wrap(err, "sign document url")
	}
	return &SignedURL{URL: url, ExpiresIn: int(s.urlTTL.Seconds()), Now: now}, nil
}
