package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scholarproof/api/model"
	"github.com/scholarproof/api/services/permastore"
	"github.com/scholarproof/api/services/render"
	"github.com/scholarproof/api/services/storage"
	"github.com/scholarproof/api/utils/pdfvalidation"
)

var (
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrStudentNotFound     = errors.New("student not found")
	ErrSessionNotFound     = errors.New("session not found")
	// ErrRevokedCertificate blocks export and download of revoked
	// certificates in every view
	ErrRevokedCertificate = errors.New("certificate has been revoked")
)

// CertificateService orchestrates the certificate lifecycle:
// create -> render -> export -> archive, plus the revoke/restore flag flip.
type CertificateService struct {
	db        *gorm.DB
	permanent *permastore.Client
	spaces    *storage.SpacesClient
}

// NewCertificateService creates a new certificate service. The permanent
// storage and object storage clients are optional; without them issued
// certificates simply stay unarchived.
func NewCertificateService(db *gorm.DB, permanent *permastore.Client, spaces *storage.SpacesClient) *CertificateService {
	return &CertificateService{
		db:        db,
		permanent: permanent,
		spaces:    spaces,
	}
}

// IssueParams are the inputs collected by the issuing form
type IssueParams struct {
	StudentID   uint
	SessionID   uint
	Title       string
	Description string
}

// Issue inserts a new certificate row in the issued (unarchived) state
func (s *CertificateService) Issue(ctx context.Context, params IssueParams) (*model.Certificate, error) {
	var student model.User
	if err := s.db.WithContext(ctx).First(&student, params.StudentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	if student.Role != model.RoleStudent {
		return nil, ErrStudentNotFound
	}

	var session model.Session
	if err := s.db.WithContext(ctx).First(&session, params.SessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	cert := model.Certificate{
		StudentID:   params.StudentID,
		SessionID:   params.SessionID,
		Title:       params.Title,
		Description: params.Description,
		UploadedAt:  time.Now().UTC(),
		VerifyID:    uuid.New(),
	}

	if err := s.db.WithContext(ctx).Create(&cert).Error; err != nil {
		return nil, err
	}

	cert.Student = student
	cert.Session = session
	return &cert, nil
}

// Get loads a certificate with its student and session
func (s *CertificateService) Get(ctx context.Context, id uint) (*model.Certificate, error) {
	var cert model.Certificate
	err := s.db.WithContext(ctx).
		Preload("Student").
		Preload("Session").
		First(&cert, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCertificateNotFound
		}
		return nil, err
	}
	return &cert, nil
}

// renderFields builds the template inputs from a loaded certificate
func renderFields(cert *model.Certificate) render.Fields {
	return render.Fields{
		StudentName: cert.Student.Name,
		Title:       cert.Title,
		Description: cert.Description,
		DateIssued:  cert.UploadedAt,
		SessionName: cert.Session.Name,
		Revoked:     cert.Revoked,
	}
}

// Export renders and exports a certificate document. Revoked certificates
// have no download affordance anywhere, so export refuses them outright.
func (s *CertificateService) Export(ctx context.Context, id uint, format render.Format) ([]byte, error) {
	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert.Revoked {
		return nil, ErrRevokedCertificate
	}

	return s.exportDocument(cert, format)
}

func (s *CertificateService) exportDocument(cert *model.Certificate, format render.Format) ([]byte, error) {
	doc, err := render.Template(renderFields(cert))
	if err != nil {
		return nil, err
	}

	data, err := render.Export(doc, format)
	if err != nil {
		return nil, err
	}

	if format == render.FormatPDF {
		if err := pdfvalidation.ValidateExport(data); err != nil {
			return nil, err
		}
	}

	return data, nil
}

// Archive exports the certificate as a PDF, stores a retrievable copy in
// object storage when configured, and anchors the document to the
// permanent storage network. On any failure the record keeps its last
// persisted state: permanent_url stays empty and the caller may retry.
func (s *CertificateService) Archive(ctx context.Context, id uint) (*model.Certificate, error) {
	if s.permanent == nil {
		return nil, fmt.Errorf("%w: no client configured", permastore.ErrArchiveFailed)
	}

	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert.Revoked {
		return nil, ErrRevokedCertificate
	}
	if cert.Archived() {
		return cert, nil
	}

	data, err := s.exportDocument(cert, render.FormatPDF)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}

	if s.spaces != nil {
		key := fmt.Sprintf("certificates/%s.pdf", cert.VerifyID)
		storageURL, err := s.spaces.UploadBytes(ctx, key, data, render.FormatPDF.ContentType())
		if err == nil {
			updates["storage_url"] = storageURL
		}
		// An object-storage failure is not fatal: the permanent locator is
		// the authoritative copy
	}

	receipt, err := s.permanent.Upload(ctx, data, render.FormatPDF.ContentType())
	if err != nil {
		return nil, err
	}

	updates["permanent_url"] = receipt.URL
	updates["permanent_tx_id"] = receipt.TxID

	if err := s.db.WithContext(ctx).Model(cert).Updates(updates).Error; err != nil {
		return nil, err
	}

	return cert, nil
}

// SetRevoked flips the revoked flag. The operation is idempotent, works on
// archived and unarchived certificates identically, and a later restore
// keeps the original locator.
func (s *CertificateService) SetRevoked(ctx context.Context, id uint, revoked bool) (*model.Certificate, error) {
	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if cert.Revoked == revoked {
		return cert, nil
	}

	if err := s.db.WithContext(ctx).Model(cert).Update("revoked", revoked).Error; err != nil {
		return nil, err
	}

	cert.Revoked = revoked
	return cert, nil
}

// Regenerate re-exports the document, refreshes the object-storage copy and
// stamps regenerated_at. The permanent locator is write-once and unchanged.
func (s *CertificateService) Regenerate(ctx context.Context, id uint) (*model.Certificate, error) {
	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert.Revoked {
		return nil, ErrRevokedCertificate
	}

	data, err := s.exportDocument(cert, render.FormatPDF)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{"regenerated_at": &now}

	if s.spaces != nil {
		key := fmt.Sprintf("certificates/%s.pdf", cert.VerifyID)
		if storageURL, err := s.spaces.UploadBytes(ctx, key, data, render.FormatPDF.ContentType()); err == nil {
			updates["storage_url"] = storageURL
		}
	}

	if err := s.db.WithContext(ctx).Model(cert).Updates(updates).Error; err != nil {
		return nil, err
	}

	return cert, nil
}

// VerifyResult is the public verification view of a certificate
type VerifyResult struct {
	Valid        bool       `json:"valid"`
	Title        string     `json:"title,omitempty"`
	StudentName  string     `json:"student_name,omitempty"`
	SessionName  string     `json:"session_name,omitempty"`
	IssuedAt     *time.Time `json:"issued_at,omitempty"`
	PermanentURL string     `json:"permanent_url,omitempty"`
}

// Verify resolves a public verification ID. Revoked certificates are never
// presented as valid and expose no detail beyond their invalidity.
func (s *CertificateService) Verify(ctx context.Context, verifyID uuid.UUID) (*VerifyResult, error) {
	var cert model.Certificate
	err := s.db.WithContext(ctx).
		Preload("Student").
		Preload("Session").
		Where("verify_id = ?", verifyID).
		First(&cert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCertificateNotFound
		}
		return nil, err
	}

	if cert.Revoked {
		return &VerifyResult{Valid: false}, nil
	}

	issued := cert.UploadedAt
	return &VerifyResult{
		Valid:        true,
		Title:        cert.Title,
		StudentName:  cert.Student.Name,
		SessionName:  cert.Session.Name,
		IssuedAt:     &issued,
		PermanentURL: cert.PermanentURL,
	}, nil
}
