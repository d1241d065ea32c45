package evidence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/evidence"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/storage"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const thumbnailSize = 320

type EvidenceServiceImpl struct {
	evidence.ItemRepository
	evidence.TemplateRepository
	recordRepo   attendance.RecordRepository
	employeeRepo employee.EmployeeRepository
	matcher      evidence.Matcher
	storage      storage.FileStorage
	txRunner     database.TxRunner
	listLimit    int
}

func NewEvidenceService(
	itemRepo evidence.ItemRepository,
	templateRepo evidence.TemplateRepository,
	recordRepo attendance.RecordRepository,
	employeeRepo employee.EmployeeRepository,
	matcher evidence.Matcher,
	fileStorage storage.FileStorage,
	txRunner database.TxRunner,
	listLimit int,
) evidence.EvidenceService {
	return &EvidenceServiceImpl{
		ItemRepository:     itemRepo,
		TemplateRepository: templateRepo,
		recordRepo:         recordRepo,
		employeeRepo:       employeeRepo,
		matcher:            matcher,
		storage:            fileStorage,
		txRunner:           txRunner,
		listLimit:          listLimit,
	}
}

// Verify implements evidence.EvidenceService.
func (s *EvidenceServiceImpl) Verify(ctx context.Context, c evidence.Capture) (string, error) {
	tpl, err := s.TemplateRepository.Get(ctx, c.CompanyID, c.EmployeeID, c.Modality)
	if err != nil {
		return "", fmt.Errorf("failed to get biometric template: %w", err)
	}
	if tpl == nil {
		return "", evidence.ErrBiometricNotEnrolled
	}

	enrolled, err := s.readObject(ctx, tpl.ImageRef)
	if err != nil {
		return "", err
	}

	ok, err := s.matcher.Match(ctx, *tpl, enrolled, c.Image)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", evidence.ErrBiometricMismatch
	}
	return evidence.HashHex(c.Image), nil
}

func (s *EvidenceServiceImpl) readObject(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.storage.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open biometric template: %w", err)
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, evidence.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read biometric template: %w", err)
	}
	return b, nil
}

// Record implements evidence.EvidenceService. An empty recordID stores
// evidence that belongs to no attendance record, as for enrollment.
func (s *EvidenceServiceImpl) Record(ctx context.Context, recordID string, event evidence.EventType, c evidence.Capture, hash string) (evidence.Item, error) {
	img, err := imaging.Decode(bytes.NewReader(c.Image), imaging.AutoOrientation(true))
	if err != nil {
		return evidence.Item{}, fmt.Errorf("%w: %v", evidence.ErrImageEncoding, err)
	}
	if hash == "" {
		hash = evidence.HashHex(c.Image)
	}

	id := uuid.Must(uuid.NewV7()).String()
	dir := fmt.Sprintf("evidence/%s/%s/", c.CompanyID, c.EmployeeID)

	imageRef, err := s.storage.Upload(ctx, bytes.NewReader(c.Image), dir+id+"."+evidence.Extension(c.MIME), c.MIME)
	if err != nil {
		return evidence.Item{}, fmt.Errorf("failed to store evidence image: %w", err)
	}
	uploaded := []string{imageRef}

	var thumb bytes.Buffer
	var thumbRef *string
	if err := imaging.Encode(&thumb, imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos), imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		slog.Warn("Failed to encode evidence thumbnail", "evidence_id", id, "error", err)
	} else if ref, err := s.storage.Upload(ctx, &thumb, dir+id+"_thumb.jpg", "image/jpeg"); err != nil {
		slog.Warn("Failed to store evidence thumbnail", "evidence_id", id, "error", err)
	} else {
		thumbRef = &ref
		uploaded = append(uploaded, ref)
	}

	item := evidence.Item{
		ID:           id,
		CompanyID:    c.CompanyID,
		EmployeeID:   c.EmployeeID,
		EventType:    event,
		Modality:     c.Modality,
		Matched:      true,
		SHA256:       hash,
		Latitude:     c.Latitude,
		Longitude:    c.Longitude,
		AccuracyM:    c.AccuracyM,
		MIME:         c.MIME,
		ImageRef:     imageRef,
		ThumbnailRef: thumbRef,
	}
	if recordID != "" {
		item.AttendanceRecordID = &recordID
	}

	created, err := s.ItemRepository.Create(ctx, item)
	if err != nil {
		s.discard(uploaded)
		return evidence.Item{}, err
	}
	return created, nil
}

// discard removes objects whose row never committed.
func (s *EvidenceServiceImpl) discard(keys []string) {
	for _, key := range keys {
		if err := s.storage.Delete(context.Background(), key); err != nil {
			slog.Error("Failed to remove orphaned evidence object", "key", key, "error", err)
		}
	}
}

// Enroll implements evidence.EvidenceService.
func (s *EvidenceServiceImpl) Enroll(ctx context.Context, p auth.Principal, req evidence.EnrollRequest) (evidence.ItemResponse, error) {
	if err := req.Validate(); err != nil {
		return evidence.ItemResponse{}, err
	}

	employeeID, err := p.ScopeEmployee(req.EmployeeID)
	if err != nil {
		return evidence.ItemResponse{}, err
	}
	emp, err := s.employeeRepo.GetByID(ctx, employeeID, p.CompanyID)
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return evidence.ItemResponse{}, attendance.ErrUnknownEmployee
		}
		return evidence.ItemResponse{}, err
	}
	if !emp.IsActive() {
		return evidence.ItemResponse{}, attendance.ErrUnknownEmployee
	}

	capture := req.Capture(p.CompanyID)
	capture.EmployeeID = emp.ID

	var item evidence.Item
	err = s.txRunner.Do(ctx, func(txCtx context.Context) error {
		var err error
		item, err = s.Record(txCtx, "", evidence.EventEnroll, capture, "")
		if err != nil {
			return err
		}
		_, err = s.TemplateRepository.Upsert(txCtx, evidence.Template{
			CompanyID:  p.CompanyID,
			EmployeeID: emp.ID,
			Modality:   capture.Modality,
			SHA256:     item.SHA256,
			MIME:       item.MIME,
			ImageRef:   item.ImageRef,
		})
		return err
	})
	if err != nil {
		if item.ID != "" {
			keys := []string{item.ImageRef}
			if item.ThumbnailRef != nil {
				keys = append(keys, *item.ThumbnailRef)
			}
			s.discard(keys)
		}
		return evidence.ItemResponse{}, err
	}

	slog.Info("Biometric enrolled", "company_id", p.CompanyID, "employee_id", emp.ID, "modality", capture.Modality)
	return s.toResponse(item), nil
}

// ListByRecord implements evidence.EvidenceService.
func (s *EvidenceServiceImpl) ListByRecord(ctx context.Context, p auth.Principal, recordID string) ([]evidence.ItemResponse, error) {
	rec, err := s.recordRepo.GetByID(ctx, recordID, p.CompanyID)
	if err != nil {
		return nil, err
	}
	if _, err := p.ScopeEmployee(rec.EmployeeID); err != nil {
		return nil, err
	}

	items, err := s.ItemRepository.ListByRecord(ctx, p.CompanyID, recordID, s.listLimit)
	if err != nil {
		return nil, err
	}

	out := make([]evidence.ItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, s.toResponse(it))
	}
	return out, nil
}

// OpenImage implements evidence.EvidenceService.
func (s *EvidenceServiceImpl) OpenImage(ctx context.Context, p auth.Principal, id string, variant evidence.ImageVariant) (evidence.ImageObject, error) {
	if _, err := uuid.Parse(id); err != nil {
		return evidence.ImageObject{}, evidence.ErrEvidenceNotFound
	}
	it, err := s.ItemRepository.GetByID(ctx, p.CompanyID, id)
	if err != nil {
		return evidence.ImageObject{}, err
	}
	if _, err := p.ScopeEmployee(it.EmployeeID); err != nil {
		return evidence.ImageObject{}, err
	}

	obj := evidence.ImageObject{MIME: it.MIME, SHA256: it.SHA256}
	key := it.ImageRef
	if variant == evidence.ImageThumbnail {
		if it.ThumbnailRef == nil {
			return evidence.ImageObject{}, evidence.ErrEvidenceNotFound
		}
		key = *it.ThumbnailRef
		obj = evidence.ImageObject{MIME: "image/jpeg"}
	}

	body, err := s.storage.Download(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.Error("Evidence image missing from storage", "evidence_id", it.ID, "key", key)
			return evidence.ImageObject{}, evidence.ErrEvidenceNotFound
		}
		return evidence.ImageObject{}, err
	}
	obj.Body = body
	return obj, nil
}

func (s *EvidenceServiceImpl) toResponse(it evidence.Item) evidence.ItemResponse {
	resp := evidence.ItemResponse{
		ID:                 it.ID,
		AttendanceRecordID: it.AttendanceRecordID,
		EmployeeID:         it.EmployeeID,
		EventType:          it.EventType,
		Modality:           it.Modality,
		Matched:            it.Matched,
		SHA256:             it.SHA256,
		Latitude:           it.Latitude,
		Longitude:          it.Longitude,
		AccuracyM:          it.AccuracyM,
		MIME:               it.MIME,
		ImageURL:           evidence.ImagePath(it.ID, evidence.ImageOriginal),
		CreatedAt:          it.CreatedAt,
	}
	if it.ThumbnailRef != nil {
		u := evidence.ImagePath(it.ID, evidence.ImageThumbnail)
		resp.ThumbnailURL = &u
	}
	return resp
}
