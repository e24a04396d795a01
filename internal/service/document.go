package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/storage"
	"github.com/cloo-solutions/aura/internal/telemetry"
)

// DocumentRepository persists uploaded documents.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	// FindLatestByOwnerAndFilename returns ErrDocumentNotFound when the owner
	// never uploaded filename.
	FindLatestByOwnerAndFilename(ctx context.Context, ownerID, filename string) (*domain.Document, error)
}

// IngestJobRepository persists ingest jobs.
type IngestJobRepository interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	GetLatestByDocument(ctx context.Context, documentID string) (*domain.IngestJob, error)
}

// ObjectStorage archives original uploads.
type ObjectStorage interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// Ingester turns a stored document into searchable chunks.
type Ingester interface {
	Ingest(ctx context.Context, doc *domain.Document) (*IngestResult, error)
}

var ErrEmptyDocumentText = domain.NewDomainError(domain.ErrCodeValidation, "document contains no extractable text")

type UploadInput struct {
	OwnerID     string
	Filename    string
	ContentType string
	Data        []byte
	Text        string
}

type UploadOutput struct {
	Document *domain.Document
	Job      *domain.IngestJob
}

type DocumentOutput struct {
	Document *domain.Document
	Job      *domain.IngestJob
}

// DocumentService accepts uploads and schedules their ingestion.
type DocumentService struct {
	docs     DocumentRepository
	jobs     IngestJobRepository
	storage  ObjectStorage
	ingester Ingester
	txRunner TxRunner
	uuidGen  UUIDGenerator
	now      func() time.Time
}

// NewDocumentService creates a new DocumentService. storage and txRunner may be nil.
func NewDocumentService(docs DocumentRepository, jobs IngestJobRepository, objects ObjectStorage, ingester Ingester, txRunner TxRunner) *DocumentService {
	return NewDocumentServiceWithUUIDGen(docs, jobs, objects, ingester, txRunner, &DefaultUUIDGenerator{})
}

// NewDocumentServiceWithUUIDGen creates a DocumentService with a custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(docs DocumentRepository, jobs IngestJobRepository, objects ObjectStorage, ingester Ingester, txRunner TxRunner, uuidGen UUIDGenerator) *DocumentService {
	return &DocumentService{
		docs:     docs,
		jobs:     jobs,
		storage:  objects,
		ingester: ingester,
		txRunner: txRunner,
		uuidGen:  uuidGen,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores a new immutable document and queues a pending ingest job.
// A previous upload of the same filename by the same owner is superseded.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*UploadOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Upload", telemetry.SpanAttributes{
		UserID:    input.OwnerID,
		Operation: "upload",
	})
	defer span.End()

	if input.OwnerID == "" || input.Filename == "" {
		return nil, domain.ErrMissingRequiredField
	}
	if strings.TrimSpace(input.Text) == "" {
		return nil, ErrEmptyDocumentText
	}

	doc := &domain.Document{
		ID:          s.uuidGen.NewString(),
		OwnerID:     input.OwnerID,
		Filename:    input.Filename,
		ContentType: input.ContentType,
		RawText:     input.Text,
		CreatedAt:   s.now(),
	}

	prev, err := s.docs.FindLatestByOwnerAndFilename(ctx, input.OwnerID, input.Filename)
	switch {
	case err == nil:
		doc.SupersedesID = prev.ID
	case !errors.Is(err, domain.ErrDocumentNotFound):
		return nil, fmt.Errorf("failed to look up previous upload: %w", err)
	}

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	if s.storage != nil && len(input.Data) > 0 {
		key := storage.DocumentKey(doc.OwnerID, doc.ID, doc.Filename)
		if err := s.storage.PutObject(ctx, key, input.Data, input.ContentType); err != nil {
			return nil, domain.ErrStorageOperationFail.WithCause(err)
		}
		doc.StorageKey = key
	}

	job := domain.NewIngestJob(s.uuidGen.NewString(), doc.ID, domain.IngestJobStatusPending, 0, "", doc.CreatedAt, nil)

	if err := s.persist(ctx, doc, job); err != nil {
		if doc.StorageKey != "" {
			if derr := s.storage.DeleteObject(ctx, doc.StorageKey); derr != nil {
				log.Printf("failed to remove orphaned object %s: %v", doc.StorageKey, derr)
			}
		}
		return nil, err
	}

	return &UploadOutput{Document: doc, Job: job}, nil
}

func (s *DocumentService) persist(ctx context.Context, doc *domain.Document, job *domain.IngestJob) error {
	write := func(docs DocumentRepository, jobs IngestJobRepository) error {
		if err := docs.Create(ctx, doc); err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		if err := jobs.Create(ctx, job); err != nil {
			return fmt.Errorf("failed to create ingest job: %w", err)
		}
		return nil
	}

	if s.txRunner == nil {
		return write(s.docs, s.jobs)
	}
	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		return write(repos.Documents(), repos.IngestJobs())
	})
}

// ProcessDocument runs ingestion for a stored document. It is called by the
// ingest worker and is safe to repeat.
func (s *DocumentService) ProcessDocument(ctx context.Context, documentID string) (*IngestResult, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return s.ingester.Ingest(ctx, doc)
}

// GetDocument returns a document of ownerID with its latest ingest job.
// Documents of other owners are reported as not found.
func (s *DocumentService) GetDocument(ctx context.Context, ownerID, documentID string) (*DocumentOutput, error) {
	doc, err := s.owned(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}

	out := &DocumentOutput{Document: doc}
	job, err := s.jobs.GetLatestByDocument(ctx, documentID)
	if err == nil {
		out.Job = job
	} else if !domain.HasCode(err, domain.ErrCodeNotFound) {
		return nil, err
	}
	return out, nil
}

// DownloadURL returns a presigned URL for the archived original file.
func (s *DocumentService) DownloadURL(ctx context.Context, ownerID, documentID string) (string, error) {
	doc, err := s.owned(ctx, ownerID, documentID)
	if err != nil {
		return "", err
	}
	if s.storage == nil || doc.StorageKey == "" {
		return "", domain.NewDomainError(domain.ErrCodeNotFound, "document has no archived file")
	}

	url, err := s.storage.GenerateDownloadURL(ctx, doc.StorageKey)
	if err != nil {
		return "", domain.ErrStorageOperationFail.WithCause(err)
	}
	return url, nil
}

func (s *DocumentService) owned(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}
