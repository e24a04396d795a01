package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/cloo-solutions/aura/internal/api"
	"github.com/cloo-solutions/aura/internal/api/middleware"
	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/extract"
	"github.com/cloo-solutions/aura/internal/service"
	"github.com/go-chi/chi/v5"
)

// DefaultMaxUploadBytes caps a single uploaded file.
const DefaultMaxUploadBytes int64 = 5 * 1024 * 1024

type DocumentService interface {
	Upload(ctx context.Context, input service.UploadInput) (*service.UploadOutput, error)
	GetDocument(ctx context.Context, ownerID, documentID string) (*service.DocumentOutput, error)
	DownloadURL(ctx context.Context, ownerID, documentID string) (string, error)
}

type DocumentHandler struct {
	svc      DocumentService
	maxBytes int64
}

func NewDocumentHandler(svc DocumentService, maxBytes int64) *DocumentHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &DocumentHandler{svc: svc, maxBytes: maxBytes}
}

type IngestJobResponse struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	Retries     int32   `json:"retries"`
	Error       string  `json:"error,omitempty"`
	CreatedAt   string  `json:"created_at"`
	ProcessedAt *string `json:"processed_at,omitempty"`
}

type DocumentResponse struct {
	ID           string             `json:"id"`
	Filename     string             `json:"filename"`
	ContentType  string             `json:"content_type"`
	Characters   int                `json:"characters"`
	SupersedesID string             `json:"supersedes_id,omitempty"`
	Archived     bool               `json:"archived"`
	CreatedAt    string             `json:"created_at"`
	Job          *IngestJobResponse `json:"job,omitempty"`
}

type DownloadURLResponse struct {
	DownloadURL string `json:"download_url"`
}

func documentToResponse(doc *domain.Document, job *domain.IngestJob) *DocumentResponse {
	resp := &DocumentResponse{
		ID:           doc.ID,
		Filename:     doc.Filename,
		ContentType:  doc.ContentType,
		Characters:   len([]rune(doc.RawText)),
		SupersedesID: doc.SupersedesID,
		Archived:     doc.StorageKey != "",
		CreatedAt:    doc.CreatedAt.UTC().Format(time.RFC3339),
	}
	if job != nil {
		resp.Job = &IngestJobResponse{
			ID:        job.ID,
			Status:    string(job.Status),
			Retries:   job.Retries,
			Error:     job.Error,
			CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		}
		if job.ProcessedAt != nil {
			processed := job.ProcessedAt.UTC().Format(time.RFC3339)
			resp.Job.ProcessedAt = &processed
		}
	}
	return resp
}

// Upload accepts a multipart "file", extracts its text and queues ingestion.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			h.tooLarge(w)
			return
		}
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		h.tooLarge(w)
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		if isTooLarge(err) {
			h.tooLarge(w)
			return
		}
		api.Error(w, http.StatusBadRequest, "could not read file")
		return
	}
	if int64(len(data)) > h.maxBytes {
		h.tooLarge(w)
		return
	}

	filename := filepath.Base(header.Filename)
	extracted, err := extract.Extract(filename, data)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out, err := h.svc.Upload(r.Context(), service.UploadInput{
		OwnerID:     userID,
		Filename:    filename,
		ContentType: extracted.ContentType,
		Data:        data,
		Text:        extracted.Text,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(out.Document, out.Job))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	out, err := h.svc.GetDocument(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(out.Document, out.Job))
}

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	url, err := h.svc.DownloadURL(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DownloadURLResponse{DownloadURL: url})
}

func (h *DocumentHandler) tooLarge(w http.ResponseWriter) {
	api.Error(w, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("file too large: maximum size is %d MB", h.maxBytes/(1024*1024)))
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge)
}
