// Package api holds the JSON envelope shared by every handler.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/cloo-solutions/aura/internal/domain"
)

// Envelope is the body of every successful response: {"data": ...}.
type Envelope struct {
	Data any `json:"data"`
}

// Problem is the body of every failed response.
type Problem struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var statusByCode = map[string]int{
	domain.ErrCodeValidation:             http.StatusBadRequest,
	domain.ErrCodeInvalidParameter:       http.StatusBadRequest,
	domain.ErrCodeInvalidQuizState:       http.StatusBadRequest,
	domain.ErrCodeUnauthorized:           http.StatusUnauthorized,
	domain.ErrCodeNotFound:               http.StatusNotFound,
	domain.ErrCodeAlreadyExists:          http.StatusConflict,
	domain.ErrCodeVersionConflict:        http.StatusConflict,
	domain.ErrCodeEmbeddingUnavailable:   http.StatusServiceUnavailable,
	domain.ErrCodeGenerationUnavailable:  http.StatusServiceUnavailable,
	domain.ErrCodeVectorIndexUnavailable: http.StatusServiceUnavailable,
}

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Problem{Error: message})
}

// StatusFor maps err to an HTTP status. Errors without a domain code are 500.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		if status, ok := statusByCode[de.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// HandleError writes err as a Problem. For 5xx only the domain message goes
// out; the full chain is logged.
func HandleError(w http.ResponseWriter, err error) {
	status := StatusFor(err)

	var de *domain.DomainError
	isDomain := errors.As(err, &de)

	body := Problem{Error: err.Error()}
	if isDomain {
		body.Code = de.Code
	}
	if status >= http.StatusInternalServerError {
		log.Printf("api: %d: %v", status, err)
		body.Error = http.StatusText(status)
		if isDomain {
			body.Error = de.Message
		}
	}
	JSON(w, status, body)
}
