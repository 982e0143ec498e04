package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/fyrsmithlabs/fabled/internal/embeddings"
	"github.com/fyrsmithlabs/fabled/internal/llm"
	"github.com/fyrsmithlabs/fabled/internal/rag"
	"github.com/fyrsmithlabs/fabled/internal/vectorstore"
)

// Stable error codes. Callers distinguish outcomes by these, not by
// message text.
const (
	codeInvalidRequest      = "invalid_request"
	codeUnknownProvider     = "unknown_provider"
	codeUnknownModel        = "unknown_model"
	codeNotFound            = "not_found"
	codeCollectionMissing   = "collection_missing"
	codeIndexUnavailable    = "index_unavailable"
	codeProviderTimeout     = "provider_timeout"
	codeProviderUnavailable = "provider_unavailable"
	codeProviderOutput      = "provider_output"
	codeInternal            = "internal"
)

// mapError maps a pipeline error to its HTTP status and stable code.
// "No results" is never an error; anything here is a real failure.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, rag.ErrEmptyQuery),
		errors.Is(err, rag.ErrInvalidLimit),
		errors.Is(err, vectorstore.ErrInvalidLimit),
		errors.Is(err, embeddings.ErrEmptyInput),
		errors.Is(err, embeddings.ErrTextTooLong):
		return http.StatusBadRequest, codeInvalidRequest
	case errors.Is(err, llm.ErrUnknownProvider):
		return http.StatusBadRequest, codeUnknownProvider
	case errors.Is(err, llm.ErrUnknownModel):
		return http.StatusBadRequest, codeUnknownModel
	case errors.Is(err, vectorstore.ErrFableNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, vectorstore.ErrCollectionMissing):
		return http.StatusServiceUnavailable, codeCollectionMissing
	case errors.Is(err, vectorstore.ErrConnectionFailed):
		return http.StatusServiceUnavailable, codeIndexUnavailable
	case errors.Is(err, llm.ErrTimeout):
		return http.StatusGatewayTimeout, codeProviderTimeout
	case errors.Is(err, llm.ErrUnavailable):
		return http.StatusBadGateway, codeProviderUnavailable
	case errors.Is(err, llm.ErrEmptyOutput):
		return http.StatusBadGateway, codeProviderOutput
	case errors.Is(err, context.Canceled):
		// Client went away; 499 is conventional but non-standard.
		return 499, codeInternal
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func errorBody(code, message string) ErrorBody {
	return ErrorBody{Error: ErrorDetail{Code: code, Message: message}}
}
