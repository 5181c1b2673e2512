// Package responses writes the API's JSON bodies: { "data": ... } for
// resources, flat objects for the storefront's legacy shapes and one error
// envelope for every failure.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"

	pkgerrors "github.com/sabunku/storefront-backend/pkg/errors"
	"github.com/sabunku/storefront-backend/pkg/logger"
	"github.com/sabunku/storefront-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteJSON writes payload without an envelope.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, payload)
}

// WriteAck writes { "success": true }.
func WriteAck(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, types.Ack{Success: true})
}

// WriteError renders err as an ErrorEnvelope. Untyped errors become
// INTERNAL_ERROR (or NOT_FOUND for gorm's sentinel) and never leak their text.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := classify(err)
	meta := pkgerrors.MetadataFor(typed.Code())

	body := types.ErrorEnvelope{
		Error:  publicMessage(typed, meta),
		Code:   string(typed.Code()),
		Reason: string(typed.Reason()),
	}
	if meta.DetailsAllowed {
		body.Details = typed.Details()
	}
	if logg != nil {
		logError(ctx, logg, typed, meta.HTTPStatus)
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, meta.HTTPStatus, body)
}

func classify(err error) *pkgerrors.Error {
	switch {
	case err == nil:
		return pkgerrors.New(pkgerrors.CodeInternal, "unknown error")
	case pkgerrors.As(err) != nil:
		return pkgerrors.As(err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "resource not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
}

// publicMessage keeps internal error text off the wire.
func publicMessage(typed *pkgerrors.Error, meta pkgerrors.Metadata) string {
	if typed.Code() == pkgerrors.CodeInternal || typed.Message() == "" {
		return meta.PublicMessage
	}
	return typed.Message()
}

func logError(ctx context.Context, logg *logger.Logger, typed *pkgerrors.Error, status int) {
	fields := pkgerrors.Dump(typed).Fields()
	fields["error_code"] = string(typed.Code())
	fields["http_status"] = status
	if reason := typed.Reason(); reason != "" {
		fields["error_reason"] = string(reason)
	}
	ctx = logg.WithFields(ctx, fields)
	if status >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", typed)
		return
	}
	logg.Warn(ctx, "request.rejected")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zlog.Error().Err(err).Int("status", status).Msg("encode response body")
	}
}
