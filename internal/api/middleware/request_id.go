// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"

	"github.com/ManuGH/dmaic/internal/log"
	"github.com/google/uuid"
)

// HeaderRequestID is the canonical header for request correlation.
const HeaderRequestID = "X-Request-ID"

// HeaderCorrelationID ties several requests of one client workflow together.
const HeaderCorrelationID = "X-Correlation-ID"

// maxRequestIDLen bounds client supplied ids before they reach logs.
const maxRequestIDLen = 128

// RequestID adds a unique ID to every request, keeping a client supplied one.
// A client correlation id is echoed and carried in the context as is.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, reqID)
		ctx := log.ContextWithRequestID(r.Context(), reqID)
		if cid := r.Header.Get(HeaderCorrelationID); cid != "" && len(cid) <= maxRequestIDLen {
			w.Header().Set(HeaderCorrelationID, cid)
			ctx = log.ContextWithCorrelationID(ctx, cid)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
