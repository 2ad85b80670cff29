package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/taransay/taransayd/pkg/httpx"
	"github.com/taransay/taransayd/pkg/ingest"
	"github.com/taransay/taransayd/pkg/meta"
)

// respondError is the single error-translation boundary: domain errors map
// to their status and envelope here, never ad hoc in handlers. Anything
// unrecognized (storage engine failures included) is a 500.
func respondError(w http.ResponseWriter, err error) {
	var nf *meta.NotFoundError
	var cnf *meta.ChannelNotFoundError
	var ve *ingest.ValidationError

	switch {
	case errors.As(err, &nf):
		httpx.RespondEnvelope(w, http.StatusNotFound, nf.Error())
	case errors.As(err, &cnf):
		httpx.RespondEnvelope(w, http.StatusNotFound, cnf.Error())
	case errors.As(err, &ve):
		httpx.RespondEnvelope(w, http.StatusUnprocessableEntity, ve.Fields)
	default:
		log.Printf("internal error: %v", err)
		httpx.RespondEnvelope(w, http.StatusInternalServerError, "internal server error")
	}
}
