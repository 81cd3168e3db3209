package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/veridian-dash/veridian/api/common"
	"github.com/veridian-dash/veridian/lib/entity"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Warningf("encode response: %v", err)
	}
}

func writeOk[T any](w http.ResponseWriter, data T) {
	writeJSON(w, http.StatusOK, common.Ok(data))
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, common.Fail(msg))
}

// writeError translates entity errors into statuses. Anything else is a 500 and logged.
func writeError(w http.ResponseWriter, err error) {
	var e *entity.Error
	if errors.As(err, &e) {
		switch e.Code {
		case entity.RetCValidation:
			writeFail(w, http.StatusBadRequest, e.Msg)
			return
		case entity.RetCNotFound:
			writeFail(w, http.StatusNotFound, e.Msg)
			return
		case entity.RetCDuplicateID, entity.RetCBusy:
			writeFail(w, http.StatusConflict, e.Msg)
			return
		}
	}
	Logger.Errorf("request failed: %v", err)
	writeFail(w, http.StatusInternalServerError, "internal server error")
}

// decodeBody decodes the JSON request body into v. On failure the 400 response is
// already written and false is returned.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeFail(w, http.StatusBadRequest, msgInvalidJSON)
		return false
	}
	return true
}
