// Package respond writes JSON replies and reads the error bodies the task
// backend sends back.
package respond

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 4096

// ErrorBody is the error shape shared with the backend; it answers with
// either field.
type ErrorBody struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (b ErrorBody) Text() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}

type RedirectBody struct {
	Redirect string `json:"redirect"`
}

func JSON(w http.ResponseWriter, r *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func Error(w http.ResponseWriter, r *http.Request, code int, message string) {
	JSON(w, r, code, ErrorBody{Error: message})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Redirect answers 303 See Other; the target goes in Location and in the body
// so API callers that do not follow redirects still see it.
func Redirect(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Location", path)
	JSON(w, r, http.StatusSeeOther, RedirectBody{Redirect: path})
}

// ReadError returns the message of an error body, or its trimmed text when
// the body is not JSON.
func ReadError(body io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(b) == 0 {
		return ""
	}
	var eb ErrorBody
	if json.Unmarshal(b, &eb) == nil {
		if text := eb.Text(); text != "" {
			return text
		}
	}
	return strings.TrimSpace(string(b))
}
