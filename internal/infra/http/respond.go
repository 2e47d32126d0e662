package http

import (
	"encoding/json"
	"net/http"
)

// ErrorBody тело ответа с ошибкой.
type ErrorBody struct {
	Detail any `json:"detail"`
}

// WriteJSON сериализует v со статусом status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError отвечает {"detail": detail}.
func WriteError(w http.ResponseWriter, status int, detail any) {
	WriteJSON(w, status, ErrorBody{Detail: detail})
}
