package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ahmethakanbesel/tgsearch-api/internal/apperror"
	"github.com/ahmethakanbesel/tgsearch-api/internal/search"
)

type APIResponse[T any] struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Data    T      `json:"data"`
}

func writeJSON[T any](w http.ResponseWriter, status int, data T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[T]{
		Message: "ok",
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[string]{
		Message: message,
		Data:    "",
	})
}

func writeAppError(w http.ResponseWriter, ae *apperror.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.HTTPStatus())
	_ = json.NewEncoder(w).Encode(APIResponse[string]{
		Message: ae.Message(),
		Code:    string(ae.Code()),
		Data:    "",
	})
}

func writeCSV(w http.ResponseWriter, name string, rows []search.Row) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", name))
	w.WriteHeader(http.StatusOK)
	if err := search.WriteCSV(w, rows); err != nil {
		slog.Error("write csv", "error", err)
	}
}

func writeLinks(w http.ResponseWriter, name string, links []string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.txt", name))
	w.WriteHeader(http.StatusOK)
	if err := search.WriteLinks(w, links); err != nil {
		slog.Error("write links", "error", err)
	}
}
