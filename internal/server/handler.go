package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ahmethakanbesel/tgsearch-api/internal/apperror"
	"github.com/ahmethakanbesel/tgsearch-api/internal/job"
)

type handler struct {
	jobSvc *job.Service
}

type jobCreated struct {
	ID string `json:"id"`
}

type quotaResponse struct {
	DailyRunsRemaining int `json:"dailyRunsRemaining"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) submitJob(w http.ResponseWriter, r *http.Request) {
	req, appErr := decodeSearch(r)
	if appErr != nil {
		writeAppError(w, appErr)
		return
	}

	j, err := h.jobSvc.Submit(r.Context(), job.SubmitRequest{
		OwnerID: r.Header.Get(ownerHeader),
		Request: req,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/search/jobs/"+j.ID)
	writeJSON(w, http.StatusAccepted, jobCreated{ID: j.ID})
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobSvc.Get(r.Context(), job.GetJobRequest{ID: r.PathValue("id")})
	if err != nil {
		handleError(w, r, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" || format == "json" {
		writeJSON(w, http.StatusOK, j)
		return
	}
	if j.State != job.StateDone {
		writeAppError(w, apperror.New(apperror.Conflict, "job has not finished"))
		return
	}
	switch format {
	case "csv":
		writeCSV(w, j.ID, j.Result.Rows)
	case "txt":
		writeLinks(w, j.ID, j.Result.Links)
	default:
		writeAppError(w, apperror.New(apperror.BadRequest, "format must be json, csv or txt"))
	}
}

func (h *handler) searchSync(w http.ResponseWriter, r *http.Request) {
	req, appErr := decodeSearch(r)
	if appErr != nil {
		writeAppError(w, appErr)
		return
	}

	res, err := h.jobSvc.RunSync(r.Context(), job.SubmitRequest{
		OwnerID: r.Header.Get(ownerHeader),
		Request: req,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "csv":
		writeCSV(w, "search", res.Rows)
	case "txt":
		writeLinks(w, "search", res.Links)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *handler) quota(w http.ResponseWriter, r *http.Request) {
	n, err := h.jobSvc.Remaining(r.Context(), r.Header.Get(ownerHeader))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotaResponse{DailyRunsRemaining: n})
}

// handleError writes app errors as they are. Anything else is logged and
// answered with a generic 500 so internal details stay out of responses.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperror.AppError
	if errors.As(err, &ae) {
		writeAppError(w, ae)
		return
	}
	slog.Error("request failed", "path", r.URL.Path, "requestID", r.Context().Value(requestIDKey), "error", err)
	writeAppError(w, apperror.New(apperror.Internal, "internal server error"))
}
