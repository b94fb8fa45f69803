package handlers

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/markdave123-py/Condensa/internal/core"
	"github.com/markdave123-py/Condensa/internal/models"
	"github.com/markdave123-py/Condensa/internal/services"
)

type TaskHandler struct {
	submit *services.SubmitService
	store  core.TaskStore
	logger zerolog.Logger
}

func NewTaskHandler(submit *services.SubmitService, store core.TaskStore, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{submit: submit, store: store, logger: logger.With().Str("component", "api").Logger()}
}

type uploadResponse struct {
	TaskID    string            `json:"task_id"`
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Files     []string          `json:"files"`
	Mode      string            `json:"mode"`
	Endpoints map[string]string `json:"endpoints"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Upload accepts multipart PDFs plus a mode form field and submits them for
// asynchronous processing. Responds immediately with a task ID for polling.
func (h *TaskHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}

	mode, err := models.ParseMode(r.FormValue("mode"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("no files provided, upload at least one PDF"))
		return
	}

	var files []services.UploadedFile
	for _, fh := range fileHeaders {
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid file %q: only PDF files are accepted", fh.Filename))
			return
		}
		f, err := fh.Open()
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("read %s: %w", fh.Filename, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("read %s: %w", fh.Filename, err))
			return
		}
		files = append(files, services.UploadedFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	task, err := h.submit.Submit(r.Context(), files, mode)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrQueueUnavailable) {
			status = http.StatusServiceUnavailable
		}
		h.logger.Error().Err(err).Msg("submission failed")
		h.writeError(w, status, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, uploadResponse{
		TaskID:  task.ID,
		Status:  "queued",
		Message: fmt.Sprintf("Processing %d file(s) in background", task.Total),
		Files:   task.Files,
		Mode:    string(task.Mode),
		Endpoints: map[string]string{
			"status":   "/api/status/" + task.ID,
			"download": "/api/download/" + task.ID,
		},
	})
}

type statusResponse struct {
	TaskID    string              `json:"task_id"`
	Status    models.TaskStatus   `json:"status"`
	Message   string              `json:"message"`
	Completed int                 `json:"completed"`
	Total     int                 `json:"total"`
	Files     []models.FileResult `json:"files,omitempty"`
}

// Status reports the task's current state for polling clients. The read path
// is side-effect free: just two store lookups.
func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := h.store.GetTask(r.Context(), taskID)
	if err != nil {
		h.taskError(w, err)
		return
	}

	resp := statusResponse{
		TaskID:    task.ID,
		Status:    task.Status,
		Message:   task.Message,
		Completed: task.Completed,
		Total:     task.Total,
	}
	if task.Status == models.StatusProcessing || task.Status.Terminal() {
		results, err := h.store.GetFileResults(r.Context(), taskID)
		if err != nil {
			h.taskError(w, err)
			return
		}
		// Summaries and extracted text stay on the download endpoints.
		for i := range results {
			results[i].Markdown = ""
			results[i].Summary = ""
		}
		resp.Files = results
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type downloadResponse struct {
	TaskID          string                     `json:"task_id"`
	PerFile         map[string]downloadPerFile `json:"per_file"`
	ArchiveEndpoint string                     `json:"markdown_archive_endpoint"`
}

type downloadPerFile struct {
	Status        models.FileResultStatus `json:"status"`
	Summary       string                  `json:"summary,omitempty"`
	FailureReason string                  `json:"failure_reason,omitempty"`
}

// Download returns the per-file summaries once the task is terminal.
func (h *TaskHandler) Download(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := h.store.GetTask(r.Context(), taskID)
	if err != nil {
		h.taskError(w, err)
		return
	}
	if !task.Status.Terminal() {
		h.writeError(w, http.StatusBadRequest,
			fmt.Errorf("task is not complete yet, current state: %s", task.Status))
		return
	}

	results, err := h.store.GetFileResults(r.Context(), taskID)
	if err != nil {
		h.taskError(w, err)
		return
	}

	perFile := make(map[string]downloadPerFile, len(results))
	for _, res := range results {
		perFile[res.Filename] = downloadPerFile{
			Status:        res.Status,
			Summary:       res.Summary,
			FailureReason: res.FailureReason,
		}
	}
	h.writeJSON(w, http.StatusOK, downloadResponse{
		TaskID:          taskID,
		PerFile:         perFile,
		ArchiveEndpoint: "/api/download/" + taskID + "/archive",
	})
}

// DownloadArchive streams a zip of the extracted markdown for every completed file.
func (h *TaskHandler) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := h.store.GetTask(r.Context(), taskID)
	if err != nil {
		h.taskError(w, err)
		return
	}
	if !task.Status.Terminal() {
		h.writeError(w, http.StatusBadRequest,
			fmt.Errorf("task is not complete yet, current state: %s", task.Status))
		return
	}

	results, err := h.store.GetFileResults(r.Context(), taskID)
	if err != nil {
		h.taskError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", taskID+".zip"))

	zw := zip.NewWriter(w)
	defer zw.Close()
	for _, res := range results {
		if res.Status != models.FileComplete {
			continue
		}
		name := strings.TrimSuffix(res.Filename, ".pdf") + ".md"
		f, err := zw.Create(name)
		if err != nil {
			h.logger.Error().Err(err).Str("file", name).Msg("zip entry failed")
			return
		}
		if _, err := f.Write([]byte(res.Markdown)); err != nil {
			h.logger.Error().Err(err).Str("file", name).Msg("zip write failed")
			return
		}
	}
}

type indexResponse struct {
	Message   string            `json:"message"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

// Index describes the API surface for clients hitting the root path.
func (h *TaskHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, indexResponse{
		Message: "Document processing API with AI summarization",
		Status:  "running",
		Endpoints: map[string]string{
			"upload":   "/api/upload (POST) - Upload PDFs, returns task_id",
			"status":   "/api/status/{task_id} (GET) - Check task progress",
			"download": "/api/download/{task_id} (GET) - Get summaries as JSON",
			"archive":  "/api/download/{task_id}/archive (GET) - Download markdown as zip",
			"health":   "/api/health (GET) - Health check",
		},
	})
}

// Health pings the task store so load balancers see backend reachability.
func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "store": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "store": "connected"})
}

func (h *TaskHandler) taskError(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrTaskNotFound) {
		h.writeError(w, http.StatusNotFound, err)
		return
	}
	h.logger.Error().Err(err).Msg("store read failed")
	h.writeError(w, http.StatusInternalServerError, err)
}

func (h *TaskHandler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *TaskHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
