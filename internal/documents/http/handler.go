package documentshttp

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-docs/internal/documents"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/engine"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/output"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/record"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/variants"
	"github.com/odyssey-erp/odyssey-docs/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-docs/jobs"
)

const maxRecordBytes = 4 << 20

// Handler exposes document rendering over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *documents.Service
	jobs    *jobs.Client
}

// NewHandler constructs a Handler value. jobsClient may be nil, in which case
// render jobs answer 503.
func NewHandler(logger *slog.Logger, service *documents.Service, jobsClient *jobs.Client) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, jobs: jobsClient}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/documents/{variant}", func(r chi.Router) {
		r.Post("/pdf", h.renderInline)
		r.Post("/page-count", h.pageCount)
		r.Put("/{number}", h.storeRecord)
		r.Get("/{number}/pdf", h.renderStored)
		r.Post("/{number}/render-jobs", h.enqueueRender)
	})
	r.Get("/previews/{id}", h.preview)
}

type previewResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	FileName  string    `json:"file_name"`
	Pages     int       `json:"pages"`
}

type pageCountResponse struct {
	FileName string   `json:"file_name"`
	Pages    int      `json:"pages"`
	Stages   []string `json:"stages"`
}

type jobResponse struct {
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
}

// renderInline renders the record in the request body.
func (h *Handler) renderInline(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.variant(w, r)
	if !ok {
		return
	}
	opts, err := parseOptions(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", err.Error())
		return
	}
	rec, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}
	res, err := h.service.Render(r.Context(), documents.RenderRequest{Variant: variant, Record: rec, Options: opts}, output.HTTPDownload{W: w})
	h.finish(w, res, err)
}

// pageCount lays out the record in the request body and reports its pages.
func (h *Handler) pageCount(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.variant(w, r)
	if !ok {
		return
	}
	opts, err := parseOptions(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", err.Error())
		return
	}
	rec, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}
	res, err := h.service.DryRun(r.Context(), documents.RenderRequest{Variant: variant, Record: rec, Options: opts})
	if err != nil {
		h.respondError(w, err)
		return
	}
	stages := make([]string, 0, len(res.Stages))
	for _, s := range res.Stages {
		stages = append(stages, s.String())
	}
	httpx.JSON(w, http.StatusOK, pageCountResponse{FileName: res.FileName, Pages: res.Pages, Stages: stages})
}

// storeRecord saves the request body as the snapshot for {number}.
func (h *Handler) storeRecord(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.variant(w, r)
	if !ok {
		return
	}
	rec, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}
	number := chi.URLParam(r, "number")
	if rec.Number == "" {
		rec.Number = number
	}
	if strings.TrimSpace(rec.Number) != strings.TrimSpace(number) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "record number does not match the URL")
		return
	}
	if err := h.service.Store(r.Context(), variant, rec); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// renderStored renders the stored record for {number}.
func (h *Handler) renderStored(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.variant(w, r)
	if !ok {
		return
	}
	opts, err := parseOptions(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", err.Error())
		return
	}
	res, err := h.service.RenderStored(r.Context(), variant, chi.URLParam(r, "number"), opts, output.HTTPDownload{W: w})
	h.finish(w, res, err)
}

// enqueueRender schedules a background render of the stored record.
func (h *Handler) enqueueRender(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.variant(w, r)
	if !ok {
		return
	}
	opts, err := parseOptions(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", err.Error())
		return
	}
	info, err := h.jobs.EnqueueDocumentRender(r.Context(), jobs.DocumentRenderPayload{
		Variant:    string(variant),
		Number:     chi.URLParam(r, "number"),
		LogoRef:    opts.LogoRef,
		IncludeVAT: opts.IncludeVAT,
		Barcode:    opts.Barcode,
	})
	if err != nil {
		if errors.Is(err, jobs.ErrClientUnavailable) {
			httpx.RespondError(w, fmt.Errorf("%w: background rendering is not configured", httpx.ErrUnavailable))
			return
		}
		h.logger.Error("enqueue document render", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Enqueue Failed", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, jobResponse{TaskID: info.ID, Queue: info.Queue})
}

// preview serves a preview inline until its handle expires.
func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	art, err := h.service.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	output.WriteArtifact(w, art, "inline")
}

func (h *Handler) finish(w http.ResponseWriter, res *engine.Result, err error) {
	if err != nil {
		h.respondError(w, err)
		return
	}
	if res.Preview != nil {
		httpx.JSON(w, http.StatusCreated, previewResponse{
			ID:        res.Preview.ID,
			URL:       res.Preview.URL,
			ExpiresAt: res.Preview.ExpiresAt,
			FileName:  res.FileName,
			Pages:     res.Pages,
		})
	}
}

func (h *Handler) variant(w http.ResponseWriter, r *http.Request) (record.Variant, bool) {
	raw := chi.URLParam(r, "variant")
	v, ok := record.ParseVariant(raw)
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", fmt.Sprintf("unknown document variant %q", raw))
		return "", false
	}
	return v, true
}

func (h *Handler) decodeRecord(w http.ResponseWriter, r *http.Request) (*record.Record, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRecordBytes)
	var rec record.Record
	if err := httpx.DecodeJSON(r, &rec); err != nil {
		if errors.Is(err, httpx.ErrTooLarge) {
			httpx.RespondError(w, err)
			return nil, false
		}
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be a JSON document record")
		return nil, false
	}
	return &rec, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, record.ErrNoRecord), errors.Is(err, record.ErrInvalidRecord):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, documents.ErrRecordNotFound), errors.Is(err, output.ErrPreviewNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, documents.ErrNoRecordStore):
		httpx.RespondError(w, fmt.Errorf("%w: stored records are not configured", httpx.ErrUnavailable))
	default:
		h.logger.Error("document request", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseOptions(r *http.Request) (variants.Options, error) {
	q := r.URL.Query()
	opts := variants.Options{LogoRef: strings.TrimSpace(q.Get("logo"))}
	if raw := q.Get("preview"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("preview: %q is not a boolean", raw)
		}
		opts.OpenPreview = v
	}
	if raw := q.Get("include_vat"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("include_vat: %q is not a boolean", raw)
		}
		opts.IncludeVAT = variants.Bool(v)
	}
	if raw := q.Get("barcode"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("barcode: %q is not a boolean", raw)
		}
		opts.Barcode = v
	}
	return opts, nil
}
