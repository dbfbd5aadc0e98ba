package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"slices"
	"strings"

	"cliniq/internal/booking"
	"cliniq/internal/insights"
	"cliniq/internal/models"
	"cliniq/internal/queue"
	"cliniq/internal/store"
	"cliniq/internal/validation"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

type QueueService interface {
	CheckIn(ctx context.Context, input queue.CheckInInput) (models.Visit, error)
	Queue(ctx context.Context, dept string) ([]models.Visit, error)
	CallNext(ctx context.Context, dept string) (models.Visit, bool, error)
	Track(ctx context.Context, token string) (queue.Position, error)
	Lookup(ctx context.Context, token string) (models.Visit, error)
	Complete(ctx context.Context, token string) (models.Visit, error)
	Summary(ctx context.Context) (map[string]int, error)
	AverageWait(ctx context.Context, dept string) (float64, error)
}

type BookingService interface {
	FreeSlots(ctx context.Context, dept, date string) (iter.Seq[string], error)
	Book(ctx context.Context, input booking.BookInput) (models.Appointment, error)
	Appointments(ctx context.Context, dept string) ([]models.Appointment, error)
}

type InsightsService interface {
	Summary(ctx context.Context, dept string) (insights.Summary, error)
	Recommend(ctx context.Context, dept string) (string, error)
	PeakHours(ctx context.Context) ([]insights.PeakCell, error)
	Chat(ctx context.Context, message string) (string, error)
}

type ReportService interface {
	Export(ctx context.Context, w io.Writer) (int, error)
}

type Handler struct {
	queue    QueueService
	booking  BookingService
	insights InsightsService
	reports  ReportService
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

type Services struct {
	Queue    QueueService
	Booking  BookingService
	Insights InsightsService
	Reports  ReportService
}

type Options struct {
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	Logger   *zerolog.Logger
}

type errorResponse struct {
	RequestID string        `json:"request_id,omitempty"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(services Services, options Options) *Handler {
	h := &Handler{
		queue:    services.Queue,
		booking:  services.Booking,
		insights: services.Insights,
		reports:  services.Reports,
		gatherer: options.Gatherer,
		logger:   zerolog.Nop(),
	}
	if h.gatherer == nil {
		h.gatherer = prometheus.DefaultGatherer
	}
	if options.Logger != nil {
		h.logger = *options.Logger
	}
	return h
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/api/departments", h.handleDepartments)
	mux.HandleFunc("/api/visits", h.handleCheckIn)
	mux.HandleFunc("/api/visits/", h.handleVisitActions)
	mux.HandleFunc("/api/queue", h.handleQueue)
	mux.HandleFunc("/api/queue/summary", h.handleQueueSummary)
	mux.HandleFunc("/api/queue/actions/call-next", h.handleCallNext)
	mux.HandleFunc("/api/slots", h.handleSlots)
	mux.HandleFunc("/api/appointments", h.handleAppointments)
	mux.HandleFunc("/api/dashboard", h.handleDashboard)
	mux.HandleFunc("/api/insights", h.handleInsights)
	mux.HandleFunc("/api/insights/peak-hours", h.handlePeakHours)
	mux.HandleFunc("/api/chat", h.handleChat)
	mux.HandleFunc("/api/reports/patients.csv", h.handlePatientsReport)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleDepartments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"departments": models.Departments,
		"countries":   models.Countries,
	})
}

type checkInResponse struct {
	models.Visit
	QRPath string `json:"qr_path"`
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req queue.CheckInInput
	if !decodeRequest(w, r, &req) {
		return
	}
	visit, err := h.queue.CheckIn(r.Context(), req)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkInResponse{
		Visit:  visit,
		QRPath: "/api/visits/" + visit.Token + "/qr",
	})
}

func (h *Handler) handleVisitActions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/visits/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	token := parts[0]

	switch {
	case len(parts) == 2 && parts[1] == "position":
		h.handlePosition(w, r, token)
	case len(parts) == 2 && parts[1] == "qr":
		h.handleQR(w, r, token)
	case len(parts) == 3 && parts[1] == "actions" && parts[2] == "complete":
		h.handleComplete(w, r, token)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handlePosition(w http.ResponseWriter, r *http.Request, token string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	position, err := h.queue.Track(r.Context(), token)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, position)
}

// QRPayload is the text encoded into a visit's QR code.
func QRPayload(visit models.Visit) string {
	return fmt.Sprintf("TOKEN:%s|NAME:%s|DEPT:%s", visit.Token, visit.Name, visit.Dept)
}

func (h *Handler) handleQR(w http.ResponseWriter, r *http.Request, token string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	visit, err := h.queue.Lookup(r.Context(), token)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	png, err := qrcode.Encode(QRPayload(visit), qrcode.Medium, qrSize)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request, token string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	visit, err := h.queue.Complete(r.Context(), token)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, visit)
}

type queueResponse struct {
	Dept   string         `json:"dept,omitempty"`
	Visits []models.Visit `json:"visits"`
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	dept := strings.TrimSpace(r.URL.Query().Get("dept"))
	visits, err := h.queue.Queue(r.Context(), dept)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	if visits == nil {
		visits = []models.Visit{}
	}
	writeJSON(w, http.StatusOK, queueResponse{Dept: dept, Visits: visits})
}

func (h *Handler) handleQueueSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	counts, err := h.queue.Summary(r.Context())
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]map[string]int{"waiting": counts})
}

type callNextRequest struct {
	Dept string `json:"dept"`
}

type callNextResponse struct {
	Called bool          `json:"called"`
	Visit  *models.Visit `json:"visit,omitempty"`
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req callNextRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	visit, ok, err := h.queue.CallNext(r.Context(), req.Dept)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, callNextResponse{Called: false})
		return
	}
	writeJSON(w, http.StatusOK, callNextResponse{Called: true, Visit: &visit})
}

type slotsResponse struct {
	Dept  string   `json:"dept"`
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

func (h *Handler) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	dept := strings.TrimSpace(r.URL.Query().Get("dept"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	seq, err := h.booking.FreeSlots(r.Context(), dept, date)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	slots := slices.Collect(seq)
	if slots == nil {
		slots = []string{}
	}
	writeJSON(w, http.StatusOK, slotsResponse{Dept: dept, Date: date, Slots: slots})
}

type bookingResponse struct {
	Appointment models.Appointment `json:"appointment"`
	Tip         string             `json:"tip,omitempty"`
}

func (h *Handler) handleAppointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		appointments, err := h.booking.Appointments(r.Context(), r.URL.Query().Get("dept"))
		if err != nil {
			h.writeMappedError(w, r, err)
			return
		}
		if appointments == nil {
			appointments = []models.Appointment{}
		}
		writeJSON(w, http.StatusOK, map[string][]models.Appointment{"appointments": appointments})
	case http.MethodPost:
		var req booking.BookInput
		if !decodeRequest(w, r, &req) {
			return
		}
		appointment, err := h.booking.Book(r.Context(), req)
		if err != nil {
			h.writeMappedError(w, r, err)
			return
		}
		tip, err := h.insights.Recommend(r.Context(), appointment.Dept)
		if err != nil {
			h.logger.Warn().Err(err).Str("dept", appointment.Dept).Msg("booking tip unavailable")
		}
		writeJSON(w, http.StatusCreated, bookingResponse{Appointment: appointment, Tip: tip})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type dashboardResponse struct {
	Dept           string  `json:"dept"`
	QueueLength    int     `json:"queue_length"`
	Appointments   int     `json:"appointments"`
	AvgWaitMinutes float64 `json:"avg_wait_minutes"`
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	dept := strings.TrimSpace(r.URL.Query().Get("dept"))
	if err := validation.Department(dept); err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	visits, err := h.queue.Queue(r.Context(), dept)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	appointments, err := h.booking.Appointments(r.Context(), dept)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	wait, err := h.queue.AverageWait(r.Context(), dept)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		Dept:           dept,
		QueueLength:    len(visits),
		Appointments:   len(appointments),
		AvgWaitMinutes: wait,
	})
}

func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	summary, err := h.insights.Summary(r.Context(), strings.TrimSpace(r.URL.Query().Get("dept")))
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handlePeakHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cells, err := h.insights.PeakHours(r.Context())
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	if cells == nil {
		cells = []insights.PeakCell{}
	}
	writeJSON(w, http.StatusOK, map[string][]insights.PeakCell{"cells": cells})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req chatRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	reply, err := h.insights.Chat(r.Context(), req.Message)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (h *Handler) handlePatientsReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var buf bytes.Buffer
	if _, err := h.reports.Export(r.Context(), &buf); err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=patients.csv")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func decodeRequest(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func mapError(err error) (int, string, string) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "invalid_request", verr.Error()
	case errors.Is(err, store.ErrVisitNotFound):
		return http.StatusNotFound, "visit_not_found", "visit not found in the waiting queue"
	case errors.Is(err, store.ErrSlotTaken):
		return http.StatusConflict, "slot_taken", "slot already booked"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "visit state does not allow this action"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func (h *Handler) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := mapError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Str("request_id", requestID(r)).Msg("request failed")
	}
	writeError(w, requestID(r), status, code, message)
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
