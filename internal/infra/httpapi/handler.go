package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"reminder_scheduler/internal/app"
	"reminder_scheduler/internal/domain/notification"
	"reminder_scheduler/internal/domain/reminder"
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

const defaultNotificationsLimit = 50

type Admin interface {
	CreateReminder(ctx context.Context, in app.NewReminderInput) (*reminder.Reminder, error)
	GetReminder(ctx context.Context, id uuid.UUID) (*reminder.Reminder, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]*notification.Notification, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// healthTimeout bounds all checks of one verbose /health request together.
const healthTimeout = 3 * time.Second

type component struct {
	name string
	// required components turn /health into 503 when they fail; optional ones
	// are reported but the service keeps working without them.
	required bool
	check    HealthCheck
}

type Handler struct {
	processor   app.ReminderProcessor
	admin       Admin
	components  []component
	metrics     http.Handler
	metricsAt   string
	logger      *logrus.Entry
	now         func() time.Time
	passTimeout time.Duration
}

func NewHandler(processor app.ReminderProcessor, admin Admin, logger *logrus.Entry) *Handler {
	return &Handler{
		processor: processor,
		admin:     admin,
		logger:    logger.WithField("component", "http"),
		now:       time.Now,
	}
}

// WithHealthCheck adds a component to verbose /health responses.
func (h *Handler) WithHealthCheck(name string, required bool, check HealthCheck) *Handler {
	h.components = append(h.components, component{name: name, required: required, check: check})
	return h
}

// WithPassTimeout bounds passes started over HTTP, like the cron and CLI triggers.
func (h *Handler) WithPassTimeout(d time.Duration) *Handler {
	h.passTimeout = d
	return h
}

// WithMetrics serves the metrics handler at path.
func (h *Handler) WithMetrics(path string, m http.Handler) *Handler {
	h.metricsAt, h.metrics = path, m
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.WithFields(logrus.Fields{
				"path":  r.URL.Path,
				"panic": rec,
			}).Error("Recovered from panic in HTTP handler")
			h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error:   "internal server error",
				Details: fmt.Sprint(rec),
			})
		}
	}()

	path := strings.TrimSuffix(r.URL.Path, "/")

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case h.metrics != nil && path == h.metricsAt && r.Method == http.MethodGet:
		h.metrics.ServeHTTP(w, r)

	case path == "/reminders/process" && (r.Method == http.MethodPost || r.Method == http.MethodGet):
		h.processReminders(w, r)

	case path == "/reminders" && r.Method == http.MethodPost:
		h.createReminder(w, r)

	case strings.HasPrefix(path, "/reminders/") && r.Method == http.MethodGet:
		h.getReminder(w, r, strings.TrimPrefix(path, "/reminders/"))

	case strings.HasPrefix(path, "/users/") && strings.HasSuffix(path, "/notifications") && r.Method == http.MethodGet:
		userID := strings.TrimSuffix(strings.TrimPrefix(path, "/users/"), "/notifications")
		h.listNotifications(w, r, userID)

	default:
		h.writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) processReminders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.passTimeout)
		defer cancel()
	}

	res, err := h.processor.ProcessDuePass(ctx, h.now())
	if err != nil {
		h.logger.WithError(err).Error("Reminder processing pass failed")
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "failed to process reminders",
			Details: err.Error(),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, ProcessResponse{
		Success:                   true,
		RemindersProcessed:        res.Processed,
		NotificationsCreated:      res.NotificationsCreated,
		RecurringRemindersCreated: res.SuccessorsCreated,
		Skipped:                   res.Skipped,
	})
}

func (h *Handler) createReminder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req app.NewReminderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	created, err := h.admin.CreateReminder(r.Context(), req)
	if err != nil {
		if errors.Is(err, app.ErrInvalidReminder) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to create reminder")
		h.writeError(w, http.StatusInternalServerError, "failed to create reminder")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"reminder_id": created.ID,
		"assigned_to": created.AssignedTo,
	}).Info("Reminder created")
	h.writeJSON(w, http.StatusCreated, toReminderResponse(created))
}

func (h *Handler) getReminder(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid reminder id")
		return
	}
	rem, err := h.admin.GetReminder(r.Context(), id)
	if err != nil {
		if errors.Is(err, app.ErrReminderNotFound) {
			h.writeError(w, http.StatusNotFound, "reminder not found")
			return
		}
		h.logger.WithError(err).WithField("reminder_id", id).Error("Failed to get reminder")
		h.writeError(w, http.StatusInternalServerError, "failed to get reminder")
		return
	}
	h.writeJSON(w, http.StatusOK, toReminderResponse(rem))
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request, userID string) {
	if userID == "" || strings.Contains(userID, "/") {
		h.writeError(w, http.StatusNotFound, "not found")
		return
	}

	limit := defaultNotificationsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	ns, err := h.admin.ListNotifications(r.Context(), userID, limit)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to list notifications")
		h.writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	resp := make([]NotificationResponse, 0, len(ns))
	for _, n := range ns {
		resp = append(resp, toNotificationResponse(n))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("verbose") != "true" || len(h.components) == 0 {
		h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Components: make(map[string]string, len(h.components))}
	for _, c := range h.components {
		err := c.check(ctx)
		switch {
		case err == nil:
			resp.Components[c.name] = "healthy"
		case c.required:
			resp.Status = "degraded"
			resp.Components[c.name] = "unhealthy: " + err.Error()
		default:
			resp.Components[c.name] = "unavailable: " + err.Error()
		}
	}

	status := http.StatusOK
	if resp.Status == "degraded" {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Warn("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}
