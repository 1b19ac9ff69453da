package handlers

import (
	"errors"
	"net/http"

	"github.com/kerimlews/taskmanager/services"

	"github.com/sirupsen/logrus"
)

type ReminderHandler struct {
	service *services.ReminderService
	logger  logrus.FieldLogger
}

func NewReminderHandler(service *services.ReminderService, logger logrus.FieldLogger) *ReminderHandler {
	return &ReminderHandler{service: service, logger: logger}
}

// RunReminders triggers one scan out of schedule. It shares the scheduler's
// re-entrancy guard, so it answers 409 while a run is active.
func (h *ReminderHandler) RunReminders(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.RunOnce(r.Context())
	if errors.Is(err, services.ErrReminderRunInProgress) {
		writeMessage(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	h.logger.Infof("Event ID: REMINDER_MANUAL_RUN, Description: Manual reminder run: scanned=%d sent=%d skipped=%d failed=%d",
		report.Scanned, report.Sent, report.Skipped, report.Failed)
	writeJSON(w, http.StatusOK, report)
}
