package handlers

import (
	"net/http"

	"github.com/intellagent/scheduling-service/internal/automation"
	"github.com/intellagent/scheduling-service/pkg/logging"
)

// AutomationHandler exposes the sequencer's state for widgets that poll
// instead of holding a socket open.
type AutomationHandler struct {
	sequencer *automation.Sequencer
	logger    *logging.Logger
}

// NewAutomationHandler creates an automation status handler.
func NewAutomationHandler(seq *automation.Sequencer, logger *logging.Logger) *AutomationHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AutomationHandler{sequencer: seq, logger: logger}
}

// Status reports the current automation stage.
func (h *AutomationHandler) Status(w http.ResponseWriter, r *http.Request) {
	stage, errMsg := h.sequencer.Stage()
	resp := map[string]any{
		"stage":  string(stage),
		"active": stage.Active(),
	}
	if errMsg != "" {
		resp["error"] = errMsg
	}
	writeJSON(w, http.StatusOK, resp)
}

// Clear resets a stuck or errored sequencer back to idle.
func (h *AutomationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.sequencer.Clear()
	h.logger.Info("automation state cleared")
	writeJSON(w, http.StatusOK, map[string]string{"stage": string(automation.StageIdle)})
}
