package handlers

import (
	"net/http"

	"github.com/jwolfsohn/Atlas-Sentinel/orchestrator"

	"github.com/gin-gonic/gin"
)

type DataHandler struct {
	orch   *orchestrator.Orchestrator
	runner *orchestrator.Runner
}

func NewDataHandler(orch *orchestrator.Orchestrator, runner *orchestrator.Runner) *DataHandler {
	return &DataHandler{orch: orch, runner: runner}
}

// Refresh force-refreshes every signal synchronously.
func (h *DataHandler) Refresh(c *gin.Context) {
	summary, err := h.orch.IngestAll(c.Request.Context(), true)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "data refreshed",
		"ingest":    summary,
		"timestamp": now(),
	})
}

func (h *DataHandler) Summary(c *gin.Context) {
	summary, err := h.orch.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{"data": summary, "timestamp": now()}
	if h.runner != nil {
		resp["runner"] = h.runner.Status()
	}
	c.JSON(http.StatusOK, resp)
}
