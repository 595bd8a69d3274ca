package controller

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/types"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/utils"
)

func (c *telemetryControllerImpl) handleRecentReadings(w http.ResponseWriter, r *http.Request) {
	limit, err := parseRecentQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	readings, err := c.repository.RecentReadings(limit)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, readings)
}

func (c *telemetryControllerImpl) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := parseRecentQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := c.repository.RecentEvents(limit)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, events)
}

func (c *telemetryControllerImpl) handleStatistics(w http.ResponseWriter, r *http.Request) {
	limit, err := parseRecentQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	statistics, err := c.repository.RecentStatistics(limit)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, statistics)
}

type commandRequest struct {
	Command string `json:"command"`
}

type commandResponse struct {
	Command string `json:"command"`
	Status  string `json:"status"`
}

func (c *telemetryControllerImpl) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	command, err := normalizeCommand(req.Command)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := c.publisher.PublishCommand(command); err != nil {
		slog.Error("command publish failed", "command", command, "error", err)
		utils.WriteError(w, http.StatusBadGateway, "command publish failed: broker unreachable")
		return
	}

	c.events.RecordEvent(types.CategoryCommand, fmt.Sprintf("command %s published via API", command))
	utils.WriteJSON(w, http.StatusAccepted, commandResponse{Command: command, Status: "published"})
}
