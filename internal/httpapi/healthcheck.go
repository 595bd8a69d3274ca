package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/db"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/utils"
)

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db *db.DB
	// brokerState reports the bridge's MQTT connection state. The broker
	// being down does not fail the check: the read API keeps working and
	// paho reconnects on its own, so only the database decides health.
	brokerState func() string
}

func NewHealthchecker(database *db.DB, brokerState func() string) healthchecker {
	return &healthcheckerImpl{db: database, brokerState: brokerState}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	var ok int
	if err := h.db.QueryRow(`SELECT 1`).Scan(&ok); err != nil {
		slog.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to check database connectivity")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"broker": h.brokerState(),
	})
}

func registerHealthcheck(mux *http.ServeMux, database *db.DB, brokerState func() string) {
	healthchecker := NewHealthchecker(database, brokerState)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
