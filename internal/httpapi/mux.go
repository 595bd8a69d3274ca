package httpapi

import (
	"net/http"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/db"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/metrics"
)

// NewMux builds the base mux with the operational endpoints. Feature routes
// are registered by the modules afterwards.
func NewMux(database *db.DB, brokerState func() string) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, database, brokerState)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}
