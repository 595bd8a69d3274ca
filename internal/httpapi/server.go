package httpapi

import (
	"net/http"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/config"
)

func NewServer(cfg config.Config, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: requestLogger(mux),
	}
}
