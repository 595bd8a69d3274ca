package telemetry

import (
	"net/http"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/controller"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/repository"
)

// RegisterFeature mounts the telemetry read API and the command endpoint.
// The repository is shared with the persistence service, so it is injected
// rather than constructed here.
func RegisterFeature(mux *http.ServeMux, repo repository.TelemetryRepository, events controller.EventRecorder, publisher controller.CommandPublisher) {
	telemetryController := controller.NewTelemetryController(repo, events, publisher)
	telemetryController.RegisterRoutes(mux)
}
