package controller

import (
	"net/http"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/repository"
)

// CommandPublisher pushes a validated command token to the station's command
// topic. Implemented by the MQTT supervisor.
type CommandPublisher interface {
	PublishCommand(command string) error
}

// EventRecorder appends an operational event to the store. Implemented by the
// telemetry service.
type EventRecorder interface {
	RecordEvent(category, description string)
}

type TelemetryController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type telemetryControllerImpl struct {
	repository repository.TelemetryRepository
	events     EventRecorder
	publisher  CommandPublisher
}

func NewTelemetryController(repository repository.TelemetryRepository, events EventRecorder, publisher CommandPublisher) TelemetryController {
	return &telemetryControllerImpl{repository: repository, events: events, publisher: publisher}
}

func (c *telemetryControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/readings/recent", c.handleRecentReadings)
	mux.HandleFunc("GET /api/events", c.handleEvents)
	mux.HandleFunc("GET /api/statistics", c.handleStatistics)
	mux.HandleFunc("POST /api/command", c.handleCommand)
}
