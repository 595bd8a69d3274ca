package types

import "time"

// Field identifies one telemetry feed handled by the bridge.
type Field string

const (
	FieldTemperature  Field = "temperature"
	FieldHumidity     Field = "humidity"
	FieldLightPercent Field = "light_pct"
	FieldLightRaw     Field = "light_raw"
	FieldDeviceTime   Field = "device_time"
	FieldComfort      Field = "comfort"
	FieldSystemEvent  Field = "system_event"
	FieldCommand      Field = "command"
)

// BufferFields lists the fields that are correlated into a Reading, in
// publish order. System events and commands are handled as they arrive and
// never enter the buffer.
func BufferFields() []Field {
	return []Field{
		FieldTemperature,
		FieldHumidity,
		FieldLightPercent,
		FieldLightRaw,
		FieldDeviceTime,
		FieldComfort,
	}
}

// Plausibility bounds for persisted readings. Values outside these ranges
// indicate sensor or wiring faults and are rejected before storage.
const (
	TemperatureMin = -50.0
	TemperatureMax = 80.0

	HumidityMin = 0.0
	HumidityMax = 100.0

	LightPercentMin = 0.0
	LightPercentMax = 100.0

	LightRawMin = 0
	LightRawMax = 65535

	DeviceTimeMaxLen = 20
)

// Reading is one correlated snapshot of the station's sensors. Temperature
// and humidity are nil when the corresponding sensor failed or never
// reported within the session; the light fields and device time are required
// for persistence.
type Reading struct {
	ID           int64      `json:"id,omitempty"`
	Time         time.Time  `json:"time"`
	Temperature  *float64   `json:"temperatureC"`
	Humidity     *float64   `json:"humidityPct"`
	LightPercent *float64   `json:"lightPct"`
	LightRaw     *int64     `json:"lightRaw"`
	DeviceTime   string     `json:"deviceTime"`
	ComfortLevel *string    `json:"comfortLevel"`
	Sequence     *int64     `json:"sequence"`

	// FailedSensors names the fields whose fragments arrived as the sensor
	// failure token in this session. Carried alongside the reading so the
	// persistence layer can record anomaly events in the same transaction.
	FailedSensors []Field `json:"-"`
}

// Event category tags, persisted verbatim in the events table.
const (
	CategoryAnomaly     = "ANOMALY"
	CategoryError       = "ERROR"
	CategoryBridge      = "BRIDGE"
	CategorySystem      = "SYSTEM"
	CategoryCommand     = "COMMAND"
	CategoryMaintenance = "MAINTENANCE"
)

// Event is an operational annotation: sensor anomalies, rejected readings,
// connectivity changes, station self-reports and operator commands.
type Event struct {
	ID          int64     `json:"id,omitempty"`
	Time        time.Time `json:"time"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
}

// Statistic is one aggregation window over persisted readings. Aggregates
// are nil when every reading in the window lacked that field; ReadingCount
// is always positive, empty windows produce no row.
type Statistic struct {
	ID             int64     `json:"id,omitempty"`
	Time           time.Time `json:"time"`
	TemperatureAvg *float64  `json:"temperatureAvg"`
	TemperatureMin *float64  `json:"temperatureMin"`
	TemperatureMax *float64  `json:"temperatureMax"`
	HumidityAvg    *float64  `json:"humidityAvg"`
	HumidityMin    *float64  `json:"humidityMin"`
	HumidityMax    *float64  `json:"humidityMax"`
	LightAvg       *float64  `json:"lightAvg"`
	LightMin       *float64  `json:"lightMin"`
	LightMax       *float64  `json:"lightMax"`
	ReadingCount   int64     `json:"readingCount"`
}
