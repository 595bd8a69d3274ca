package bridge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/config"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/types"
)

// Routes is the fixed topic table the bridge subscribes with. It is built
// once at startup from configuration; a topic it does not know is a
// configuration error, not data.
type Routes struct {
	byTopic map[string]types.Field
	byField map[types.Field]string
}

func NewRoutes(cfg config.Config) (*Routes, error) {
	feeds := []struct {
		field types.Field
		feed  string
	}{
		{types.FieldTemperature, cfg.Feeds.Temperature},
		{types.FieldHumidity, cfg.Feeds.Humidity},
		{types.FieldLightPercent, cfg.Feeds.LightPercent},
		{types.FieldLightRaw, cfg.Feeds.LightRaw},
		{types.FieldDeviceTime, cfg.Feeds.DeviceTime},
		{types.FieldComfort, cfg.Feeds.Comfort},
		{types.FieldSystemEvent, cfg.Feeds.SystemEvent},
		{types.FieldCommand, cfg.Feeds.Command},
	}

	r := &Routes{
		byTopic: make(map[string]types.Field, len(feeds)),
		byField: make(map[types.Field]string, len(feeds)),
	}
	for _, e := range feeds {
		feed := strings.TrimSpace(e.feed)
		if feed == "" {
			return nil, fmt.Errorf("empty feed name for field %s", e.field)
		}
		topic := feed
		if cfg.TopicPrefix != "" {
			topic = cfg.TopicPrefix + "/" + feed
		}
		if other, ok := r.byTopic[topic]; ok {
			return nil, fmt.Errorf("topic %q mapped to both %s and %s", topic, other, e.field)
		}
		r.byTopic[topic] = e.field
		r.byField[e.field] = topic
	}
	return r, nil
}

// Field resolves a broker topic to its telemetry field.
func (r *Routes) Field(topic string) (types.Field, bool) {
	f, ok := r.byTopic[topic]
	return f, ok
}

// Topic returns the full broker topic for a field.
func (r *Routes) Topic(f types.Field) string {
	return r.byField[f]
}

// Topics returns every subscription topic in stable order.
func (r *Routes) Topics() []string {
	out := make([]string, 0, len(r.byTopic))
	for t := range r.byTopic {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
