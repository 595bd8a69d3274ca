package bridge

// ClassifyComfort derives the thermal comfort label from temperature and
// humidity, used when the station's own comfort fragment never arrived.
// Labels are Spanish because the downstream dashboards expect the vocabulary
// the station itself publishes. Returns "" when either input is absent.
func ClassifyComfort(tempC, humidityPct *float64) string {
	if tempC == nil || humidityPct == nil {
		return ""
	}
	t, h := *tempC, *humidityPct
	humid := h > 70
	dry := h < 30

	switch {
	case t < 15:
		return withHumid("Frio", humid)
	case t < 20:
		return withHumid("Fresco", humid)
	case t < 24:
		if dry {
			return "Confortable Seco"
		}
		return withHumid("Confortable", humid)
	case t < 28:
		return withHumid("Tibio", humid)
	case t < 32:
		return withHumid("Caluroso", humid)
	default:
		return withHumid("Muy Caluroso", humid)
	}
}

func withHumid(label string, humid bool) string {
	if humid {
		return label + " Humedo"
	}
	return label
}
