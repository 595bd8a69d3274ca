package bridge

import "testing"

func fptr(v float64) *float64 { return &v }

func TestClassifyComfort(t *testing.T) {
	tests := []struct {
		name string
		temp *float64
		hum  *float64
		want string
	}{
		{name: "cold", temp: fptr(10), hum: fptr(50), want: "Frio"},
		{name: "cool", temp: fptr(17), hum: fptr(50), want: "Fresco"},
		{name: "comfortable", temp: fptr(22), hum: fptr(50), want: "Confortable"},
		{name: "warm", temp: fptr(26), hum: fptr(50), want: "Tibio"},
		{name: "hot", temp: fptr(30), hum: fptr(50), want: "Caluroso"},
		{name: "very hot", temp: fptr(35), hum: fptr(50), want: "Muy Caluroso"},

		{name: "cold humid", temp: fptr(10), hum: fptr(85), want: "Frio Humedo"},
		{name: "comfortable humid", temp: fptr(22), hum: fptr(75), want: "Confortable Humedo"},
		{name: "comfortable dry", temp: fptr(22), hum: fptr(20), want: "Confortable Seco"},
		{name: "very hot humid", temp: fptr(40), hum: fptr(90), want: "Muy Caluroso Humedo"},

		// band boundaries
		{name: "boundary 15 is cool", temp: fptr(15), hum: fptr(50), want: "Fresco"},
		{name: "boundary 20 is comfortable", temp: fptr(20), hum: fptr(50), want: "Confortable"},
		{name: "boundary 24 is warm", temp: fptr(24), hum: fptr(50), want: "Tibio"},
		{name: "boundary 28 is hot", temp: fptr(28), hum: fptr(50), want: "Caluroso"},
		{name: "boundary 32 is very hot", temp: fptr(32), hum: fptr(50), want: "Muy Caluroso"},

		// humidity thresholds are strict
		{name: "70 is not humid", temp: fptr(22), hum: fptr(70), want: "Confortable"},
		{name: "30 is not dry", temp: fptr(22), hum: fptr(30), want: "Confortable"},

		// dry only qualifies the comfortable band
		{name: "hot dry has no modifier", temp: fptr(30), hum: fptr(10), want: "Caluroso"},

		{name: "missing temperature", temp: nil, hum: fptr(50), want: ""},
		{name: "missing humidity", temp: fptr(22), hum: nil, want: ""},
		{name: "missing both", temp: nil, hum: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyComfort(tt.temp, tt.hum); got != tt.want {
				t.Errorf("ClassifyComfort() = %q, want %q", got, tt.want)
			}
		})
	}
}
