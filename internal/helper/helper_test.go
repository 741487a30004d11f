package helper

import (
	"testing"
	"time"
)

func TestNormTF(t *testing.T) {
	cases := map[string]string{
		"15m":       "15m",
		"1h":        "1H",
		"60m":       "1H",
		"4h":        "4H",
		"240m":      "4H",
		"1d":        "1D",
		"candle15m": "15m",
		"candle1H":  "1H",
		" 1H ":      "1H",
	}
	for in, want := range cases {
		if got := NormTF(in); got != want {
			t.Errorf("NormTF(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTFDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":  time.Minute,
		"15m": 15 * time.Minute,
		"1H":  time.Hour,
		"4h":  4 * time.Hour,
		"1D":  24 * time.Hour,
		// неизвестный таймфрейм консервативно считается минутным
		"7w": time.Minute,
	}
	for in, want := range cases {
		if got := TFDuration(in); got != want {
			t.Errorf("TFDuration(%q) = %s, want %s", in, got, want)
		}
	}
}
