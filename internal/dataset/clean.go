package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/stwalsh4118/staylens/internal/models"
)

var missingMarkers = map[string]struct{}{
	"":      {},
	"NA":    {},
	"NaN":   {},
	"nan":   {},
	"<nil>": {},
	"null":  {},
	"None":  {},
}

func isMissing(raw string) bool {
	_, ok := missingMarkers[strings.TrimSpace(raw)]
	return ok
}

var priceReplacer = strings.NewReplacer("$", "", "£", "", "€", "", ",", "", " ", "", "\u00a0", "")

// parsePrice reads a currency-formatted price such as "$1,250.00".
func parsePrice(raw string) (float64, bool) {
	if isMissing(raw) {
		return 0, false
	}
	v, err := strconv.ParseFloat(priceReplacer.Replace(strings.TrimSpace(raw)), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseFloat(raw string) (float64, bool) {
	if isMissing(raw) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseCount reads a non-negative integer, accepting float spellings like "12.0".
func parseCount(raw string) (int, bool) {
	if isMissing(raw) {
		return 0, false
	}
	s := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) || f < 0 {
		return 0, false
	}
	return int(f), true
}

func parseCoordinate(raw string, limit float64) *float64 {
	v, ok := parseFloat(raw)
	if !ok || v < -limit || v > limit {
		return nil
	}
	return &v
}

func parseAvailability(raw string, h models.Horizon) *int {
	n, ok := parseCount(raw)
	if !ok || n > int(h) {
		return nil
	}
	return &n
}

func parseOptionalString(raw string) *string {
	if isMissing(raw) {
		return nil
	}
	s := strings.TrimSpace(raw)
	return &s
}
