package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// UnknownPropertyType replaces a missing property type at load time.
const UnknownPropertyType = "Unknown"

var (
	ErrUnknownHorizon  = errors.New("unknown availability horizon")
	ErrUnknownHostFlag = errors.New("unknown host flag")
)

// Listing is one cleaned row of the short-term rental dataset.
// Columns that may be absent in source data use pointers (or TriState for
// boolean host columns) so a missing value is never confused with zero.
type Listing struct {
	Name             *string  `json:"name,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	Availability30   *int     `json:"availability_30,omitempty"`
	Availability60   *int     `json:"availability_60,omitempty"`
	Availability90   *int     `json:"availability_90,omitempty"`
	Availability365  *int     `json:"availability_365,omitempty"`
	ID               string   `json:"id"`
	Neighbourhood    string   `json:"neighbourhood"`
	PropertyType     string   `json:"property_type"`
	Price            float64  `json:"price"`
	NumberOfReviews  int      `json:"number_of_reviews"`
	Superhost        TriState `json:"host_is_superhost"`
	HasProfilePic    TriState `json:"host_has_profile_pic"`
	IdentityVerified TriState `json:"host_identity_verified"`
}

// Availability returns the availability counter for the horizon, or nil when
// the value is missing or the horizon is not recognised.
func (l Listing) Availability(h Horizon) *int {
	switch h {
	case Horizon30:
		return l.Availability30
	case Horizon60:
		return l.Availability60
	case Horizon90:
		return l.Availability90
	case Horizon365:
		return l.Availability365
	default:
		return nil
	}
}

// Coordinates reports the listing position when both latitude and longitude are known.
func (l Listing) Coordinates() (lat, lon float64, ok bool) {
	if l.Latitude == nil || l.Longitude == nil {
		return 0, 0, false
	}
	return *l.Latitude, *l.Longitude, true
}

// Flag returns the tri-state value of a host characteristic.
func (l Listing) Flag(f HostFlag) TriState {
	switch f {
	case FlagSuperhost:
		return l.Superhost
	case FlagProfilePic:
		return l.HasProfilePic
	case FlagIdentityVerified:
		return l.IdentityVerified
	default:
		return Unknown
	}
}

// Label is the hover text for the listing: its name, falling back to the ID.
func (l Listing) Label() string {
	if l.Name != nil && *l.Name != "" {
		return *l.Name
	}
	return l.ID
}

// TriState is a boolean that may also be unknown.
type TriState int8

const (
	Unknown TriState = iota
	False
	True
)

// ParseTriState maps the raw host columns ("t"/"f" in Inside Airbnb exports).
func ParseTriState(raw string) TriState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "t", "true", "1", "yes", "y":
		return True
	case "f", "false", "0", "no", "n":
		return False
	default:
		return Unknown
	}
}

func (t TriState) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes Unknown as null.
func (t TriState) MarshalJSON() ([]byte, error) {
	switch t {
	case True:
		return []byte("true"), nil
	case False:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts true, false or null.
func (t *TriState) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("failed to unmarshal tri-state: %w", err)
	}
	switch {
	case b == nil:
		*t = Unknown
	case *b:
		*t = True
	default:
		*t = False
	}
	return nil
}

// Horizon is an availability window length in days.
type Horizon int

const (
	Horizon30  Horizon = 30
	Horizon60  Horizon = 60
	Horizon90  Horizon = 90
	Horizon365 Horizon = 365
)

// Horizons lists the supported windows in ascending order.
var Horizons = []Horizon{Horizon30, Horizon60, Horizon90, Horizon365}

// ParseHorizon accepts either the day count ("90") or the column name ("availability_90").
func ParseHorizon(raw string) (Horizon, error) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "availability_")
	days, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownHorizon, raw)
	}
	h := Horizon(days)
	if !h.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownHorizon, raw)
	}
	return h, nil
}

// Valid reports whether h is one of the supported windows.
func (h Horizon) Valid() bool {
	switch h {
	case Horizon30, Horizon60, Horizon90, Horizon365:
		return true
	}
	return false
}

// Column is the source column holding this horizon's counter.
func (h Horizon) Column() string {
	return fmt.Sprintf("availability_%d", int(h))
}

// Label is the widget text for the horizon.
func (h Horizon) Label() string {
	return fmt.Sprintf("Next %d days", int(h))
}

// HostFlag names a host characteristic that can be required by a filter.
type HostFlag string

const (
	FlagSuperhost        HostFlag = "superhost"
	FlagProfilePic       HostFlag = "profile_pic"
	FlagIdentityVerified HostFlag = "identity_verified"
)

// HostFlags lists the supported host characteristic filters.
var HostFlags = []HostFlag{FlagSuperhost, FlagProfilePic, FlagIdentityVerified}

// ParseHostFlag validates a host flag name.
func ParseHostFlag(raw string) (HostFlag, error) {
	f := HostFlag(strings.TrimSpace(raw))
	switch f {
	case FlagSuperhost, FlagProfilePic, FlagIdentityVerified:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownHostFlag, raw)
}

// Label is the checklist text for the flag.
func (f HostFlag) Label() string {
	switch f {
	case FlagSuperhost:
		return "Superhosts"
	case FlagProfilePic:
		return "Hosts with Profile Picture"
	case FlagIdentityVerified:
		return "Identity Verified Hosts"
	default:
		return string(f)
	}
}

// UnmarshalJSON accepts a day count (365) or a column name ("availability_365").
// Unsupported day counts decode as-is; Valid reports them and filter building rejects them.
func (h *Horizon) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	days, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(raw), "availability_"))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownHorizon, raw)
	}
	*h = Horizon(days)
	return nil
}
