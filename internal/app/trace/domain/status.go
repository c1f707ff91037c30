package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is the product lifecycle enum stored by the contract as uint8.
type Status uint8

const (
	StatusRegistered Status = iota
	StatusPlanted
	StatusGrowing
	StatusHarvested
	StatusProcessed
	StatusPackaged
	StatusInTransit
	StatusDelivered
)

var statusNames = [...]string{
	"Registered",
	"Planted",
	"Growing",
	"Harvested",
	"Processed",
	"Packaged",
	"InTransit",
	"Delivered",
}

// String returns the spelling the backend stores.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// Code is the contract enum value.
func (s Status) Code() uint8 {
	return uint8(s)
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return int(s) < len(statusNames)
}

// StatusFromCode converts a contract enum value.
func StatusFromCode(code uint8) (Status, error) {
	s := Status(code)
	if !s.Valid() {
		return 0, fmt.Errorf("%w: code %d", ErrUnknownStatus, code)
	}
	return s, nil
}

// ParseStatus accepts the backend spellings ("InTransit", "In Transit",
// "in_transit", "intransit") and the numeric code. Case is ignored.
func ParseStatus(s string) (Status, error) {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
	if key == "" {
		return 0, fmt.Errorf("%w: empty", ErrUnknownStatus)
	}
	if n, err := strconv.ParseUint(key, 10, 8); err == nil {
		return StatusFromCode(uint8(n))
	}
	for i, name := range statusNames {
		if strings.ToLower(name) == key {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// MarshalText encodes the backend spelling.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: code %d", ErrUnknownStatus, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText accepts anything ParseStatus does.
func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
