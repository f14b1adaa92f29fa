package model

import (
	"errors"
	"net/netip"
	"strings"
)

// Event classification errors.
var (
	// ErrEmptyEventData is returned when an event value is empty.
	ErrEmptyEventData = errors.New("event data cannot be empty")
	// ErrUnknownEventType is returned when a raw value matches no known event type.
	ErrUnknownEventType = errors.New("cannot determine event type")
	// ErrInvalidEventData is returned when a value does not parse as its declared event type.
	ErrInvalidEventData = errors.New("invalid event data")
)

// EventType identifies the kind of discovered item an Event carries.
type EventType string

// Event types handled by the scope and resolution core.
const (
	// EventTypeScan is the synthetic root event every scan starts from.
	EventTypeScan EventType = "SCAN"
	// EventTypeDNSName is a DNS hostname.
	EventTypeDNSName EventType = "DNS_NAME"
	// EventTypeIPAddress is a single IPv4 or IPv6 address.
	EventTypeIPAddress EventType = "IP_ADDRESS"
	// EventTypeIPRange is a CIDR network range.
	EventTypeIPRange EventType = "IP_RANGE"
	// EventTypeURL is a fetchable http or https URL.
	EventTypeURL EventType = "URL"
	// EventTypeEmailAddress is an email address.
	EventTypeEmailAddress EventType = "EMAIL_ADDRESS"
)

// String returns the wire representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// IsHostType reports whether events of this type carry a host component
// that can be scope-checked.
func (t EventType) IsHostType() bool {
	switch t {
	case EventTypeDNSName, EventTypeIPAddress, EventTypeURL, EventTypeEmailAddress:
		return true
	default:
		return false
	}
}

// IsResolvable reports whether events of this type are fed to the
// resolution scheduler. Only hostnames and addresses resolve; URLs and
// emails contribute their host as a separate derived event instead.
func (t EventType) IsResolvable() bool {
	return t == EventTypeDNSName || t == EventTypeIPAddress
}

// DetectType infers the event type of a raw value. Detection is ordered
// from most to least specific: IP address, CIDR range, URL, email
// address, DNS name. Returns ErrUnknownEventType when nothing matches.
func DetectType(raw string) (EventType, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", ErrEmptyEventData
	}
	if _, err := netip.ParseAddr(value); err == nil {
		return EventTypeIPAddress, nil
	}
	if _, err := netip.ParsePrefix(value); err == nil {
		return EventTypeIPRange, nil
	}
	if strings.Contains(value, "://") {
		if _, _, err := NormalizeURL(value); err == nil {
			return EventTypeURL, nil
		}
		return "", ErrUnknownEventType
	}
	if strings.Contains(value, "@") {
		if _, err := NormalizeEmail(value); err == nil {
			return EventTypeEmailAddress, nil
		}
		return "", ErrUnknownEventType
	}
	if _, err := NormalizeHost(value); err == nil {
		return EventTypeDNSName, nil
	}
	return "", ErrUnknownEventType
}
