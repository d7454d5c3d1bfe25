package models

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for flags, queries and storage
const DateLayout = "2006-01-02"

// Reading is a single timestamped observation from a meter or device
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	DeviceID  int       `json:"device_id,omitempty"` // 0 for meter readings
}

// DailyUsage is the summary row for one source on one date
type DailyUsage struct {
	Date  time.Time `json:"date"` // Just the date
	First *float64  `json:"first"`
	Last  *float64  `json:"last"`
	Name  string    `json:"name"` // "tuya", "Device1", ...
}

// Consumption returns last minus first, and false if either value is missing
func (u DailyUsage) Consumption() (float64, bool) {
	if u.First == nil || u.Last == nil {
		return 0, false
	}
	return *u.Last - *u.First, true
}

// DateString returns the record date formatted as YYYY-MM-DD
func (u DailyUsage) DateString() string {
	return u.Date.Format(DateLayout)
}

// SourceKind selects the shape of the read query for a source
type SourceKind string

const (
	// KindMeter reads a table holding a single entity's readings
	KindMeter SourceKind = "meter"
	// KindDevice reads a table shared by several devices, filtered by device id
	KindDevice SourceKind = "device"
)

// Source is a tracked producer of readings
type Source struct {
	Name            string     `yaml:"name"`
	Kind            SourceKind `yaml:"kind"`
	Table           string     `yaml:"table"`
	TimestampColumn string     `yaml:"timestamp_column"`
	ValueColumn     string     `yaml:"value_column"`
	DeviceColumn    string     `yaml:"device_column,omitempty"` // device sources only
	DeviceID        int        `yaml:"device_id,omitempty"`     // device sources only
}

// DeviceName returns the summary name for a power-consumption device id
func DeviceName(id int) string {
	return fmt.Sprintf("Device%d", id)
}
