package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/jgoulah/dailyusage/pkg/models"
)

const (
	// MeterSourceName is the summary name of the smart meter source
	MeterSourceName = "tuya"

	meterTable           = "tuya_zaehler"
	meterTimestampColumn = "inserted_at"
	meterValueColumn     = "Zaehlerstand"

	deviceTable           = "power_consumption"
	deviceTimestampColumn = "insertedAt"
	deviceValueColumn     = "phase1_totalReturned"
	deviceIDColumn        = "deviceId"

	// DeviceCount is the number of power-consumption devices tracked by default
	DeviceCount = 6
)

// ErrUnknownSourceKind is returned for a source whose kind is neither meter nor device
var ErrUnknownSourceKind = errors.New("unknown source kind")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DefaultSources returns the meter source followed by Device1..Device6
func DefaultSources() []models.Source {
	sources := []models.Source{MeterSource(MeterSourceName)}
	for id := 1; id <= DeviceCount; id++ {
		sources = append(sources, DeviceSource(id))
	}
	return sources
}

// MeterSource returns the tuya_zaehler source under the given name
func MeterSource(name string) models.Source {
	return models.Source{
		Name:            name,
		Kind:            models.KindMeter,
		Table:           meterTable,
		TimestampColumn: meterTimestampColumn,
		ValueColumn:     meterValueColumn,
	}
}

// DeviceSource returns the power_consumption source for one device id
func DeviceSource(id int) models.Source {
	return models.Source{
		Name:            models.DeviceName(id),
		Kind:            models.KindDevice,
		Table:           deviceTable,
		TimestampColumn: deviceTimestampColumn,
		ValueColumn:     deviceValueColumn,
		DeviceColumn:    deviceIDColumn,
		DeviceID:        id,
	}
}

// RenameMeter returns a copy of sources with every meter source relabeled
func RenameMeter(sources []models.Source, name string) []models.Source {
	out := make([]models.Source, len(sources))
	for i, s := range sources {
		if s.Kind == models.KindMeter && name != "" {
			s.Name = name
		}
		out[i] = s
	}
	return out
}

// ValidateSources checks names, kinds and SQL identifiers of a source list.
// Identifiers are interpolated into queries, so only plain names are accepted.
func ValidateSources(sources []models.Source) error {
	seen := make(map[string]bool, len(sources))
	for i, s := range sources {
		if s.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("source %s: duplicate name", s.Name)
		}
		seen[s.Name] = true

		columns := map[string]string{
			"table":            s.Table,
			"timestamp_column": s.TimestampColumn,
			"value_column":     s.ValueColumn,
		}

		switch s.Kind {
		case models.KindMeter:
		case models.KindDevice:
			if s.DeviceID <= 0 {
				return fmt.Errorf("source %s: device_id must be positive", s.Name)
			}
			columns["device_column"] = s.DeviceColumn
		default:
			return fmt.Errorf("source %s: %w: %q", s.Name, ErrUnknownSourceKind, s.Kind)
		}

		for field, ident := range columns {
			if !identifierPattern.MatchString(ident) {
				return fmt.Errorf("source %s: invalid %s %q", s.Name, field, ident)
			}
		}
	}
	return nil
}
