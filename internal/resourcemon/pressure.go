package resourcemon

import (
	"fmt"
	"time"

	"aegisrt/internal/apicore"
	"aegisrt/pkg/logging"
)

// detectPressure checks snap against every configured threshold,
// tracking how long each resource has stayed at or above warning. A
// resource only becomes "pressured" (and fires an alert) once it has
// been continuously at or above warning for its sustained_duration;
// dropping below warning clears the tracked start time (spec.md §4.G).
func (m *Monitor) detectPressure(snap Snapshot) []Resource {
	now := snap.Timestamp
	var pressured []Resource

	m.thresholdsMu.RLock()
	thresholds := make(map[Resource]Threshold, len(m.thresholds))
	for k, v := range m.thresholds {
		thresholds[k] = v
	}
	m.thresholdsMu.RUnlock()

	m.pressureMu.Lock()
	defer m.pressureMu.Unlock()

	for resource, threshold := range thresholds {
		value, ok := snap.value(resource)
		if !ok {
			continue
		}

		if value < threshold.Warning {
			delete(m.pressureSince, resource)
			continue
		}

		start, tracked := m.pressureSince[resource]
		if !tracked {
			m.pressureSince[resource] = now
			continue
		}

		if now.Sub(start) >= threshold.SustainedDuration {
			level := alertLevel(value, threshold)
			m.publishAlert(resource, level, value, threshold)
			pressured = append(pressured, resource)
		}
	}

	return pressured
}

func alertLevel(value float64, t Threshold) apicore.AlertLevel {
	switch {
	case value >= t.Emergency:
		return apicore.AlertEmergency
	case value >= t.Critical:
		return apicore.AlertCritical
	case value >= t.Warning:
		return apicore.AlertWarning
	default:
		return apicore.AlertInfo
	}
}

func (m *Monitor) publishAlert(resource Resource, level apicore.AlertLevel, value float64, t Threshold) {
	thresholdValue := t.Warning
	switch level {
	case apicore.AlertEmergency:
		thresholdValue = t.Emergency
	case apicore.AlertCritical:
		thresholdValue = t.Critical
	}

	alert := apicore.ResourceAlert{
		ID:             newAlertID(),
		ResourceType:   string(resource),
		Level:          level,
		CurrentValue:   value,
		ThresholdValue: thresholdValue,
		Message:        fmt.Sprintf("%s usage at %.1f%% (threshold %.1f%%)", resource, value, thresholdValue),
		Timestamp:      time.Now(),
	}
	m.alerts.Publish(alert)

	switch level {
	case apicore.AlertEmergency, apicore.AlertCritical:
		logging.Error(resourcemonSubsystem, nil, "%s", alert.Message)
	default:
		logging.Warn(resourcemonSubsystem, "%s", alert.Message)
	}
}

// IsUnderPressure reports whether resource (or any resource, if empty)
// is currently in a tracked pressure window.
func (m *Monitor) IsUnderPressure(resource Resource) bool {
	m.pressureMu.Lock()
	defer m.pressureMu.Unlock()
	if resource == "" {
		return len(m.pressureSince) > 0
	}
	_, ok := m.pressureSince[resource]
	return ok
}
