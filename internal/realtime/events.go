package realtime

import "time"

// Event is the wire shape of every message pushed to clients.
type Event struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

func newEvent(eventType string, data any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
}

// DataUpdate announces the result of a polling cycle.
func DataUpdate(total, added, updated int) Event {
	return newEvent("data_update", map[string]int{
		"total":   total,
		"new":     added,
		"updated": updated,
	})
}

// FCMSent reports a push dispatch attempt for a person.
func FCMSent(personID, name string, success, failure int) Event {
	return newEvent("fcm_sent", map[string]any{
		"person_id": personID,
		"name":      name,
		"success":   success,
		"failure":   failure,
	})
}

// NewSightingReport announces a freshly filed sighting.
func NewSightingReport(reportID int64, personID, location string) Event {
	return newEvent("new_sighting_report", map[string]any{
		"report_id": reportID,
		"person_id": personID,
		"location":  location,
	})
}

// PersonFound announces a confirmed sighting resolution.
func PersonFound(personID, name string) Event {
	return newEvent("person_found", map[string]any{
		"person_id": personID,
		"name":      name,
	})
}

// AnalyticsUpdate carries a fresh analytics snapshot.
func AnalyticsUpdate(snapshot any) Event {
	return newEvent("analytics_update", snapshot)
}

// DriverRegistered confirms a driver channel registration back to the
// connecting client.
func DriverRegistered(driverID string) Event {
	return newEvent("driver_registered", map[string]string{
		"driver_id": driverID,
	})
}

// Pong answers a client ping.
func Pong() Event {
	return newEvent("pong", nil)
}

// StatsUpdate answers a client stats request.
func StatsUpdate(stats Stats) Event {
	return newEvent("stats_update", stats)
}
