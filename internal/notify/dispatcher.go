package notify

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/daejeonsafe/safenet/internal/database"
	"github.com/daejeonsafe/safenet/internal/realtime"
)

// OutcomeKind classifies the result of a dispatch attempt.
type OutcomeKind int

const (
	// Delivered means the transport accepted the batch; per-token
	// failures are reported in the counts.
	Delivered OutcomeKind = iota
	// NoTargets means no active device tokens existed, so no transport
	// call was made.
	NoTargets
	// TransportError means the transport call itself failed.
	TransportError
)

// Outcome is the result of one dispatch. It is a value, not an error:
// an empty audience and a transport failure are both expected states
// the caller decides how to handle.
type Outcome struct {
	Kind    OutcomeKind
	Success int
	Failure int
	Err     error
}

var errPushDisabled = errors.New("push delivery is not configured")

// Dispatcher sends per-person alerts, audits every attempt, and mirrors
// dispatch results onto the realtime channels.
type Dispatcher struct {
	sender   Sender
	store    database.Store
	registry *realtime.Registry
	logger   *slog.Logger
}

// NewDispatcher wires a dispatcher. The sender may be nil when push is
// not configured; dispatches then report TransportError without
// attempting delivery.
func NewDispatcher(sender Sender, store database.Store, registry *realtime.Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{sender: sender, store: store, registry: registry, logger: logger}
}

// Send pushes an alert about the person to all active device tokens.
// The attempt is recorded in the notification log and broadcast to
// realtime clients regardless of outcome.
func (d *Dispatcher) Send(ctx context.Context, person *database.Person, message string) Outcome {
	tokens, err := d.store.ActiveDeviceTokens(ctx)
	if err != nil {
		return d.finish(ctx, person, message, 0, Outcome{Kind: TransportError, Err: err})
	}
	if len(tokens) == 0 {
		d.logger.Info("no active device tokens, skipping push", "person_id", person.ID)
		return d.finish(ctx, person, message, 0, Outcome{Kind: NoTargets})
	}

	if d.sender == nil {
		return d.finish(ctx, person, message, len(tokens), Outcome{Kind: TransportError, Failure: len(tokens), Err: errPushDisabled})
	}

	targets := make([]string, len(tokens))
	for i, t := range tokens {
		targets[i] = t.Token
	}

	result, err := d.sender.SendMulticast(ctx, targets, buildMessage(person, message))
	if err != nil {
		d.logger.Error("push dispatch failed", "person_id", person.ID, "error", err)
		return d.finish(ctx, person, message, len(targets), Outcome{Kind: TransportError, Failure: len(targets), Err: err})
	}

	for _, token := range result.InvalidTokens {
		if err := d.store.DeactivateDeviceToken(ctx, token); err != nil {
			d.logger.Warn("failed to deactivate stale token", "error", err)
		}
	}

	d.logger.Info("push dispatched",
		"person_id", person.ID,
		"targets", len(targets),
		"success", result.Success,
		"failure", result.Failure)

	return d.finish(ctx, person, message, len(targets), Outcome{
		Kind:    Delivered,
		Success: result.Success,
		Failure: result.Failure,
	})
}

// finish writes the audit row and realtime event for any outcome.
func (d *Dispatcher) finish(ctx context.Context, person *database.Person, message string, targets int, outcome Outcome) Outcome {
	record := &database.Notification{
		PersonID:     person.ID,
		Message:      message,
		Priority:     person.Priority,
		TargetCount:  targets,
		SuccessCount: outcome.Success,
		FailureCount: outcome.Failure,
		SentAt:       time.Now().UTC(),
	}
	if outcome.Err != nil {
		record.ErrorMessage = sql.NullString{String: outcome.Err.Error(), Valid: true}
	}
	if err := d.store.InsertNotificationLog(ctx, record); err != nil {
		d.logger.Warn("failed to record notification", "person_id", person.ID, "error", err)
	}

	if d.registry != nil {
		d.registry.Broadcast(realtime.FCMSent(person.ID, person.Name, outcome.Success, outcome.Failure), realtime.ChannelAdmin)
	}

	return outcome
}

func buildMessage(person *database.Person, body string) Message {
	urgent := person.Urgent()
	title := "실종자 정보 업데이트"
	if urgent {
		title = "긴급 실종자 발생"
	}
	data := map[string]string{
		"person_id": person.ID,
		"name":      person.Name,
		"gender":    person.Gender,
		"location":  person.Location,
		"priority":  person.Priority,
		"category":  person.Category,
	}
	if person.Age.Valid {
		data["age"] = strconv.FormatInt(person.Age.Int64, 10)
	}
	if person.PhotoData != "" {
		data["photo_data"] = person.PhotoData
	}
	if person.Lat.Valid && person.Lng.Valid {
		data["lat"] = strconv.FormatFloat(person.Lat.Float64, 'f', -1, 64)
		data["lng"] = strconv.FormatFloat(person.Lng.Float64, 'f', -1, 64)
	}
	return Message{
		Title:        title,
		Body:         body,
		Data:         data,
		HighPriority: urgent,
	}
}
