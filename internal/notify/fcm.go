// Package notify dispatches push notifications about missing persons to
// registered driver devices through Firebase Cloud Messaging.
package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Message is one push payload.
type Message struct {
	Title        string
	Body         string
	Data         map[string]string
	HighPriority bool
}

// SendResult summarizes a multicast attempt. InvalidTokens lists targets
// the platform rejected as no longer registered.
type SendResult struct {
	Success       int
	Failure       int
	InvalidTokens []string
}

// Sender delivers a message to a set of device tokens.
type Sender interface {
	SendMulticast(ctx context.Context, tokens []string, msg Message) (SendResult, error)
}

// FCMSender implements Sender on top of the Firebase Admin SDK.
type FCMSender struct {
	client *messaging.Client
}

// NewFCMSender initializes the Firebase app from a service account
// credentials file and returns a ready sender.
func NewFCMSender(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}

	return &FCMSender{client: client}, nil
}

// SendMulticast pushes the message to every token in one batch call.
func (s *FCMSender) SendMulticast(ctx context.Context, tokens []string, msg Message) (SendResult, error) {
	multicast := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	}
	multicast.APNS = &messaging.APNSConfig{
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				Alert: &messaging.ApsAlert{Title: msg.Title, Body: msg.Body},
				Sound: "default",
			},
		},
	}
	if msg.HighPriority {
		multicast.Android = &messaging.AndroidConfig{Priority: "high"}
	}

	resp, err := s.client.SendEachForMulticast(ctx, multicast)
	if err != nil {
		return SendResult{}, fmt.Errorf("multicast send failed: %w", err)
	}

	result := SendResult{Success: resp.SuccessCount, Failure: resp.FailureCount}
	for i, r := range resp.Responses {
		if r.Success || r.Error == nil {
			continue
		}
		if messaging.IsUnregistered(r.Error) || errorutils.IsInvalidArgument(r.Error) {
			result.InvalidTokens = append(result.InvalidTokens, tokens[i])
		}
	}

	return result, nil
}
