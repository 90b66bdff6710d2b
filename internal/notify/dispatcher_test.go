package notify

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/daejeonsafe/safenet/internal/database"
)

// fakeStore implements only the store methods the dispatcher touches;
// the embedded interface panics on anything else.
type fakeStore struct {
	database.Store
	tokens      []database.DeviceToken
	deactivated []string
	logged      []*database.Notification
}

func (f *fakeStore) ActiveDeviceTokens(_ context.Context) ([]database.DeviceToken, error) {
	return f.tokens, nil
}

func (f *fakeStore) DeactivateDeviceToken(_ context.Context, token string) error {
	f.deactivated = append(f.deactivated, token)
	return nil
}

func (f *fakeStore) InsertNotificationLog(_ context.Context, n *database.Notification) error {
	f.logged = append(f.logged, n)
	return nil
}

type fakeSender struct {
	result SendResult
	err    error
	calls  int
	tokens []string
}

func (f *fakeSender) SendMulticast(_ context.Context, tokens []string, _ Message) (SendResult, error) {
	f.calls++
	f.tokens = tokens
	return f.result, f.err
}

func testPerson() *database.Person {
	return &database.Person{
		ID:       "p1",
		Name:     "김철수",
		Priority: database.PriorityHigh,
	}
}

func TestSendNoTargets(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	sender := &fakeSender{}
	d := NewDispatcher(sender, store, nil, nil)

	outcome := d.Send(context.Background(), testPerson(), "알림")
	if outcome.Kind != NoTargets {
		t.Errorf("kind = %v, want NoTargets", outcome.Kind)
	}
	if sender.calls != 0 {
		t.Error("transport was called with an empty audience")
	}
	if len(store.logged) != 1 {
		t.Fatal("no audit row for the skipped dispatch")
	}
	if store.logged[0].TargetCount != 0 {
		t.Errorf("target count = %d, want 0", store.logged[0].TargetCount)
	}
}

func TestSendDelivered(t *testing.T) {
	t.Parallel()

	store := &fakeStore{tokens: []database.DeviceToken{
		{Token: "tok-a"}, {Token: "tok-b"}, {Token: "tok-c"},
	}}
	sender := &fakeSender{result: SendResult{Success: 2, Failure: 1, InvalidTokens: []string{"tok-c"}}}
	d := NewDispatcher(sender, store, nil, nil)

	outcome := d.Send(context.Background(), testPerson(), "알림")
	if outcome.Kind != Delivered {
		t.Fatalf("kind = %v, want Delivered", outcome.Kind)
	}
	if outcome.Success != 2 || outcome.Failure != 1 {
		t.Errorf("counts = %d/%d", outcome.Success, outcome.Failure)
	}
	if len(store.deactivated) != 1 || store.deactivated[0] != "tok-c" {
		t.Errorf("deactivated = %v, want [tok-c]", store.deactivated)
	}
	if len(store.logged) != 1 || store.logged[0].SuccessCount != 2 {
		t.Error("audit row missing or wrong")
	}
}

func TestSendTransportError(t *testing.T) {
	t.Parallel()

	store := &fakeStore{tokens: []database.DeviceToken{
		{Token: "tok-a"}, {Token: "tok-b"}, {Token: "tok-c"},
	}}
	sender := &fakeSender{err: errors.New("fcm unavailable")}
	d := NewDispatcher(sender, store, nil, nil)

	outcome := d.Send(context.Background(), testPerson(), "알림")
	if outcome.Kind != TransportError {
		t.Fatalf("kind = %v, want TransportError", outcome.Kind)
	}
	if outcome.Success != 0 || outcome.Failure != 3 {
		t.Errorf("counts = %d/%d, want 0/3", outcome.Success, outcome.Failure)
	}
	if len(store.logged) != 1 {
		t.Fatal("audit row missing")
	}
	row := store.logged[0]
	if row.TargetCount != 3 || row.SuccessCount != 0 || row.FailureCount != 3 {
		t.Errorf("audit counts = %d/%d/%d, want 3/0/3", row.TargetCount, row.SuccessCount, row.FailureCount)
	}
	if !row.ErrorMessage.Valid {
		t.Error("audit row should carry the transport error")
	}
}

func TestSendWithoutSenderFailsAllTargets(t *testing.T) {
	t.Parallel()

	store := &fakeStore{tokens: []database.DeviceToken{{Token: "tok-a"}, {Token: "tok-b"}}}
	d := NewDispatcher(nil, store, nil, nil)

	outcome := d.Send(context.Background(), testPerson(), "알림")
	if outcome.Kind != TransportError {
		t.Fatalf("kind = %v, want TransportError", outcome.Kind)
	}
	if outcome.Failure != 2 {
		t.Errorf("failure = %d, want 2", outcome.Failure)
	}
	if len(store.logged) != 1 || store.logged[0].FailureCount != 2 {
		t.Error("audit row should count every unreached target as a failure")
	}
}

func TestBuildMessagePriority(t *testing.T) {
	t.Parallel()

	urgent := buildMessage(testPerson(), "body")
	if !urgent.HighPriority {
		t.Error("high priority person should produce a high priority push")
	}
	if urgent.Data["name"] != "김철수" || urgent.Data["person_id"] != "p1" {
		t.Errorf("payload data missing person fields: %v", urgent.Data)
	}
	if _, ok := urgent.Data["lat"]; ok {
		t.Error("unresolved coordinates should be omitted from payload data")
	}

	located := testPerson()
	located.Age = sql.NullInt64{Int64: 7, Valid: true}
	located.Lat = sql.NullFloat64{Float64: 36.35, Valid: true}
	located.Lng = sql.NullFloat64{Float64: 127.38, Valid: true}
	msg := buildMessage(located, "body")
	if msg.Data["age"] != "7" || msg.Data["lat"] != "36.35" || msg.Data["lng"] != "127.38" {
		t.Errorf("payload data missing resolved fields: %v", msg.Data)
	}

	calm := testPerson()
	calm.Priority = database.PriorityMedium
	if buildMessage(calm, "body").HighPriority {
		t.Error("medium priority person should not produce a high priority push")
	}
}
