package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/daejeonsafe/safenet/internal/config"
	"github.com/daejeonsafe/safenet/internal/database"
	"github.com/daejeonsafe/safenet/internal/safe182"
)

type fakeRecorder struct {
	entries []*database.APIRequestLog
}

func (f *fakeRecorder) InsertAPIRequestLog(_ context.Context, l *database.APIRequestLog) error {
	f.entries = append(f.entries, l)
	return nil
}

func TestProcessBatchAuditsEveryAttempt(t *testing.T) {
	t.Parallel()

	status := http.StatusOK
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`[{"category":"preschool-child","priority":"HIGH"}]`))
	}))
	defer ts.Close()

	recorder := &fakeRecorder{}
	g := NewGateway(config.EnrichConfig{BaseURL: ts.URL, Timeout: 5 * time.Second}, recorder, nil)
	records := []safe182.RawPerson{{Name: "김철수"}}

	results, err := g.ProcessBatch(context.Background(), records)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if len(recorder.entries) != 1 {
		t.Fatalf("audit rows = %d, want 1", len(recorder.entries))
	}
	ok := recorder.entries[0]
	if !ok.Success || ok.ResultCount != 1 || ok.Method != http.MethodPost {
		t.Errorf("success audit = %+v", ok)
	}

	status = http.StatusBadGateway
	if _, err := g.ProcessBatch(context.Background(), records); err == nil {
		t.Fatal("expected gateway error")
	}
	if len(recorder.entries) != 2 {
		t.Fatalf("audit rows = %d, want 2", len(recorder.entries))
	}
	failed := recorder.entries[1]
	if failed.Success || !failed.ErrorMessage.Valid {
		t.Errorf("failure audit = %+v", failed)
	}
}
