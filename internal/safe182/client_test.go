package safe182

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/daejeonsafe/safenet/internal/config"
	"github.com/daejeonsafe/safenet/internal/database"
)

func TestDecodeList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{
			name: "enveloped payload",
			body: `{"result":"00","msg":"ok","list":[{"nm":"김철수","ageNow":"5"},{"nm":"이영희"}]}`,
			want: 2,
		},
		{
			name: "bare array payload",
			body: `[{"nm":"김철수"},{"nm":"이영희"},{"nm":"박민수"}]`,
			want: 3,
		},
		{
			name: "numeric age field",
			body: `[{"nm":"김철수","ageNow":5}]`,
			want: 1,
		},
		{
			name: "empty envelope list",
			body: `{"result":"00","msg":"ok","list":[]}`,
			want: 0,
		},
		{
			name:    "registry error code",
			body:    `{"result":"99","msg":"인증 실패"}`,
			wantErr: true,
		},
		{
			name:    "malformed payload",
			body:    `<html>blocked</html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := decodeList([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeList: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("records = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestFetchMissingPersonsFormFields(t *testing.T) {
	t.Parallel()

	var form url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		form = r.PostForm
		w.Write([]byte(`{"result":"00","list":[{"nm":"김철수"}]}`))
	}))
	defer ts.Close()

	client := NewClient(config.Safe182Config{
		BaseURL:      ts.URL,
		EsntlID:      "id-1",
		AuthKey:      "key-1",
		Region:       "대전",
		RowSize:      100,
		LookbackDays: 30,
		Timeout:      5 * time.Second,
	}, nil, nil)

	got, err := client.FetchMissingPersons(context.Background())
	if err != nil {
		t.Fatalf("FetchMissingPersons: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("records = %d, want 1", len(got))
	}

	if form.Get("esntlId") != "id-1" || form.Get("authKey") != "key-1" {
		t.Error("credentials missing from form")
	}
	if form.Get("occrAdres") != "대전" {
		t.Errorf("region = %q", form.Get("occrAdres"))
	}
	if form.Get("xmlUseYN") != "N" {
		t.Error("xmlUseYN not set")
	}
	if form.Get("detailDate1") == "" || form.Get("detailDate2") == "" {
		t.Error("lookback window dates missing")
	}
}

type fakeRecorder struct {
	entries []*database.APIRequestLog
}

func (f *fakeRecorder) InsertAPIRequestLog(_ context.Context, l *database.APIRequestLog) error {
	f.entries = append(f.entries, l)
	return nil
}

func TestFetchAuditsEveryAttempt(t *testing.T) {
	t.Parallel()

	status := http.StatusOK
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"result":"00","list":[{"nm":"김철수"},{"nm":"이영희"}]}`))
	}))
	defer ts.Close()

	recorder := &fakeRecorder{}
	client := NewClient(config.Safe182Config{
		BaseURL: ts.URL,
		Region:  "대전",
		RowSize: 100,
		Timeout: 5 * time.Second,
	}, recorder, nil)

	if _, err := client.FetchMissingPersons(context.Background()); err != nil {
		t.Fatalf("FetchMissingPersons: %v", err)
	}
	if len(recorder.entries) != 1 {
		t.Fatalf("audit rows = %d, want 1", len(recorder.entries))
	}
	ok := recorder.entries[0]
	if !ok.Success || ok.ResultCount != 2 || ok.Method != http.MethodPost {
		t.Errorf("success audit = %+v", ok)
	}

	status = http.StatusServiceUnavailable
	if _, err := client.FetchMissingPersons(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if len(recorder.entries) != 2 {
		t.Fatalf("audit rows = %d, want 2", len(recorder.entries))
	}
	failed := recorder.entries[1]
	if failed.Success || failed.ResultCount != 0 || !failed.ErrorMessage.Valid {
		t.Errorf("failure audit = %+v", failed)
	}
}

func TestStableID(t *testing.T) {
	t.Parallel()

	withID := RawPerson{Identifier: "case-9", Name: "김철수"}
	if withID.ID() != "case-9" {
		t.Errorf("id = %q, want registry identifier", withID.ID())
	}

	a := RawPerson{Name: "김철수", AgeNow: "5", SexCode: "남자", OccurredAt: "2026-08-01", Address: "대전"}
	b := RawPerson{Name: "김철수", AgeNow: "5", SexCode: "남자", OccurredAt: "2026-08-01", Address: "대전"}
	if a.ID() != b.ID() {
		t.Error("identical records must derive the same id")
	}

	c := b
	c.OccurredAt = "2026-08-02"
	if a.ID() == c.ID() {
		t.Error("different records must derive different ids")
	}
}
