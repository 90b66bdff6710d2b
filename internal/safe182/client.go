package safe182

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/daejeonsafe/safenet/internal/config"
	"github.com/daejeonsafe/safenet/internal/database"
)

// RequestRecorder persists one outbound registry call for auditing.
// database.Store satisfies it.
type RequestRecorder interface {
	InsertAPIRequestLog(ctx context.Context, l *database.APIRequestLog) error
}

// Client fetches missing-person records from the Safe182 registry.
type Client struct {
	cfg        config.Safe182Config
	httpClient *http.Client
	recorder   RequestRecorder
	logger     *slog.Logger
}

// NewClient creates a registry client from the given configuration. The
// recorder may be nil to skip request auditing.
func NewClient(cfg config.Safe182Config, recorder RequestRecorder, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		recorder:   recorder,
		logger:     logger.With("component", "safe182_client"),
	}
}

// listResponse is the enveloped payload shape. The registry sometimes
// returns a bare array instead; FetchMissingPersons handles both.
type listResponse struct {
	Result string      `json:"result"`
	Msg    string      `json:"msg"`
	List   []RawPerson `json:"list"`
}

// FetchMissingPersons polls the registry for cases in the configured
// region within the lookback window. All failures are transient from the
// caller's perspective: the poller records them and backs off.
func (c *Client) FetchMissingPersons(ctx context.Context) ([]RawPerson, error) {
	start := time.Now()
	persons, err := c.fetch(ctx)
	c.record(ctx, start, len(persons), err)
	return persons, err
}

func (c *Client) fetch(ctx context.Context) ([]RawPerson, error) {
	now := time.Now()
	form := url.Values{}
	if c.cfg.EsntlID != "" && c.cfg.AuthKey != "" {
		form.Set("esntlId", c.cfg.EsntlID)
		form.Set("authKey", c.cfg.AuthKey)
	}
	form.Set("rowSize", strconv.Itoa(c.cfg.RowSize))
	form.Set("page", "1")
	form.Set("xmlUseYN", "N")
	form.Set("occrAdres", c.cfg.Region)
	form.Set("detailDate1", now.AddDate(0, 0, -c.cfg.LookbackDays).Format("2006-01-02"))
	form.Set("detailDate2", now.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build registry request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry response: %w", err)
	}

	persons, err := decodeList(body)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "Fetched missing-person records", "count", len(persons))
	return persons, nil
}

// record audits the attempt. Recording survives caller cancellation so a
// failed fetch still leaves a row.
func (c *Client) record(ctx context.Context, start time.Time, count int, err error) {
	if c.recorder == nil {
		return
	}
	entry := &database.APIRequestLog{
		Endpoint:       "safe182/findChildList.do",
		Method:         http.MethodPost,
		ResultCount:    count,
		Success:        err == nil,
		ResponseTimeMS: time.Since(start).Milliseconds(),
		RequestedAt:    start.UTC(),
	}
	if err != nil {
		entry.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}
	if rerr := c.recorder.InsertAPIRequestLog(context.WithoutCancel(ctx), entry); rerr != nil {
		c.logger.Warn("failed to record registry request", "error", rerr)
	}
}

// decodeList accepts either an enveloped object or a bare array payload.
func decodeList(body []byte) ([]RawPerson, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var persons []RawPerson
		if err := json.Unmarshal(body, &persons); err != nil {
			return nil, fmt.Errorf("malformed registry array payload: %w", err)
		}
		return persons, nil
	}

	var envelope listResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("malformed registry payload: %w", err)
	}
	if envelope.Result != "" && envelope.Result != "00" {
		return nil, fmt.Errorf("registry error %s: %s", envelope.Result, envelope.Msg)
	}
	return envelope.List, nil
}
