package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Candidate is a single geocoder hit.
type Candidate struct {
	Lat     float64
	Lng     float64
	Address string
}

// Geocoder searches an address query and returns zero or more candidates.
// An empty slice with a nil error means the query produced no hits.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// KakaoClient geocodes through the Kakao Local address search endpoint.
type KakaoClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// kakaoDocument mirrors one entry of the Kakao response. Coordinates come
// back as strings.
type kakaoDocument struct {
	AddressName string `json:"address_name"`
	X           string `json:"x"`
	Y           string `json:"y"`
}

type kakaoResponse struct {
	Documents []kakaoDocument `json:"documents"`
}

// NewKakaoClient builds a client for the Kakao Local API.
func NewKakaoClient(baseURL, apiKey string, timeout time.Duration) *KakaoClient {
	return &KakaoClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Search runs the address query and parses coordinate candidates.
func (c *KakaoClient) Search(ctx context.Context, query string) ([]Candidate, error) {
	endpoint := c.baseURL + "/v2/local/search/address.json?" + url.Values{
		"query": {query},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocode request: %w", err)
	}
	req.Header.Set("Authorization", "KakaoAK "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read geocode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode request returned status %d", resp.StatusCode)
	}

	var parsed kakaoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse geocode response: %w", err)
	}

	candidates := make([]Candidate, 0, len(parsed.Documents))
	for _, doc := range parsed.Documents {
		lng, errX := strconv.ParseFloat(doc.X, 64)
		lat, errY := strconv.ParseFloat(doc.Y, 64)
		if errX != nil || errY != nil {
			continue
		}
		candidates = append(candidates, Candidate{Lat: lat, Lng: lng, Address: doc.AddressName})
	}

	return candidates, nil
}
