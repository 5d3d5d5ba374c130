package edapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/aca-libraries/libstats/internal/frame"
)

// Portal endpoints below the IPEDS base URL.
const (
	EndpointAcademicLibraries = "academic-libraries"
	EndpointFallEnrollment    = "fall-enrollment"
)

// Record is one result object returned by the portal.
type Record map[string]any

// First returns the first value among keys that is present and not missing.
func (r Record) First(keys ...string) any {
	for _, k := range keys {
		if v, ok := r[k]; ok && !frame.IsMissing(frame.Normalize(v)) {
			return v
		}
	}
	return nil
}

// JSON renders the record as compact JSON.
func (r Record) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(data)
}

type envelope struct {
	Results []Record `json:"results"`
}

// Fetch returns the first result of endpoint for one institution and year, or
// nil when the portal has none. Non-success responses are returned as errors.
func (c *Client) Fetch(ctx context.Context, endpoint string, unitID int64, year int) (Record, error) {
	q := url.Values{}
	q.Set("unitid", strconv.FormatInt(unitID, 10))
	q.Set("year", strconv.Itoa(year))

	resp, err := c.Get(ctx, endpoint, q)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	var env envelope
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if len(env.Results) == 0 {
		return nil, nil
	}
	return env.Results[0], nil
}
