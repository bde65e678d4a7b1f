package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"classtrack/internal/model"
)

// Client resolves batches, classroom configurations and subjects from the
// directory microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a directory client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetRoster fetches the student ids of a batch.
func (c *Client) GetRoster(ctx context.Context, batchID string) ([]string, error) {
	if batchID == "" {
		return nil, ErrBatchNotFound
	}
	var out struct {
		StudentIDs []string `json:"student_ids"`
	}
	if err := c.getJSON(ctx, "/v1/batches/"+batchID, &out, ErrBatchNotFound); err != nil {
		return nil, err
	}
	return out.StudentIDs, nil
}

// GetLocation fetches a classroom configuration point.
func (c *Client) GetLocation(ctx context.Context, classConfigID string) (*model.Location, error) {
	if classConfigID == "" {
		return nil, ErrConfigNotFound
	}
	var out model.Location
	if err := c.getJSON(ctx, "/v1/class-configs/"+classConfigID, &out, ErrConfigNotFound); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSubject checks a subject code exists.
func (c *Client) GetSubject(ctx context.Context, subjectCode string) (*Subject, error) {
	if subjectCode == "" {
		return nil, ErrSubjectNotFound
	}
	var out Subject
	if err := c.getJSON(ctx, "/v1/subjects/"+subjectCode, &out, ErrSubjectNotFound); err != nil {
		return nil, err
	}
	return &out, nil
}

// getJSON performs a GET and decodes the body; a 404 maps to the provided
// missing error, every other non-2xx surfaces with the response body.
func (c *Client) getJSON(ctx context.Context, path string, out any, missing error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return missing
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("directory error %s: %s", resp.Status, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode directory response: %w", err)
	}
	return nil
}
