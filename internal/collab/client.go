package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"codecollab/internal/model"
)

// Client fetches project metadata and the collaborator roster from the
// project API. The roster is TTL-cached per project; a "project changed"
// signal invalidates it so the next read refreshes.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	roster  *cache.Cache
}

func NewClient(baseURL, token string, rosterTTL time.Duration) *Client {
	if rosterTTL <= 0 {
		rosterTTL = 5 * time.Minute
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		roster:  cache.New(rosterTTL, 10*time.Minute),
	}
}

// AllUsers returns every user known to the workspace, for the add-collaborator
// picker.
func (c *Client) AllUsers(ctx context.Context) ([]model.Collaborator, error) {
	var body struct {
		Users []model.Collaborator `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/get-all-users", nil, &body); err != nil {
		return nil, err
	}
	return body.Users, nil
}

// Project fetches project metadata by id.
func (c *Client) Project(ctx context.Context, projectID string) (*model.Project, error) {
	var body struct {
		Project model.Project `json:"project"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects/get-project/"+projectID, nil, &body); err != nil {
		return nil, err
	}
	return &body.Project, nil
}

// Collaborators returns the project roster, served from cache inside the TTL.
func (c *Client) Collaborators(ctx context.Context, projectID string) ([]model.Collaborator, error) {
	if cached, found := c.roster.Get(projectID); found {
		return cached.([]model.Collaborator), nil
	}

	project, err := c.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	c.roster.Set(projectID, project.Users, cache.DefaultExpiration)
	return project.Users, nil
}

// AddCollaborators attaches users to the project and refreshes the cached
// roster from the response.
func (c *Client) AddCollaborators(ctx context.Context, projectID string, userIDs []string) (*model.Project, error) {
	payload := map[string]interface{}{
		"projectId": projectID,
		"users":     userIDs,
	}
	var body struct {
		Project model.Project `json:"project"`
	}
	if err := c.do(ctx, http.MethodPut, "/projects/add-user", payload, &body); err != nil {
		return nil, err
	}
	c.roster.Set(projectID, body.Project.Users, cache.DefaultExpiration)
	return &body.Project, nil
}

// Invalidate drops the cached roster for a project. Call on any external
// "project changed" signal.
func (c *Client) Invalidate(projectID string) {
	c.roster.Delete(projectID)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("collab: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("collab: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("collab: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("collab: %s %s: status %d: %s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("collab: decode response: %w", err)
	}
	return nil
}
