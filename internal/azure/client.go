// Package azure is a REST client for Azure DevOps work-item and iteration
// operations (the _apis/wit surface).
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pegodk/azpm/internal/logger"
)

// batchSize is the Azure DevOps cap on ids per work-items batch request.
const batchSize = 200

// ErrNotFound is returned when a referenced work item or iteration does not exist.
var ErrNotFound = errors.New("not found")

// DefaultFields is the field set fetched for hierarchy queries.
var DefaultFields = []string{
	FieldID,
	FieldTitle,
	FieldWorkItemType,
	FieldState,
	FieldDescription,
	FieldParent,
	FieldIterationPath,
	FieldAcceptanceCriteria,
	FieldStoryPoints,
	FieldEffort,
}

// Azure DevOps field reference names.
const (
	FieldID                 = "System.Id"
	FieldTitle              = "System.Title"
	FieldWorkItemType       = "System.WorkItemType"
	FieldState              = "System.State"
	FieldDescription        = "System.Description"
	FieldParent             = "System.Parent"
	FieldIterationPath      = "System.IterationPath"
	FieldAcceptanceCriteria = "Microsoft.VSTS.Common.AcceptanceCriteria"
	FieldStoryPoints        = "Microsoft.VSTS.Scheduling.StoryPoints"
	FieldEffort             = "Microsoft.VSTS.Scheduling.Effort"
)

// RawWorkItem is a work item as returned by the REST API: an id plus a flat
// map of field reference names to values.
type RawWorkItem struct {
	ID     int            `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Client talks to the Azure DevOps REST API for a single organization/project.
type Client struct {
	Organization string
	Project      string
	APIVersion   string

	// BaseURL is the service root, overridable in tests.
	BaseURL string

	pat        string
	httpClient *http.Client
}

// NewClient creates a client for the given organization, project, and
// personal access token. An empty apiVersion defaults to 7.1.
func NewClient(organization, project, pat, apiVersion string) *Client {
	if apiVersion == "" {
		apiVersion = "7.1"
	}
	return &Client{
		Organization: organization,
		Project:      project,
		APIVersion:   apiVersion,
		BaseURL:      "https://dev.azure.com",
		pat:          pat,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// witURL builds a URL under the project's _apis/wit area.
func (c *Client) witURL(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", c.APIVersion)
	return fmt.Sprintf("%s/%s/%s/_apis/wit/%s?%s",
		c.BaseURL, url.PathEscape(c.Organization), url.PathEscape(c.Project), path, query.Encode())
}

// doJSON sends a request with PAT auth and decodes a JSON response into out.
// Non-2xx responses surface as errors carrying the raw response body.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, body any, contentType string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth("", c.pat)
	if body != nil {
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: HTTP %d: %s", method, rawURL, resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// patchOp is a single JSON-patch operation for work-item writes.
type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// wiqlResponse is the result shape of a WIQL query.
type wiqlResponse struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

// Create creates a work item of the given type and returns its new id.
// Pass parentID 0 for a root item. Rich-text fields (description,
// acceptance_criteria) are converted from plain text to HTML.
func (c *Client) Create(ctx context.Context, workItemType string, data map[string]any, parentID int) (int, error) {
	title, _ := data["title"].(string)
	body := []patchOp{
		{Op: "add", Path: "/fields/" + FieldTitle, Value: title},
	}

	if desc, ok := data["description"].(string); ok && desc != "" {
		body = append(body, patchOp{Op: "add", Path: "/fields/" + FieldDescription, Value: ToHTML(desc)})
	}
	if ac, ok := data["acceptance_criteria"].(string); ok && ac != "" {
		body = append(body, patchOp{Op: "add", Path: "/fields/" + FieldAcceptanceCriteria, Value: ToHTML(ac)})
	}
	if v, ok := toFloat(data["estimate"]); ok {
		body = append(body, patchOp{Op: "add", Path: "/fields/" + FieldEffort, Value: v})
	}
	if v, ok := toFloat(data["story_points"]); ok {
		body = append(body, patchOp{Op: "add", Path: "/fields/" + FieldStoryPoints, Value: v})
	}
	if ip, ok := data["iteration_path"].(string); ok && ip != "" {
		body = append(body, patchOp{Op: "add", Path: "/fields/" + FieldIterationPath, Value: ip})
	}
	if parentID != 0 {
		body = append(body, patchOp{
			Op:   "add",
			Path: "/relations/-",
			Value: map[string]any{
				"rel": "System.LinkTypes.Hierarchy-Reverse",
				"url": fmt.Sprintf("%s/%s/_apis/wit/workItems/%d", c.BaseURL, url.PathEscape(c.Organization), parentID),
			},
		})
	}

	rawURL := c.witURL("workitems/$"+url.PathEscape(workItemType), nil)
	var created struct {
		ID int `json:"id"`
	}
	logger.Debug("Creating %s: %q (parent=%d)", workItemType, title, parentID)
	if err := c.doJSON(ctx, http.MethodPost, rawURL, body, "application/json-patch+json", &created); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", workItemType, err)
	}
	return created.ID, nil
}

// GetWorkItem fetches a single work item by id. Returns ErrNotFound if the
// id does not exist.
func (c *Client) GetWorkItem(ctx context.Context, id int) (*RawWorkItem, error) {
	rawURL := c.witURL("workitems/"+strconv.Itoa(id), nil)
	var item RawWorkItem
	if err := c.doJSON(ctx, http.MethodGet, rawURL, nil, "", &item); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("work item %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get work item %d: %w", id, err)
	}
	return &item, nil
}

// UpdateWorkItem updates a work item's title, description, state, or
// iteration path. Only keys present in data are touched.
func (c *Client) UpdateWorkItem(ctx context.Context, id int, data map[string]any) (*RawWorkItem, error) {
	fieldPaths := []struct{ key, ref string }{
		{"title", FieldTitle},
		{"description", FieldDescription},
		{"state", FieldState},
		{"iteration_path", FieldIterationPath},
	}
	var body []patchOp
	for _, fp := range fieldPaths {
		if v, ok := data[fp.key]; ok {
			body = append(body, patchOp{Op: "replace", Path: "/fields/" + fp.ref, Value: v})
		}
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	rawURL := c.witURL("workitems/"+strconv.Itoa(id), nil)
	var item RawWorkItem
	if err := c.doJSON(ctx, http.MethodPatch, rawURL, body, "application/json-patch+json", &item); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("work item %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update work item %d: %w", id, err)
	}
	return &item, nil
}

// DeleteWorkItem deletes a work item by id.
func (c *Client) DeleteWorkItem(ctx context.Context, id int) error {
	rawURL := c.witURL("workitems/"+strconv.Itoa(id), nil)
	if err := c.doJSON(ctx, http.MethodDelete, rawURL, nil, "", nil); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("work item %d: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to delete work item %d: %w", id, err)
	}
	return nil
}

// FindByTitle returns the ids of work items whose title matches exactly.
func (c *Client) FindByTitle(ctx context.Context, title string) ([]int, error) {
	safeTitle := strings.ReplaceAll(title, "'", "''")
	query := fmt.Sprintf("SELECT [System.Id] FROM WorkItems WHERE [System.Title] = '%s'", safeTitle)
	return c.RunWIQL(ctx, query)
}

// WorkItemExists reports whether a work item with the given title (and, when
// parentID is non-zero, the given parent) already exists.
func (c *Client) WorkItemExists(ctx context.Context, title string, parentID int) (bool, error) {
	safeTitle := strings.ReplaceAll(title, "'", "''")
	query := fmt.Sprintf("SELECT [System.Id] FROM WorkItems WHERE [System.Title] = '%s'", safeTitle)
	if parentID != 0 {
		query += fmt.Sprintf(" AND [System.Parent] = %d", parentID)
	}
	ids, err := c.RunWIQL(ctx, query)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// RunWIQL executes a WIQL query and returns the matching work-item ids.
func (c *Client) RunWIQL(ctx context.Context, queryText string) ([]int, error) {
	rawURL := c.witURL("wiql", nil)
	var result wiqlResponse
	if err := c.doJSON(ctx, http.MethodPost, rawURL, map[string]string{"query": queryText}, "", &result); err != nil {
		return nil, fmt.Errorf("WIQL query failed: %w", err)
	}
	ids := make([]int, 0, len(result.WorkItems))
	for _, wi := range result.WorkItems {
		ids = append(ids, wi.ID)
	}
	return ids, nil
}

// GetWorkItemsBatch fetches full field data for the given ids, chunked at the
// API's 200-id limit. Results preserve the order of the chunks as returned.
// A nil fields slice fetches DefaultFields.
func (c *Client) GetWorkItemsBatch(ctx context.Context, ids []int, fields []string) ([]RawWorkItem, error) {
	if fields == nil {
		fields = DefaultFields
	}
	fieldsCSV := strings.Join(fields, ",")

	var items []RawWorkItem
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		idStrs := make([]string, len(chunk))
		for i, id := range chunk {
			idStrs[i] = strconv.Itoa(id)
		}
		query := url.Values{}
		query.Set("ids", strings.Join(idStrs, ","))
		query.Set("fields", fieldsCSV)

		var page struct {
			Value []RawWorkItem `json:"value"`
		}
		if err := c.doJSON(ctx, http.MethodGet, c.witURL("workitems", query), nil, "", &page); err != nil {
			return nil, fmt.Errorf("batch fetch failed: %w", err)
		}
		items = append(items, page.Value...)
	}
	logger.Debug("Batch-fetched %d work items in %d request(s)", len(items), (len(ids)+batchSize-1)/batchSize)
	return items, nil
}

// ValidateConnection checks that the configured organization, project, and
// PAT can reach the service. Returns a human-readable status message.
func (c *Client) ValidateConnection(ctx context.Context) (bool, string) {
	rawURL := fmt.Sprintf("%s/%s/_apis/projects/%s?api-version=%s",
		c.BaseURL, url.PathEscape(c.Organization), url.PathEscape(c.Project), c.APIVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, fmt.Sprintf("Connection error: %v", err)
	}
	req.SetBasicAuth("", c.pat)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Sprintf("Connection error: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var project struct {
			Name string `json:"name"`
		}
		name := c.Project
		if err := json.NewDecoder(resp.Body).Decode(&project); err == nil && project.Name != "" {
			name = project.Name
		}
		return true, fmt.Sprintf("Connected to project: %s", name)
	case http.StatusUnauthorized:
		return false, "Authentication failed: PAT may be expired or invalid."
	case http.StatusNotFound:
		return false, fmt.Sprintf("Project %q not found in org %q.", c.Project, c.Organization)
	default:
		return false, fmt.Sprintf("Connection failed: HTTP %d", resp.StatusCode)
	}
}

// toFloat coerces a field value to float64. Returns false for nil, empty
// strings, and anything non-numeric.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
