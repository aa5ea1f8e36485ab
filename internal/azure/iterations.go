package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pegodk/azpm/internal/logger"
)

// Iteration is a sprint as exposed by the classification-node API.
type Iteration struct {
	ID         int    `json:"id"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	StartDate  string `json:"start_date,omitempty"`
	FinishDate string `json:"finish_date,omitempty"`
}

// classificationNode is the nested tree shape returned by the
// classificationnodes endpoint.
type classificationNode struct {
	ID         int    `json:"id"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	Attributes struct {
		StartDate  string `json:"startDate"`
		FinishDate string `json:"finishDate"`
	} `json:"attributes"`
	Children []classificationNode `json:"children"`
}

// GetIterations lists all iterations in the project, flattening the nested
// classification tree depth-first.
func (c *Client) GetIterations(ctx context.Context) ([]Iteration, error) {
	query := url.Values{}
	query.Set("$depth", "10")
	rawURL := c.witURL("classificationnodes/iterations", query)

	var root classificationNode
	if err := c.doJSON(ctx, http.MethodGet, rawURL, nil, "", &root); err != nil {
		return nil, fmt.Errorf("failed to list iterations: %w", err)
	}

	var results []Iteration
	for _, child := range root.Children {
		results = append(results, flattenIterationNodes(child)...)
	}
	return results, nil
}

// flattenIterationNodes flattens an iteration node and its descendants,
// parent before children.
func flattenIterationNodes(node classificationNode) []Iteration {
	results := []Iteration{{
		ID:         node.ID,
		Identifier: node.Identifier,
		Name:       node.Name,
		Path:       node.Path,
		StartDate:  node.Attributes.StartDate,
		FinishDate: node.Attributes.FinishDate,
	}}
	for _, child := range node.Children {
		results = append(results, flattenIterationNodes(child)...)
	}
	return results
}

// CreateIteration creates a new iteration and subscribes it to the default
// team so it appears on the board. Dates are ISO-8601 strings and optional.
func (c *Client) CreateIteration(ctx context.Context, name, startDate, finishDate string) (*Iteration, error) {
	body := map[string]any{"name": name}
	attributes := map[string]any{}
	if startDate != "" {
		attributes["startDate"] = startDate
	}
	if finishDate != "" {
		attributes["finishDate"] = finishDate
	}
	if len(attributes) > 0 {
		body["attributes"] = attributes
	}

	rawURL := c.witURL("classificationnodes/iterations", nil)
	var node classificationNode
	if err := c.doJSON(ctx, http.MethodPost, rawURL, body, "", &node); err != nil {
		return nil, fmt.Errorf("failed to create iteration %q: %w", name, err)
	}

	if node.Identifier != "" {
		if _, err := c.SubscribeIteration(ctx, node.Identifier); err != nil {
			logger.Warn("Created iteration %q but could not subscribe it to the default team: %v", name, err)
		}
	}

	path := node.Path
	if path == "" {
		path = fmt.Sprintf("\\%s\\Iteration\\%s", c.Project, name)
	}
	return &Iteration{
		ID:         node.ID,
		Identifier: node.Identifier,
		Name:       node.Name,
		Path:       path,
		StartDate:  node.Attributes.StartDate,
		FinishDate: node.Attributes.FinishDate,
	}, nil
}

// UpdateIteration renames an iteration and/or sets its dates. Returns
// ErrNotFound if no iteration matches currentName. Bare dates are widened to
// midnight-UTC timestamps as the API requires.
func (c *Client) UpdateIteration(ctx context.Context, currentName, newName, startDate, finishDate string) (*Iteration, error) {
	body := map[string]any{}
	if newName != "" {
		body["name"] = newName
	}
	attributes := map[string]any{}
	if startDate != "" {
		attributes["startDate"] = widenDate(startDate)
	}
	if finishDate != "" {
		attributes["finishDate"] = widenDate(finishDate)
	}
	if len(attributes) > 0 {
		body["attributes"] = attributes
	}

	rawURL := c.witURL("classificationnodes/iterations/"+url.PathEscape(currentName), nil)
	var node classificationNode
	if err := c.doJSON(ctx, http.MethodPatch, rawURL, body, "", &node); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("iteration %q: %w", currentName, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update iteration %q: %w", currentName, err)
	}

	name := node.Name
	if name == "" {
		name = newName
		if name == "" {
			name = currentName
		}
	}
	return &Iteration{
		ID:         node.ID,
		Identifier: node.Identifier,
		Name:       name,
		Path:       node.Path,
		StartDate:  node.Attributes.StartDate,
		FinishDate: node.Attributes.FinishDate,
	}, nil
}

// SubscribeIteration subscribes an iteration to the default team. A 409
// response means the iteration is already on the board and counts as success.
func (c *Client) SubscribeIteration(ctx context.Context, identifier string) (string, error) {
	rawURL := fmt.Sprintf("%s/%s/%s/_apis/work/teamsettings/iterations?api-version=%s",
		c.BaseURL, url.PathEscape(c.Organization), url.PathEscape(c.Project), c.APIVersion)

	err := c.doJSON(ctx, http.MethodPost, rawURL, map[string]string{"id": identifier}, "", nil)
	if err != nil {
		if strings.Contains(err.Error(), "HTTP 409") {
			return "already_subscribed", nil
		}
		return "", fmt.Errorf("failed to subscribe iteration %s: %w", identifier, err)
	}
	return "subscribed", nil
}

// widenDate turns a bare ISO date into a midnight-UTC timestamp; timestamps
// pass through untouched.
func widenDate(date string) string {
	if strings.Contains(date, "T") {
		return date
	}
	return date + "T00:00:00Z"
}
