package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pegodk/azpm/internal/azure"
	"github.com/pegodk/azpm/internal/workitem"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	nextID     int
	items      map[int]*azure.RawWorkItem
	iterations []azure.Iteration
	connOK     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 100, items: map[int]*azure.RawWorkItem{}, connOK: true}
}

func (f *fakeStore) seed(id int, itemType, title string, parent int) {
	fields := map[string]any{
		azure.FieldWorkItemType: itemType,
		azure.FieldTitle:        title,
		azure.FieldState:        "New",
	}
	if parent != 0 {
		fields[azure.FieldParent] = float64(parent)
	}
	f.items[id] = &azure.RawWorkItem{ID: id, Fields: fields}
}

func (f *fakeStore) RunWIQL(ctx context.Context, queryText string) ([]int, error) {
	ids := make([]int, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) GetWorkItemsBatch(ctx context.Context, ids []int, fields []string) ([]azure.RawWorkItem, error) {
	out := make([]azure.RawWorkItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := f.items[id]; ok {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (f *fakeStore) Create(ctx context.Context, workItemType string, data map[string]any, parentID int) (int, error) {
	f.nextID++
	title, _ := data["title"].(string)
	f.seed(f.nextID, workItemType, title, parentID)
	return f.nextID, nil
}

func (f *fakeStore) FindByTitle(ctx context.Context, title string) ([]int, error) {
	var ids []int
	for id, item := range f.items {
		if item.Fields[azure.FieldTitle] == title {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) WorkItemExists(ctx context.Context, title string, parentID int) (bool, error) {
	for _, item := range f.items {
		if item.Fields[azure.FieldTitle] != title {
			continue
		}
		if parentID == 0 {
			return true, nil
		}
		if p, ok := item.Fields[azure.FieldParent].(float64); ok && int(p) == parentID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetWorkItem(ctx context.Context, id int) (*azure.RawWorkItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("work item %d: %w", id, azure.ErrNotFound)
	}
	return item, nil
}

func (f *fakeStore) UpdateWorkItem(ctx context.Context, id int, data map[string]any) (*azure.RawWorkItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("work item %d: %w", id, azure.ErrNotFound)
	}
	if title, ok := data["title"].(string); ok {
		item.Fields[azure.FieldTitle] = title
	}
	if state, ok := data["state"].(string); ok {
		item.Fields[azure.FieldState] = state
	}
	return item, nil
}

func (f *fakeStore) DeleteWorkItem(ctx context.Context, id int) error {
	if _, ok := f.items[id]; !ok {
		return fmt.Errorf("work item %d: %w", id, azure.ErrNotFound)
	}
	delete(f.items, id)
	return nil
}

func (f *fakeStore) GetIterations(ctx context.Context) ([]azure.Iteration, error) {
	return f.iterations, nil
}

func (f *fakeStore) CreateIteration(ctx context.Context, name, startDate, finishDate string) (*azure.Iteration, error) {
	it := azure.Iteration{ID: len(f.iterations) + 1, Name: name, StartDate: startDate, FinishDate: finishDate}
	f.iterations = append(f.iterations, it)
	return &it, nil
}

func (f *fakeStore) UpdateIteration(ctx context.Context, currentName, newName, startDate, finishDate string) (*azure.Iteration, error) {
	for i := range f.iterations {
		if f.iterations[i].Name == currentName {
			if newName != "" {
				f.iterations[i].Name = newName
			}
			return &f.iterations[i], nil
		}
	}
	return nil, fmt.Errorf("iteration %q: %w", currentName, azure.ErrNotFound)
}

func (f *fakeStore) SubscribeIteration(ctx context.Context, identifier string) (string, error) {
	return "subscribed", nil
}

func (f *fakeStore) ValidateConnection(ctx context.Context) (bool, string) {
	if f.connOK {
		return true, "Connected to project: proj"
	}
	return false, "Authentication failed: PAT may be expired or invalid."
}

func setupTestServer(t *testing.T) (*Server, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	return New(store, t.TempDir()), store
}

func callTool(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
}

// decodeResult extracts and unmarshals the JSON payload from a tool result.
func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	textContent, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, not text", result.Content[0])
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(textContent.Text), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v\n%s", err, textContent.Text)
	}
	return payload
}

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validTemplate = `epics:
  - title: Platform
    features:
      - title: Integrate {{name}}
        parameterized: true
        default_instances: [SAP, Salesforce]
        stories:
          - title: Configure connection
            description: Set up {{name}} credentials
            acceptance_criteria: "• connection works"
            story_points: 3
            tasks:
              - title: Write config
                estimate: 4
`

func TestHandleValidateConnection(t *testing.T) {
	srv, store := setupTestServer(t)

	result, err := srv.handleValidateConnection(context.Background(), callTool(nil))
	if err != nil {
		t.Fatal(err)
	}
	payload := decodeResult(t, result)
	if payload["status"] != "ok" {
		t.Errorf("status = %v", payload["status"])
	}

	store.connOK = false
	result, _ = srv.handleValidateConnection(context.Background(), callTool(nil))
	payload = decodeResult(t, result)
	if payload["status"] != "error" {
		t.Errorf("status = %v", payload["status"])
	}
}

func TestHandleGetProjectStatus(t *testing.T) {
	srv, store := setupTestServer(t)
	store.seed(1, workitem.TypeEpic, "Platform", 0)
	store.seed(2, workitem.TypeFeature, "Ingestion", 1)

	result, err := srv.handleGetProjectStatus(context.Background(), callTool(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	payload := decodeResult(t, result)
	if payload["status"] != "ok" {
		t.Fatalf("payload = %v", payload)
	}
	tree, _ := payload["tree"].(string)
	if tree == "" || !strings.Contains(tree, "Epic: Platform") {
		t.Errorf("tree = %q", tree)
	}
	if payload["summary"] == nil {
		t.Error("summary missing by default")
	}

	exported, _ := payload["exported_files"].([]any)
	if len(exported) != 1 {
		t.Fatalf("exported = %v", exported)
	}
	if _, err := os.Stat(exported[0].(string)); err != nil {
		t.Errorf("exported file missing: %v", err)
	}
	if filepath.Base(exported[0].(string)) != "platform.yaml" {
		t.Errorf("exported name = %s", filepath.Base(exported[0].(string)))
	}
}

func TestHandleGetProjectStatusEmpty(t *testing.T) {
	srv, _ := setupTestServer(t)

	result, err := srv.handleGetProjectStatus(context.Background(), callTool(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	payload := decodeResult(t, result)
	if payload["error"] != "No work items found." {
		t.Errorf("payload = %v", payload)
	}
}

func TestHandleGenerateProject(t *testing.T) {
	srv, _ := setupTestServer(t)
	path := writeTemplate(t, validTemplate)

	result, err := srv.handleGenerateProject(context.Background(), callTool(map[string]any{
		"template_path": path,
		"project_name":  "Acme Rollout",
		"instances":     []any{"integrate=Dynamics"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	payload := decodeResult(t, result)
	if payload["status"] != "generated" {
		t.Fatalf("payload = %v", payload)
	}

	counts := payload["counts"].(map[string]any)
	// One epic, one feature instance (override narrowed to Dynamics), one
	// story, one task.
	if counts["epics"].(float64) != 1 || counts["features"].(float64) != 1 {
		t.Errorf("counts = %v", counts)
	}

	out := payload["output_path"].(string)
	if filepath.Base(out) != "acme-rollout.yaml" {
		t.Errorf("output = %s", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output file missing: %v", err)
	}
	if payload["lint_ok"] != true {
		t.Errorf("lint_ok = %v", payload["lint_ok"])
	}
	tree := payload["tree"].(string)
	if !strings.Contains(tree, "Integrate Dynamics") {
		t.Errorf("tree = %q", tree)
	}
}

func TestHandleGenerateProjectValidationFailure(t *testing.T) {
	srv, _ := setupTestServer(t)
	path := writeTemplate(t, "epics:\n  - title: E\n    features:\n      - title: F\n        stories:\n          - title: S\n")

	result, err := srv.handleGenerateProject(context.Background(), callTool(map[string]any{
		"template_path": path,
	}))
	if err != nil {
		t.Fatal(err)
	}
	payload := decodeResult(t, result)
	if payload["status"] != "error" {
		t.Fatalf("payload = %v", payload)
	}
	errsList, _ := payload["validation_errors"].([]any)
	if len(errsList) != 2 {
		t.Errorf("validation_errors = %v", errsList)
	}
}

func TestHandleCreateAndGetWorkItem(t *testing.T) {
	srv, store := setupTestServer(t)

	result, err := srv.handleCreateWorkItem(context.Background(), callTool(map[string]any{
		"type":         workitem.TypeTask,
		"title":        "Provision storage",
		"estimate":     8.0,
		"story_points": 5.0, // invalid for Task, silently dropped
	}))
	if err != nil {
		t.Fatal(err)
	}
	payload := decodeResult(t, result)
	if payload["status"] != "created" {
		t.Fatalf("payload = %v", payload)
	}
	id := int(payload["id"].(float64))
	if _, ok := store.items[id]; !ok {
		t.Fatal("item not stored")
	}

	result, _ = srv.handleGetWorkItem(context.Background(), callTool(map[string]any{"id": float64(id)}))
	payload = decodeResult(t, result)
	if payload["status"] != "ok" {
		t.Errorf("payload = %v", payload)
	}
}

func TestHandleCreateWorkItemUnknownType(t *testing.T) {
	srv, _ := setupTestServer(t)
	result, _ := srv.handleCreateWorkItem(context.Background(), callTool(map[string]any{
		"type":  "Bug",
		"title": "x",
	}))
	payload := decodeResult(t, result)
	if payload["status"] != "error" {
		t.Errorf("payload = %v", payload)
	}
}

func TestHandleUpdateAndDeleteWorkItem(t *testing.T) {
	srv, store := setupTestServer(t)
	store.seed(7, workitem.TypeStory, "Old title", 0)

	result, _ := srv.handleUpdateWorkItem(context.Background(), callTool(map[string]any{
		"id":    7.0,
		"title": "New title",
		"state": "Active",
	}))
	payload := decodeResult(t, result)
	if payload["status"] != "updated" {
		t.Fatalf("payload = %v", payload)
	}
	if store.items[7].Fields[azure.FieldTitle] != "New title" {
		t.Error("title not updated")
	}

	result, _ = srv.handleDeleteWorkItem(context.Background(), callTool(map[string]any{"id": 7.0}))
	payload = decodeResult(t, result)
	if payload["status"] != "deleted" {
		t.Fatalf("payload = %v", payload)
	}
	if _, ok := store.items[7]; ok {
		t.Error("item not deleted")
	}

	result, _ = srv.handleDeleteWorkItem(context.Background(), callTool(map[string]any{"id": 7.0}))
	payload = decodeResult(t, result)
	if payload["status"] != "error" {
		t.Errorf("payload = %v", payload)
	}
}

func TestHandleUploadFromTemplate(t *testing.T) {
	srv, store := setupTestServer(t)
	path := writeTemplate(t, validTemplate)

	result, err := srv.handleUploadFromTemplate(context.Background(), callTool(map[string]any{
		"template_path": path,
	}))
	if err != nil {
		t.Fatal(err)
	}
	payload := decodeResult(t, result)
	if payload["status"] != "uploaded" {
		t.Fatalf("payload = %v", payload)
	}
	// 1 epic + 2 feature instances + 2 stories + 2 tasks.
	if payload["created"].(float64) != 7 {
		t.Errorf("created = %v", payload["created"])
	}
	if len(store.items) != 7 {
		t.Errorf("stored %d items", len(store.items))
	}
}

func TestHandleUploadFromTemplateMissingFile(t *testing.T) {
	srv, _ := setupTestServer(t)
	result, _ := srv.handleUploadFromTemplate(context.Background(), callTool(map[string]any{
		"template_path": "/does/not/exist.yaml",
	}))
	payload := decodeResult(t, result)
	if payload["status"] != "error" {
		t.Errorf("payload = %v", payload)
	}
}

func TestHandleIterationTools(t *testing.T) {
	srv, store := setupTestServer(t)

	result, _ := srv.handleCreateIteration(context.Background(), callTool(map[string]any{
		"name":       "Sprint 1",
		"start_date": "2026-01-05",
	}))
	payload := decodeResult(t, result)
	if payload["status"] != "created" {
		t.Fatalf("payload = %v", payload)
	}

	result, _ = srv.handleGetIterations(context.Background(), callTool(nil))
	payload = decodeResult(t, result)
	if payload["count"].(float64) != 1 {
		t.Errorf("count = %v", payload["count"])
	}

	result, _ = srv.handleUpdateIteration(context.Background(), callTool(map[string]any{
		"current_name": "Sprint 1",
		"new_name":     "Sprint One",
	}))
	payload = decodeResult(t, result)
	if payload["status"] != "updated" {
		t.Fatalf("payload = %v", payload)
	}
	if store.iterations[0].Name != "Sprint One" {
		t.Errorf("iteration name = %s", store.iterations[0].Name)
	}

	result, _ = srv.handleUpdateIteration(context.Background(), callTool(map[string]any{
		"current_name": "Missing",
	}))
	payload = decodeResult(t, result)
	if payload["status"] != "error" {
		t.Errorf("payload = %v", payload)
	}
}

func TestHandleSubscribeIterationsSkipsEmpty(t *testing.T) {
	srv, _ := setupTestServer(t)

	result, _ := srv.handleSubscribeIterations(context.Background(), callTool(map[string]any{
		"identifiers": []any{"guid-1", "", "guid-2"},
	}))
	payload := decodeResult(t, result)
	results, _ := payload["results"].([]any)
	if len(results) != 2 {
		t.Errorf("results = %v", results)
	}
}

func TestHandleRunWIQLQuery(t *testing.T) {
	srv, store := setupTestServer(t)
	store.seed(1, workitem.TypeEpic, "E", 0)

	result, _ := srv.handleRunWIQLQuery(context.Background(), callTool(map[string]any{
		"query": "SELECT [System.Id] FROM WorkItems",
	}))
	payload := decodeResult(t, result)
	if payload["count"].(float64) != 1 {
		t.Errorf("count = %v", payload["count"])
	}

	result, _ = srv.handleRunWIQLQuery(context.Background(), callTool(map[string]any{}))
	payload = decodeResult(t, result)
	if payload["status"] != "error" {
		t.Errorf("payload = %v", payload)
	}
}

