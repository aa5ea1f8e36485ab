package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pegodk/azpm/internal/azure"
	"github.com/pegodk/azpm/internal/hierarchy"
	"github.com/pegodk/azpm/internal/logger"
	"github.com/pegodk/azpm/internal/template"
	"github.com/pegodk/azpm/internal/uploader"
	"github.com/pegodk/azpm/internal/workitem"
)

// jsonResult marshals v as the tool's text payload. Every handler returns a
// JSON object so clients can branch on the "status" field.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func errResult(format string, v ...any) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"status":  "error",
		"message": fmt.Sprintf(format, v...),
	})
}

// Argument extraction. mcp-go delivers JSON numbers as float64 and arrays
// as []any.

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argInt(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

func argFloat(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func argBool(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func argStrings(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (s *Server) handleValidateConnection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ok, message := s.store.ValidateConnection(ctx)
	status := "ok"
	if !ok {
		status = "error"
	}
	return jsonResult(map[string]any{
		"status":  status,
		"message": message,
	})
}

func (s *Server) handleGetProjectStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	epicTitle := argString(args, "epic")
	includeSummary := argBool(args, "include_summary", true)

	items, err := hierarchy.Fetch(ctx, s.store, epicTitle)
	if err != nil {
		return errResult("%v", err)
	}
	if len(items) == 0 {
		return jsonResult(map[string]any{"error": "No work items found."})
	}

	tree := hierarchy.BuildTree(items)
	doc := hierarchy.ToDocument(tree)

	// One snapshot file per epic, named by slug, so repeated status calls
	// keep a stable on-disk layout.
	var exported []string
	for _, epic := range doc.Epics {
		single := &template.Document{Epics: []*template.Epic{epic}}
		path := filepath.Join(s.outputDir, template.Slugify(epic.Title)+".yaml")
		saved, err := template.SaveYAML(single, path)
		if err != nil {
			logger.Warn("Failed to export epic %q: %v", epic.Title, err)
			continue
		}
		exported = append(exported, saved)
	}

	result := map[string]any{
		"status":         "ok",
		"tree":           strings.Join(hierarchy.FormatTreeText(tree, 0), "\n"),
		"exported_files": exported,
	}
	if includeSummary {
		result["summary"] = hierarchy.ComputeSummary(items)
	}
	return jsonResult(result)
}

func (s *Server) handleGetWorkItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	id, ok := argInt(args, "id")
	if !ok {
		return errResult("missing 'id' parameter")
	}

	item, err := s.store.GetWorkItem(ctx, id)
	if err != nil {
		if errors.Is(err, azure.ErrNotFound) {
			return errResult("work item %d not found", id)
		}
		return errResult("%v", err)
	}
	return jsonResult(map[string]any{
		"status": "ok",
		"id":     item.ID,
		"fields": item.Fields,
	})
}

func (s *Server) handleGenerateProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	templatePath := argString(args, "template_path")
	if templatePath == "" {
		return errResult("missing 'template_path' parameter")
	}

	doc, err := template.Load(templatePath)
	if err != nil {
		return errResult("%v", err)
	}

	if name := argString(args, "project_name"); name != "" && len(doc.Epics) > 0 {
		doc.Epics[0].Title = name
	}

	if overrides := template.ParseInstanceOverrides(argStrings(args, "instances")); len(overrides) > 0 {
		template.ApplyInstanceOverrides(doc, overrides)
	}
	if exclude := argStrings(args, "exclude"); len(exclude) > 0 {
		template.ExcludeFeatures(doc, exclude)
	}

	doc = template.ExpandAll(doc)

	if problems := template.Validate(doc); len(problems) > 0 {
		return jsonResult(map[string]any{
			"status":            "error",
			"message":           "Template validation failed.",
			"validation_errors": problems,
		})
	}

	epics, features, stories, tasks := template.CountWorkItems(doc)
	storyPoints, estimateHours := template.Totals(doc)

	outputPath := argString(args, "output_path")
	if outputPath == "" {
		name := "project"
		if len(doc.Epics) > 0 {
			name = doc.Epics[0].Title
		}
		outputPath = filepath.Join(s.outputDir, template.Slugify(name)+".yaml")
	}
	saved, err := template.SaveYAML(doc, outputPath)
	if err != nil {
		return errResult("%v", err)
	}

	lintOK, findings, err := template.Lint(saved)
	if err != nil {
		logger.Warn("Lint of %s failed: %v", saved, err)
	}

	return jsonResult(map[string]any{
		"status":      "generated",
		"output_path": saved,
		"counts": map[string]int{
			"epics":    epics,
			"features": features,
			"stories":  stories,
			"tasks":    tasks,
		},
		"total_story_points":   storyPoints,
		"total_estimate_hours": estimateHours,
		"lint_ok":              lintOK,
		"lint_findings":        findings,
		"tree":                 strings.Join(template.FormatTree(doc), "\n"),
	})
}

func (s *Server) handleSearchWorkItems(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	title := argString(args, "title")
	if title == "" {
		return errResult("missing 'title' parameter")
	}

	ids, err := s.store.FindByTitle(ctx, title)
	if err != nil {
		return errResult("%v", err)
	}
	if len(ids) == 0 {
		return jsonResult(map[string]any{
			"status":  "ok",
			"count":   0,
			"results": []any{},
		})
	}

	raw, err := s.store.GetWorkItemsBatch(ctx, ids, azure.DefaultFields)
	if err != nil {
		return errResult("%v", err)
	}

	results := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		results = append(results, map[string]any{
			"id":     r.ID,
			"type":   r.Fields[azure.FieldWorkItemType],
			"title":  r.Fields[azure.FieldTitle],
			"state":  r.Fields[azure.FieldState],
			"parent": r.Fields[azure.FieldParent],
		})
	}
	return jsonResult(map[string]any{
		"status":  "ok",
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleCreateWorkItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	workItemType := argString(args, "type")
	title := argString(args, "title")
	if workItemType == "" || title == "" {
		return errResult("missing 'type' or 'title' parameter")
	}

	fields := map[string]any{"title": title}
	for _, key := range []string{"description", "acceptance_criteria", "iteration_path"} {
		if v := argString(args, key); v != "" {
			fields[key] = v
		}
	}
	for _, key := range []string{"story_points", "estimate"} {
		if v, ok := argFloat(args, key); ok {
			fields[key] = v
		}
	}

	data, err := workitem.BuildData(workItemType, fields)
	if err != nil {
		return errResult("%v", err)
	}

	parentID, _ := argInt(args, "parent_id")
	id, err := s.store.Create(ctx, workItemType, data, parentID)
	if err != nil {
		return errResult("%v", err)
	}
	return jsonResult(map[string]any{
		"status": "created",
		"id":     id,
		"type":   workItemType,
		"title":  title,
	})
}

func (s *Server) handleUpdateWorkItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	id, ok := argInt(args, "id")
	if !ok {
		return errResult("missing 'id' parameter")
	}

	data := map[string]any{}
	for _, key := range []string{"title", "description", "state", "iteration_path"} {
		if v := argString(args, key); v != "" {
			data[key] = v
		}
	}

	item, err := s.store.UpdateWorkItem(ctx, id, data)
	if err != nil {
		if errors.Is(err, azure.ErrNotFound) {
			return errResult("work item %d not found", id)
		}
		return errResult("%v", err)
	}
	return jsonResult(map[string]any{
		"status": "updated",
		"id":     item.ID,
		"fields": item.Fields,
	})
}

func (s *Server) handleDeleteWorkItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	id, ok := argInt(args, "id")
	if !ok {
		return errResult("missing 'id' parameter")
	}

	if err := s.store.DeleteWorkItem(ctx, id); err != nil {
		if errors.Is(err, azure.ErrNotFound) {
			return errResult("work item %d not found", id)
		}
		return errResult("%v", err)
	}
	return jsonResult(map[string]any{
		"status": "deleted",
		"id":     id,
	})
}

func (s *Server) handleUploadFromTemplate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	templatePath := argString(args, "template_path")
	if templatePath == "" {
		return errResult("missing 'template_path' parameter")
	}
	if _, err := os.Stat(templatePath); err != nil {
		return errResult("template not found: %s", templatePath)
	}

	doc, err := template.Load(templatePath)
	if err != nil {
		return errResult("%v", err)
	}

	if problems := template.Validate(doc); len(problems) > 0 {
		return jsonResult(map[string]any{
			"status":            "error",
			"message":           "Template validation failed.",
			"validation_errors": problems,
		})
	}

	doc = template.ExpandAll(doc)

	results, err := uploader.Upload(ctx, s.store, doc)
	if err != nil {
		return errResult("%v", err)
	}

	var created, skipped, failed int
	for _, res := range results {
		switch res.Status {
		case "created":
			created++
		case "skipped":
			skipped++
		case "error":
			failed++
		}
	}
	status := "uploaded"
	if failed > 0 {
		status = "partial"
	}
	return jsonResult(map[string]any{
		"status":  status,
		"created": created,
		"skipped": skipped,
		"errors":  failed,
		"details": results,
	})
}

func (s *Server) handleGetIterations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	iterations, err := s.store.GetIterations(ctx)
	if err != nil {
		return errResult("%v", err)
	}
	return jsonResult(map[string]any{
		"status":     "ok",
		"count":      len(iterations),
		"iterations": iterations,
	})
}

func (s *Server) handleCreateIteration(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	name := argString(args, "name")
	if name == "" {
		return errResult("missing 'name' parameter")
	}

	iteration, err := s.store.CreateIteration(ctx, name, argString(args, "start_date"), argString(args, "finish_date"))
	if err != nil {
		return errResult("%v", err)
	}
	return jsonResult(map[string]any{
		"status":    "created",
		"iteration": iteration,
	})
}

func (s *Server) handleUpdateIteration(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	currentName := argString(args, "current_name")
	if currentName == "" {
		return errResult("missing 'current_name' parameter")
	}

	iteration, err := s.store.UpdateIteration(ctx,
		currentName,
		argString(args, "new_name"),
		argString(args, "start_date"),
		argString(args, "finish_date"),
	)
	if err != nil {
		if errors.Is(err, azure.ErrNotFound) {
			return errResult("iteration %q not found", currentName)
		}
		return errResult("%v", err)
	}
	return jsonResult(map[string]any{
		"status":    "updated",
		"iteration": iteration,
	})
}

func (s *Server) handleSubscribeIterations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	identifiers := argStrings(args, "identifiers")
	if len(identifiers) == 0 {
		return errResult("missing 'identifiers' parameter")
	}

	results := make([]map[string]any, 0, len(identifiers))
	for _, identifier := range identifiers {
		if identifier == "" {
			continue
		}
		outcome, err := s.store.SubscribeIteration(ctx, identifier)
		if err != nil {
			results = append(results, map[string]any{
				"identifier": identifier,
				"status":     "error",
				"message":    err.Error(),
			})
			continue
		}
		results = append(results, map[string]any{
			"identifier": identifier,
			"status":     outcome,
		})
	}
	return jsonResult(map[string]any{
		"status":  "ok",
		"results": results,
	})
}

func (s *Server) handleRunWIQLQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	query := argString(args, "query")
	if query == "" {
		return errResult("missing 'query' parameter")
	}

	ids, err := s.store.RunWIQL(ctx, query)
	if err != nil {
		return errResult("%v", err)
	}
	return jsonResult(map[string]any{
		"status": "ok",
		"count":  len(ids),
		"ids":    ids,
	})
}
