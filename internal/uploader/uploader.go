// Package uploader walks a template document and creates each work item in
// the store, skipping items that already exist by title and parent.
package uploader

import (
	"context"
	"fmt"

	"github.com/pegodk/azpm/internal/logger"
	"github.com/pegodk/azpm/internal/template"
	"github.com/pegodk/azpm/internal/workitem"
)

// Store is the slice of the work-item store the uploader needs.
type Store interface {
	Create(ctx context.Context, workItemType string, data map[string]any, parentID int) (int, error)
	FindByTitle(ctx context.Context, title string) ([]int, error)
	WorkItemExists(ctx context.Context, title string, parentID int) (bool, error)
}

// Result records the outcome for a single uploaded node. ID is nil for
// skipped and failed items.
type Result struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Status  string `json:"status"` // created, skipped, or error
	Message string `json:"message"`
	ID      *int   `json:"id"`
}

// Upload walks the document depth-first (epic → features → stories → tasks,
// in document order) and creates each node in the store. Items already
// present under the same title and parent are skipped; their id is resolved
// by title search so children still attach correctly. Per-item store
// failures are captured as "error" results and the walk continues.
func Upload(ctx context.Context, store Store, doc *template.Document) ([]Result, error) {
	var results []Result

	record := func(res Result) {
		results = append(results, res)
		logProgress(res)
	}

	for _, epic := range doc.Epics {
		epicData, err := workitem.BuildData(workitem.TypeEpic, epicFields(epic))
		if err != nil {
			return results, err
		}
		res := createAndTrack(ctx, store, workitem.TypeEpic, epicData, 0)
		record(res)
		epicID := resolveID(ctx, store, res, epic.Title)

		for _, feat := range epic.Features {
			featData, err := workitem.BuildData(workitem.TypeFeature, featureFields(feat))
			if err != nil {
				return results, err
			}
			res := createAndTrack(ctx, store, workitem.TypeFeature, featData, epicID)
			record(res)
			featID := resolveID(ctx, store, res, feat.Title)

			for _, story := range feat.Stories {
				storyData, err := workitem.BuildData(workitem.TypeStory, storyFields(story))
				if err != nil {
					return results, err
				}
				res := createAndTrack(ctx, store, workitem.TypeStory, storyData, featID)
				record(res)
				storyID := resolveID(ctx, store, res, story.Title)

				for _, task := range story.Tasks {
					taskData, err := workitem.BuildData(workitem.TypeTask, taskFields(task))
					if err != nil {
						return results, err
					}
					record(createAndTrack(ctx, store, workitem.TypeTask, taskData, storyID))
				}
			}
		}
	}
	return results, nil
}

// createAndTrack creates one work item, or records why it couldn't.
func createAndTrack(ctx context.Context, store Store, workItemType string, data map[string]any, parentID int) Result {
	title, _ := data["title"].(string)

	exists, err := store.WorkItemExists(ctx, title, parentID)
	if err != nil {
		return Result{Type: workItemType, Title: title, Status: "error", Message: err.Error()}
	}
	if exists {
		return Result{Type: workItemType, Title: title, Status: "skipped", Message: "Already exists"}
	}

	id, err := store.Create(ctx, workItemType, data, parentID)
	if err != nil {
		return Result{Type: workItemType, Title: title, Status: "error", Message: err.Error()}
	}
	return Result{Type: workItemType, Title: title, Status: "created", Message: fmt.Sprintf("ID: %d", id), ID: &id}
}

// resolveID returns the created id, or looks the item up by title when it
// was skipped. Returns 0 when no id can be resolved, in which case children
// are created as roots rather than dropped.
func resolveID(ctx context.Context, store Store, res Result, title string) int {
	if res.ID != nil {
		return *res.ID
	}
	ids, err := store.FindByTitle(ctx, title)
	if err != nil || len(ids) == 0 {
		return 0
	}
	return ids[0]
}

// logProgress emits a human-readable record per item. Reporting only; the
// returned results are the contract.
func logProgress(res Result) {
	glyph := "?"
	switch res.Status {
	case "created":
		glyph = "+"
	case "skipped":
		glyph = "~"
	case "error":
		glyph = "!"
	}
	title := res.Title
	if len(title) > 50 {
		title = title[:50]
	}
	logger.Info("[%s] %-12s | %-50s | %s", glyph, res.Type, title, res.Message)
}

// Field builders: include only non-empty values so the gatekeeper and the
// store never see blank fields.

func epicFields(epic *template.Epic) map[string]any {
	data := map[string]any{"title": epic.Title}
	addString(data, "description", epic.Description)
	addString(data, "iteration_path", epic.IterationPath)
	return data
}

func featureFields(feat *template.Feature) map[string]any {
	data := map[string]any{"title": feat.Title}
	addString(data, "description", feat.Description)
	addString(data, "iteration_path", feat.IterationPath)
	return data
}

func storyFields(story *template.Story) map[string]any {
	data := map[string]any{"title": story.Title}
	addString(data, "description", story.Description)
	addString(data, "acceptance_criteria", story.AcceptanceCriteria)
	if story.StoryPoints != nil {
		data["story_points"] = *story.StoryPoints
	}
	addString(data, "iteration_path", story.IterationPath)
	return data
}

func taskFields(task *template.Task) map[string]any {
	data := map[string]any{"title": task.Title}
	addString(data, "description", task.Description)
	if task.Estimate != nil {
		data["estimate"] = *task.Estimate
	}
	addString(data, "iteration_path", task.IterationPath)
	return data
}

func addString(data map[string]any, key, val string) {
	if val != "" {
		data[key] = val
	}
}
