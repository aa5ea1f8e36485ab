// Package workitem defines the four Azure DevOps work-item kinds and the
// field sets valid for each.
//
// The hierarchy is strictly Epic → Feature → User Story → Task:
//
//   - Epic and Feature carry only the common fields (title, description,
//     iteration_path). They never have story_points or estimate.
//   - User Story adds story_points and acceptance_criteria but never estimate.
//   - Task adds estimate (hours) but never story_points or acceptance_criteria.
//
// BuildData is the single gatekeeper every creation path must route field
// data through before persisting.
package workitem

import (
	"errors"
	"fmt"
)

// Work-item type names as Azure DevOps knows them.
const (
	TypeEpic    = "Epic"
	TypeFeature = "Feature"
	TypeStory   = "User Story"
	TypeTask    = "Task"
)

// Types lists the recognized work-item types in hierarchy order
// (parent before child). The position in this list is also the sort
// rank used when ordering siblings in a tree.
var Types = []string{TypeEpic, TypeFeature, TypeStory, TypeTask}

// ErrUnknownType is returned when a work-item type name is not one of the
// four recognized kinds. An unknown type reaching BuildData is a programming
// error upstream, so callers propagate it rather than catching it per item.
var ErrUnknownType = errors.New("unknown work item type")

// allowedFields maps each work-item type to the set of field names that may
// be persisted for it. iteration_path is valid for every type.
var allowedFields = map[string]map[string]bool{
	TypeEpic:    {"title": true, "description": true, "iteration_path": true},
	TypeFeature: {"title": true, "description": true, "iteration_path": true},
	TypeStory: {
		"title": true, "description": true, "acceptance_criteria": true,
		"story_points": true, "iteration_path": true,
	},
	TypeTask: {"title": true, "description": true, "estimate": true, "iteration_path": true},
}

// BuildData returns a copy of data containing only the fields valid for the
// given work-item type. Type-inappropriate keys are silently dropped, not
// rejected; the caller never has to pre-filter.
func BuildData(workItemType string, data map[string]any) (map[string]any, error) {
	allowed, ok := allowedFields[workItemType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, workItemType)
	}
	filtered := make(map[string]any, len(data))
	for k, v := range data {
		if allowed[k] {
			filtered[k] = v
		}
	}
	return filtered, nil
}

// TypeRank returns the ordinal position of a type in the hierarchy, used for
// sibling ordering. Unrecognized types sort after all recognized ones.
func TypeRank(workItemType string) int {
	for i, t := range Types {
		if t == workItemType {
			return i
		}
	}
	return len(Types)
}

// WorkItem is the normalized in-memory record for a fetched work item.
// Fields not applicable to the item's type are left at their zero value;
// StoryPoints and Estimate are pointers so "absent" and "zero" stay distinct.
type WorkItem struct {
	ID                 int      `json:"id"`
	Type               string   `json:"type"`
	Title              string   `json:"title"`
	State              string   `json:"state"`
	Description        string   `json:"description"`
	ParentID           *int     `json:"parent_id"`
	IterationPath      string   `json:"iteration_path"`
	AcceptanceCriteria string   `json:"acceptance_criteria"`
	StoryPoints        *float64 `json:"story_points"`
	Estimate           *float64 `json:"estimate"`
}
