// Package hierarchy fetches work items from the store, normalizes them into
// a nested epic → feature → story → task tree, computes summary statistics,
// and renders the tree as text or as a type-filtered YAML document.
package hierarchy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pegodk/azpm/internal/azure"
	"github.com/pegodk/azpm/internal/logger"
	"github.com/pegodk/azpm/internal/workitem"
)

// Store is the slice of the work-item store this package needs.
type Store interface {
	RunWIQL(ctx context.Context, queryText string) ([]int, error)
	GetWorkItemsBatch(ctx context.Context, ids []int, fields []string) ([]azure.RawWorkItem, error)
}

// Fetch queries the store for all items of the four recognized types and
// normalizes them into WorkItem records keyed by id. Missing string fields
// come back empty, never absent. A non-empty epicTitle restricts the result
// to items reachable from epics whose title matches exactly; no matching
// epic yields an empty map.
func Fetch(ctx context.Context, store Store, epicTitle string) (map[int]*workitem.WorkItem, error) {
	typeFilters := make([]string, len(workitem.Types))
	for i, t := range workitem.Types {
		typeFilters[i] = fmt.Sprintf("[System.WorkItemType] = '%s'", t)
	}
	query := fmt.Sprintf("SELECT [System.Id] FROM WorkItems WHERE (%s)", strings.Join(typeFilters, " OR "))

	ids, err := store.RunWIQL(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query work items: %w", err)
	}
	if len(ids) == 0 {
		return map[int]*workitem.WorkItem{}, nil
	}

	raw, err := store.GetWorkItemsBatch(ctx, ids, azure.DefaultFields)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch work item fields: %w", err)
	}

	items := make(map[int]*workitem.WorkItem, len(raw))
	for _, r := range raw {
		items[r.ID] = &workitem.WorkItem{
			ID:                 r.ID,
			Type:               fieldString(r.Fields, azure.FieldWorkItemType),
			Title:              fieldString(r.Fields, azure.FieldTitle),
			State:              fieldString(r.Fields, azure.FieldState),
			Description:        fieldString(r.Fields, azure.FieldDescription),
			ParentID:           fieldInt(r.Fields, azure.FieldParent),
			IterationPath:      fieldString(r.Fields, azure.FieldIterationPath),
			AcceptanceCriteria: fieldString(r.Fields, azure.FieldAcceptanceCriteria),
			StoryPoints:        fieldFloat(r.Fields, azure.FieldStoryPoints),
			Estimate:           fieldFloat(r.Fields, azure.FieldEffort),
		}
	}
	logger.Debug("Fetched %d work items", len(items))

	if epicTitle != "" {
		rootIDs := make(map[int]bool)
		for id, item := range items {
			if item.Type == workitem.TypeEpic && item.Title == epicTitle {
				rootIDs[id] = true
			}
		}
		if len(rootIDs) == 0 {
			return map[int]*workitem.WorkItem{}, nil
		}
		items = PruneToSubtree(items, rootIDs)
	}

	return items, nil
}

// PruneToSubtree keeps only the items reachable as descendants of rootIDs,
// the roots included. Parent references pointing outside the map never count
// as child links, so orphans survive pruning as their own roots.
func PruneToSubtree(items map[int]*workitem.WorkItem, rootIDs map[int]bool) map[int]*workitem.WorkItem {
	childrenMap := make(map[int][]int)
	for id, item := range items {
		if item.ParentID == nil {
			continue
		}
		pid := *item.ParentID
		if _, ok := items[pid]; ok {
			childrenMap[pid] = append(childrenMap[pid], id)
		}
	}

	keep := make(map[int]bool)
	queue := make([]int, 0, len(rootIDs))
	for id := range rootIDs {
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if keep[current] {
			continue
		}
		keep[current] = true
		queue = append(queue, childrenMap[current]...)
	}

	pruned := make(map[int]*workitem.WorkItem, len(keep))
	for id, item := range items {
		if keep[id] {
			pruned[id] = item
		}
	}
	return pruned
}

// Node is a work item plus its ordered children. Trees are ephemeral: built
// once per query and discarded after formatting.
type Node struct {
	*workitem.WorkItem
	Children []*Node
}

// BuildTree nests a flat items map into ordered root nodes. Items with no
// parent, or whose parent is absent from the map, become roots. Siblings at
// every level sort by type rank (Epic, Feature, User Story, Task; unknown
// types last), then lexically by title.
func BuildTree(items map[int]*workitem.WorkItem) []*Node {
	childrenMap := make(map[int][]*workitem.WorkItem)
	var roots []*workitem.WorkItem

	for _, item := range items {
		if item.ParentID != nil {
			if _, ok := items[*item.ParentID]; ok {
				childrenMap[*item.ParentID] = append(childrenMap[*item.ParentID], item)
				continue
			}
		}
		roots = append(roots, item)
	}

	sortSiblings(roots)

	var buildNode func(item *workitem.WorkItem) *Node
	buildNode = func(item *workitem.WorkItem) *Node {
		node := &Node{WorkItem: item}
		kids := childrenMap[item.ID]
		sortSiblings(kids)
		for _, kid := range kids {
			node.Children = append(node.Children, buildNode(kid))
		}
		return node
	}

	tree := make([]*Node, 0, len(roots))
	for _, root := range roots {
		tree = append(tree, buildNode(root))
	}
	return tree
}

func sortSiblings(items []*workitem.WorkItem) {
	sort.Slice(items, func(i, j int) bool {
		ri, rj := workitem.TypeRank(items[i].Type), workitem.TypeRank(items[j].Type)
		if ri != rj {
			return ri < rj
		}
		return items[i].Title < items[j].Title
	})
}

// Summary holds count and effort statistics over a flat items map.
type Summary struct {
	TotalItems       int                       `json:"total_items"`
	Counts           map[string]int            `json:"counts"`
	States           map[string]map[string]int `json:"states"`
	TotalStoryPoints float64                   `json:"total_story_points"`
	TotalEstimate    float64                   `json:"total_estimate_hours"`
}

// ComputeSummary tallies per-type counts, per-type-per-state counts, and
// story-point / estimate totals. Items lacking a field contribute zero.
func ComputeSummary(items map[int]*workitem.WorkItem) *Summary {
	s := &Summary{
		TotalItems: len(items),
		Counts:     make(map[string]int),
		States:     make(map[string]map[string]int),
	}
	for _, item := range items {
		s.Counts[item.Type]++
		if s.States[item.Type] == nil {
			s.States[item.Type] = make(map[string]int)
		}
		s.States[item.Type][item.State]++
		if item.StoryPoints != nil {
			s.TotalStoryPoints += *item.StoryPoints
		}
		if item.Estimate != nil {
			s.TotalEstimate += *item.Estimate
		}
	}
	return s
}

// Raw field accessors. The REST API omits unset fields entirely, and JSON
// numbers arrive as float64.

func fieldString(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func fieldInt(fields map[string]any, key string) *int {
	switch v := fields[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		return &v
	default:
		return nil
	}
}

func fieldFloat(fields map[string]any, key string) *float64 {
	switch v := fields[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}
