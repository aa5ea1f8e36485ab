package uploader

import (
	"context"
	"fmt"
	"testing"

	"github.com/pegodk/azpm/internal/template"
	"github.com/pegodk/azpm/internal/workitem"
)

func floatPtr(v float64) *float64 { return &v }

type createdItem struct {
	workItemType string
	title        string
	parentID     int
}

// fakeStore records creations and can pre-seed existing titles.
type fakeStore struct {
	nextID   int
	existing map[string]int // title -> id
	created  []createdItem
	failOn   string // title whose creation fails
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 100, existing: map[string]int{}}
}

func (f *fakeStore) Create(ctx context.Context, workItemType string, data map[string]any, parentID int) (int, error) {
	title, _ := data["title"].(string)
	if title == f.failOn {
		return 0, fmt.Errorf("boom")
	}
	f.nextID++
	f.existing[title] = f.nextID
	f.created = append(f.created, createdItem{workItemType, title, parentID})
	return f.nextID, nil
}

func (f *fakeStore) FindByTitle(ctx context.Context, title string) ([]int, error) {
	if id, ok := f.existing[title]; ok {
		return []int{id}, nil
	}
	return nil, nil
}

func (f *fakeStore) WorkItemExists(ctx context.Context, title string, parentID int) (bool, error) {
	_, ok := f.existing[title]
	return ok, nil
}

func sampleDoc() *template.Document {
	return &template.Document{Epics: []*template.Epic{{
		Title: "Platform",
		Features: []*template.Feature{{
			Title: "Ingestion",
			Stories: []*template.Story{{
				Title:              "Land files",
				Description:        "files arrive",
				AcceptanceCriteria: "• done",
				StoryPoints:        floatPtr(5),
				Tasks: []*template.Task{{
					Title:    "Provision storage",
					Estimate: floatPtr(8),
				}},
			}},
		}},
	}}}
}

func TestUploadCreatesHierarchy(t *testing.T) {
	store := newFakeStore()
	results, err := Upload(context.Background(), store, sampleDoc())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	for _, res := range results {
		if res.Status != "created" {
			t.Errorf("%s %q status = %s (%s)", res.Type, res.Title, res.Status, res.Message)
		}
		if res.ID == nil {
			t.Errorf("%s %q has no id", res.Type, res.Title)
		}
	}

	// Children must attach to the id created for their parent.
	byTitle := map[string]createdItem{}
	for _, c := range store.created {
		byTitle[c.title] = c
	}
	if byTitle["Platform"].parentID != 0 {
		t.Error("epic must be created as a root")
	}
	if byTitle["Ingestion"].parentID != store.existing["Platform"] {
		t.Errorf("feature parent = %d", byTitle["Ingestion"].parentID)
	}
	if byTitle["Land files"].parentID != store.existing["Ingestion"] {
		t.Errorf("story parent = %d", byTitle["Land files"].parentID)
	}
	if byTitle["Provision storage"].parentID != store.existing["Land files"] {
		t.Errorf("task parent = %d", byTitle["Provision storage"].parentID)
	}
	if byTitle["Land files"].workItemType != workitem.TypeStory {
		t.Errorf("story type = %s", byTitle["Land files"].workItemType)
	}
}

func TestUploadSkipsExisting(t *testing.T) {
	store := newFakeStore()
	store.existing["Platform"] = 42

	results, err := Upload(context.Background(), store, sampleDoc())
	if err != nil {
		t.Fatal(err)
	}

	if results[0].Status != "skipped" || results[0].Message != "Already exists" {
		t.Errorf("epic result = %+v", results[0])
	}
	if results[0].ID != nil {
		t.Error("skipped result must not carry an id")
	}
	// The feature still attaches under the pre-existing epic, resolved by
	// title.
	for _, c := range store.created {
		if c.title == "Ingestion" && c.parentID != 42 {
			t.Errorf("feature parent = %d, want 42", c.parentID)
		}
	}
}

func TestUploadRecordsErrorsAndContinues(t *testing.T) {
	store := newFakeStore()
	store.failOn = "Ingestion"

	results, err := Upload(context.Background(), store, sampleDoc())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want the walk to continue", len(results))
	}
	if results[1].Status != "error" || results[1].Message != "boom" {
		t.Errorf("feature result = %+v", results[1])
	}
	// With no feature id resolvable, descendants are created as roots rather
	// than dropped.
	for _, c := range store.created {
		if c.title == "Land files" && c.parentID != 0 {
			t.Errorf("story parent = %d, want 0", c.parentID)
		}
	}
}

func TestUploadEmptyDocument(t *testing.T) {
	results, err := Upload(context.Background(), newFakeStore(), &template.Document{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}
