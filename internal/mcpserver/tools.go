package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools declares every backlog tool and binds it to its handler.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("validate-connection",
			mcp.WithDescription("Check that the Azure DevOps organization, project, and credentials are reachable"),
		),
		s.handleValidateConnection,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get-project-status",
			mcp.WithDescription("Fetch the full work-item hierarchy, render it as a tree, and export per-epic YAML snapshots"),
			mcp.WithString("epic",
				mcp.Description("Restrict the view to the epic with this exact title"),
			),
			mcp.WithBoolean("include_summary",
				mcp.Description("Include count and effort statistics (default: true)"),
			),
		),
		s.handleGetProjectStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get-work-item",
			mcp.WithDescription("Fetch a single work item with all its fields"),
			mcp.WithNumber("id", mcp.Required(),
				mcp.Description("Work item id"),
			),
		),
		s.handleGetWorkItem,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("generate-project",
			mcp.WithDescription("Expand a parameterized YAML template into a concrete project plan and save it"),
			mcp.WithString("template_path", mcp.Required(),
				mcp.Description("Path to the YAML template"),
			),
			mcp.WithString("project_name",
				mcp.Description("Override the title of the template's first epic"),
			),
			mcp.WithArray("instances",
				mcp.Description("Instance overrides as 'Key=name1,name2' entries; dotted keys (Feature.Story) target one story"),
				mcp.Items(map[string]any{"type": "string"}),
			),
			mcp.WithArray("exclude",
				mcp.Description("Drop features whose title contains any of these keywords (case-insensitive)"),
				mcp.Items(map[string]any{"type": "string"}),
			),
			mcp.WithString("output_path",
				mcp.Description("Where to write the generated YAML (default: <output-dir>/<project-slug>.yaml)"),
			),
		),
		s.handleGenerateProject,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("search-work-items",
			mcp.WithDescription("Find work items whose title contains the given text"),
			mcp.WithString("title", mcp.Required(),
				mcp.Description("Title text to search for"),
			),
		),
		s.handleSearchWorkItems,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("create-work-item",
			mcp.WithDescription("Create a single work item, optionally linked under a parent"),
			mcp.WithString("type", mcp.Required(),
				mcp.Description("Work item type: Epic, Feature, User Story, or Task"),
			),
			mcp.WithString("title", mcp.Required(),
				mcp.Description("Work item title"),
			),
			mcp.WithString("description",
				mcp.Description("Plain-text description; bullet lines starting with • become an HTML list"),
			),
			mcp.WithString("acceptance_criteria",
				mcp.Description("Acceptance criteria (User Story only)"),
			),
			mcp.WithNumber("story_points",
				mcp.Description("Story points (User Story only)"),
			),
			mcp.WithNumber("estimate",
				mcp.Description("Estimate in hours (Task only)"),
			),
			mcp.WithString("iteration_path",
				mcp.Description("Iteration path to assign"),
			),
			mcp.WithNumber("parent_id",
				mcp.Description("Id of the parent work item"),
			),
		),
		s.handleCreateWorkItem,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("update-work-item",
			mcp.WithDescription("Update fields on an existing work item"),
			mcp.WithNumber("id", mcp.Required(),
				mcp.Description("Work item id"),
			),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("state", mcp.Description("New state, e.g. Active or Closed")),
			mcp.WithString("iteration_path", mcp.Description("New iteration path")),
		),
		s.handleUpdateWorkItem,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("delete-work-item",
			mcp.WithDescription("Delete a work item by id"),
			mcp.WithNumber("id", mcp.Required(),
				mcp.Description("Work item id"),
			),
		),
		s.handleDeleteWorkItem,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("upload-from-template",
			mcp.WithDescription("Validate, expand, and upload a YAML template, creating any work items that do not already exist"),
			mcp.WithString("template_path", mcp.Required(),
				mcp.Description("Path to the YAML template or generated plan"),
			),
		),
		s.handleUploadFromTemplate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get-iterations",
			mcp.WithDescription("List the project's iterations with their dates"),
		),
		s.handleGetIterations,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("create-iteration",
			mcp.WithDescription("Create an iteration and subscribe the default team to it"),
			mcp.WithString("name", mcp.Required(),
				mcp.Description("Iteration name"),
			),
			mcp.WithString("start_date", mcp.Description("Start date, YYYY-MM-DD")),
			mcp.WithString("finish_date", mcp.Description("Finish date, YYYY-MM-DD")),
		),
		s.handleCreateIteration,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("update-iteration",
			mcp.WithDescription("Rename an iteration or change its dates"),
			mcp.WithString("current_name", mcp.Required(),
				mcp.Description("Name of the iteration to update"),
			),
			mcp.WithString("new_name", mcp.Description("New name")),
			mcp.WithString("start_date", mcp.Description("New start date, YYYY-MM-DD")),
			mcp.WithString("finish_date", mcp.Description("New finish date, YYYY-MM-DD")),
		),
		s.handleUpdateIteration,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("subscribe-iterations",
			mcp.WithDescription("Subscribe the default team to iterations by identifier"),
			mcp.WithArray("identifiers", mcp.Required(),
				mcp.Description("Iteration identifiers (GUIDs) to subscribe; empty entries are skipped"),
				mcp.Items(map[string]any{"type": "string"}),
			),
		),
		s.handleSubscribeIterations,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("run-wiql-query",
			mcp.WithDescription("Run a raw WIQL query and return the matching work item ids"),
			mcp.WithString("query", mcp.Required(),
				mcp.Description("WIQL query text"),
			),
		),
		s.handleRunWIQLQuery,
	)
}
