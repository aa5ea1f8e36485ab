package main

import (
	"fmt"
	"strings"

	"github.com/pegodk/azpm/internal/hierarchy"
	"github.com/spf13/cobra"
)

var statusFlags struct {
	epic    string
	summary bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the backlog as an epic/feature/story/task tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := connectClient()
		if err != nil {
			return err
		}

		items, err := hierarchy.Fetch(cmd.Context(), client, statusFlags.epic)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No work items found.")
			return nil
		}

		tree := hierarchy.BuildTree(items)
		fmt.Println(strings.Join(hierarchy.FormatTreeText(tree, 0), "\n"))

		if statusFlags.summary {
			summary := hierarchy.ComputeSummary(items)
			fmt.Printf("\n%d items", summary.TotalItems)
			for _, t := range []string{"Epic", "Feature", "User Story", "Task"} {
				if n := summary.Counts[t]; n > 0 {
					fmt.Printf("  %s: %d", t, n)
				}
			}
			fmt.Printf("\nStory points: %g  Estimate: %gh\n", summary.TotalStoryPoints, summary.TotalEstimate)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusFlags.epic, "epic", "", "Restrict to the epic with this exact title")
	statusCmd.Flags().BoolVar(&statusFlags.summary, "summary", true, "Print count and effort totals")
}
