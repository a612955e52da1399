package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"legacymod/internal/plan"
)

var (
	planInfoPath    string
	planInfoProject string
)

var planInfoCmd = &cobra.Command{
	Use:   "plan-info",
	Short: "Parse and print a migration plan's structure without executing it",
	RunE:  runPlanInfo,
}

func init() {
	planInfoCmd.Flags().StringVar(&planInfoPath, "plan", "", "plan file or resource (required)")
	planInfoCmd.Flags().StringVar(&planInfoProject, "project", ".", "project root, used to resolve auto-derived variables")
	planInfoCmd.MarkFlagRequired("plan")
}

func runPlanInfo(cmd *cobra.Command, args []string) error {
	loaded, err := plan.Load(plan.LoadOptions{
		MainPath:    planInfoPath,
		ProjectRoot: planInfoProject,
	})
	if err != nil {
		return err
	}

	mp := loaded.Plan
	fmt.Printf("plan: %s (version %s)\n", mp.Name, mp.Version)
	if mp.Description != "" {
		fmt.Printf("  %s\n", mp.Description)
	}
	for _, phase := range mp.Phases {
		fmt.Printf("phase %s: %s\n", phase.ID, phase.Name)
		order, err := plan.TopoSortTasks(phase.Tasks)
		if err != nil {
			return err
		}
		for _, task := range order {
			deps := ""
			if len(task.DependsOn) > 0 {
				deps = fmt.Sprintf(" (depends-on: %v)", task.DependsOn)
			}
			fmt.Printf("  task %s: %s%s\n", task.ID, task.Name, deps)
			for _, b := range task.Blocks {
				name := b.Name
				if name == "" {
					name = string(b.Kind)
				}
				fmt.Printf("    block %s: %s\n", b.Kind, name)
			}
		}
	}
	return nil
}
