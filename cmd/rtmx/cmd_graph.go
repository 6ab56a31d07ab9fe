package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtmx-ai/rtmx/internal/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Dependency graph analytics",
}

var graphStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show graph statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := buildGraph()
		if err != nil {
			return err
		}
		stats := g.Stats()
		fmt.Printf("nodes:            %d\n", stats.Nodes)
		fmt.Printf("edges:            %d\n", stats.Edges)
		fmt.Printf("cross-repo edges: %d\n", stats.CrossRepoEdges)
		fmt.Printf("avg dependencies: %.2f\n", stats.AvgDependencies)
		fmt.Printf("cycles:           %d\n", stats.Cycles)
		return nil
	},
}

var graphCyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "List dependency cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := buildGraph()
		if err != nil {
			return err
		}
		cycles := g.FindCycles()
		if len(cycles) == 0 {
			fmt.Println("no cycles")
			return nil
		}
		for _, cycle := range cycles {
			members := make(map[string]struct{}, len(cycle))
			for _, id := range cycle {
				members[id] = struct{}{}
			}
			fmt.Println(strings.Join(g.FindCyclePath(members), " -> "))
		}
		return nil
	},
}

var graphOrderCmd = &cobra.Command{
	Use:   "order",
	Short: "Topological order, dependencies first",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := buildGraph()
		if err != nil {
			return err
		}
		order := g.TopologicalSort()
		if order == nil {
			return fmt.Errorf("no topological order: the graph has cycles")
		}
		for _, id := range order {
			fmt.Println(id)
		}
		return nil
	},
}

var graphCriticalCmd = &cobra.Command{
	Use:   "critical-path",
	Short: "Rank requirements by how much work they unblock",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := buildGraph()
		if err != nil {
			return err
		}
		entries := g.CriticalPath()
		if len(entries) == 0 {
			fmt.Println("nothing blocks anything")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-20s blocks %d\n", e.ReqID, e.BlockingCount)
		}
		return nil
	},
}

func buildGraph() (*graph.DependencyGraph, error) {
	db, err := loadDatabase()
	if err != nil {
		return nil, err
	}
	return graph.FromDatabase(db, ""), nil
}

func init() {
	graphCmd.AddCommand(graphStatsCmd, graphCyclesCmd, graphOrderCmd, graphCriticalCmd)
	rootCmd.AddCommand(graphCmd)
}
