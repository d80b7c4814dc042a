package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/birchwood/mnemo/internal/config"
	"github.com/birchwood/mnemo/internal/engine"
	"github.com/birchwood/mnemo/internal/store"
)

// openEngine opens the database and builds an engine with default tunables
// and the TF-IDF fallback embedder. CLI commands are one-shot; the Ollama
// probe lives in the server path only.
func openEngine() (*store.DB, *engine.Engine, error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}

	eng := engine.New(db, config.Default().Evolution)
	if emb, err := engine.NewTFIDFEmbedder(db, 512); err == nil {
		eng.SetEmbedder(emb)
	}
	return db, eng, nil
}

func parseIDArgs(args []string) ([]int64, error) {
	ids := make([]int64, len(args))
	for i, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid memory id %q", a)
		}
		ids[i] = id
	}
	return ids, nil
}

func printMemory(m *store.Memory) {
	fmt.Printf("#%d [%s] L%d importance=%d usefulness=%.2f (+%d/-%d)\n",
		m.ID, m.Status, m.Level, m.Importance, m.Usefulness, m.TimesHelpful, m.TimesUnhelpful)
	fmt.Printf("   %s\n", m.Content)
	if m.ParentID != nil {
		fmt.Printf("   consolidated into #%d\n", *m.ParentID)
	}
}

// --- add command ---

var (
	addImportance int
	addScope      string
	addProject    string
)

var addCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Store a new memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		m := &store.Memory{
			Content:    args[0],
			Scope:      addScope,
			Project:    addProject,
			Importance: addImportance,
		}
		if err := db.CreateMemory(m); err != nil {
			return err
		}
		fmt.Printf("stored memory #%d\n", m.ID)
		return nil
	},
}

// --- show command ---

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a memory, its feedback log, and its relationships",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDArgs(args)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		m, err := db.GetMemory(ids[0])
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("memory %d not found", ids[0])
		}
		printMemory(m)

		if events, err := db.ListFeedback(m.ID); err == nil && len(events) > 0 {
			fmt.Println("feedback:")
			for _, e := range events {
				ts := time.UnixMilli(e.CreatedAt).Format("2006-01-02")
				fmt.Printf("   %s %s %s\n", ts, e.Type, e.Context)
			}
		}

		if rels, err := db.QueryRelationships(m.ID); err == nil && len(rels) > 0 {
			fmt.Println("relationships:")
			for _, rel := range rels {
				fmt.Printf("   %d -> %d %s %.3f\n", rel.SourceID, rel.TargetID, rel.Type, rel.Strength)
			}
		}
		return nil
	},
}

// --- list command ---

var (
	listStatus string
	listLevel  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List memories",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		memories, err := db.QueryMemories(store.MemoryFilter{Status: listStatus, Level: listLevel})
		if err != nil {
			return err
		}
		if len(memories) == 0 {
			fmt.Println("No memories found.")
			return nil
		}
		for i := range memories {
			printMemory(&memories[i])
		}
		return nil
	},
}

// --- feedback command ---

var feedbackContext string

var feedbackCmd = &cobra.Command{
	Use:   "feedback [id] [helpful|unhelpful|outdated|incorrect]",
	Short: "Record feedback for a memory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDArgs(args[:1])
		if err != nil {
			return err
		}

		db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		event, err := eng.RecordFeedback(context.Background(), ids[0], args[1], feedbackContext)
		if err != nil {
			return err
		}
		m, _ := db.GetMemory(event.MemoryID)
		if m != nil {
			fmt.Printf("recorded %s for #%d, usefulness now %.2f\n", event.Type, m.ID, m.Usefulness)
		}
		return nil
	},
}

// --- access command ---

var accessCmd = &cobra.Command{
	Use:   "access [id...]",
	Short: "Record that memories were retrieved together",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDArgs(args)
		if err != nil {
			return err
		}

		db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := eng.RecordRetrieval(context.Background(), ids); err != nil {
			return err
		}
		fmt.Printf("recorded access for %d memories\n", len(ids))
		return nil
	},
}

// --- suggest command ---

var suggestLimit int

var suggestCmd = &cobra.Command{
	Use:   "suggest [id...]",
	Short: "Suggest memories related to a retrieved set",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDArgs(args)
		if err != nil {
			return err
		}

		db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		suggestions, err := eng.SuggestMemories(context.Background(), ids, suggestLimit)
		if err != nil {
			return err
		}
		if len(suggestions) == 0 {
			fmt.Println("No related memories.")
			return nil
		}
		for i, s := range suggestions {
			fmt.Printf("%d. [%.3f] #%d %s\n", i+1, s.Strength, s.Memory.ID, s.Memory.Content)
		}
		return nil
	},
}

// --- consolidate command ---

var (
	consolidateThreshold float64
	consolidateDryRun    bool
	consolidateLevels    []int
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge clusters of similar memories into abstractions",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := eng.Consolidate(context.Background(), engine.ConsolidateOptions{
			Threshold: consolidateThreshold,
			DryRun:    consolidateDryRun,
			Levels:    consolidateLevels,
		})
		if err != nil {
			return err
		}

		for _, w := range result.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		if len(result.Clusters) == 0 {
			fmt.Println("No clusters found.")
			return nil
		}
		for i, cluster := range result.Clusters {
			fmt.Printf("cluster %d: %v\n", i+1, cluster)
		}
		if consolidateDryRun {
			fmt.Println("dry run, nothing consolidated")
			return nil
		}
		fmt.Printf("created %d abstractions\n", len(result.Created))
		return nil
	},
}

// --- prune command ---

var (
	pruneMinUsefulness float64
	pruneMaxAgeDays    int
	prunePermanent     bool
	pruneDryRun        bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Archive or delete low-value memories",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := eng.Prune(context.Background(), engine.PruneOptions{
			MinUsefulness: pruneMinUsefulness,
			MaxAgeDays:    pruneMaxAgeDays,
			Permanent:     prunePermanent,
			DryRun:        pruneDryRun,
		})
		if err != nil {
			return err
		}

		for _, w := range result.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		action := "archived"
		if result.Permanent {
			action = "deleted"
		}
		if result.DryRun {
			action = "would be " + action
		}
		fmt.Printf("%d memories %s: %v\n", len(result.PrunedIDs), action, result.PrunedIDs)
		return nil
	},
}

// --- restore command ---

var restoreCmd = &cobra.Command{
	Use:   "restore [id]",
	Short: "Bring an archived memory back to active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDArgs(args)
		if err != nil {
			return err
		}

		db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		m, err := eng.Restore(context.Background(), ids[0])
		if err != nil {
			return err
		}
		fmt.Printf("restored memory #%d\n", m.ID)
		return nil
	},
}

// --- decay command ---

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Run the score and relationship decay passes once",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		scores, err := eng.DecayScores(ctx)
		if err != nil {
			return err
		}
		updated, deleted, err := eng.DecayRelationshipsDefault(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("rescored %d memories, weakened %d edges, dropped %d\n",
			scores.Processed, updated, deleted)
		return nil
	},
}

// --- stats command ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.CollectStats()
		if err != nil {
			return err
		}

		fmt.Println("## Memories")
		for _, status := range []string{store.StatusActive, store.StatusArchived, store.StatusConsolidated} {
			fmt.Printf("  %-13s %d\n", status, stats.ByStatus[status])
		}
		fmt.Println("## Levels")
		for level := 1; level <= 3; level++ {
			fmt.Printf("  level %d       %d\n", level, stats.ByLevel[level])
		}
		fmt.Println("## Graph")
		fmt.Printf("  similar       %d\n", stats.SimilarEdges)
		fmt.Printf("  derived_from  %d\n", stats.DerivedEdges)
		fmt.Printf("  feedback      %d\n", stats.FeedbackEvents)
		fmt.Printf("  vectors       %d\n", stats.Vectors)
		return nil
	},
}

func init() {
	addCmd.Flags().IntVarP(&addImportance, "importance", "i", 5, "Importance 1-9")
	addCmd.Flags().StringVar(&addScope, "scope", "global", "Scope: global or project")
	addCmd.Flags().StringVar(&addProject, "project", "", "Project name for project scope")

	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "Filter by status")
	listCmd.Flags().IntVarP(&listLevel, "level", "l", 0, "Filter by level")

	feedbackCmd.Flags().StringVarP(&feedbackContext, "context", "c", "", "Free-form context for the event")

	suggestCmd.Flags().IntVarP(&suggestLimit, "limit", "n", 5, "Maximum suggestions")

	consolidateCmd.Flags().Float64VarP(&consolidateThreshold, "threshold", "t", 0, "Similarity threshold (default from config)")
	consolidateCmd.Flags().BoolVar(&consolidateDryRun, "dry-run", false, "Report clusters without consolidating")
	consolidateCmd.Flags().IntSliceVar(&consolidateLevels, "levels", nil, "Widen candidate levels (default: 1)")

	pruneCmd.Flags().Float64Var(&pruneMinUsefulness, "min-usefulness", 0, "Prune below this score (default from config)")
	pruneCmd.Flags().IntVar(&pruneMaxAgeDays, "max-age", 0, "Prune at or beyond this idle age in days (default from config)")
	pruneCmd.Flags().BoolVar(&prunePermanent, "permanent", false, "Delete instead of archive (irreversible)")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "Report selection without acting")
}
