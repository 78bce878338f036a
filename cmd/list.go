package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/facematch"
	"github.com/kozaktomas/face-registry/internal/gallery"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled labels with their sample counts",
	RunE:  runList,
}

var removeCmd = &cobra.Command{
	Use:   "remove <record-id>",
	Short: "Remove one enrolled face sample by its ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)

	listCmd.Flags().Bool("fold", false, "Group labels ignoring case, diacritics and separators")
	listCmd.Flags().Bool("ids", false, "Print every record with its ID instead of counts")
}

type labelCount struct {
	label string
	count int
}

// countLabels groups records by label in first-seen order. With fold, labels that differ only
// in case, diacritics or separators share a row shown under the first spelling seen.
func countLabels(records []gallery.Record, fold bool) []labelCount {
	index := make(map[string]int)
	var counts []labelCount
	for _, rec := range records {
		key := rec.Label
		if fold {
			key = facematch.NormalizePersonName(rec.Label)
		}
		if i, ok := index[key]; ok {
			counts[i].count++
			continue
		}
		index[key] = len(counts)
		counts = append(counts, labelCount{label: rec.Label, count: 1})
	}
	return counts
}

func runList(cmd *cobra.Command, args []string) error {
	fold := mustGetBool(cmd, "fold")
	showIDs := mustGetBool(cmd, "ids")

	ctx := context.Background()
	store, closer, err := openStore(ctx, config.Load())
	if err != nil {
		return err
	}
	defer closer.Close()

	records, err := gallery.NewRegistry(store, gallery.DefaultThreshold).List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if showIDs {
		fmt.Fprintln(w, "ID\tLABEL\tCREATED")
		for _, rec := range records {
			created := "-"
			if !rec.CreatedAt.IsZero() {
				created = rec.CreatedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", rec.ID, rec.Label, created)
		}
	} else {
		counts := countLabels(records, fold)
		slices.SortStableFunc(counts, func(a, b labelCount) int { return b.count - a.count })
		fmt.Fprintln(w, "LABEL\tSAMPLES")
		for _, c := range counts {
			fmt.Fprintf(w, "%s\t%d\n", c.label, c.count)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nTotal: %d samples\n", len(records))
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, closer, err := openStore(ctx, config.Load())
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := gallery.NewRegistry(store, gallery.DefaultThreshold).Remove(ctx, args[0]); err != nil {
		return fmt.Errorf("removing %s: %w", args[0], err)
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}
