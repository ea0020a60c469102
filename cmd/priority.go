package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/corine-cli/internal/priority"
)

var priorityCmd = &cobra.Command{
	Use:   "priority",
	Short: "Inspect a priority table",
}

// -- priority show --

var priorityShowCmd = &cobra.Command{
	Use:   "show <table>",
	Short: "Print the entries of a priority table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl, err := loadPriorityTable(args[0])
		if err != nil {
			return err
		}
		formatPriorityTable(os.Stdout, tbl)
		return nil
	},
}

// -- priority check --

var priorityCheckCmd = &cobra.Command{
	Use:   "check <table> <source-code> <neighbor-code>",
	Short: "Resolve the priority a merge decision would use",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl, err := loadPriorityTable(args[0])
		if err != nil {
			return err
		}

		src, nb := args[1], args[2]
		if src == nb {
			fmt.Fprintf(os.Stdout, "%s -> %s: 0 (identical code)\n", src, nb)
			return nil
		}

		pri := tbl.Lookup(src, nb)
		var label string
		switch {
		case tbl.HasPair(src, nb):
			label = "pair entry"
		case pri == priority.Default:
			label = "default"
		default:
			label = "single entry"
		}
		fmt.Fprintf(os.Stdout, "%s -> %s: %d (%s)\n", src, nb, pri, label)
		return nil
	},
}

func init() {
	priorityCmd.AddCommand(priorityShowCmd)
	priorityCmd.AddCommand(priorityCheckCmd)
	rootCmd.AddCommand(priorityCmd)
}

func loadPriorityTable(path string) (*priority.Table, error) {
	tbl, err := priority.Load(path, priority.LoadOptions{
		CodeField: cfg.Generalize.PriorityCodeField,
		PriField:  cfg.Generalize.PriorityPriField,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "load priority table %s", path)
	}
	return tbl, nil
}

func formatPriorityTable(out io.Writer, tbl *priority.Table) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CODE\tPRI")
	for _, e := range tbl.Entries() {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", e.Code, e.Pri)
	}
	_ = w.Flush()
}
