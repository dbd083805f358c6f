package main

import (
	"database/sql"
	"fmt"
	"github.com/charmbracelet/lipgloss"
	_ "github.com/go-sql-driver/mysql"
	"github.com/parbatch/parbatch"
	"github.com/parbatch/parbatch/checkpoint"
	"github.com/parbatch/parbatch/internal/logs"
	"github.com/parbatch/parbatch/status"
	"github.com/parbatch/parbatch/util"
	"github.com/spf13/cobra"
	"os"
	"sort"
	"text/tabwriter"
	"time"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Faint(true)
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:          "parbatch",
		Short:        "Audit parbatch checkpoints and run history",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			parbatch.SetLogger(logs.NewLogger(os.Stderr, logs.ParseLevel(logLevel)))
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newRunsCmd())
	cmd.AddCommand(newChunksCmd())
	return cmd
}

func newShowCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "show <checkpoint-file>",
		Short: "Summarize a checkpoint file",
		Example: `  parbatch show out/scores.ckpt
  parbatch show --full out/scores.ckpt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0], full)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "print the whole record as JSON")
	return cmd
}

func runShow(cmd *cobra.Command, path string, full bool) error {
	record, err := checkpoint.Load(nil, path)
	if err != nil {
		return err
	}
	cmd.Println(titleStyle.Render("checkpoint " + path))
	cmd.Printf("%s %s\n", labelStyle.Render("run id:"), record.RunID)
	cmd.Printf("%s %s\n", labelStyle.Render("written:"), record.Timestamp.Format("2006-01-02 15:04:05"))
	cmd.Printf("%s %d items in %d ranges\n", labelStyle.Render("completed:"), len(record.Items), len(record.CompletedRanges))
	cmd.Printf("%s %s\n", labelStyle.Render("ranges:"), formatRanges(record.CompletedRanges))
	if total, ok := configInt(record.Config, "totalItems"); ok {
		gaps := missingRanges(record.CompletedRanges, total)
		if len(gaps) > 0 {
			cmd.Printf("%s %s\n", labelStyle.Render("missing:"), formatRanges(gaps))
		} else {
			cmd.Printf("%s none\n", labelStyle.Render("missing:"))
		}
	}
	if cfg, er := util.JsonString(record.Config); er == nil {
		cmd.Printf("%s %s\n", labelStyle.Render("config:"), cfg)
	}
	if full {
		out, er := util.JsonStringIndent(record)
		if er != nil {
			return er
		}
		cmd.Println(out)
	}
	return nil
}

func newRunsCmd() *cobra.Command {
	var dsn, name string
	var limit int
	cmd := &cobra.Command{
		Use:     "runs",
		Short:   "List run history from the repository",
		Example: `  parbatch runs --dsn "user:pass@tcp(localhost:3306)/batch?parseTime=true" --name score --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openDB(dsn); err != nil {
				return err
			}
			runs, err := parbatch.FindRunExecutions(name, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tNAME\tPHASE\tCOMPLETED\tFAILED\tSKIPPED\tTOTAL\tDEGRADED\tSTART\tEND")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%v\t%s\t%s\n",
					run.RunID, run.RunName, run.Phase,
					run.CompletedChunks, run.FailedChunks, run.SkippedChunks, run.TotalChunks,
					run.Degraded || run.CheckpointDegraded,
					formatTime(run.StartTime), formatTime(run.EndTime))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "mysql dsn, e.g. user:pass@tcp(localhost:3306)/batch?parseTime=true")
	cmd.Flags().StringVar(&name, "name", "", "filter by runner name")
	cmd.Flags().IntVar(&limit, "limit", 20, "max rows")
	return cmd
}

func newChunksCmd() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:     "chunks <run-id>",
		Short:   "Show the chunk history of one run",
		Example: `  parbatch chunks --dsn "user:pass@tcp(localhost:3306)/batch?parseTime=true" 01J8ZQ5T9V3N`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openDB(dsn); err != nil {
				return err
			}
			return runChunks(cmd, args[0])
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "mysql dsn, e.g. user:pass@tcp(localhost:3306)/batch?parseTime=true")
	return cmd
}

func runChunks(cmd *cobra.Command, runID string) error {
	run, err := parbatch.FindRunExecution(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no run with id %s", runID)
	}
	chunks, err := parbatch.FindChunkExecutions(runID)
	if err != nil {
		return err
	}
	cmd.Println(titleStyle.Render(fmt.Sprintf("run %s (%s)", run.RunID, run.RunName)))
	overall := status.PENDING
	for _, chunk := range chunks {
		overall = overall.And(chunk.Status)
	}
	cmd.Printf("%s %s, %d items in %d chunks, overall chunk status %s\n",
		labelStyle.Render("phase:"), run.Phase, run.TotalItems, run.TotalChunks, overall)
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANGE\tSTATUS\tITEMS\tSTART\tCOMPLETED\tERROR")
	for _, chunk := range chunks {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			chunk.Range, chunk.Status, chunk.ItemCount,
			formatTime(chunk.StartTime), formatTime(chunk.CompletedAt), truncate(chunk.FailMessage, 60))
	}
	return tw.Flush()
}

func openDB(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("--dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	parbatch.SetDB(db)
	return nil
}

func formatRanges(pairs [][2]int) string {
	if len(pairs) == 0 {
		return "none"
	}
	out := ""
	for i, p := range pairs {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("[%d,%d)", p[0], p[1])
	}
	return out
}

//missingRanges gaps of [0,total) not covered by the given ranges
func missingRanges(pairs [][2]int, total int) [][2]int {
	sorted := append([][2]int(nil), pairs...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i][0] < sorted[j][0]
	})
	var gaps [][2]int
	pos := 0
	for _, p := range sorted {
		if p[0] > pos {
			gaps = append(gaps, [2]int{pos, p[0]})
		}
		if p[1] > pos {
			pos = p[1]
		}
	}
	if pos < total {
		gaps = append(gaps, [2]int{pos, total})
	}
	return gaps
}

func configInt(config map[string]interface{}, key string) (int, bool) {
	switch v := config[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
