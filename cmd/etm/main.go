// Package main contains the etm CLI: spec.md §6's thin evaluation-loop
// entry point, using cobra the way the teacher's cmd/smf does.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"etm/internal/evalloop"
	"etm/internal/oracle"
	"etm/internal/trace"
)

type rootFlags struct {
	pred         string
	gold         string
	db           string
	schemaConfig string
	etype        string
	verbose      bool
	workers      int
	ruleIDs      string
}

func main() {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "etm",
		Short: "Score predicted SQL against gold SQL by tree-rewrite equivalence",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(flags)
		},
	}

	cmd.Flags().StringVar(&flags.pred, "pred", "", "file containing the predictions")
	cmd.Flags().StringVar(&flags.gold, "gold", "", "file containing the gold data")
	cmd.Flags().StringVar(&flags.db, "db", "", "folder containing the database files")
	cmd.Flags().StringVar(&flags.schemaConfig, "schema-config", "", "optional TOML schema-override file")
	cmd.Flags().StringVar(&flags.etype, "etype", "all", "exe, treematch, or all")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "print rule-application traces")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "worker pool size for the outer evaluation loop (default: runtime.NumCPU())")
	cmd.Flags().StringVar(&flags.ruleIDs, "rules", "", "comma-separated rule IDs to enable (default: all)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(flags *rootFlags) error {
	etype := evalloop.EType(flags.etype)
	switch etype {
	case evalloop.ETypeExe, evalloop.ETypeTreeMatch, evalloop.ETypeAll:
	default:
		return fmt.Errorf("etm: invalid --etype %q (want exe, treematch, or all)", flags.etype)
	}

	ruleIDs, err := parseRuleIDs(flags.ruleIDs)
	if err != nil {
		return err
	}

	tw := trace.New(os.Stdout, flags.verbose)
	cfg := evalloop.Config{
		PredPath:         flags.pred,
		GoldPath:         flags.gold,
		DBDir:            flags.db,
		SchemaConfigPath: flags.schemaConfig,
		EType:            etype,
		RuleIDs:          ruleIDs,
		Workers:          flags.workers,
		Trace:            tw,
	}

	result, err := evalloop.Run(context.Background(), cfg)
	if err != nil {
		return err
	}

	fmt.Println("RESULTS")
	var etm, exe *float64
	if etype == evalloop.ETypeTreeMatch || etype == evalloop.ETypeAll {
		v := result.ETM()
		etm = &v
	}
	if etype == evalloop.ETypeExe || etype == evalloop.ETypeAll {
		v := result.EXE()
		exe = &v
	}
	trace.Summary(os.Stdout, result.Total, etm, exe)
	return nil
}

func parseRuleIDs(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return oracle.DefaultRuleIDs(), nil
	}
	valid := map[int]bool{}
	for _, id := range oracle.DefaultRuleIDs() {
		valid[id] = true
	}

	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var id int
		if _, err := fmt.Sscanf(part, "%d", &id); err != nil {
			return nil, fmt.Errorf("etm: invalid rule id %q", part)
		}
		if !valid[id] {
			return nil, fmt.Errorf("etm: unknown rule id %d", id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
