// Package evalloop is the thin outer evaluation loop spec.md §6 describes:
// load the --pred/--gold files, align them into per-conversation groups,
// compare each (gold, pred) pair through the oracle (and, for --etype
// exe/all, by executing both queries against the live database and
// comparing result sets), and tally Total/ETM/EXE. Grounded directly on the
// __main__ block of treeMatch.py: same blank-line alignment, same
// conversation/utterance grouping, same EXPLAIN QUERY PLAN sanity gate.
package evalloop

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"etm/internal/ast"
	"etm/internal/introspect"
	_ "etm/internal/introspect/sqlite"
	"etm/internal/oracle"
	"etm/internal/preprocess"
	"etm/internal/schema"
	"etm/internal/schemaconfig"
	"etm/internal/sqlparse"
	"etm/internal/trace"
)

// EType selects which comparator(s) the CLI reports, spec.md §6's --etype.
type EType string

const (
	ETypeExe       EType = "exe"
	ETypeTreeMatch EType = "treematch"
	ETypeAll       EType = "all"
)

// Pair is one (gold, pred, db) line triple, still in the raw text form read
// from the input files.
type Pair struct {
	Gold   string
	Pred   string
	DBName string
}

// Config bundles everything one evaluation run needs.
type Config struct {
	PredPath         string
	GoldPath         string
	DBDir            string
	SchemaConfigPath string
	EType            EType
	RuleIDs          []int
	Workers          int
	Trace            *trace.Writer
}

// Result is the final Total/ETM/EXE tally spec.md §6 prints.
type Result struct {
	Total       int
	TreeMatches int
	ExecMatches int
}

// ETM returns the treematch fraction, or 0 if Total is 0.
func (r Result) ETM() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.TreeMatches) / float64(r.Total)
}

// EXE returns the execution-match fraction, or 0 if Total is 0.
func (r Result) EXE() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.ExecMatches) / float64(r.Total)
}

// Run loads the configured files, compares every pair, and returns the tally.
func Run(ctx context.Context, cfg Config) (Result, error) {
	conversations, err := loadConversations(cfg.PredPath, cfg.GoldPath)
	if err != nil {
		return Result{}, err
	}

	var override *schema.Database
	if cfg.SchemaConfigPath != "" {
		override, err = schemaconfig.Load(cfg.SchemaConfigPath)
		if err != nil {
			return Result{}, fmt.Errorf("evalloop: schema config: %w", err)
		}
	}

	loader := &schemaLoader{dbDir: cfg.DBDir, override: override, cache: map[string]*schema.Database{}}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	type job struct {
		convIdx, uttIdx int
		pair            Pair
	}
	type outcome struct {
		treeMatch, execMatch bool
	}

	var jobs []job
	for ci, conv := range conversations {
		for ui, p := range conv {
			jobs = append(jobs, job{ci, ui, p})
		}
	}

	results := make([]outcome, len(jobs))
	jobCh := make(chan int, len(jobs))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				j := jobs[idx]
				results[idx] = comparePair(ctx, cfg, loader, j.convIdx, j.uttIdx, j.pair)
			}
		}()
	}
	for idx := range jobs {
		jobCh <- idx
	}
	close(jobCh)
	wg.Wait()

	var res Result
	for _, o := range results {
		res.Total++
		if o.treeMatch {
			res.TreeMatches++
		}
		if o.execMatch {
			res.ExecMatches++
		}
	}
	return res, nil
}

// comparePair mirrors one (i, j) iteration of the __main__ loop: resolve the
// schema, preprocess both queries, sanity-check them with EXPLAIN QUERY
// PLAN, and if that passes run the tree oracle and/or the execution
// comparator depending on cfg.EType. Any panic inside the oracle (an
// invariant-broken rule) is recovered and scored as not equivalent, per
// spec.md §7's "internal bug" error class.
func comparePair(ctx context.Context, cfg Config, loader *schemaLoader, convIdx, uttIdx int, p Pair) (out struct{ treeMatch, execMatch bool }) {
	label := fmt.Sprintf("Conversation %d / Utterance %d", convIdx, uttIdx)
	if cfg.Trace != nil {
		cfg.Trace.Println(label)
	}

	dbPath := filepath.Join(cfg.DBDir, p.DBName, p.DBName+".sqlite")
	db, sdb, err := loader.open(ctx, p.DBName, dbPath)
	if err != nil {
		return out
	}

	gold := preprocess.Run(p.Gold, sdb)
	pred := preprocess.Run(p.Pred, sdb)
	if cfg.Trace != nil {
		cfg.Trace.Printf("gold: %s", gold)
		cfg.Trace.Printf("pred: %s", pred)
	}

	if !explainable(ctx, db, gold) || !explainable(ctx, db, pred) {
		return out
	}

	if cfg.EType == ETypeTreeMatch || cfg.EType == ETypeAll {
		out.treeMatch = func() (matched bool) {
			defer func() {
				if r := recover(); r != nil {
					matched = false
				}
			}()
			goldTree, err := sqlparse.New().Parse(gold)
			if err != nil {
				return false
			}
			predTree, err := sqlparse.New().Parse(pred)
			if err != nil {
				return false
			}
			var sink func(string)
			if cfg.Trace != nil {
				sink = cfg.Trace.Sink(label)
			}
			canonPred, canonGold := oracle.CanonicalizeBoth(predTree, goldTree, sdb, cfg.RuleIDs, sink)
			if cfg.Trace != nil {
				cfg.Trace.Canonical("Pred", canonPred)
				cfg.Trace.Canonical("Gold", canonGold)
			}
			return ast.Equal(canonPred, canonGold)
		}()
	}

	if cfg.EType == ETypeExe || cfg.EType == ETypeAll {
		out.execMatch = resultSetsEqual(ctx, db, gold, pred)
	}
	return out
}

func explainable(ctx context.Context, db *sql.DB, query string) bool {
	if strings.TrimSpace(query) == "" {
		return false
	}
	_, err := db.ExecContext(ctx, "EXPLAIN QUERY PLAN "+query)
	return err == nil
}

// resultSetsEqual runs both queries and compares their result sets as
// unordered multisets of row strings - the closest generalization, within
// this package's remit, of the original's execution-accuracy comparator
// (itself an external collaborator per SPEC_FULL.md §1's scope note).
func resultSetsEqual(ctx context.Context, db *sql.DB, a, b string) bool {
	ra, err := queryRows(ctx, db, a)
	if err != nil {
		return false
	}
	rb, err := queryRows(ctx, db, b)
	if err != nil {
		return false
	}
	if len(ra) != len(rb) {
		return false
	}
	counts := map[string]int{}
	for _, r := range ra {
		counts[r]++
	}
	for _, r := range rb {
		counts[r]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}

func queryRows(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, fmt.Sprintf("%v", vals))
	}
	return out, rows.Err()
}

// schemaLoader memoizes, per db_name, the opened *sql.DB and the introspected
// schema merged with any --schema-config override, mirroring the `schemas`
// dict cache the original script keeps across iterations.
type schemaLoader struct {
	dbDir    string
	override *schema.Database
	mu       sync.Mutex
	cache    map[string]*schema.Database
	dbs      map[string]*sql.DB
}

func (l *schemaLoader) open(ctx context.Context, dbName, dbPath string) (*sql.DB, *schema.Database, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.dbs == nil {
		l.dbs = map[string]*sql.DB{}
	}
	if db, ok := l.dbs[dbName]; ok {
		return db, l.cache[dbName], nil
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("evalloop: open %q: %w", dbPath, err)
	}

	ic, err := introspect.New(introspect.DialectSQLite)
	if err != nil {
		return nil, nil, err
	}
	introspected, err := ic.Introspect(ctx, db)
	if err != nil {
		return nil, nil, fmt.Errorf("evalloop: introspect %q: %w", dbPath, err)
	}

	merged := schemaconfig.Merge(introspected, l.override)
	l.dbs[dbName] = db
	l.cache[dbName] = merged
	return db, merged, nil
}

// loadConversations reads the prediction and gold files, drops one trailing
// blank prediction line, and, if the line counts still differ, realigns the
// predictions by inserting an empty prediction at every blank gold line. It
// then splits both into parallel per-conversation groups.
func loadConversations(predPath, goldPath string) ([][]Pair, error) {
	preds, err := readLines(predPath)
	if err != nil {
		return nil, fmt.Errorf("evalloop: read pred file: %w", err)
	}
	goldLines, err := readLines(goldPath)
	if err != nil {
		return nil, fmt.Errorf("evalloop: read gold file: %w", err)
	}

	if len(preds) > 0 && preds[len(preds)-1] == "" {
		preds = preds[:len(preds)-1]
	}
	if len(preds) != len(goldLines) {
		aligned := make([]string, 0, len(goldLines))
		pi := 0
		for _, g := range goldLines {
			if g == "" {
				aligned = append(aligned, "")
				continue
			}
			if pi < len(preds) {
				aligned = append(aligned, preds[pi])
				pi++
			} else {
				aligned = append(aligned, "")
			}
		}
		preds = aligned
	}

	var conversations [][]Pair
	var current []Pair
	for i, g := range goldLines {
		if g == "" {
			if len(current) > 0 {
				conversations = append(conversations, current)
				current = nil
			}
			continue
		}
		gold, dbName, ok := splitGoldLine(g)
		if !ok {
			continue
		}
		pred := ""
		if i < len(preds) {
			pred = strings.TrimSpace(preds[i])
		}
		current = append(current, Pair{Gold: gold, Pred: pred, DBName: dbName})
	}
	if len(current) > 0 {
		conversations = append(conversations, current)
	}
	return conversations, nil
}

func splitGoldLine(line string) (gold, dbName string, ok bool) {
	parts := strings.SplitN(line, "\t", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
