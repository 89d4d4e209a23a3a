package main

import (
	"flag"
	"fmt"
	"math/rand"

	"github.com/kestrel-db/aqo-predictor/pkg/config"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/hash"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/learncache"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/planhook"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/predict"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/qtextparse"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/scratch"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/store"
)

// scenario is one toy "query class" the demo drives repeatedly through a
// planner callback position, re-measuring the real selectivity each
// iteration so the learned model has something changing to chase.
//
// aggregate scenarios are driven differently: they skip the clause/
// selectivity path entirely and call hooks.InvokeAggregate directly, so
// groupExprs and aggObserve are only set when position is unused
// (indicated by aggregate being true).
type scenario struct {
	name     string
	fs       uint64
	sql      string // representative query text, as would be stored in the qtext table
	position planhook.Position
	relSigs  []uint64
	observe  func(cat *catalog, iteration int) (clauses []predict.Clause, actual float64, err error)

	aggregate  bool
	groupExprs []*hash.Expr
	aggObserve func(cat *catalog) (actual float64, err error)
}

func runDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	iterations := fs.Int("iterations", 6, "number of executions per query class")
	storeDir := fs.String("store", "", "directory to snapshot the store into (empty = in-memory only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cat, err := newCatalog()
	if err != nil {
		return err
	}
	defer cat.close()

	if cols, err := describeColumns(Order{}); err == nil {
		fmt.Println("catalog: orders columns via gorm schema reflection:")
		for _, c := range cols {
			fmt.Printf("  - %s (%s)\n", c.Name, c.Type)
		}
	}

	cfg := config.DefaultConfig()

	var backend store.SnapshotBackend
	if *storeDir != "" {
		backend, err = store.NewFileBackend(*storeDir)
		if err != nil {
			return err
		}
	}
	st := store.New(cfg.Store, backend)
	if backend != nil {
		st.Load()
	}
	session := st.Attach()
	defer st.Detach(session)
	fmt.Printf("attached as backend %s\n", session)

	cache := learncache.New()
	rng := rand.New(rand.NewSource(42))
	hooks := planhook.NewHooks(st, cfg.ML)
	for _, pos := range []planhook.Position{
		planhook.PositionBaseRel,
		planhook.PositionParameterizedBaseRel,
		planhook.PositionJoinRel,
		planhook.PositionForeignRel,
	} {
		_ = hooks.RegisterDefault(pos)
	}

	ordersSig := hash.PermanentTableSignature("orders")
	customersSig := hash.PermanentTableSignature("customers")

	scenarios := []scenario{
		{
			name:     "orders.status = 'shipped'",
			fs:       101,
			sql:      `SELECT * FROM orders WHERE status = 'shipped'`,
			position: planhook.PositionBaseRel,
			relSigs:  []uint64{ordersSig},
			observe: func(cat *catalog, _ int) ([]predict.Clause, float64, error) {
				total, err := cat.scalar(`SELECT COUNT(*) FROM orders`)
				if err != nil {
					return nil, 0, err
				}
				matching, err := cat.scalar(`SELECT COUNT(*) FROM orders WHERE status = 'shipped'`)
				if err != nil {
					return nil, 0, err
				}
				sel := matching / total
				clause := predict.Clause{
					Clause: hash.Clause{Expr: &hash.Expr{
						Kind: hash.ExprOp, Operator: "=",
						Args: []*hash.Expr{{Kind: hash.ExprColumn, Column: "orders.status"}, {Kind: hash.ExprConst, Column: "shipped"}},
					}},
					Relation:    ordersSig,
					Selectivity: sel,
				}
				return []predict.Clause{clause}, matching, nil
			},
		},
		{
			name:     "orders.customer_id = $1",
			fs:       102,
			sql:      `SELECT * FROM orders WHERE customer_id = ?`,
			position: planhook.PositionParameterizedBaseRel,
			relSigs:  []uint64{ordersSig},
			observe: func(cat *catalog, iteration int) ([]predict.Clause, float64, error) {
				customerID := (iteration % 400) + 1
				total, err := cat.scalar(`SELECT COUNT(*) FROM orders`)
				if err != nil {
					return nil, 0, err
				}
				matching, err := cat.scalar(`SELECT COUNT(*) FROM orders WHERE customer_id = ?`, customerID)
				if err != nil {
					return nil, 0, err
				}
				sel := matching / total
				clause := predict.Clause{
					Clause: hash.Clause{
						Equality: true,
						Expr: &hash.Expr{
							Kind: hash.ExprOp, Operator: "=",
							Args: []*hash.Expr{{Kind: hash.ExprColumn, Column: "orders.customer_id"}, {Kind: hash.ExprConst, Column: "?"}},
						},
					},
					Relation:    ordersSig,
					Selectivity: sel,
				}
				return []predict.Clause{clause}, matching, nil
			},
		},
		{
			name:     "orders JOIN customers WHERE region = 'west'",
			fs:       103,
			sql:      `SELECT * FROM orders o JOIN customers c ON c.id = o.customer_id WHERE c.region = 'west'`,
			position: planhook.PositionJoinRel,
			relSigs:  []uint64{ordersSig, customersSig},
			observe: func(cat *catalog, _ int) ([]predict.Clause, float64, error) {
				total, err := cat.scalar(`SELECT COUNT(*) FROM orders o JOIN customers c ON c.id = o.customer_id`)
				if err != nil {
					return nil, 0, err
				}
				matching, err := cat.scalar(`SELECT COUNT(*) FROM orders o JOIN customers c ON c.id = o.customer_id WHERE c.region = 'west'`)
				if err != nil {
					return nil, 0, err
				}
				sel := matching / total
				joinClause := predict.Clause{
					Clause: hash.Clause{Equality: true, Expr: &hash.Expr{
						Kind: hash.ExprOp, Operator: "=",
						Args: []*hash.Expr{{Kind: hash.ExprColumn, Column: "orders.customer_id"}, {Kind: hash.ExprColumn, Column: "customers.id"}},
					}},
					Relation:    0,
					Selectivity: 1,
				}
				regionClause := predict.Clause{
					Clause: hash.Clause{Expr: &hash.Expr{
						Kind: hash.ExprOp, Operator: "=",
						Args: []*hash.Expr{{Kind: hash.ExprColumn, Column: "customers.region"}, {Kind: hash.ExprConst, Column: "west"}},
					}},
					Relation:    customersSig,
					Selectivity: sel,
				}
				return []predict.Clause{joinClause, regionClause}, matching, nil
			},
		},
		{
			name:     "foreign: per-customer order count > 5",
			fs:       104,
			sql:      `SELECT customer_id, COUNT(*) AS order_count FROM orders GROUP BY customer_id HAVING COUNT(*) > 5`,
			position: planhook.PositionForeignRel,
			relSigs:  []uint64{hash.NoOIDSignature()},
			observe: func(cat *catalog, _ int) ([]predict.Clause, float64, error) {
				total, err := cat.scalar(`SELECT COUNT(*) FROM customers`)
				if err != nil {
					return nil, 0, err
				}
				matching, err := cat.scalar(`SELECT COUNT(*) FROM (SELECT customer_id, COUNT(*) n FROM orders GROUP BY customer_id) t WHERE t.n > 5`)
				if err != nil {
					return nil, 0, err
				}
				sel := matching / total
				clause := predict.Clause{
					Clause: hash.Clause{Expr: &hash.Expr{
						Kind: hash.ExprOp, Operator: ">",
						Args: []*hash.Expr{{Kind: hash.ExprColumn, Column: "order_count"}, {Kind: hash.ExprConst, Column: "5"}},
					}},
					Relation:    hash.NoOIDSignature(),
					Selectivity: sel,
				}
				return []predict.Clause{clause}, matching, nil
			},
		},
		{
			name:       "orders GROUP BY customer_id (aggregate row count)",
			fs:         105,
			sql:        `SELECT customer_id, COUNT(*) FROM orders GROUP BY customer_id`,
			relSigs:    []uint64{ordersSig},
			aggregate:  true,
			groupExprs: []*hash.Expr{{Kind: hash.ExprColumn, Column: "orders.customer_id"}},
			aggObserve: func(cat *catalog) (float64, error) {
				return cat.scalar(`SELECT COUNT(DISTINCT customer_id) FROM orders`)
			},
		},
	}

	for _, sc := range scenarios {
		st.EnsureClass(cfg.Mode, sc.fs)
		fmt.Printf("\n=== class fs=%d: %s ===\n", sc.fs, sc.name)

		if err := st.PutQueryText(sc.fs, sc.sql); err != nil {
			fmt.Printf("  warning: could not store query text: %v\n", err)
		} else if parsed, err := qtextparse.Parse(sc.sql); err != nil {
			fmt.Printf("  warning: could not re-parse stored query text: %v\n", err)
		} else {
			fmt.Printf("  qtext: %d relation(s), %d clause(s) recovered from stored text\n",
				len(parsed.RelSigs), len(parsed.Clauses))
		}

		for i := 0; i < *iterations; i++ {
			defaultGuess := 1000.0 // a deliberately naive planner default

			if sc.aggregate {
				actual, err := sc.aggObserve(cat)
				if err != nil {
					return fmt.Errorf("scenario %s: %w", sc.name, err)
				}

				// The aggregate's own fss folds in its child sub-plan's fss
				// (here a bare full scan of orders, no restriction clauses)
				// plus the grouping expressions (§4.F "For aggregation
				// nodes").
				childFSSResult := hash.FeatureSubSpace(sc.relSigs, nil, nil, hash.NilResolver{}, cfg.ML.LogSelFloor)
				aggFSS := hash.GroupedExprsHash(childFSSResult.FSS, sc.groupExprs)

				prediction := hooks.InvokeAggregate(planhook.EstimateAggregateRequest{
					FS:         sc.fs,
					ChildFSS:   childFSSResult.FSS,
					GroupExprs: sc.groupExprs,
					Default:    func() float64 { return defaultGuess },
				})

				stmt := planhook.Begin(st, cache, cfg.ML, cfg.Tuning, rng, nil)
				stmt.Table.Attach(planhook.NodeID(1), &planhook.NodeInfo{
					FS:           sc.fs,
					FSS:          aggFSS,
					RelSigs:      sc.relSigs,
					Predicted:    true,
					Prediction:   prediction,
					ActualTuples: actual,
					ActualLoops:  1,
					WasExecuted:  true,
				})
				estError := 0.0
				if actual > 0 {
					estError = (prediction - actual) / actual
				}
				if err := stmt.End(sc.fs, true, 0.001, 0.01, estError); err != nil {
					return fmt.Errorf("scenario %s: %w", sc.name, err)
				}

				fmt.Printf("  iter %d: predicted=%.1f actual=%.0f (default was %.0f)\n", i, prediction, actual, defaultGuess)

				if decision, ok := stmt.TuneClass(sc.fs); ok && i == *iterations-1 {
					fmt.Printf("  auto-tuner: learn=%v use=%v auto_tune=%v p_use=%.3f\n",
						decision.Learn, decision.Use, decision.AutoTune, decision.PUse)
				}
				continue
			}

			clauses, actual, err := sc.observe(cat, i)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.name, err)
			}

			isParam := sc.position == planhook.PositionParameterizedBaseRel
			scratchCache := scratch.New()
			req := planhook.EstimateRequest{
				FS:       sc.fs,
				RelSigs:  sc.relSigs,
				Clauses:  clauses,
				Resolver: hash.NilResolver{},
				Scratch:  scratchCache,
				Default:  func() float64 { return defaultGuess },
			}
			prediction := hooks.Invoke(sc.position, req)

			plain := make([]hash.Clause, len(clauses))
			sels := make([]float64, len(clauses))
			relations := make([]uint64, len(clauses))
			for j, c := range clauses {
				plain[j] = c.Clause
				sels[j] = c.Selectivity
				relations[j] = c.Relation
			}
			fssResult := hash.FeatureSubSpace(sc.relSigs, plain, sels, hash.NilResolver{}, cfg.ML.LogSelFloor)

			stmt := planhook.Begin(st, cache, cfg.ML, cfg.Tuning, rng, scratchCache)
			stmt.Table.Attach(planhook.NodeID(1), &planhook.NodeInfo{
				FS:               sc.fs,
				FSS:              fssResult.FSS,
				Features:         fssResult.Features,
				RelSigs:          sc.relSigs,
				Clauses:          plain,
				Selectivities:    sels,
				ClauseRelations:  relations,
				Resolver:         hash.NilResolver{},
				WasParameterised: isParam,
				Predicted:        true,
				Prediction:       prediction,
				ActualTuples:     actual,
				ActualLoops:      1,
				WasExecuted:      true,
			})
			estError := 0.0
			if actual > 0 {
				estError = (prediction - actual) / actual
			}
			if err := stmt.End(sc.fs, true, 0.001, 0.01, estError); err != nil {
				return fmt.Errorf("scenario %s: %w", sc.name, err)
			}

			fmt.Printf("  iter %d: predicted=%.1f actual=%.0f (default was %.0f)\n", i, prediction, actual, defaultGuess)

			if decision, ok := stmt.TuneClass(sc.fs); ok && i == *iterations-1 {
				fmt.Printf("  auto-tuner: learn=%v use=%v auto_tune=%v p_use=%.3f\n",
					decision.Learn, decision.Use, decision.AutoTune, decision.PUse)
			}
		}
	}

	fmt.Println()
	result := st.Cleanup(func(uint64) bool { return true }, false)
	fmt.Printf("cleanup: removed %d classes, %d sub-spaces (none expected, all relations reported live)\n",
		result.ClassesRemoved, result.SubSpacesRemoved)

	if backend != nil {
		st.Flush()
		fmt.Printf("snapshot written to %s\n", *storeDir)
	}

	return nil
}
