package main

import (
	"database/sql"
	"fmt"
	"math/rand"

	_ "modernc.org/sqlite"
)

// catalog is the toy store-backed database the demo harness plans
// "queries" against. It exists purely so the four planner callback
// shapes have real selectivities and real row counts to learn from,
// not to model an actual catalog.
type catalog struct {
	db *sql.DB
}

func newCatalog() (*catalog, error) {
	db, err := sql.Open("sqlite", "file:aqoctl?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	c := &catalog{db: db}
	if err := c.seed(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *catalog) seed() error {
	ddl := []string{
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, region TEXT NOT NULL)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER NOT NULL, status TEXT NOT NULL, amount REAL NOT NULL)`,
	}
	for _, stmt := range ddl {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	regions := []string{"north", "south", "east", "west", "central"}
	rng := rand.New(rand.NewSource(7))

	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	for i := 0; i < 400; i++ {
		if _, err := tx.Exec(`INSERT INTO customers (id, region) VALUES (?, ?)`, i+1, regions[rng.Intn(len(regions))]); err != nil {
			tx.Rollback()
			return err
		}
	}
	// "shipped" is deliberately over-represented so a naive default
	// estimator (assume-uniform-over-distinct-statuses) is visibly wrong
	// and the learned model has something to correct.
	for i := 0; i < 3000; i++ {
		customerID := rng.Intn(400) + 1
		status := "placed"
		switch roll := rng.Float64(); {
		case roll < 0.55:
			status = "shipped"
		case roll < 0.70:
			status = "delivered"
		case roll < 0.85:
			status = "cancelled"
		}
		amount := 5 + rng.Float64()*495
		if _, err := tx.Exec(`INSERT INTO orders (id, customer_id, status, amount) VALUES (?, ?, ?, ?)`, i+1, customerID, status, amount); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (c *catalog) scalar(query string, args ...any) (float64, error) {
	var v float64
	if err := c.db.QueryRow(query, args...).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func (c *catalog) close() error { return c.db.Close() }
