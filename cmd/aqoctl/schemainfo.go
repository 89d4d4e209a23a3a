package main

import (
	"sync"

	"gorm.io/gorm/schema"

	"github.com/kestrel-db/aqo-predictor/pkg/predictor/hash"
)

// Customer and Order mirror the catalog tables purely as gorm-tagged
// structs; no gorm.DB ever opens against them, they only feed
// schema.Parse below.
type Customer struct {
	ID     uint   `gorm:"column:id"`
	Region string `gorm:"column:region"`
}

type Order struct {
	ID         uint    `gorm:"column:id"`
	CustomerID uint    `gorm:"column:customer_id"`
	Status     string  `gorm:"column:status"`
	Amount     float64 `gorm:"column:amount"`
}

// describeColumns reflects model's gorm tags into the column descriptors
// the hasher needs for TemporaryTableSignature, using gorm's own
// schema.Parse rather than hand-rolling a struct-tag reader here.
func describeColumns(model any) ([]hash.ColumnDescriptor, error) {
	var cache sync.Map
	parsed, err := schema.Parse(model, &cache, schema.NamingStrategy{})
	if err != nil {
		return nil, err
	}
	cols := make([]hash.ColumnDescriptor, 0, len(parsed.Fields))
	for _, f := range parsed.Fields {
		cols = append(cols, hash.ColumnDescriptor{Name: f.DBName, Type: f.FieldType.Kind().String()})
	}
	return cols, nil
}
