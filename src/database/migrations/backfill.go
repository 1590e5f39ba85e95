package migrations

import (
	"fmt"

	"gorm.io/gorm"
)

// normalizeStatusValues uppercases status columns written by early builds
// that stored lowercase values. Status comparisons are exact-match, so mixed
// casing would hide rows from the active-order and queue views.
func normalizeStatusValues(db *gorm.DB) error {
	for _, table := range []string{"signals", "orders", "order_slices"} {
		if !db.Migrator().HasTable(table) {
			continue
		}

		if err := db.Exec(fmt.Sprintf("UPDATE %s SET status = UPPER(status) WHERE status <> UPPER(status)", table)).Error; err != nil {
			return fmt.Errorf("normalize status on %s: %w", table, err)
		}
	}

	return nil
}

// backfillOrderAlgorithm fills the algorithm column for orders created before
// slicing was introduced. Those orders were always executed in one shot.
func backfillOrderAlgorithm(db *gorm.DB) error {
	if !db.Migrator().HasTable("orders") {
		return nil
	}

	err := db.Exec("UPDATE orders SET algorithm = 'IMMEDIATE' WHERE algorithm IS NULL OR algorithm = ''").Error
	if err != nil {
		return fmt.Errorf("backfill order algorithm: %w", err)
	}

	return nil
}
