package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/port"
)

const mysqlDuplicateEntry = 1062

var schema = []string{
	`CREATE TABLE IF NOT EXISTS batches (
		reference          VARCHAR(255) NOT NULL PRIMARY KEY,
		sku                VARCHAR(255) NOT NULL,
		purchased_quantity INT NOT NULL,
		eta                DATE NULL,
		version            INT NOT NULL DEFAULT 0,
		created_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_batches_sku (sku)
	)`,
	`CREATE TABLE IF NOT EXISTS allocations (
		batch_ref VARCHAR(255) NOT NULL,
		order_id  VARCHAR(255) NOT NULL,
		sku       VARCHAR(255) NOT NULL,
		qty       INT NOT NULL,
		PRIMARY KEY (batch_ref, order_id, sku, qty),
		CONSTRAINT fk_allocations_batch FOREIGN KEY (batch_ref) REFERENCES batches (reference) ON DELETE CASCADE
	)`,
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) Add(ctx context.Context, batch *domain.Batch) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (reference, sku, purchased_quantity, eta, version)
		VALUES (?, ?, ?, ?, ?)`,
		batch.Reference, batch.SKU, batch.PurchasedQuantity, batch.ETA, batch.Version,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return port.ErrBatchExists
		}
		return fmt.Errorf("insert batch: %w", err)
	}

	if err := insertAllocations(ctx, tx, batch); err != nil {
		return err
	}

	return tx.Commit()
}

func (m *MySQLAdapter) Get(ctx context.Context, reference string) (*domain.Batch, error) {
	batch, err := scanBatch(m.db.QueryRowContext(ctx, `
		SELECT reference, sku, purchased_quantity, eta, version
		FROM batches WHERE reference = ?`, reference,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query batch: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT batch_ref, order_id, sku, qty
		FROM allocations WHERE batch_ref = ?`, reference,
	)
	if err != nil {
		return nil, fmt.Errorf("query allocations: %w", err)
	}
	if err := restoreAllocations(rows, map[string]*domain.Batch{batch.Reference: batch}); err != nil {
		return nil, err
	}

	return batch, nil
}

func (m *MySQLAdapter) ListBySKU(ctx context.Context, sku string) ([]*domain.Batch, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT reference, sku, purchased_quantity, eta, version
		FROM batches WHERE sku = ? ORDER BY created_at, reference`, sku,
	)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var batches []*domain.Batch
	byRef := make(map[string]*domain.Batch)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, batch)
		byRef[batch.Reference] = batch
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	if len(batches) == 0 {
		return nil, nil
	}

	allocRows, err := m.db.QueryContext(ctx, `
		SELECT a.batch_ref, a.order_id, a.sku, a.qty
		FROM allocations a
		JOIN batches b ON b.reference = a.batch_ref
		WHERE b.sku = ?`, sku,
	)
	if err != nil {
		return nil, fmt.Errorf("query allocations: %w", err)
	}
	if err := restoreAllocations(allocRows, byRef); err != nil {
		return nil, err
	}

	return batches, nil
}

// Save replaces the allocation set of batch. The batch row version is bumped
// only if it still matches batch.Version.
func (m *MySQLAdapter) Save(ctx context.Context, batch *domain.Batch) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE batches
		SET version = version + 1, updated_at = NOW()
		WHERE reference = ? AND version = ?`,
		batch.Reference, batch.Version,
	)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches WHERE reference = ?`, batch.Reference).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check batch: %w", err)
		}
		if exists == 0 {
			return port.ErrBatchNotFound
		}
		return port.ErrOptimisticLock
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM allocations WHERE batch_ref = ?`, batch.Reference); err != nil {
		return fmt.Errorf("delete allocations: %w", err)
	}
	if err := insertAllocations(ctx, tx, batch); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	batch.Version++
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*domain.Batch, error) {
	var (
		batch domain.Batch
		eta   sql.NullTime
	)
	if err := row.Scan(&batch.Reference, &batch.SKU, &batch.PurchasedQuantity, &eta, &batch.Version); err != nil {
		return nil, err
	}
	if eta.Valid {
		t := eta.Time
		batch.ETA = &t
	}
	batch.RestoreAllocations()
	return &batch, nil
}

func restoreAllocations(rows *sql.Rows, byRef map[string]*domain.Batch) error {
	defer rows.Close()

	for rows.Next() {
		var (
			ref  string
			line domain.OrderLine
		)
		if err := rows.Scan(&ref, &line.OrderID, &line.SKU, &line.Qty); err != nil {
			return fmt.Errorf("scan allocation: %w", err)
		}
		if b, ok := byRef[ref]; ok {
			b.RestoreAllocations(line)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate allocations: %w", err)
	}
	return nil
}

func insertAllocations(ctx context.Context, tx *sql.Tx, batch *domain.Batch) error {
	for _, line := range batch.Allocations() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO allocations (batch_ref, order_id, sku, qty)
			VALUES (?, ?, ?, ?)`,
			batch.Reference, line.OrderID, line.SKU, line.Qty,
		)
		if err != nil {
			return fmt.Errorf("insert allocation: %w", err)
		}
	}
	return nil
}
