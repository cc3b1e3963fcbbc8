package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/payment"
)

var saleColumns = []string{"id", "amount_cents", "product", "method", "status", "created_at_ms"}

// SalesLedger mirrors approved gateway sales.
type SalesLedger struct {
	db *DB
}

func NewSalesLedger(db *DB) *SalesLedger {
	return &SalesLedger{db: db}
}

func (l *SalesLedger) Upsert(ctx context.Context, sales []payment.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, l.db.upsert("sales", "id", saleColumns, saleColumns[1:]))
	if err != nil {
		return fmt.Errorf("sqlstore: prepare: %w", err)
	}
	defer stmt.Close()

	for _, s := range sales {
		if _, err := stmt.ExecContext(ctx, s.ID, s.AmountCents, s.Product, s.Method, string(s.Status), s.CreatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("sqlstore: upsert sale %s: %w", s.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

// Since lists sales created at or after since, newest first. A zero since
// returns everything.
func (l *SalesLedger) Since(ctx context.Context, since time.Time) ([]payment.Sale, error) {
	var from int64
	if !since.IsZero() {
		from = since.UnixMilli()
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+columnList(saleColumns)+` FROM sales WHERE created_at_ms >= ? ORDER BY created_at_ms DESC`, from)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list sales: %w", err)
	}
	defer rows.Close()

	var out []payment.Sale
	for rows.Next() {
		var (
			s       payment.Sale
			status  string
			created int64
		)
		if err := rows.Scan(&s.ID, &s.AmountCents, &s.Product, &s.Method, &status, &created); err != nil {
			return nil, fmt.Errorf("sqlstore: scan sale: %w", err)
		}
		s.Status = payment.Status(status)
		s.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}
