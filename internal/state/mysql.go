package state

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/eastgate/supplysync/internal/domain"
)

type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (s *MySQLStore) BulkUpsertProducts(ctx context.Context, recs []domain.Product) error {
	if len(recs) == 0 {
		return nil
	}

	// One multi-row statement keeps the batch write transactional and cheap.
	var sb strings.Builder
	sb.WriteString(`INSERT INTO products
		(external_id, title, description, image_url, price, currency, sync_enabled, active, last_synced_at)
		VALUES `)

	args := make([]any, 0, len(recs)*9)
	for i, rec := range recs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			rec.ExternalID, rec.Title, rec.Description, rec.ImageURL,
			rec.Price, rec.Currency, rec.SyncEnabled, rec.Active,
			nullTime(rec.LastSyncedAt),
		)
	}

	// Removal bookkeeping is deliberately not touched here; that belongs to
	// MarkRemoved/ClearRemoval.
	sb.WriteString(` ON DUPLICATE KEY UPDATE
		title = VALUES(title),
		description = VALUES(description),
		image_url = VALUES(image_url),
		price = VALUES(price),
		currency = VALUES(currency),
		sync_enabled = VALUES(sync_enabled),
		active = VALUES(active),
		last_synced_at = VALUES(last_synced_at)`)

	_, err := s.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (s *MySQLStore) GetProduct(ctx context.Context, pid string) (domain.Product, bool, error) {
	var (
		p         domain.Product
		lastSync  sql.NullTime
		removedAt sql.NullTime
		reason    sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT external_id, title, description, image_url, price, currency,
		       sync_enabled, active, last_synced_at, removed_at, removed_reason
		FROM products WHERE external_id = ?`, pid,
	).Scan(&p.ExternalID, &p.Title, &p.Description, &p.ImageURL, &p.Price, &p.Currency,
		&p.SyncEnabled, &p.Active, &lastSync, &removedAt, &reason)

	if err == sql.ErrNoRows {
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, err
	}

	if lastSync.Valid {
		t := lastSync.Time.UTC()
		p.LastSyncedAt = &t
	}
	if removedAt.Valid {
		t := removedAt.Time.UTC()
		p.RemovedAt = &t
	}
	p.RemovedReason = reason.String
	return p, true, nil
}

func (s *MySQLStore) MarkRemoved(ctx context.Context, pid, reason string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (external_id, title, price, sync_enabled, active, removed_at, removed_reason)
		VALUES (?, '', '0', FALSE, FALSE, ?, ?)
		ON DUPLICATE KEY UPDATE
		  sync_enabled = FALSE,
		  active = FALSE,
		  removed_at = VALUES(removed_at),
		  removed_reason = VALUES(removed_reason)`,
		pid, now.UTC(), reason,
	)
	return err
}

func (s *MySQLStore) ClearRemoval(ctx context.Context, pid string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET active = TRUE,
		    removed_at = NULL,
		    removed_reason = NULL,
		    last_synced_at = ?
		WHERE external_id = ?`,
		now.UTC(), pid,
	)
	return err
}

func (s *MySQLStore) UpsertVariant(ctx context.Context, v domain.Variant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO variants
		  (external_variant_id, product_external_id, sku, stock_on_hand, price, stock_synced_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		  sku = VALUES(sku),
		  stock_on_hand = VALUES(stock_on_hand),
		  price = VALUES(price),
		  stock_synced_at = VALUES(stock_synced_at)`,
		v.ExternalVariantID, v.ProductExternalID, v.SKU, v.StockOnHand, v.Price, v.StockSyncedAt.UTC(),
	)
	return err
}

func (s *MySQLStore) ListVariants(ctx context.Context, pid string) ([]domain.Variant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT external_variant_id, product_external_id, sku, stock_on_hand, price, stock_synced_at
		FROM variants WHERE product_external_id = ?
		ORDER BY external_variant_id`, pid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Variant
	for rows.Next() {
		var v domain.Variant
		var synced time.Time
		if err := rows.Scan(&v.ExternalVariantID, &v.ProductExternalID, &v.SKU,
			&v.StockOnHand, &v.Price, &synced); err != nil {
			return nil, err
		}
		v.StockSyncedAt = synced.UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
