package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

type pourRepository struct {
	db DB
}

func NewPourRepository(db DB) interfaces.PourRepository {
	return &pourRepository{db: db}
}

func (r *pourRepository) Create(ctx context.Context, order *domain.PourOrder) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO pour_orders (number, session_token, total_amount, status, progress_percent,
		                         created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err = tx.QueryRow(ctx, query,
		order.Number, order.SessionToken, order.TotalAmount, order.Status, order.ProgressPercent,
		order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("failed to insert pour order: %w", err)
	}

	for i := range order.Items {
		itemQuery := `
			INSERT INTO pour_items (order_id, kind, size_ml, quantity, unit_price, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		err = tx.QueryRow(ctx, itemQuery,
			order.ID, order.Items[i].Kind, order.Items[i].SizeMl, order.Items[i].Quantity,
			order.Items[i].UnitPrice, time.Now(),
		).Scan(&order.Items[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert pour item: %w", err)
		}
		order.Items[i].OrderID = order.ID
	}

	logQuery := `
		INSERT INTO pour_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = tx.Exec(ctx, logQuery, order.ID, order.Status, "session-service", time.Now())
	if err != nil {
		return fmt.Errorf("failed to log status: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *pourRepository) FindByNumber(ctx context.Context, number string) (*domain.PourOrder, error) {
	query := `
		SELECT id, number, session_token, total_amount, status, progress_percent, message,
		       processed_by, created_at, updated_at, completed_at
		FROM pour_orders
		WHERE number = $1
	`

	var order domain.PourOrder
	err := r.db.QueryRow(ctx, query, number).Scan(
		&order.ID, &order.Number, &order.SessionToken, &order.TotalAmount, &order.Status,
		&order.ProgressPercent, &order.Message, &order.ProcessedBy,
		&order.CreatedAt, &order.UpdatedAt, &order.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("pour order not found: %w", err)
	}

	itemsQuery := `SELECT id, order_id, kind, size_ml, quantity, unit_price FROM pour_items WHERE order_id = $1`
	rows, err := r.db.Query(ctx, itemsQuery, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pour items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.PourItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.Kind, &item.SizeMl, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan pour item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	return &order, nil
}

func (r *pourRepository) GenerateOrderNumber(ctx context.Context) (string, error) {
	now := time.Now().UTC()
	prefix := fmt.Sprintf("POUR_%s_", now.Format("20060102"))

	query := `
		SELECT COUNT(*) FROM pour_orders
		WHERE number LIKE $1 AND DATE(created_at) = $2
	`

	var count int
	err := r.db.QueryRow(ctx, query, prefix+"%", now.Format("2006-01-02")).Scan(&count)
	if err != nil {
		return "", fmt.Errorf("failed to count pour orders: %w", err)
	}

	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}

func (r *pourRepository) UpdateStatusWithLog(ctx context.Context, order *domain.PourOrder, changedBy string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE pour_orders
		SET status = $1, progress_percent = $2, message = $3, processed_by = $4,
		    updated_at = $5, completed_at = $6
		WHERE id = $7
	`
	_, err = tx.Exec(ctx, query,
		order.Status, order.ProgressPercent, order.Message, order.ProcessedBy,
		order.UpdatedAt, order.CompletedAt, order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pour order: %w", err)
	}

	logQuery := `
		INSERT INTO pour_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = tx.Exec(ctx, logQuery, order.ID, order.Status, changedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to log status: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *pourRepository) HasActivePour(ctx context.Context, sessionToken string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM pour_orders
		WHERE session_token = $1 AND status NOT IN ($2, $3)
	`

	var count int
	err := r.db.QueryRow(ctx, query, sessionToken, domain.PourComplete, domain.PourError).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count active pours: %w", err)
	}
	return count > 0, nil
}

func (r *pourRepository) GetStatusHistory(ctx context.Context, orderID int) ([]*domain.PourStatusLog, error) {
	query := `
		SELECT id, order_id, status, changed_by, changed_at, notes
		FROM pour_status_log
		WHERE order_id = $1
		ORDER BY changed_at ASC
	`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var logs []*domain.PourStatusLog
	for rows.Next() {
		var log domain.PourStatusLog
		if err := rows.Scan(&log.ID, &log.OrderID, &log.Status, &log.ChangedBy, &log.ChangedAt, &log.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		logs = append(logs, &log)
	}

	return logs, nil
}
