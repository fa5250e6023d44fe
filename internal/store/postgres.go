package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"fenrir/internal/model"
)

// Postgres is the database/sql-backed Store implementation, using lib/pq
// as the driver the rest of this repository's teacher lineage favors for
// a plain database/sql setup.
type Postgres struct {
	db *sql.DB
}

// Open connects to Postgres at dsn and verifies the connection.
func Open(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) GetOrder(ctx context.Context, orderID uuid.UUID) (model.Order, error) {
	var o model.Order
	err := p.db.QueryRowContext(ctx, `
		SELECT id, market_id, user_id, outcome, side, type, status,
		       price, quantity, filled_quantity, created_at, updated_at
		FROM orders WHERE id = $1
	`, orderID).Scan(&o.ID, &o.MarketID, &o.UserID, &o.Outcome, &o.Side, &o.Type,
		&o.Status, &o.Price, &o.Quantity, &o.FilledQuantity, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (p *Postgres) GetOrderOwner(ctx context.Context, orderID uuid.UUID) (uuid.UUID, error) {
	var userID uuid.UUID
	err := p.db.QueryRowContext(ctx, `SELECT user_id FROM orders WHERE id = $1`, orderID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.UUID{}, ErrOrderNotFound
	}
	return userID, err
}

func (p *Postgres) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`, status, orderID)
	return err
}

func (p *Postgres) WithTx(ctx context.Context, fn func(Tx) error) error {
	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&postgresTx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	return sqlTx.Commit()
}

func (p *Postgres) LoadResumableOrders(ctx context.Context) ([]ResumableOrder, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT o.id, o.market_id, o.user_id, o.outcome, o.side, o.type, o.status,
		       o.price, o.quantity, o.filled_quantity, o.created_at, o.updated_at,
		       m.liquidity_b
		FROM orders o
		JOIN markets m ON m.id = o.market_id
		WHERE o.status IN ('OPEN', 'PENDING_UPDATE', 'UNSPECIFIED')
		ORDER BY o.created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query resumable orders: %w", err)
	}
	defer rows.Close()

	var out []ResumableOrder
	for rows.Next() {
		var ro ResumableOrder
		o := &ro.Order
		if err := rows.Scan(&o.ID, &o.MarketID, &o.UserID, &o.Outcome, &o.Side, &o.Type,
			&o.Status, &o.Price, &o.Quantity, &o.FilledQuantity, &o.CreatedAt, &o.UpdatedAt,
			&ro.LiquidityB); err != nil {
			return nil, fmt.Errorf("scan resumable order: %w", err)
		}
		out = append(out, ro)
	}
	return out, rows.Err()
}

func (p *Postgres) LoadOpenOrdersForMarket(ctx context.Context, marketID uuid.UUID) ([]model.Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, market_id, user_id, outcome, side, type, status,
		       price, quantity, filled_quantity, created_at, updated_at
		FROM orders
		WHERE market_id = $1 AND status IN ('OPEN', 'PENDING_UPDATE', 'PENDING_CANCEL')
	`, marketID)
	if err != nil {
		return nil, fmt.Errorf("query open orders: %w", err)
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.MarketID, &o.UserID, &o.Outcome, &o.Side, &o.Type,
			&o.Status, &o.Price, &o.Quantity, &o.FilledQuantity, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan open order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) LoadHoldings(ctx context.Context, marketID uuid.UUID) ([]model.UserHolding, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT user_id, market_id, outcome, shares
		FROM user_holdings
		WHERE market_id = $1 AND shares <> 0
	`, marketID)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	var out []model.UserHolding
	for rows.Next() {
		var h model.UserHolding
		if err := rows.Scan(&h.UserID, &h.MarketID, &h.Outcome, &h.Shares); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (p *Postgres) InsertOrder(ctx context.Context, o *model.Order) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO orders
			(id, market_id, user_id, outcome, side, type, status, price, quantity, filled_quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
	`, o.ID, o.MarketID, o.UserID, o.Outcome, o.Side, o.Type, o.Status, o.Price, o.Quantity, o.FilledQuantity)
	return err
}

func (p *Postgres) UpdateOrderFields(ctx context.Context, orderID uuid.UUID, price, quantity decimal.Decimal) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE orders SET price = $1, quantity = $2, updated_at = now() WHERE id = $3`, price, quantity, orderID)
	return err
}

func (p *Postgres) GetMarket(ctx context.Context, marketID uuid.UUID) (model.Market, error) {
	var m model.Market
	var winner sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT id, question, status, liquidity_b, winner, created_at, updated_at
		FROM markets WHERE id = $1
	`, marketID).Scan(&m.ID, &m.Question, &m.Status, &m.LiquidityB, &winner, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return model.Market{}, err
	}
	if winner.Valid {
		o := model.Outcome(winner.String)
		m.Winner = &o
	}
	return m, nil
}

func (p *Postgres) UpdateMarketStatus(ctx context.Context, marketID uuid.UUID, status model.MarketStatus, winner *model.Outcome) error {
	var winnerVal interface{}
	if winner != nil {
		winnerVal = string(*winner)
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE markets SET status = $1, winner = $2, updated_at = now() WHERE id = $3`, status, winnerVal, marketID)
	return err
}

type postgresTx struct {
	tx *sql.Tx
}

func (t *postgresTx) InsertUserTrade(ctx context.Context, ut model.UserTrade) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO user_trades
			(id, order_id, counter_order_id, user_id, market_id, outcome, side, price, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	`, ut.ID, ut.OrderID, ut.CounterOrderID, ut.UserID, ut.MarketID, ut.Outcome, ut.Side, ut.Price, ut.Quantity)
	return err
}

func (t *postgresTx) UpsertHolding(ctx context.Context, userID, marketID uuid.UUID, outcome model.Outcome, deltaShares decimal.Decimal) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO user_holdings (user_id, market_id, outcome, shares)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, market_id, outcome)
		DO UPDATE SET shares = user_holdings.shares + EXCLUDED.shares
	`, userID, marketID, outcome, deltaShares)
	return err
}

func (t *postgresTx) AdjustBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE users SET balance = balance + $1 WHERE id = $2
	`, delta, userID)
	return err
}

func (t *postgresTx) ZeroHolding(ctx context.Context, userID, marketID uuid.UUID, outcome model.Outcome) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE user_holdings SET shares = 0
		WHERE user_id = $1 AND market_id = $2 AND outcome = $3
	`, userID, marketID, outcome)
	return err
}

func (t *postgresTx) MarkOrderExpired(ctx context.Context, orderID uuid.UUID) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE orders SET status = 'EXPIRED', updated_at = now() WHERE id = $1
	`, orderID)
	return err
}
