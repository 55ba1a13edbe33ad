package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/stock_radar/app/advisor/internal/domain"
	"github.com/iWorld-y/stock_radar/app/advisor/internal/repo"
)

type portfolioRepo struct {
	data *Data
	log  *log.Helper
}

func NewPortfolioRepo(data *Data, logger log.Logger) repo.PortfolioRepo {
	return &portfolioRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *portfolioRepo) ListPositions(ctx context.Context, userID string) ([]*domain.Position, error) {
	rows, err := r.data.db.QueryContext(ctx, `
		SELECT symbol, shares, purchase_price, purchase_date, notes
		FROM portfolio_positions
		WHERE user_email = $1
		ORDER BY created_at, symbol`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []*domain.Position{}
	for rows.Next() {
		p := &domain.Position{}
		if err := rows.Scan(&p.Symbol, &p.Shares, &p.PurchasePrice, &p.PurchaseDate, &p.Notes); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// UpdatePosition 用事务级 advisory lock 串行化同一用户同一股票的读改写
func (r *portfolioRepo) UpdatePosition(ctx context.Context, userID, symbol string, fn repo.PositionUpdater) (err error) {
	tx, err := r.data.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				err = fmt.Errorf("%w: %v", err, rerr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID+"/"+symbol); err != nil {
		return err
	}

	var cur *domain.Position
	p := &domain.Position{}
	err = tx.QueryRowContext(ctx, `
		SELECT symbol, shares, purchase_price, purchase_date, notes
		FROM portfolio_positions
		WHERE user_email = $1 AND symbol = $2`, userID, symbol).
		Scan(&p.Symbol, &p.Shares, &p.PurchasePrice, &p.PurchaseDate, &p.Notes)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return err
	default:
		cur = p
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}

	if next == nil {
		_, err = tx.ExecContext(ctx, `DELETE FROM portfolio_positions WHERE user_email = $1 AND symbol = $2`, userID, symbol)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO portfolio_positions (user_email, symbol, shares, purchase_price, purchase_date, notes)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_email, symbol) DO UPDATE SET
				shares = EXCLUDED.shares,
				purchase_price = EXCLUDED.purchase_price,
				purchase_date = EXCLUDED.purchase_date,
				notes = EXCLUDED.notes,
				updated_at = CURRENT_TIMESTAMP`,
			userID, symbol, next.Shares, next.PurchasePrice, next.PurchaseDate, next.Notes)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}
