package data

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/stock_radar/app/advisor/internal/repo"
)

type watchlistRepo struct {
	data *Data
	log  *log.Helper
}

func NewWatchlistRepo(data *Data, logger log.Logger) repo.WatchlistRepo {
	return &watchlistRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *watchlistRepo) ListSymbols(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.data.db.QueryContext(ctx, `
		SELECT symbol FROM watchlist_items
		WHERE user_email = $1
		ORDER BY added_at, symbol`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	symbols := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

func (r *watchlistRepo) AddSymbol(ctx context.Context, userID, symbol string) (bool, error) {
	res, err := r.data.db.ExecContext(ctx, `
		INSERT INTO watchlist_items (user_email, symbol) VALUES ($1, $2)
		ON CONFLICT (user_email, symbol) DO NOTHING`, userID, symbol)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *watchlistRepo) RemoveSymbol(ctx context.Context, userID, symbol string) error {
	res, err := r.data.db.ExecContext(ctx, `DELETE FROM watchlist_items WHERE user_email = $1 AND symbol = $2`, userID, symbol)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.log.Debugf("watchlist of %s has no %s", userID, symbol)
	}
	return nil
}
