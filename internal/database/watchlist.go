package database

import "github.com/souhailsouid/adele/internal/model"

// AddToWatchlist adds ticker to the user's watchlist; adding twice is a no-op
func (db *DB) AddToWatchlist(userID, ticker string) error {
	_, err := db.Exec(`
		INSERT INTO watchlist (user_id, ticker, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, ticker) DO NOTHING
	`, userID, ticker, db.now())
	return err
}

// RemoveFromWatchlist removes ticker from the user's watchlist and reports whether it was there
func (db *DB) RemoveFromWatchlist(userID, ticker string) (bool, error) {
	res, err := db.Exec(`
		DELETE FROM watchlist
		WHERE user_id = $1 AND ticker = $2
	`, userID, ticker)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Watchlist returns the user's watched tickers in the order they were added
func (db *DB) Watchlist(userID string) ([]model.WatchlistEntry, error) {
	rows, err := db.Query(`
		SELECT user_id, ticker, added_at
		FROM watchlist
		WHERE user_id = $1
		ORDER BY added_at, ticker
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.WatchlistEntry{}
	for rows.Next() {
		var e model.WatchlistEntry
		if err := rows.Scan(&e.UserID, &e.Ticker, &e.AddedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AllWatchedTickers returns every ticker watched by at least one user
func (db *DB) AllWatchedTickers() ([]string, error) {
	rows, err := db.Query(`SELECT DISTINCT ticker FROM watchlist ORDER BY ticker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}
