package sqlite

import "github.com/alanyoungcy/optiprice/internal/domain"

// listQuery appends the time window, ordering and pagination of opts to a
// SELECT that already ends in a WHERE clause.
func listQuery(base, timeCol, orderBy string, opts domain.ListOpts) (string, []any) {
	query := base
	args := []any{}

	if opts.Since != nil {
		query += " AND " + timeCol + " >= ?"
		args = append(args, formatTime(*opts.Since))
	}
	if opts.Until != nil {
		query += " AND " + timeCol + " <= ?"
		args = append(args, formatTime(*opts.Until))
	}

	query += " ORDER BY " + orderBy

	switch {
	case opts.Limit > 0:
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	case opts.Offset > 0:
		query += " LIMIT -1"
	}
	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}
	return query, args
}
