package postgres

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrRowCount means a write touched a different number of rows than expected.
var ErrRowCount = errors.New("unexpected affected row count")

// ExpectRows checks that res touched exactly want rows. A driver that cannot
// report the count is an error, never a success.
func ExpectRows(res sql.Result, want int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != want {
		return fmt.Errorf("%w: got %d, want %d", ErrRowCount, n, want)
	}
	return nil
}
