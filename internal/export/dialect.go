package export

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

type dialect struct {
	name string
	// columnsQuery lists a table's column names; bound to the table name
	columnsQuery string
}

var dialects = map[string]dialect{
	"sqlite": {
		name:         "sqlite",
		columnsQuery: `SELECT name FROM pragma_table_info(?)`,
	},
	"postgres": {
		name:         "postgres",
		columnsQuery: `SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ?`,
	},
}

func init() {
	// modernc registers as "sqlite", which sqlx does not know
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported export driver %q", driver)
	}
	return d, nil
}
