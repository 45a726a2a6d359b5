package sqlitedb

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"

	"github.com/jellytools/jfmigrate/internal/ids"
	"github.com/jellytools/jfmigrate/internal/logger"
)

// IDColumns assigns identifier representations to the columns of one table.
// The yaml keys match the representation names used throughout the
// configuration.
type IDColumns struct {
	Hex            []string `yaml:"str"`
	Dashed         []string `yaml:"str-dash"`
	AncestorHex    []string `yaml:"ancestor-str"`
	AncestorDashed []string `yaml:"ancestor-str-dash"`
	Binary         []string `yaml:"bin"`
}

// IDUpdateResult reports identifier rewrites in one table.
type IDUpdateResult struct {
	Updated           int
	DuplicatesRemoved int
}

// UpdateTableIDs rewrites identifier columns of table to their recomputed
// values. Each distinct old value becomes a single UPDATE covering all rows
// holding it. When an update would violate a uniqueness constraint the rows
// carrying the old value are logged at debug level and deleted; keeping the
// row that already owns the new identifier. The whole table commits as one
// transaction.
func UpdateTableIDs(db *sql.DB, dbName, table string, cols IDColumns, repl *ids.Replacements, log logger.Logger) (IDUpdateResult, error) {
	var res IDUpdateResult

	ok, err := hasTable(db, table)
	if err != nil {
		return res, fmt.Errorf("check table %s: %w", table, err)
	}
	if !ok {
		return res, &TableNotFoundError{Table: table, Database: dbName}
	}

	tx, err := db.Begin()
	if err != nil {
		return res, fmt.Errorf("begin %s: %w", table, err)
	}
	defer tx.Rollback()

	textual := []struct {
		kind    ids.Kind
		columns []string
	}{
		{ids.KindHex, cols.Hex},
		{ids.KindDashed, cols.Dashed},
		{ids.KindAncestorHex, cols.AncestorHex},
		{ids.KindAncestorDashed, cols.AncestorDashed},
	}
	for _, t := range textual {
		mapping := repl.Strings(t.kind)
		if len(mapping) == 0 {
			continue
		}
		for _, col := range t.columns {
			if err := updateTextColumn(tx, table, col, mapping, log, &res); err != nil {
				return res, err
			}
		}
	}

	if bin := binaryMapping(repl, cols.Binary); len(bin) > 0 {
		for _, col := range cols.Binary {
			if err := updateBinaryColumn(tx, table, col, bin, log, &res); err != nil {
				return res, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit %s: %w", table, err)
	}
	log.Infof("%s.%s: %d identifiers updated, %d duplicate rows removed",
		dbName, table, res.Updated, res.DuplicatesRemoved)
	return res, nil
}

func binaryMapping(repl *ids.Replacements, columns []string) map[ids.ID]ids.ID {
	if len(columns) == 0 {
		return nil
	}
	return repl.Binary()
}

func updateTextColumn(tx *sql.Tx, table, col string, mapping map[string]string, log logger.Logger, res *IDUpdateResult) error {
	values, err := distinctStrings(tx, table, col)
	if err != nil {
		return err
	}
	for _, old := range values {
		repl, ok := mapping[old]
		if !ok {
			continue
		}
		if err := applyIDUpdate(tx, table, col, repl, old, log, res); err != nil {
			return err
		}
	}
	return nil
}

func updateBinaryColumn(tx *sql.Tx, table, col string, mapping map[ids.ID]ids.ID, log logger.Logger, res *IDUpdateResult) error {
	values, err := distinctBlobs(tx, table, col)
	if err != nil {
		return err
	}
	for _, old := range values {
		id, err := ids.FromBytes(old)
		if err != nil {
			continue
		}
		repl, ok := mapping[id]
		if !ok {
			continue
		}
		if err := applyIDUpdate(tx, table, col, repl.Bytes(), old, log, res); err != nil {
			return err
		}
	}
	return nil
}

// applyIDUpdate issues one UPDATE for all rows holding old. A uniqueness
// violation means some row already carries the new identifier; the old rows
// are then dumped to the debug log and deleted.
func applyIDUpdate(tx *sql.Tx, table, col string, repl, old any, log logger.Logger, res *IDUpdateResult) error {
	stmt := fmt.Sprintf("UPDATE `%s` SET `%s` = ? WHERE `%s` = ?", table, col, col)
	_, err := tx.Exec(stmt, repl, old)
	if err == nil {
		res.Updated++
		return nil
	}
	if !isConstraintErr(err) {
		return fmt.Errorf("update %s.%s: %w", table, col, err)
	}

	log.Warnf("identifier collision in %s.%s, removing duplicate rows", table, col)
	if err := logRows(tx, table, col, old, log); err != nil {
		return err
	}
	del, err := tx.Exec(fmt.Sprintf("DELETE FROM `%s` WHERE `%s` = ?", table, col), old)
	if err != nil {
		return fmt.Errorf("delete duplicates from %s.%s: %w", table, col, err)
	}
	n, err := del.RowsAffected()
	if err != nil {
		return err
	}
	res.DuplicatesRemoved += int(n)
	return nil
}

func logRows(tx *sql.Tx, table, col string, value any, log logger.Logger) error {
	rows, err := tx.Query(fmt.Sprintf("SELECT * FROM `%s` WHERE `%s` = ?", table, col), value)
	if err != nil {
		return err
	}
	defer rows.Close()
	names, err := rows.Columns()
	if err != nil {
		return err
	}
	for rows.Next() {
		cells := make([]any, len(names))
		dest := make([]any, len(names))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		log.Debugf("removing duplicate row from %s: %v", table, cells)
	}
	return rows.Err()
}

func distinctStrings(tx *sql.Tx, table, col string) ([]string, error) {
	rows, err := tx.Query(fmt.Sprintf("SELECT DISTINCT `%s` FROM `%s`", col, table))
	if err != nil {
		return nil, fmt.Errorf("read %s.%s: %w", table, col, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if s, ok := asString(v); ok {
			out = append(out, s)
		}
	}
	return out, rows.Err()
}

func distinctBlobs(tx *sql.Tx, table, col string) ([][]byte, error) {
	rows, err := tx.Query(fmt.Sprintf("SELECT DISTINCT `%s` FROM `%s`", col, table))
	if err != nil {
		return nil, fmt.Errorf("read %s.%s: %w", table, col, err)
	}
	defer rows.Close()
	var out [][]byte
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if b, ok := v.([]byte); ok {
			cp := make([]byte, len(b))
			copy(cp, b)
			out = append(out, cp)
		}
	}
	return out, rows.Err()
}

// SQLite primary result code 19 is SQLITE_CONSTRAINT.
func isConstraintErr(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == 19
}
