package sqlitedb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jellytools/jfmigrate/internal/logger"
	"github.com/jellytools/jfmigrate/internal/pathrw"
)

// TableColumns assigns path-bearing roles to the columns of one table. A
// column appears in at most one list.
type TableColumns struct {
	// Path columns hold a single path string.
	Path []string `yaml:"path_columns"`
	// JSON columns hold a JSON document whose string values are paths.
	JSON []string `yaml:"json_columns"`
	// Image columns hold image metadata: entries separated by "|", fields
	// within an entry separated by "*", field 0 being a path.
	Image []string `yaml:"image_columns"`
}

func (c TableColumns) all() []string {
	out := make([]string, 0, len(c.JSON)+len(c.Path)+len(c.Image))
	out = append(out, c.JSON...)
	out = append(out, c.Path...)
	out = append(out, c.Image...)
	return out
}

// PathUpdateResult reports what a table rewrite touched.
type PathUpdateResult struct {
	Rows        int
	RowsChanged int
	Modified    int
	Ignored     int
}

// UpdateTablePaths rewrites every path-bearing cell of table through rw.
// Rows where no value changed are left untouched, so a second run writes
// nothing. The whole table commits as one transaction.
func UpdateTablePaths(db *sql.DB, dbName, table string, cols TableColumns, rw pathrw.Rewriter, log logger.Logger) (PathUpdateResult, error) {
	var res PathUpdateResult

	ok, err := hasTable(db, table)
	if err != nil {
		return res, fmt.Errorf("check table %s: %w", table, err)
	}
	if !ok {
		return res, &TableNotFoundError{Table: table, Database: dbName}
	}

	all := cols.all()
	if len(all) == 0 {
		return res, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return res, fmt.Errorf("begin %s: %w", table, err)
	}
	defer tx.Rollback()

	updates, err := collectPathUpdates(tx, table, cols, rw, log, &res)
	if err != nil {
		return res, err
	}

	setList := make([]string, len(all))
	for i, c := range all {
		setList[i] = fmt.Sprintf("`%s` = ?", c)
	}
	stmt := fmt.Sprintf("UPDATE `%s` SET %s WHERE `rowid` = ?", table, strings.Join(setList, ", "))
	for _, u := range updates {
		args := append(u.values, u.rowid)
		if _, err := tx.Exec(stmt, args...); err != nil {
			return res, fmt.Errorf("update %s row %d: %w", table, u.rowid, err)
		}
		res.RowsChanged++
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit %s: %w", table, err)
	}
	log.Infof("%s.%s: %d rows, %d changed, %d paths modified, %d ignored",
		dbName, table, res.Rows, res.RowsChanged, res.Modified, res.Ignored)
	return res, nil
}

type rowUpdate struct {
	rowid  int64
	values []any
}

// collectPathUpdates reads every row and computes its rewritten cell values.
// Reads finish before any write starts so the transaction's connection is
// never shared between an open cursor and an update.
func collectPathUpdates(tx *sql.Tx, table string, cols TableColumns, rw pathrw.Rewriter, log logger.Logger, res *PathUpdateResult) ([]rowUpdate, error) {
	all := cols.all()
	quoted := make([]string, len(all))
	for i, c := range all {
		quoted[i] = fmt.Sprintf("`%s`", c)
	}
	query := fmt.Sprintf("SELECT `rowid`, %s FROM `%s`", strings.Join(quoted, ", "), table)
	rows, err := tx.Query(query)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	var updates []rowUpdate
	for rows.Next() {
		var rowid int64
		cells := make([]any, len(all))
		dest := make([]any, 0, len(all)+1)
		dest = append(dest, &rowid)
		for i := range cells {
			dest = append(dest, &cells[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		res.Rows++

		var rowStats pathrw.Stats
		out := make([]any, len(all))
		for i, cell := range cells {
			role := columnRole(cols, i)
			s, isStr := asString(cell)
			if !isStr || s == "" {
				out[i] = cell
				continue
			}
			var rewritten string
			var st pathrw.Stats
			switch role {
			case roleJSON:
				rewritten, st, err = rewriteJSONDoc(s, rw)
				if err != nil {
					log.Warnf("%s.%s rowid %d: invalid JSON, skipping cell", table, all[i], rowid)
					out[i] = cell
					continue
				}
			case roleImage:
				rewritten, st = rewriteImageMeta(s, rw)
			default:
				rewritten, st = rw.RewriteString(s)
			}
			rowStats.Add(st)
			out[i] = rewritten
		}
		res.Modified += rowStats.Modified
		res.Ignored += rowStats.Ignored
		if rowStats.Modified > 0 {
			updates = append(updates, rowUpdate{rowid: rowid, values: out})
		}
	}
	return updates, rows.Err()
}

type colRole int

const (
	roleJSON colRole = iota
	rolePath
	roleImage
)

// columnRole maps an index in cols.all() back to its role.
func columnRole(cols TableColumns, i int) colRole {
	switch {
	case i < len(cols.JSON):
		return roleJSON
	case i < len(cols.JSON)+len(cols.Path):
		return rolePath
	default:
		return roleImage
	}
}

// rewriteJSONDoc rewrites every string value of a JSON document.
func rewriteJSONDoc(raw string, rw pathrw.Rewriter) (string, pathrw.Stats, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return "", pathrw.Stats{}, err
	}
	node, st := rw.RewriteNode(pathrw.FromValue(v))
	out, err := json.Marshal(node.ToValue())
	if err != nil {
		return "", pathrw.Stats{}, err
	}
	return string(out), st, nil
}

// rewriteImageMeta rewrites field 0 of every entry in the image metadata
// format: "path*modified*type*width*height*blurhash" entries joined by "|".
func rewriteImageMeta(raw string, rw pathrw.Rewriter) (string, pathrw.Stats) {
	var total pathrw.Stats
	entries := strings.Split(raw, "|")
	for i, entry := range entries {
		if entry == "" {
			continue
		}
		fields := strings.Split(entry, "*")
		out, st := rw.RewriteString(fields[0])
		fields[0] = out
		total.Add(st)
		entries[i] = strings.Join(fields, "*")
	}
	return strings.Join(entries, "|"), total
}
