package ids

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jellytools/jfmigrate/internal/logger"
)

// LibraryIDs holds every identifier known to the library database, expanded
// to all representations. Used by the diagnostic scanner only; the migration
// pipeline never consults it.
type LibraryIDs struct {
	byKind map[Kind]map[string]bool
	binary map[ID]bool
	count  int
}

// LoadLibraryIDs reads all item identifiers from the library database. Both
// the current and the legacy table layout are tried.
func LoadLibraryIDs(dbPath string) (*LibraryIDs, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("open library database %s: %w", dbPath, err)
	}
	defer db.Close()

	rows, err := db.Query("SELECT `Id` FROM `BaseItems`")
	if err != nil {
		rows, err = db.Query("SELECT `guid` FROM `TypedBaseItems`")
		if err != nil {
			return nil, fmt.Errorf("read identifiers from %s: %w", dbPath, err)
		}
	}
	defer rows.Close()

	lib := &LibraryIDs{
		byKind: map[Kind]map[string]bool{
			KindHex:            {},
			KindDashed:         {},
			KindAncestorHex:    {},
			KindAncestorDashed: {},
		},
		binary: map[ID]bool{},
	}
	for rows.Next() {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan identifier: %w", err)
		}
		id, err := decodeStoredID(raw)
		if err != nil {
			continue
		}
		anc := id.Ancestor()
		lib.binary[id] = true
		lib.binary[anc] = true
		lib.byKind[KindHex][id.Hex()] = true
		lib.byKind[KindDashed][id.Dashed()] = true
		lib.byKind[KindAncestorHex][anc.Hex()] = true
		lib.byKind[KindAncestorDashed][anc.Dashed()] = true
		lib.count++
	}
	return lib, rows.Err()
}

// Count reports the number of identifiers loaded.
func (l *LibraryIDs) Count() int { return l.count }

// ScanResult lists the identifier representations found in one column.
type ScanResult struct {
	Table   string
	Column  string
	Matches []string
}

// ScanForIDs inspects every column of an arbitrary database (typically a
// plugin's) and reports which known identifiers it contains and in which
// representation. Best-effort: values are matched both as whole cells
// ("pure") and as substrings ("embedded").
func ScanForIDs(library *LibraryIDs, scanDB string, log logger.Logger) ([]ScanResult, error) {
	db, err := sql.Open("sqlite", "file:"+scanDB)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", scanDB, err)
	}
	defer db.Close()

	tables, err := listTables(db)
	if err != nil {
		return nil, err
	}

	var results []ScanResult
	for _, table := range tables {
		columns, err := listColumns(db, table)
		if err != nil {
			return nil, err
		}
		for _, column := range columns {
			matches, err := scanColumn(db, table, column, library)
			if err != nil {
				log.Warnf("skipping %s.%s: %v", table, column, err)
				continue
			}
			if len(matches) > 0 {
				results = append(results, ScanResult{Table: table, Column: column, Matches: matches})
			}
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Table != results[j].Table {
			return results[i].Table < results[j].Table
		}
		return results[i].Column < results[j].Column
	})
	return results, nil
}

func listTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if strings.HasPrefix(name, "sqlite_") {
			continue
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func listColumns(db *sql.DB, table string) ([]string, error) {
	rows, err := db.Query("SELECT name FROM PRAGMA_TABLE_INFO(?)", table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func scanColumn(db *sql.DB, table, column string, library *LibraryIDs) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT DISTINCT `%s` FROM `%s`", column, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		switch t := v.(type) {
		case []byte:
			if id, err := FromBytes(t); err == nil && library.binary[id] {
				found["bin (pure)"] = true
				continue
			}
			matchCandidates(string(t), library, found)
		case string:
			matchCandidates(t, library, found)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	matches := make([]string, 0, len(found))
	for m := range found {
		matches = append(matches, m)
	}
	sort.Strings(matches)
	return matches, nil
}

// matchCandidates extracts maximal runs of hex/dash characters from a value
// and tests each against the known identifier sets.
func matchCandidates(value string, library *LibraryIDs, found map[string]bool) {
	masked := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || r == '-' {
			return r
		}
		return ' '
	}, value)

	shape := "embedded"
	if masked == value {
		shape = "pure"
	}
	for _, candidate := range strings.Fields(masked) {
		if len(candidate) < 32 {
			continue
		}
		for kind, set := range library.byKind {
			if set[candidate] {
				found[fmt.Sprintf("%s (%s)", kind, shape)] = true
			}
		}
	}
}

// FormatScanResults renders results as an aligned text table.
func FormatScanResults(results []ScanResult) string {
	if len(results) == 0 {
		return "No identifiers found."
	}
	rows := [][3]string{{"Table", "Column", "ID type(s) found"}}
	for _, r := range results {
		rows = append(rows, [3]string{r.Table, r.Column, strings.Join(r.Matches, ", ")})
	}
	var widths [3]int
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "%-*s  %-*s  %s\n", widths[0], row[0], widths[1], row[1], row[2])
	}
	return b.String()
}
