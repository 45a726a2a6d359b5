package sqlitedb

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/jellytools/jfmigrate/internal/logger"
)

// DateConfig locates the item table and its timestamp columns.
type DateConfig struct {
	Table          string `yaml:"table"`
	PathColumn     string `yaml:"path_column"`
	CreatedColumn  string `yaml:"created_column"`
	ModifiedColumn string `yaml:"modified_column"`
}

func (c DateConfig) withDefaults() DateConfig {
	if c.Table == "" {
		c.Table = "BaseItems"
	}
	if c.PathColumn == "" {
		c.PathColumn = "Path"
	}
	if c.CreatedColumn == "" {
		c.CreatedColumn = "DateCreated"
	}
	if c.ModifiedColumn == "" {
		c.ModifiedColumn = "DateModified"
	}
	return c
}

// UpdateDates repairs invalid item timestamps from the filesystem. A
// timestamp is invalid when it parses to a pre-epoch instant; only those are
// replaced, with the modification time of the file resolve maps the item's
// stored path to. Items whose file is missing or whose dates do not parse are
// skipped. Returns the number of rows repaired.
func UpdateDates(db *sql.DB, dbName string, cfg DateConfig, resolve func(string) string, log logger.Logger) (int, error) {
	cfg = cfg.withDefaults()

	ok, err := hasTable(db, cfg.Table)
	if err != nil {
		return 0, fmt.Errorf("check table %s: %w", cfg.Table, err)
	}
	if !ok {
		return 0, &TableNotFoundError{Table: cfg.Table, Database: dbName}
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin %s: %w", cfg.Table, err)
	}
	defer tx.Rollback()

	type item struct {
		rowid             int64
		path              string
		created, modified string
	}
	query := fmt.Sprintf("SELECT `rowid`, `%s`, `%s`, `%s` FROM `%s`",
		cfg.PathColumn, cfg.CreatedColumn, cfg.ModifiedColumn, cfg.Table)
	rows, err := tx.Query(query)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", cfg.Table, err)
	}
	var items []item
	for rows.Next() {
		var it item
		var path, created, modified any
		if err := rows.Scan(&it.rowid, &path, &created, &modified); err != nil {
			rows.Close()
			return 0, err
		}
		it.path, _ = asString(path)
		it.created, _ = asString(created)
		it.modified, _ = asString(modified)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	updated := 0
	for _, it := range items {
		if it.path == "" {
			continue
		}
		createdNS, err := ParseDate(it.created)
		if err != nil {
			continue
		}
		modifiedNS, err := ParseDate(it.modified)
		if err != nil {
			continue
		}
		if createdNS >= 0 && modifiedNS >= 0 {
			continue
		}

		info, err := os.Stat(resolve(it.path))
		if err != nil {
			log.Debugf("dates: file missing for rowid %d: %s", it.rowid, it.path)
			continue
		}
		stamp := FormatDate(info.ModTime().UnixNano())

		if createdNS < 0 {
			stmt := fmt.Sprintf("UPDATE `%s` SET `%s` = ? WHERE `rowid` = ?", cfg.Table, cfg.CreatedColumn)
			if _, err := tx.Exec(stmt, stamp, it.rowid); err != nil {
				return updated, fmt.Errorf("update %s.%s: %w", cfg.Table, cfg.CreatedColumn, err)
			}
		}
		if modifiedNS < 0 {
			stmt := fmt.Sprintf("UPDATE `%s` SET `%s` = ? WHERE `rowid` = ?", cfg.Table, cfg.ModifiedColumn)
			if _, err := tx.Exec(stmt, stamp, it.rowid); err != nil {
				return updated, fmt.Errorf("update %s.%s: %w", cfg.Table, cfg.ModifiedColumn, err)
			}
		}
		updated++
	}

	if err := tx.Commit(); err != nil {
		return updated, fmt.Errorf("commit %s: %w", cfg.Table, err)
	}
	log.Infof("%s.%s: %d rows repaired", dbName, cfg.Table, updated)
	return updated, nil
}

const dateLayout = "2006-01-02 15:04:05"

// ParseDate converts a stored timestamp such as "2022-10-21 15:30:45.1234567Z"
// to nanoseconds since the Unix epoch. The fractional part holds up to seven
// digits (100ns ticks). Values outside the int64 nanosecond range are clamped,
// which preserves their sign.
func ParseDate(s string) (int64, error) {
	frac := "0"
	base := s
	if i := strings.LastIndex(base, "."); i >= 0 {
		base, frac = base[:i], base[i+1:]
	}
	if j := strings.IndexByte(frac, '+'); j >= 0 {
		frac = frac[:j]
	}
	frac = strings.TrimRight(frac, "Zz")
	if j := strings.IndexByte(base, '+'); j > 0 {
		base = base[:j]
	}
	base = strings.TrimSuffix(base, "Z")
	base = strings.Replace(base, "T", " ", 1)

	t, err := time.Parse(dateLayout, base)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", s, err)
	}

	if len(frac) > 9 {
		frac = frac[:9]
	}
	var fracNS int64
	for _, r := range frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("parse date %q: bad fraction", s)
		}
		fracNS = fracNS*10 + int64(r-'0')
	}
	for i := len(frac); i < 9; i++ {
		fracNS *= 10
	}

	sec := t.Unix()
	const maxSec = math.MaxInt64 / int64(time.Second)
	if sec > maxSec {
		return math.MaxInt64, nil
	}
	if sec < -maxSec {
		return math.MinInt64, nil
	}
	return sec*int64(time.Second) + fracNS, nil
}

// FormatDate converts nanoseconds since the Unix epoch to the stored
// timestamp format, with the fraction in 100ns ticks and trailing zeros
// trimmed.
func FormatDate(ns int64) string {
	sec := ns / int64(time.Second)
	rem := ns - sec*int64(time.Second)
	if rem < 0 {
		rem += int64(time.Second)
		sec--
	}
	out := time.Unix(sec, 0).UTC().Format(dateLayout)
	frac := strings.TrimRight(fmt.Sprintf("%07d", rem/100), "0")
	if frac != "" {
		out += "." + frac
	}
	return out + "Z"
}
