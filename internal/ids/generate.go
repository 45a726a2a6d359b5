package ids

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/jellytools/jfmigrate/internal/logger"
)

// GenerateOptions locates the identifier columns of the primary library
// table. Zero values fall back to the server's default schema.
type GenerateOptions struct {
	Table      string
	IDColumn   string
	TypeColumn string
	PathColumn string
	Workers    int
}

func (o *GenerateOptions) defaults() {
	if o.Table == "" {
		o.Table = "BaseItems"
	}
	if o.IDColumn == "" {
		o.IDColumn = "Id"
	}
	if o.TypeColumn == "" {
		o.TypeColumn = "type"
	}
	if o.PathColumn == "" {
		o.PathColumn = "Path"
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
}

type itemRow struct {
	old      ID
	itemType string
	path     string
}

// GenerateReplacements recomputes every item identifier from the migrated
// database and returns the old→new mapping for the ones that changed.
// Identifiers are a function of the post-migration path, so this must run
// against the database *after* path rewriting.
//
// IDs stored as hex strings (newer server versions) and as raw blobs are
// both handled. Rows with empty paths or virtual "%"-prefixed paths carry no
// path-derived identifier and are skipped.
//
// Hashing runs on opts.Workers goroutines; results are merged by row order,
// so the outcome does not depend on scheduling.
func GenerateReplacements(ctx context.Context, dbPath string, opts GenerateOptions, log logger.Logger) (*Replacements, error) {
	opts.defaults()

	db, err := sql.Open("sqlite", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	defer db.Close()

	query := fmt.Sprintf("SELECT `%s`, `%s`, `%s` FROM `%s`",
		opts.IDColumn, opts.TypeColumn, opts.PathColumn, opts.Table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read items from %s: %w", opts.Table, err)
	}
	defer rows.Close()

	var items []itemRow
	for rows.Next() {
		var rawID any
		var itemType, path sql.NullString
		if err := rows.Scan(&rawID, &itemType, &path); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		if !path.Valid || path.String == "" || strings.HasPrefix(path.String, "%") {
			continue
		}
		old, err := decodeStoredID(rawID)
		if err != nil {
			log.Warnf("skipping row with unreadable identifier: %v", err)
			continue
		}
		items = append(items, itemRow{old: old, itemType: itemType.String, path: path.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read items from %s: %w", opts.Table, err)
	}

	newIDs := make([]ID, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := range items {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			newIDs[i] = Hash(items[i].itemType, items[i].path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bin := make(map[ID]ID)
	for i, item := range items {
		if newIDs[i] != item.old {
			bin[item.old] = newIDs[i]
		}
	}
	log.Infof("computed %d identifier replacements from %d items", len(bin), len(items))
	return NewReplacements(bin), nil
}

// decodeStoredID accepts the two on-disk identifier encodings: a 16-byte
// blob, or a 32-character hex string.
func decodeStoredID(v any) (ID, error) {
	switch t := v.(type) {
	case []byte:
		if len(t) == 32 {
			return FromHex(string(t))
		}
		return FromBytes(t)
	case string:
		return FromHex(t)
	default:
		return ID{}, &FormatError{Value: fmt.Sprintf("%v", v), Reason: "unsupported column type"}
	}
}
