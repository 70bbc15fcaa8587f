package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/lumenforge/hdriatlas/biz/dal/model"

	"gorm.io/gorm"
)

// TagColumnPrefix marks the dynamic boolean columns managed at runtime.
const TagColumnPrefix = "tag_"

// ErrTagColumnNotFound is returned when a tag column does not exist.
var ErrTagColumnNotFound = errors.New("tag column not found")

// ErrInvalidTagName is returned when a tag name cannot be mapped to a safe
// column identifier.
var ErrInvalidTagName = errors.New("invalid tag name")

var tagNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// IsTagColumn reports whether a column name belongs to the dynamic tag set.
func IsTagColumn(column string) bool {
	return strings.HasPrefix(column, TagColumnPrefix)
}

// SanitizeTagName maps a human tag name to its column identifier: leading
// and trailing whitespace is trimmed, inner whitespace runs become single
// underscores, and the result must contain only letters, digits and
// underscores. "Studio Light" becomes "tag_Studio_Light".
func SanitizeTagName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidTagName)
	}
	sanitized := strings.Join(strings.Fields(trimmed), "_")
	if !tagNamePattern.MatchString(sanitized) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTagName, name)
	}
	return TagColumnPrefix + sanitized, nil
}

// TagNameFromColumn recovers the display form of a tag from its column name.
// Underscores introduced by sanitization stay as underscores; the original
// spelling is not stored.
func TagNameFromColumn(column string) string {
	return strings.TrimPrefix(column, TagColumnPrefix)
}

// TagSchemaDAO evolves the assets table schema at runtime. Column set
// mutations are serialized through a process-wide mutex: concurrent ALTERs
// or table rebuilds against the same table are never safe to interleave.
type TagSchemaDAO struct {
	mu sync.Mutex
}

func NewTagSchemaDAO() *TagSchemaDAO { return &TagSchemaDAO{} }

// ListTagColumns returns all tag column names currently in the schema,
// in the order the database reports them.
func (dao *TagSchemaDAO) ListTagColumns(ctx context.Context, db *gorm.DB) ([]string, error) {
	columnTypes, err := db.WithContext(ctx).Migrator().ColumnTypes(&model.Asset{})
	if err != nil {
		return nil, fmt.Errorf("introspect columns: %w", err)
	}
	var tags []string
	for _, ct := range columnTypes {
		if IsTagColumn(ct.Name()) {
			tags = append(tags, ct.Name())
		}
	}
	return tags, nil
}

// AddTag ensures a boolean tag column exists for the given tag name and
// returns the column name. Adding a tag that already exists is a no-op and
// preserves every stored value. New columns default to false for all rows.
func (dao *TagSchemaDAO) AddTag(ctx context.Context, db *gorm.DB, name string) (string, error) {
	column, err := SanitizeTagName(name)
	if err != nil {
		return "", err
	}

	dao.mu.Lock()
	defer dao.mu.Unlock()

	existing, err := dao.ListTagColumns(ctx, db)
	if err != nil {
		return "", err
	}
	for _, c := range existing {
		if c == column {
			return column, nil
		}
	}

	err = db.WithContext(ctx).Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s BOOLEAN NOT NULL DEFAULT FALSE`,
		quoteIdent(model.Asset{}.TableName()), quoteIdent(column),
	)).Error
	if err != nil {
		return "", fmt.Errorf("add tag column %s: %w", column, err)
	}
	return column, nil
}

// RemoveTag drops a tag column by rebuilding the table as a projection:
// a replacement table with every column except the target is created, rows
// are copied across by explicit column list, the old table is dropped and
// the replacement renamed into place. The whole sequence runs in one
// transaction so readers only ever observe the column fully present or
// fully absent. Values in all other columns survive untouched.
func (dao *TagSchemaDAO) RemoveTag(ctx context.Context, db *gorm.DB, name string) error {
	column, err := SanitizeTagName(name)
	if err != nil {
		return err
	}

	dao.mu.Lock()
	defer dao.mu.Unlock()

	columnTypes, err := db.WithContext(ctx).Migrator().ColumnTypes(&model.Asset{})
	if err != nil {
		return fmt.Errorf("introspect columns: %w", err)
	}

	found := false
	var kept []gorm.ColumnType
	for _, ct := range columnTypes {
		if ct.Name() == column {
			found = true
			continue
		}
		kept = append(kept, ct)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrTagColumnNotFound, column)
	}

	table := model.Asset{}.TableName()
	rebuild := table + "_rebuild"

	columnDDL := make([]string, 0, len(kept))
	columnNames := make([]string, 0, len(kept))
	for _, ct := range kept {
		columnDDL = append(columnDDL, columnDefinition(ct))
		columnNames = append(columnNames, quoteIdent(ct.Name()))
	}
	columnList := strings.Join(columnNames, ", ")

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf(
			`CREATE TABLE %s (%s)`,
			quoteIdent(rebuild), strings.Join(columnDDL, ", "),
		)).Error; err != nil {
			return fmt.Errorf("create rebuild table: %w", err)
		}
		if err := tx.Exec(fmt.Sprintf(
			`INSERT INTO %s (%s) SELECT %s FROM %s`,
			quoteIdent(rebuild), columnList, columnList, quoteIdent(table),
		)).Error; err != nil {
			return fmt.Errorf("copy rows: %w", err)
		}
		if err := tx.Exec(fmt.Sprintf(`DROP TABLE %s`, quoteIdent(table))).Error; err != nil {
			return fmt.Errorf("drop old table: %w", err)
		}
		if err := tx.Exec(fmt.Sprintf(
			`ALTER TABLE %s RENAME TO %s`,
			quoteIdent(rebuild), quoteIdent(table),
		)).Error; err != nil {
			return fmt.Errorf("rename rebuild table: %w", err)
		}
		// Dropping the old table took its indexes with it.
		if err := tx.Exec(fmt.Sprintf(
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_hash ON %s (hash)`,
			table, quoteIdent(table),
		)).Error; err != nil {
			return fmt.Errorf("restore hash index: %w", err)
		}
		return nil
	})
}

// columnDefinition renders the DDL fragment for one surviving column,
// preserving type, nullability, default, primary key and uniqueness.
func columnDefinition(ct gorm.ColumnType) string {
	var b strings.Builder
	b.WriteString(quoteIdent(ct.Name()))
	b.WriteByte(' ')
	b.WriteString(ct.DatabaseTypeName())

	if pk, ok := ct.PrimaryKey(); ok && pk {
		b.WriteString(" PRIMARY KEY")
		if auto, ok := ct.AutoIncrement(); ok && auto {
			b.WriteString(" AUTOINCREMENT")
		}
		return b.String()
	}

	if nullable, ok := ct.Nullable(); ok && !nullable {
		b.WriteString(" NOT NULL")
	}
	if def, ok := ct.DefaultValue(); ok && def != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(def)
	}
	if unique, ok := ct.Unique(); ok && unique {
		b.WriteString(" UNIQUE")
	}
	return b.String()
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}
