package domain

// ColumnMetadata describes one column of a tenant table together with its
// per-level permission flags.
type ColumnMetadata struct {
	Name        string
	Type        string
	Sensitive   bool
	PublicRead  bool
	PublicWrite bool
	ServerRead  bool
	ServerWrite bool
}

// CanRead reports whether a caller at the given level may see this column's
// name and values. A sensitive column is never readable below server level,
// regardless of its flags.
func (c ColumnMetadata) CanRead(level PermissionLevel) bool {
	if level >= LevelServer {
		return c.ServerRead
	}
	if c.Sensitive {
		return false
	}
	return c.PublicRead
}

// CanWrite reports whether a caller at the given level may insert or update
// this column.
func (c ColumnMetadata) CanWrite(level PermissionLevel) bool {
	if level >= LevelServer {
		return c.ServerWrite
	}
	return c.PublicWrite
}

// TableMetadata describes one table inside a tenant's schema.
type TableMetadata struct {
	TenantID string
	Name     string
	Columns  []ColumnMetadata
}

// Column looks up a column by name.
func (t *TableMetadata) Column(name string) (ColumnMetadata, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnMetadata{}, false
}

// ReadableColumns returns the names of the columns the given level may read,
// in declaration order. Wildcards expand to this list, never to the table's
// full column list.
func (t *TableMetadata) ReadableColumns(level PermissionLevel) []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.CanRead(level) {
			out = append(out, c.Name)
		}
	}
	return out
}

// FilterForLevel returns a copy of the metadata containing only the columns
// the given level may read. Used by introspection so a public caller cannot
// learn that a sensitive column exists.
func (t *TableMetadata) FilterForLevel(level PermissionLevel) *TableMetadata {
	filtered := &TableMetadata{TenantID: t.TenantID, Name: t.Name}
	for _, c := range t.Columns {
		if c.CanRead(level) {
			filtered.Columns = append(filtered.Columns, c)
		}
	}
	return filtered
}
