package bcsv

// Layout is an ordered, named column schema shared by a Row, a Writer, a
// Reader, and (as input/output schema) a Sampler. The name→index mapping is
// always the exact inverse of the index→name lookup: Layout maintains this
// as an invariant across add/remove/rename, never as a cache that can go
// stale.
type Layout struct {
	columns []Column
	index   map[string]int
}

// NewLayout builds a Layout from an ordered column list. It panics if two
// columns share a name or a name is empty, since that would violate the
// bimap invariant before the Layout is ever used — this is a programmer
// error, not a runtime condition callers are expected to handle.
func NewLayout(columns ...Column) *Layout {
	l := &Layout{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		if err := l.AddColumn(c.Name, c.Type); err != nil {
			panic(err)
		}
	}
	return l
}

// ColumnCount returns the number of columns in the layout.
func (l *Layout) ColumnCount() int { return len(l.columns) }

// Name returns the name of column i. It panics on an out-of-range i; callers
// iterating 0..ColumnCount() are always in range.
func (l *Layout) Name(i int) string { return l.columns[i].Name }

// Type returns the type of column i.
func (l *Layout) Type(i int) ColumnType { return l.columns[i].Type }

// Index returns the column index for name, and false if no such column
// exists.
func (l *Layout) Index(name string) (int, bool) {
	i, ok := l.index[name]
	return i, ok
}

// Has reports whether name is a column of this layout.
func (l *Layout) Has(name string) bool {
	_, ok := l.index[name]
	return ok
}

// AddColumn appends a new column. It fails with a KindRange error if name is
// empty or already present.
func (l *Layout) AddColumn(name string, typ ColumnType) error {
	if name == "" {
		return newErr(KindRange, "add column: empty name")
	}
	if _, ok := l.index[name]; ok {
		return newErr(KindRange, "add column: duplicate name %q", name)
	}
	l.index[name] = len(l.columns)
	l.columns = append(l.columns, Column{Name: name, Type: typ})
	return nil
}

// RemoveColumn removes column i, shifting successors left and rebuilding
// the name→index map so the bimap invariant holds afterward.
func (l *Layout) RemoveColumn(i int) error {
	if i < 0 || i >= len(l.columns) {
		return newErr(KindRange, "remove column: index %d out of range [0,%d)", i, len(l.columns))
	}
	delete(l.index, l.columns[i].Name)
	l.columns = append(l.columns[:i], l.columns[i+1:]...)
	for j := i; j < len(l.columns); j++ {
		l.index[l.columns[j].Name] = j
	}
	return nil
}

// SetName renames column i. It fails if the new name is already used by a
// different column.
func (l *Layout) SetName(i int, newName string) error {
	if i < 0 || i >= len(l.columns) {
		return newErr(KindRange, "set name: index %d out of range [0,%d)", i, len(l.columns))
	}
	if newName == "" {
		return newErr(KindRange, "set name: empty name")
	}
	if existing, ok := l.index[newName]; ok && existing != i {
		return newErr(KindRange, "set name: duplicate name %q", newName)
	}
	delete(l.index, l.columns[i].Name)
	l.columns[i].Name = newName
	l.index[newName] = i
	return nil
}

// Equal reports whether l and other have the same column names and types in
// the same order.
func (l *Layout) Equal(other *Layout) bool {
	if other == nil || len(l.columns) != len(other.columns) {
		return false
	}
	for i, c := range l.columns {
		if c != other.columns[i] {
			return false
		}
	}
	return true
}

// Compatible reports whether l and other have the same type sequence,
// regardless of column names. Rows copy across Compatible (not necessarily
// Equal) layouts — types must line up; names are cosmetic. Compatibility
// never reorders columns.
func (l *Layout) Compatible(other *Layout) bool {
	if other == nil || len(l.columns) != len(other.columns) {
		return false
	}
	for i, c := range l.columns {
		if c.Type != other.columns[i].Type {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of l.
func (l *Layout) Clone() *Layout {
	cp := &Layout{
		columns: append([]Column(nil), l.columns...),
		index:   make(map[string]int, len(l.index)),
	}
	for k, v := range l.index {
		cp.index[k] = v
	}
	return cp
}
