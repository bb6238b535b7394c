package bcsv

import "github.com/webertob/bcsv-go/internal/format"

func layoutToColumnDescs(layout *Layout) []format.ColumnDesc {
	n := layout.ColumnCount()
	out := make([]format.ColumnDesc, n)
	for i := 0; i < n; i++ {
		out[i] = format.ColumnDesc{Name: layout.Name(i), Type: uint8(layout.Type(i))}
	}
	return out
}

func layoutFromColumnDescs(cols []format.ColumnDesc) (*Layout, error) {
	layout := &Layout{index: make(map[string]int, len(cols))}
	for _, c := range cols {
		t := ColumnType(c.Type)
		if !t.IsValid() {
			return nil, newErr(KindFormat, "layout: invalid column type %d for column %q", c.Type, c.Name)
		}
		if err := layout.AddColumn(c.Name, t); err != nil {
			return nil, wrapErr(KindFormat, err, "layout: decode stored columns")
		}
	}
	return layout, nil
}
