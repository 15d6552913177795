package payload

import (
	"encoding/json"
	"strconv"
)

// CellKind identifies what a Cell holds.
type CellKind int

const (
	CellString CellKind = iota
	CellNumber
	CellBool
)

// Cell is one spreadsheet value. The zero Cell is the empty string.
type Cell struct {
	kind CellKind
	s    string
	n    json.Number
	b    bool
}

func StringCell(s string) Cell { return Cell{kind: CellString, s: s} }
func NumberCell(n json.Number) Cell { return Cell{kind: CellNumber, n: n} }
func IntCell(i int64) Cell { return NumberCell(json.Number(strconv.FormatInt(i, 10))) }
func BoolCell(b bool) Cell { return Cell{kind: CellBool, b: b} }

func (c Cell) Kind() CellKind { return c.kind }

// Interface returns the cell as string, json.Number or bool, ready for an
// API client that marshals [][]interface{}.
func (c Cell) Interface() any {
	switch c.kind {
	case CellNumber:
		return c.n
	case CellBool:
		return c.b
	default:
		return c.s
	}
}

func (c Cell) String() string {
	switch c.kind {
	case CellNumber:
		return c.n.String()
	case CellBool:
		return strconv.FormatBool(c.b)
	default:
		return c.s
	}
}

func (c Cell) MarshalJSON() ([]byte, error) {
	if c.kind == CellNumber {
		return []byte(c.n.String()), nil
	}
	return json.Marshal(c.Interface())
}

// cellOf sanitizes one parsed value into a cell. Null becomes "", nested
// containers become their JSON text.
func cellOf(v Value) Cell {
	switch v.kind {
	case KindNumber:
		return NumberCell(v.num)
	case KindBool:
		return BoolCell(v.b)
	case KindString:
		return StringCell(v.str)
	default:
		return StringCell(v.Text())
	}
}

// Row is an ordered sequence of cells.
type Row []Cell

// Table is the canonical 2-D payload handed to a sink.
type Table []Row

// Values converts the table into the [][]interface{} shape used by the
// Sheets API.
func (t Table) Values() [][]any {
	out := make([][]any, len(t))
	for i, row := range t {
		vals := make([]any, len(row))
		for j, c := range row {
			vals[j] = c.Interface()
		}
		out[i] = vals
	}
	return out
}

// Width returns the length of the widest row.
func (t Table) Width() int {
	w := 0
	for _, row := range t {
		w = max(w, len(row))
	}
	return w
}

// CellCount returns the total number of cells.
func (t Table) CellCount() int {
	n := 0
	for _, row := range t {
		n += len(row)
	}
	return n
}
