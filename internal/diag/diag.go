package diag

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

type Item struct {
	Filename string
	Line     int
	Col      int
	Msg      string
}

type Bag struct {
	Items []Item
}

func (b *Bag) Add(filename string, line int, col int, msg string) {
	b.Items = append(b.Items, Item{Filename: filename, Line: line, Col: col, Msg: msg})
}

func (b *Bag) Empty() bool {
	return b == nil || len(b.Items) == 0
}

// Err collapses the bag into a single error, or nil when empty. Used by
// callers that propagate one failure instead of printing the whole bag.
func (b *Bag) Err() error {
	if b.Empty() {
		return nil
	}
	var sb strings.Builder
	for i, it := range b.Items {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s:%d:%d: %s", it.Filename, it.Line, it.Col, it.Msg)
	}
	return fmt.Errorf("%s", sb.String())
}

func Print(w io.Writer, b *Bag) {
	if b.Empty() {
		return
	}
	items := make([]Item, 0, len(b.Items))
	items = append(items, b.Items...)
	sort.Slice(items, func(i, j int) bool {
		if items[i].Filename != items[j].Filename {
			return items[i].Filename < items[j].Filename
		}
		if items[i].Line != items[j].Line {
			return items[i].Line < items[j].Line
		}
		return items[i].Col < items[j].Col
	})
	for _, it := range items {
		fmt.Fprintf(w, "%s:%d:%d: error: %s\n", it.Filename, it.Line, it.Col, it.Msg)
	}
}
