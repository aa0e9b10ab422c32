// Package callstack renders an allocation's captured frames as the
// canonical multi-line text stored alongside it in the allocs table.
package callstack

import (
	"strconv"
	"strings"

	"github.com/allocsnap/allocsnap/internal/model"
)

// Format renders frames as "(i) filename:line:name" lines joined by "\n",
// zero-indexed. An empty frame list formats to the empty string.
func Format(frames []model.Frame) string {
	if len(frames) == 0 {
		return ""
	}

	var b strings.Builder
	for i, f := range frames {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteByte('(')
		b.WriteString(strconv.Itoa(i))
		b.WriteString(") ")
		b.WriteString(f.Filename)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(f.Line))
		b.WriteByte(':')
		b.WriteString(f.Name)
	}
	return b.String()
}
