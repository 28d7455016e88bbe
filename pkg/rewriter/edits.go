package rewriter

import (
	"bytes"
	"sort"
)

// edit replaces source[start:end] with text; start == end is an insertion.
type edit struct {
	start, end uint
	text       string
}

// editSet collects edits against one immutable source buffer.
type editSet struct {
	edits []edit
}

func (s *editSet) insert(at uint, text string) {
	s.replace(at, at, text)
}

func (s *editSet) replace(start, end uint, text string) {
	s.edits = append(s.edits, edit{start: start, end: end, text: text})
}

func (s *editSet) len() int {
	return len(s.edits)
}

// apply returns a copy of source with the edits applied in offset order.
// Insertions at the same offset keep the order they were recorded in. An
// edit that overlaps text already replaced is dropped and counted.
func (s *editSet) apply(source []byte) ([]byte, int) {
	if len(s.edits) == 0 {
		out := make([]byte, len(source))
		copy(out, source)
		return out, 0
	}

	sorted := make([]edit, len(s.edits))
	copy(sorted, s.edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].start < sorted[j].start
	})

	var out bytes.Buffer
	grow := 0
	for _, e := range sorted {
		grow += len(e.text)
	}
	out.Grow(len(source) + grow)

	cursor := uint(0)
	dropped := 0
	for _, e := range sorted {
		if e.start < cursor || e.end > uint(len(source)) || e.end < e.start {
			dropped++
			continue
		}
		out.Write(source[cursor:e.start])
		out.WriteString(e.text)
		cursor = e.end
	}
	out.Write(source[cursor:])

	return out.Bytes(), dropped
}
