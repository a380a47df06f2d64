package parse

import (
	"strings"

	"github.com/kcaffrey/soy/ast"
)

// rawTextSegments splits a run of raw template text into per-line segments.
//
// Whitespace around line breaks is dropped here; the breaks themselves are
// recorded as Newline flags so the renderer can join lines with a single
// space.  Specifically:
//   - the first line keeps its leading whitespace (it continues the source
//     line of whatever came before), unless trimFirst says that line was
//     already ended by a comment.
//   - every other line has leading whitespace trimmed.
//   - every line except the last has trailing whitespace trimmed.
//   - a segment followed by a line break within the run gets Newline set.
//
// leadingBreak reports that a line break occurred before the first kept
// segment (or that the run is whitespace containing a line break), so the
// caller can flag the preceding node.
func rawTextSegments(run string, base ast.Pos, trimFirst bool) (segs []*ast.RawTextNode, leadingBreak bool) {
	var lines = strings.Split(run, "\n")
	var offset = 0
	var firstSegLine = -1
	for i, line := range lines {
		var lineLen = len(line)
		line = strings.TrimSuffix(line, "\r")
		var text = line
		var start = 0
		if i > 0 || trimFirst {
			var trimmed = strings.TrimLeft(text, " \t")
			start = len(text) - len(trimmed)
			text = trimmed
		}
		if i < len(lines)-1 {
			text = strings.TrimRight(text, " \t")
		}
		if text != "" {
			if firstSegLine == -1 {
				firstSegLine = i
			}
			segs = append(segs, &ast.RawTextNode{Pos: base + ast.Pos(offset+start), Text: text, Newline: i < len(lines)-1})
		}
		offset += lineLen + 1 // account for the split "\n"
	}
	leadingBreak = len(lines) > 1 && (firstSegLine == -1 || firstSegLine > 0)
	return segs, leadingBreak
}
