// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"regexp"
	"strings"
)

// cleanSource blanks comment and (optionally) string-literal spans with
// spaces, preserving byte offsets so positions in the cleaned text map
// 1:1 onto the original. Extraction regexes run over the cleaned text,
// which is what keeps `// calls OldClass.doThing()` from producing an
// edge.
//
// This is a best-effort single-line scanner: block comments are only
// recognized when they open and close on the same line, and escape
// handling covers the common \' and \" cases only. It is an
// explainability aid, not a parser.
func cleanSource(content string, blankStrings bool) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = cleanLine(line, blankStrings)
	}
	return strings.Join(lines, "\n")
}

func cleanLine(line string, blankStrings bool) string {
	out := []byte(line)
	var inString byte // active quote char, 0 when outside a literal

	for i := 0; i < len(out); i++ {
		c := out[i]

		if inString != 0 {
			if c == '\\' && i+1 < len(out) {
				out[i] = ' '
				out[i+1] = ' '
				i++
				continue
			}
			if c == inString {
				inString = 0
			}
			out[i] = ' '
			continue
		}

		switch c {
		case '\'', '"', '`':
			if blankStrings {
				inString = c
				out[i] = ' '
			}
		case '/':
			if i+1 < len(out) && out[i+1] == '/' {
				for j := i; j < len(out); j++ {
					out[j] = ' '
				}
				return string(out)
			}
			if i+1 < len(out) && out[i+1] == '*' {
				// Same-line block comment only.
				end := strings.Index(string(out[i+2:]), "*/")
				if end >= 0 {
					for j := i; j < i+2+end+2; j++ {
						out[j] = ' '
					}
					i = i + 2 + end + 1
				}
			}
		}
	}
	return string(out)
}

// lineOffsets returns the byte offset of the start of each line.
func lineOffsets(content string) []int {
	offsets := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// lineAt returns the 1-based line number containing byte offset pos.
func lineAt(offsets []int, pos int) int {
	lo, hi := 0, len(offsets)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if offsets[mid] <= pos {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}

// contextLines returns the trimmed-right source lines around the 1-based
// line number, two on each side.
func contextLines(lines []string, line int) []string {
	start := line - 3
	if start < 0 {
		start = 0
	}
	end := line + 2
	if end > len(lines) {
		end = len(lines)
	}
	out := make([]string, 0, end-start)
	for _, l := range lines[start:end] {
		out = append(out, strings.TrimRight(l, " \t\r"))
	}
	return out
}

// methodDecl matches an Apex method signature at class-body depth.
var methodDecl = regexp.MustCompile(`^\s*(?:@\w+\s+)?(?:(?:public|private|protected|global|static|override|virtual|abstract|testMethod|webservice)\s+)+[\w.<>,\s\[\]]+?\s+(\w+)\s*\(`)

// enclosingMethods maps each 0-based line index to the name of the Apex
// method whose body contains it, using a brace-matched boundary scan
// over the cleaned source. File- and class-level lines map to "".
func enclosingMethods(cleaned string) []string {
	lines := strings.Split(cleaned, "\n")
	out := make([]string, len(lines))

	depth := 0
	current := ""
	methodDepth := -1

	for i, line := range lines {
		if current == "" && depth >= 1 && methodDecl.MatchString(line) {
			if m := methodDecl.FindStringSubmatch(line); m != nil {
				current = m[1]
				methodDepth = depth
			}
		}
		out[i] = current

		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if current != "" && depth <= methodDepth {
			current = ""
			methodDepth = -1
		}
	}
	return out
}
