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

	"github.com/AleutianAI/apexgraph/services/depgraph/graph"
)

// ClassifyReference reports whether content references the named class
// outside comments and string literals, and classifies the strongest
// such reference by its line context: extends beats implements beats a
// qualified method call beats a bare mention.
//
// The reverse dependents scan runs this over every Salesforce file; the
// returned candidate carries the line and snippet of the winning site.
func ClassifyReference(content, name string) (Candidate, bool) {
	if name == "" {
		return Candidate{}, false
	}
	quoted := regexp.QuoteMeta(name)
	word := regexp.MustCompile(`\b` + quoted + `\b`)
	decl := regexp.MustCompile(`\b(?:class|trigger|interface)\s+` + quoted + `\b`)
	extends := regexp.MustCompile(`\bextends\s+` + quoted + `\b`)
	implements := regexp.MustCompile(`\bimplements\s+[^{]*\b` + quoted + `\b`)
	call := regexp.MustCompile(`\b` + quoted + `\.[a-zA-Z]\w*\s*\(`)

	cleaned := strings.Split(cleanSource(content, true), "\n")
	orig := strings.Split(content, "\n")

	var best Candidate
	found := false
	for i, line := range cleaned {
		if !word.MatchString(line) {
			continue
		}
		// A file declaring the name is the class itself (or a
		// same-named twin), not a dependent.
		if decl.MatchString(line) {
			continue
		}

		typ := graph.LinkReferences
		switch {
		case extends.MatchString(line):
			typ = graph.LinkExtends
		case implements.MatchString(line):
			typ = graph.LinkImplements
		case call.MatchString(line):
			typ = graph.LinkMethodCall
		}

		if !found || typ.Strength() > best.Strength {
			best = Candidate{
				TargetClass: name,
				Type:        typ,
				Strength:    typ.Strength(),
				Line:        i + 1,
				CodeSnippet: strings.TrimSpace(orig[i]),
				Context:     contextLines(orig, i+1),
			}
			found = true
		}
	}
	return best, found
}
