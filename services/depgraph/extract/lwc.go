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

	"github.com/AleutianAI/apexgraph/services/depgraph/graph"
)

// LWC extraction rules. Comments are blanked but string literals are
// preserved, since the module specifiers live inside them.
var (
	lwcApexImport = regexp.MustCompile(`import\s+(?:\{\s*)?(\w+)(?:\s*\})?\s+from\s+['"]@salesforce/apex/(\w+)\.(\w+)['"]`)

	lwcComponentImport = regexp.MustCompile(`import\s+(\w+)\s+from\s+['"]c/(\w+)['"]`)

	lwcSchemaImport = regexp.MustCompile(`import\s+\w+\s+from\s+['"]@salesforce/schema/(\w+)(?:\.\w+)?['"]`)

	lwcWireDecorator = regexp.MustCompile(`@wire\s*\(\s*(\w+)`)
)

// extractLWC analyzes an LWC JavaScript module.
//
// Apex method imports become imperative-apex edges; a later @wire of the
// same imported identifier upgrades to a wire edge against the class the
// import resolved to. Cross-component c/ imports become import edges and
// @salesforce/schema imports become schema references. Platform modules
// (lightning/*, lwc itself) carry no edges.
func extractLWC(content string) []Candidate {
	cleaned := cleanSource(content, false)
	r := newSiteResolver(content, cleaned)
	var out []Candidate

	// identifier -> (class, method) for wire resolution.
	type apexRef struct{ class, method string }
	imports := map[string]apexRef{}

	for _, m := range lwcApexImport.FindAllStringSubmatchIndex(cleaned, -1) {
		ident := cleaned[m[2]:m[3]]
		class := cleaned[m[4]:m[5]]
		method := cleaned[m[6]:m[7]]
		imports[ident] = apexRef{class: class, method: method}

		c := r.candidate(class, graph.LinkImperativeApex, m[0])
		c.TargetMethod = method
		out = append(out, c)
	}

	for _, m := range lwcComponentImport.FindAllStringSubmatchIndex(cleaned, -1) {
		out = append(out, r.candidate(cleaned[m[4]:m[5]], graph.LinkImport, m[0]))
	}

	for _, m := range lwcSchemaImport.FindAllStringSubmatchIndex(cleaned, -1) {
		out = append(out, r.candidate(cleaned[m[2]:m[3]], graph.LinkSchemaReference, m[0]))
	}

	for _, m := range lwcWireDecorator.FindAllStringSubmatchIndex(cleaned, -1) {
		adapter := cleaned[m[2]:m[3]]
		ref, ok := imports[adapter]
		if !ok {
			// Wire of a platform adapter (getRecord and friends),
			// not an Apex dependency.
			continue
		}
		c := r.candidate(ref.class, graph.LinkWire, m[0])
		c.TargetMethod = ref.method
		out = append(out, c)
	}

	return out
}
