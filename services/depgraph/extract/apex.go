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

// Apex extraction rules. All regexes run over comment- and
// string-blanked content so offsets map onto the original text.
var (
	apexExtends    = regexp.MustCompile(`\b(?:class|interface)\s+\w+\s+extends\s+([\w.]+)`)
	apexImplements = regexp.MustCompile(`\bclass\s+\w+(?:\s+extends\s+[\w.<>]+)?\s+implements\s+([^{]+)`)

	apexTriggerDecl    = regexp.MustCompile(`\btrigger\s+\w+\s+on\s+(\w+)`)
	apexTriggerContext = regexp.MustCompile(`\bTrigger\.(?:newMap|oldMap|new|old|isInsert|isUpdate|isDelete|isUndelete|isBefore|isAfter|isExecuting|operationType|size)\b`)

	apexDatabaseOp = regexp.MustCompile(`\bDatabase\.(\w+)\s*\(`)

	apexSchemaSObjectType = regexp.MustCompile(`\bSchema\.SObjectType\.(\w+)`)
	apexSchemaDescribe    = regexp.MustCompile(`\bSchema\.(?:getGlobalDescribe|describeSObjects)\s*\(`)
	apexSObjectTypeRef    = regexp.MustCompile(`\b([A-Z]\w*)\.SObjectType\b`)

	apexSOQL = regexp.MustCompile(`(?is)\[\s*select\b[^\]]*?\bfrom\s+(\w+)`)

	apexCustomSettings = regexp.MustCompile(`\b(\w+__c)\.(?:getInstance|getOrgDefaults|getValues|getAll)\s*\(`)

	apexMethodCall = regexp.MustCompile(`\b([A-Z]\w*)\.([a-zA-Z]\w*)\s*\(`)

	apexStaticFieldRef = regexp.MustCompile(`\b([A-Z]\w*)\.([A-Z][A-Z0-9_]*)\b`)

	// Generic type-position references: constructions, parameter and
	// return types, casts, generic arguments.
	apexNewExpr    = regexp.MustCompile(`\bnew\s+([A-Z]\w*)\s*\(`)
	apexParamType  = regexp.MustCompile(`[(,]\s*([A-Z]\w*)\s+\w+\s*[,)]`)
	apexReturnType = regexp.MustCompile(`\b(?:public|private|protected|global)\s+(?:static\s+|override\s+|virtual\s+)?([A-Z]\w*)\s+\w+\s*\(`)
	apexGenericArg = regexp.MustCompile(`<([^<>]+)>`)
	apexCast       = regexp.MustCompile(`\(([A-Z]\w*)\)\s*[\w(]`)
)

func extractApex(content string) []Candidate {
	cleaned := cleanSource(content, true)
	r := newSiteResolver(content, cleaned)
	var out []Candidate

	// Inheritance.
	for _, m := range apexExtends.FindAllStringSubmatchIndex(cleaned, -1) {
		target := cleaned[m[2]:m[3]]
		if usableClassRef(target) {
			out = append(out, r.candidate(target, graph.LinkExtends, m[2]))
		}
	}
	for _, m := range apexImplements.FindAllStringSubmatchIndex(cleaned, -1) {
		list := cleaned[m[2]:m[3]]
		for _, iface := range splitTypeList(list) {
			if usableClassRef(iface) {
				out = append(out, r.candidate(iface, graph.LinkImplements, m[2]))
			}
		}
	}

	// Trigger declarations reference their SObject; context variables
	// reference the Trigger platform class.
	for _, m := range apexTriggerDecl.FindAllStringSubmatchIndex(cleaned, -1) {
		target := cleaned[m[2]:m[3]]
		if !IsSystemClass(target) {
			out = append(out, r.candidate(target, graph.LinkReferences, m[2]))
		}
	}
	for _, m := range apexTriggerContext.FindAllStringIndex(cleaned, -1) {
		out = append(out, r.candidate("Trigger", graph.LinkTriggerContext, m[0]))
	}

	// Database DML and query operations.
	for _, m := range apexDatabaseOp.FindAllStringSubmatchIndex(cleaned, -1) {
		c := r.candidate("Database", graph.LinkDatabaseOperation, m[0])
		c.TargetMethod = cleaned[m[2]:m[3]]
		out = append(out, c)
	}

	// Schema describes.
	for _, m := range apexSchemaSObjectType.FindAllStringSubmatchIndex(cleaned, -1) {
		out = append(out, r.candidate(cleaned[m[2]:m[3]], graph.LinkSchemaReference, m[2]))
	}
	for _, m := range apexSchemaDescribe.FindAllStringIndex(cleaned, -1) {
		out = append(out, r.candidate("Schema", graph.LinkSchemaReference, m[0]))
	}
	for _, m := range apexSObjectTypeRef.FindAllStringSubmatchIndex(cleaned, -1) {
		target := cleaned[m[2]:m[3]]
		if !IsSystemClass(target) {
			out = append(out, r.candidate(target, graph.LinkSchemaReference, m[2]))
		}
	}

	// SOQL FROM clauses. Bracket literals survive cleaning because
	// Apex SOQL is not a string.
	for _, m := range apexSOQL.FindAllStringSubmatchIndex(cleaned, -1) {
		out = append(out, r.candidate(cleaned[m[2]:m[3]], graph.LinkSOQLQuery, m[2]))
	}

	// Custom settings accessors, before the generic method-call rule
	// can misfile them.
	customSettings := map[int]bool{}
	for _, m := range apexCustomSettings.FindAllStringSubmatchIndex(cleaned, -1) {
		customSettings[m[0]] = true
		out = append(out, r.candidate(cleaned[m[2]:m[3]], graph.LinkCustomSettings, m[2]))
	}

	// Static method calls: Class.method(...).
	for _, m := range apexMethodCall.FindAllStringSubmatchIndex(cleaned, -1) {
		if customSettings[m[0]] {
			continue
		}
		class := cleaned[m[2]:m[3]]
		method := cleaned[m[4]:m[5]]
		switch {
		case class == "Database", class == "Schema":
			// Dedicated rules above.
		case IsSystemClass(class):
			if systemMethodClasses[class] {
				c := r.candidate(class, graph.LinkSystemMethod, m[0])
				c.TargetMethod = method
				out = append(out, c)
			}
		default:
			c := r.candidate(class, graph.LinkMethodCall, m[0])
			c.TargetMethod = method
			out = append(out, c)
		}
	}

	// Static field and constant references: Class.CONSTANT not followed
	// by a call. RE2 has no lookahead, so the paren check is manual.
	for _, m := range apexStaticFieldRef.FindAllStringSubmatchIndex(cleaned, -1) {
		if nextNonSpace(cleaned, m[1]) == '(' {
			continue
		}
		class := cleaned[m[2]:m[3]]
		if usableClassRef(class) {
			out = append(out, r.candidate(class, graph.LinkFieldReference, m[2]))
		}
	}

	// Generic type-position references.
	for _, re := range []*regexp.Regexp{apexNewExpr, apexParamType, apexReturnType, apexCast} {
		for _, m := range re.FindAllStringSubmatchIndex(cleaned, -1) {
			target := cleaned[m[2]:m[3]]
			if usableClassRef(target) {
				out = append(out, r.candidate(target, graph.LinkReferences, m[2]))
			}
		}
	}

	// Generic type arguments: the innermost <...> list, split on commas
	// so Map<Id, Account> yields both positions.
	for _, m := range apexGenericArg.FindAllStringSubmatchIndex(cleaned, -1) {
		for _, arg := range splitTypeList(cleaned[m[2]:m[3]]) {
			if isClassName(arg) && usableClassRef(arg) {
				out = append(out, r.candidate(arg, graph.LinkReferences, m[2]))
			}
		}
	}

	return out
}

// isClassName reports whether s looks like a bare Apex type name.
// Guards the generic-argument rule against comparison expressions that
// happen to sit between angle brackets.
func isClassName(s string) bool {
	if s == "" || s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c != '_' && (c < '0' || c > '9') && (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}

// usableClassRef filters targets for inheritance/reference rules:
// platform classes and dotted names carry no graph edge here.
func usableClassRef(name string) bool {
	if name == "" || strings.Contains(name, ".") {
		return false
	}
	return !IsSystemClass(name)
}

// splitTypeList splits "A, B<Account>, C" into bare type names.
func splitTypeList(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		name := strings.TrimSpace(p)
		if i := strings.IndexAny(name, "<{ \t"); i > 0 {
			name = name[:i]
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func nextNonSpace(s string, pos int) byte {
	for i := pos; i < len(s); i++ {
		if s[i] != ' ' && s[i] != '\t' {
			return s[i]
		}
	}
	return 0
}

// Apex class metadata, extracted once per node for the graph.

var (
	apexClassDecl    = regexp.MustCompile(`\b(?:(abstract|virtual)\s+)?(?:with\s+sharing\s+|without\s+sharing\s+|inherited\s+sharing\s+)?class\s+(\w+)`)
	apexPropertyDecl = regexp.MustCompile(`(?m)^\s*(?:public|private|protected|global)\s+(?:static\s+|final\s+)*[\w.<>,\s\[\]]+?\s(\w+)\s*(?:;|=|\{\s*get)`)
)

// Metadata summarizes an Apex class body.
type Metadata struct {
	Name       string
	Methods    []string
	Properties []string
	Interfaces []string
	IsAbstract bool
}

// ApexMetadata extracts class name, method and property names,
// implemented interfaces, and the abstract/virtual flag.
func ApexMetadata(content string) Metadata {
	cleaned := cleanSource(content, true)
	var meta Metadata

	if m := apexClassDecl.FindStringSubmatch(cleaned); m != nil {
		meta.IsAbstract = m[1] != ""
		meta.Name = m[2]
	}
	if m := apexImplements.FindStringSubmatch(cleaned); m != nil {
		for _, iface := range splitTypeList(m[1]) {
			if !strings.Contains(iface, ".") {
				meta.Interfaces = append(meta.Interfaces, iface)
			}
		}
	}

	seen := map[string]bool{}
	for _, line := range strings.Split(cleaned, "\n") {
		if m := methodDecl.FindStringSubmatch(line); m != nil && !seen[m[1]] && m[1] != meta.Name {
			seen[m[1]] = true
			meta.Methods = append(meta.Methods, m[1])
		}
	}

	seenProp := map[string]bool{}
	for _, m := range apexPropertyDecl.FindAllStringSubmatch(cleaned, -1) {
		if !seenProp[m[1]] && !seen[m[1]] {
			seenProp[m[1]] = true
			meta.Properties = append(meta.Properties, m[1])
		}
	}
	return meta
}
