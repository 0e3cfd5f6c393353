// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package githubapi

// ContentEntry is one item from the repository contents API. For a
// directory listing there is one entry per child; for a file lookup the
// API returns a single entry.
type ContentEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int    `json:"size"`
	Type        string `json:"type"` // "file", "dir", "symlink", "submodule"
	DownloadURL string `json:"download_url"`
	HTMLURL     string `json:"html_url"`
}

// IsFile reports whether the entry is a regular file.
func (e ContentEntry) IsFile() bool { return e.Type == "file" }

// IsDir reports whether the entry is a directory.
func (e ContentEntry) IsDir() bool { return e.Type == "dir" }

// TreeEntry is one item from the recursive git tree API.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "blob" or "tree"
	SHA  string `json:"sha"`
	Size int    `json:"size"`
}

// IsBlob reports whether the entry is a file blob.
func (e TreeEntry) IsBlob() bool { return e.Type == "blob" }

// treeResponse is the envelope of the git trees endpoint.
type treeResponse struct {
	SHA       string      `json:"sha"`
	Tree      []TreeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

// SearchHit is one item from the code search API.
type SearchHit struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	HTMLURL    string `json:"html_url"`
	Repository string `json:"-"` // owner/name, flattened from the nested object
}

// searchResponse is the envelope of the code search endpoint.
type searchResponse struct {
	TotalCount        int  `json:"total_count"`
	IncompleteResults bool `json:"incomplete_results"`
	Items             []struct {
		Name       string `json:"name"`
		Path       string `json:"path"`
		HTMLURL    string `json:"html_url"`
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
	} `json:"items"`
}
