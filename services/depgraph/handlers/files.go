// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/glob"

	"github.com/AleutianAI/apexgraph/services/depgraph/catalog"
	"github.com/AleutianAI/apexgraph/services/depgraph/datatypes"
	"github.com/AleutianAI/apexgraph/services/depgraph/githubapi"
)

// TreeLister lists a repository's full file tree.
type TreeLister interface {
	ListTree(ctx context.Context, repo string) ([]githubapi.TreeEntry, error)
}

// ListFiles handles GET /v1/depgraph/repos/:owner/:repo/files.
//
// Only Salesforce source files (Apex classes, triggers, LWC modules)
// are returned. The optional include and exclude query parameters are
// glob patterns matched against the full path, with '/' as the
// separator so '*' does not cross directory levels.
func ListFiles(src TreeLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		repo := c.Param("owner") + "/" + c.Param("repo")

		include, err := compileGlob(c.Query("include"))
		if err != nil {
			c.JSON(http.StatusBadRequest,
				datatypes.ErrorResponse{Error: "invalid include pattern"})
			return
		}
		exclude, err := compileGlob(c.Query("exclude"))
		if err != nil {
			c.JSON(http.StatusBadRequest,
				datatypes.ErrorResponse{Error: "invalid exclude pattern"})
			return
		}

		entries, err := src.ListTree(c.Request.Context(), repo)
		if err != nil {
			status, msg := statusForError(err)
			if status == http.StatusNotFound {
				msg = "repository not found"
			}
			slog.Error("file listing failed", "repo", repo, "error", err)
			c.JSON(status, datatypes.ErrorResponse{Error: msg})
			return
		}

		files := make([]datatypes.FileEntry, 0)
		for _, e := range entries {
			if !e.IsBlob() || !catalog.IsSalesforceSource(e.Path) {
				continue
			}
			if include != nil && !include.Match(e.Path) {
				continue
			}
			if exclude != nil && exclude.Match(e.Path) {
				continue
			}
			base := path.Base(e.Path)
			files = append(files, datatypes.FileEntry{
				Path: e.Path,
				Name: strings.TrimSuffix(base, path.Ext(base)),
				Type: string(catalog.InferNodeType(e.Path, "")),
				Size: e.Size,
			})
		}
		c.JSON(http.StatusOK, datatypes.FileListResponse{
			Repository: repo,
			Count:      len(files),
			Files:      files,
		})
	}
}

func compileGlob(pattern string) (glob.Glob, error) {
	if pattern == "" {
		return nil, nil
	}
	return glob.Compile(pattern, '/')
}
