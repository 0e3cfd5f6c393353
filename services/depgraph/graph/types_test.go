// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkType_Strength(t *testing.T) {
	assert.Equal(t, 9, LinkExtends.Strength())
	assert.Equal(t, 7, LinkMethodCall.Strength())
	assert.Equal(t, 3, LinkReferences.Strength())
	assert.Equal(t, 0, LinkType("bogus").Strength())

	assert.True(t, LinkWire.Valid())
	assert.False(t, LinkType("bogus").Valid())
}

func TestNodeID(t *testing.T) {
	assert.Equal(t, "acme/crm:src/classes/Foo.cls", NodeID("acme/crm", "src/classes/Foo.cls"))
	assert.Equal(t, "acme/crm:src/classes/Foo.cls", NodeID("acme/crm", "/src/classes/Foo.cls"))
}

func TestGraph_AddNode_PlaceholderUpgrade(t *testing.T) {
	g := New()

	g.AddNode(&Node{ID: "acme/crm:src/classes/Foo.cls", Name: "Foo", Placeholder: true})
	stored := g.AddNode(&Node{
		ID:   "acme/crm:src/classes/Foo.cls",
		Name: "Foo",
		Repo: "acme/crm",
		Path: "src/classes/Foo.cls",
		Type: NodeTypeApex,
	})

	assert.False(t, stored.Placeholder, "real insert upgrades the placeholder")
	assert.Equal(t, NodeTypeApex, stored.Type)
	assert.Equal(t, 1, g.NodeCount())
}

func TestGraph_AddNode_ExistingWins(t *testing.T) {
	g := New()

	first := g.AddNode(&Node{ID: "a:b", Name: "B", URL: "https://example.test/b"})
	second := g.AddNode(&Node{ID: "a:b", Name: "B"})

	assert.Same(t, first, second)
	assert.Equal(t, "https://example.test/b", second.URL)
}

func TestGraph_AddLink_HigherStrengthWins(t *testing.T) {
	g := New()
	g.AddNode(&Node{ID: "a:x"})
	g.AddNode(&Node{ID: "a:y"})

	assert.True(t, g.AddLink(Link{Source: "a:x", Target: "a:y", Type: LinkReferences, Strength: 3}))
	assert.True(t, g.AddLink(Link{Source: "a:x", Target: "a:y", Type: LinkReferences, Strength: 5, Line: 7}))
	assert.False(t, g.AddLink(Link{Source: "a:x", Target: "a:y", Type: LinkReferences, Strength: 2}))

	links := g.Links()
	require.Len(t, links, 1)
	assert.Equal(t, 5, links[0].Strength)
	assert.Equal(t, 7, links[0].Line)

	// A different type between the same endpoints is a distinct link.
	g.AddLink(Link{Source: "a:x", Target: "a:y", Type: LinkMethodCall, Strength: 7})
	assert.Equal(t, 2, g.LinkCount())
}

func TestGraph_Validate(t *testing.T) {
	g := New()
	g.AddNode(&Node{ID: "a:x"})
	g.AddLink(Link{Source: "a:x", Target: "a:missing", Type: LinkReferences, Strength: 3})

	err := g.Validate()
	assert.ErrorIs(t, err, ErrDanglingLink)

	g.AddNode(&Node{ID: "a:missing", Placeholder: true})
	assert.NoError(t, g.Validate())
}

func TestGraph_Finalize(t *testing.T) {
	g := New()
	g.AddNode(&Node{ID: "acme/crm:a", Repo: "acme/crm"})
	g.AddNode(&Node{ID: "acme/billing:b", Repo: "acme/billing"})
	g.AddLink(Link{Source: "acme/crm:a", Target: "acme/billing:b", Type: LinkMethodCall, Strength: 7})
	g.MarkCrossRepo("acme/crm:a", "acme/billing:b", LinkMethodCall)

	res := g.Finalize()
	assert.Equal(t, 2, res.Metadata.NodeCount)
	assert.Equal(t, 1, res.Metadata.LinkCount)
	assert.Equal(t, 1, res.Metadata.CrossRepoLinkCount)
	require.Len(t, res.Links, 1)
	assert.True(t, res.Links[0].CrossRepo)
}
