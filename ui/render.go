package ui

import (
	"fmt"
	"strings"

	"github.com/specrun/specrun/spectree"
)

// RenderSuiteTree renders every Suite/Spec reachable from root, in
// declaration order, as an indented tree — used by the list reporter's
// final recap.
func RenderSuiteTree(tree *spectree.Tree, root spectree.SuiteIndex) string {
	var b strings.Builder
	renderSuite(&b, tree, root, 0, nil)
	return b.String()
}

func renderSuite(b *strings.Builder, tree *spectree.Tree, si spectree.SuiteIndex, depth int, parentIsLast []bool) {
	suite := tree.Suite(si)
	if depth > 0 {
		prefix := BuildTreePrefix(depth, isLastAmong(parentIsLast), parentIsLast)
		title := suite.Title
		if suite.Skipped {
			title += " (skipped)"
		}
		fmt.Fprintf(b, "%s%s\n", prefix, title)
	}

	childCount := len(suite.Children) + len(suite.Specs)
	i := 0
	for _, child := range suite.Children {
		last := i == childCount-1
		renderSuite(b, tree, child, depth+1, append(parentIsLast, last))
		i++
	}
	for _, sp := range suite.Specs {
		last := i == childCount-1
		renderSpec(b, tree, sp, depth+1, append(parentIsLast, last))
		i++
	}
}

func renderSpec(b *strings.Builder, tree *spectree.Tree, spi spectree.SpecIndex, depth int, parentIsLast []bool) {
	spec := tree.Spec(spi)
	prefix := BuildTreePrefix(depth, isLastAmong(parentIsLast), parentIsLast)
	title := spec.Title
	if spec.Skipped {
		title += " (skipped)"
	}
	if spec.Focused {
		title += " (only)"
	}
	fmt.Fprintf(b, "%s%s\n", prefix, title)
}

func isLastAmong(parentIsLast []bool) bool {
	if len(parentIsLast) == 0 {
		return true
	}
	return parentIsLast[len(parentIsLast)-1]
}
