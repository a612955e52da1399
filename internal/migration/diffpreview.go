package migration

import (
	"fmt"
	"os"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"legacymod/internal/plan"
	"legacymod/internal/template"
)

// previewBlock renders a unified-diff preview for a dry-run FILE_OPERATION
// "create" or TEMPLATE_GENERATION block, so --dry-run shows exactly what
// would change on disk rather than just the block's one-line Describe().
// Any other block kind, or a block whose path/content can't be rendered,
// falls through to the caller's existing Describe() message.
func previewBlock(b *plan.Block, scope *template.Scope) (string, bool) {
	var path, newContent string
	switch b.Kind {
	case plan.BlockFileOperation:
		if b.Operation != "create" {
			return "", false
		}
		p, err := template.Render(b.Path, scope)
		if err != nil {
			return "", false
		}
		c, err := template.Render(b.Content, scope)
		if err != nil {
			return "", false
		}
		path, newContent = p, c
	case plan.BlockTemplateGeneration:
		p, err := template.Render(b.Path, scope)
		if err != nil {
			return "", false
		}
		c, err := template.Render(b.Template, scope)
		if err != nil {
			return "", false
		}
		path, newContent = p, c
	default:
		return "", false
	}

	rendered, err := renderUnifiedDiff(path, newContent)
	if err != nil {
		return "", false
	}
	return rendered, true
}

// renderUnifiedDiff builds a line-granular unified diff of path's
// current on-disk content (empty if it doesn't exist yet) against
// newContent and renders it through go-diff's FileDiff printer.
// Unlike a minimal Myers diff, every old line is removed and every new
// line added in a single hunk; this is sufficient for a dry-run preview
// and keeps the preview deterministic.
func renderUnifiedDiff(path, newContent string) (string, error) {
	var oldLines []string
	if existing, err := os.ReadFile(path); err == nil {
		oldLines = strings.Split(string(existing), "\n")
	}
	newLines := strings.Split(newContent, "\n")

	var body strings.Builder
	for _, l := range oldLines {
		fmt.Fprintf(&body, "-%s\n", l)
	}
	for _, l := range newLines {
		fmt.Fprintf(&body, "+%s\n", l)
	}

	fd := &diff.FileDiff{
		OrigName: path,
		NewName:  path,
		Hunks: []*diff.Hunk{{
			OrigStartLine: 1,
			OrigLines:     int32(len(oldLines)),
			NewStartLine:  1,
			NewLines:      int32(len(newLines)),
			Body:          []byte(body.String()),
		}},
	}

	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
