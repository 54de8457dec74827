package assets

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ungrouped collects images whose names carry no category prefix
const ungrouped = "misc"

// Groups maps a category to the sorted image names in it
type Groups map[string][]string

// BuildGroups writes groups.json, grouping extracted images by the prefix
// before the first underscore of their name
func (t *Toolkit) BuildGroups(ctx context.Context) (bool, error) {
	return done(t.buildGroups(ctx))
}

func (t *Toolkit) buildGroups(ctx context.Context) error {
	names, err := listFiles(t.imagesDir(), ".png")
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	groups := GroupNames(names)
	if err := writeJSON(t.groupsFile(), groups); err != nil {
		return fmt.Errorf("write groups: %w", err)
	}

	t.logger.Info("groups built",
		zap.Int("groups", len(groups)),
		zap.Int("images", len(names)))
	return nil
}

// GroupNames groups file names by category prefix
func GroupNames(names []string) Groups {
	groups := make(Groups)
	for _, name := range names {
		base := baseName(name)
		category := ungrouped
		if i := strings.IndexByte(base, '_'); i > 0 {
			category = base[:i]
		}
		groups[category] = append(groups[category], base)
	}
	for _, members := range groups {
		sort.Strings(members)
	}
	return groups
}
