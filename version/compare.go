package version

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Compare performs a semantic comparison between two version strings.
// Returns 1 if a > b, -1 if a < b, and 0 if equal. A missing minor or patch number counts as zero.
func Compare(a, b string) (int, error) {
	type version struct {
		major, minor, patch int
	}

	parse := func(s string) (version, error) {
		var v version
		parts := strings.SplitN(strings.TrimPrefix(strings.TrimSpace(s), "v"), ".", 3)
		targets := []*int{&v.major, &v.minor, &v.patch}
		for i, part := range parts {
			if _, err := fmt.Sscanf(part, "%d", targets[i]); err != nil {
				return v, fmt.Errorf("invalid version %q: %w", s, err)
			}
		}
		return v, nil
	}

	av, err := parse(a)
	if err != nil {
		return 0, err
	}

	bv, err := parse(b)
	if err != nil {
		return 0, err
	}

	for _, pair := range []lo.Tuple2[int, int]{
		{A: av.major, B: bv.major},
		{A: av.minor, B: bv.minor},
		{A: av.patch, B: bv.patch},
	} {
		if pair.A > pair.B {
			return 1, nil
		}

		if pair.A < pair.B {
			return -1, nil
		}
	}

	return 0, nil
}

// AtLeast reports whether the running version satisfies min.
func AtLeast(current, min string) (bool, error) {
	cmp, err := Compare(current, min)
	if err != nil {
		return false, err
	}
	return cmp >= 0, nil
}
