package remotefile

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/imamik/calcifer/internal/inventory"
)

// EnsureLine makes sure line is present in path. With a matchPattern, the
// first line matching it is replaced by line, or line is appended when
// nothing matches. Without one, line is appended unless an identical line
// already exists. The result always ends with a newline.
func (m *Mutator) EnsureLine(ctx context.Context, host *inventory.Host, p, line, matchPattern string, opts ...WriteOption) WriteResult {
	content := m.ReadFile(ctx, host, p)

	updated, err := ensureLine(content, line, matchPattern)
	if err != nil {
		return WriteResult{Message: err.Error()}
	}
	if updated == content {
		return WriteResult{Succeeded: true, Message: "Line already present"}
	}
	return m.WriteFile(ctx, host, p, updated, opts...)
}

func ensureLine(content, line, matchPattern string) (string, error) {
	lines := splitLines(content)

	if matchPattern == "" {
		if slices.Contains(lines, line) {
			return content, nil
		}
		return joinLines(append(lines, line)), nil
	}

	re, err := regexp.Compile(matchPattern)
	if err != nil {
		return "", fmt.Errorf("invalid match pattern %q: %w", matchPattern, err)
	}
	for i, l := range lines {
		if re.MatchString(l) {
			lines[i] = line
			return joinLines(lines), nil
		}
	}
	return joinLines(append(lines, line)), nil
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n") + "\n"
}
