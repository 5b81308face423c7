package remotefile

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureLineContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		line    string
		pattern string
		want    string
	}{
		{
			name:    "append to empty",
			content: "",
			line:    "127.0.0.1 localhost",
			want:    "127.0.0.1 localhost\n",
		},
		{
			name:    "exact line present",
			content: "a\n127.0.0.1 localhost\nb\n",
			line:    "127.0.0.1 localhost",
			want:    "a\n127.0.0.1 localhost\nb\n",
		},
		{
			name:    "append adds trailing newline",
			content: "a",
			line:    "b",
			want:    "a\nb\n",
		},
		{
			name:    "pattern replaces first match only",
			content: "127.0.1.1 old-a\n127.0.1.1 old-b\n",
			line:    "127.0.1.1 cp-1",
			pattern: `^127\.0\.1\.1\s+`,
			want:    "127.0.1.1 cp-1\n127.0.1.1 old-b\n",
		},
		{
			name:    "pattern without match appends",
			content: "127.0.0.1 localhost\n",
			line:    "127.0.1.1 cp-1",
			pattern: `^127\.0\.1\.1\s+`,
			want:    "127.0.0.1 localhost\n127.0.1.1 cp-1\n",
		},
		{
			name:    "systemd cgroup toggle",
			content: "[plugins]\n            SystemdCgroup = false\n",
			line:    "            SystemdCgroup = true",
			pattern: `\s*SystemdCgroup\s*=\s*false`,
			want:    "[plugins]\n            SystemdCgroup = true\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ensureLine(tt.content, tt.line, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnsureLineContent_InvalidPattern(t *testing.T) {
	t.Parallel()
	_, err := ensureLine("", "x", "(")
	assert.ErrorContains(t, err, "invalid match pattern")
}

func TestEnsureLine(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	target := f.path("hosts")
	require.NoError(t, os.WriteFile(target, []byte("127.0.0.1 localhost\n"), 0o644))

	res := f.mutator.EnsureLine(ctx, f.host, target, "127.0.1.1 cp-1", `^127\.0\.1\.1\s+`, WithOwner(f.owner))
	require.True(t, res.Succeeded, res.Message)
	assert.True(t, res.Changed)
	assert.NotEmpty(t, res.BackupPath)
	assert.Equal(t, "127.0.0.1 localhost\n127.0.1.1 cp-1\n", readString(t, target))

	again := f.mutator.EnsureLine(ctx, f.host, target, "127.0.1.1 cp-1", `^127\.0\.1\.1\s+`, WithOwner(f.owner))
	assert.True(t, again.Succeeded)
	assert.False(t, again.Changed)
}

func TestEnsureLine_InvalidPattern(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.mutator.EnsureLine(context.Background(), f.host, f.path("x"), "line", "[")
	assert.False(t, res.Succeeded)
	assert.Contains(t, res.Message, "invalid match pattern")
}
