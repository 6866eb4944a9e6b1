package main

import (
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseCLI(t *testing.T, args ...string) string {
	t.Helper()
	parser, err := kong.New(&CLI)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return kctx.Command()
}

func TestCLIParseWatch(t *testing.T) {
	cmd := parseCLI(t, "watch", "101", "102", "--interval", "5s", "--timeout", "10m")
	assert.Equal(t, "watch <id>", cmd)
	assert.Equal(t, []int64{101, 102}, CLI.Watch.IDs)
	assert.Equal(t, 5*time.Second, CLI.Watch.Interval)
	assert.Equal(t, 10*time.Minute, CLI.Watch.Timeout)
}

func TestCLIParseWatchDefaults(t *testing.T) {
	parseCLI(t, "watch", "7")
	assert.Equal(t, 30*time.Second, CLI.Watch.Interval)
	assert.Equal(t, time.Duration(0), CLI.Watch.Timeout)
}

func TestCLIParseBuild(t *testing.T) {
	cmd := parseCLI(t, "build", "eclipseo/rust-stable",
		"--url", "https://example.org/hello.src.rpm",
		"--chroot", "fedora-rawhide-x86_64", "--watch")
	assert.Equal(t, "build <project>", cmd)
	assert.Equal(t, "eclipseo/rust-stable", CLI.Build.Project)
	assert.True(t, CLI.Build.Watch)
}

func TestCLIParseStatusAndCancel(t *testing.T) {
	assert.Equal(t, "status <id>", parseCLI(t, "status", "1", "2", "3"))
	assert.Equal(t, "cancel <id>", parseCLI(t, "cancel", "9"))
	assert.Equal(t, int64(9), CLI.Cancel.ID)
}

func TestSplitProject(t *testing.T) {
	owner, project, err := splitProject("eclipseo/rust-stable")
	require.NoError(t, err)
	assert.Equal(t, "eclipseo", owner)
	assert.Equal(t, "rust-stable", project)

	for _, bad := range []string{"", "noslash", "/project", "owner/"} {
		_, _, err := splitProject(bad)
		assert.Error(t, err, "spec %q should be rejected", bad)
	}
}
