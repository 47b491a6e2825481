package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackCommand_DirtyTree(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.json", `{"a":1,"b":{"c":2,"d":3}}`)
	cur := writeFile(t, dir, "cur.json", `{"a":1,"b":{"c":5,"d":3}}`)

	out, _, err := execute(NewTrackCommand(rootOpts("text")), "--baseline", base, "--current", cur)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":false,"b":{"c":true,"d":false}}`, out)
}

func TestTrackCommand_ArraysPairByIdentity(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.json", `{"lines":[{"_uid":"x","q":1},{"_uid":"y","q":2}]}`)
	cur := writeFile(t, dir, "cur.json", `{"lines":[{"_uid":"y","q":2},{"_uid":"x","q":9}]}`)

	out, _, err := execute(NewTrackCommand(rootOpts("text")),
		"--baseline", base, "--current", cur, "--path", "lines.x.q", "--path", "lines.y.q")
	require.NoError(t, err)
	assert.Equal(t, "dirty lines.x.q\nclean lines.y.q\n", out)
}

func TestTrackCommand_PathsJSON(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", "a: 1\nb: 2\n")
	cur := writeFile(t, dir, "cur.json", `{"a":1,"b":3}`)

	out, _, err := execute(NewTrackCommand(rootOpts("json")),
		"--baseline", base, "--current", cur, "--path", "a", "--path", "b")
	require.NoError(t, err)

	var result TrackResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]bool{"a": false, "b": true}, result.Paths)
	assert.JSONEq(t, `{"a":false,"b":true}`, string(result.Dirty))
}

func TestTrackCommand_IdenticalDocumentsAreClean(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.json", `{"a":[1,2],"b":"x"}`)

	out, _, err := execute(NewTrackCommand(rootOpts("text")),
		"--baseline", base, "--current", base, "--path", "a", "--path", "b")
	require.NoError(t, err)
	assert.Equal(t, "clean a\nclean b\n", out)
}

func TestTrackCommand_MissingDocument(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.json", `{}`)

	_, _, err := execute(NewTrackCommand(rootOpts("text")),
		"--baseline", base, "--current", filepath.Join(dir, "none.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestTrackCommand_StdinReadOnce(t *testing.T) {
	cmd := NewTrackCommand(rootOpts("text"))
	cmd.SetIn(strings.NewReader(`{}`))

	_, _, err := execute(cmd, "--baseline", "-", "--current", "-")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "cannot both read stdin")
}
