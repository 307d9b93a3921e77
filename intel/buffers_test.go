package intel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvimbridge/nvim-ide-mcp/editor"
)

func TestRenamePreviewThenApply(t *testing.T) {
	fe, svc, root := newTestService(t)
	a := writeFile(t, root, "a.py", "def parse():\n    pass\n")
	b := writeFile(t, root, "b.py", "from a import parse\n")

	fe.renameOut = editor.RenameOutcome{
		Applied:      false,
		FilesChanged: []string{a, b},
		TotalEdits:   3,
		Changes: []editor.RenameChange{
			{File: a, Line: 10, NewText: "parse_config"},
			{File: a, Line: 12, NewText: "parse_config"},
			{File: b, Line: 3, NewText: "parse_config"},
		},
	}

	res, err := svc.Rename(context.Background(), a, 10, 4, "parse_config", true)
	require.NoError(t, err)

	assert.Equal(t, renameCall{path: a, line: 10, column: 5, newName: "parse_config", apply: false}, fe.lastRename)
	assert.False(t, res.Applied)
	assert.Equal(t, 2, res.AffectedFiles)
	assert.Equal(t, 3, res.TotalChanges)
	require.Len(t, res.Changes, 3)
	assert.Equal(t, RenameChange{File: "a.py", Line: 10, NewText: "parse_config"}, res.Changes[0])
	assert.Equal(t, "b.py", res.Changes[2].File)

	fe.renameOut.Applied = true
	res, err = svc.Rename(context.Background(), a, 10, 4, "parse_config", false)
	require.NoError(t, err)
	assert.True(t, fe.lastRename.apply)
	assert.True(t, res.Applied)
}

func TestBufferInfo(t *testing.T) {
	fe, svc, root := newTestService(t)
	app := writeFile(t, root, "app.py", "x = 1\n")
	fe.infos[app] = editor.BufferInfo{Open: true, Modified: true, LineCount: 42, Language: "python"}

	info, err := svc.BufferInfo(context.Background(), app)
	require.NoError(t, err)

	assert.Equal(t, &BufferInfo{
		File:      "app.py",
		Open:      true,
		Modified:  true,
		LineCount: 42,
		Language:  "python",
	}, info)
}

func TestEditBufferValidatesRanges(t *testing.T) {
	fe, svc, root := newTestService(t)
	app := writeFile(t, root, "app.py", "a\nb\nc\n")

	_, err := svc.EditBuffer(context.Background(), app, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no edits")

	_, err = svc.EditBuffer(context.Background(), app, []editor.LineEdit{{StartLine: 0, EndLine: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad edit range")

	_, err = svc.EditBuffer(context.Background(), app, []editor.LineEdit{{StartLine: 3, EndLine: 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad edit range")

	assert.Zero(t, fe.count("edit"), "nothing reaches the editor on bad input")
}

func TestEditBuffer(t *testing.T) {
	fe, svc, root := newTestService(t)
	app := writeFile(t, root, "app.py", "a\nb\nc\n")

	edits := []editor.LineEdit{{StartLine: 2, EndLine: 3, Lines: []string{"B"}}}
	fe.editOut = editor.EditOutcome{Applied: 1, Modified: true, Preview: []string{"1|a", "2|B"}}

	res, err := svc.EditBuffer(context.Background(), app, edits)
	require.NoError(t, err)

	assert.Equal(t, edits, fe.lastEdits)
	assert.Equal(t, "app.py", res.File)
	assert.Equal(t, 1, res.Applied)
	assert.True(t, res.Modified)
	assert.Equal(t, []string{"1|a", "2|B"}, res.Preview)
}

func TestSaveBuffer(t *testing.T) {
	fe, svc, root := newTestService(t)
	app := writeFile(t, root, "app.py", "x = 1\n")

	res, err := svc.SaveBuffer(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, "app.py", res.File)
	assert.False(t, res.Modified)
	assert.Equal(t, 1, fe.count("save"))

	fe.saveErr = errors.New("buffer has no name")
	_, err = svc.SaveBuffer(context.Background(), app)
	require.Error(t, err)
}

func TestDiscardBuffer(t *testing.T) {
	fe, svc, root := newTestService(t)
	app := writeFile(t, root, "app.py", "x = 1\n")

	res, err := svc.DiscardBuffer(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, "app.py", res.File)
	assert.False(t, res.Modified)
	assert.Equal(t, 1, fe.count("discard"))
	assert.Equal(t, 1, fe.count("info"))
}
