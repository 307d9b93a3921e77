package editor

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/nvimbridge/nvim-ide-mcp/ideerr"
	"github.com/nvimbridge/nvim-ide-mcp/poll"
)

// Location is a 1-indexed position in a file.
type Location struct {
	Path   string
	Line   int
	Column int
}

// CompletionItem is one completion candidate.
type CompletionItem struct {
	Label         string
	Kind          int
	Detail        string
	InsertText    string
	SortText      string
	Documentation string
}

// DocumentSymbol is a node of the editor's symbol tree.
type DocumentSymbol struct {
	Name     string           `json:"name"`
	Detail   string           `json:"detail"`
	Kind     int              `json:"kind"`
	Range    lspRange         `json:"range"`
	Children []DocumentSymbol `json:"children"`
}

// Line returns the symbol's 1-indexed start line.
func (s DocumentSymbol) Line() int {
	return s.Range.Start.Line + 1
}

// RenameOutcome summarizes a workspace rename. When the rename ran in
// preview mode Applied is false and Changes describes the edits the
// editor would make.
type RenameOutcome struct {
	Applied      bool
	FilesChanged []string
	TotalEdits   int
	Changes      []RenameChange
}

// RenameChange is one line a rename touches, with a 1-indexed line.
type RenameChange struct {
	File    string
	Line    int
	NewText string
}

// LSPClient describes one language server attached to a buffer.
type LSPClient struct {
	Name        string `json:"name"`
	Initialized bool   `json:"initialized"`
}

// Diagnostic is one diagnostic entry with 1-indexed position.
type Diagnostic struct {
	Line     int
	Column   int
	Severity int
	Message  string
	Source   string
}

// FileDiagnostic is a Diagnostic tagged with its buffer's file path.
type FileDiagnostic struct {
	File string
	Diagnostic
}

type lspPosition struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type lspRange struct {
	Start lspPosition `json:"start"`
	End   lspPosition `json:"end"`
}

// lspLocation accepts both Location and LocationLink shapes.
type lspLocation struct {
	URI         string    `json:"uri"`
	TargetURI   string    `json:"targetUri"`
	Range       *lspRange `json:"range"`
	TargetRange *lspRange `json:"targetRange"`
}

func (l lspLocation) location() (Location, bool) {
	uri := l.URI
	rng := l.Range
	if uri == "" {
		uri = l.TargetURI
	}
	if rng == nil {
		rng = l.TargetRange
	}
	if uri == "" || rng == nil {
		return Location{}, false
	}
	return Location{
		Path:   uriToPath(uri),
		Line:   rng.Start.Line + 1,
		Column: rng.Start.Character + 1,
	}, true
}

func uriToPath(uri string) string {
	path := strings.TrimPrefix(uri, "file://")
	if unescaped, err := url.PathUnescape(path); err == nil {
		return unescaped
	}
	return path
}

func decodeLocations(raw json.RawMessage) []Location {
	if len(raw) == 0 {
		return nil
	}
	var many []lspLocation
	if err := json.Unmarshal(raw, &many); err != nil {
		// A single location comes back as an object.
		var one lspLocation
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil
		}
		many = []lspLocation{one}
	}
	out := make([]Location, 0, len(many))
	for _, l := range many {
		if loc, ok := l.location(); ok {
			out = append(out, loc)
		}
	}
	return out
}

// extractText flattens the hover/documentation content union: a plain
// string, a {value} object, or an array of either.
func extractText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Value != "" {
		return obj.Value
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err == nil {
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := extractText(p); t != "" {
				texts = append(texts, t)
			}
		}
		return strings.Join(texts, "\n")
	}
	return ""
}

// Definition resolves the symbol at the 1-indexed position to its
// definition locations.
func (e *Editor) Definition(ctx context.Context, path string, line, column int) ([]Location, error) {
	if err := e.readyForLSP(ctx, path); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := e.call(ctx, &raw, MethodLSPDefinition, pathArg(path), line-1, column-1); err != nil {
		return nil, err
	}
	return decodeLocations(raw), nil
}

// References finds all references to the symbol at the 1-indexed
// position.
func (e *Editor) References(ctx context.Context, path string, line, column int, includeDeclaration bool) ([]Location, error) {
	if err := e.readyForLSP(ctx, path); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := e.call(ctx, &raw, MethodLSPReferences, pathArg(path), line-1, column-1, includeDeclaration); err != nil {
		return nil, err
	}
	return decodeLocations(raw), nil
}

// Hover returns the hover text at the 1-indexed position, flattened
// to a single string.
func (e *Editor) Hover(ctx context.Context, path string, line, column int) (string, error) {
	if err := e.readyForLSP(ctx, path); err != nil {
		return "", err
	}
	var raw struct {
		Contents json.RawMessage `json:"contents"`
	}
	if err := e.call(ctx, &raw, MethodLSPHover, pathArg(path), line-1, column-1); err != nil {
		return "", err
	}
	return extractText(raw.Contents), nil
}

// Completions returns completion candidates at the 1-indexed position.
func (e *Editor) Completions(ctx context.Context, path string, line, column int) ([]CompletionItem, error) {
	if err := e.readyForLSP(ctx, path); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := e.call(ctx, &raw, MethodLSPCompletion, pathArg(path), line-1, column-1); err != nil {
		return nil, err
	}
	return decodeCompletions(raw), nil
}

type lspCompletionItem struct {
	Label         string          `json:"label"`
	Kind          int             `json:"kind"`
	Detail        string          `json:"detail"`
	InsertText    string          `json:"insertText"`
	SortText      string          `json:"sortText"`
	Documentation json.RawMessage `json:"documentation"`
}

func decodeCompletions(raw json.RawMessage) []CompletionItem {
	if len(raw) == 0 {
		return nil
	}
	// Either a CompletionList {items: [...]} or a bare array.
	var list struct {
		Items []lspCompletionItem `json:"items"`
	}
	var items []lspCompletionItem
	if err := json.Unmarshal(raw, &list); err == nil && list.Items != nil {
		items = list.Items
	} else if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]CompletionItem, 0, len(items))
	for _, it := range items {
		out = append(out, CompletionItem{
			Label:         it.Label,
			Kind:          it.Kind,
			Detail:        it.Detail,
			InsertText:    it.InsertText,
			SortText:      it.SortText,
			Documentation: extractText(it.Documentation),
		})
	}
	return out
}

// DocumentSymbols returns the hierarchical symbol tree for path.
func (e *Editor) DocumentSymbols(ctx context.Context, path string) ([]DocumentSymbol, error) {
	if err := e.readyForLSP(ctx, path); err != nil {
		return nil, err
	}
	var out struct {
		Symbols []DocumentSymbol `json:"symbols"`
	}
	if err := e.call(ctx, &out, MethodLSPSymbols, pathArg(path)); err != nil {
		return nil, err
	}
	return out.Symbols, nil
}

type rawRenameChange struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	NewText string `json:"new_text"`
}

// Rename renames the symbol at the 1-indexed position across the
// workspace. With apply false the editor computes the edit without
// touching any buffer and only reports what would change.
func (e *Editor) Rename(ctx context.Context, path string, line, column int, newName string, apply bool) (RenameOutcome, error) {
	if err := e.readyForLSP(ctx, path); err != nil {
		return RenameOutcome{}, err
	}
	var out struct {
		Applied      bool              `json:"applied"`
		FilesChanged []string          `json:"files_changed"`
		TotalEdits   int               `json:"total_edits"`
		Changes      []rawRenameChange `json:"changes"`
	}
	if err := e.call(ctx, &out, MethodLSPRename, pathArg(path), line-1, column-1, newName, apply); err != nil {
		return RenameOutcome{}, err
	}
	res := RenameOutcome{
		Applied:      out.Applied,
		FilesChanged: out.FilesChanged,
		TotalEdits:   out.TotalEdits,
	}
	for _, c := range out.Changes {
		res.Changes = append(res.Changes, RenameChange{
			File:    c.File,
			Line:    c.Line + 1,
			NewText: c.NewText,
		})
	}
	return res, nil
}

// LSPClients lists the language servers attached to path's buffer.
func (e *Editor) LSPClients(ctx context.Context, path string) ([]LSPClient, error) {
	var out struct {
		Clients []LSPClient `json:"clients"`
	}
	if err := e.call(ctx, &out, MethodLSPClients, pathArg(path)); err != nil {
		return nil, err
	}
	return out.Clients, nil
}

// WaitLSPReady polls until at least one language server for path
// reports initialized.
func (e *Editor) WaitLSPReady(ctx context.Context, path string) error {
	opts := e.opts.LSPPoll
	if opts.What == "" {
		opts.What = "language server for " + path
	}
	return poll.Await(ctx, opts, func(ctx context.Context) (bool, error) {
		clients, err := e.LSPClients(ctx, path)
		if err != nil {
			if ideerr.IsKind(err, ideerr.KindConnectionLost) {
				return false, err
			}
			return false, nil
		}
		for _, c := range clients {
			if c.Initialized {
				return true, nil
			}
		}
		return false, nil
	})
}

// readyForLSP opens the buffer and waits for a language server, the
// precondition shared by all LSP-backed operations.
func (e *Editor) readyForLSP(ctx context.Context, path string) error {
	if _, err := e.EnsureOpen(ctx, path); err != nil {
		return err
	}
	return e.WaitLSPReady(ctx, path)
}

type rawDiagnostic struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"col"`
	Severity int    `json:"severity"`
	Message  string `json:"message"`
	Source   string `json:"source"`
}

func (d rawDiagnostic) diagnostic() Diagnostic {
	return Diagnostic{
		Line:     d.Line + 1,
		Column:   d.Column + 1,
		Severity: d.Severity,
		Message:  d.Message,
		Source:   d.Source,
	}
}

// Diagnostics returns current diagnostics for path's buffer,
// converted to 1-indexed positions.
func (e *Editor) Diagnostics(ctx context.Context, path string) ([]Diagnostic, error) {
	var out struct {
		Diagnostics []rawDiagnostic `json:"diagnostics"`
	}
	if err := e.call(ctx, &out, MethodDiagnostics, pathArg(path)); err != nil {
		return nil, err
	}
	diags := make([]Diagnostic, 0, len(out.Diagnostics))
	for _, d := range out.Diagnostics {
		diags = append(diags, d.diagnostic())
	}
	return diags, nil
}

// AllDiagnostics returns diagnostics across every open buffer, each
// tagged with the file it belongs to.
func (e *Editor) AllDiagnostics(ctx context.Context) ([]FileDiagnostic, error) {
	var out struct {
		Diagnostics []rawDiagnostic `json:"diagnostics"`
	}
	if err := e.call(ctx, &out, MethodDiagnostics); err != nil {
		return nil, err
	}
	diags := make([]FileDiagnostic, 0, len(out.Diagnostics))
	for _, d := range out.Diagnostics {
		diags = append(diags, FileDiagnostic{
			File:       d.File,
			Diagnostic: d.diagnostic(),
		})
	}
	return diags, nil
}
