package intel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nvimbridge/nvim-ide-mcp/editor"
	"github.com/nvimbridge/nvim-ide-mcp/ideerr"
)

// referenceContextWorkers bounds the concurrent disk reads when
// loading reference context lines.
const referenceContextWorkers = 8

// FindDefinition resolves symbol's definition starting from its
// occurrence at file:line. The column is located by scanning the line
// text; the editor's language server does the rest. When the server
// reports several candidates the first is returned with
// HasAlternatives set.
func (s *Service) FindDefinition(ctx context.Context, symbol, file string, line int) (*Definition, error) {
	col, err := s.symbolColumn(ctx, file, line, symbol)
	if err != nil {
		return nil, err
	}
	locs, err := s.ed.Definition(ctx, file, line, col+1)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, ideerr.NotFound(fmt.Sprintf("definition of %q at %s:%d", symbol, file, line))
	}
	loc := locs[0]

	content, err := os.ReadFile(loc.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ideerr.NotFound("definition file " + loc.Path)
		}
		return nil, err
	}
	lines := splitLines(string(content))
	if loc.Line > len(lines) {
		return nil, fmt.Errorf("definition line %d out of range in %s", loc.Line, loc.Path)
	}

	def := &Definition{
		File:            s.displayPath(loc.Path),
		Line:            loc.Line,
		Column:          loc.Column - 1,
		SymbolName:      symbol,
		SymbolType:      "variable",
		ContextLines:    numberedContext(lines, loc.Line, 3),
		HasAlternatives: len(locs) > 1,
	}
	s.annotateDefinition(ctx, def, loc)
	return def, nil
}

// annotateDefinition fills in symbol name, type, signature and
// docstring from the language server at the definition position.
// Best effort: definitions outside the workspace keep the fallbacks.
func (s *Service) annotateDefinition(ctx context.Context, def *Definition, loc editor.Location) {
	if hover, err := s.ed.Hover(ctx, loc.Path, loc.Line, loc.Column); err == nil {
		def.Signature, def.Docstring = parseHoverSignature(hover)
	}
	syms, err := s.ed.DocumentSymbols(ctx, loc.Path)
	if err != nil {
		s.log.Debugf("symbol info at %s:%d unavailable: %v", loc.Path, loc.Line, err)
		return
	}
	if sym, ok := symbolAt(syms, loc.Line, loc.Column-1); ok {
		def.SymbolName = sym.Name
		def.SymbolType = definitionKindName(sym.Kind)
	}
}

// FindReferences finds all references to symbol starting from its
// occurrence at file:line. Scope "file" keeps only references in the
// queried file; excludeDefinition drops the definition itself.
func (s *Service) FindReferences(ctx context.Context, symbol, file string, line int, scope string, excludeDefinition bool) (*ReferencesResult, error) {
	switch scope {
	case "", "file", "package", "project":
	default:
		return nil, fmt.Errorf("unknown scope %q (want file, package or project)", scope)
	}
	canonical, err := s.ws.Canonicalize(file)
	if err != nil {
		return nil, err
	}
	queried := s.ws.Rel(canonical)

	col, err := s.symbolColumn(ctx, file, line, symbol)
	if err != nil {
		return nil, err
	}
	locs, err := s.ed.References(ctx, file, line, col+1, true)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return &ReferencesResult{References: []Reference{}, GroupedByFile: []FileReferences{}}, nil
	}

	// Context lines come from disk, one file read per reference.
	// Loaded concurrently but kept in language server order.
	refs := make([]*Reference, len(locs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(referenceContextWorkers)
	for i, loc := range locs {
		i, loc := i, loc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			refs[i] = s.referenceAt(loc, symbol, queried, line)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Reference, 0, len(refs))
	for _, r := range refs {
		if r == nil {
			continue
		}
		if scope == "file" && r.File != queried {
			continue
		}
		if excludeDefinition && r.IsDefinition {
			continue
		}
		out = append(out, *r)
	}

	groups := make(map[string][]Reference)
	for _, r := range out {
		groups[r.File] = append(groups[r.File], r)
	}
	files := make([]string, 0, len(groups))
	for f := range groups {
		files = append(files, f)
	}
	sort.Strings(files)
	grouped := make([]FileReferences, 0, len(files))
	for _, f := range files {
		grouped = append(grouped, FileReferences{File: f, Count: len(groups[f]), References: groups[f]})
	}

	return &ReferencesResult{References: out, TotalCount: len(out), GroupedByFile: grouped}, nil
}

// referenceAt builds one Reference, reading the referenced line from
// disk. Locations that cannot be read are dropped.
func (s *Service) referenceAt(loc editor.Location, symbol, queriedFile string, queriedLine int) *Reference {
	content, err := os.ReadFile(loc.Path)
	if err != nil {
		return nil
	}
	lines := splitLines(string(content))
	if loc.Line < 1 || loc.Line > len(lines) {
		return nil
	}
	text := lines[loc.Line-1]
	file := s.displayPath(loc.Path)
	return &Reference{
		File:          file,
		Line:          loc.Line,
		Column:        loc.Column - 1,
		Context:       fmt.Sprintf("Line %d: %s", loc.Line, text),
		IsDefinition:  file == queriedFile && loc.Line == queriedLine,
		ReferenceType: referenceType(text, symbol),
	}
}

var importLineRe = regexp.MustCompile(`\b(import|from|require|use|include)\b`)

// referenceType classifies a reference line as an import, a type
// annotation or a plain usage.
func referenceType(line, symbol string) string {
	trimmed := strings.TrimSpace(line)
	if importLineRe.MatchString(trimmed) {
		return "import"
	}
	esc := regexp.QuoteMeta(symbol)
	typeRe := regexp.MustCompile(strings.Join([]string{
		`:\s*` + esc + `\b`,
		`->\s*` + esc + `\b`,
		`<\s*` + esc + `\s*>`,
		`\bextends\s+` + esc + `\b`,
		`\bimplements\s+` + esc + `\b`,
		`\bas\s+` + esc + `\b`,
	}, "|"))
	if typeRe.MatchString(trimmed) {
		return "type_hint"
	}
	return "usage"
}

// Hover returns type and documentation for a symbol in file. The
// position comes either from a symbol name (resolved via document
// symbols, with line as a disambiguation hint) or from an explicit
// 1-indexed line and 0-indexed column.
func (s *Service) Hover(ctx context.Context, file, symbol string, line, column int) (*HoverInfo, error) {
	if symbol == "" && (line <= 0 || column < 0) {
		return nil, fmt.Errorf("hover needs a symbol name or an explicit line and column")
	}
	if symbol != "" {
		l, c, err := s.symbolPosition(ctx, file, symbol, line)
		if err != nil {
			return nil, err
		}
		line, column = l, c
	}

	text, err := s.ed.Hover(ctx, file, line, column+1)
	if err != nil {
		return nil, err
	}
	if text == "" {
		text, err = s.hoverNearby(ctx, file, line, column)
		if err != nil {
			return nil, err
		}
	}
	if text == "" {
		hint := ""
		if symbol != "" {
			hint = fmt.Sprintf(" for symbol %q", symbol)
		}
		return nil, ideerr.NotFound(fmt.Sprintf("hover info at %s:%d:%d%s", file, line, column, hint))
	}

	info := parseHover(text)
	info.Line = line
	info.Column = column
	if info.SourceFile == "" {
		info.SourceFile = s.definitionSource(ctx, text, file, line, column)
	}
	return info, nil
}

// hoverNearby retries hover at columns around the requested one, for
// cursors sitting just off the symbol.
func (s *Service) hoverNearby(ctx context.Context, file string, line, column int) (string, error) {
	for _, off := range []int{1, 2, -1, 3, -2, 4, -3} {
		col := column + off
		if col < 0 {
			col = 0
		}
		text, err := s.ed.Hover(ctx, file, line, col+1)
		if err != nil {
			return "", err
		}
		if text != "" {
			return text, nil
		}
	}
	return "", nil
}

// symbolPosition locates symbol in file via document symbols,
// returning a 1-indexed line and 0-indexed column. With several
// matches the one nearest lineHint wins; lineHint 0 takes the first.
func (s *Service) symbolPosition(ctx context.Context, file, symbol string, lineHint int) (int, int, error) {
	syms, err := s.ed.DocumentSymbols(ctx, file)
	if err != nil {
		return 0, 0, err
	}
	if len(syms) == 0 {
		return 0, 0, ideerr.NotFound("symbols in " + file)
	}
	var matches []editor.DocumentSymbol
	collectNamed(syms, symbol, &matches)
	if len(matches) == 0 {
		return 0, 0, ideerr.NotFound(fmt.Sprintf("symbol %q in %s", symbol, file))
	}
	best := matches[0]
	if lineHint > 0 {
		for _, m := range matches[1:] {
			if abs(m.Line()-lineHint) < abs(best.Line()-lineHint) {
				best = m
			}
		}
	}
	return best.Line(), best.Range.Start.Character, nil
}

func collectNamed(symbols []editor.DocumentSymbol, name string, out *[]editor.DocumentSymbol) {
	for _, sym := range symbols {
		if sym.Name == name {
			*out = append(*out, sym)
		}
		collectNamed(sym.Children, name, out)
	}
}

// symbolAt finds the most specific symbol whose range contains the
// position (1-indexed line, 0-indexed column).
func symbolAt(symbols []editor.DocumentSymbol, line, column int) (editor.DocumentSymbol, bool) {
	for _, sym := range symbols {
		startLine := sym.Range.Start.Line + 1
		endLine := sym.Range.End.Line + 1
		if line < startLine || line > endLine {
			continue
		}
		if line == startLine && column < sym.Range.Start.Character {
			continue
		}
		if line == endLine && column > sym.Range.End.Character {
			continue
		}
		if child, ok := symbolAt(sym.Children, line, column); ok {
			return child, true
		}
		return sym, true
	}
	return editor.DocumentSymbol{}, false
}

var definedInRe = regexp.MustCompile(`(?:Defined in|From):\s*(\S+\.(?:py|js|ts|rs))`)

// definitionSource resolves where a hovered symbol is defined, used
// when the hover card itself does not say. Returns "" for symbols
// defined in the queried file.
func (s *Service) definitionSource(ctx context.Context, hover, file string, line, column int) string {
	if m := definedInRe.FindStringSubmatch(hover); m != nil {
		return m[1]
	}
	locs, err := s.ed.Definition(ctx, file, line, column+1)
	if err != nil || len(locs) == 0 {
		return ""
	}
	if canonical, err := s.ws.Canonicalize(file); err == nil && locs[0].Path == canonical {
		return ""
	}
	return s.displayPath(locs[0].Path)
}

// Completions returns completion candidates at the 1-indexed line and
// 0-indexed cursor column, most relevant first. maxResults 0 means
// unlimited; a non-empty prefix keeps only candidates starting
// with it.
func (s *Service) Completions(ctx context.Context, file string, line, column, maxResults int, prefix string) (*CompletionsResult, error) {
	items, err := s.ed.Completions(ctx, file, line, column+1)
	if err != nil {
		return nil, err
	}

	completions := make([]Completion, 0, len(items))
	for _, it := range items {
		if it.Label == "" {
			continue
		}
		text := it.InsertText
		if text == "" {
			text = it.Label
		}
		if prefix != "" && !strings.HasPrefix(text, prefix) {
			continue
		}
		sortText := it.SortText
		if sortText == "" {
			sortText = it.Label
		}
		completions = append(completions, Completion{
			Text:          text,
			Kind:          completionKindName(it.Kind),
			Detail:        it.Detail,
			Documentation: it.Documentation,
			SortText:      sortText,
		})
	}
	total := len(completions)

	// Servers rank by sortText, lexicographically smaller first.
	sort.SliceStable(completions, func(i, j int) bool {
		return completions[i].SortText < completions[j].SortText
	})

	truncated := false
	if maxResults > 0 && len(completions) > maxResults {
		completions = completions[:maxResults]
		truncated = true
	}
	return &CompletionsResult{
		Completions:   completions,
		TotalCount:    total,
		ReturnedCount: len(completions),
		Truncated:     truncated,
	}, nil
}

var codeBlockRe = regexp.MustCompile("(?s)```(?:\\w+)?\\n(.+?)```")

var (
	markdownBoldRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	markdownItalicRe = regexp.MustCompile(`\*(.+?)\*`)
	markdownCodeRe   = regexp.MustCompile("`(.+?)`")
)

// parseHoverSignature pulls the signature line and trailing docstring
// out of a markdown hover card. The first line of the fenced code
// block is the signature when the block declares something.
func parseHoverSignature(hover string) (signature, docstring string) {
	m := codeBlockRe.FindStringSubmatch(hover)
	if m == nil {
		return "", ""
	}
	code := strings.TrimSpace(m[1])
	firstLine := strings.TrimSpace(strings.SplitN(code, "\n", 2)[0])
	for _, kw := range []string{"def ", "function ", "fn ", "=>", "func ", "class ", "struct ", "interface "} {
		if strings.Contains(code, kw) {
			signature = firstLine
			break
		}
	}
	parts := strings.SplitN(hover, "```", 3)
	if len(parts) > 2 {
		doc := strings.TrimSpace(parts[2])
		doc = markdownBoldRe.ReplaceAllString(doc, "$1")
		doc = markdownItalicRe.ReplaceAllString(doc, "$1")
		doc = markdownCodeRe.ReplaceAllString(doc, "$1")
		docstring = doc
	}
	return signature, docstring
}

var (
	hoverTaggedRe   = regexp.MustCompile(`\((class|method|function|variable|parameter)\)\s+(?:def\s+)?(\w+)`)
	hoverAsyncDefRe = regexp.MustCompile(`^async\s+def\s+(\w+)`)
	hoverDefRe      = regexp.MustCompile(`^def\s+(\w+)`)
	hoverClassRe    = regexp.MustCompile(`^class\s+(\w+)`)
	hoverTypedRe    = regexp.MustCompile(`^(\w+)\s*:`)
	identifierRe    = regexp.MustCompile(`\b([a-zA-Z_]\w*)\b`)
)

// parseHover splits a hover card into symbol name, type text and
// docstring. Cards conventionally separate code from prose with a
// "---" rule.
func parseHover(text string) *HoverInfo {
	parts := strings.SplitN(text, "---", 2)
	codePart := strings.TrimSpace(parts[0])
	docPart := ""
	if len(parts) > 1 {
		docPart = strings.TrimSpace(parts[1])
	}

	var clean []string
	for _, line := range strings.Split(codePart, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		clean = append(clean, line)
	}
	if len(clean) == 0 {
		return &HoverInfo{Symbol: "unknown", Docstring: docPart}
	}

	name := "unknown"
	for _, line := range clean {
		if m := hoverTaggedRe.FindStringSubmatch(line); m != nil {
			name = m[2]
			break
		}
		if m := hoverAsyncDefRe.FindStringSubmatch(line); m != nil {
			name = m[1]
			break
		}
		if m := hoverDefRe.FindStringSubmatch(line); m != nil {
			name = m[1]
			break
		}
		if m := hoverClassRe.FindStringSubmatch(line); m != nil {
			name = m[1]
			break
		}
		if m := hoverTypedRe.FindStringSubmatch(line); m != nil {
			name = m[1]
			break
		}
	}
	if name == "unknown" {
		for _, line := range clean {
			m := identifierRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			switch m[1] {
			case "class", "def", "async", "return", "self":
				continue
			}
			name = m[1]
			break
		}
	}
	return &HoverInfo{Symbol: name, Type: strings.Join(clean, "\n"), Docstring: docPart}
}

// numberedContext formats "N|text" lines around the 1-indexed target,
// n lines before and after.
func numberedContext(lines []string, target, n int) []string {
	start := target - 1 - n
	if start < 0 {
		start = 0
	}
	end := target + n
	if end > len(lines) {
		end = len(lines)
	}
	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, fmt.Sprintf("%d|%s", i+1, lines[i]))
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
