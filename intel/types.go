package intel

// Definition locates a symbol's definition with surrounding context.
// Column is 0-indexed as the language server counts; ContextLines
// carry "N|text" numbering.
type Definition struct {
	File            string   `json:"file"`
	Line            int      `json:"line"`
	Column          int      `json:"column"`
	SymbolName      string   `json:"symbol_name"`
	SymbolType      string   `json:"symbol_type"`
	Docstring       string   `json:"docstring,omitempty"`
	Signature       string   `json:"signature,omitempty"`
	ContextLines    []string `json:"context_lines"`
	HasAlternatives bool     `json:"has_alternatives"`
}

// Reference is one usage of a symbol.
type Reference struct {
	File          string `json:"file"`
	Line          int    `json:"line"`
	Column        int    `json:"column"`
	Context       string `json:"context"`
	IsDefinition  bool   `json:"is_definition"`
	ReferenceType string `json:"reference_type,omitempty"`
}

// FileReferences groups the references within one file.
type FileReferences struct {
	File       string      `json:"file"`
	Count      int         `json:"count"`
	References []Reference `json:"references"`
}

// ReferencesResult is the full find-references answer.
type ReferencesResult struct {
	References    []Reference      `json:"references"`
	TotalCount    int              `json:"total_count"`
	GroupedByFile []FileReferences `json:"grouped_by_file"`
}

// HoverInfo is the parsed hover card for a symbol.
type HoverInfo struct {
	Symbol     string `json:"symbol"`
	Type       string `json:"type,omitempty"`
	Docstring  string `json:"docstring,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
}

// Completion is one completion candidate.
type Completion struct {
	Text          string `json:"text"`
	Kind          string `json:"kind,omitempty"`
	Detail        string `json:"detail,omitempty"`
	Documentation string `json:"documentation,omitempty"`
	SortText      string `json:"sort_text,omitempty"`
}

// CompletionsResult carries completions plus truncation metadata.
type CompletionsResult struct {
	Completions   []Completion `json:"completions"`
	TotalCount    int          `json:"total_count"`
	ReturnedCount int          `json:"returned_count"`
	Truncated     bool         `json:"truncated"`
}

// FileContent is a numbered file listing with optional diagnostics.
type FileContent struct {
	Content     string       `json:"content"`
	TotalLines  int          `json:"total_lines"`
	Language    string       `json:"language,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Symbol is one node of a file's symbol listing. Line is 1-indexed,
// Column 0-indexed.
type Symbol struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Line      int      `json:"line"`
	Column    int      `json:"column"`
	Parent    string   `json:"parent,omitempty"`
	Signature string   `json:"signature,omitempty"`
	Detail    string   `json:"detail,omitempty"`
	Children  []Symbol `json:"children,omitempty"`
}

// SymbolsResult lists a file's symbols. TotalCount counts every
// symbol in the file, including ones a type filter removed.
type SymbolsResult struct {
	Symbols    []Symbol `json:"symbols"`
	File       string   `json:"file"`
	TotalCount int      `json:"total_count"`
	Language   string   `json:"language,omitempty"`
}

// Diagnostic is one language server finding with 1-indexed position.
type Diagnostic struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Source   string `json:"source,omitempty"`
}

// DiagnosticsResult wraps diagnostics with counts.
type DiagnosticsResult struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
	TotalCount  int          `json:"total_count"`
	File        string       `json:"file,omitempty"`
}

// DependencyGraph lists what a file imports and what imports it.
type DependencyGraph struct {
	File       string   `json:"file"`
	Imports    []string `json:"imports"`
	ImportedBy []string `json:"imported_by"`
}

// RenameChange is one line a rename edits.
type RenameChange struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	NewText string `json:"new_text"`
}

// RenameResult reports a symbol rename. In preview mode Applied is
// false and Changes describes the edits without any buffer touched.
type RenameResult struct {
	Applied       bool           `json:"applied"`
	Changes       []RenameChange `json:"changes"`
	AffectedFiles int            `json:"affected_files"`
	TotalChanges  int            `json:"total_changes"`
}

// BufferInfo describes one buffer for tool responses.
type BufferInfo struct {
	File      string `json:"file"`
	Open      bool   `json:"is_open"`
	Modified  bool   `json:"is_modified"`
	LineCount int    `json:"line_count"`
	Language  string `json:"language,omitempty"`
}

// EditResult reports a buffer edit. The change lives in the buffer
// until saved.
type EditResult struct {
	File     string   `json:"file"`
	Applied  int      `json:"applied"`
	Modified bool     `json:"is_modified"`
	Preview  []string `json:"preview,omitempty"`
}

// SaveResult confirms a buffer write with post-save state.
type SaveResult struct {
	File     string `json:"file"`
	Modified bool   `json:"is_modified"`
}

// DiscardResult confirms a buffer reload with post-discard state.
type DiscardResult struct {
	File     string `json:"file"`
	Modified bool   `json:"is_modified"`
}

// severityName maps a DiagnosticSeverity code to its response string.
func severityName(severity int) string {
	switch severity {
	case 1:
		return "error"
	case 2:
		return "warning"
	case 4:
		return "hint"
	default:
		return "info"
	}
}

// symbolTypeNames maps SymbolKind codes to the strings get_symbols
// reports.
var symbolTypeNames = map[int]string{
	1: "file", 2: "module", 3: "namespace", 4: "package",
	5: "class", 6: "method", 7: "property", 8: "field",
	9: "constructor", 10: "enum", 11: "interface", 12: "function",
	13: "variable", 14: "constant", 15: "string", 16: "number",
	17: "boolean", 18: "array",
}

func symbolTypeName(kind int) string {
	if name, ok := symbolTypeNames[kind]; ok {
		return name
	}
	return "unknown"
}

// definitionKindNames collapses SymbolKind codes to the coarse
// categories find_definition reports.
var definitionKindNames = map[int]string{
	1: "module", 2: "module", 3: "module", 4: "module",
	5: "class", 6: "method", 7: "property", 8: "variable",
	9: "function", 10: "function", 11: "function", 12: "function",
	23: "struct", 25: "function",
}

func definitionKindName(kind int) string {
	if name, ok := definitionKindNames[kind]; ok {
		return name
	}
	return "variable"
}

// completionKindNames maps CompletionItemKind codes to strings.
var completionKindNames = map[int]string{
	1: "text", 2: "method", 3: "function", 4: "constructor",
	5: "field", 6: "variable", 7: "class", 8: "interface",
	9: "module", 10: "property", 11: "unit", 12: "value",
	13: "enum", 14: "keyword", 15: "snippet", 16: "color",
	17: "file", 18: "reference", 19: "folder", 20: "enum_member",
	21: "constant", 22: "struct", 23: "event", 24: "operator",
	25: "type_parameter",
}

func completionKindName(kind int) string {
	if kind == 0 {
		return ""
	}
	if name, ok := completionKindNames[kind]; ok {
		return name
	}
	return "unknown"
}
