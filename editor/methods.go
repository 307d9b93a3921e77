package editor

// Method names the RPC operations exposed by the editor runtime.
type Method string

const (
	MethodReady Method = "editor/ready"
	MethodQuit  Method = "editor/quit"

	// Buffer methods
	MethodBufferOpen    Method = "buffer/open"
	MethodBufferLines   Method = "buffer/lines"
	MethodBufferInfo    Method = "buffer/info"
	MethodBufferEdit    Method = "buffer/edit"
	MethodBufferSave    Method = "buffer/save"
	MethodBufferDiscard Method = "buffer/discard"

	// Language server methods
	MethodLSPDefinition Method = "lsp/definition"
	MethodLSPReferences Method = "lsp/references"
	MethodLSPHover      Method = "lsp/hover"
	MethodLSPCompletion Method = "lsp/completion"
	MethodLSPSymbols    Method = "lsp/documentSymbols"
	MethodLSPRename     Method = "lsp/rename"
	MethodLSPClients    Method = "lsp/clients"

	MethodDiagnostics Method = "diagnostics/list"

	// Source analysis methods
	MethodAnalysisImports   Method = "analysis/imports"
	MethodAnalysisReferrers Method = "analysis/referrers"

	// Debug adapter methods
	MethodDapLaunch         Method = "dap/launch"
	MethodDapSetBreakpoints Method = "dap/setBreakpoints"
	MethodDapContinue       Method = "dap/continue"
	MethodDapNext           Method = "dap/next"
	MethodDapStepIn         Method = "dap/stepIn"
	MethodDapStepOut        Method = "dap/stepOut"
	MethodDapPause          Method = "dap/pause"
	MethodDapStackTrace     Method = "dap/stackTrace"
	MethodDapScopes         Method = "dap/scopes"
	MethodDapVariables      Method = "dap/variables"
	MethodDapEvaluate       Method = "dap/evaluate"
	MethodDapTerminate      Method = "dap/terminate"
	MethodDapStatus         Method = "dap/status"
)

// EventDebug is the notification method carrying debug adapter events.
const EventDebug = "dap/event"
