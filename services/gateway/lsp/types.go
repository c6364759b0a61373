// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

// =============================================================================
// POSITION & RANGE TYPES
// =============================================================================

// Position represents a position in a text document.
// Line and character are 0-indexed per LSP specification.
type Position struct {
	// Line is the 0-indexed line number.
	Line int `json:"line"`

	// Character is the 0-indexed character offset within the line.
	Character int `json:"character"`
}

// Range represents a range in a text document.
type Range struct {
	// Start is the inclusive start position.
	Start Position `json:"start"`

	// End is the exclusive end position.
	End Position `json:"end"`
}

// Location represents a location in a document.
type Location struct {
	// URI is the document URI (file:// scheme).
	URI string `json:"uri"`

	// Range is the range within the document.
	Range Range `json:"range"`
}

// LocationLink represents a link between a source and target location.
type LocationLink struct {
	// OriginSelectionRange is the span in the source that was used.
	OriginSelectionRange *Range `json:"originSelectionRange,omitempty"`

	// TargetURI is the target document URI.
	TargetURI string `json:"targetUri"`

	// TargetRange is the full range of the target (for highlighting).
	TargetRange Range `json:"targetRange"`

	// TargetSelectionRange is the precise range to reveal.
	TargetSelectionRange Range `json:"targetSelectionRange"`
}

// =============================================================================
// DOCUMENT IDENTIFIERS
// =============================================================================

// TextDocumentIdentifier identifies a text document by URI.
type TextDocumentIdentifier struct {
	// URI is the document's URI.
	URI string `json:"uri"`
}

// TextDocumentItem represents a text document with its content.
type TextDocumentItem struct {
	// URI is the document's URI.
	URI string `json:"uri"`

	// LanguageID is the language identifier (e.g., "go", "python").
	LanguageID string `json:"languageId"`

	// Version is the version number of this document.
	Version int `json:"version"`

	// Text is the content of the document.
	Text string `json:"text"`
}

// VersionedTextDocumentIdentifier identifies a specific version of a document.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier

	// Version is the version number.
	Version *int `json:"version"`
}

// =============================================================================
// REQUEST PARAMETER TYPES
// =============================================================================

// TextDocumentPositionParams identifies a position in a text document.
type TextDocumentPositionParams struct {
	// TextDocument is the document identifier.
	TextDocument TextDocumentIdentifier `json:"textDocument"`

	// Position is the position within the document.
	Position Position `json:"position"`
}

// ReferenceParams extends TextDocumentPositionParams for find references.
type ReferenceParams struct {
	TextDocumentPositionParams

	// Context contains additional context for the request.
	Context ReferenceContext `json:"context"`
}

// ReferenceContext contains options for find references requests.
type ReferenceContext struct {
	// IncludeDeclaration indicates whether to include the declaration.
	IncludeDeclaration bool `json:"includeDeclaration"`
}

// RenameParams contains rename request parameters.
type RenameParams struct {
	TextDocumentPositionParams

	// NewName is the new name to rename the symbol to.
	NewName string `json:"newName"`
}

// CompletionParams contains completion request parameters.
type CompletionParams struct {
	TextDocumentPositionParams
}

// DocumentSymbolParams contains document symbol request parameters.
type DocumentSymbolParams struct {
	// TextDocument is the document identifier.
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// WorkspaceSymbolParams contains workspace symbol query parameters.
type WorkspaceSymbolParams struct {
	// Query is a non-empty query string to filter symbols.
	Query string `json:"query"`
}

// DidOpenTextDocumentParams contains params for textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	// TextDocument is the document that was opened.
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidCloseTextDocumentParams contains params for textDocument/didClose.
type DidCloseTextDocumentParams struct {
	// TextDocument is the document that was closed.
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// HoverResult contains hover information.
type HoverResult struct {
	// Contents is the hover content.
	Contents MarkupContent `json:"contents"`

	// Range is the range this hover applies to.
	Range *Range `json:"range,omitempty"`
}

// MarkupContent represents documentation content.
type MarkupContent struct {
	// Kind is the type of markup: "plaintext" or "markdown".
	Kind string `json:"kind"`

	// Value is the actual content.
	Value string `json:"value"`
}

// WorkspaceEdit represents changes to many resources.
type WorkspaceEdit struct {
	// Changes is a map from URI to list of text edits.
	Changes map[string][]TextEdit `json:"changes,omitempty"`

	// DocumentChanges are versioned document edits (preferred over Changes).
	DocumentChanges []TextDocumentEdit `json:"documentChanges,omitempty"`
}

// TextEdit represents a single text change.
type TextEdit struct {
	// Range is the range to replace.
	Range Range `json:"range"`

	// NewText is the replacement text.
	NewText string `json:"newText"`
}

// TextDocumentEdit describes edits to a specific document version.
type TextDocumentEdit struct {
	// TextDocument identifies the document.
	TextDocument VersionedTextDocumentIdentifier `json:"textDocument"`

	// Edits is the list of edits.
	Edits []TextEdit `json:"edits"`
}

// CompletionList represents a collection of completion items.
type CompletionList struct {
	// IsIncomplete indicates further typing should recompute the list.
	IsIncomplete bool `json:"isIncomplete"`

	// Items are the completion items.
	Items []CompletionItem `json:"items"`
}

// CompletionItem represents a single completion suggestion.
type CompletionItem struct {
	// Label is the text shown in the completion list.
	Label string `json:"label"`

	// Kind is the completion item kind (function, variable, etc.).
	Kind int `json:"kind,omitempty"`

	// Detail is additional information such as a type signature.
	Detail string `json:"detail,omitempty"`

	// Documentation is the item's documentation, if any.
	Documentation interface{} `json:"documentation,omitempty"`

	// InsertText is the text to insert. Falls back to Label when empty.
	InsertText string `json:"insertText,omitempty"`

	// SortText overrides Label for sorting.
	SortText string `json:"sortText,omitempty"`
}

// SymbolInformation represents flat information about a symbol.
type SymbolInformation struct {
	// Name is the symbol's name.
	Name string `json:"name"`

	// Kind is the symbol kind (function, class, etc.).
	Kind SymbolKind `json:"kind"`

	// Location is where the symbol is defined.
	Location Location `json:"location"`

	// ContainerName is the name of the containing symbol.
	ContainerName string `json:"containerName,omitempty"`
}

// DocumentSymbol represents a symbol in the hierarchical outline shape.
type DocumentSymbol struct {
	// Name is the symbol's name.
	Name string `json:"name"`

	// Detail is additional detail such as a signature.
	Detail string `json:"detail,omitempty"`

	// Kind is the symbol kind.
	Kind SymbolKind `json:"kind"`

	// Range is the full span of the symbol including its body.
	Range Range `json:"range"`

	// SelectionRange is the span of the symbol's name.
	SelectionRange Range `json:"selectionRange"`

	// Children are nested symbols.
	Children []DocumentSymbol `json:"children,omitempty"`
}

// SymbolKind represents the kind of a symbol.
type SymbolKind int

// Symbol kinds as defined by the LSP specification.
const (
	SymbolKindFile          SymbolKind = 1
	SymbolKindModule        SymbolKind = 2
	SymbolKindNamespace     SymbolKind = 3
	SymbolKindPackage       SymbolKind = 4
	SymbolKindClass         SymbolKind = 5
	SymbolKindMethod        SymbolKind = 6
	SymbolKindProperty      SymbolKind = 7
	SymbolKindField         SymbolKind = 8
	SymbolKindConstructor   SymbolKind = 9
	SymbolKindEnum          SymbolKind = 10
	SymbolKindInterface     SymbolKind = 11
	SymbolKindFunction      SymbolKind = 12
	SymbolKindVariable      SymbolKind = 13
	SymbolKindConstant      SymbolKind = 14
	SymbolKindString        SymbolKind = 15
	SymbolKindNumber        SymbolKind = 16
	SymbolKindBoolean       SymbolKind = 17
	SymbolKindArray         SymbolKind = 18
	SymbolKindObject        SymbolKind = 19
	SymbolKindKey           SymbolKind = 20
	SymbolKindNull          SymbolKind = 21
	SymbolKindEnumMember    SymbolKind = 22
	SymbolKindStruct        SymbolKind = 23
	SymbolKindEvent         SymbolKind = 24
	SymbolKindOperator      SymbolKind = 25
	SymbolKindTypeParameter SymbolKind = 26
)

// String returns the LSP name for the symbol kind.
func (k SymbolKind) String() string {
	names := map[SymbolKind]string{
		SymbolKindFile: "file", SymbolKindModule: "module",
		SymbolKindNamespace: "namespace", SymbolKindPackage: "package",
		SymbolKindClass: "class", SymbolKindMethod: "method",
		SymbolKindProperty: "property", SymbolKindField: "field",
		SymbolKindConstructor: "constructor", SymbolKindEnum: "enum",
		SymbolKindInterface: "interface", SymbolKindFunction: "function",
		SymbolKindVariable: "variable", SymbolKindConstant: "constant",
		SymbolKindString: "string", SymbolKindNumber: "number",
		SymbolKindBoolean: "boolean", SymbolKindArray: "array",
		SymbolKindObject: "object", SymbolKindKey: "key",
		SymbolKindNull: "null", SymbolKindEnumMember: "enum member",
		SymbolKindStruct: "struct", SymbolKindEvent: "event",
		SymbolKindOperator: "operator", SymbolKindTypeParameter: "type parameter",
	}
	if name, ok := names[k]; ok {
		return name
	}
	return "unknown"
}

// =============================================================================
// NOTIFICATION PAYLOADS (peer -> gateway)
// =============================================================================

// PublishDiagnosticsParams contains params for textDocument/publishDiagnostics.
type PublishDiagnosticsParams struct {
	// URI is the document these diagnostics apply to.
	URI string `json:"uri"`

	// Diagnostics replaces all previous diagnostics for the document.
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Diagnostic represents one diagnostic item such as a compiler error.
type Diagnostic struct {
	// Range is the span the diagnostic applies to.
	Range Range `json:"range"`

	// Severity is 1=error, 2=warning, 3=information, 4=hint.
	Severity int `json:"severity,omitempty"`

	// Code is the diagnostic's code, if any.
	Code interface{} `json:"code,omitempty"`

	// Source names the producer (e.g., "gopls").
	Source string `json:"source,omitempty"`

	// Message is the diagnostic text.
	Message string `json:"message"`
}

// LogMessageParams contains params for window/logMessage.
type LogMessageParams struct {
	// Type is 1=error, 2=warning, 3=info, 4=log.
	Type int `json:"type"`

	// Message is the log text.
	Message string `json:"message"`
}

// =============================================================================
// INITIALIZE TYPES
// =============================================================================

// InitializeParams contains initialization parameters.
type InitializeParams struct {
	// ProcessID is the process ID of the parent process.
	ProcessID int `json:"processId"`

	// RootURI is the root URI of the workspace (preferred over rootPath).
	RootURI string `json:"rootUri"`

	// RootPath is the root path of the workspace (deprecated).
	RootPath string `json:"rootPath,omitempty"`

	// Capabilities describes what the client supports.
	Capabilities ClientCapabilities `json:"capabilities"`

	// InitializationOptions are custom initialization options.
	InitializationOptions interface{} `json:"initializationOptions,omitempty"`

	// WorkspaceFolders are the workspace folders if supported.
	WorkspaceFolders []WorkspaceFolder `json:"workspaceFolders,omitempty"`
}

// WorkspaceFolder represents a workspace folder.
type WorkspaceFolder struct {
	// URI is the folder URI.
	URI string `json:"uri"`

	// Name is the name of the folder.
	Name string `json:"name"`
}

// ClientCapabilities describes what the client supports.
type ClientCapabilities struct {
	// TextDocument describes text document capabilities.
	TextDocument TextDocumentClientCapabilities `json:"textDocument,omitempty"`

	// Workspace describes workspace capabilities.
	Workspace WorkspaceClientCapabilities `json:"workspace,omitempty"`
}

// TextDocumentClientCapabilities describes text document capabilities.
type TextDocumentClientCapabilities struct {
	// Synchronization describes document sync capabilities.
	Synchronization *TextDocumentSyncClientCapabilities `json:"synchronization,omitempty"`

	// Definition describes go-to-definition support.
	Definition *DynamicRegistrationCapability `json:"definition,omitempty"`

	// TypeDefinition describes go-to-type-definition support.
	TypeDefinition *DynamicRegistrationCapability `json:"typeDefinition,omitempty"`

	// Implementation describes go-to-implementation support.
	Implementation *DynamicRegistrationCapability `json:"implementation,omitempty"`

	// References describes find-references support.
	References *DynamicRegistrationCapability `json:"references,omitempty"`

	// Hover describes hover support.
	Hover *HoverCapabilities `json:"hover,omitempty"`

	// Completion describes completion support.
	Completion *CompletionCapabilities `json:"completion,omitempty"`

	// DocumentSymbol describes outline support.
	DocumentSymbol *DocumentSymbolCapabilities `json:"documentSymbol,omitempty"`

	// Rename describes rename support.
	Rename *RenameCapabilities `json:"rename,omitempty"`

	// PublishDiagnostics describes diagnostics consumption support.
	PublishDiagnostics *PublishDiagnosticsCapabilities `json:"publishDiagnostics,omitempty"`
}

// DynamicRegistrationCapability is the common single-field capability shape.
type DynamicRegistrationCapability struct {
	// DynamicRegistration indicates dynamic registration is supported.
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`
}

// TextDocumentSyncClientCapabilities describes sync capabilities.
type TextDocumentSyncClientCapabilities struct {
	// DynamicRegistration indicates dynamic registration is supported.
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`

	// DidSave indicates didSave notifications are supported.
	DidSave bool `json:"didSave,omitempty"`
}

// HoverCapabilities describes hover support.
type HoverCapabilities struct {
	// DynamicRegistration indicates dynamic registration is supported.
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`

	// ContentFormat describes supported content formats.
	ContentFormat []string `json:"contentFormat,omitempty"`
}

// CompletionCapabilities describes completion support.
type CompletionCapabilities struct {
	// DynamicRegistration indicates dynamic registration is supported.
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`

	// ContextSupport indicates completion context is supported.
	ContextSupport bool `json:"contextSupport,omitempty"`
}

// DocumentSymbolCapabilities describes outline support.
type DocumentSymbolCapabilities struct {
	// DynamicRegistration indicates dynamic registration is supported.
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`

	// HierarchicalDocumentSymbolSupport indicates DocumentSymbol trees
	// are understood in addition to flat SymbolInformation lists.
	HierarchicalDocumentSymbolSupport bool `json:"hierarchicalDocumentSymbolSupport,omitempty"`
}

// RenameCapabilities describes rename support.
type RenameCapabilities struct {
	// DynamicRegistration indicates dynamic registration is supported.
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`

	// PrepareSupport indicates prepareRename is supported.
	PrepareSupport bool `json:"prepareSupport,omitempty"`
}

// PublishDiagnosticsCapabilities describes diagnostics consumption support.
type PublishDiagnosticsCapabilities struct {
	// RelatedInformation indicates related info is understood.
	RelatedInformation bool `json:"relatedInformation,omitempty"`
}

// WorkspaceClientCapabilities describes workspace capabilities.
type WorkspaceClientCapabilities struct {
	// ApplyEdit indicates applyEdit requests are supported.
	ApplyEdit bool `json:"applyEdit,omitempty"`

	// WorkspaceEdit describes workspace edit capabilities.
	WorkspaceEdit *WorkspaceEditClientCapabilities `json:"workspaceEdit,omitempty"`

	// Symbol describes workspace symbol capabilities.
	Symbol *DynamicRegistrationCapability `json:"symbol,omitempty"`
}

// WorkspaceEditClientCapabilities describes workspace edit capabilities.
type WorkspaceEditClientCapabilities struct {
	// DocumentChanges indicates documentChanges are supported.
	DocumentChanges bool `json:"documentChanges,omitempty"`
}

// InitializeResult contains the peer's response to initialize.
type InitializeResult struct {
	// Capabilities describes what the peer supports.
	Capabilities ServerCapabilities `json:"capabilities"`

	// ServerInfo contains optional peer information.
	ServerInfo *ServerInfo `json:"serverInfo,omitempty"`
}

// ServerInfo contains information about the peer.
type ServerInfo struct {
	// Name is the peer's name.
	Name string `json:"name"`

	// Version is the peer's version.
	Version string `json:"version,omitempty"`
}

// ServerCapabilities describes what the peer supports.
type ServerCapabilities struct {
	// TextDocumentSync describes how documents are synced.
	TextDocumentSync interface{} `json:"textDocumentSync,omitempty"`

	// DefinitionProvider indicates textDocument/definition is supported.
	DefinitionProvider interface{} `json:"definitionProvider,omitempty"`

	// TypeDefinitionProvider indicates textDocument/typeDefinition is supported.
	TypeDefinitionProvider interface{} `json:"typeDefinitionProvider,omitempty"`

	// ImplementationProvider indicates textDocument/implementation is supported.
	ImplementationProvider interface{} `json:"implementationProvider,omitempty"`

	// ReferencesProvider indicates textDocument/references is supported.
	ReferencesProvider interface{} `json:"referencesProvider,omitempty"`

	// HoverProvider indicates textDocument/hover is supported.
	HoverProvider interface{} `json:"hoverProvider,omitempty"`

	// CompletionProvider indicates textDocument/completion is supported.
	CompletionProvider interface{} `json:"completionProvider,omitempty"`

	// DocumentSymbolProvider indicates textDocument/documentSymbol is supported.
	DocumentSymbolProvider interface{} `json:"documentSymbolProvider,omitempty"`

	// RenameProvider indicates textDocument/rename is supported.
	RenameProvider interface{} `json:"renameProvider,omitempty"`

	// WorkspaceSymbolProvider indicates workspace/symbol is supported.
	WorkspaceSymbolProvider interface{} `json:"workspaceSymbolProvider,omitempty"`
}

// HasDefinitionProvider returns true if definition is supported.
func (c *ServerCapabilities) HasDefinitionProvider() bool {
	return c.DefinitionProvider != nil && c.DefinitionProvider != false
}

// HasTypeDefinitionProvider returns true if typeDefinition is supported.
func (c *ServerCapabilities) HasTypeDefinitionProvider() bool {
	return c.TypeDefinitionProvider != nil && c.TypeDefinitionProvider != false
}

// HasImplementationProvider returns true if implementation is supported.
func (c *ServerCapabilities) HasImplementationProvider() bool {
	return c.ImplementationProvider != nil && c.ImplementationProvider != false
}

// HasReferencesProvider returns true if references is supported.
func (c *ServerCapabilities) HasReferencesProvider() bool {
	return c.ReferencesProvider != nil && c.ReferencesProvider != false
}

// HasHoverProvider returns true if hover is supported.
func (c *ServerCapabilities) HasHoverProvider() bool {
	return c.HoverProvider != nil && c.HoverProvider != false
}

// HasCompletionProvider returns true if completion is supported.
func (c *ServerCapabilities) HasCompletionProvider() bool {
	return c.CompletionProvider != nil && c.CompletionProvider != false
}

// HasDocumentSymbolProvider returns true if documentSymbol is supported.
func (c *ServerCapabilities) HasDocumentSymbolProvider() bool {
	return c.DocumentSymbolProvider != nil && c.DocumentSymbolProvider != false
}

// HasRenameProvider returns true if rename is supported.
func (c *ServerCapabilities) HasRenameProvider() bool {
	return c.RenameProvider != nil && c.RenameProvider != false
}

// HasWorkspaceSymbolProvider returns true if workspace/symbol is supported.
func (c *ServerCapabilities) HasWorkspaceSymbolProvider() bool {
	return c.WorkspaceSymbolProvider != nil && c.WorkspaceSymbolProvider != false
}
