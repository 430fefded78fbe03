package genericeditor

import "github.com/dshills/prefchain/internal/preference"

// Generic editor preference names.
const (
	MatchingBrackets                = "matchingBrackets"
	MatchingBracketsColor           = "matchingBracketsColor"
	HighlightBracketAtCaretLocation = "highlightBracketAtCaretLocation"
	EnclosingBrackets               = "enclosingBrackets"
)

// Text editor preference names.
const (
	TabWidth          = "tabWidth"
	SpacesForTabs     = "spacesForTabs"
	ShowPrintMargin   = "printMargin"
	PrintMarginColumn = "printMarginColumn"
	LineNumberRuler   = "lineNumberRuler"
	CurrentLine       = "currentLine"
	CurrentLineColor  = "currentLineColor"
	ShowWhitespace    = "showWhitespaceCharacters"
)

// GenericEditorDefinitions returns the preferences of the generic editor
// store.
func GenericEditorDefinitions() []preference.Definition {
	return []preference.Definition{
		{
			Name:        MatchingBrackets,
			Type:        preference.TypeBool,
			Default:     true,
			Description: "Highlight the bracket matching the one at the caret",
		},
		{
			Name:        MatchingBracketsColor,
			Type:        preference.TypeColor,
			Default:     "127,0,85",
			Description: "Color of the matching bracket highlight",
		},
		{
			Name:        HighlightBracketAtCaretLocation,
			Type:        preference.TypeBool,
			Default:     false,
			Description: "Also highlight the bracket at the caret",
		},
		{
			Name:        EnclosingBrackets,
			Type:        preference.TypeBool,
			Default:     false,
			Description: "Highlight the brackets enclosing the caret",
		},
	}
}

// TextEditorDefinitions returns the preferences of the text editor store.
func TextEditorDefinitions() []preference.Definition {
	return []preference.Definition{
		{
			Name:        TabWidth,
			Type:        preference.TypeInt,
			Default:     4,
			Description: "Displayed width of a tab character",
			Minimum:     preference.MinValue(1),
			Maximum:     preference.MaxValue(16),
		},
		{
			Name:        SpacesForTabs,
			Type:        preference.TypeBool,
			Default:     false,
			Description: "Insert spaces when the tab key is pressed",
		},
		{
			Name:        ShowPrintMargin,
			Type:        preference.TypeBool,
			Default:     false,
			Description: "Show the print margin",
		},
		{
			Name:        PrintMarginColumn,
			Type:        preference.TypeInt,
			Default:     80,
			Description: "Column of the print margin",
			Minimum:     preference.MinValue(1),
			Maximum:     preference.MaxValue(1000),
		},
		{
			Name:        LineNumberRuler,
			Type:        preference.TypeBool,
			Default:     true,
			Description: "Show line numbers",
		},
		{
			Name:        CurrentLine,
			Type:        preference.TypeBool,
			Default:     true,
			Description: "Highlight the current line",
		},
		{
			Name:        CurrentLineColor,
			Type:        preference.TypeColor,
			Default:     "232,242,254",
			Description: "Color of the current line highlight",
		},
		{
			Name:        ShowWhitespace,
			Type:        preference.TypeBool,
			Default:     false,
			Description: "Show whitespace characters",
		},
	}
}

// GenericEditorDefaults returns the defaults of the generic editor store.
func GenericEditorDefaults() map[string]any {
	return preference.NewSchema(GenericEditorDefinitions()...).Defaults()
}

// TextEditorDefaults returns the defaults of the text editor store.
func TextEditorDefaults() map[string]any {
	return preference.NewSchema(TextEditorDefinitions()...).Defaults()
}

// NewSchema returns a schema holding the generic editor and text editor
// preferences.
func NewSchema() *preference.Schema {
	return preference.NewSchema(append(GenericEditorDefinitions(), TextEditorDefinitions()...)...)
}
