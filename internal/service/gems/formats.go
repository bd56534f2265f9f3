// Package gems implements the gem command engine: command parsing, the
// input/output transform pipeline, and execution dispatch against the
// gem store and the generative backend.
package gems

import "github.com/kaiwa-ai/gemrack/internal/model"

type formatLabel struct {
	id    string
	label string
}

// Registered formats in display order. The labels are rendering-only;
// execution always branches on the raw identifier.
var inputFormats = []formatLabel{
	{model.InputFree, "free text"},
	{model.InputBulletPoints, "bullet points"},
	{model.InputJSON, "JSON"},
	{model.InputURLList, "URL list"},
	{model.InputSlackThreadURL, "Slack thread URL"},
}

var outputFormats = []formatLabel{
	{model.OutputPlainText, "plain text"},
	{model.OutputMarkdown, "Markdown"},
	{model.OutputJSON, "JSON"},
	{model.OutputMarpMarkdown, "Marp markdown (slides)"},
	{model.OutputImageURL, "generated image"},
}

// LabelForInput returns the display label for an input format identifier.
// Unknown identifiers are returned as-is so rendering never fails.
func LabelForInput(id string) string {
	for _, f := range inputFormats {
		if f.id == id {
			return f.label
		}
	}
	return id
}

// LabelForOutput returns the display label for an output format identifier.
func LabelForOutput(id string) string {
	for _, f := range outputFormats {
		if f.id == id {
			return f.label
		}
	}
	return id
}

// InputFormatIDs returns the registered input format identifiers in order.
func InputFormatIDs() []string {
	ids := make([]string, len(inputFormats))
	for i, f := range inputFormats {
		ids[i] = f.id
	}
	return ids
}

func knownInputFormat(id string) bool {
	for _, f := range inputFormats {
		if f.id == id {
			return true
		}
	}
	return false
}

func knownOutputFormat(id string) bool {
	for _, f := range outputFormats {
		if f.id == id {
			return true
		}
	}
	return false
}

// OutputFormatIDs returns the registered output format identifiers in order.
func OutputFormatIDs() []string {
	ids := make([]string, len(outputFormats))
	for i, f := range outputFormats {
		ids[i] = f.id
	}
	return ids
}
