package ocr

import "testing"

func structuredRecord(blocks ...Block) PageResult {
	list := make([]any, 0, len(blocks))
	for _, b := range blocks {
		list = append(list, map[string]any{
			"block_label":   b.Label,
			"block_content": b.Content,
		})
	}
	return PageResult{JSON: map[string]any{
		"res": map[string]any{"parsing_res_list": list},
	}}
}

func textRecord(texts ...string) PageResult {
	list := make([]any, 0, len(texts))
	for _, s := range texts {
		list = append(list, s)
	}
	return PageResult{JSON: map[string]any{
		"res": map[string]any{"rec_texts": list},
	}}
}

func TestFormatDefaultMarkdown(t *testing.T) {
	results := []PageResult{structuredRecord(
		Block{Label: "doc_title", Content: "Invoice"},
		Block{Label: "text", Content: "Total: $10"},
	)}

	out := FormatDefault(results, FormatMarkdown)
	if !out.Success {
		t.Fatal("expected success")
	}
	if out.Format != FormatMarkdown {
		t.Fatalf("unexpected format: %s", out.Format)
	}
	want := "# Invoice\n\nTotal: $10\n\n"
	if out.Content != want {
		t.Fatalf("content = %q, want %q", out.Content, want)
	}
	if len(out.Results) != 1 {
		t.Fatalf("raw results must pass through, got %d", len(out.Results))
	}
}

func TestFormatDefaultHTML(t *testing.T) {
	results := []PageResult{structuredRecord(
		Block{Label: "doc_title", Content: "Invoice"},
		Block{Label: "paragraph_title", Content: "Items"},
		Block{Label: "table", Content: "<table></table>"},
		Block{Label: "text", Content: "Total: $10"},
	)}

	out := FormatDefault(results, FormatHTML)
	want := "<h1>Invoice</h1>\n<h2>Items</h2>\n<table></table>\n<p>Total: $10</p>\n"
	if out.Content != want {
		t.Fatalf("content = %q, want %q", out.Content, want)
	}
}

func TestFormatDefaultUnknownLabelFallsBack(t *testing.T) {
	results := []PageResult{structuredRecord(Block{Label: "figure_caption", Content: "Fig. 1"})}

	if got := FormatDefault(results, FormatMarkdown).Content; got != "Fig. 1\n\n" {
		t.Fatalf("markdown fallback = %q", got)
	}
	if got := FormatDefault(results, FormatHTML).Content; got != "<p>Fig. 1</p>\n" {
		t.Fatalf("html fallback = %q", got)
	}
}

func TestFormatDefaultDeterministic(t *testing.T) {
	results := []PageResult{structuredRecord(
		Block{Label: "paragraph_title", Content: "Section"},
		Block{Label: "text", Content: "body"},
	)}

	first := FormatDefault(results, FormatMarkdown).Content
	for i := 0; i < 5; i++ {
		if got := FormatDefault(results, FormatMarkdown).Content; got != first {
			t.Fatalf("content changed between calls: %q vs %q", got, first)
		}
	}
}

func TestFormatDefaultSkipsPlainRecords(t *testing.T) {
	results := []PageResult{
		{Text: "plain only"},
		structuredRecord(Block{Label: "text", Content: "kept"}),
	}

	out := FormatDefault(results, FormatMarkdown)
	if len(out.Results) != 1 {
		t.Fatalf("plain records must not pass JSON through, got %d", len(out.Results))
	}
	if out.Content != "kept\n\n" {
		t.Fatalf("content = %q", out.Content)
	}
}

func TestFormatDefaultEmptyResults(t *testing.T) {
	out := FormatDefault(nil, FormatMarkdown)
	if !out.Success {
		t.Fatal("expected success")
	}
	if out.Content != "" {
		t.Fatalf("content must be empty string, got %q", out.Content)
	}
	if out.Results == nil {
		t.Fatal("results must be present even when empty")
	}
}

func TestGeneralOCRFormatJoinsRecTexts(t *testing.T) {
	m := newGeneralOCR(nil)
	results := []PageResult{
		textRecord("line one", "line two"),
		textRecord("line three"),
	}

	out := m.FormatOutput(results, FormatMarkdown)
	want := "line one\nline two\nline three"
	if out.Content != want {
		t.Fatalf("content = %q, want %q", out.Content, want)
	}
	if len(out.Results) != 2 {
		t.Fatalf("expected 2 raw results, got %d", len(out.Results))
	}
}

func TestDocumentStructureFormatMarkdown(t *testing.T) {
	m := newDocumentStructure(nil)
	results := []PageResult{structuredRecord(
		Block{Label: "doc_title", Content: "Report"},
		Block{Label: "paragraph_title", Content: "Summary"},
		Block{Label: "table", Content: "<table></table>"},
		Block{Label: "text", Content: "body"},
	)}

	out := m.FormatOutput(results, FormatMarkdown)
	want := "# Report\n\n## Summary\n\n<table></table>\n\nbody"
	if out.Content != want {
		t.Fatalf("content = %q, want %q", out.Content, want)
	}
}

func TestDocumentStructureFormatNonMarkdown(t *testing.T) {
	m := newDocumentStructure(nil)
	results := []PageResult{structuredRecord(
		Block{Label: "doc_title", Content: "Report"},
		Block{Label: "text", Content: "body"},
	)}

	// Non-markdown formats fall back to plain content concatenation.
	out := m.FormatOutput(results, FormatHTML)
	want := "Report\n\nbody"
	if out.Content != want {
		t.Fatalf("content = %q, want %q", out.Content, want)
	}
}

func TestBlocksDefaultLabel(t *testing.T) {
	rec := PageResult{JSON: map[string]any{
		"res": map[string]any{
			"parsing_res_list": []any{map[string]any{"block_content": "untagged"}},
		},
	}}

	blocks := rec.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].Label != "text" {
		t.Fatalf("missing label must default to text, got %s", blocks[0].Label)
	}
}

func TestResDataFlatShape(t *testing.T) {
	// Engines may return the flat shape without the "res" wrapper.
	rec := PageResult{JSON: map[string]any{
		"parsing_res_list": []any{map[string]any{"block_label": "text", "block_content": "flat"}},
	}}

	out := FormatDefault([]PageResult{rec}, FormatMarkdown)
	if out.Content != "flat\n\n" {
		t.Fatalf("content = %q", out.Content)
	}
}
