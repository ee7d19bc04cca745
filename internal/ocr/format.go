package ocr

import "strings"

// FormatDefault is the shared output formatter: per structured record it
// passes the raw JSON through and renders each parsing block with a
// template keyed by (format, block label). Variants that need different
// content assembly implement their own FormatOutput instead.
func FormatDefault(results []PageResult, format string) Output {
	out := Output{Success: true, Format: format, Results: make([]map[string]any, 0, len(results))}
	var content strings.Builder
	for _, res := range results {
		if !res.Structured() {
			continue
		}
		out.Results = append(out.Results, res.JSON)
		for _, blk := range res.Blocks() {
			content.WriteString(renderBlock(blk, format))
		}
	}
	out.Content = content.String()
	return out
}

func renderBlock(blk Block, format string) string {
	switch format {
	case FormatMarkdown:
		switch blk.Label {
		case "doc_title":
			return "# " + blk.Content + "\n\n"
		case "paragraph_title":
			return "## " + blk.Content + "\n\n"
		default:
			// tables and generic text render as-is
			return blk.Content + "\n\n"
		}
	case FormatHTML:
		switch blk.Label {
		case "doc_title":
			return "<h1>" + blk.Content + "</h1>\n"
		case "paragraph_title":
			return "<h2>" + blk.Content + "</h2>\n"
		case "table":
			return blk.Content + "\n"
		default:
			return "<p>" + blk.Content + "</p>\n"
		}
	}
	return ""
}
