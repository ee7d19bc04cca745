package ocr

// Output format tags understood by the formatters.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Options is the open model-option mapping carried on a job request.
// Keys are engine-specific; accessors below cover the common ones.
type Options map[string]any

// Lang returns the requested language code. Empty string means unset
// (use the engine default).
func (o Options) Lang() string {
	if o == nil {
		return ""
	}
	v, _ := o["lang"].(string)
	return v
}

// Bool returns the named flag, defaulting to false.
func (o Options) Bool(key string) bool {
	if o == nil {
		return false
	}
	v, _ := o[key].(bool)
	return v
}

// PageResult is one per-page result record from an engine. Structured
// records carry the engine's JSON view; plain records carry only text.
// The variant is fixed at the engine boundary, not probed by formatters.
type PageResult struct {
	JSON map[string]any `json:"json,omitempty"`
	Text string         `json:"text,omitempty"`
}

// Structured reports whether the record carries a JSON view.
func (r PageResult) Structured() bool { return r.JSON != nil }

// Block is one recognized content region tagged with a semantic label
// ("doc_title", "paragraph_title", "table", or generic "text").
type Block struct {
	Label   string
	Content string
}

// resData returns the inner "res" mapping, falling back to the record
// itself when the engine returns the flat shape.
func (r PageResult) resData() map[string]any {
	if r.JSON == nil {
		return nil
	}
	if res, ok := r.JSON["res"].(map[string]any); ok {
		return res
	}
	return r.JSON
}

// Blocks returns the record's parsing block list in original order.
// Blocks without a label get the generic "text" label.
func (r PageResult) Blocks() []Block {
	data := r.resData()
	if data == nil {
		return nil
	}
	list, _ := data["parsing_res_list"].([]any)
	blocks := make([]Block, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		blk := Block{Label: "text"}
		if v, ok := m["block_label"].(string); ok && v != "" {
			blk.Label = v
		}
		if v, ok := m["block_content"].(string); ok {
			blk.Content = v
		}
		blocks = append(blocks, blk)
	}
	return blocks
}

// RecTexts returns the record's recognized text strings in original order.
func (r PageResult) RecTexts() []string {
	data := r.resData()
	if data == nil {
		return nil
	}
	list, _ := data["rec_texts"].([]any)
	texts := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			texts = append(texts, s)
		}
	}
	return texts
}

// Output is the normalized artifact produced regardless of which model
// variant ran: the raw per-record results plus one flattened content
// string. Model, ModelOptions and Metadata are carried through for the
// job listing surface.
type Output struct {
	Success      bool             `json:"success"`
	Format       string           `json:"format"`
	Results      []map[string]any `json:"results"`
	Content      string           `json:"content"`
	Model        string           `json:"model,omitempty"`
	ModelOptions Options          `json:"model_options,omitempty"`
	Metadata     any              `json:"metadata,omitempty"`
}

// Failure is written in place of Output when processing fails. Exactly
// one of the two exists at a terminal state for a given job.
type Failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Model   string `json:"model"`
}
