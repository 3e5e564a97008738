package llm

// ModelParams are sampling parameters. Pointer fields are sent only when set
// so that an explicit zero temperature reaches the model.
type ModelParams struct {
	MaxTokens   int      `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	TopP        *float64 `yaml:"top_p,omitempty" json:"top_p,omitempty"`
}

// Merge returns p with every field set in o taking precedence.
func (p ModelParams) Merge(o *ModelParams) ModelParams {
	if o == nil {
		return p
	}
	if o.MaxTokens > 0 {
		p.MaxTokens = o.MaxTokens
	}
	if o.Temperature != nil {
		p.Temperature = o.Temperature
	}
	if o.TopP != nil {
		p.TopP = o.TopP
	}
	return p
}

type Prompt struct {
	Name string
	Text string
}

// ModelContext is an immutable request to a model.
type ModelContext struct {
	Prompts  []*Prompt
	Messages []*Message
	Tools    []*FuncTool
	Params   *ModelParams

	// Model overrides the generator's model for this request.
	Model string
}

// Tool returns the tool registered under name.
func (mc *ModelContext) Tool(name string) (*FuncTool, bool) {
	for _, t := range mc.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

type ModelContextBuilder struct {
	Prompts  []*Prompt
	Messages []*Message
	Tools    []*FuncTool
	Params   *ModelParams
	Model    string
}

func (mcb *ModelContextBuilder) Build() *ModelContext {
	return &ModelContext{
		Prompts:  append([]*Prompt(nil), mcb.Prompts...),
		Messages: append([]*Message(nil), mcb.Messages...),
		Tools:    append([]*FuncTool(nil), mcb.Tools...),
		Params:   mcb.Params,
		Model:    mcb.Model,
	}
}

// AddPrompt appends a prompt, joining it to the previous one when both
// carry the same name.
func (mcb *ModelContextBuilder) AddPrompt(prompt *Prompt) {
	if n := len(mcb.Prompts); n > 0 && mcb.Prompts[n-1].Name == prompt.Name {
		p := mcb.Prompts[n-1]
		if p.Text != "" {
			p.Text += "\n" + prompt.Text
		} else {
			p.Text = prompt.Text
		}
		return
	}
	mcb.Prompts = append(mcb.Prompts, prompt)
}

func (mcb *ModelContextBuilder) PromptText(name, text string) {
	if text == "" {
		return
	}
	mcb.AddPrompt(&Prompt{Name: name, Text: text})
}

// AddMessage appends msg. Consecutive plain-text messages from the same
// role are merged.
func (mcb *ModelContextBuilder) AddMessage(msg *Message) {
	if n := len(mcb.Messages); n > 0 {
		last := mcb.Messages[n-1]
		if mergeable(last) && mergeable(msg) && last.Role == msg.Role && last.Name == msg.Name {
			merged := *last
			merged.Content += msg.Content
			mcb.Messages[n-1] = &merged
			return
		}
	}
	mcb.Messages = append(mcb.Messages, msg)
}

func mergeable(m *Message) bool {
	return len(m.ToolCalls) == 0 && m.ToolCallID == "" && m.Role != RoleTool
}

func (mcb *ModelContextBuilder) UserText(text string) {
	mcb.AddMessage(UserMessage(text))
}

func (mcb *ModelContextBuilder) AssistantText(text string) {
	mcb.AddMessage(AssistantMessage(text))
}

func (mcb *ModelContextBuilder) AddTool(tools ...*FuncTool) {
	mcb.Tools = append(mcb.Tools, tools...)
}
