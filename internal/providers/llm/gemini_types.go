package llm

import "encoding/json"

// Native generate-content wire shapes. Optional fields are parsed into a
// small sum type (partKind) at the boundary so nothing downstream inspects
// optional chains directly.

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Tools             []geminiTool    `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text         string              `json:"text,omitempty"`
	FunctionCall *geminiFunctionCall `json:"functionCall,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiFunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// GenerateResponse is the backend's raw single-response object. Non-streaming
// calls return it as-is; only the streaming path is normalized.
type GenerateResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type partKind int

const (
	partEmpty partKind = iota
	partText
	partFunctionCall
)

// kind classifies a native part. A function call takes precedence over text
// when both are present; absence of both is partEmpty.
func (p geminiPart) kind() partKind {
	switch {
	case p.FunctionCall != nil:
		return partFunctionCall
	case p.Text != "":
		return partText
	default:
		return partEmpty
	}
}
