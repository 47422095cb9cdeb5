// Package messages defines the closed set of messages exchanged between the
// service, the extension and its page agents. Every message travels as
// {"type": "...", "data": {...}}.
package messages

import (
	"bytes"
	"encoding/json"
	"fmt"

	"factlens/internal/models"
)

// Type is the message discriminator
type Type string

const (
	TypeAnalyzeRequest         Type = "analyzeRequest"
	TypeGetHistory             Type = "getHistory"
	TypeHistory                Type = "history"
	TypeAnalysisProgress       Type = "analysisProgress"
	TypeAnalysisComplete       Type = "analysisComplete"
	TypeAnalysisError          Type = "analysisError"
	TypeSettingsChanged        Type = "settingsChanged"
	TypeContentReady           Type = "contentScriptReady"
	TypeExtractContent         Type = "extractContent"
	TypeExtractContentResponse Type = "extractContentResponse"
	TypePing                   Type = "ping"
	TypeTabUpdated             Type = "tabUpdated"
)

// PongToken is the only acceptable liveness acknowledgement.
const PongToken = "pong"

// Message is implemented only by the types in this package.
type Message interface {
	Type() Type
	sealed()
}

type AnalyzeRequest struct {
	TabID int `json:"tabId"`
}

type GetHistory struct{}

type History struct {
	Entries []models.HistoryEntry `json:"entries"`
}

type AnalysisProgress struct {
	TabID int    `json:"tabId"`
	Stage string `json:"stage"`
}

type AnalysisComplete struct {
	TabID   int                   `json:"tabId"`
	URL     string                `json:"url,omitempty"`
	Results models.AnalysisResult `json:"results"`
}

type AnalysisError struct {
	TabID   int    `json:"tabId"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type SettingsChanged struct {
	Settings models.Settings `json:"settings"`
}

type ContentReady struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url,omitempty"`
}

type ExtractContent struct{}

type ExtractContentResponse struct {
	Success bool                `json:"success"`
	Content *models.PageContent `json:"content,omitempty"`
	Error   string              `json:"error,omitempty"`
}

type Ping struct{}

type TabUpdated struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url"`
}

func (AnalyzeRequest) Type() Type         { return TypeAnalyzeRequest }
func (GetHistory) Type() Type             { return TypeGetHistory }
func (History) Type() Type                { return TypeHistory }
func (AnalysisProgress) Type() Type       { return TypeAnalysisProgress }
func (AnalysisComplete) Type() Type       { return TypeAnalysisComplete }
func (AnalysisError) Type() Type          { return TypeAnalysisError }
func (SettingsChanged) Type() Type        { return TypeSettingsChanged }
func (ContentReady) Type() Type           { return TypeContentReady }
func (ExtractContent) Type() Type         { return TypeExtractContent }
func (ExtractContentResponse) Type() Type { return TypeExtractContentResponse }
func (Ping) Type() Type                   { return TypePing }
func (TabUpdated) Type() Type             { return TypeTabUpdated }

func (AnalyzeRequest) sealed()         {}
func (GetHistory) sealed()             {}
func (History) sealed()                {}
func (AnalysisProgress) sealed()       {}
func (AnalysisComplete) sealed()       {}
func (AnalysisError) sealed()          {}
func (SettingsChanged) sealed()        {}
func (ContentReady) sealed()           {}
func (ExtractContent) sealed()         {}
func (ExtractContentResponse) sealed() {}
func (Ping) sealed()                   {}
func (TabUpdated) sealed()             {}

type envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode serialises m with its discriminator.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("cannot encode nil message")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", m.Type(), err)
	}
	return json.Marshal(envelope{Type: m.Type(), Data: data})
}

// Decode parses a message envelope. Unknown discriminators are rejected.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}

	var m Message
	switch env.Type {
	case TypeAnalyzeRequest:
		m = &AnalyzeRequest{}
	case TypeGetHistory:
		m = &GetHistory{}
	case TypeHistory:
		m = &History{}
	case TypeAnalysisProgress:
		m = &AnalysisProgress{}
	case TypeAnalysisComplete:
		m = &AnalysisComplete{}
	case TypeAnalysisError:
		m = &AnalysisError{}
	case TypeSettingsChanged:
		m = &SettingsChanged{}
	case TypeContentReady:
		m = &ContentReady{}
	case TypeExtractContent:
		m = &ExtractContent{}
	case TypeExtractContentResponse:
		m = &ExtractContentResponse{}
	case TypePing:
		m = &Ping{}
	case TypeTabUpdated:
		m = &TabUpdated{}
	case "":
		return nil, fmt.Errorf("malformed message: missing type")
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}

	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, m); err != nil {
			return nil, fmt.Errorf("malformed %s message: %w", env.Type, err)
		}
	}

	return deref(m), nil
}

// deref returns the value form of the decoded pointer so callers can switch
// on value types.
func deref(m Message) Message {
	switch v := m.(type) {
	case *AnalyzeRequest:
		return *v
	case *GetHistory:
		return *v
	case *History:
		return *v
	case *AnalysisProgress:
		return *v
	case *AnalysisComplete:
		return *v
	case *AnalysisError:
		return *v
	case *SettingsChanged:
		return *v
	case *ContentReady:
		return *v
	case *ExtractContent:
		return *v
	case *ExtractContentResponse:
		return *v
	case *Ping:
		return *v
	case *TabUpdated:
		return *v
	}
	return m
}

// IsPong reports whether raw is exactly the liveness acknowledgement token.
func IsPong(raw []byte) bool {
	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return false
	}
	return token == PongToken
}

// PongReply is the encoded acknowledgement an agent sends back for Ping.
func PongReply() json.RawMessage {
	return json.RawMessage(`"` + PongToken + `"`)
}

// DecodeExtractResponse interprets an agent's reply to ExtractContent.
// The reply is the bare {success, content, error} object.
func DecodeExtractResponse(raw []byte) (*ExtractContentResponse, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("no response from content script")
	}
	var resp ExtractContentResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("malformed extraction response: %w", err)
	}
	return &resp, nil
}
