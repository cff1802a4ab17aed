package completion

import (
	"github.com/openai/openai-go/v3"
	"github.com/sealor/ai-chat/pkg/persistence"
	"google.golang.org/genai"
)

// NewParamsFromTranscript builds an OpenAI request. A non-empty system
// message is sent first and is never stored.
func NewParamsFromTranscript(model, system string, turns []persistence.Turn) *openai.ChatCompletionNewParams {
	var params openai.ChatCompletionNewParams

	params.Model = model

	if system != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(system))
	}

	for _, turn := range turns {
		var paramMessage openai.ChatCompletionMessageParamUnion

		switch turn.Role {
		case persistence.RoleAssistant:
			paramMessage = openai.AssistantMessage(turn.Content)
		case persistence.RoleSystem:
			paramMessage = openai.SystemMessage(turn.Content)
		default:
			paramMessage = openai.UserMessage(turn.Content)
		}

		params.Messages = append(params.Messages, paramMessage)
	}

	return &params
}

// NewContentsFromTranscript maps turns to Gemini contents. Gemini calls the
// assistant role "model" and takes system text as a separate instruction.
func NewContentsFromTranscript(system string, turns []persistence.Turn) ([]*genai.Content, *genai.GenerateContentConfig) {
	var config *genai.GenerateContentConfig
	if system != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case persistence.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleModel))
		case persistence.RoleSystem:
			if config == nil {
				config = &genai.GenerateContentConfig{}
			}
			config.SystemInstruction = genai.NewContentFromText(turn.Content, genai.RoleUser)
		default:
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleUser))
		}
	}
	return contents, config
}
