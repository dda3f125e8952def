package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider implements Provider using the Google Gemini API.
type GeminiProvider struct {
	client *genai.Client
	config Config
}

// NewGeminiProvider creates a new Gemini provider. The API key is read from
// the GEMINI_API_KEY environment variable when apiKey is empty.
func NewGeminiProvider(ctx context.Context, apiKey string, cfg Config) (*GeminiProvider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}

	clientCfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if apiKey != "" {
		clientCfg.APIKey = apiKey
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiProvider{client: client, config: cfg}, nil
}

// Chat implements Provider.Chat for Gemini.
func (p *GeminiProvider) Chat(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error) {
	contents, err := p.convertMessages(messages)
	if err != nil {
		return nil, err
	}

	genCfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(p.config.MaxTokens),
		Temperature:     genai.Ptr(float32(p.config.Temperature)),
	}
	if systemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, tool := range tools {
			decl, err := p.convertToolDefinition(tool)
			if err != nil {
				return nil, err
			}
			decls = append(decls, decl)
		}
		genCfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.config.Model, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}

	return p.convertResponse(resp)
}

// Name implements Provider.Name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model implements Provider.Model.
func (p *GeminiProvider) Model() string {
	return p.config.Model
}

// convertMessages maps the conversation history into Gemini contents.
// Assistant tool calls become model-role function-call parts and tool
// results become user-role function-response parts.
func (p *GeminiProvider) convertMessages(messages []Message) ([]*genai.Content, error) {
	// Function responses must carry the called function's name, not the
	// call ID, so map every call ID back to its name first.
	callNames := make(map[string]string)
	for _, msg := range messages {
		for _, toolUse := range msg.ToolUse {
			callNames[toolUse.ID] = toolUse.Name
		}
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		var parts []*genai.Part

		for _, toolResult := range msg.ToolResult {
			name := callNames[toolResult.ToolUseID]
			if name == "" {
				name = toolResult.ToolUseID
			}
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:   toolResult.ToolUseID,
					Name: name,
					Response: map[string]any{
						"content":  toolResult.Content,
						"is_error": toolResult.IsError,
					},
				},
			})
		}

		if msg.Content != "" && len(msg.ToolResult) == 0 {
			parts = append(parts, genai.NewPartFromText(msg.Content))
		}

		for _, toolUse := range msg.ToolUse {
			var args map[string]any
			if len(toolUse.Input) > 0 {
				if err := json.Unmarshal(toolUse.Input, &args); err != nil {
					return nil, fmt.Errorf("decoding tool call input for %s: %w", toolUse.Name, err)
				}
			}
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					ID:   toolUse.ID,
					Name: toolUse.Name,
					Args: args,
				},
			})
		}

		role := genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents, nil
}

// convertToolDefinition maps a JSON-schema tool definition onto Gemini's
// schema types. Only the flat object shapes our tools declare are handled.
func (p *GeminiProvider) convertToolDefinition(tool ToolDefinition) (*genai.FunctionDeclaration, error) {
	schema := &genai.Schema{Type: genai.TypeObject}

	if props, ok := tool.InputSchema["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			prop, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("tool %s: property %s is not an object schema", tool.Name, name)
			}
			propSchema := &genai.Schema{}
			if typ, ok := prop["type"].(string); ok {
				propSchema.Type = geminiType(typ)
			}
			if desc, ok := prop["description"].(string); ok {
				propSchema.Description = desc
			}
			schema.Properties[name] = propSchema
		}
	}
	if required, ok := tool.InputSchema["required"].([]string); ok {
		schema.Required = required
	}

	return &genai.FunctionDeclaration{
		Name:        tool.Name,
		Description: tool.Description,
		Parameters:  schema,
	}, nil
}

func geminiType(jsonType string) genai.Type {
	switch jsonType {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	}
	return genai.TypeString
}

// convertResponse maps Gemini's response back onto the provider type.
func (p *GeminiProvider) convertResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	response := &Response{}
	if resp.UsageMetadata != nil {
		response.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		response.StopReason = StopReasonError
		return response, nil
	}
	candidate := resp.Candidates[0]

	var textParts []string
	for i, part := range candidate.Content.Parts {
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
		if part.FunctionCall != nil {
			input, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("encoding tool call args for %s: %w", part.FunctionCall.Name, err)
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", i)
			}
			response.ToolCalls = append(response.ToolCalls, ToolUseBlock{
				ID:    id,
				Name:  part.FunctionCall.Name,
				Input: input,
			})
		}
	}
	response.Content = strings.Join(textParts, "")

	switch {
	case len(response.ToolCalls) > 0:
		response.StopReason = StopReasonToolUse
	case candidate.FinishReason == genai.FinishReasonMaxTokens:
		response.StopReason = StopReasonMaxTokens
	default:
		response.StopReason = StopReasonEndTurn
	}

	return response, nil
}
