package llm

import (
	"cmp"
	"fmt"
	"strings"
)

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func messages(systemPrompt, userPrompt string) []chatMessage {
	out := make([]chatMessage, 0, 2)
	if s := strings.TrimSpace(systemPrompt); s != "" {
		out = append(out, chatMessage{Role: "system", Content: s})
	}
	return append(out, chatMessage{Role: "user", Content: userPrompt})
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (r chatResponse) completion() (Completion, error) {
	var finish, refusal string
	for _, choice := range r.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return Completion{
				Content:          content,
				Model:            r.Model,
				PromptTokens:     r.Usage.PromptTokens,
				CompletionTokens: r.Usage.CompletionTokens,
			}, nil
		}
		finish = cmp.Or(finish, choice.FinishReason)
		refusal = cmp.Or(refusal, strings.TrimSpace(choice.Message.Refusal))
	}
	return Completion{}, fmt.Errorf("%w (choices=%d, finish_reason=%q, refusal=%q)", errEmptyContent, len(r.Choices), finish, refusal)
}
