package llm

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const noContextAnswer = "I could not find any recent news about that."

// MockChatModel 不调用外部服务，回答取上下文中的第一段
type MockChatModel struct{}

func NewMockChatModel() *MockChatModel { return &MockChatModel{} }

func (m *MockChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return schema.AssistantMessage(extractAnswer(input), nil), nil
}

func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// extractAnswer 解析最后一条用户消息里 "Context:" 与 "Question:" 之间的第一段
func extractAnswer(input []*schema.Message) string {
	for i := len(input) - 1; i >= 0; i-- {
		msg := input[i]
		if msg == nil || msg.Role != schema.User {
			continue
		}
		body, ok := strings.CutPrefix(msg.Content, "Context:\n")
		if !ok {
			break
		}
		ctxBlock, _, _ := strings.Cut(body, "\n\nQuestion: ")
		first, _, _ := strings.Cut(ctxBlock, "\n\n")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
		break
	}
	return noContextAnswer
}

var _ model.BaseChatModel = (*MockChatModel)(nil)
