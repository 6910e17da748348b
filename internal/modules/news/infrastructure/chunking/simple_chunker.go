package chunking

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

// Chunker 把过长的文章正文切成若干段，size <= 0 表示不切分
type Chunker struct {
	ChunkSize    int
	ChunkOverlap int

	initOnce sync.Once
	initErr  error
	splitter document.Transformer
}

func NewChunker(size, overlap int) *Chunker {
	if overlap < 0 {
		overlap = 0
	}
	if size > 0 && overlap >= size {
		overlap = size / 2
	}
	return &Chunker{ChunkSize: size, ChunkOverlap: overlap}
}

// Enabled 是否会切分
func (c *Chunker) Enabled() bool {
	return c != nil && c.ChunkSize > 0
}

// Split 按段落/句子边界递归切分，按字符（rune）计长度
func (c *Chunker) Split(ctx context.Context, text string) ([]string, error) {
	if text == "" {
		return []string{}, nil
	}
	if !c.Enabled() || len([]rune(text)) <= c.ChunkSize {
		return []string{text}, nil
	}

	c.initOnce.Do(func() {
		impl, err := recursive.NewSplitter(ctx, &recursive.Config{
			ChunkSize:   c.ChunkSize,
			OverlapSize: c.ChunkOverlap,
			Separators:  []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " "},
			LenFunc: func(s string) int {
				return len([]rune(s))
			},
			KeepType: recursive.KeepTypeEnd,
		})
		if err != nil {
			c.initErr = err
			return
		}
		c.splitter = impl
	})
	if c.initErr != nil {
		return nil, c.initErr
	}
	if c.splitter == nil {
		return nil, fmt.Errorf("recursive splitter not initialized")
	}

	frags, err := c.splitter.Transform(ctx, []*schema.Document{{Content: text}})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(frags))
	for _, f := range frags {
		if f == nil || f.Content == "" {
			continue
		}
		out = append(out, f.Content)
	}
	if len(out) == 0 {
		return []string{text}, nil
	}
	return out, nil
}
