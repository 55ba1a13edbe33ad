package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/logger"
)

// ErrEmptyResponse 模型返回了空内容
var ErrEmptyResponse = errors.New("empty response from model")

// LLM 带限流和 429 重试的对话模型封装，所有阶段共用一个实例
type LLM struct {
	cm         model.BaseChatModel
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
}

// NewLLM limiter 为空时不限流
func NewLLM(cm model.BaseChatModel, limiter *rate.Limiter, maxRetries int) *LLM {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &LLM{
		cm:         cm,
		limiter:    limiter,
		maxRetries: maxRetries,
		baseDelay:  2 * time.Second,
	}
}

// Generate 发送一轮 system + user 消息，返回模型文本
func (l *LLM) Generate(ctx context.Context, system, user string) (string, error) {
	var lastErr error

	for i := 0; i <= l.maxRetries; i++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", err
		}

		messages := []*schema.Message{
			{Role: schema.System, Content: system},
			{Role: schema.User, Content: user},
		}

		resp, err := l.cm.Generate(ctx, messages)
		if err != nil {
			if isRateLimited(err) && i < l.maxRetries {
				lastErr = err
				delay := l.baseDelay * time.Duration(1<<i)
				logger.Log.Warnf("模型限流，%v 后重试 (%d/%d)", delay, i+1, l.maxRetries)
				if err := sleep(ctx, delay); err != nil {
					return "", err
				}
				continue
			}
			return "", err
		}

		if resp == nil {
			return "", ErrEmptyResponse
		}
		content := strings.TrimSpace(resp.Content)
		if content == "" {
			return "", ErrEmptyResponse
		}
		return content, nil
	}
	return "", lastErr
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
