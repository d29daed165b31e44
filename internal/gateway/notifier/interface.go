package notifier

import "context"

// TextNotifier 是最小的文本推送接口，熔断与同步告警只依赖它。
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}
