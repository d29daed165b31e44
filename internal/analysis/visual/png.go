package visual

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"stratlab/internal/analysis/performance"

	"github.com/chromedp/chromedp"
)

const screenshotTimeout = 20 * time.Second

var (
	headlessOnce sync.Once
	headlessErr  error
)

// EnsureHeadlessAvailable 检查本机能否启动 headless Chrome，结果缓存。
func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		parent, cancel := chromedp.NewContext(ctx)
		defer cancel()
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

// RenderEquityPNG 先渲染 HTML，再用 headless Chrome 截图。
func RenderEquityPNG(ctx context.Context, title string, s performance.Summary) ([]byte, error) {
	html, err := RenderEquityHTML(title, s)
	if err != nil {
		return nil, err
	}
	return renderHTMLToPNG(ctx, html, chartWidthPx+40, equityHeightPx+drawdownHeightPx+80)
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, screenshotTimeout)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 90),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
