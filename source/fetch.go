package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ByLCY/quire/errs"
)

// Page 是抓取到的网页。
type Page struct {
	URL  string // 跟随重定向后的最终地址
	HTML []byte
}

// Fetcher 抓取网页。实现需要遵守 ctx 的取消与超时。
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// DefaultUserAgent 模拟常见桌面浏览器，部分站点会拒绝无 UA 的请求。
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// HTTPFetcher 使用 net/http 抓取网页。
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
	MaxBytes  int64 // <=0 表示不限制
}

// Fetch 发起 GET 请求，跟随重定向，非 2xx 状态视为 FetchError。
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	const op = "source.fetch"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, errs.Wrap(errs.KindValidation, op, err, "Please enter a valid website URL")
	}
	ua := f.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Cache-Control", "no-cache")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Page{}, classifyFetchError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, statusError(op, resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if f.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return Page{}, classifyFetchError(op, err)
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return Page{}, errs.Fetch(op, "The webpage is too large (more than %d bytes)", f.MaxBytes)
	}
	return Page{URL: resp.Request.URL.String(), HTML: data}, nil
}

func statusError(op string, code int) error {
	switch {
	case code == http.StatusNotFound || (code >= 400 && code < 500):
		return errs.Fetch(op, "The webpage could not be found (%d). Please check the URL.", code)
	case code >= 500:
		return errs.Fetch(op, "The website is experiencing server issues (%d). Please try again later.", code)
	default:
		return errs.Fetch(op, "unexpected HTTP status %d", code)
	}
}

// classifyFetchError 把底层网络错误转换为可读的 FetchError。
func classifyFetchError(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()):
		return errs.Wrap(errs.KindFetch, op, err, "The website took too long to load. Please try again or check if the URL is accessible.")
	case errors.Is(err, context.Canceled):
		return errs.Wrap(errs.KindFetch, op, err, "the request was cancelled")
	default:
		return errs.Wrap(errs.KindFetch, op, err, "Could not reach the website. Please check the URL and try again.")
	}
}

// BrowserFetcher 使用无头 Chrome 加载页面，等待 body 就绪后读取渲染后的 HTML，
// 适用于依赖脚本生成内容的站点。
type BrowserFetcher struct {
	ExecPath  string
	UserAgent string
	// Settle 是 body 就绪后额外等待的时间，让异步请求有机会完成。
	Settle time.Duration
}

// Fetch 启动一个独立的浏览器实例完成抓取，结束后释放。
func (f *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	const op = "source.browser"
	ua := f.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.UserAgent(ua),
	)
	if f.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(f.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	var html, location string
	actions := []chromedp.Action{
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if f.Settle > 0 {
		actions = append(actions, chromedp.Sleep(f.Settle))
	}
	actions = append(actions,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return Page{}, classifyFetchError(op, err)
	}
	if location == "" {
		location = rawURL
	}
	return Page{URL: location, HTML: []byte(html)}, nil
}

var blockedHosts = []string{"localhost", "127.0.0.1", "0.0.0.0"}

// NormalizeURL 去除首尾空白、补全 https:// 前缀，只接受 http/https 的公网地址。
func NormalizeURL(raw string) (string, error) {
	const op = "source.url"
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errs.Validation(op, "Please enter a URL")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", errs.Wrap(errs.KindValidation, op, err, "Please enter a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errs.Validation(op, "Only HTTP and HTTPS URLs are supported")
	}
	host := u.Hostname()
	if len(host) < 3 {
		return "", errs.Validation(op, "Please enter a valid website URL")
	}
	for _, blocked := range blockedHosts {
		if strings.Contains(host, blocked) {
			return "", errs.Validation(op, "Local URLs are not supported for security reasons")
		}
	}
	return u.String(), nil
}

var unsafeFilenameChars = strings.NewReplacer(
	"<", "-", ">", "-", ":", "-", `"`, "-", "/", "-", `\`, "-", "|", "-", "?", "-", "*", "-",
)

// FilenameForURL 生成 "host-最后一段路径-YYYY-MM-DD.pdf" 形式的文件名。
func FilenameForURL(rawURL string, now time.Time) string {
	date := now.UTC().Format(time.DateOnly)
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return fmt.Sprintf("website-%s.pdf", date)
	}
	name := u.Hostname()
	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(parts) > 0 {
		name += "-" + parts[len(parts)-1]
	}
	name = unsafeFilenameChars.Replace(name)
	if r := []rune(name); len(r) > 50 {
		name = string(r[:50])
	}
	return fmt.Sprintf("%s-%s.pdf", name, date)
}
