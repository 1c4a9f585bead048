package download

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// TitleProber resolves the page title of a video URL with headless Chrome.
// The title is used to derive human-readable transcript filenames; failures
// are expected (no Chrome installed, offline) and callers fall back to
// NameFromURL.
type TitleProber struct {
	Timeout time.Duration

	log *logrus.Entry
}

// NewTitleProber creates a prober with the given per-probe timeout.
func NewTitleProber(timeout time.Duration, log *logrus.Logger) *TitleProber {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TitleProber{
		Timeout: timeout,
		log:     log.WithField("component", "prober"),
	}
}

// Probe navigates to url and returns the document title.
func (p *TitleProber) Probe(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	var title string
	err := chromedp.Run(ctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(`document.title`, &title, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to probe page title: %w", err)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("page has no title")
	}

	p.log.Debugf("Probed title %q for %s", title, rawURL)
	return title, nil
}

// NameFromURL derives a filename base from the URL itself, used when the
// title probe is unavailable.
func NameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "transcript"
	}

	name := strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path))
	if name == "" || name == "/" || name == "." {
		name = u.Host
	}
	if v := u.Query().Get("v"); v != "" {
		name = name + "_" + v
	}
	return name
}
