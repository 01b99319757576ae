package admission

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// DefaultMatchTimeout bounds a single signature match.
const DefaultMatchTimeout = 100 * time.Millisecond

// signature is a compiled pattern with its match timeout applied.
type signature struct {
	name string
	re   *regexp2.Regexp
}

func compileSignatures(patterns map[string]string, timeout time.Duration) ([]signature, error) {
	sigs := make([]signature, 0, len(patterns))
	for name, pattern := range patterns {
		re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
		if err != nil {
			return nil, fmt.Errorf("compile signature %s: %w", name, err)
		}
		re.MatchTimeout = timeout
		sigs = append(sigs, signature{name: name, re: re})
	}
	return sigs, nil
}

// Shield rejects requests carrying common attack signatures in their path or
// query string.
type Shield struct {
	sigs []signature
}

var shieldPatterns = map[string]string{
	"path_traversal": `(\.\.[/\\])|([/\\]\.\.$)`,
	"script_tag":     `<\s*script\b`,
	"js_protocol":    `javascript\s*:`,
	"sql_union":      `\bunion\b\s+(all\s+)?\bselect\b`,
	"sql_tautology":  `'\s*or\s+'?\d+'?\s*=\s*'?\d+`,
	"null_byte":      `\x00`,
}

// NewShield compiles the shield signatures.
func NewShield(timeout time.Duration) (*Shield, error) {
	sigs, err := compileSignatures(shieldPatterns, timeout)
	if err != nil {
		return nil, err
	}
	return &Shield{sigs: sigs}, nil
}

// Inspect returns the name of the first matching signature, or "" if the
// request is clean. A match timeout is returned as an error.
func (s *Shield) Inspect(req Request) (string, error) {
	target := req.Path
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}
	if decoded, err := url.QueryUnescape(target); err == nil {
		target = decoded
	}
	for _, sig := range s.sigs {
		ok, err := sig.re.MatchString(target)
		if err != nil {
			return "", fmt.Errorf("shield %s: %w", sig.name, err)
		}
		if ok {
			return sig.name, nil
		}
	}
	return "", nil
}

// BotCategory groups user agents by who is behind them.
type BotCategory string

const (
	BotCategorySearchEngine BotCategory = "search_engine"
	BotCategoryPreview      BotCategory = "preview"
	BotCategoryAutomated    BotCategory = "automated"
)

// botSignatures is checked in order; the generic crawler pattern is last so
// that named bots land in their own category.
var botSignatures = []struct {
	category BotCategory
	pattern  string
}{
	{BotCategorySearchEngine, `googlebot|bingbot|duckduckbot|baiduspider|yandex(bot|images)|applebot`},
	{BotCategoryPreview, `facebookexternalhit|twitterbot|slackbot|discordbot|linkedinbot|whatsapp|telegrambot`},
	{BotCategoryAutomated, `^(curl|wget|python-requests|python-urllib|go-http-client|java/|okhttp|libwww-perl|scrapy)`},
	{BotCategoryAutomated, `headless|phantomjs|selenium|puppeteer|playwright`},
	{BotCategoryAutomated, `\b(bot|crawler|spider|scraper)\b`},
}

// BotDetector classifies user agents and rejects bots outside the allowed
// categories.
type BotDetector struct {
	sigs    []signature
	cats    []BotCategory
	allowed map[BotCategory]bool
}

// NewBotDetector compiles bot signatures. allowed lists the categories that
// may connect anyway.
func NewBotDetector(allowed []string, timeout time.Duration) (*BotDetector, error) {
	d := &BotDetector{allowed: make(map[BotCategory]bool, len(allowed))}
	for _, c := range allowed {
		d.allowed[BotCategory(c)] = true
	}
	for i, b := range botSignatures {
		re, err := regexp2.Compile(b.pattern, regexp2.IgnoreCase)
		if err != nil {
			return nil, fmt.Errorf("compile bot signature %d: %w", i, err)
		}
		re.MatchTimeout = timeout
		d.sigs = append(d.sigs, signature{name: string(b.category), re: re})
		d.cats = append(d.cats, b.category)
	}
	return d, nil
}

// Classify returns the bot category of userAgent, or "" for a browser.
// An empty user agent is classified as automated.
func (d *BotDetector) Classify(userAgent string) (BotCategory, error) {
	ua := strings.TrimSpace(userAgent)
	if ua == "" {
		return BotCategoryAutomated, nil
	}
	for i, sig := range d.sigs {
		ok, err := sig.re.MatchString(ua)
		if err != nil {
			return "", fmt.Errorf("bot signature %s: %w", sig.name, err)
		}
		if ok {
			return d.cats[i], nil
		}
	}
	return "", nil
}

// Blocked reports whether userAgent belongs to a category that is not allowed.
func (d *BotDetector) Blocked(userAgent string) (bool, BotCategory, error) {
	cat, err := d.Classify(userAgent)
	if err != nil || cat == "" {
		return false, cat, err
	}
	return !d.allowed[cat], cat, nil
}
