package builtin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/sugoi/internal/plugin"
)

// DefaultProxyURL is the usual local address of a Translator++ translation proxy.
const DefaultProxyURL = "http://127.0.0.1:8877/v2/translate"

// TranslationProxy sends text to a DeepL-compatible translation proxy and appends the
// translation below the original. Any failure leaves the text untouched.
type TranslationProxy struct {
	plugin.Base
	proxyURL   string
	targetLang string
	sourceLang string
	timeout    int

	client *http.Client
}

// NewTranslationProxy creates a TranslationProxy pointed at DefaultProxyURL.
func NewTranslationProxy() *TranslationProxy {
	return &TranslationProxy{
		proxyURL: DefaultProxyURL,
		timeout:  10,
	}
}

func (*TranslationProxy) Info() plugin.Info {
	return plugin.Info{
		Name:        "Translation Proxy",
		Description: "Translates using a Translator++ compatible translation proxy",
		Version:     "1.0",
		Author:      author,
	}
}

type translateRequest struct {
	Text       []string `json:"text"`
	TargetLang string   `json:"target_lang"`
	SourceLang string   `json:"source_lang,omitempty"`
}

type translateResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

func (p *TranslationProxy) OnEnable() error {
	if p.client == nil {
		p.client = &http.Client{Timeout: time.Duration(p.timeout) * time.Second}
	}
	return nil
}

func (p *TranslationProxy) OnDisable() error {
	p.release()
	return nil
}

// Reset drops pooled connections; a new client is created on the next text.
func (p *TranslationProxy) Reset() {
	p.release()
}

func (p *TranslationProxy) release() {
	if p.client != nil {
		p.client.CloseIdleConnections()
		p.client = nil
	}
}

func (p *TranslationProxy) Process(text string) (string, error) {
	source := strings.TrimSpace(text)
	if source == "" {
		return text, nil
	}
	p.OnEnable()

	req := translateRequest{Text: []string{source}, TargetLang: p.targetLang}
	if p.sourceLang != "" && !strings.EqualFold(p.sourceLang, "auto") {
		req.SourceLang = p.sourceLang
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Post(p.proxyURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("translation proxy: %v", err)
		return text, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("translation proxy: unexpected status %s", resp.Status)
		return text, nil
	}

	var result translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Translations) == 0 || result.Translations[0].Text == "" {
		return text, nil
	}
	return strings.TrimRight(text, " \t\r\n") + "\n" + result.Translations[0].Text + "\n\n", nil
}

func (p *TranslationProxy) Settings() []plugin.Setting {
	return []plugin.Setting{
		{Name: "proxy_url", Value: p.proxyURL, Type: plugin.SettingString, Description: "Translation proxy endpoint"},
		{Name: "target_lang", Value: p.targetLang, Type: plugin.SettingString, Description: "Target language code (blank follows the proxy settings)"},
		{Name: "source_lang", Value: p.sourceLang, Type: plugin.SettingString, Description: "Source language code, or auto"},
		{Name: "timeout", Value: p.timeout, Type: plugin.SettingInt, Description: "Request timeout in seconds", Min: plugin.Bound(1), Max: plugin.Bound(120)},
	}
}

func (p *TranslationProxy) SetSetting(name string, value any) error {
	switch name {
	case "proxy_url":
		s, err := plugin.StringValue(value)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
			return fmt.Errorf("%w: proxy_url must be an http(s) URL", plugin.ErrInvalidSetting)
		}
		p.proxyURL = s
	case "target_lang", "source_lang":
		s, err := plugin.StringValue(value)
		if err != nil {
			return err
		}
		if name == "target_lang" {
			p.targetLang = strings.TrimSpace(s)
		} else {
			p.sourceLang = strings.TrimSpace(s)
		}
	case "timeout":
		n, err := plugin.IntValue(value)
		if err != nil {
			return err
		}
		if err := p.Settings()[3].CheckRange(n); err != nil {
			return err
		}
		p.timeout = n
		p.release()
	default:
		return p.Base.SetSetting(name, value)
	}
	return nil
}
