// Package relay delivers finished interview evaluations to a Telegram chat.
//
// Each delivery is two Bot API calls: a Markdown summary message, then the
// generated PDF assessment report as a document upload. The relay holds no
// state between deliveries; exactly-once semantics are the session
// controller's responsibility.
package relay

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/assessly-ai/assessly/pkg/types"
)

const defaultBaseURL = "https://api.telegram.org"

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Config configures a [Telegram] relay. Token and ChatID are required.
type Config struct {
	// Token is the bot token from @BotFather.
	Token string

	// ChatID is the destination chat.
	ChatID string

	// BaseURL overrides the Bot API host. Tests point this at a local
	// server; production leaves it empty.
	BaseURL string

	// Timeout bounds each API call. Defaults to 30s.
	Timeout time.Duration
}

// Telegram sends evaluation reports through the Telegram Bot API.
// It is safe for concurrent use.
type Telegram struct {
	client *resty.Client
	token  string
	chatID string
}

// New creates a [Telegram] relay from cfg.
func New(cfg Config) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("relay: bot token is required")
	}
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("relay: chat ID is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	return &Telegram{
		client: client,
		token:  cfg.Token,
		chatID: cfg.ChatID,
	}, nil
}

// Ping verifies the bot token against the Bot API. Used by readiness checks.
func (t *Telegram) Ping(ctx context.Context) error {
	var api apiResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetResult(&api).
		SetError(&api).
		Get(fmt.Sprintf("/bot%s/getMe", t.token))
	if err != nil {
		return fmt.Errorf("relay: getMe: %w", err)
	}
	if resp.IsError() || !api.OK {
		return fmt.Errorf("relay: getMe: %s: %s", resp.Status(), api.Description)
	}
	return nil
}

// Deliver sends the summary message followed by the PDF report.
// A failed summary aborts the delivery; the document is not sent without it.
func (t *Telegram) Deliver(ctx context.Context, profile types.CandidateProfile, result *types.SessionResult, _ []types.TranscriptLine) error {
	if err := t.sendSummary(ctx, profile, result); err != nil {
		return err
	}
	return t.sendReport(ctx, profile, result)
}

func (t *Telegram) sendSummary(ctx context.Context, profile types.CandidateProfile, result *types.SessionResult) error {
	var api apiResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    t.chatID,
			"text":       buildSummary(profile, result),
			"parse_mode": "Markdown",
		}).
		SetResult(&api).
		SetError(&api).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.token))
	if err != nil {
		return fmt.Errorf("relay: sendMessage: %w", err)
	}
	if resp.IsError() || !api.OK {
		return fmt.Errorf("relay: sendMessage: %s: %s", resp.Status(), api.Description)
	}
	return nil
}

func (t *Telegram) sendReport(ctx context.Context, profile types.CandidateProfile, result *types.SessionResult) error {
	pdf, err := buildReport(profile, result, time.Now())
	if err != nil {
		return fmt.Errorf("relay: build report: %w", err)
	}

	filename := strings.ReplaceAll(profile.Name, " ", "_") + "_AWS_Assessment.pdf"
	caption := fmt.Sprintf("Attached: Official AWS Networking Technical Evaluation for %s", profile.Name)

	var api apiResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetFileReader("document", filename, bytes.NewReader(pdf)).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"caption": caption,
		}).
		SetResult(&api).
		SetError(&api).
		Post(fmt.Sprintf("/bot%s/sendDocument", t.token))
	if err != nil {
		return fmt.Errorf("relay: sendDocument: %w", err)
	}
	if resp.IsError() || !api.OK {
		return fmt.Errorf("relay: sendDocument: %s: %s", resp.Status(), api.Description)
	}
	return nil
}

// buildSummary renders the Markdown summary message.
func buildSummary(profile types.CandidateProfile, result *types.SessionResult) string {
	var sb strings.Builder
	sb.WriteString("🎓 *AWS Networking Interview Report*\n")
	sb.WriteString("----------------------------------\n")
	fmt.Fprintf(&sb, "👤 *Candidate:* %s\n", profile.Name)
	fmt.Fprintf(&sb, "📧 *Email:* %s\n", profile.Email)
	fmt.Fprintf(&sb, "📱 *Phone:* %s\n\n", profile.Phone)
	fmt.Fprintf(&sb, "📊 *Final Score:* %d%%\n", result.Score)
	fmt.Fprintf(&sb, "✅ *Questions Answered:* %d\n\n", result.QuestionsAnswered)
	sb.WriteString("🌟 *Strengths:*\n")
	for _, s := range result.Strengths {
		fmt.Fprintf(&sb, "• %s\n", s)
	}
	sb.WriteString("\n⚠️ *Weaknesses:*\n")
	for _, w := range result.Weaknesses {
		fmt.Fprintf(&sb, "• %s\n", w)
	}
	fmt.Fprintf(&sb, "\n📝 *Feedback:*\n_%s_\n", result.Feedback)
	return sb.String()
}
