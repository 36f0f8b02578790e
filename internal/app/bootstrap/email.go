package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/lead-chat-agent/cmd/mainconfig"
	appconfig "github.com/wolfman30/lead-chat-agent/internal/config"
	"github.com/wolfman30/lead-chat-agent/internal/notify"
	"github.com/wolfman30/lead-chat-agent/pkg/logging"
)

// Email provider names accepted by EMAIL_PROVIDER.
const (
	EmailProviderAuto     = "auto"
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSES      = "ses"
	EmailProviderStub     = "stub"
)

// BuildEmailSender picks the lead notification transport. It returns the
// sender, the provider name, and a reason when it fell back to the stub.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	stub := notify.NewStubEmailSender(logger)
	if cfg == nil {
		return stub, EmailProviderStub, "missing config"
	}

	preference := strings.ToLower(strings.TrimSpace(cfg.EmailProvider))
	if preference == "" {
		preference = EmailProviderAuto
	}
	if preference == EmailProviderStub {
		return stub, EmailProviderStub, ""
	}

	missing := map[string]string{}

	buildSendGrid := func() notify.EmailSender {
		var reasons []string
		if cfg.SendGridAPIKey == "" {
			reasons = append(reasons, "SENDGRID_API_KEY missing")
		}
		if cfg.SendGridFromEmail == "" {
			reasons = append(reasons, "SENDGRID_FROM_EMAIL missing")
		}
		if len(reasons) > 0 {
			missing[EmailProviderSendGrid] = strings.Join(reasons, ", ")
			return nil
		}
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}

	buildSES := func() notify.EmailSender {
		if cfg.SESFromEmail == "" {
			missing[EmailProviderSES] = "SES_FROM_EMAIL missing"
			return nil
		}
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			missing[EmailProviderSES] = fmt.Sprintf("aws config: %v", err)
			return nil
		}
		return notify.NewSESSender(mainconfig.NewSESClient(awsCfg, cfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}

	switch preference {
	case EmailProviderSendGrid:
		if sender := buildSendGrid(); sender != nil {
			return sender, EmailProviderSendGrid, ""
		}
	case EmailProviderSES:
		if sender := buildSES(); sender != nil {
			return sender, EmailProviderSES, ""
		}
	case EmailProviderAuto:
		if sender := buildSendGrid(); sender != nil {
			return sender, EmailProviderSendGrid, ""
		}
		if sender := buildSES(); sender != nil {
			return sender, EmailProviderSES, ""
		}
		return stub, EmailProviderStub, fmt.Sprintf("sendgrid: %s; ses: %s", missing[EmailProviderSendGrid], missing[EmailProviderSES])
	default:
		return stub, EmailProviderStub, fmt.Sprintf("unknown email provider %q", preference)
	}

	reason := missing[preference]
	if reason == "" {
		reason = fmt.Sprintf("%s sender not configured", preference)
	}
	return stub, EmailProviderStub, reason
}
