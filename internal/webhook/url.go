package webhook

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidWebhookURL indicates a webhook URL that does not match the
// expected Discord webhook shape.
var ErrInvalidWebhookURL = errors.New("invalid webhook URL")

// Webhook URLs must be https, on the discord.com/discordapp.com host family,
// with numeric id and token path segments. Checked before any network call.
var webhookURLPattern = regexp.MustCompile(
	`^https://(?:[a-z0-9-]+\.)?(?:discord|discordapp)\.com/api/webhooks/\d+/[A-Za-z0-9_-]+$`,
)

// ValidateURL rejects malformed webhook URLs.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: empty", ErrInvalidWebhookURL)
	}
	if !webhookURLPattern.MatchString(rawURL) {
		return fmt.Errorf("%w: %q", ErrInvalidWebhookURL, rawURL)
	}
	return nil
}
