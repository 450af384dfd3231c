package notify

import "time"

const (
	DiscordColorRed    = 15158332
	DiscordColorYellow = 16776960
)

// DiscordTemplate renders device alerts as a Discord embed.
const DiscordTemplate = `{
  "embeds": [{
    "title": {{json .alert.Level}},
    "description": {{json .alert.Message}},
    "color": {{if eq .alert.Level "red"}}15158332{{else}}16776960{{end}},
    "timestamp": {{json (.alert.LastSeen.UTC.Format "2006-01-02T15:04:05Z07:00")}},
    "fields": [
      {
        "name": "Device",
        "value": {{json .device.MgmtIP}},
        "inline": true
      },
      {
        "name": "Repeats",
        "value": {{json .alert.Count}},
        "inline": true
      }
    ]
  }]
}`

// NewDiscordWebhook builds a webhook sink preconfigured for Discord.
func NewDiscordWebhook(webhookURL string, cooldown time.Duration) *WebhookSink {
	return NewWebhookSink(WebhookConfig{
		Enabled:  true,
		URL:      webhookURL,
		Template: DiscordTemplate,
		Cooldown: cooldown,
	})
}
