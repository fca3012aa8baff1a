package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/verdantia/earthscout/internal/properties"
)

type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

const (
	colorRed    = 16711680
	colorYellow = 16776960
	colorGreen  = 65280
)

// SendDiscordErrorNotification posts to the error webhook. Unset webhook
// URLs disable the channel silently so the CLI works without Discord.
func SendDiscordErrorNotification(message string) error {
	return send(properties.DiscordErrorNotificationUrl(), discordEmbed{
		Title:       "🚨 Earthscout error",
		Description: message,
		Color:       colorRed,
	})
}

func SendDiscordWarnNotification(message string) error {
	return send(properties.DiscordWarnNotificationUrl(), discordEmbed{
		Title:       "⚠️ Earthscout warning",
		Description: message,
		Color:       colorYellow,
	})
}

func SendDiscordSuccessNotification(message string) error {
	return send(properties.DiscordSuccessNotificationUrl(), discordEmbed{
		Title:       "✅ Earthscout success",
		Description: message,
		Color:       colorGreen,
	})
}

func send(webhookURL string, embed discordEmbed) error {
	if webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(discordMessage{Embeds: []discordEmbed{embed}})
	if err != nil {
		return err
	}

	resp, err := http.Post(webhookURL, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}
	return nil
}
