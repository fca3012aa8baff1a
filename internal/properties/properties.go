package properties

import "os"

func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

func EngineBaseUrl() string {
	if url := os.Getenv("ENGINE_BASE_URL"); url != "" {
		return url
	}
	return "https://engine.verdantia.dev/v1"
}

func EngineTokenUrl() string {
	return os.Getenv("ENGINE_TOKEN_URL")
}

func EngineClientId() string {
	return os.Getenv("ENGINE_CLIENT_ID")
}

func EngineClientSecret() string {
	return os.Getenv("ENGINE_CLIENT_SECRET")
}

func SidraBaseUrl() string {
	if url := os.Getenv("SIDRA_BASE_URL"); url != "" {
		return url
	}
	return "https://apisidra.ibge.gov.br"
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}

func DiscordWarnNotificationUrl() string {
	return os.Getenv("DISCORD_WARN_NOTIFICATION_URL")
}

func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}
