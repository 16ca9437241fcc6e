package main

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/shellmind/cli/internal/config"
	"github.com/shellmind/cli/internal/llmclient"
	"github.com/shellmind/cli/internal/secretstore"
)

// buildClient resolves the chat client: the mock fixture when
// Q_MOCK_CHAT_RESPONSE is set, otherwise the configured provider.
func buildClient(settings config.Settings, logger *slog.Logger) (llmclient.Client, error) {
	if mock, err := llmclient.LoadMockFromEnv(); err != nil {
		return nil, err
	} else if mock != nil {
		return mock, nil
	}

	apiKey := os.Getenv(settings.Provider.APIKeyEnv)
	switch settings.Provider.Name {
	case "openai":
		return llmclient.NewOpenAIClient(llmclient.OpenAIConfig{
			APIKey:  apiKey,
			BaseURL: settings.Provider.BaseURL,
			Model:   settings.Provider.Model,
			Logger:  logger,
		})
	case "", "anthropic":
		return llmclient.NewAnthropicClient(llmclient.AnthropicConfig{
			APIKey:  apiKey,
			BaseURL: settings.Provider.BaseURL,
			Model:   settings.Provider.Model,
			Logger:  logger,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", settings.Provider.Name)
	}
}

// buildSecretStore opens the encrypted file-backed secret store.
func buildSecretStore() (secretstore.Store, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return secretstore.NewFileStore(dir)
}

// terminalWidth resolves the render width: explicit setting, live
// terminal size, else 80 columns.
func terminalWidth(settings config.Settings) int {
	if settings.Chat.TerminalWidth > 0 {
		return settings.Chat.TerminalWidth
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("SHELLMIND_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
