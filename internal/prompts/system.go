// Package prompts holds the system prompts sent to the completion
// backend. The conversational prompt is file-based so operators can
// edit it without rebuilding; the defaults and the metadata-format
// preamble are program logic and live here.
package prompts

import (
	"log/slog"
	"os"
	"strings"
)

// DefaultSystemPrompt is used when no prompt file exists or the file is
// empty.
const DefaultSystemPrompt = "You are a helpful assistant."

// ToolSystemPrompt replaces the conversational prompt on tool-enabled
// turns. Plain on purpose: the model should lean on the tool catalogue
// instead of persona instructions.
const ToolSystemPrompt = "You are helpful discord assistant"

// metadataPreamble teaches the model the shape of the metadata block
// the bridge prepends to every user message. Appended only to custom
// prompts; the bare default works without it.
const metadataPreamble = "\n\n# format of metadata\n" +
	"<metadata>\n" +
	"Guild: <guild_name> (<guild_id>)\n" +
	"Channel: <category_name> > <channel_name> (<channel_id>)\n" +
	"User: <user_name> (<user_id>)\n" +
	"</metadata>\n\n"

// LoadSystemPrompt reads the conversational system prompt from path.
// A missing or empty file falls back to [DefaultSystemPrompt]; a
// non-empty file gets the metadata preamble appended.
func LoadSystemPrompt(path string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read system prompt, using default",
			"path", path,
			"error", err,
		)
		return DefaultSystemPrompt
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return DefaultSystemPrompt
	}
	return trimmed + metadataPreamble
}
