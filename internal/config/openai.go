package config

// GetOpenAIKey returns the OpenAI API key used by the dev server responder.
// An empty value selects the canned echo responder instead.
func GetOpenAIKey() string {
	return GetEnvOrDefault("OPENAI_KEY", "")
}
