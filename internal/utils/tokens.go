package utils

// CountTokens estimates the token count of text at roughly four characters
// per token. Non-empty text is at least one token.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}
