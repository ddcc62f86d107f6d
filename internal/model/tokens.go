package model

// EstimateTokens approximates the token count of a string as len/4, minimum 1.
// The upstream never verifies usage numbers, so this deliberately matches the
// cheap estimate clients of this gateway already expect.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

// EstimateContentTokens estimates tokens for a message content value.
func EstimateContentTokens(c MessageContent) int {
	if c.Text != nil {
		return EstimateTokens(*c.Text)
	}
	total := 0
	for _, part := range c.Parts {
		total += EstimateTokens(part.Text)
	}
	if total < 1 {
		return 1
	}
	return total
}
