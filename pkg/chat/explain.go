package chat

// ExplainPrefix introduces code sent to an agent for explanation.
const ExplainPrefix = "Explain the following code:\n\n"

// ExplainPrompt returns the message asking an agent to explain code.
func ExplainPrompt(code string) string {
	return ExplainPrefix + code
}
