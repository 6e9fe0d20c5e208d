// Package providers implements chat completion backends for the comment
// generator.
package providers

// Request is one single-turn chat completion.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64 // nil leaves the provider default
}
