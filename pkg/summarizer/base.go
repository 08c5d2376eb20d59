// Package summarizer provides interfaces for summary generation providers.
//
// It defines the Provider interface that all summarization implementations
// must satisfy: raw memory content (plus an optional personal name) in, a
// short natural-language summary out.
package summarizer

import "context"

// Provider defines the interface for summarization providers.
type Provider interface {
	// Summarize converts raw memory content into a short summary.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - content: The raw memory content to summarize
	//   - firstName: The owner's first name for personalization, or ""
	//     for an impersonal summary
	//
	// Returns the generated summary and any error. A successful result is
	// never an empty string.
	Summarize(ctx context.Context, content, firstName string) (string, error)

	// Close closes the provider and releases resources.
	Close() error
}
