// Package llm provides language model clients and the enrichment pass that
// suggests civic categories for propositions the rules could not place.
// It supports OpenAI and Anthropic, with retry logic, rate limiting and
// response caching.
package llm
