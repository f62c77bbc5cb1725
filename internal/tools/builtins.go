package tools

import (
	"context"
	"strings"

	"github.com/naurunnahansa/voicebridge/internal/search"
)

const (
	ToolWebSearch    = "webSearch"
	ToolStaticAnswer = "staticAnswer"
)

const staticAnswerText = "I'm a realtime voice assistant built on interchangeable " +
	"voice platforms. Ask me anything, or ask me to search the web."

// Searcher is the narrow slice of the search collaborator the webSearch tool
// needs.
type Searcher interface {
	Search(ctx context.Context, query string) (search.Response, error)
}

// RegisterBuiltins installs the demonstration tools: a web search proxied to
// the external collaborator and a static self-description answer.
func RegisterBuiltins(e *Executor, searcher Searcher) {
	e.Register(ToolWebSearch, func(ctx context.Context, params map[string]any) (string, error) {
		query, _ := params["query"].(string)
		if strings.TrimSpace(query) == "" {
			return "I need a search query to look that up.", nil
		}
		res, err := searcher.Search(ctx, query)
		if err != nil {
			// Converted to a safe spoken response rather than an error: a
			// failure propagated into the live session would end the call.
			return "Search failed, please try again in a moment.", nil
		}
		if strings.TrimSpace(res.Summary) != "" {
			return res.Summary, nil
		}
		if len(res.Results) > 0 {
			return res.Results[0].Snippet, nil
		}
		return "I couldn't find anything relevant.", nil
	})

	e.Register(ToolStaticAnswer, func(context.Context, map[string]any) (string, error) {
		return staticAnswerText, nil
	})
}
