package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/ports"
)

const opBuildQuery = "build_query"

type queryAnswer struct {
	Query string `json:"query" jsonschema_description:"A short search query that matches how people post about the event on social media"`
}

var (
	querySchema = schemaFor(&queryAnswer{})
	unsafeKey   = regexp.MustCompile(`[^a-zA-Z0-9_]`)
)

// QueryCacheKey is the cache key for a query built from these attributes.
// Every character outside [a-zA-Z0-9_] becomes '-'.
func QueryCacheKey(title, description, locationName string, tags []string) string {
	key := fmt.Sprintf("social-media-query:%s:%s:%s:%s", title, description, locationName, strings.Join(tags, ","))
	return unsafeKey.ReplaceAllString(key, "-")
}

// BuildQuery returns a short colloquial search phrase for the disaster. Results
// are cached with the default TTL; a cache read failure is returned as is.
func (s *Service) BuildQuery(ctx context.Context, title, description, locationName string, tags []string) (string, error) {
	key := QueryCacheKey(title, description, locationName, tags)

	cached, found, err := ports.GetJSON[queryAnswer](ctx, s.cache, key)
	if err != nil {
		return "", errs.Wrap(err, "read cached query")
	}
	if found && strings.TrimSpace(cached.Query) != "" {
		logging.Debug(ctx, "social query cache hit", slog.String("key", key))
		return cached.Query, nil
	}

	text, err := s.model.GenerateJSON(ctx, ports.GenerateRequest{
		Operation:  opBuildQuery,
		Prompt:     queryPrompt(title, description, locationName, tags),
		SchemaName: "social_query",
		Schema:     querySchema,
	})
	if err != nil {
		return "", upstream(err, "build social query")
	}

	var answer queryAnswer
	if err := decodeStrict(text, querySchema, &answer); err != nil {
		return "", invalidResponse(opBuildQuery, err)
	}
	answer.Query = strings.TrimSpace(answer.Query)
	if answer.Query == "" {
		return "", invalidResponse(opBuildQuery, errors.New("query is empty"))
	}

	s.background.Go(ctx, "cache.set_query", func(ctx context.Context) error {
		return ports.SetJSON(ctx, s.cache, key, answer, 0)
	})
	return answer.Query, nil
}

func queryPrompt(title, description, locationName string, tags []string) string {
	var b strings.Builder
	b.WriteString("You are a search query expert. Given a disaster's title, description, location name and tags, ")
	b.WriteString("generate one concise, realistic search query that mimics how people would talk about the event on social media.\n\n")
	b.WriteString("Focus on natural phrasing (not formal), key visible effects (flooding, damage, traffic jam, no power), ")
	b.WriteString("the location (city or local area) and the disaster type (flood, fire, earthquake).\n")
	b.WriteString("Avoid uncommon words or too many keywords. Keep the query short and broad enough to match real posts: ")
	b.WriteString("2-3 words, never more than 3 unless necessary.\n\n")
	b.WriteString("Input:\n")
	fmt.Fprintf(&b, "Title: %q\n", title)
	fmt.Fprintf(&b, "Description: %q\n", description)
	fmt.Fprintf(&b, "Location: %q\n", locationName)
	fmt.Fprintf(&b, "Tags: %q\n", strings.Join(tags, ", "))
	return b.String()
}
