package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"disasterwatch/internal/domain/disaster"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/ports"
)

const opFilterPosts = "filter_posts"

var postsSchema = schemaFor(&[]disaster.Post{})

// FilterPosts keeps the raw posts relevant to the disaster, normalized to
// disaster.Post. The whole call fails if any returned entry breaks the shape.
func (s *Service) FilterPosts(ctx context.Context, title, description, locationName string, tags []string, raw []json.RawMessage) ([]disaster.Post, error) {
	if len(raw) == 0 {
		return []disaster.Post{}, nil
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, errs.Mark(errs.ErrInvalidArgument, err, "encode raw posts")
	}

	text, err := s.model.GenerateJSON(ctx, ports.GenerateRequest{
		Operation:  opFilterPosts,
		Prompt:     filterPrompt(title, description, locationName, tags, string(encoded)),
		SchemaName: "relevant_posts",
		Schema:     postsSchema,
	})
	if err != nil {
		return nil, upstream(err, "filter posts")
	}

	var posts []disaster.Post
	if err := decodeStrict(text, postsSchema, &posts); err != nil {
		return nil, invalidResponse(opFilterPosts, err)
	}
	if posts == nil {
		return nil, invalidResponse(opFilterPosts, fmt.Errorf("expected an array of posts"))
	}
	return posts, nil
}

func filterPrompt(title, description, locationName string, tags []string, rawPosts string) string {
	var b strings.Builder
	b.WriteString("You are a social media post filter and reformatter. Given a disaster's title, description, location name, tags ")
	b.WriteString("and a list of raw social media posts, keep only the posts relevant to the disaster and reformat them.\n\n")
	fmt.Fprintf(&b, "Disaster Title: %q\n", title)
	fmt.Fprintf(&b, "Description: %q\n", description)
	fmt.Fprintf(&b, "Location Name: %q\n", locationName)
	fmt.Fprintf(&b, "Tags: %q\n\n", strings.Join(tags, ", "))
	fmt.Fprintf(&b, "Raw Posts: %s\n\n", rawPosts)
	b.WriteString("Return a list of relevant posts in the following format:\n")
	b.WriteString(`[
  {
    "id": "unique-post-id",
    "title": "Title of the post",
    "content": "The content of the post",
    "author": "Author's username or handle",
    "timestamp": "ISO 8601 timestamp of the post",
    "post_url": "URL to the original post"
  }
]`)
	return b.String()
}
