package ports

import (
	"context"
	"encoding/json"
)

// SocialFeed searches a social network for posts. Posts are returned in the
// network's own shape. An empty result is an empty, non-nil slice.
type SocialFeed interface {
	FetchPosts(ctx context.Context, query string) ([]json.RawMessage, error)
}
