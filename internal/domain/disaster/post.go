package disaster

// Post is a social media post after the model has filtered and normalized it.
type Post struct {
	ID        string `json:"id" jsonschema_description:"Unique identifier for the post"`
	Title     string `json:"title,omitempty" jsonschema_description:"Title of the social media post"`
	Content   string `json:"content" jsonschema_description:"Content of the social media post"`
	Author    string `json:"author" jsonschema_description:"Author's username or handle"`
	Timestamp string `json:"timestamp" jsonschema_description:"ISO 8601 timestamp of when the post was created"`
	PostURL   string `json:"post_url" jsonschema_description:"URL to the original post"`
}
