package disaster

import (
	"strings"
	"time"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// AuditEntry records one mutation. Entries are only ever appended.
type AuditEntry struct {
	Action    string  `json:"action"`
	UserID    *string `json:"user_id"`
	Timestamp string  `json:"timestamp"`
}

type Disaster struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Tags         []string     `json:"tags"`
	Location     string       `json:"location"`
	LocationName string       `json:"location_name"`
	Lat          float64      `json:"lat"`
	Lon          float64      `json:"lon"`
	OwnerID      *string      `json:"owner_id"`
	AuditTrail   []AuditEntry `json:"audit_trail"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Point returns the disaster's geocoded point.
func (d Disaster) Point() Point {
	return Point{Lat: d.Lat, Lon: d.Lon}
}

// AppendAudit returns trail with one more entry; trail itself is left untouched.
func AppendAudit(trail []AuditEntry, action string, userID *string, at time.Time) []AuditEntry {
	out := make([]AuditEntry, 0, len(trail)+1)
	out = append(out, trail...)
	return append(out, AuditEntry{
		Action:    action,
		UserID:    userID,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	})
}

// NormalizeTags trims and lowercases tags, dropping empties and duplicates.
// Order of first occurrence is kept.
func NormalizeTags(in []string) []string {
	if len(in) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SplitTags splits a comma separated tag list and normalizes it.
func SplitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return NormalizeTags(strings.Split(raw, ","))
}
