package model

import "time"

// PublishOutcome is the per-platform result of a publish attempt. The orchestrator
// returns exactly one of these per requested platform, in request order.
type PublishOutcome struct {
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	PostID   string `json:"postId,omitempty"`
	URL      string `json:"url,omitempty"`
}

// PublishRecord is the persisted history row for one platform outcome.
type PublishRecord struct {
	ID        int64     `json:"id"`
	Platform  string    `json:"platform"`
	AssetName string    `json:"asset_name"`
	AssetKind string    `json:"asset_kind"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	PostID    *string   `json:"post_id,omitempty"`
	URL       *string   `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
