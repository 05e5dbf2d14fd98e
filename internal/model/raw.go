package model

// Raw is an expenditure record exactly as the backend sent it. Field names
// and value types vary between endpoints and backend revisions; only the
// normalizer interprets them.
type Raw map[string]any
