package controllers

import "time"

// formatTimePtr renders an optional timestamp as RFC3339 or JSON null.
func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
