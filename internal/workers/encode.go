package workers

import (
	"encoding/json"

	"github.com/yoockh/erasreview/internal/models"
)

func notifyJSON(n models.Notification) (string, error) {
	b, err := json.Marshal(map[string]any{
		"type":   "notification",
		"kind":   n.Kind,
		"title":  n.Subject,
		"fields": n.Fields,
		"at":     n.CreatedAt,
	})
	return string(b), err
}
