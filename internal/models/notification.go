package models

import "time"

type NotificationKind string

const (
	NotifyUserRegistered       NotificationKind = "user_registered"
	NotifyPaymentSucceeded     NotificationKind = "payment_succeeded"
	NotifyApplicationSubmitted NotificationKind = "application_submitted"
	NotifyReviewCompleted      NotificationKind = "review_completed"
	NotifyBlogPublished        NotificationKind = "blog_published"
)

type Notification struct {
	Kind      NotificationKind  `json:"kind"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"` // recipient for user-facing kinds
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Fields    map[string]string `json:"fields,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// AdminFacing reports whether the kind goes to the admin chat channel.
func (k NotificationKind) AdminFacing() bool {
	switch k {
	case NotifyUserRegistered, NotifyPaymentSucceeded, NotifyApplicationSubmitted, NotifyBlogPublished:
		return true
	}
	return false
}
