package taskname

const (
	// Notification tasks
	NotificationDeliver = "notification:deliver"
)

const (
	QueueNotifications = "notifications"
	QueueDefault       = "default"
)
