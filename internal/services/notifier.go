package services

// Notifier pushes progress events to connected clients. The services
// publish through this interface so they stay independent of the
// websocket transport; a nil-safe NopNotifier covers tests and CLI use.
type Notifier interface {
	SyncStarted(userID, accountID string)
	SyncProgress(userID, accountID string, fetched, saved int)
	SyncCompleted(userID, accountID string, result SyncResult)
	SyncFailed(userID, accountID, message string)
	EmailClassified(userID, emailID, category string)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) SyncStarted(userID, accountID string)                      {}
func (NopNotifier) SyncProgress(userID, accountID string, fetched, saved int) {}
func (NopNotifier) SyncCompleted(userID, accountID string, result SyncResult) {}
func (NopNotifier) SyncFailed(userID, accountID, message string)              {}
func (NopNotifier) EmailClassified(userID, emailID, category string)          {}
