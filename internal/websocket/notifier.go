package websocket

import "github.com/familyhub/schoolmail-backend/internal/services"

// HubNotifier bridges service events onto the hub. It satisfies
// services.Notifier.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier wraps a hub for use by the services layer.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) SyncStarted(userID, accountID string) {
	n.hub.Broadcast(userID, MessageTypeSyncStarted, &SyncEventPayload{AccountID: accountID})
}

func (n *HubNotifier) SyncProgress(userID, accountID string, fetched, saved int) {
	n.hub.Broadcast(userID, MessageTypeSyncProgress, &SyncEventPayload{
		AccountID:     accountID,
		EmailsFetched: fetched,
		EmailsSaved:   saved,
	})
}

func (n *HubNotifier) SyncCompleted(userID, accountID string, result services.SyncResult) {
	n.hub.Broadcast(userID, MessageTypeSyncCompleted, &SyncEventPayload{
		AccountID:     accountID,
		EmailsFetched: result.EmailsFetched,
		EmailsSaved:   result.EmailsSaved,
		EmailsSkipped: result.EmailsSkipped,
	})
}

func (n *HubNotifier) SyncFailed(userID, accountID, message string) {
	n.hub.Broadcast(userID, MessageTypeSyncFailed, &SyncEventPayload{
		AccountID: accountID,
		Message:   message,
	})
}

func (n *HubNotifier) EmailClassified(userID, emailID, category string) {
	n.hub.Broadcast(userID, MessageTypeEmailClassified, &ClassifiedPayload{
		EmailID:  emailID,
		Category: category,
	})
}
