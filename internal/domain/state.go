package domain

// FeedState is the sync coordinator's connection state machine.
type FeedState int32

const (
	FeedDisconnected FeedState = iota
	FeedConnecting
	FeedWaitingSnapshot // connected, buffering updates, snapshot in flight
	FeedSyncing         // applying snapshot plus buffered updates
	FeedLive
	FeedReconnecting
)

func (s FeedState) String() string {
	switch s {
	case FeedDisconnected:
		return "Disconnected"
	case FeedConnecting:
		return "Connecting"
	case FeedWaitingSnapshot:
		return "WaitingSnapshot"
	case FeedSyncing:
		return "Syncing"
	case FeedLive:
		return "Live"
	case FeedReconnecting:
		return "Reconnecting"
	default:
		return "Unknown"
	}
}

// SyncState is the engine's view of book synchronization.
type SyncState int32

const (
	SyncInitializing SyncState = iota
	SyncWaitingSnapshot
	SyncSynced
)

func (s SyncState) String() string {
	switch s {
	case SyncInitializing:
		return "Initializing"
	case SyncWaitingSnapshot:
		return "WaitingSnapshot"
	case SyncSynced:
		return "Synced"
	default:
		return "Unknown"
	}
}
