package domain

// Event names pushed to room members. Ordering follows mutation order
// because events are emitted under the room's serialized handle.
const (
	EventRoomUpdate  = "room_update"
	EventGameStatus  = "game_status"
	EventCountdown   = "countdown"
	EventBetUpdate   = "bet_update"
	EventBetCanceled = "bet_canceled"
	EventGameResult  = "game_result"
	EventNewDealer   = "new_dealer"
	EventErrorMsg    = "error_msg"
)

// Broadcaster pushes events to a room's connected members.
type Broadcaster interface {
	BroadcastRoom(roomID string, event string, data interface{})
	SendToMember(roomID, memberID string, event string, data interface{})
}
