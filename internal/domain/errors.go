package domain

import "errors"

// Failure taxonomy shared by both transport adapters. Handlers map these
// to HTTP status codes; the websocket layer maps them to private error
// frames. Everything else bubbles up as a 500.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotParticipant  = errors.New("only room participants may perform this action")
	ErrRoomClosed      = errors.New("room is closed")

	ErrRoomNotFound   = errors.New("room not found")
	ErrFarmNotFound   = errors.New("farm not found")
	ErrMemberNotFound = errors.New("member not found")

	// ErrFarmOwnerMismatch is raised when the farmer id in a room-creation
	// request is not the registered owner of the farm.
	ErrFarmOwnerMismatch = errors.New("farm and farmer do not match")

	// ErrRoomExists is returned by the room repository when an insert
	// loses the unique-constraint race on (farm_id, farmer_id, user_id).
	// The service resolves it by re-fetching; it never reaches a handler.
	ErrRoomExists = errors.New("room already exists for this farm, farmer and user")
)

// IsFailure reports whether err belongs to the expected failure taxonomy,
// as opposed to an infrastructure error. Adapters show taxonomy messages
// to callers verbatim and hide everything else.
func IsFailure(err error) bool {
	for _, failure := range []error{
		ErrUnauthenticated,
		ErrInvalidInput,
		ErrNotParticipant,
		ErrRoomClosed,
		ErrRoomNotFound,
		ErrFarmNotFound,
		ErrMemberNotFound,
		ErrFarmOwnerMismatch,
	} {
		if errors.Is(err, failure) {
			return true
		}
	}
	return false
}
