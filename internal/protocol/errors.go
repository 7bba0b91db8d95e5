package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Match routing/state.
	ErrMatchBusy   = "E_MATCH_BUSY"
	ErrMatchEnded  = "E_MATCH_ENDED"
	ErrTeamFull    = "E_TEAM_FULL"
	ErrUnknownTeam = "E_UNKNOWN_TEAM"

	// Rule layer.
	ErrNoPermission = "E_NO_PERMISSION"
	ErrRateLimit    = "E_RATE_LIMIT"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrMatchBusy:       {},
	ErrMatchEnded:      {},
	ErrTeamFull:        {},
	ErrUnknownTeam:     {},
	ErrNoPermission:    {},
	ErrRateLimit:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
