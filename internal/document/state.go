package document

// State is the position of a session in the three-document upload flow.
type State int

const (
	StateAwaitingIdentity State = iota
	StateAwaitingLicense
	StateAwaitingLogCard
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateAwaitingIdentity:
		return "awaiting_identity"
	case StateAwaitingLicense:
		return "awaiting_license"
	case StateAwaitingLogCard:
		return "awaiting_log_card"
	case StateComplete:
		return "complete"
	}
	return "unknown"
}

// MarshalText lets State serialize as its name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Next returns the kind the state is waiting for. ok is false once complete.
func (s State) Next() (Kind, bool) {
	switch s {
	case StateAwaitingIdentity:
		return KindIdentityCard, true
	case StateAwaitingLicense:
		return KindDriversLicense, true
	case StateAwaitingLogCard:
		return KindLogCard, true
	}
	return "", false
}

// StateFor derives the state from the kinds contributed so far. The first
// kind in upload order that is still missing decides the state.
func StateFor(contributed map[Kind]bool) State {
	switch {
	case !contributed[KindIdentityCard]:
		return StateAwaitingIdentity
	case !contributed[KindDriversLicense]:
		return StateAwaitingLicense
	case !contributed[KindLogCard]:
		return StateAwaitingLogCard
	}
	return StateComplete
}
