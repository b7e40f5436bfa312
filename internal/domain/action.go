package domain

// Action represents the trading action predicted for a window.
type Action int

const (
	ActionLong Action = iota
	ActionShort
	ActionNone
)

// action string constants to avoid magic strings
const (
	actionStringLong  = "long"
	actionStringShort = "short"
	actionStringNone  = "none"
)

// ParseAction maps the model's wire string to an Action.
// Unrecognized values map to ActionNone.
func ParseAction(s string) Action {
	switch s {
	case actionStringLong:
		return ActionLong
	case actionStringShort:
		return ActionShort
	case actionStringNone:
		return ActionNone
	}
	return ActionNone
}

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionLong:
		return actionStringLong
	case ActionShort:
		return actionStringShort
	case ActionNone:
		return actionStringNone
	default:
		return "unknown"
	}
}
