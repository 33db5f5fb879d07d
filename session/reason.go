package session

// Reason is the cause code attached to a route-change notification.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonNewDeviceAvailable
	ReasonOldDeviceUnavailable
	ReasonCategoryChange
	ReasonOverride
	_ // 5 is unused by the platform
	ReasonWakeFromSleep
	ReasonNoSuitableRouteForCategory
	ReasonRouteConfigurationChange
)

const unknownReason = "The reason is unknown."

// String returns the human-readable description published as
// State.RouteChanged. Unrecognized codes describe themselves as unknown.
func (r Reason) String() string {
	switch r {
	case ReasonNewDeviceAvailable:
		return "A new device became available."
	case ReasonOldDeviceUnavailable:
		return "An old device became unavailable."
	case ReasonCategoryChange:
		return "The audio category has changed."
	case ReasonOverride:
		return "The route has been overridden."
	case ReasonWakeFromSleep:
		return "The device woke from sleep."
	case ReasonNoSuitableRouteForCategory:
		return "There is no route for the current category."
	case ReasonRouteConfigurationChange:
		return "Configuration has changed."
	}
	return unknownReason
}
