package session

import "obsaudio/event"

// Port describes one input or output endpoint of a route.
type Port struct {
	ID   string
	Name string
	Type string
}

// Route is the set of endpoints audio currently flows through.
type Route struct {
	Inputs  []Port
	Outputs []Port
}

type RouteChange struct {
	Reason Reason
}

type InterruptionType int

const (
	InterruptionBegan InterruptionType = iota
	InterruptionEnded
)

func (t InterruptionType) String() string {
	if t == InterruptionBegan {
		return "began"
	}
	return "ended"
}

type Interruption struct {
	Type InterruptionType
	// ShouldResume is only meaningful when Type is InterruptionEnded.
	ShouldResume bool
}

// Platform is the audio session collaborator a Session projects from.
type Platform interface {
	AvailableCategories() []Name
	AvailableModes() []Mode
	Category() Name
	SetCategory(name Name, mode Mode, opts Options) error
	SetActive(active bool) error

	AvailableInputs() []Port
	CurrentRoute() Route
	SetPreferredInput(port Port) error

	RouteChanges() *event.Stream[RouteChange]
	Interruptions() *event.Stream[Interruption]
}
