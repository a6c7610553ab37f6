package permissions

// Action is one operation a principal may perform on a resource.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"

	// Wildcard matches any action or resource type in a role grant.
	Wildcard = "*"
)

// ActionSet is the set of actions granted on a resource type.
type ActionSet map[Action]struct{}

// NewActionSet builds a set from the given actions.
func NewActionSet(actions ...Action) ActionSet {
	s := make(ActionSet, len(actions))
	for _, a := range actions {
		s[a] = struct{}{}
	}
	return s
}

// Has reports whether the action is in the set.
func (s ActionSet) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

// Add inserts the action into the set.
func (s ActionSet) Add(a Action) {
	s[a] = struct{}{}
}

// Slice returns the actions in a stable order.
func (s ActionSet) Slice() []Action {
	out := make([]Action, 0, len(s))
	for _, a := range []Action{ActionView, ActionEdit, ActionDelete} {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

// ResourceType names a kind of workspace resource in role grants.
type ResourceType string

const (
	ResourceThing               ResourceType = "Thing"
	ResourceDatastream          ResourceType = "Datastream"
	ResourceObservation         ResourceType = "Observation"
	ResourceSensor              ResourceType = "Sensor"
	ResourceObservedProperty    ResourceType = "ObservedProperty"
	ResourceProcessingLevel     ResourceType = "ProcessingLevel"
	ResourceUnit                ResourceType = "Unit"
	ResourceResultQualifier     ResourceType = "ResultQualifier"
	ResourceAPIKey              ResourceType = "APIKey"
	ResourceRole                ResourceType = "Role"
	ResourceCollaborator        ResourceType = "Collaborator"
	ResourceDataConnection      ResourceType = "DataConnection"
	ResourceOrchestrationSystem ResourceType = "OrchestrationSystem"
	ResourceTask                ResourceType = "Task"
	ResourceWorkspace           ResourceType = "Workspace"
)

// restrictedResources are never implicitly world-viewable, even inside a
// public workspace: they are operational or security-sensitive.
var restrictedResources = map[ResourceType]bool{
	ResourceAPIKey:              true,
	ResourceTask:                true,
	ResourceDataConnection:      true,
	ResourceOrchestrationSystem: true,
}

// systemCreatable lists resource types staff may create without a
// workspace, as system-wide vocabulary entries.
var systemCreatable = map[ResourceType]bool{
	ResourceOrchestrationSystem: true,
	ResourceDataConnection:      true,
	ResourceProcessingLevel:     true,
	ResourceUnit:                true,
	ResourceSensor:              true,
	ResourceResultQualifier:     true,
	ResourceObservedProperty:    true,
}

// entityPrivacyFlag reports whether rows of this resource type carry their
// own is_private column in addition to the workspace flag.
func entityPrivacyFlag(rt ResourceType) bool {
	return rt == ResourceThing || rt == ResourceDatastream
}
