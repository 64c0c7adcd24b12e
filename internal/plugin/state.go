package plugin

// State is a step of the per-project install/uninstall state machine.
type State string

const (
	StatePending              State = "PENDING"
	StateNotInstalled         State = "NOT_INSTALLED"
	StateAlreadyInstalled     State = "ALREADY_INSTALLED"
	StateBackedUp             State = "BACKED_UP"
	StateDependenciesUpdated  State = "DEPENDENCIES_UPDATED"
	StateRemovedFromDeps      State = "REMOVED_FROM_DEPS"
	StateRepoDeregistered     State = "REPO_DEREGISTERED"
	StateRemovedFromPluginDir State = "REMOVED_FROM_PLUGIN_DIR"
	StateRequired             State = "REQUIRED_IN_PLUGIN_DIR"
	StateVerified             State = "VERIFIED"
	StateDone                 State = "DONE"
	StateRolledBack           State = "ROLLED_BACK"
	// StateFailed covers failures that happen before anything was mutated, and rollbacks
	// that could not be completed.
	StateFailed State = "FAILED"
)

// Outcome is the result of processing one project of a batch.
type Outcome struct {
	Project string
	State   State
	// Trail lists every state the project passed through, in order.
	Trail []State
	Err   error
}

func newOutcome(project string) *Outcome {
	return &Outcome{Project: project, State: StatePending, Trail: []State{StatePending}}
}

func (o *Outcome) OK() bool {
	return o.State == StateDone
}

func (o *Outcome) advance(s State) {
	o.State = s
	o.Trail = append(o.Trail, s)
}

func (o *Outcome) fail(s State, err error) {
	o.advance(s)
	o.Err = err
}
