// Package cloud describes the instances korasi manages, independent of
// where they run.
//
// A Directory lists instances and changes their run state. A Provisioner
// can also create them and tear down everything korasi ever created. The
// EC2 backend is both; the static inventory backend is a read-only
// Directory over hosts listed in the config file.
package cloud

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// State is an instance lifecycle state, using EC2's names.
type State string

const (
	StatePending      State = "pending"
	StateRunning      State = "running"
	StateStopping     State = "stopping"
	StateStopped      State = "stopped"
	StateShuttingDown State = "shutting-down"
	StateTerminated   State = "terminated"
)

// ActiveStates are every state except terminated. List uses them when no
// state is given.
var ActiveStates = []State{StatePending, StateRunning, StateShuttingDown, StateStopping, StateStopped}

// ParseState accepts any known state name, case-insensitively.
func ParseState(s string) (State, error) {
	st := State(strings.ToLower(strings.TrimSpace(s)))
	if st == StateTerminated || slices.Contains(ActiveStates, st) {
		return st, nil
	}
	return "", fmt.Errorf("unknown instance state %q", s)
}

// Instance is one remote machine.
type Instance struct {
	Name  string
	ID    string
	State State
	Type  string
	// PublicAddress is a DNS name or IP reachable from here; empty while
	// the instance isn't running.
	PublicAddress string
}

// Label is a one-line description for pickers.
func (i Instance) Label() string {
	name := i.Name
	if name == "" {
		name = "(unnamed)"
	}
	parts := []string{name, i.ID}
	if i.Type != "" {
		parts = append(parts, i.Type)
	}
	parts = append(parts, string(i.State))
	return strings.Join(parts, "  ")
}

// Directory lists instances and controls their run state.
type Directory interface {
	// List returns instances in any of states, or in ActiveStates when
	// none are given.
	List(ctx context.Context, states ...State) ([]Instance, error)
	Start(ctx context.Context, ids ...string) error
	// Stop stops instances, optionally waiting until they are stopped.
	Stop(ctx context.Context, wait bool, ids ...string) error
	// Delete stops and then terminates instances.
	Delete(ctx context.Context, wait bool, ids ...string) error
}

// CreateRequest describes one instance to launch.
type CreateRequest struct {
	ImageID      string
	InstanceType string
	// Name tags the instance; NewName is used when empty.
	Name string
	// UserData is the raw setup script run on first boot.
	UserData []byte
	// KeyPath is where a freshly created key pair's private key is saved.
	KeyPath string
}

// ObliterateReport lists what Obliterate removed.
type ObliterateReport struct {
	Instances     []string `json:"instances"`
	SecurityGroup string   `json:"security_group,omitempty"`
	KeyPairs      []string `json:"key_pairs"`
	KeyFile       string   `json:"key_file,omitempty"`
}

// Provisioner is a Directory that can also create and destroy resources.
type Provisioner interface {
	Directory
	// Create launches one instance and returns its ID.
	Create(ctx context.Context, req CreateRequest) (string, error)
	// AllowSSH lets the caller's current public address reach SSH.
	AllowSSH(ctx context.Context) error
	// Obliterate deletes every instance, the security group, the key pairs
	// and the local private key at keyPath.
	Obliterate(ctx context.Context, keyPath string) (*ObliterateReport, error)
}

// NewName generates an instance name.
func NewName() string {
	return "korasi-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// IDs returns the IDs of instances, in order.
func IDs(instances []Instance) []string {
	ids := make([]string, len(instances))
	for i, inst := range instances {
		ids[i] = inst.ID
	}
	return ids
}

// Filter returns the instances in any of states.
func Filter(instances []Instance, states ...State) []Instance {
	if len(states) == 0 {
		states = ActiveStates
	}
	var out []Instance
	for _, inst := range instances {
		if slices.Contains(states, inst.State) {
			out = append(out, inst)
		}
	}
	return out
}
