// Package testing provides an in-memory cloud.Provisioner.
package testing

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/korasi/korasi/internal/cloud"
)

// FakeProvisioner keeps instances in memory and records every call.
type FakeProvisioner struct {
	mu        sync.Mutex
	instances []cloud.Instance

	// Err, when set, is returned by every call.
	Err error

	Calls      []string
	Created    []cloud.CreateRequest
	AllowCount int
}

// NewFakeProvisioner returns a provisioner holding instances.
func NewFakeProvisioner(instances ...cloud.Instance) *FakeProvisioner {
	return &FakeProvisioner{instances: slices.Clone(instances)}
}

// Instances returns the current instances.
func (f *FakeProvisioner) Instances() []cloud.Instance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.instances)
}

func (f *FakeProvisioner) List(_ context.Context, states ...cloud.State) ([]cloud.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "list")
	if f.Err != nil {
		return nil, f.Err
	}
	return cloud.Filter(f.instances, states...), nil
}

func (f *FakeProvisioner) Start(_ context.Context, ids ...string) error {
	return f.transition("start", ids, cloud.StateRunning)
}

func (f *FakeProvisioner) Stop(_ context.Context, wait bool, ids ...string) error {
	return f.transition(fmt.Sprintf("stop wait=%v", wait), ids, cloud.StateStopped)
}

func (f *FakeProvisioner) Delete(_ context.Context, wait bool, ids ...string) error {
	return f.transition(fmt.Sprintf("delete wait=%v", wait), ids, cloud.StateTerminated)
}

func (f *FakeProvisioner) Create(_ context.Context, req cloud.CreateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "create")
	if f.Err != nil {
		return "", f.Err
	}
	f.Created = append(f.Created, req)
	id := fmt.Sprintf("i-%04d", len(f.instances)+1)
	name := req.Name
	if name == "" {
		name = cloud.NewName()
	}
	f.instances = append(f.instances, cloud.Instance{Name: name, ID: id, State: cloud.StatePending, Type: req.InstanceType})
	return id, nil
}

func (f *FakeProvisioner) AllowSSH(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "allow-ssh")
	f.AllowCount++
	return f.Err
}

func (f *FakeProvisioner) Obliterate(_ context.Context, keyPath string) (*cloud.ObliterateReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "obliterate")
	if f.Err != nil {
		return nil, f.Err
	}
	report := &cloud.ObliterateReport{Instances: cloud.IDs(cloud.Filter(f.instances)), KeyFile: keyPath}
	for i := range f.instances {
		f.instances[i].State = cloud.StateTerminated
	}
	return report, nil
}

func (f *FakeProvisioner) transition(call string, ids []string, to cloud.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("%s %v", call, ids))
	if f.Err != nil {
		return f.Err
	}
	for _, id := range ids {
		i := slices.IndexFunc(f.instances, func(inst cloud.Instance) bool { return inst.ID == id })
		if i < 0 {
			return fmt.Errorf("no instance %s", id)
		}
		f.instances[i].State = to
	}
	return nil
}

var _ cloud.Provisioner = (*FakeProvisioner)(nil)
