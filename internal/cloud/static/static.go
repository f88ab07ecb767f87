// Package static serves instances from the hosts listed in the config
// file. The hosts are managed outside korasi, so state changes fail.
package static

import (
	"context"
	"fmt"
	"sort"

	"github.com/korasi/korasi/internal/cloud"
	"github.com/korasi/korasi/internal/config"
	"github.com/korasi/korasi/internal/errors"
)

// Directory is a read-only cloud.Directory over config hosts.
type Directory struct {
	instances []cloud.Instance
}

// New builds a directory from the config's hosts map. A host without a
// state is taken to be running.
func New(hosts map[string]config.StaticHost) (*Directory, error) {
	names := make([]string, 0, len(hosts))
	for name := range hosts {
		names = append(names, name)
	}
	sort.Strings(names)

	d := &Directory{}
	for _, name := range names {
		h := hosts[name]
		state := cloud.StateRunning
		if h.State != "" {
			st, err := cloud.ParseState(h.State)
			if err != nil {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					fmt.Sprintf("Host '%s' has an invalid state", name),
					"Use one of: pending, running, stopping, stopped.")
			}
			state = st
		}
		d.instances = append(d.instances, cloud.Instance{
			Name:          name,
			ID:            name,
			State:         state,
			Type:          h.Type,
			PublicAddress: h.Address,
		})
	}
	return d, nil
}

// List returns hosts in any of states, sorted by name.
func (d *Directory) List(_ context.Context, states ...cloud.State) ([]cloud.Instance, error) {
	return cloud.Filter(d.instances, states...), nil
}

func (d *Directory) Start(context.Context, ...string) error {
	return unsupported("start")
}

func (d *Directory) Stop(context.Context, bool, ...string) error {
	return unsupported("stop")
}

func (d *Directory) Delete(context.Context, bool, ...string) error {
	return unsupported("delete")
}

func unsupported(op string) error {
	return errors.New(errors.ErrCloud,
		fmt.Sprintf("Can't %s static hosts", op),
		"Static hosts are managed outside korasi. Switch provider to ec2 to control instances.")
}

var _ cloud.Directory = (*Directory)(nil)
