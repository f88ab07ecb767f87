package ui

import (
	stderrors "errors"

	"github.com/charmbracelet/huh"
	"github.com/korasi/korasi/internal/cloud"
	"github.com/korasi/korasi/internal/errors"
)

// runForm runs an interactive form. Tests replace it.
var runForm = func(f *huh.Form) error { return f.Run() }

// ErrCancelled is returned when the user backs out of a prompt.
var ErrCancelled = errors.New(errors.ErrConfig, "Cancelled", "")

// SelectInstance asks the user to pick one instance. With exactly one
// candidate it is picked without prompting.
func SelectInstance(title string, instances []cloud.Instance) (cloud.Instance, error) {
	switch len(instances) {
	case 0:
		return cloud.Instance{}, noInstances()
	case 1:
		return instances[0], nil
	}

	var id string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(instanceOptions(instances)...).
				Value(&id),
		),
	)
	if err := runForm(form); err != nil {
		return cloud.Instance{}, promptError(err)
	}

	for _, inst := range instances {
		if inst.ID == id {
			return inst, nil
		}
	}
	return cloud.Instance{}, ErrCancelled
}

// MultiSelectInstances asks the user to pick any number of instances.
// With exactly one candidate it is picked without prompting.
func MultiSelectInstances(title string, instances []cloud.Instance) ([]cloud.Instance, error) {
	switch len(instances) {
	case 0:
		return nil, noInstances()
	case 1:
		return instances, nil
	}

	var ids []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(title).
				Options(instanceOptions(instances)...).
				Value(&ids),
		),
	)
	if err := runForm(form); err != nil {
		return nil, promptError(err)
	}
	return pickByID(instances, ids), nil
}

// Confirm asks a yes/no question. The default answer is no.
func Confirm(title string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)
	if err := runForm(form); err != nil {
		return false, promptError(err)
	}
	return ok, nil
}

func instanceOptions(instances []cloud.Instance) []huh.Option[string] {
	opts := make([]huh.Option[string], len(instances))
	for i, inst := range instances {
		opts[i] = huh.NewOption(inst.Label(), inst.ID)
	}
	return opts
}

// pickByID returns the instances whose IDs are in ids, in listing order.
func pickByID(instances []cloud.Instance, ids []string) []cloud.Instance {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []cloud.Instance
	for _, inst := range instances {
		if want[inst.ID] {
			out = append(out, inst)
		}
	}
	return out
}

func noInstances() error {
	return errors.New(errors.ErrCloud,
		"No matching instances",
		"Run 'korasi list' to see instances, or 'korasi create <ami-id>' to launch one.")
}

func promptError(err error) error {
	if stderrors.Is(err, huh.ErrUserAborted) {
		return ErrCancelled
	}
	return errors.WrapWithCode(err, errors.ErrConfig,
		"Failed to get user input",
		"Run korasi from an interactive terminal to choose.")
}
