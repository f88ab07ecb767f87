package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/korasi/korasi/internal/cloud"
	"github.com/korasi/korasi/internal/ui"
	"github.com/korasi/korasi/internal/util"
)

// allStates includes terminated instances, which AWS keeps listing for
// about an hour.
var allStates = []cloud.State{
	cloud.StatePending,
	cloud.StateRunning,
	cloud.StateStopping,
	cloud.StateStopped,
	cloud.StateShuttingDown,
	cloud.StateTerminated,
}

func listCommand(ctx context.Context, all bool, out io.Writer) error {
	w, err := SetupWorkflow(ctx)
	if err != nil {
		return err
	}

	var states []cloud.State
	if all {
		states = allStates
	}
	instances, err := w.Directory.List(ctx, states...)
	if err != nil {
		return err
	}

	if machineMode {
		return WriteJSONSuccess(out, instancesToJSON(instances))
	}
	fmt.Fprintln(out, ui.RenderInstanceTable(instances))
	return nil
}

// stateChange describes one of start, stop and delete.
type stateChange struct {
	// from lists the states an instance must be in to be offered.
	from   []cloud.State
	prompt string
	// doing labels the spinner; done is the past tense for the summary.
	doing  string
	done   string
	apply  func(ctx context.Context, d cloud.Directory, ids []string) error
}

var (
	startChange = stateChange{
		from:   []cloud.State{cloud.StateStopped},
		prompt: "Start which instances?",
		doing:  "Starting",
		done:   "Started",
		apply: func(ctx context.Context, d cloud.Directory, ids []string) error {
			return d.Start(ctx, ids...)
		},
	}
	stopChange = func(wait bool) stateChange {
		return stateChange{
			from:   []cloud.State{cloud.StatePending, cloud.StateRunning},
			prompt: "Stop which instances?",
			doing:  "Stopping",
			done:   "Stopped",
			apply: func(ctx context.Context, d cloud.Directory, ids []string) error {
				return d.Stop(ctx, wait, ids...)
			},
		}
	}
	deleteChange = func(wait bool) stateChange {
		return stateChange{
			from:   cloud.ActiveStates,
			prompt: "Delete which instances?",
			doing:  "Deleting",
			done:   "Deleted",
			apply: func(ctx context.Context, d cloud.Directory, ids []string) error {
				return d.Delete(ctx, wait, ids...)
			},
		}
	}
)

// changeStateCommand offers the instances in change.from, then applies
// change to the chosen ones.
func changeStateCommand(ctx context.Context, change stateChange, out io.Writer) error {
	w, err := SetupWorkflow(ctx)
	if err != nil {
		return err
	}

	candidates, err := w.Directory.List(ctx, change.from...)
	if err != nil {
		return err
	}
	chosen, err := ui.MultiSelectInstances(change.prompt, candidates)
	if err != nil {
		return err
	}
	if len(chosen) == 0 {
		fmt.Fprintln(out, ui.MutedStyle().Render("Nothing selected"))
		return nil
	}

	ids := cloud.IDs(chosen)
	err = ui.Track(fmt.Sprintf("%s %s", change.doing, util.JoinOrNone(ids...)), func() error {
		return change.apply(ctx, w.Directory, ids)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s %s\n",
		ui.SuccessStyle().Render(ui.SymbolSuccess),
		change.done,
		util.CountNoun(len(ids), "instance", "instances"))
	return nil
}
