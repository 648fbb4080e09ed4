package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/mbolis/field-survey/syncer"
)

// promptConfirmer asks on the terminal before replacing a stored template.
type promptConfirmer struct{}

func (promptConfirmer) ConfirmUpdate(ctx context.Context, u syncer.Update) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var out bool
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("A newer version of %q is available (v%d -> v%d). Update?",
			u.Current.Title, u.Current.Version, u.Remote.Version),
		Help: "Existing instances keep their answers. Declining keeps the stored version.",
	}
	if err := survey.AskOne(prompt, &out); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return false, context.Canceled
		}
		return false, err
	}
	return out, nil
}

// runSync performs one sync from the terminal and prints the outcome.
func runSync(c *syncer.Coordinator, url string, assumeYes bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var confirmer syncer.Confirmer = promptConfirmer{}
	if assumeYes {
		confirmer = syncer.Always(true)
	}

	res, err := c.SyncWith(ctx, url, confirmer)
	if err != nil {
		return err
	}
	fmt.Println(res.Message())
	return nil
}
