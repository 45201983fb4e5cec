// Package form is the interactive terminal front-end. It collects the eight
// measurements with a charmbracelet/huh form, runs them through the shared
// assessment pipeline and renders the outcome with lipgloss.
package form

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"diabetes-risk/internal/assess"
	"diabetes-risk/internal/features"
	"diabetes-risk/internal/present"

	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog/log"
)

// Assessor is the part of *assess.Service the form needs.
type Assessor interface {
	Assess(ctx context.Context, raw []string) assess.Outcome
}

// Prompter asks the user for input.
type Prompter interface {
	// Collect edits values in place. It returns false when the user chose
	// to quit instead of predicting.
	Collect(ctx context.Context, values []string) (bool, error)
	// Again asks whether to run another prediction.
	Again(ctx context.Context) (bool, error)
}

// Options configures an App.
type Options struct {
	Out        io.Writer // defaults to os.Stdout
	Prompter   Prompter  // defaults to the huh prompter
	Accessible bool      // plain prompts for screen readers
}

// App runs the predict loop.
type App struct {
	svc      Assessor
	prompter Prompter
	out      io.Writer
}

// New creates an App.
func New(svc Assessor, opts Options) *App {
	a := &App{svc: svc, prompter: opts.Prompter, out: opts.Out}
	if a.out == nil {
		a.out = os.Stdout
	}
	if a.prompter == nil {
		a.prompter = &huhPrompter{accessible: opts.Accessible}
	}
	return a
}

// InitialValues returns the form defaults as text, in contract order.
func InitialValues() []string {
	specs := features.Contract()
	values := make([]string, len(specs))
	for i, f := range specs {
		values[i] = strconv.FormatFloat(f.Default, 'f', -1, 64)
	}
	return values
}

// Run shows the form until the user quits. Values entered in one round are
// kept as the starting point of the next. Aborting the form is not an error.
func (a *App) Run(ctx context.Context) error {
	fmt.Fprintln(a.out, RenderHeader())

	ctx = assess.WithSource(ctx, assess.SourceForm)
	values := InitialValues()
	rounds := 0

	for {
		submit, err := a.prompter.Collect(ctx, values)
		if err != nil {
			if aborted(err) {
				break
			}
			return fmt.Errorf("collect input: %w", err)
		}
		if !submit {
			break
		}

		out := a.svc.Assess(ctx, values)
		rounds++
		fmt.Fprintln(a.out, RenderOutcome(out))

		again, err := a.prompter.Again(ctx)
		if err != nil {
			if aborted(err) {
				break
			}
			return fmt.Errorf("confirm: %w", err)
		}
		if !again {
			break
		}
	}

	log.Debug().Int("rounds", rounds).Msg("Form session ended")
	fmt.Fprintln(a.out, warningStyle.Render(present.Disclaimer))
	return nil
}

func aborted(err error) bool {
	return errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled)
}

type huhPrompter struct {
	accessible bool
}

func (p *huhPrompter) Collect(ctx context.Context, values []string) (bool, error) {
	specs := features.Contract()
	fields := make([]huh.Field, 0, len(specs)+1)
	for i, f := range specs {
		fields = append(fields, huh.NewInput().
			Key(f.Name).
			Title(f.Label).
			Description(fieldDescription(f)).
			Value(&values[i]).
			Validate(func(s string) error {
				return features.CheckField(i, s)
			}))
	}

	submit := true
	fields = append(fields, huh.NewConfirm().
		Title("Run the prediction?").
		Affirmative("Predict").
		Negative("Quit").
		Value(&submit))

	if err := p.run(ctx, fields...); err != nil {
		return false, err
	}
	return submit, nil
}

func (p *huhPrompter) Again(ctx context.Context) (bool, error) {
	again := true
	confirm := huh.NewConfirm().
		Title("Predict again?").
		Affirmative("Yes").
		Negative("No").
		Value(&again)
	if err := p.run(ctx, confirm); err != nil {
		return false, err
	}
	return again, nil
}

func (p *huhPrompter) run(ctx context.Context, fields ...huh.Field) error {
	return huh.NewForm(huh.NewGroup(fields...)).
		WithAccessible(p.accessible).
		RunWithContext(ctx)
}
