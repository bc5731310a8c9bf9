package cmd

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"

	"github.com/spigell/govcon-matcher/internal/govcon"
)

const PromptBack = "back"

var errExit = errors.New("exit requested")

// selectSuggestion shows the suggestions and returns the chosen index. Replaced in tests.
var selectSuggestion = func(label string, items []string) (int, error) {
	prompt := promptui.Select{
		Label: label,
		Items: items,
		Size:  len(items),
	}
	idx, _, err := prompt.Run()
	return idx, err
}

// disambiguate reruns op while it fails with a not-found that carries suggestions,
// applying the suggestion the user picks. Without interactive the first result is returned.
func disambiguate[T any](interactive bool, op func() (T, error), apply func(govcon.Suggestion)) (T, error) {
	for {
		res, err := op()
		if !interactive {
			return res, err
		}

		failure, ok := govcon.AsFailure(err)
		if !ok || failure.Kind != govcon.FailureNotFound || len(failure.Suggestions) == 0 {
			return res, err
		}

		items := make([]string, 0, len(failure.Suggestions)+1)
		for _, s := range failure.Suggestions {
			items = append(items, s.Hint)
		}
		items = append(items, PromptBack)

		idx, promptErr := selectSuggestion(fmt.Sprintf("%s Choose one and press ENTER", failure.Message), items)
		if promptErr != nil {
			return res, fmt.Errorf("choosing a suggestion: %w", promptErr)
		}
		if idx < 0 || idx >= len(failure.Suggestions) {
			return res, errExit
		}

		apply(failure.Suggestions[idx])
	}
}
