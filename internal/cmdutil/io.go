package cmdutil

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/samber/lo"
)

var (
	loadingSpinner = spinner.New(spinner.CharSets[0], time.Millisecond*100)
)

func PrintE(message string) {
	println()
	color.Red(message)
}

func Print(message string) {
	_, _ = fmt.Fprintln(os.Stdout, message)
}

func PrintS(message string) {
	println()
	color.Green(message)
}

func PrintW(message string) {
	println()
	color.Yellow(message)
}

func StartLoading(message string) {
	loadingSpinner.Prefix = message
	loadingSpinner.Start()
}

func StopLoading() {
	loadingSpinner.Stop()
}

// PromptConfirmer implements yes/no confirmation via an interactive prompt.
type PromptConfirmer struct{}

func (PromptConfirmer) Confirm(prompt string) bool {
	p := promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	}
	result, err := p.Run()
	if err != nil {
		return false
	}
	return lo.Contains([]string{"Yes", "yes", "y", "Y"}, result)
}
