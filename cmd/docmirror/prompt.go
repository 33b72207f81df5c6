package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"docmirror/pkg/config"
	"docmirror/pkg/session"
)

// asker reads a visible answer from the human
type asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// interactivePrompter is what the run needs from the terminal
type interactivePrompter interface {
	session.Prompter
	asker
}

// screen is a full-screen display that must let go of the terminal while
// the human answers a prompt
type screen interface {
	Suspend() error
	Resume() error
}

// suspendingPrompter hands the terminal back to the human for each prompt
type suspendingPrompter struct {
	inner  interactivePrompter
	screen screen
}

func (s *suspendingPrompter) around(fn func() error) error {
	if err := s.screen.Suspend(); err != nil {
		return err
	}
	defer s.screen.Resume()
	return fn()
}

func (s *suspendingPrompter) WaitForEnter(ctx context.Context, msg string) error {
	return s.around(func() error { return s.inner.WaitForEnter(ctx, msg) })
}

func (s *suspendingPrompter) ReadSecret(ctx context.Context, prompt string) (secret string, err error) {
	err = s.around(func() error {
		secret, err = s.inner.ReadSecret(ctx, prompt)
		return err
	})
	return secret, err
}

func (s *suspendingPrompter) Ask(ctx context.Context, prompt string) (answer string, err error) {
	err = s.around(func() error {
		answer, err = s.inner.Ask(ctx, prompt)
		return err
	})
	return answer, err
}

var modeChoices = []struct {
	mode string
	desc string
}{
	{config.ModeSync, "scan for new documents, then download everything pending"},
	{config.ModeScan, "only discover documents"},
	{config.ModeDownload, "only download what is already known"},
}

// chooseMode shows the mode menu until a valid choice is made
func chooseMode(ctx context.Context, a asker) (string, error) {
	fmt.Println("\nWhat should this run do?")
	for i, c := range modeChoices {
		fmt.Printf("  %d. %-8s %s\n", i+1, c.mode, c.desc)
	}
	for {
		answer, err := a.Ask(ctx, "Choice [1]: ")
		if err != nil {
			return "", err
		}
		if mode, ok := parseModeChoice(answer); ok {
			return mode, nil
		}
		fmt.Println("Enter 1, 2, 3 or a mode name.")
	}
}

func parseModeChoice(answer string) (string, bool) {
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "" {
		return config.ModeSync, true
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(modeChoices) {
			return modeChoices[n-1].mode, true
		}
		return "", false
	}
	for _, c := range modeChoices {
		if c.mode == answer {
			return c.mode, true
		}
	}
	return "", false
}

// chooseDatasets asks for a selection; an empty answer selects all
func chooseDatasets(ctx context.Context, a asker, known []int) (string, error) {
	return a.Ask(ctx, fmt.Sprintf("Datasets to process (e.g. 1,3,5 or 1-%d) [all]: ", maxOf(known)))
}

// confirm asks a yes/no question. An empty answer or a read error
// returns def and false respectively.
func confirm(ctx context.Context, a asker, question string, def bool) bool {
	answer, err := a.Ask(ctx, question)
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "":
		return def
	case "y", "yes":
		return true
	default:
		return false
	}
}

func maxOf(nums []int) int {
	m := 0
	for _, n := range nums {
		m = max(m, n)
	}
	return m
}
