package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docmirror/pkg/config"
	"docmirror/pkg/cursor"
	"docmirror/pkg/dataset"
	"docmirror/pkg/index"
)

type scriptedAsker struct {
	answers []string
	asked   []string
}

func (s *scriptedAsker) Ask(ctx context.Context, prompt string) (string, error) {
	s.asked = append(s.asked, prompt)
	if len(s.answers) == 0 {
		return "", context.Canceled
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *scriptedAsker) WaitForEnter(ctx context.Context, msg string) error {
	s.asked = append(s.asked, msg)
	return nil
}

func (s *scriptedAsker) ReadSecret(ctx context.Context, prompt string) (string, error) {
	return s.Ask(ctx, prompt)
}

type fakeScreen struct {
	calls []string
}

func (f *fakeScreen) Suspend() error { f.calls = append(f.calls, "suspend"); return nil }
func (f *fakeScreen) Resume() error  { f.calls = append(f.calls, "resume"); return nil }

func TestParseModeChoice(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", config.ModeSync, true},
		{"1", config.ModeSync, true},
		{"2", config.ModeScan, true},
		{" 3 ", config.ModeDownload, true},
		{"SCAN", config.ModeScan, true},
		{"4", "", false},
		{"mirror", "", false},
	}
	for _, tt := range tests {
		got, ok := parseModeChoice(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestChooseModeRepeatsUntilValid(t *testing.T) {
	a := &scriptedAsker{answers: []string{"9", "download"}}
	mode, err := chooseMode(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, config.ModeDownload, mode)
	assert.Len(t, a.asked, 2)
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()
	assert.True(t, confirm(ctx, &scriptedAsker{answers: []string{""}}, "?", true))
	assert.False(t, confirm(ctx, &scriptedAsker{answers: []string{""}}, "?", false))
	assert.True(t, confirm(ctx, &scriptedAsker{answers: []string{"Yes"}}, "?", false))
	assert.False(t, confirm(ctx, &scriptedAsker{answers: []string{"n"}}, "?", true))
	assert.False(t, confirm(ctx, &scriptedAsker{}, "?", true), "read error declines")
}

func TestSuspendingPrompterReleasesScreen(t *testing.T) {
	inner := &scriptedAsker{answers: []string{"a=1", "y"}}
	scr := &fakeScreen{}
	p := &suspendingPrompter{inner: inner, screen: scr}

	secret, err := p.ReadSecret(context.Background(), "cookie: ")
	require.NoError(t, err)
	assert.Equal(t, "a=1", secret)

	answer, err := p.Ask(context.Background(), "ok? ")
	require.NoError(t, err)
	assert.Equal(t, "y", answer)

	require.NoError(t, p.WaitForEnter(context.Background(), "press enter"))
	assert.Equal(t, []string{"suspend", "resume", "suspend", "resume", "suspend", "resume"}, scr.calls)
}

func TestFlagOverridesOnlyChangedFlags(t *testing.T) {
	defer func() {
		outputDir, driver, headless, noValidate = "", "", false, false
		quiet, useTUI = false, false
	}()

	cmd := &cobra.Command{Use: "test"}
	addRunFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--driver", "http", "--no-validate", "-o", "/mirror"}))

	flags := flagOverrides(cmd)
	assert.Equal(t, "http", flags["driver"])
	assert.Equal(t, true, flags["no-validate"])
	assert.Equal(t, "/mirror", flags["output"])
	assert.NotContains(t, flags, "headless")
	assert.NotContains(t, flags, "account")
	assert.NotContains(t, flags, "quiet")

	useTUI = true
	assert.Equal(t, true, flagOverrides(cmd)["quiet"], "the dashboard owns the terminal")
}

func TestAdoptExistingCanBeTurnedOff(t *testing.T) {
	defer func() { adoptExisting = true }()

	cmd := &cobra.Command{Use: "test"}
	addRunFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--adopt-existing=false"}))

	cfg := config.DefaultConfig()
	require.True(t, cfg.Reconcile.AdoptExisting)
	cfg.MergeCommandLineFlags(flagOverrides(cmd))
	assert.False(t, cfg.Reconcile.AdoptExisting)
}

func TestPrintDatasetStatus(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.BaseDirectory = t.TempDir()
	cfg.Download.RetryCeiling = 2
	ds := dataset.Catalog(cfg, []int{4})[0]

	var out bytes.Buffer
	require.NoError(t, printDatasetStatus(&out, cfg, ds))
	assert.Contains(t, out.String(), "not started")

	store, err := index.Open(index.PathFor(ds.Dir, 4), 4, index.Options{RetryCeiling: 2}, nil)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, store.UpsertMany(
		index.Record{ID: "EFTA00000001.pdf", URL: "u1", SourcePage: 1, Status: index.StatusComplete, DiscoveredAt: now, CompletedAt: &now, Bytes: 10},
		index.Record{ID: "EFTA00000002.pdf", URL: "u2", SourcePage: 1, Status: index.StatusFailed, RetryCount: 2, LastError: "server_error error (code 503)", DiscoveredAt: now},
		index.Record{ID: "EFTA00000003.pdf", URL: "u3", SourcePage: 2, Status: index.StatusFailed, RetryCount: 1, LastError: "timeout", DiscoveredAt: now},
	))
	require.NoError(t, cursor.ForDataset(ds.Dir, 4).Set(cursor.Cursor{LastScannedPage: 5, ConsecutiveEmptyPages: 1}))

	showFailed = true
	defer func() { showFailed = false }()

	out.Reset()
	require.NoError(t, printDatasetStatus(&out, cfg, ds))
	s := out.String()
	assert.Contains(t, s, "5 (1 empty in a row)")
	assert.Contains(t, s, "EFTA00000002.pdf")
	assert.Contains(t, s, "code 503")
	assert.Contains(t, s, "EFTA00000003.pdf")
}
