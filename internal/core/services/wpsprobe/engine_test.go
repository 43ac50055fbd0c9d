package wpsprobe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/airwarden/internal/adapters/process"
	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

// TestHelperProcess isn't a real test. It's used as a helper process
// to mock execution of external tools.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	fmt.Println("BSSID               Ch  dBm  WPS  Lck  Vendor    ESSID")
	fmt.Println("--------------------------------------------------------------------------------")
	fmt.Println("AA:BB:CC:DD:EE:01    6  -45  2.0  No   RalinkTe  HomeWiFi")
	fmt.Println("AA:BB:CC:DD:EE:02   11  -70  1.0  Yes  Broadcom  Office")
	fmt.Println("garbage")
	if os.Getenv("HELPER_HANG") == "1" {
		time.Sleep(10 * time.Second)
	}
	os.Exit(1)
}

func helperLauncher(env ...string) *process.Launcher {
	l := process.NewLauncher()
	l.Command = func(ctx context.Context, name string, arg ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, arg...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append([]string{"GO_WANT_HELPER_PROCESS=1"}, env...)
		return cmd
	}
	l.LookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
	l.Grace = 500 * time.Millisecond
	return l
}

type knownMerger struct {
	mu    sync.Mutex
	known map[string]bool
	got   []domain.WPSInfo
}

func (m *knownMerger) MergeWPS(info domain.WPSInfo) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, info)
	return m.known[info.BSSID]
}

func TestEngine_MergesRowsAndSurvivesCrash(t *testing.T) {
	merger := &knownMerger{known: map[string]bool{"AA:BB:CC:DD:EE:01": true}}
	e := New("wlan0mon", helperLauncher(), merger)

	require.NoError(t, e.Start(context.Background()))

	select {
	case <-e.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not finish after wash exited")
	}

	stats := e.Stats()
	assert.Equal(t, int64(2), stats.Rows)
	assert.Equal(t, int64(1), stats.Merged)
	assert.Equal(t, int64(1), stats.Unknown)

	require.Len(t, merger.got, 2)
	assert.Equal(t, "2.0", merger.got[0].Version)
	assert.False(t, merger.got[0].Locked)
	assert.True(t, merger.got[1].Locked)

	e.Stop()
}

func TestEngine_Stop(t *testing.T) {
	merger := &knownMerger{known: map[string]bool{}}
	e := New("wlan0mon", helperLauncher("HELPER_HANG=1"), merger)

	require.NoError(t, e.Start(context.Background()))
	assert.Error(t, e.Start(context.Background()))

	assert.Eventually(t, func() bool { return e.Stats().Rows == 2 }, 5*time.Second, 10*time.Millisecond)

	start := time.Now()
	e.Stop()
	assert.Less(t, time.Since(start), 5*time.Second)
	e.Stop()
}

func TestEngine_MissingTool(t *testing.T) {
	l := helperLauncher()
	l.LookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	e := New("wlan0mon", l, &knownMerger{})

	err := e.Start(context.Background())
	assert.True(t, errors.Is(err, domain.ErrToolUnavailable))
}
