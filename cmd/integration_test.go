package cmd

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/KaramelBytes/fracture-cli/internal/config"
	"github.com/KaramelBytes/fracture-cli/internal/pipeline"
	"github.com/KaramelBytes/fracture-cli/internal/report"
	"github.com/KaramelBytes/fracture-cli/internal/sample"
)

// resetFlags puts every flag of c and its subcommands back to its default so
// values from one invocation do not leak into the next.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execCmd(args ...string) error {
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) {
	t.Helper()
	require.NoError(t, execCmd(args...), "command %v failed", args)
}

// captureStdout returns what fn printed to stdout.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old }()
	done := make(chan string)
	go func() {
		b, _ := io.ReadAll(r)
		done <- string(b)
	}()
	fn()
	w.Close()
	return <-done
}

// isolateHome points HOME at a temp dir so config and ledger stay local to the test.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

// writeVisitsCSV writes 300 synthetic visits, 30 of them fractures.
func writeVisitsCSV(t *testing.T, dir string) string {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	var b strings.Builder
	b.WriteString("id,age,gender,calcium,test1,test2,test3,M84_current,E11_current,result\n")
	levels := []string{"low", "normal", "high"}
	for i := 0; i < 300; i++ {
		yes := i%10 == 0
		gender := fmt.Sprint(i % 2)
		if i == 7 {
			gender = "2"
		}
		test1 := 5 + rng.NormFloat64()
		m84 := 0
		result := "no"
		if yes {
			test1 += 1.5
			m84 = 1
			result = "yes"
		}
		fmt.Fprintf(&b, "V%03d,%d,%s,%s,%.3f,%.3f,%.3f,%d,%d,%s\n",
			i, 50+rng.Intn(40), gender, levels[rng.Intn(3)], test1, 10+rng.NormFloat64(), 20+rng.NormFloat64(),
			m84, rng.Intn(2), result)
	}
	path := filepath.Join(dir, "visits.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestCLI_Profile_WritesMarkdown(t *testing.T) {
	home := isolateHome(t)
	in := writeVisitsCSV(t, home)
	out := filepath.Join(home, "profiles")

	runCmd(t, "profile", in, "-o", out, "--quiet")
	runCmd(t, "profile", in, "-o", out, "--quiet", "--sample-rows", "0")

	first, err := os.ReadFile(filepath.Join(out, "visits.profile.md"))
	require.NoError(t, err)
	assert.Contains(t, string(first), "[DATASET SUMMARY]")
	assert.Contains(t, string(first), "[HEAD AND SAMPLE ROWS]")
	assert.Contains(t, string(first), `gender: rare level "2"`)

	second, err := os.ReadFile(filepath.Join(out, "visits__2.profile.md"))
	require.NoError(t, err, "second profile avoids overwriting the first")
	assert.NotContains(t, string(second), "[HEAD AND SAMPLE ROWS]")
}

func TestCLI_Run_Runs(t *testing.T) {
	home := isolateHome(t)
	in := writeVisitsCSV(t, home)
	runsDir := filepath.Join(home, "runs")

	runCmd(t, "config", "set", "output_dir", runsDir)
	runCmd(t, "run", in, "--ledger", "--models", "logistic", "--seed", "7")

	entries, err := os.ReadDir(runsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	run, err := report.LoadRun(filepath.Join(runsDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, int64(7), run.Settings.Seed)
	assert.Equal(t, []string{"logistic"}, run.Settings.Models)
	require.NotNil(t, run.Clean)
	assert.Equal(t, 1, run.Clean.DroppedAnomalies)
	_, err = os.Stat(filepath.Join(run.Dir(), report.PredictionsFileName("logistic")))
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(home, ".fracture", "runs.db"))
	assert.NoError(t, err, "ledger written to the default path")

	dirs := captureStdout(t, func() { runCmd(t, "runs") })
	assert.Contains(t, dirs, run.ID)
	assert.Contains(t, dirs, "logistic: accuracy")

	led := captureStdout(t, func() { runCmd(t, "runs", "--ledger", "--limit", "1") })
	assert.Contains(t, led, run.ID)
	assert.Equal(t, 1, strings.Count(led, "- "))
}

func TestCLI_Runs_Empty(t *testing.T) {
	home := isolateHome(t)
	runCmd(t, "config", "set", "output_dir", filepath.Join(home, "nothing"))
	out := captureStdout(t, func() { runCmd(t, "runs") })
	assert.Equal(t, "(no runs)\n", out)
	out = captureStdout(t, func() { runCmd(t, "runs", "--ledger") })
	assert.Equal(t, "(no runs)\n", out)
}

func TestCLI_Run_StageError(t *testing.T) {
	home := isolateHome(t)
	in := writeVisitsCSV(t, home)

	err := execCmd("run", in, "-o", filepath.Join(home, "runs"), "--ratio", "100")
	require.Error(t, err)
	var se *pipeline.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, pipeline.StageBalance, se.Stage)
	var ins *sample.InsufficientSampleError
	assert.True(t, errors.As(err, &ins))

	err = execCmd("run", in, "--models", "random-forest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestCLI_ConfigSetShow(t *testing.T) {
	home := isolateHome(t)

	runCmd(t, "config", "set", "split", "0.7")
	runCmd(t, "config", "set", "models", "naive-bayes")
	runCmd(t, "config", "set", "remove_outliers", "false")

	c, err := cfgpkg.Load(filepath.Join(home, ".fracture", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0.7, c.Split)
	assert.Equal(t, []string{"naive-bayes"}, c.Models)
	assert.False(t, c.RemoveOutliers)

	out := captureStdout(t, func() { runCmd(t, "config", "show") })
	assert.Contains(t, out, "split: 0.7")
	assert.Contains(t, out, "- naive-bayes")

	assert.Error(t, execCmd("config", "set", "no_such_key", "1"))
	assert.Error(t, execCmd("config", "set", "split", "1.5"), "validation rejects out-of-range split")
	assert.Error(t, execCmd("config", "set", "models", "svm"))

	c, err = cfgpkg.Load(filepath.Join(home, ".fracture", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0.7, c.Split, "rejected values are not saved")
}
