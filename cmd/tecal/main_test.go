package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tecal/internal/schedule"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestConvert_AllEvents(t *testing.T) {
	out := filepath.Join(t.TempDir(), "calendar.csv")

	_, _, err := execute(t, "convert", "testdata/schema.csv", "-o", out)
	require.NoError(t, err)

	rows := readRows(t, out)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"TDDE01: Föreläsning", "01/15/2024", "FALSE", "08:15 AM", "10:00 AM", "Ada Lovelace", "Introduktion"}, rows[1])
}

func TestConvert_WithinKeepFlags(t *testing.T) {
	out := filepath.Join(t.TempDir(), "calendar.csv")

	_, _, err := execute(t, "convert", "testdata/schema.csv", "-o", out,
		"--within", "undervisningstyp=Laboration,undervisningstyp=Seminarium",
		"--keep", "information=Grupp B",
	)
	require.NoError(t, err)

	rows := readRows(t, out)
	require.Len(t, rows, 3)
	assert.Equal(t, "TDDE01: Föreläsning", rows[1][0])
	assert.Equal(t, "TATA24: Lektion", rows[2][0])
}

func TestConvert_ExactDateFlag(t *testing.T) {
	out := filepath.Join(t.TempDir(), "calendar.csv")

	_, _, err := execute(t, "convert", "testdata/schema.csv", "-o", out,
		"--keep", "startdatum=2024-01-16",
	)
	require.NoError(t, err)

	rows := readRows(t, out)
	require.Len(t, rows, 2)
	assert.Equal(t, "01/16/2024", rows[1][1])
}

func TestConvert_ConfigRulesAndICS(t *testing.T) {
	dir := t.TempDir()
	input, err := filepath.Abs("testdata/schema.csv")
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "tecal.yaml")
	cfg := "input: " + input + "\n" +
		"output: " + filepath.Join(dir, "calendar.csv") + "\n" +
		"ics_output: " + filepath.Join(dir, "calendar.ics") + "\n" +
		"log_level: info\n" +
		"rules:\n" +
		"  - name: only TDDE01\n" +
		"    keep: {kurs: TDDE01}\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	_, stderr, err := execute(t, "convert", "--config", cfgPath)
	require.NoError(t, err)

	rows := readRows(t, filepath.Join(dir, "calendar.csv"))
	assert.Len(t, rows, 3)

	ics, err := os.ReadFile(filepath.Join(dir, "calendar.ics"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(ics), "BEGIN:VEVENT"))

	assert.Contains(t, stderr, "read schedule schedule=schema events=3")
	assert.Contains(t, stderr, "filtered schedule schedule=schema before=3 after=2")
}

func TestConvert_EmptyResultWritesNothing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "calendar.csv")

	_, _, err := execute(t, "convert", "testdata/schema.csv", "-o", out, "--keep", "kurs=NOPE")
	require.NoError(t, err)

	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestConvert_QuietByDefault(t *testing.T) {
	out := filepath.Join(t.TempDir(), "calendar.csv")

	_, stderr, err := execute(t, "convert", "testdata/schema.csv", "-o", out)
	require.NoError(t, err)
	assert.Empty(t, stderr)
}

func TestConvert_QuietOverridesConfigLevel(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tecal.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log_level: debug\n"), 0o600))

	_, stderr, err := execute(t, "convert", "testdata/schema.csv", "-c", cfgPath, "-q",
		"-o", filepath.Join(dir, "calendar.csv"))
	require.NoError(t, err)
	assert.Empty(t, stderr)
}

func TestConvert_VerboseFlagLogsProgress(t *testing.T) {
	out := filepath.Join(t.TempDir(), "calendar.csv")

	_, stderr, err := execute(t, "convert", "testdata/schema.csv", "-o", out, "-v")
	require.NoError(t, err)
	assert.Contains(t, stderr, "conversion done events_in=3 events_out=3")
}

func TestConvert_Errors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := execute(t, "convert")
	assert.ErrorContains(t, err, "no input")

	_, _, err = execute(t, "convert", filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	_, _, err = execute(t, "convert", "testdata/schema.csv", "-o", filepath.Join(dir, "x.csv"), "--within", "kurs")
	assert.ErrorContains(t, err, "field=value")

	_, _, err = execute(t, "convert", "testdata/schema.csv", "-o", filepath.Join(dir, "x.csv"), "--keep", "starttid=8")
	assert.Error(t, err)

	_, _, err = execute(t, "convert", "testdata/schema.csv", "-v", "-q")
	assert.Error(t, err)
}

func TestParseGroup(t *testing.T) {
	got, err := parseGroup(`undervisningstyp=Laboration,undervisningstyp=Seminarium,"lokal=SU15, SU17"`)
	require.NoError(t, err)
	assert.Equal(t, []schedule.Criterion{
		schedule.Contains("undervisningstyp", "Laboration"),
		schedule.Contains("undervisningstyp", "Seminarium"),
		schedule.Contains("lokal", "SU15, SU17"),
	}, got)

	_, err = parseGroup("=x")
	assert.Error(t, err)

	_, err = parseGroup("startdatum=tomorrow")
	assert.Error(t, err)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tecal.yaml")

	stdout, _, err := execute(t, "init", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote "+path)

	_, err = os.Stat(path)
	require.NoError(t, err)

	_, _, err = execute(t, "init", path)
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "tecal dev (unknown)\n", stdout)
}
