package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mrdawstar/LinguaLab-sub000/apps/shared"
	"github.com/mrdawstar/LinguaLab-sub000/core/attendance"
	"github.com/mrdawstar/LinguaLab-sub000/core/lessonpkg"
	"github.com/mrdawstar/LinguaLab-sub000/services/export"
	logsvc "github.com/mrdawstar/LinguaLab-sub000/services/logger"
	inmemdb "github.com/mrdawstar/LinguaLab-sub000/storage/database/inmem"
	"github.com/mrdawstar/LinguaLab-sub000/tests"
)

var stores *shared.Stores

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	// set up DB & repos
	stores = shared.MemoryStores(inmemdb.Open())

	// start CLI
	var out bytes.Buffer
	return &commandLine{
		svcs: shared.NewServices(stores, testutil.NewValidator(), logsvc.NewNop()),
		out:  &out,
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func runCliTests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			} else if tt.wantErr != nil || tt.wantErrStr != "" {
				t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _ := setup(t)

	runCliTests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	})
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	runCliTests(t, cli, []cliTest{
		{name: "memory engine", args: []string{"migrate", "up"}, wantErr: errNoSQLDatabase},
	})

	cli.db = &sql.DB{} // never used by the mock
	gooseRunFunc = func(_ context.Context, command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCliTests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "0"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "lessons", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	})
}

func Test_commandLine_expire(t *testing.T) {
	cli, out := setup(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)

	student := testutil.NewID()
	due := testutil.CreatePurchase(t, stores.Packages, student, 5, now.AddDate(0, -2, 0), testutil.WithExpiresAt(now.Add(-time.Hour)))
	valid := testutil.CreatePurchase(t, stores.Packages, student, 5, now.AddDate(0, -1, 0), testutil.WithExpiresAt(now.AddDate(0, 1, 0)))

	runCliTests(t, cli, []cliTest{{name: "expire", args: []string{"expire"}}})
	assert.Contains(t, out.String(), "1 package(s) expired")

	for id, want := range map[string]lessonpkg.Status{due.ID: lessonpkg.StatusExpired, valid.ID: lessonpkg.StatusActive} {
		p, err := stores.Packages.GetPurchase(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, want, p.Status)
	}
}

func Test_commandLine_reconcile(t *testing.T) {
	cli, out := setup(t)

	lesson, student := testutil.NewID(), testutil.NewID()
	pkg := testutil.CreatePurchase(t, stores.Packages, student, 10, time.Now().AddDate(0, 0, -1))

	runCliTests(t, cli, []cliTest{
		{name: "no args", args: []string{"reconcile"}, wantErr: errHelp},
		{name: "no student", args: []string{"reconcile", "-lesson", lesson}, wantErr: errHelp},
		{name: "bad flag", args: []string{"reconcile", "-lol"}, wantErr: errHelp},
		{name: "present", args: []string{"reconcile", "-lesson", lesson, "-student", student, "-attended"}},
	})
	assert.Contains(t, out.String(), "consumed (package "+pkg.ID+")")

	p, err := stores.Packages.GetPurchase(context.Background(), pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.LessonsUsed)

	attended := false
	_, err = cli.svcs.Attendance.Mark(context.Background(), attendance.MarkAttendance{LessonID: lesson, StudentID: student, Attended: &attended})
	require.NoError(t, err)

	out.Reset()
	runCliTests(t, cli, []cliTest{
		{name: "absent", args: []string{"reconcile", "-lesson", lesson, "-student", student, "-attended=false"}},
	})
	assert.Contains(t, out.String(), "restored")

	out.Reset()
	runCliTests(t, cli, []cliTest{
		{name: "no package", args: []string{"reconcile", "-lesson", lesson, "-student", testutil.NewID(), "-attended"}},
	})
	assert.Contains(t, out.String(), "no package available")
}

func Test_commandLine_export(t *testing.T) {
	cli, out := setup(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "ledger.xlsx")

	student := testutil.NewID()
	testutil.CreatePurchase(t, stores.Packages, student, 10, time.Now().AddDate(0, -1, 0), testutil.WithUsed(4))
	testutil.CreatePurchase(t, stores.Packages, student, 1, time.Now())
	testutil.CreatePurchase(t, stores.Packages, testutil.NewID(), 5, time.Now())

	runCliTests(t, cli, []cliTest{
		{name: "no filter", args: []string{"export"}, wantErr: errHelp},
		{name: "student", args: []string{"export", "-student", student, "-out", file}},
	})
	assert.Contains(t, out.String(), "2 package(s) exported")

	f, err := excelize.OpenFile(file)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.PackagesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3) // header + 2 packages

	_, err = os.Stat(file)
	assert.NoError(t, err)
}
