package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/lessonpkg"
	"github.com/mrdawstar/LinguaLab-sub000/core/usage"
	"github.com/mrdawstar/LinguaLab-sub000/services/export"
)

// expire runs the package expiry sweep once.
func (cli *commandLine) expire() error {
	n, err := cli.svcs.Packages.ExpireDue(context.Background(), core.NowFunc())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d package(s) expired\n", n)
	return nil
}

// reconcile replays an attendance mark through the usage reconciler.
func (cli *commandLine) reconcile(lessonID, studentID string, attended bool, recordID string) error {
	res, err := cli.svcs.Reconciler.Reconcile(context.Background(), usage.NewEvent(lessonID, studentID, attended, recordID))
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "record %s: %s", res.AttendanceRecordID, res.Action)
	if res.PackagePurchaseID != nil {
		fmt.Fprintf(cli.out, " (package %s)", *res.PackagePurchaseID)
	}
	if res.MissingPackage {
		fmt.Fprint(cli.out, " - no package available")
	}
	fmt.Fprintln(cli.out)
	return nil
}

// export writes the package ledger of a school or a student.
func (cli *commandLine) export(schoolID, studentID, out string) error {
	ps, err := cli.svcs.Packages.ListByStudent(context.Background(), lessonpkg.QueryFilter{
		StudentID: core.CleanString(studentID, true /* lower */),
		SchoolID:  core.CleanString(schoolID, true /* lower */),
	})
	if err != nil {
		return err
	}

	ledger, err := export.NewPackageLedger(ps)
	if err != nil {
		return err
	}
	if out == "" {
		out = export.Filename(core.NowFunc())
	}
	f, err := os.Create(out)
	if err != nil {
		return errors.Wrap(err, "creating ledger file")
	}
	if err = ledger.Write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return errors.Wrap(err, "closing ledger file")
	}
	fmt.Fprintf(cli.out, "%d package(s) exported to %s\n", len(ps), out)
	return nil
}
