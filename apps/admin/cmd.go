package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/mrdawstar/LinguaLab-sub000/apps/shared"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db   *sql.DB // nil with the memory engine
	svcs *shared.Services
	out  io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  expire - mark expired the packages past due or idle for too long")
	fmt.Fprintln(cli.out, "  reconcile -lesson ID -student ID -attended[=false] [-record ID] - reconcile package usage for an attendance mark")
	fmt.Fprintln(cli.out, "  export -school ID|-student ID [-out FILE] - export package ledger to an xlsx workbook")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	reconcileCmd := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	reconcileCmd.SetOutput(cli.out)
	reconcileLesson := reconcileCmd.String("lesson", "", "The lesson ID.")
	reconcileStudent := reconcileCmd.String("student", "", "The student ID.")
	reconcileAttended := reconcileCmd.Bool("attended", false, "Whether the student attended, for a pair not marked yet; a stored record keeps its own flag.")
	reconcileRecord := reconcileCmd.String("record", "", "The attendance record ID, if known.")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportCmd.SetOutput(cli.out)
	exportSchool := exportCmd.String("school", "", "Export the packages of this school.")
	exportStudent := exportCmd.String("student", "", "Export the packages of this student.")
	exportOut := exportCmd.String("out", "", "Output file. Defaults to a timestamped file in the working directory.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "expire":
		return cli.expire()

	case "reconcile":
		if err := reconcileCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *reconcileLesson == "" || *reconcileStudent == "" {
			reconcileCmd.Usage()
			return errHelp
		}
		return cli.reconcile(*reconcileLesson, *reconcileStudent, *reconcileAttended, *reconcileRecord)

	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *exportSchool == "" && *exportStudent == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(*exportSchool, *exportStudent, *exportOut)

	default:
		cli.printUsage()
		return errHelp
	}
}
