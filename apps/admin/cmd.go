package main

import (
	"database/sql"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/ilmlab/core"
	"github.com/trezcool/ilmlab/core/identity"
	"github.com/trezcool/ilmlab/core/progress"
)

var (
	nowFunc = time.Now // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf   *core.Config
	db     *sql.DB // nil unless the store is sql
	ledger *progress.Ledger
	tokens *identity.TokenIssuer
	out    io.Writer
}

func newCommandLine(conf *core.Config, logger core.Logger, db *sql.DB, store core.DocumentStore, out io.Writer) *commandLine {
	return &commandLine{
		conf: conf,
		db:   db,
		ledger: progress.NewLedger(conf, progress.LedgerDeps{
			Store:  store,
			Logger: logger,
			Clock:  func() time.Time { return nowFunc() },
		}),
		tokens: identity.NewTokenIssuer(conf),
		out:    out,
	}
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         cli.conf.AppName + " administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	root.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.reconcileCmd(),
		cli.tokenCmd(),
	)
	return root
}

// run executes the command line, args[0] being the program name.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.Execute()
}
