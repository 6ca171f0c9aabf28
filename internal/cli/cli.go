// Package cli implements the docmigrate command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/docmigrate/docmigrate"
	"github.com/docmigrate/docmigrate/contrib/docdump"
	"github.com/docmigrate/docmigrate/contrib/docrestore"
	"github.com/docmigrate/docmigrate/contrib/docwipe"
	"github.com/docmigrate/docmigrate/internal/settings"
	"github.com/docmigrate/docmigrate/pkg/constants"
	"github.com/docmigrate/docmigrate/pkg/logger"
	"github.com/docmigrate/docmigrate/pkg/query"
	"github.com/docmigrate/docmigrate/pkg/remote"
)

type options struct {
	settings.Values

	action     string
	file       string
	skipVerify bool
	profile    string
	configFile string
}

// Run executes the command line in args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return docmigrate.ExitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	var usage *docmigrate.UsageError
	if errors.As(err, &usage) {
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.Name())
	}
	return docmigrate.ExitCode(err)
}

// NewRootCmd creates the docmigrate command.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "docmigrate",
		Short: "Back up, restore or wipe the documents of a remote collection",
		Long: `Back up, restore or wipe the documents of one remote collection.

Actions:
  documents-backup    write every document to backup_<database>_<collection>_<millis>.csv
  documents-restore   create one document per row of --file
  documents-wipe      delete every document of the collection

Settings not given as flags are read from DOCMIGRATE_* environment variables
(a .env file in the working directory is loaded first), then from the profile
file (~/.config/docmigrate/config.toml or --config).

Exit codes: 0 success, 1 usage error, 2 runtime error.`,
		Example: `  docmigrate --endpoint https://cloud.appwrite.io/v1 --project app --api-key $KEY \
    --database main --collection books --action documents-backup --limit 500
  docmigrate --profile staging --action documents-restore --file backup_main_books_1700000000000.csv`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return docmigrate.Usagef("unexpected argument %q", args[0])
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &docmigrate.UsageError{Msg: err.Error()}
	})

	f := cmd.Flags()
	f.StringVar(&opts.Endpoint, "endpoint", "", "API endpoint, e.g. https://cloud.appwrite.io/v1")
	f.StringVar(&opts.action, "action", "", "documents-backup, documents-restore or documents-wipe")
	f.StringVar(&opts.APIKey, "api-key", "", "API key")
	f.StringVar(&opts.Project, "project", "", "project id")
	f.StringVar(&opts.Database, "database", "", "database id")
	f.StringVar(&opts.Collection, "collection", "", "collection id")
	f.IntVar(&opts.Limit, "limit", constants.DefaultLimit, "page size of list calls")
	f.StringVar(&opts.file, "file", "", "backup file to restore")
	f.StringVar(&opts.Dir, "dir", constants.DefaultDir, "directory backups are written to")
	f.DurationVar(&opts.Timeout, "timeout", constants.DefaultHTTPTimeout, "deadline of each remote call")
	f.StringArrayVar(&opts.Recipients, "age-recipient", nil, "encrypt the backup to this age public key or recipients file (repeatable)")
	f.StringVar(&opts.Identity, "age-identity", "", "age identity file used to restore encrypted backups")
	f.BoolVar(&opts.skipVerify, "skip-verify", false, "restore without checking the backup manifest checksum")
	f.StringVar(&opts.profile, "profile", "", "profile of the config file to use")
	f.StringVar(&opts.configFile, "config", "", "config file (default ~/.config/docmigrate/config.toml)")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "log every page and document")
	f.StringVar(&opts.LogFile, "log-file", "", "also append JSON logs to this file")
	f.StringVar(&opts.QuerySyntax, "query-syntax", string(query.SyntaxJSON), "list query syntax: json or legacy")
	f.SortFlags = false

	return cmd
}

func run(cmd *cobra.Command, opts *options, stdout, stderr io.Writer) error {
	switch opts.action {
	case constants.ActionBackup, constants.ActionRestore, constants.ActionWipe:
	case "":
		return docmigrate.Usagef("--action is required")
	default:
		return docmigrate.Usagef("unsupported action %q (want %s)", opts.action,
			strings.Join([]string{constants.ActionBackup, constants.ActionRestore, constants.ActionWipe}, ", "))
	}

	values, err := resolve(cmd, opts)
	if err != nil {
		return err
	}

	logData, err := logger.New().
		FromBuffer(stderr).
		Console(true).
		Verbose(values.Verbose).
		FromPath(values.LogFile).
		Make()
	if err != nil {
		return &docmigrate.IOError{Op: "open log", Path: values.LogFile, Err: err}
	}
	defer logData.Close()
	log := logData.Logger.With().Str("action", opts.action).Logger()

	remoteConf, err := remoteConfig(values)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	switch opts.action {
	case constants.ActionBackup:
		return backup(ctx, values, remoteConf, log, stdout)
	case constants.ActionRestore:
		return restore(ctx, opts, values, remoteConf, log, stdout)
	default:
		return wipe(ctx, values, remoteConf, log, stdout)
	}
}

// resolve layers explicitly set flags over the environment, the profile file and defaults.
func resolve(cmd *cobra.Command, opts *options) (settings.Values, error) {
	values, err := settings.Load(settings.Sources{ConfigFile: opts.configFile, Profile: opts.profile})
	if err != nil {
		if errors.Is(err, settings.ErrUnknownProfile) {
			return values, &docmigrate.UsageError{Msg: err.Error()}
		}
		return values, err
	}

	f := cmd.Flags()
	changed := func(name string) bool { return f.Changed(name) }
	if changed("endpoint") {
		values.Endpoint = opts.Endpoint
	}
	if changed("api-key") {
		values.APIKey = opts.APIKey
	}
	if changed("project") {
		values.Project = opts.Project
	}
	if changed("database") {
		values.Database = opts.Database
	}
	if changed("collection") {
		values.Collection = opts.Collection
	}
	if changed("limit") {
		values.Limit = opts.Limit
	}
	if changed("dir") {
		values.Dir = opts.Dir
	}
	if changed("timeout") {
		values.Timeout = opts.Timeout
	}
	if changed("age-recipient") {
		values.Recipients = opts.Recipients
	}
	if changed("age-identity") {
		values.Identity = opts.Identity
	}
	if changed("verbose") {
		values.Verbose = opts.Verbose
	}
	if changed("log-file") {
		values.LogFile = opts.LogFile
	}
	if changed("query-syntax") {
		values.QuerySyntax = opts.QuerySyntax
	}
	return values, nil
}

func remoteConfig(values settings.Values) (*remote.Config, error) {
	syntax, err := query.ParseSyntax(values.QuerySyntax)
	if err != nil {
		return nil, &docmigrate.UsageError{Msg: err.Error()}
	}
	conf := remote.NewConfig()
	conf.Endpoint = values.Endpoint
	conf.APIKey = values.APIKey
	conf.Project = values.Project
	conf.Database = values.Database
	conf.Collection = values.Collection
	conf.Timeout = values.Timeout
	conf.QuerySyntax = syntax
	return conf, nil
}

func backup(ctx context.Context, values settings.Values, conf *remote.Config, log zerolog.Logger, stdout io.Writer) error {
	config := docdump.NewConfig()
	config.Remote = conf
	config.Limit = values.Limit
	config.Dir = values.Dir
	config.Recipients = values.Recipients
	if err := config.Validate(); err != nil {
		return err
	}

	stats, err := docdump.Do(ctx, config, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Backed up %d documents to %s\n", stats.Records, stats.Path)
	return nil
}

func restore(ctx context.Context, opts *options, values settings.Values, conf *remote.Config, log zerolog.Logger, stdout io.Writer) error {
	config := docrestore.NewConfig()
	config.Remote = conf
	config.Input = opts.file
	config.IdentityFile = values.Identity
	config.SkipVerify = opts.skipVerify
	if err := config.Validate(); err != nil {
		return err
	}

	stats, err := docrestore.Do(ctx, config, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Restored %d documents from %s\n", stats.RecordsRestored, config.Input)
	return nil
}

func wipe(ctx context.Context, values settings.Values, conf *remote.Config, log zerolog.Logger, stdout io.Writer) error {
	config := docwipe.NewConfig()
	config.Remote = conf
	config.Limit = values.Limit
	if err := config.Validate(); err != nil {
		return err
	}

	start := time.Now()
	stats, err := docwipe.Do(ctx, config, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Deleted %d documents in %s\n", stats.Deleted, time.Since(start).Round(time.Millisecond))
	return nil
}
