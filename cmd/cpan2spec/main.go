package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/frederic-klein/cpan2spec/internal/config"
	"github.com/frederic-klein/cpan2spec/internal/corelist"
	"github.com/frederic-klein/cpan2spec/internal/downloader"
	"github.com/frederic-klein/cpan2spec/internal/index"
	"github.com/frederic-klein/cpan2spec/internal/pipeline"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cpan2spec [flags] <archive|url|Module::Name[@version]>...",
		Short: "Generate RPM spec files from CPAN distributions",
		Long: "cpan2spec reads CPAN distribution archives, local or fetched from a mirror, " +
			"and writes a perl-<Name>.spec file for each of them.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runGenerate,
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/cpan2spec/config.yaml)")
	flags.StringP("outdir", "o", ".", "Output directory for spec files")
	flags.String("packager", "", "Packager name and e-mail for the changelog")
	flags.String("release", config.DefaultRelease, "Release tag value")
	flags.String("epoch", "", "Epoch tag value")
	flags.Bool("compat-core", false, "Keep core modules as epoch-qualified requirements")
	flags.Bool("macros", true, "Use RPM macros instead of environment variables")
	flags.StringP("mirror", "m", config.DefaultMirror, "CPAN mirror URL")
	flags.String("cache-dir", "", "Download and index cache directory")
	flags.String("corelist", "", "TOML file with the core module list")
	flags.Duration("script-timeout", config.DefaultScriptTimeout, "Time limit for reading Makefile.PL")
	flags.IntP("workers", "w", config.DefaultWorkers, "Parallel download workers")
	flags.BoolP("force", "f", false, "Overwrite specs that are already up to date")
	flags.BoolP("deps", "d", false, "Print dependencies of the first distribution and exit")
	flags.Bool("diff", false, "Print a diff against the existing spec instead of writing it")
	flags.BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cpan2spec %s\n", version)
		},
	})

	return rootCmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "cpan2spec"})

	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: configPath,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		logger.Error("loading configuration", "err", err)
		return err
	}
	if cfg.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	core, err := loadCorelist(cfg.Corelist)
	if err != nil {
		logger.Error("loading core module list", "err", err)
		return err
	}
	logger.Debug("core module list", "perl", core.Perl(), "modules", core.Len())

	backpan := index.NewBackPANIndex(filepath.Join(cfg.CacheDir, "backpan"))
	if err := backpan.EnsureDir(); err != nil {
		logger.Error("creating backpan directory", "err", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(pipeline.Options{
		Core:          core,
		CompatCore:    cfg.CompatCore,
		ScriptTimeout: cfg.ScriptTimeout,
		Index:         index.NewCPANIndex(cfg.Mirror, cfg.CacheDir),
		BackPAN:       backpan,
		Downloader:    downloader.NewDownloader(cfg.Workers, cfg.CacheDir, logger),
		Mirror:        cfg.Mirror,
		OutDir:        cfg.OutDir,
		Packager:      cfg.Packager,
		Release:       cfg.Release,
		Epoch:         cfg.Epoch,
		Macros:        cfg.Macros,
		Force:         cfg.Force,
		DepsOnly:      cfg.Deps,
		Diff:          cfg.Diff,
		Stdout:        cmd.OutOrStdout(),
		Logger:        logger,
	})

	sum, err := p.Run(ctx, args)
	logger.Info("done", "written", sum.Written, "skipped", sum.Skipped, "failed", sum.Failed)
	if err != nil && !errors.Is(err, pipeline.ErrFailed) {
		logger.Error("run aborted", "err", err)
	}
	return err
}

func loadCorelist(path string) (*corelist.Set, error) {
	if path == "" {
		return corelist.Default()
	}
	return corelist.Load(path)
}
