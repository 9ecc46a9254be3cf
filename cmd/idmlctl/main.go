// idmlctl uploads IDML documents to the translation service from a terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"idmltranslator/internal/config"
	"idmltranslator/internal/form"
	"idmltranslator/internal/models"
	"idmltranslator/internal/progress"
	"idmltranslator/internal/translator"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errReported marks failures the terminal view has already shown.
var errReported = errors.New("reported")

type globalOptions struct {
	server  string
	verbose bool
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "idmlctl",
		Short: "Translate InDesign IDML documents",
		Long: `idmlctl sends an InDesign Markup (.idml) document to the translation
service and retrieves the translated IDML file and the Word rendition.

Commands:
  translate   Upload a document and wait for the translated artifacts
  download    Fetch one artifact produced by an earlier translation
  languages   List supported target languages
  version     Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", cfg.BackendURL, "Translation service base URL")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log requests and responses")

	root.AddCommand(
		newTranslateCmd(cfg, opts),
		newDownloadCmd(opts),
		newLanguagesCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		}
		os.Exit(1)
	}
}

func (o *globalOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *globalOptions) client(logger *slog.Logger) *translator.Client {
	return translator.NewClient(logger, o.server, &http.Client{})
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd(cfg *config.Config, global *globalOptions) *cobra.Command {
	var (
		lang      string
		apiKey    string
		outputDir string
		interval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "translate <file.idml>",
		Short: "Upload a document and wait for the translated artifacts",
		Long: `Upload an IDML document (max 50 MB) and print the download links of the
translated IDML file and the Word document. With --output-dir both artifacts
are saved locally.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := global.logger(cmd.ErrOrStderr())
			client := global.client(logger)
			view := newTerminalView(cmd.OutOrStdout(), cmd.ErrOrStderr(), client.BaseURL())
			controller := form.NewController(logger, view, client, progress.NewSequencer(interval))

			file, err := localFile(args[0])
			if err != nil {
				return err
			}
			if err := controller.SelectFile(file); err != nil {
				return errReported
			}

			result, err := controller.Submit(ctx, form.Options{TargetLang: lang, APIKey: apiKey})
			if err != nil {
				logger.Debug("translation failed", "error", err)
				return errReported
			}

			if outputDir == "" {
				return nil
			}
			paths, err := saveArtifacts(ctx, client, result, outputDir)
			if err != nil {
				return err
			}
			for _, p := range paths {
				view.saved(p)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", cfg.DefaultTargetLang, "Target language (ar, en)")
	cmd.Flags().StringVar(&apiKey, "api-key", cfg.GoogleAPIKey, "Google API key forwarded to the service")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Download both artifacts into this directory")
	cmd.Flags().DurationVar(&interval, "progress-interval", cfg.ProgressInterval, "Delay between progress stages")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if !models.IsSupportedLanguage(lang) {
			return fmt.Errorf("unsupported language %q", lang)
		}
		if interval <= 0 {
			return fmt.Errorf("--progress-interval must be > 0")
		}
		return nil
	}

	return cmd
}

func localFile(path string) (models.SelectedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.SelectedFile{}, err
	}
	if info.IsDir() {
		return models.SelectedFile{}, fmt.Errorf("%s is a directory", path)
	}
	return models.SelectedFile{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// saveArtifacts downloads both artifacts of result concurrently.
func saveArtifacts(ctx context.Context, client *translator.Client, result *models.TranslationResult, dir string) ([]string, error) {
	artifacts := []struct {
		kind models.ArtifactKind
		name string
	}{
		{models.ArtifactIDML, result.IDMLFile},
		{models.ArtifactWord, result.WordFile},
	}

	paths := make([]string, len(artifacts))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range artifacts {
		g.Go(func() error {
			path, err := client.DownloadTo(gctx, a.kind, a.name, dir)
			if err != nil {
				return fmt.Errorf("download %s: %w", a.kind, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// ---------------------------------------------------------------------------
// download
// ---------------------------------------------------------------------------

func newDownloadCmd(global *globalOptions) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "download <idml|word> <name>",
		Short: "Fetch one artifact produced by an earlier translation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := models.ArtifactKind(args[0])
			if !kind.Valid() {
				return fmt.Errorf("unknown artifact kind %q (want idml or word)", args[0])
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := global.client(global.logger(cmd.ErrOrStderr()))
			path, err := client.DownloadTo(ctx, kind, args[1], outputDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory to save the artifact into")
	return cmd
}

// ---------------------------------------------------------------------------
// languages / version
// ---------------------------------------------------------------------------

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported target languages",
		Run: func(cmd *cobra.Command, args []string) {
			for _, l := range models.Languages {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", l.Code, l.Name)
			}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "idmlctl version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:    %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:     %s\n", date)
		},
	}
}
