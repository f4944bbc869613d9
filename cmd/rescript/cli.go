package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bft-labs/rescript/internal/adapters/catalog"
	"github.com/bft-labs/rescript/internal/adapters/fs"
	rhttp "github.com/bft-labs/rescript/internal/adapters/http"
	logAdapter "github.com/bft-labs/rescript/internal/adapters/log"
	"github.com/bft-labs/rescript/internal/app"
	"github.com/bft-labs/rescript/internal/cliconfig"
	"github.com/bft-labs/rescript/internal/domain"
	"github.com/bft-labs/rescript/internal/ports"
)

// cli carries state shared by every subcommand once flags are parsed.
type cli struct {
	cfg           cliconfig.Config
	configPath    string
	keepDownloads bool

	ready  bool
	log    zerolog.Logger
	logger ports.Logger
	store  *catalog.Store
	runner *app.Runner
}

// setup layers the config file and environment under the parsed flags, then
// builds the logger, catalog and runner.
func (c *cli) setup(cmd *cobra.Command) error {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	path := c.configPath
	if path == "" {
		path = cliconfig.DefaultConfigPath()
	}
	if path != "" && cliconfig.FileExists(path) {
		fc, err := cliconfig.LoadFileConfig(path)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	} else if c.configPath != "" {
		return fmt.Errorf("config file %s not found", c.configPath)
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.log = logAdapter.NewConsoleLogger(c.cfg.LogLevel)
	c.logger = logAdapter.NewZerologAdapterWithLogger(c.log)
	c.ready = true

	c.log.Debug().
		Str("cache_dir", c.cfg.CacheDir).
		Str("catalog", c.cfg.CatalogPath).
		Bool("no_catalog", c.cfg.NoCatalog).
		Dur("timeout", c.cfg.HTTPTimeout).
		Int("retries", c.cfg.Retries).
		Int("jobs", c.cfg.Jobs).
		Str("ncbi_api_key", mask(c.cfg.NCBIAPIKey)).
		Msg("configuration")

	var repo ports.RunRepository
	if !c.cfg.NoCatalog {
		store, err := catalog.Open(c.cfg.CatalogPath)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		c.store = store
		repo = store
	}
	c.runner = app.NewRunner(repo, c.logger)
	return nil
}

func (c *cli) close() {
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.log.Warn().Err(err).Msg("close catalog")
		}
		c.store = nil
	}
}

// errorLogger returns the configured logger, or an info-level console
// logger when setup never completed.
func (c *cli) errorLogger() zerolog.Logger {
	if c.ready {
		return c.log
	}
	return logAdapter.NewConsoleLogger("info")
}

// run executes fn as the command's action. Local flags become the run
// parameters.
func (c *cli) run(cmd *cobra.Command, fn app.ActionFunc) error {
	_, err := c.runner.Run(cmd.Context(), cmd.Name(), flagParams(cmd), fn)
	return err
}

// fetcher returns a downloader that records every file against s.
func (c *cli) fetcher(s *app.Session) *rhttp.Downloader {
	d := rhttp.NewDownloader(&http.Client{Timeout: c.cfg.HTTPTimeout}, s.Logger(), rhttp.Config{
		Retries:        c.cfg.Retries,
		BackoffInitial: c.cfg.BackoffInitial,
		BackoffMax:     c.cfg.BackoffMax,
		UserAgent:      c.cfg.UserAgent,
	})
	d.SetRecorder(s)
	return d
}

// workDir creates the download directory of a run. The returned func removes
// it unless --keep-downloads is set.
func (c *cli) workDir(s *app.Session, action string) (string, func(), error) {
	dir := filepath.Join(c.cfg.CacheDir, action, s.ID())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, err
	}
	return dir, func() {
		if c.keepDownloads {
			s.Logger().Info("downloads kept", ports.String("dir", dir))
			return
		}
		if err := os.RemoveAll(dir); err != nil {
			s.Logger().Warn("remove download directory", ports.String("dir", dir), ports.Err(err))
		}
	}, nil
}

func flagParams(cmd *cobra.Command) map[string]any {
	params := make(map[string]any)
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "help" {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			params[f.Name] = sv.GetSlice()
			return
		}
		params[f.Name] = f.Value.String()
	})
	return params
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

func newResult() app.Result {
	return app.Result{Outputs: map[string]string{}, Records: map[string]int{}}
}

func writeSeqs(res *app.Result, name, path string, seqs []domain.Sequence) error {
	if path == "" {
		return nil
	}
	if err := fs.WriteFASTAFile(path, seqs); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	res.Outputs[name] = path
	res.Records[name] = len(seqs)
	return nil
}

func writeTax(res *app.Result, name, path string, tax *domain.Taxonomy) error {
	if path == "" || tax == nil {
		return nil
	}
	if err := fs.WriteTaxonomyFile(path, tax); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	res.Outputs[name] = path
	res.Records[name] = tax.Len()
	return nil
}

func writeTable(res *app.Result, name, path string, header []string, rows [][]string) error {
	if err := fs.WriteTable(path, header, rows); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	res.Outputs[name] = path
	res.Records[name] = len(rows)
	return nil
}

// datasetOutputs are the output flags shared by the get-* commands.
type datasetOutputs struct {
	sequences string
	taxonomy  string
}

func (o *datasetOutputs) bind(cmd *cobra.Command, withSequences bool) {
	f := cmd.Flags()
	if withSequences {
		f.StringVar(&o.sequences, "output-sequences", "", "Output FASTA file")
	}
	f.StringVar(&o.taxonomy, "output-taxonomy", "", "Output taxonomy TSV file")
	_ = cmd.MarkFlagRequired("output-taxonomy")
}

func (o *datasetOutputs) write(seqs []domain.Sequence, tax *domain.Taxonomy) (app.Result, error) {
	res := newResult()
	if err := writeSeqs(&res, "sequences", o.sequences, seqs); err != nil {
		return res, err
	}
	if err := writeTax(&res, "taxonomy", o.taxonomy, tax); err != nil {
		return res, err
	}
	return res, nil
}
