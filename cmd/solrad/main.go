package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/wetsa/solrad/internal/cams"
	"github.com/wetsa/solrad/internal/compare"
	"github.com/wetsa/solrad/internal/compile"
	"github.com/wetsa/solrad/internal/ingest"
	"github.com/wetsa/solrad/internal/metrics"
	"github.com/wetsa/solrad/internal/stations"
	"github.com/wetsa/solrad/internal/store"
)

type CLI struct {
	Locations   string `help:"Station metadata CSV." default:"asrs_location.csv"`
	OutDir      string `help:"Directory for pipeline inputs and outputs." default:"solar_data_output"`
	DB          string `help:"SQLite run ledger path. Empty disables the ledger." default:"solrad.db"`
	Pushgateway string `help:"Prometheus pushgateway URL. Empty disables metrics push."`

	Fetch   FetchCmd   `cmd:"" help:"Fetch CAMS time series for every station and sky type."`
	Compile CompileCmd `cmd:"" help:"Merge processed station files into one NetCDF dataset."`
	Compare CompareCmd `cmd:"" help:"Compare CAMS output against QC ground measurements."`
}

type FetchCmd struct {
	Dataset   string   `help:"CAMS dataset name." default:"cams-solar-radiation-timeseries"`
	DateRange string   `help:"Retrieval period as start/end." default:"2024-01-01/2024-12-31"`
	SkyTypes  []string `help:"Sky type variants to fetch." default:"clear,observed_cloud"`
	APIURL    string   `env:"CAMS_API_URL" help:"CAMS API base URL (default is the public service)."`
	APIKey    string   `env:"CAMS_API_KEY" required:"" help:"CAMS API key."`
}

func (c *FetchCmd) Run(ctx context.Context, cli *CLI) error {
	table, err := stations.LoadTable(cli.Locations)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(cli.DB)
	if err != nil {
		return err
	}
	defer closeStore()

	runner := &ingest.Runner{
		Client:    cams.NewClient(c.APIURL, c.APIKey),
		Store:     st,
		OutDir:    cli.OutDir,
		Dataset:   c.Dataset,
		DateRange: c.DateRange,
		SkyTypes:  c.SkyTypes,
	}
	err = runner.Run(ctx, table.Stations())
	pushMetrics(cli)
	return err
}

type CompileCmd struct {
	Pattern        string `help:"Glob for processed station files, relative to --out-dir." default:"processed_10min_*_observed_cloud.csv"`
	Output         string `help:"NetCDF output path, relative to --out-dir." default:"compiled_solar_data.nc"`
	ExcludeStation string `help:"Station to leave out of the compiled dataset." default:"Sleman"`
}

func (c *CompileCmd) Run(cli *CLI) error {
	err := compile.Run(compile.Options{
		LocationFile:   cli.Locations,
		Pattern:        inDir(cli.OutDir, c.Pattern),
		OutputFile:     inDir(cli.OutDir, c.Output),
		ExcludeStation: c.ExcludeStation,
	})
	pushMetrics(cli)
	return err
}

type CompareCmd struct {
	GroundDir        string   `help:"Directory holding QC ground files (defaults to --out-dir)."`
	ConversionFactor float64  `help:"Factor applied to model irradiance values before comparison." default:"60"`
	Year             string   `help:"Year segment of the QC ground file names." default:"2024"`
	Stations         []string `help:"Station names to compare (defaults to all in the location table)."`
	FTPHost          string   `name:"ftp-host" help:"Optional FTP host:port to sync ground files from first."`
	FTPPath          string   `name:"ftp-path" help:"Remote directory on the FTP host." default:"/"`
}

func (c *CompareCmd) Run(cli *CLI) error {
	table, err := stations.LoadTable(cli.Locations)
	if err != nil {
		return err
	}

	groundDir := c.GroundDir
	if groundDir == "" {
		groundDir = cli.OutDir
	}

	if c.FTPHost != "" {
		n, err := compare.SyncGroundFiles(c.FTPHost, c.FTPPath, groundDir)
		if err != nil {
			log.Printf("compare: ftp sync: %v (continuing with local files)", err)
		} else {
			log.Printf("compare: synced %d ground files from %s", n, c.FTPHost)
		}
	}

	sts, err := selectStations(table, c.Stations)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(cli.DB)
	if err != nil {
		return err
	}
	defer closeStore()

	runner := &compare.Runner{
		Store:     st,
		GroundDir: groundDir,
		ModelDir:  cli.OutDir,
		OutDir:    cli.OutDir,
		Factor:    c.ConversionFactor,
		Year:      c.Year,
	}
	err = runner.Run(sts)
	pushMetrics(cli)
	return err
}

// selectStations resolves requested names against the table through the
// normalizer, or returns every station when no names were given.
func selectStations(table *stations.Table, names []string) ([]stations.Station, error) {
	if len(names) == 0 {
		return table.Stations(), nil
	}
	sts := make([]stations.Station, 0, len(names))
	for _, name := range names {
		st, ok := table.Lookup(stations.NormalizeName(name))
		if !ok {
			return nil, fmt.Errorf("unknown station %q", name)
		}
		sts = append(sts, st)
	}
	return sts, nil
}

func inDir(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// openStore opens the run ledger. An empty path disables it; the returned
// Store is nil and the pipeline runs without recording.
func openStore(path string) (*store.Store, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, func() { db.Close() }, nil
}

func pushMetrics(cli *CLI) {
	if cli.Pushgateway == "" {
		return
	}
	if err := metrics.Push(cli.Pushgateway, "solrad"); err != nil {
		log.Printf("metrics: push to %s: %v", cli.Pushgateway, err)
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("solrad"),
		kong.Description("CAMS solar radiation pipeline: fetch, compile and compare."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.UsageOnError(),
		kong.Bind(&cli),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	kctx.FatalIfErrorf(kctx.Run())
}
