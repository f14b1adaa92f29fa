package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnshumanSrivastavaGit/bbot/internal/config"
	"github.com/AnshumanSrivastavaGit/bbot/internal/database"
	"github.com/AnshumanSrivastavaGit/bbot/internal/log"
	"github.com/AnshumanSrivastavaGit/bbot/internal/resolver"
	"github.com/AnshumanSrivastavaGit/bbot/internal/scan"
	"github.com/AnshumanSrivastavaGit/bbot/internal/scope"
	"github.com/AnshumanSrivastavaGit/bbot/internal/spider"
	"github.com/AnshumanSrivastavaGit/bbot/internal/web"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [targets...]",
		Short: "Scan targets and map their attack surface",
		Long: `Scan seeds the event graph with the given targets and discovers
related assets through DNS resolution and bounded web spidering.

Targets may be hostnames, IP addresses, CIDR ranges, URLs or email
addresses. Together they define the scope of the scan; how far outside
that scope discovery may wander is controlled by the distance flags.

Examples:
  # Scan a single domain, report only in-scope assets
  bbot scan example.com

  # Widen the report to assets one hop from scope
  bbot scan --report-distance 1 example.com

  # Enable the web spider, two link hops deep
  bbot scan --spider-distance 2 --spider-depth 3 https://example.com

  # Exclude a subtree from the scan entirely
  bbot scan --blacklist internal.example.com example.com

  # Use a custom configuration file
  bbot scan -c myconfig.yml example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Scope flags
	cmd.Flags().StringP("name", "n", "", "Scan name (default: derived from the first target)")
	cmd.Flags().StringSliceP("whitelist", "w", nil, "Restrict scope to these patterns")
	cmd.Flags().StringSliceP("blacklist", "b", nil, "Exclude matching assets entirely")
	cmd.Flags().Int("report-distance", config.DefaultScopeReportDistance,
		"Maximum scope distance of reported events")
	cmd.Flags().Int("search-distance", config.DefaultScopeSearchDistance,
		"Maximum scope distance at which events still produce children")
	cmd.Flags().Int("dns-search-distance", config.DefaultScopeDNSSearchDistance,
		"Extra scope distance allowed for DNS resolution results")

	// Concurrency flags
	cmd.Flags().Int("max-threads", config.DefaultMaxThreads, "General processing pool size")
	cmd.Flags().Int("max-dns-threads", config.DefaultMaxDNSThreads, "DNS lookup pool size")

	// DNS flags
	cmd.Flags().Bool("no-dns", false, "Disable DNS resolution")
	cmd.Flags().StringSlice("dns-servers", nil, "Upstream DNS servers (host or host:port)")
	cmd.Flags().Int("dns-rate-limit", 0, "Maximum DNS queries per second (0 = unlimited)")

	// Spider flags
	cmd.Flags().Int("spider-distance", config.DefaultWebSpiderDistance,
		"Maximum link-follow hops (0 = spidering disabled)")
	cmd.Flags().Int("spider-depth", config.DefaultWebSpiderDepth,
		"Maximum URL path depth the spider follows")

	// HTTP flags
	cmd.Flags().String("proxy", "", "Route HTTP fetches through a proxy (http:// or socks5://)")
	cmd.Flags().Duration("http-timeout", config.DefaultHTTPTimeout, "Timeout for a full page fetch")

	// Output flags
	cmd.Flags().BoolP("json", "j", false, "Print reported events as JSON lines")
	cmd.Flags().Bool("no-db", false, "Do not persist events to the asset database")
	cmd.Flags().String("db-dir", "", "Asset database directory (default: XDG data directory)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .bbot.yml in current directory or XDG config)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.New(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runScan(ctx, cfg, logger)
}

// buildConfig layers the configuration: defaults, then the YAML file,
// then explicitly set flags. Positional arguments are the targets and
// win over the file's target list.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.New()

	configPathFlag, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath = configPathFlag

	// If the user named a config file it must exist; an absent default
	// file is fine.
	configPath := config.FindConfigFile(configPathFlag)
	if configPath != "" {
		file, err := config.LoadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	} else if configPathFlag != "" {
		return nil, fmt.Errorf("configuration file not found: %s", configPathFlag)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Targets = args
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	return cfg, nil
}

// applyFlags copies explicitly set flags onto the config. Unset flags
// are skipped so file values survive the merge.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	set := func(name string, apply func() error) {
		if err != nil || !flags.Changed(name) {
			return
		}
		err = apply()
	}

	set("name", func() error {
		v, e := flags.GetString("name")
		cfg.ScanName = v
		return e
	})
	set("whitelist", func() error {
		v, e := flags.GetStringSlice("whitelist")
		cfg.Whitelist = v
		return e
	})
	set("blacklist", func() error {
		v, e := flags.GetStringSlice("blacklist")
		cfg.Blacklist = v
		return e
	})
	set("report-distance", func() error {
		v, e := flags.GetInt("report-distance")
		cfg.ScopeReportDistance = v
		return e
	})
	set("search-distance", func() error {
		v, e := flags.GetInt("search-distance")
		cfg.ScopeSearchDistance = v
		return e
	})
	set("dns-search-distance", func() error {
		v, e := flags.GetInt("dns-search-distance")
		cfg.ScopeDNSSearchDistance = v
		return e
	})
	set("max-threads", func() error {
		v, e := flags.GetInt("max-threads")
		cfg.MaxThreads = v
		return e
	})
	set("max-dns-threads", func() error {
		v, e := flags.GetInt("max-dns-threads")
		cfg.MaxDNSThreads = v
		return e
	})
	set("no-dns", func() error {
		v, e := flags.GetBool("no-dns")
		cfg.DNSResolution = !v
		return e
	})
	set("dns-servers", func() error {
		v, e := flags.GetStringSlice("dns-servers")
		cfg.DNSServers = v
		return e
	})
	set("dns-rate-limit", func() error {
		v, e := flags.GetInt("dns-rate-limit")
		cfg.DNSRateLimit = v
		return e
	})
	set("spider-distance", func() error {
		v, e := flags.GetInt("spider-distance")
		cfg.WebSpiderDistance = v
		return e
	})
	set("spider-depth", func() error {
		v, e := flags.GetInt("spider-depth")
		cfg.WebSpiderDepth = v
		return e
	})
	set("proxy", func() error {
		v, e := flags.GetString("proxy")
		cfg.HTTPProxy = v
		return e
	})
	set("http-timeout", func() error {
		v, e := flags.GetDuration("http-timeout")
		cfg.HTTPTimeout = v
		return e
	})
	set("json", func() error {
		v, e := flags.GetBool("json")
		cfg.JSONOutput = v
		return e
	})
	set("no-db", func() error {
		v, e := flags.GetBool("no-db")
		cfg.SaveToDB = !v
		return e
	})
	set("db-dir", func() error {
		v, e := flags.GetString("db-dir")
		cfg.DBDir = v
		return e
	})

	return err
}

// runScan wires the scanner from the configuration and executes it.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	scanName := cfg.ScanName
	if scanName == "" {
		scanName = deriveScanName(cfg.Targets[0])
	}

	classifier, err := buildClassifier(cfg)
	if err != nil {
		return err
	}

	stats := scan.NewStats()

	opts := []scan.Option{
		scan.WithMaxThreads(cfg.MaxThreads),
		scan.WithMaxDNSThreads(cfg.MaxDNSThreads),
		scan.WithLogger(logger),
		scan.WithStats(stats),
	}

	if cfg.DNSResolution {
		opts = append(opts, scan.WithDNSResolver(buildResolver(cfg, stats, logger)))
	}

	fetcher, err := web.New(
		web.WithTimeout(cfg.HTTPTimeout),
		web.WithProbeTimeout(cfg.HTTPXTimeout),
		web.WithProxy(cfg.HTTPProxy),
		web.WithUserAgent(cfg.UserAgent),
		web.WithSSLVerify(cfg.SSLVerify),
		web.WithMaxBody(cfg.HTTPMaxBody),
	)
	if err != nil {
		return fmt.Errorf("failed to build HTTP client: %w", err)
	}

	controller := spider.NewController(
		spider.WithMaxDistance(cfg.WebSpiderDistance),
		spider.WithMaxDepth(cfg.WebSpiderDepth),
		spider.WithExtensionBlacklist(cfg.URLExtensionBlacklist),
		spider.WithProbeOnlyExtensions(cfg.URLExtensionHTTPXOnly),
		spider.WithIgnorePatterns(cfg.WebSpiderIgnore),
	)
	opts = append(opts, scan.WithModules(scan.NewExcavate(fetcher, controller)))

	var outputs []scan.Output
	if cfg.JSONOutput {
		outputs = append(outputs, scan.NewJSONWriter(os.Stdout))
	} else {
		outputs = append(outputs, scan.NewLineWriter(os.Stdout))
	}

	var adb *database.AssetDB
	var scanID int64
	if cfg.SaveToDB {
		adb, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open asset database: %w", err)
		}
		defer adb.Close()

		scanID, err = adb.CreateScan(ctx, scanName, cfg.Targets)
		if err != nil {
			return fmt.Errorf("failed to record scan: %w", err)
		}
		outputs = append(outputs, adb.NewEventWriter(scanID))
		logger.Info("asset database opened", "dir", cfg.DBDir, "scan_id", scanID)
	}
	opts = append(opts, scan.WithOutputs(outputs...))

	scanner := scan.New(scanName, classifier, opts...)

	logger.Info("starting scan",
		"name", scanName,
		"targets", cfg.Targets,
		"search_distance", cfg.ScopeSearchDistance,
		"report_distance", cfg.ScopeReportDistance,
	)

	startTime := time.Now()
	runErr := scanner.Run(ctx, cfg.Targets)
	elapsed := time.Since(startTime)

	if adb != nil {
		// Record the outcome even for interrupted scans; use a fresh
		// context since ctx may already be cancelled.
		finishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := adb.FinishScan(finishCtx, scanID, scanner.Graph().Len()); err != nil {
			logger.Error("failed to finalize scan record", "error", err)
		}
	}

	if cfg.Verbose {
		stats.WritePrometheus(os.Stderr)
	}

	if runErr != nil {
		return fmt.Errorf("scan aborted after %s: %w", elapsed.Round(time.Millisecond), runErr)
	}

	fmt.Fprintf(os.Stderr, "Scan %s finished in %s (%d events in graph)\n",
		scanName, elapsed.Round(time.Millisecond), scanner.Graph().Len())
	return nil
}

// buildClassifier assembles the scope classifier from the configured
// targets, whitelist and blacklist.
func buildClassifier(cfg *config.Config) (*scope.Classifier, error) {
	target, err := scope.NewTarget(cfg.Targets...)
	if err != nil {
		return nil, fmt.Errorf("invalid target: %w", err)
	}

	scopeOpts := []scope.Option{
		scope.WithSearchDistance(cfg.ScopeSearchDistance),
		scope.WithReportDistance(cfg.ScopeReportDistance),
		scope.WithDNSSearchDistance(cfg.ScopeDNSSearchDistance),
	}
	if len(cfg.Whitelist) > 0 {
		whitelist, err := scope.NewTarget(cfg.Whitelist...)
		if err != nil {
			return nil, fmt.Errorf("invalid whitelist: %w", err)
		}
		scopeOpts = append(scopeOpts, scope.WithWhitelist(whitelist))
	}
	if len(cfg.Blacklist) > 0 {
		blacklist, err := scope.NewTarget(cfg.Blacklist...)
		if err != nil {
			return nil, fmt.Errorf("invalid blacklist: %w", err)
		}
		scopeOpts = append(scopeOpts, scope.WithBlacklist(blacklist))
	}

	return scope.NewClassifier(target, scopeOpts...), nil
}

// buildResolver assembles the DNS resolution stack: transport client,
// wildcard detector, then the scheduling resolver on top.
func buildResolver(cfg *config.Config, stats *scan.Stats, logger *slog.Logger) *resolver.Resolver {
	client := resolver.NewClient(
		resolver.WithServers(cfg.DNSServers),
		resolver.WithQueryTimeout(cfg.DNSTimeout),
	)
	detector := resolver.NewWildcardDetector(client,
		resolver.WithProbeCount(cfg.DNSWildcardTests),
		resolver.WithIgnoreList(cfg.DNSWildcardIgnore),
		resolver.WithDetectorLogger(logger),
	)
	return resolver.New(client, detector,
		resolver.WithRetries(cfg.DNSRetries),
		resolver.WithMaxConcurrent(cfg.MaxDNSThreads),
		resolver.WithRateLimit(cfg.DNSRateLimit),
		resolver.WithCacheSize(cfg.DNSCacheSize),
		resolver.WithAbortThreshold(cfg.DNSAbortThreshold),
		resolver.WithPTRFilter(cfg.DNSFilterPTRs),
		resolver.WithLogger(logger),
		resolver.WithMetrics(stats.Set()),
	)
}

// deriveScanName labels an unnamed scan after its first target.
func deriveScanName(target string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, target)
	return fmt.Sprintf("%s-%s", strings.Trim(name, "-"), time.Now().Format("20060102-150405"))
}
