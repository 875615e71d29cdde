package cmd

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/edgeprobe/edgedns/benchinstall"
	"github.com/edgeprobe/edgedns/benchmark"
	"github.com/edgeprobe/edgedns/candidatesrc"
	"github.com/edgeprobe/edgedns/dnsprovider"
	"github.com/edgeprobe/edgedns/edgeconfig"
	"github.com/edgeprobe/edgedns/notify"
	"github.com/edgeprobe/edgedns/reconcile"
	"github.com/edgeprobe/edgedns/regiondef"
	"github.com/edgeprobe/edgedns/utils/cloudflarecontrol"
	"github.com/edgeprobe/edgedns/utils/logctx"
	"github.com/edgeprobe/edgedns/utils/retryhttp"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type CmdHelper struct {
	logger *zap.Logger

	config     *edgeconfig.Config
	httpClient *http.Client
}

func (h *CmdHelper) GetContext() context.Context {
	return context.Background()
}

func (h *CmdHelper) GetLogger() *zap.Logger {
	if h.logger == nil {
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")

		logConfig := zap.NewDevelopmentConfig()
		if !verbose {
			logConfig.Level.SetLevel(zap.InfoLevel)
			logConfig.DisableCaller = true
		}

		logger, err := logConfig.Build()
		if err != nil {
			log.Fatalf("failed to initialize verbose logger: %s", err)
		}

		logger.Debug("logger initialized")

		h.logger = logger
	}

	return h.logger
}

func (h *CmdHelper) GetConfig(ctx context.Context) *edgeconfig.Config {
	logger := h.GetLogger()

	if h.config == nil {
		configPath, _ := rootCmd.PersistentFlags().GetString("config")
		if configPath == "" {
			configPath = edgeconfig.DEFAULT_CONFIG_PATH
		}

		curConfig, err := edgeconfig.Load(configPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Fatal("failed to load config file", zap.Error(err))
			}
			logger.Debug("no config file, using defaults", zap.String("path", configPath))
		}

		dotEnvPath := filepath.Join(filepath.Dir(configPath), edgeconfig.DEFAULT_DOTENV_NAME)
		dotEnv, err := edgeconfig.ReadDotEnv(dotEnvPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Fatal("failed to read dotenv file", zap.Error(err))
		}

		err = edgeconfig.ApplyEnviron(curConfig, append(dotEnv, os.Environ()...))
		if err != nil {
			logger.Fatal("failed to apply environment", zap.Error(err))
		}

		logger.Debug("configuration loaded", zap.Any("config", curConfig.Redacted()))

		h.config = curConfig
	}

	return h.config
}

func (h *CmdHelper) GetHttpClient(ctx context.Context) *http.Client {
	logger := h.GetLogger()
	config := h.GetConfig(ctx)

	if h.httpClient == nil {
		retry := config.HTTP.Retry
		httpClient, err := retryhttp.NewClient(&retryhttp.ClientOptions{
			Logger: logger,
			Policy: retryhttp.Policy{
				MaxAttempts:       retry.MaxAttempts,
				InitialBackoff:    retry.InitialBackoff,
				MaxBackoff:        retry.MaxBackoff,
				Multiplier:        retry.Multiplier,
				RetryableStatuses: retry.Statuses,
			},
			ResponseTimeout: config.HTTP.Timeout,
		})
		if err != nil {
			logger.Fatal("failed to create http client", zap.Error(err))
		}

		h.httpClient = httpClient
	}

	return h.httpClient
}

// GetTargets resolves the configured regions, restricted to regions when
// it is non-empty.  Configuration errors are fatal.
func (h *CmdHelper) GetTargets(ctx context.Context, regions []string) []regiondef.RegionTarget {
	logger := h.GetLogger()
	config := h.GetConfig(ctx)

	targets, err := regiondef.Resolve(config.Regions)
	if err != nil {
		logger.Fatal("failed to resolve regions", zap.Error(err))
	}

	if len(regions) > 0 {
		targets, err = regiondef.Filter(targets, regions)
		if err != nil {
			logger.Fatal("failed to select regions", zap.Error(err))
		}
	}

	return targets
}

func (h *CmdHelper) GetTarget(ctx context.Context, region string) regiondef.RegionTarget {
	logger := h.GetLogger()

	target, err := regiondef.Find(h.GetTargets(ctx, nil), region)
	if err != nil {
		logger.Fatal("failed to identify region", zap.Error(err))
	}

	return target
}

func (h *CmdHelper) GetCandidateClient(ctx context.Context) *candidatesrc.Client {
	return candidatesrc.NewClient(&candidatesrc.ClientOptions{
		Logger:     h.GetLogger(),
		HttpClient: h.GetHttpClient(ctx),
	})
}

func (h *CmdHelper) GetDNSProvider(ctx context.Context) dnsprovider.Provider {
	logger := h.GetLogger()
	config := h.GetConfig(ctx)

	switch config.DNS.Provider {
	case "cloudflare":
		ctrl, err := cloudflarecontrol.NewController(&cloudflarecontrol.ControllerOptions{
			Logger:     logger,
			HttpClient: h.GetHttpClient(ctx),
			Endpoint:   config.Cloudflare.Endpoint,
			APIToken:   config.Cloudflare.APIToken,
		})
		if err != nil {
			logger.Fatal("failed to create cloudflare controller", zap.Error(err))
		}

		prov, err := dnsprovider.NewCloudflareProvider(ctrl, config.Cloudflare.ZoneID)
		if err != nil {
			logger.Fatal("failed to create cloudflare provider", zap.Error(err))
		}

		return prov
	case "route53":
		client, err := dnsprovider.NewRoute53Client(ctx, &dnsprovider.Route53ClientOptions{
			Region:          config.Route53.Region,
			FromEnvironment: config.Route53.FromEnvironment,
			AccessKey:       config.Route53.AccessKey,
			SecretKey:       config.Route53.SecretKey,
		})
		if err != nil {
			logger.Fatal("failed to create route53 client", zap.Error(err))
		}

		prov, err := dnsprovider.NewRoute53Provider(&dnsprovider.Route53ProviderOptions{
			Logger:       logger,
			Client:       client,
			HostedZoneID: config.Route53.HostedZoneID,
			WaitForSync:  config.Route53.WaitForSync,
		})
		if err != nil {
			logger.Fatal("failed to create route53 provider", zap.Error(err))
		}

		return prov
	}

	logger.Fatal("unsupported dns provider", zap.String("provider", config.DNS.Provider))
	return nil
}

func (h *CmdHelper) GetReconciler(ctx context.Context) *reconcile.Reconciler {
	logger := h.GetLogger()
	config := h.GetConfig(ctx)

	rec, err := reconcile.NewReconciler(&reconcile.ReconcilerOptions{
		Logger:         logger,
		Provider:       h.GetDNSProvider(ctx),
		TTL:            config.DNS.TTL,
		Proxied:        config.DNS.Proxied,
		SettleInterval: config.DNS.SettleInterval,
	})
	if err != nil {
		logger.Fatal("failed to create reconciler", zap.Error(err))
	}

	return rec
}

func (h *CmdHelper) GetInstaller(ctx context.Context, forceAutoInstall bool) *benchinstall.Installer {
	logger := h.GetLogger()
	config := h.GetConfig(ctx)

	installPath := config.Benchmark.ToolPath
	if installPath == "" {
		installPath = benchinstall.DefaultInstallPath(config.Benchmark.ToolDir, runtime.GOOS)
	}

	inst, err := benchinstall.NewInstaller(&benchinstall.InstallerOptions{
		Logger:      logger,
		HttpClient:  h.GetHttpClient(ctx),
		InstallPath: installPath,
		Version:     config.Benchmark.ToolVersion,
		AutoInstall: forceAutoInstall || config.Benchmark.AutoInstall || runtime.GOOS == "windows",
		GitHubToken: config.Benchmark.GitHubToken,
	})
	if err != nil {
		logger.Fatal("failed to create installer", zap.Error(err))
	}

	return inst
}

// GetProber builds the configured prober.  Tool installation logs to
// setupLogger and a missing executable is only logged there, so the affected
// regions fail on their own.  Probes log to the logger carried by their
// context.
func (h *CmdHelper) GetProber(ctx context.Context, setupLogger *zap.Logger) benchmark.Prober {
	logger := h.GetLogger()
	config := h.GetConfig(ctx)

	switch config.Benchmark.Mode {
	case "cloudflarest":
		inst := h.GetInstaller(ctx, false)

		exePath, err := inst.Ensure(logctx.With(ctx, setupLogger))
		if err != nil {
			setupLogger.Error("benchmark tool unavailable", zap.Error(err))
			exePath = inst.InstallPath()
		}

		runner, err := benchmark.NewRunner(&benchmark.RunnerOptions{
			Logger:         logger,
			ExecutablePath: exePath,
			ResultsDir:     config.Benchmark.ResultsDir,
			ParamFile:      config.Benchmark.ParamFile,
		})
		if err != nil {
			logger.Fatal("failed to create benchmark runner", zap.Error(err))
		}

		return runner
	case "tcping":
		tcp := config.Benchmark.TCPPing
		return &benchmark.TCPPinger{
			Logger:      logger,
			Port:        tcp.Port,
			Attempts:    tcp.Attempts,
			Timeout:     tcp.Timeout,
			Concurrency: tcp.Concurrency,
			MaxResults:  tcp.MaxResults,
			MaxLatency:  tcp.MaxLatency,
			ResultsDir:  config.Benchmark.ResultsDir,
		}
	}

	logger.Fatal("unsupported benchmark mode", zap.String("mode", config.Benchmark.Mode))
	return nil
}

func (h *CmdHelper) GetNotifier(ctx context.Context) notify.Notifier {
	logger := h.GetLogger()
	config := h.GetConfig(ctx)

	if config.Telegram.BotToken == "" || config.Telegram.ChatID == "" {
		return &notify.WriterNotifier{Out: os.Stdout}
	}

	notifier, err := notify.NewTelegramNotifier(&notify.TelegramNotifierOptions{
		Logger:     logger,
		HttpClient: h.GetHttpClient(ctx),
		BotToken:   config.Telegram.BotToken,
		ChatID:     config.Telegram.ChatID,
	})
	if err != nil {
		logger.Fatal("failed to create telegram notifier", zap.Error(err))
	}

	return notifier
}
