package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auricle-audio/auricle/internal/adapters/mqttbus"
	"github.com/auricle-audio/auricle/internal/auricled"
	embeddedmqtt "github.com/auricle-audio/auricle/internal/modules/embedded_mqtt"
	"github.com/auricle-audio/auricle/internal/modules/gateway"
	rendererlocal "github.com/auricle-audio/auricle/internal/modules/renderer_local"
	"github.com/auricle-audio/auricle/internal/modules/webradio"
	"github.com/auricle-audio/auricle/internal/player"
	"github.com/auricle-audio/auricle/internal/registry"
	"github.com/auricle-audio/auricle/pkg/auricle"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath  string
		broker      string
		topicBase   string
		logLevel    string
		logFormat   string
		logOutput   string
		printConfig bool
		dryRun      bool
	)

	defaultConfig, err := auricled.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&topicBase, "topic-base", "", "topic base override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (text|json)")
	flag.StringVar(&logOutput, "log-output", "", "log output override (stdout|stderr)")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := auricled.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(&cfg, broker, topicBase, logLevel, logFormat, logOutput)

	if printConfig {
		printResolvedConfig(cfg)
		return
	}
	if dryRun {
		return
	}

	logger := auricled.NewLogger(auricled.LogConfig{
		Level:  cfg.Server.LogLevel,
		Format: cfg.Server.LogFormat,
		Output: cfg.Server.LogOutput,
	})
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	embeddedURL := embeddedBrokerURL(cfg)
	skipEmbedded := false
	if cfg.Modules.EmbeddedMQTT.Enabled && cfg.Server.Broker == embeddedURL {
		if err := startEmbeddedBroker(ctx, cfg, logger, cancel); err != nil {
			logger.Error("embedded mqtt failed", zap.Error(err))
			os.Exit(1)
		}
		skipEmbedded = true
	}

	if cfg.Server.Broker == "" {
		logger.Error("broker is required")
		os.Exit(1)
	}
	logger.Info("auricled starting",
		zap.String("broker", cfg.Server.Broker),
		zap.String("topic_base", cfg.Server.TopicBase),
		zap.String("queue_path", cfg.Player.QueuePath),
		zap.String("log_level", cfg.Server.LogLevel),
		zap.String("log_format", cfg.Server.LogFormat),
		zap.Strings("modules", enabledModules(cfg)),
	)

	client, err := mqttbus.NewClient(mqttbus.Options{
		BrokerURL: cfg.Server.Broker,
		ClientID:  fmt.Sprintf("auricled-%d", time.Now().UnixNano()),
		Username:  cfg.Server.Auth.User,
		Password:  cfg.Server.Auth.Pass,
		TLSCA:     cfg.Server.TLS.CA,
		TLSCert:   cfg.Server.TLS.Cert,
		TLSKey:    cfg.Server.TLS.Key,
		Timeout:   2 * time.Second,
		Logger:    logger.With(zap.String("module", "mqtt")),
	})
	if err != nil {
		logger.Error("mqtt connection failed", zap.Error(err))
		os.Exit(1)
	}
	defer client.Close()

	modules, err := buildModules(cfg, client, logger, skipEmbedded)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}

	supervisor := auricled.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

func applyOverrides(cfg *auricled.Config, broker, topicBase, logLevel, logFormat, logOutput string) {
	if broker != "" {
		cfg.Server.Broker = broker
	}
	if topicBase != "" {
		cfg.Server.TopicBase = topicBase
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Server.LogFormat = logFormat
	}
	if logOutput != "" {
		cfg.Server.LogOutput = logOutput
	}
	if cfg.Server.TopicBase == "" {
		cfg.Server.TopicBase = auricle.BaseTopic
	}
	if cfg.Server.Broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
		cfg.Server.Broker = embeddedBrokerURL(*cfg)
	}
	if cfg.Player.QueuePath == "" {
		if path, err := auricled.DefaultQueuePath(); err == nil {
			cfg.Player.QueuePath = path
		}
	}
}

func buildModules(cfg auricled.Config, client *mqttbus.Client, logger *zap.Logger, skipEmbedded bool) ([]auricled.ModuleRunner, error) {
	modules := []auricled.ModuleRunner{}
	if cfg.Modules.EmbeddedMQTT.Enabled && !skipEmbedded {
		mod, err := newEmbeddedBroker(cfg, logger)
		if err != nil {
			return nil, err
		}
		modules = append(modules, auricled.ModuleRunner{
			Name: "embedded_mqtt",
			Run:  mod.Run,
		})
	}

	backendRegistry := registry.New()
	dispatcher := registry.NewDispatcher(logger.With(zap.String("module", "dispatcher")), backendRegistry)

	resolver := player.NewResolver(logger.With(zap.String("module", "resolver")), dispatcher, player.ResolverConfig{
		DefaultService: cfg.Player.DefaultService,
		CacheTTL:       time.Duration(cfg.Player.CacheTTLSec) * time.Second,
		Defaults: player.AudioDefaults{
			Samplerate: cfg.Player.DefaultSamplerate,
			Bitdepth:   cfg.Player.DefaultBitdepth,
			Channels:   cfg.Player.DefaultChannels,
		},
	})
	queue := player.NewQueue(logger.With(zap.String("module", "queue")), resolver, player.QueueConfig{
		PersistPath: cfg.Player.QueuePath,
	})
	machine := player.NewMachine(logger.With(zap.String("module", "player")), queue, resolver, dispatcher, player.MachineConfig{
		DefaultVolume: cfg.Player.DefaultVolume,
		PrefetchLimit: cfg.Player.PrefetchLimit,
	})
	modules = append(modules, auricled.ModuleRunner{
		Name: "player",
		Run:  machine.Run,
	})

	if cfg.Modules.RendererLocal.Enabled {
		driver, err := rendererlocal.NewDriver(cfg.Modules.RendererLocal.Pipeline, cfg.Modules.RendererLocal.Device)
		if err != nil {
			logger.Warn("local renderer unavailable", zap.Error(err))
		} else {
			backend := rendererlocal.NewBackend(logger.With(zap.String("module", "renderer_local")), driver, machine, rendererlocal.Config{
				MusicRoot: cfg.Modules.RendererLocal.MusicRoot,
			})
			if err := backendRegistry.Register(registry.CategoryAudioInterface, rendererlocal.ServiceName, backend); err != nil {
				return nil, err
			}
			modules = append(modules, auricled.ModuleRunner{
				Name: "renderer_local",
				Run:  backend.Run,
			})
		}
	}

	if cfg.Modules.WebRadio.Enabled {
		pipeline, device := webradioDriverConfig(cfg, logger)
		driver, err := rendererlocal.NewDriver(pipeline, device)
		if err != nil {
			logger.Warn("webradio unavailable", zap.Error(err))
		} else {
			backend := webradio.NewBackend(logger.With(zap.String("module", "webradio")), driver, machine, webradio.Config{
				UserAgent:    cfg.Modules.WebRadio.UserAgent,
				FetchTimeout: time.Duration(cfg.Modules.WebRadio.FetchTimeout) * time.Second,
			})
			if err := backendRegistry.Register(registry.CategoryMusicService, webradio.ServiceName, backend); err != nil {
				return nil, err
			}
		}
	}

	gw := gateway.NewModule(logger.With(zap.String("module", "gateway")), client, machine, gateway.Config{
		TopicBase: cfg.Server.TopicBase,
	})
	modules = append(modules, auricled.ModuleRunner{
		Name: "gateway",
		Run:  gw.Run,
	})

	return modules, nil
}

// webradioDriverConfig resolves the webradio stream driver settings,
// falling back to the renderer_local values when webradio has none of
// its own.
func webradioDriverConfig(cfg auricled.Config, logger *zap.Logger) (string, string) {
	pipeline := cfg.Modules.WebRadio.Pipeline
	device := cfg.Modules.WebRadio.Device
	if pipeline != "" || device != "" {
		return pipeline, device
	}
	if cfg.Modules.RendererLocal.Pipeline != "" || cfg.Modules.RendererLocal.Device != "" {
		logger.Info("webradio borrowing renderer_local pipeline",
			zap.String("pipeline", cfg.Modules.RendererLocal.Pipeline),
			zap.String("device", cfg.Modules.RendererLocal.Device))
	}
	return cfg.Modules.RendererLocal.Pipeline, cfg.Modules.RendererLocal.Device
}

func enabledModules(cfg auricled.Config) []string {
	out := []string{"player", "gateway"}
	if cfg.Modules.EmbeddedMQTT.Enabled {
		out = append(out, "embedded_mqtt")
	}
	if cfg.Modules.RendererLocal.Enabled {
		out = append(out, "renderer_local")
	}
	if cfg.Modules.WebRadio.Enabled {
		out = append(out, "webradio")
	}
	return out
}

func printResolvedConfig(cfg auricled.Config) {
	fmt.Fprintf(os.Stdout,
		"broker=%s topic_base=%s queue_path=%s log_level=%s log_format=%s log_output=%s\n",
		cfg.Server.Broker,
		cfg.Server.TopicBase,
		cfg.Player.QueuePath,
		cfg.Server.LogLevel,
		cfg.Server.LogFormat,
		cfg.Server.LogOutput,
	)
}

func embeddedBrokerURL(cfg auricled.Config) string {
	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = "127.0.0.1:1883"
	}
	tlsEnabled := cfg.Modules.EmbeddedMQTT.TLSCert != "" || cfg.Modules.EmbeddedMQTT.TLSKey != "" || cfg.Modules.EmbeddedMQTT.TLSCA != ""
	return embeddedmqtt.BrokerURL(listen, tlsEnabled)
}

func newEmbeddedBroker(cfg auricled.Config, logger *zap.Logger) (*embeddedmqtt.Module, error) {
	return embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
		Listen:         cfg.Modules.EmbeddedMQTT.Listen,
		AllowAnonymous: cfg.Modules.EmbeddedMQTT.AllowAnonymous,
		Username:       cfg.Modules.EmbeddedMQTT.Username,
		Password:       cfg.Modules.EmbeddedMQTT.Password,
		TLSCA:          cfg.Modules.EmbeddedMQTT.TLSCA,
		TLSCert:        cfg.Modules.EmbeddedMQTT.TLSCert,
		TLSKey:         cfg.Modules.EmbeddedMQTT.TLSKey,
	})
}

func startEmbeddedBroker(ctx context.Context, cfg auricled.Config, logger *zap.Logger, cancel context.CancelFunc) error {
	mod, err := newEmbeddedBroker(cfg, logger)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- mod.Run(ctx)
	}()
	go func() {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()

	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = "127.0.0.1:1883"
	}
	return waitForListen(listen, 3*time.Second)
}

func waitForListen(listen string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("embedded mqtt not ready at %s", addr)
}
