package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/X-ROM/android-dalvik/internal/app/executor"
	"github.com/X-ROM/android-dalvik/internal/domain/execution"
	"github.com/X-ROM/android-dalvik/internal/env"
	"github.com/X-ROM/android-dalvik/internal/harness"
	"github.com/X-ROM/android-dalvik/internal/harness/container"
	"github.com/X-ROM/android-dalvik/internal/harness/host"
	"github.com/X-ROM/android-dalvik/internal/infra/kafka"
	"github.com/X-ROM/android-dalvik/internal/infra/local"
	"github.com/X-ROM/android-dalvik/internal/javac"
	"github.com/X-ROM/android-dalvik/internal/ports"
)

var (
	modeFlag        string
	sdkFlag         string
	timeoutFlag     int
	parallelFlag    int
	maxTestsFlag    int
	javaFlag        string
	javacFlag       string
	keepTempFlag    bool
	workdirFlag     string
	vmArgsFlag      []string
	libFlag         []string
	runnerSrcFlag   []string
	supportDirFlag  string
	imageFlag       string
	memoryLimitFlag int64
	brokersFlag     string
	topicFlag       string
	resultsFlag     string
	groupFlag       string
)

// runConfig is the fully resolved configuration of one invocation.
type runConfig struct {
	Mode        string
	Sdk         string
	Timeout     int
	Parallel    int
	MaxTests    int
	Java        string
	Javac       string
	KeepTemp    bool
	Workdir     string
	VMArgs      []string
	Libs        []string
	RunnerSrcs  []string
	SupportDir  string
	Image       string
	MemoryLimit int64

	Brokers      []string
	Topic        string
	ResultsTopic string
	Group        string

	TestPaths []string
}

var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [tests...]",
		Short: "Compile and run Java tests",
		Long: `Run the named test sources, or consume tests from Kafka when brokers
are configured and no paths are given. Directories are walked recursively
for .java files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolveRunConfig(args)
			return runTests(cmd, cfg)
		},
	}

	configureRunFlags(cmd)
	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", viper.GetString(modeKey), "execution target, host or container")
	bindFlagToConfig(cmd.Flags().Lookup("mode"), modeKey)

	cmd.Flags().StringVar(&sdkFlag, "sdk", viper.GetString(sdkKey), "boot classpath jar compiled and run against")
	bindFlagToConfig(cmd.Flags().Lookup("sdk"), sdkKey)

	cmd.Flags().IntVarP(&timeoutFlag, "timeout", "t", viper.GetInt(timeoutKey), "wall-clock seconds allowed per test command")
	bindFlagToConfig(cmd.Flags().Lookup("timeout"), timeoutKey)

	cmd.Flags().IntVarP(&parallelFlag, "parallel", "p", viper.GetInt(parallelKey), "number of tests run concurrently")
	bindFlagToConfig(cmd.Flags().Lookup("parallel"), parallelKey)

	cmd.Flags().IntVar(&maxTestsFlag, "max-tests", viper.GetInt(maxTestsKey), "stop after this many tests (0 means unbounded)")
	bindFlagToConfig(cmd.Flags().Lookup("max-tests"), maxTestsKey)

	cmd.Flags().StringVar(&javaFlag, "java", viper.GetString(javaKey), "JVM executable used to run tests")
	bindFlagToConfig(cmd.Flags().Lookup("java"), javaKey)

	cmd.Flags().StringVar(&javacFlag, "javac", "", "compiler executable (default javac from PATH)")

	cmd.Flags().BoolVar(&keepTempFlag, "keep-temp", viper.GetBool(keepTempKey), "keep per-test working directories after each run")
	bindFlagToConfig(cmd.Flags().Lookup("keep-temp"), keepTempKey)

	cmd.Flags().StringVar(&workdirFlag, "workdir", viper.GetString(workdirKey), "base directory for compiled classes (default a temp dir)")
	bindFlagToConfig(cmd.Flags().Lookup("workdir"), workdirKey)

	cmd.Flags().StringArrayVar(&vmArgsFlag, "vm-arg", nil, "extra JVM argument (can be repeated)")
	cmd.Flags().StringArrayVar(&libFlag, "lib", nil, "jar merged into every compilation and run (can be repeated)")
	cmd.Flags().StringArrayVar(&runnerSrcFlag, "runner-src", nil, "source file of the runner support code (can be repeated)")

	cmd.Flags().StringVar(&supportDirFlag, "support-dir", viper.GetString(supportDirKey), "source path the runner support code is compiled against")
	bindFlagToConfig(cmd.Flags().Lookup("support-dir"), supportDirKey)

	cmd.Flags().StringVar(&imageFlag, "image", viper.GetString(imageKey), "JVM image for container mode")
	bindFlagToConfig(cmd.Flags().Lookup("image"), imageKey)

	cmd.Flags().Int64Var(&memoryLimitFlag, "memory-limit", viper.GetInt64(memoryLimitKey), "container memory limit in bytes (0 means unlimited)")
	bindFlagToConfig(cmd.Flags().Lookup("memory-limit"), memoryLimitKey)

	cmd.Flags().StringVar(&brokersFlag, "kafka-brokers", viper.GetString(brokersKey), "comma-separated Kafka brokers; enables the Kafka intake")
	bindFlagToConfig(cmd.Flags().Lookup("kafka-brokers"), brokersKey)

	cmd.Flags().StringVar(&topicFlag, "kafka-topic", viper.GetString(topicKey), "topic tests are consumed from")
	bindFlagToConfig(cmd.Flags().Lookup("kafka-topic"), topicKey)

	cmd.Flags().StringVar(&resultsFlag, "kafka-results-topic", viper.GetString(resultsTopicKey), "topic verdicts are published to")
	bindFlagToConfig(cmd.Flags().Lookup("kafka-results-topic"), resultsTopicKey)

	cmd.Flags().StringVar(&groupFlag, "kafka-group", viper.GetString(groupKey), "Kafka consumer group")
	bindFlagToConfig(cmd.Flags().Lookup("kafka-group"), groupKey)
}

func resolveRunConfig(args []string) runConfig {
	return runConfig{
		Mode:        viper.GetString(modeKey),
		Sdk:         viper.GetString(sdkKey),
		Timeout:     viper.GetInt(timeoutKey),
		Parallel:    viper.GetInt(parallelKey),
		MaxTests:    viper.GetInt(maxTestsKey),
		Java:        viper.GetString(javaKey),
		Javac:       javacFlag,
		KeepTemp:    viper.GetBool(keepTempKey),
		Workdir:     viper.GetString(workdirKey),
		VMArgs:      vmArgsFlag,
		Libs:        libFlag,
		RunnerSrcs:  runnerSrcFlag,
		SupportDir:  viper.GetString(supportDirKey),
		Image:       viper.GetString(imageKey),
		MemoryLimit: viper.GetInt64(memoryLimitKey),

		Brokers:      parseBrokerList(viper.GetString(brokersKey)),
		Topic:        viper.GetString(topicKey),
		ResultsTopic: viper.GetString(resultsTopicKey),
		Group:        viper.GetString(groupKey),

		TestPaths: args,
	}
}

func runTests(cmd *cobra.Command, cfg runConfig) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	producer, closeProducer, err := newProducer(cfg)
	if err != nil {
		return err
	}
	defer closeProducer()

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer func() {
			if cerr := publisher.Close(); cerr != nil {
				slog.Warn("failed to close report publisher", "error", cerr)
			}
		}()
	}

	summary := newRunSummary()
	onReport := func(run *execution.TestRun) {
		summary.record(run)
		slog.Info("test completed",
			"test", run.QualifiedName(),
			"result", string(run.Result()))
		if publisher != nil {
			if perr := publisher.PublishReport(ctx, run); perr != nil {
				slog.Error("failed to publish report", "test", run.QualifiedName(), "error", perr)
			}
		}
	}

	service := executor.NewService(newHarnessFactory(cfg))
	if err := service.ExecuteFromProducer(ctx, producer, cfg.MaxTests, cfg.Parallel, onReport); err != nil {
		return fmt.Errorf("execute tests: %w", err)
	}

	cmd.Println(summary.render())
	if summary.failures() > 0 {
		return fmt.Errorf("%d of %d tests did not succeed", summary.failures(), summary.total())
	}
	return nil
}

// newProducer picks the intake: paths on the command line win, otherwise
// tests are consumed from Kafka.
func newProducer(cfg runConfig) (ports.TestProducer, func(), error) {
	if len(cfg.TestPaths) > 0 {
		producer, err := local.NewProducer(cfg.TestPaths, execution.ClasspathOf(cfg.Libs...))
		if err != nil {
			return nil, nil, err
		}
		slog.Info("discovered tests", "count", producer.Count())
		return producer, func() {}, nil
	}

	if len(cfg.Brokers) == 0 {
		return nil, nil, fmt.Errorf("no tests named and no Kafka brokers configured")
	}

	consumer, err := kafka.NewConsumer(kafka.Config{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.Group,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("kafka consumer: %w", err)
	}
	closer := func() {
		if cerr := consumer.Close(); cerr != nil {
			slog.Warn("failed to close kafka consumer", "error", cerr)
		}
	}
	return consumer, closer, nil
}

func newPublisher(cfg runConfig) (ports.ReportPublisher, error) {
	if len(cfg.Brokers) == 0 || cfg.ResultsTopic == "" {
		return nil, nil
	}
	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.ResultsTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	return publisher, nil
}

// newHarnessFactory builds one prepared harness per worker. Every worker
// gets its own environment so concurrent tests never share directories.
func newHarnessFactory(cfg runConfig) executor.HarnessFactory {
	return func(ctx context.Context) (executor.Harness, error) {
		root, err := newWorkerRoot(cfg.Workdir)
		if err != nil {
			return nil, fmt.Errorf("prepare environment: %w", err)
		}
		environment, err := env.NewLocal(root, cfg.KeepTemp)
		if err != nil {
			return nil, fmt.Errorf("prepare environment: %w", err)
		}

		strategy, err := newStrategy(cfg, environment)
		if err != nil {
			return nil, err
		}

		var opts []javac.Option
		if cfg.Javac != "" {
			opts = append(opts, javac.WithExecutable(cfg.Javac))
		}
		compiler := javac.New(opts...)

		h, err := harness.New(harness.Config{
			SdkJar:           cfg.Sdk,
			TimeoutSeconds:   cfg.Timeout,
			SupportSourceDir: cfg.SupportDir,
			LibClasspath:     execution.ClasspathOf(cfg.Libs...),
		}, environment, compiler, strategy)
		if err != nil {
			return nil, err
		}

		if err := h.Prepare(ctx, cfg.RunnerSrcs, execution.ClasspathOf(cfg.Libs...)); err != nil {
			return nil, fmt.Errorf("prepare harness: %w", err)
		}

		return &workerHarness{Harness: h, strategy: strategy}, nil
	}
}

// newWorkerRoot carves a distinct directory per worker out of the configured
// workdir. A worker's Shutdown removes its whole root, so two workers must
// never share one. Empty means a fresh temp dir, which NewLocal handles.
func newWorkerRoot(workdir string) (string, error) {
	if workdir == "" {
		return "", nil
	}
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return "", err
	}
	return os.MkdirTemp(workdir, "worker-")
}

func newStrategy(cfg runConfig, environment env.Environment) (harness.Strategy, error) {
	registry := harness.NewRegistry()

	if err := registry.Register("host", func() (harness.Strategy, error) {
		return host.New(host.Config{
			Java:   cfg.Java,
			VMArgs: cfg.VMArgs,
		}, environment), nil
	}); err != nil {
		return nil, err
	}

	if err := registry.Register("container", func() (harness.Strategy, error) {
		return container.New(container.Config{
			Image:            cfg.Image,
			Java:             cfg.Java,
			MemoryLimitBytes: cfg.MemoryLimit,
		}, environment)
	}); err != nil {
		return nil, err
	}

	strategy, err := registry.New(cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("mode %q (available: %s): %w", cfg.Mode, strings.Join(registry.Names(), ", "), err)
	}
	return strategy, nil
}

// workerHarness couples a harness with its strategy's resources so both are
// released when the worker shuts down.
type workerHarness struct {
	*harness.Harness
	strategy harness.Strategy
}

func (w *workerHarness) Shutdown() error {
	err := w.Harness.Shutdown()
	if closer, ok := w.strategy.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
