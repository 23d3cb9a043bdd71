package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"streamvb/classifier"
	"streamvb/data"
	"streamvb/db"
	"streamvb/learner"
	"streamvb/logging"
	"streamvb/model"
	"streamvb/monitor"
	"streamvb/stream"
)

type Config struct {
	Model struct {
		Family        string `yaml:"family"`
		ClassVariable string `yaml:"class_variable"`
		Topics        int    `yaml:"topics"`
	} `yaml:"model"`
	Learner struct {
		MaxIterations int     `yaml:"max_iterations"`
		Threshold     float64 `yaml:"threshold"`
		TrackELBO     bool    `yaml:"track_elbo"`
		WindowSize    int     `yaml:"window_size"`
	} `yaml:"learner"`
	Stream struct {
		SourceDir    string  `yaml:"source_dir"`
		FileExt      string  `yaml:"file_ext"`
		Encoding     string  `yaml:"encoding"`
		SplitRatio   float64 `yaml:"split_ratio"`
		MinInstances int     `yaml:"min_instances"`
		Seed         int64   `yaml:"seed"`
		Watch        bool    `yaml:"watch"`
	} `yaml:"stream"`
	Output struct {
		Path        string `yaml:"path"`
		Database    string `yaml:"database"`
		MonitorAddr string `yaml:"monitor_addr"`
	} `yaml:"output"`
	Log logging.Config `yaml:"log"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "configuration file")
	flag.Parse()

	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(config.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(config, logger); err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
}

func run(config *Config, logger *zap.Logger) error {
	loader := &data.TSVLoader{Encoding: config.Stream.Encoding}

	// The first file in order defines the schema every later file must match.
	files, err := data.ListFiles(config.Stream.SourceDir, fileExt(config))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warn("no data files found", zap.String("dir", config.Stream.SourceDir))
		return nil
	}
	first, err := loader.Load(files[0])
	if err != nil {
		return err
	}
	schema := first.Schema()

	dag, clf, err := buildModel(config, schema)
	if err != nil {
		return err
	}
	logger.Info("model structure",
		zap.String("family", family(config)),
		zap.String("class", clf.ClassName()),
		zap.String("dag", dag.String()))

	svb := learner.New(learner.Config{
		MaxIterations: config.Learner.MaxIterations,
		Threshold:     config.Learner.Threshold,
		TrackELBO:     config.Learner.TrackELBO,
		WindowSize:    windowSize(config),
	}, nil)
	clf.SetLearner(svb)
	if err := svb.InitLearning(dag); err != nil {
		return err
	}
	if err := svb.RandomInitialize(config.Stream.Seed); err != nil {
		return err
	}
	if bn, err := svb.CurrentModel(); err == nil {
		logger.Debug("initial model", zap.String("summary", bn.String()))
	}

	sink, err := buildSinks(config, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	loop, err := stream.New(stream.Config{
		SourceDir:    config.Stream.SourceDir,
		FileExt:      fileExt(config),
		SplitRatio:   config.Stream.SplitRatio,
		MinInstances: config.Stream.MinInstances,
		WindowSize:   windowSize(config),
		Seed:         config.Stream.Seed,
	}, loader, dag, svb, sink, logger)
	if err != nil {
		return err
	}

	if config.Stream.Watch {
		ctx, cancel := context.WithCancel(context.Background())
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-quit
			logger.Info("shutting down")
			cancel()
		}()
		return loop.Watch(ctx, 200*time.Millisecond)
	}

	total, err := loop.Run()
	if err != nil {
		return err
	}
	logger.Info("total log", zap.Float64("value", total))
	return nil
}

func buildModel(config *Config, schema *data.Schema) (*model.DAG, *classifier.NaiveBayes, error) {
	className := config.Model.ClassVariable
	if className == "" {
		// The last attribute is the class by convention.
		className = schema.Attribute(schema.Len() - 1).Name
	}
	topics := config.Model.Topics
	if topics < 1 {
		topics = 1
	}
	builder, err := model.Builder(family(config))
	if err != nil {
		return nil, nil, err
	}
	dag, err := builder(schema, className, topics)
	if err != nil {
		return nil, nil, err
	}
	clf, err := classifier.FromModel(schema, dag)
	if err != nil {
		return nil, nil, err
	}
	return dag, clf, nil
}

func buildSinks(config *Config, logger *zap.Logger) (stream.RecordSink, error) {
	outPath := config.Output.Path
	if outPath == "" {
		outPath = filepath.Join(config.Stream.SourceDir, "svb_restart_output.txt")
	}
	text, err := stream.NewTextSink(outPath)
	if err != nil {
		return nil, err
	}
	sinks := stream.MultiSink{text}

	if config.Output.Database != "" {
		store, err := db.OpenRecordStore(config.Output.Database, time.Now().Format("20060102-150405"))
		if err != nil {
			text.Close()
			return nil, err
		}
		sinks = append(sinks, store)
	}
	if config.Output.MonitorAddr != "" {
		hub := monitor.NewHub(logger)
		hub.Serve(config.Output.MonitorAddr)
		sinks = append(sinks, hub)
	}
	return sinks, nil
}

func family(config *Config) string {
	if config.Model.Family == "" {
		return "naive-bayes"
	}
	return config.Model.Family
}

func fileExt(config *Config) string {
	if config.Stream.FileExt == "" {
		return ".tsv"
	}
	return config.Stream.FileExt
}

func windowSize(config *Config) int {
	if config.Learner.WindowSize < 1 {
		return 10000
	}
	return config.Learner.WindowSize
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
