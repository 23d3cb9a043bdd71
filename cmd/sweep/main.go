package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"streamvb/classifier"
	"streamvb/data"
	"streamvb/learner"
	"streamvb/model"
	"streamvb/stream"
)

// Grid search over window size and convergence threshold: every combination
// replays the same directory with the same seed, so totals are comparable.

type result struct {
	window    int
	threshold float64
	total     float64
	epochs    int
}

// nullSink discards records; the sweep only needs totals.
type nullSink struct{}

func (nullSink) Append(stream.EvaluationRecord) error { return nil }
func (nullSink) Summary(float64) error                { return nil }
func (nullSink) Close() error                         { return nil }

func main() {
	dir := flag.String("dir", "", "source data directory")
	ext := flag.String("ext", ".tsv", "data file extension")
	family := flag.String("family", "naive-bayes", "model family tag")
	class := flag.String("class", "", "class variable name (default: last attribute)")
	minInstances := flag.Int("min", 0, "minimum instances per file")
	seed := flag.Int64("seed", 1, "shuffle seed")
	iterations := flag.Int("iters", 100, "max learner iterations")
	windows := flag.String("windows", "1000,10000", "comma-separated window sizes")
	thresholds := flag.String("thresholds", "0.01,0.1,1.0", "comma-separated convergence thresholds")
	cacheSize := flag.Int("cache", 64, "batch cache entries")
	flag.Parse()

	if *dir == "" {
		log.Fatal("dir is required")
	}
	windowSizes, err := parseInts(*windows)
	if err != nil {
		log.Fatalf("bad -windows: %v", err)
	}
	thresholdValues, err := parseFloats(*thresholds)
	if err != nil {
		log.Fatalf("bad -thresholds: %v", err)
	}

	// One cache shared by every combination: each replay of the directory
	// after the first reads from memory.
	loader, err := data.NewCachingLoader(&data.TSVLoader{}, *cacheSize)
	if err != nil {
		log.Fatalf("failed to build loader: %v", err)
	}

	files, err := data.ListFiles(*dir, *ext)
	if err != nil {
		log.Fatalf("failed to list %s: %v", *dir, err)
	}
	if len(files) == 0 {
		log.Fatalf("no %s files in %s", *ext, *dir)
	}
	first, err := loader.Load(files[0])
	if err != nil {
		log.Fatalf("failed to load %s: %v", files[0], err)
	}
	schema := first.Schema()

	className := *class
	if className == "" {
		className = schema.Attribute(schema.Len() - 1).Name
	}
	builder, err := model.Builder(*family)
	if err != nil {
		log.Fatalf("unknown family: %v", err)
	}
	dag, err := builder(schema, className, 1)
	if err != nil {
		log.Fatalf("failed to build DAG: %v", err)
	}
	if _, err := classifier.FromModel(schema, dag); err != nil {
		log.Fatalf("invalid model structure: %v", err)
	}

	var results []result
	for _, w := range windowSizes {
		for _, th := range thresholdValues {
			total, epochs, err := runOnce(*dir, *ext, dag, loader, w, th, *iterations, *minInstances, *seed)
			if err != nil {
				log.Fatalf("window=%d threshold=%v: %v", w, th, err)
			}
			results = append(results, result{window: w, threshold: th, total: total, epochs: epochs})
			log.Printf("window=%d threshold=%v totalLog=%v epochs=%d", w, th, total, epochs)
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].total > results[j].total })
	fmt.Println("rank\twindow\tthreshold\ttotalLog\tepochs")
	for i, r := range results {
		fmt.Printf("%d\t%d\t%v\t%v\t%d\n", i+1, r.window, r.threshold, r.total, r.epochs)
	}
}

func runOnce(dir, ext string, dag *model.DAG, loader data.Loader, window int, threshold float64, iterations, minInstances int, seed int64) (float64, int, error) {
	svb := learner.New(learner.Config{
		MaxIterations: iterations,
		Threshold:     threshold,
		WindowSize:    window,
	}, nil)
	if err := svb.InitLearning(dag); err != nil {
		return 0, 0, err
	}
	if err := svb.RandomInitialize(seed); err != nil {
		return 0, 0, err
	}

	loop, err := stream.New(stream.Config{
		SourceDir:    dir,
		FileExt:      ext,
		MinInstances: minInstances,
		WindowSize:   window,
		Seed:         seed,
	}, loader, dag, svb, nullSink{}, nil)
	if err != nil {
		return 0, 0, err
	}
	total, err := loop.Run()
	if err != nil {
		return 0, 0, err
	}
	return total, loop.Records(), nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
