package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/optimize"

	"github.com/arfluid/sph/config"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	ticks := flag.Int("ticks", 300, "Simulation length per evaluation in ticks")
	maxEvals := flag.Int("max-evals", 100, "Maximum number of evaluations")
	outputDir := flag.String("output", "", "Output directory for the evaluation log (empty = no log)")
	flag.Parse()

	// Load base config
	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := config.Cfg()

	params := NewParamVector()
	evaluator := NewFitnessEvaluator(params, *ticks, baseCfg)

	// Optional evaluation log
	var logWriter *csv.Writer
	if *outputDir != "" {
		if err := os.MkdirAll(*outputDir, 0755); err != nil {
			log.Fatalf("failed to create output directory: %v", err)
		}
		logFile, err := os.Create(filepath.Join(*outputDir, "tune_log.csv"))
		if err != nil {
			log.Fatalf("failed to create log file: %v", err)
		}
		defer logFile.Close()

		logWriter = csv.NewWriter(logFile)
		defer logWriter.Flush()

		header := []string{"eval", "fitness"}
		for _, spec := range params.Specs {
			header = append(header, spec.Name)
		}
		logWriter.Write(header)
	}

	evalCount := 0
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Denormalize(x)
			fitness := evaluator.Evaluate(raw)

			evalCount++
			if logWriter != nil {
				record := []string{
					strconv.Itoa(evalCount),
					strconv.FormatFloat(fitness, 'g', -1, 64),
				}
				for _, v := range raw {
					record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
				}
				logWriter.Write(record)
				logWriter.Flush()
			}
			return fitness
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // Sequential evaluation
	}

	initX := params.Normalize(params.DefaultVector())
	result, err := optimize.Minimize(problem, initX, settings, &optimize.NelderMead{})
	if err != nil {
		log.Fatalf("optimization failed: %v", err)
	}

	best := params.Denormalize(result.X)
	fmt.Printf("best fitness %g after %d evaluations\n", result.F, evalCount)
	for i, spec := range params.Specs {
		fmt.Printf("  %-14s %g\n", spec.Name, best[i])
	}
}
