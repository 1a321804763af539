package profiler

import (
	"bytes"
	"fmt"
	"runtime"
	"runtime/pprof"
	"sort"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/internetbuilder/hive/libraries/logger"
)

type Config struct {
	ServiceName string        // Service name for log output (e.g., "blocktool")
	Interval    time.Duration // Profiling interval (default: 60s)
	TopN        int           // Number of functions to show (default: 20)
}

var (
	ticker    *time.Ticker
	stopChan  chan struct{}
	mu        sync.Mutex
	isRunning bool
)

// Start begins periodic CPU profiling; each interval is profiled in
// full and the top functions logged under the "profiler" category.
func Start(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	if isRunning {
		logger.Printf("profiler", "WARNING: Profiler already running, stopping previous instance")
		stopUnsafe()
	}

	if cfg.Interval == 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.TopN == 0 {
		cfg.TopN = 20
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "unknown"
	}

	stopChan = make(chan struct{})
	ticker = time.NewTicker(cfg.Interval)

	logger.Printf("profiler", "Starting periodic CPU profiling: every %v", cfg.Interval)

	go func() {
		printCPUProfile(cfg.ServiceName, cfg.Interval, cfg.TopN)

		for {
			select {
			case <-ticker.C:
				printCPUProfile(cfg.ServiceName, cfg.Interval, cfg.TopN)
			case <-stopChan:
				return
			}
		}
	}()

	isRunning = true
}

func Stop() {
	mu.Lock()
	defer mu.Unlock()
	stopUnsafe()
}

func stopUnsafe() {
	if !isRunning {
		return
	}

	if ticker != nil {
		ticker.Stop()
	}
	if stopChan != nil {
		close(stopChan)
	}

	isRunning = false
	logger.Printf("profiler", "Stopped periodic CPU profiling")
}

func printCPUProfile(serviceName string, duration time.Duration, topN int) {
	startTime := time.Now()
	var buf bytes.Buffer

	if err := pprof.StartCPUProfile(&buf); err != nil {
		logger.Printf("profiler", "PROFILE ERROR: Could not start CPU profile: %v", err)
		return
	}

	profileTimer := time.NewTimer(duration)
	defer profileTimer.Stop()

	select {
	case <-profileTimer.C:
	case <-stopChan:
		logger.Printf("profiler", "Profiling interrupted by shutdown (captured %.1fs of %.1fs)",
			time.Since(startTime).Seconds(), duration.Seconds())
	}

	pprof.StopCPUProfile()

	goroutineCount := runtime.NumGoroutine()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	if buf.Len() == 0 {
		logger.Printf("profiler", "PROFILE: No CPU samples captured")
		return
	}

	data, err := parseProfile(&buf)
	if err != nil {
		logger.Printf("profiler", "PROFILE ERROR: Could not parse profile: %v", err)
		return
	}

	logger.Printf("profiler", "======================================================================")
	logger.Printf("profiler", "File: %s", serviceName)
	logger.Printf("profiler", "Duration: %.1fs, Total samples = %.2fs (%5.2f%%)",
		duration.Seconds(), data.totalDuration,
		(data.totalDuration/duration.Seconds())*100)
	logger.Printf("profiler", "Goroutines: %d | Heap: %d MB | Sys: %d MB | NumGC: %d",
		goroutineCount, m.Alloc/1024/1024, m.HeapSys/1024/1024, m.NumGC)
	logger.Printf("profiler", "      flat  flat%%   sum%%")

	cumSum := int64(0)
	for i := 0; i < topN && i < len(data.functions); i++ {
		fn := data.functions[i]
		cumSum += fn.flat
		sumPct := float64(cumSum) / float64(data.totalSamples) * 100

		logger.Printf("profiler", "%10s %5.2f%% %5.2f%%  %s",
			formatDuration(fn.flat, data.sampleRate), fn.flatPct, sumPct, fn.name)
	}
	logger.Printf("profiler", "======================================================================")
}

type profileData struct {
	totalSamples  int64
	totalDuration float64 // in seconds
	sampleRate    int64   // nanoseconds per sample
	functions     []funcProfile
}

type funcProfile struct {
	name    string
	flat    int64   // self samples
	flatPct float64 // self percentage
}

func parseProfile(r *bytes.Buffer) (*profileData, error) {
	prof, err := profile.Parse(r)
	if err != nil {
		return nil, err
	}

	sampleRate := int64(1000000) // default: 1ms per sample
	if len(prof.SampleType) > 0 && prof.SampleType[0].Unit == "nanoseconds" && prof.Period > 0 {
		sampleRate = prof.Period
	}

	funcStats := make(map[string]*funcProfile)
	totalSamples := int64(0)

	for _, sample := range prof.Sample {
		if len(sample.Value) == 0 {
			continue
		}

		flat := sample.Value[0]
		totalSamples += flat

		if len(sample.Location) > 0 && len(sample.Location[0].Line) > 0 {
			line := sample.Location[0].Line[0]
			if line.Function != nil {
				name := line.Function.Name
				if stat, exists := funcStats[name]; exists {
					stat.flat += flat
				} else {
					funcStats[name] = &funcProfile{name: name, flat: flat}
				}
			}
		}
	}

	functions := make([]funcProfile, 0, len(funcStats))
	for _, stat := range funcStats {
		if totalSamples > 0 {
			stat.flatPct = float64(stat.flat) / float64(totalSamples) * 100
		}
		functions = append(functions, *stat)
	}

	sort.Slice(functions, func(i, j int) bool {
		return functions[i].flat > functions[j].flat
	})

	return &profileData{
		totalSamples:  totalSamples,
		totalDuration: float64(totalSamples*sampleRate) / 1e9,
		sampleRate:    sampleRate,
		functions:     functions,
	}, nil
}

func formatDuration(samples int64, sampleRate int64) string {
	seconds := float64(samples*sampleRate) / 1e9
	switch {
	case seconds >= 1.0:
		return fmt.Sprintf("%.2fs", seconds)
	case seconds >= 0.001:
		return fmt.Sprintf("%.0fms", seconds*1000)
	case seconds >= 0.000001:
		return fmt.Sprintf("%.0fµs", seconds*1e6)
	default:
		return fmt.Sprintf("%.0fns", seconds*1e9)
	}
}
