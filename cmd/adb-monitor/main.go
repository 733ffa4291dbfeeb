// Command adb-monitor reports host CPU/memory usage at a fixed interval,
// meant to run alongside a long push/pull/flash so the operator can see
// whether the host itself is the bottleneck.
package main

import (
	"flag"
	"fmt"
	"log"
	"runtime"
	"time"

	psutil "github.com/shirou/gopsutil/v3/cpu"
	psmem "github.com/shirou/gopsutil/v3/mem"

	"adbhost/internal/adblog"
)

var interval = flag.Duration("interval", time.Second, "sample interval")

func main() {
	flag.Parse()
	logger := adblog.Get()
	defer logger.Close()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	log.Printf("adb-monitor sampling every %s (ctrl+c to stop)", *interval)
	for range ticker.C {
		line := sample()
		fmt.Println(line)
		logger.Logf("%s", line)
	}
}

func sample() string {
	cpuPercent, err := psutil.Percent(0, false)
	if err != nil || len(cpuPercent) == 0 {
		cpuPercent = []float64{0}
	}

	memInfo, err := psmem.VirtualMemory()
	memUsed := float64(0)
	if err == nil {
		memUsed = memInfo.UsedPercent
	}

	return fmt.Sprintf("CPU: %.1f%% | RAM: %.1f%% | Go: %s | goroutines: %d",
		cpuPercent[0], memUsed, runtime.Version(), runtime.NumGoroutine())
}
