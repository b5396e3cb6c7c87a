package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	InvalidCpuTemp = float32(-99.0)

	thermalZone = "/sys/class/thermal/thermal_zone0/temp"
)

type CpuTempUpdateFunc func(cpuTemp float32)

// ReadCpuTemp reads a thermal zone file. Values above 1000 are in
// millidegrees.
func ReadCpuTemp(path string) float32 {
	temp, err := os.ReadFile(path)
	if err != nil {
		return InvalidCpuTemp
	}
	tInt, err := strconv.Atoi(strings.TrimSpace(string(temp)))
	if err != nil {
		return InvalidCpuTemp
	}
	if tInt > 1000 {
		return float32(tInt) / 1000.0
	}
	return float32(tInt)
}

// CpuTempMonitor reads the board temperature every interval and calls
// updater with valid values until quit is closed. Reading the RPi thermal
// zone can hang for a while, so run it on its own goroutine.
func CpuTempMonitor(quit <-chan struct{}, interval time.Duration, updater CpuTempUpdateFunc) {
	timer := time.NewTicker(interval)
	defer timer.Stop()
	for {
		if t := ReadCpuTemp(thermalZone); IsCPUTempValid(t) {
			updater(t)
		}
		select {
		case <-quit:
			return
		case <-timer.C:
		}
	}
}

// Check if CPU temperature is valid. Assume <= 0 is invalid.
func IsCPUTempValid(cpuTemp float32) bool {
	return cpuTemp > 0
}
