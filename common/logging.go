package common

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ricochet2200/go-disk-usage/du"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logMaxSize     = 10 * 1024 * 1024 // rotate above 10mb
	logMinFree     = 50 * 1024 * 1024 // leave 50mb free
	logGenerations = 9
)

// LogFile is an append-only log file that rotates itself into numbered
// generations (name.1 is the newest) and gives up old generations when the
// disk runs low.
type LogFile struct {
	mu   sync.Mutex
	dir  string
	name string
	fp   *os.File

	MaxSize     int64
	MinFree     int64
	Generations int
}

func OpenLogFile(dir, name string) (*LogFile, error) {
	l := &LogFile{
		dir:         dir,
		name:        name,
		MaxSize:     logMaxSize,
		MinFree:     logMinFree,
		Generations: logGenerations,
	}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LogFile) Path() string {
	return filepath.Join(l.dir, l.name)
}

func (l *LogFile) open() error {
	fp, err := os.OpenFile(l.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	if l.fp != nil {
		l.fp.Close()
	}
	l.fp = fp
	return nil
}

func (l *LogFile) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fp.Write(p)
}

func (l *LogFile) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fp.Sync()
}

func (l *LogFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fp.Close()
}

// rotated returns the numbered generations, newest first.
func (l *LogFile) rotated() []string {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil
	}
	type gen struct {
		path string
		num  int
	}
	var gens []gen
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), l.name+".") {
			continue
		}
		num, err := strconv.Atoi(strings.TrimPrefix(e.Name(), l.name+"."))
		if err != nil {
			continue
		}
		gens = append(gens, gen{filepath.Join(l.dir, e.Name()), num})
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i].num < gens[j].num })

	paths := make([]string, len(gens))
	for i, g := range gens {
		paths[i] = g.path
	}
	return paths
}

// Rotate shifts every generation up by one, dropping the oldest, and starts
// a fresh file.
func (l *LogFile) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	logs := l.rotated()
	for i := len(logs) - 1; i >= 0; i-- {
		num, _ := strconv.Atoi(strings.TrimPrefix(filepath.Base(logs[i]), l.name+"."))
		if num >= l.Generations {
			os.Remove(logs[i])
			continue
		}
		os.Rename(logs[i], filepath.Join(l.dir, l.name+"."+strconv.Itoa(num+1)))
	}

	if err := os.Rename(l.Path(), l.Path()+".1"); err != nil {
		return err
	}
	return l.open()
}

func (l *LogFile) deleteOldest() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	logs := l.rotated()
	if len(logs) == 0 {
		return 0
	}
	oldest := logs[len(logs)-1]
	stat, err := os.Stat(oldest)
	if err != nil {
		return 0
	}
	if err := os.Remove(oldest); err != nil {
		return 0
	}
	return stat.Size()
}

func (l *LogFile) size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	info, err := l.fp.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

// Check rotates an oversized file and deletes old generations while free
// space is below MinFree.
func (l *LogFile) Check() {
	if l.size() > l.MaxSize {
		l.Rotate()
	}

	freeBytes := int64(du.NewDiskUsage(l.dir).Free())
	for freeBytes < l.MinFree {
		deleted := l.deleteOldest()
		if deleted == 0 {
			break
		}
		freeBytes += deleted
	}
}

// Watch calls Check every interval until quit is closed.
func (l *LogFile) Watch(quit <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		l.Check()
		select {
		case <-quit:
			return
		case <-ticker.C:
		}
	}
}

// NewLogger builds a console logger writing to w and stdout.
func NewLogger(w io.Writer, debug bool) *zap.Logger {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	out := zapcore.NewMultiWriteSyncer(zapcore.AddSync(w), zapcore.Lock(os.Stdout))
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), out, level)
	return zap.New(core)
}
