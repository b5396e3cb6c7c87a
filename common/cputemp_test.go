package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadCpuTemp(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		os.WriteFile(p, []byte(content), 0644)
		return p
	}

	assert.InDelta(t, 48.312, ReadCpuTemp(write("milli", "48312\n")), 1e-3)
	assert.Equal(t, float32(52), ReadCpuTemp(write("plain", "52\n")))
	assert.Equal(t, InvalidCpuTemp, ReadCpuTemp(write("junk", "hot\n")))
	assert.Equal(t, InvalidCpuTemp, ReadCpuTemp(filepath.Join(dir, "missing")))
	assert.False(t, IsCPUTempValid(InvalidCpuTemp))
}
