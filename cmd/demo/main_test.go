package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantMode string
		wantDir  string
		wantOK   bool
	}{
		{"default dir", []string{"start"}, "start", filepath.Join(os.TempDir(), "git-queue-demo"), true},
		{"explicit dir", []string{"recover", "/tmp/demo"}, "recover", "/tmp/demo", true},
		{"no mode", nil, "", "", false},
		{"too many", []string{"start", "a", "b"}, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, dir, ok := parseArgs(tt.args)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantMode, mode)
			assert.Equal(t, tt.wantDir, dir)
		})
	}
}
