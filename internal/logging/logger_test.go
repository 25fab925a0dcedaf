package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetState clears package state so each test starts from a fresh Initialize.
func resetState() {
	CloseAll()
	CloseAudit()
	configMu.Lock()
	config = loggingConfig{}
	configMu.Unlock()
	logsDir = ""
	workspace = ""
	logLevel = LevelInfo
	auditLogger = nil
}

func writeConfig(t *testing.T, ws, body string) {
	t.Helper()
	dir := filepath.Join(ws, ".scene")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
}

// TestAllCategoriesLog tests that all categories create log files when debug_mode is true
func TestAllCategoriesLog(t *testing.T) {
	resetState()
	t.Cleanup(resetState)

	ws := t.TempDir()
	writeConfig(t, ws, `
logging:
  debug_mode: true
  level: debug
`)
	require.NoError(t, Initialize(ws))
	require.True(t, IsDebugMode())

	for _, cat := range AllCategories {
		assert.True(t, IsCategoryEnabled(cat), "category %s", cat)
		l := Get(cat)
		l.Info("info for %s", cat)
		l.Debug("debug for %s", cat)
		l.Warn("warn for %s", cat)
		l.Error("error for %s", cat)
	}
	CLI("convenience cli log")
	Form("convenience form log")
	Watch("convenience watch log")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".scene", "logs"))
	require.NoError(t, err)

	for _, cat := range AllCategories {
		found := false
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), "_"+string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(ws, ".scene", "logs", e.Name()))
				require.NoError(t, err)
				assert.NotEmpty(t, content, "log file for %s", cat)
			}
		}
		assert.True(t, found, "no log file for %s", cat)
	}
}

// TestDebugModeDisabled tests that no logs are created when debug_mode is false
func TestDebugModeDisabled(t *testing.T) {
	resetState()
	t.Cleanup(resetState)

	ws := t.TempDir()
	writeConfig(t, ws, `
logging:
  debug_mode: false
  level: debug
`)
	require.NoError(t, Initialize(ws))
	assert.False(t, IsDebugMode())

	for _, cat := range AllCategories {
		assert.False(t, IsCategoryEnabled(cat))
	}
	Boot("should not be logged")
	Get(CategoryDocument).Error("should not be logged")
	CloseAll()

	_, err := os.Stat(filepath.Join(ws, ".scene", "logs"))
	assert.True(t, os.IsNotExist(err), "logs dir should not exist in production mode")
}

func TestMissingConfigDisablesLogging(t *testing.T) {
	resetState()
	t.Cleanup(resetState)

	ws := t.TempDir()
	require.NoError(t, Initialize(ws))
	assert.False(t, IsDebugMode())
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	resetState()
	t.Cleanup(resetState)

	assert.Error(t, Initialize(""))
}

func TestCategoryFilter(t *testing.T) {
	resetState()
	t.Cleanup(resetState)

	ws := t.TempDir()
	writeConfig(t, ws, `
logging:
  debug_mode: true
  categories:
    form: false
    text: true
`)
	require.NoError(t, Initialize(ws))

	assert.False(t, IsCategoryEnabled(CategoryForm))
	assert.True(t, IsCategoryEnabled(CategoryText))
	// Unlisted categories default to enabled.
	assert.True(t, IsCategoryEnabled(CategoryStore))
}

func TestLevelFiltering(t *testing.T) {
	resetState()
	t.Cleanup(resetState)

	ws := t.TempDir()
	writeConfig(t, ws, `
logging:
  debug_mode: true
  level: warn
`)
	require.NoError(t, Initialize(ws))

	l := Get(CategoryDocument)
	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Warn("visible warn")
	CloseAll()

	content := readCategoryLog(t, ws, CategoryDocument)
	assert.NotContains(t, content, "hidden")
	assert.Contains(t, content, "[WARN] visible warn")
}

func TestJSONFormat(t *testing.T) {
	resetState()
	t.Cleanup(resetState)

	ws := t.TempDir()
	writeConfig(t, ws, `
logging:
  debug_mode: true
  json_format: true
`)
	require.NoError(t, Initialize(ws))

	Get(CategoryStore).Info("saved %d scenes", 3)
	Get(CategoryStore).StructuredLog("info", "export", map[string]interface{}{"count": 2})
	CloseAll()

	content := readCategoryLog(t, ws, CategoryStore)
	var entries []StructuredLogEntry
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := sc.Text()
		start := strings.IndexByte(line, '{')
		if start < 0 {
			continue
		}
		var e StructuredLogEntry
		require.NoError(t, json.Unmarshal([]byte(line[start:]), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)
	assert.Equal(t, "saved 3 scenes", entries[0].Message)
	assert.Equal(t, "store", entries[0].Category)
	assert.Equal(t, float64(2), entries[1].Fields["count"])
}

func TestTimerThreshold(t *testing.T) {
	resetState()
	t.Cleanup(resetState)

	ws := t.TempDir()
	writeConfig(t, ws, `
logging:
  debug_mode: true
  level: debug
`)
	require.NoError(t, Initialize(ws))

	timer := StartTimer(CategoryDocument, "convert")
	time.Sleep(5 * time.Millisecond)
	elapsed := timer.StopWithThreshold(time.Nanosecond)
	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
	CloseAll()

	assert.Contains(t, readCategoryLog(t, ws, CategoryDocument), "convert took")
}

func TestAuditWritesJSONLines(t *testing.T) {
	resetState()
	t.Cleanup(resetState)

	ws := t.TempDir()
	writeConfig(t, ws, `
logging:
  debug_mode: true
`)
	require.NoError(t, Initialize(ws))
	require.NoError(t, InitAudit())

	a := AuditForScene("greeting", CategoryDocument)
	a.Commit("form", AuditDocCommit, "")
	a.Commit("form", AuditDocSerializeError, "dump: document contains a cycle")
	a.ObserverPanic("sub-1", "boom\nwith newline")
	CloseAudit()

	entries, err := os.ReadDir(filepath.Join(ws, ".scene", "logs"))
	require.NoError(t, err)
	var auditPath string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_audit.log") {
			auditPath = filepath.Join(ws, ".scene", "logs", e.Name())
		}
	}
	require.NotEmpty(t, auditPath)

	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)

	var events []AuditEvent
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var ev AuditEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 3)
	assert.Equal(t, AuditDocCommit, events[0].EventType)
	assert.Equal(t, "greeting", events[0].Scene)
	assert.True(t, events[0].Success)
	assert.Equal(t, AuditDocSerializeError, events[1].EventType)
	assert.False(t, events[1].Success)
	assert.Equal(t, AuditObserverPanic, events[2].EventType)
	assert.Equal(t, "boom with newline", events[2].Error)
}

func readCategoryLog(t *testing.T, ws string, cat Category) string {
	t.Helper()
	dir := filepath.Join(ws, ".scene", "logs")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_"+string(cat)+".log") {
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			require.NoError(t, err)
			return string(data)
		}
	}
	t.Fatalf("no log file for %s", cat)
	return ""
}

func TestLevelReloadWhileWriting(t *testing.T) {
	resetState()
	t.Cleanup(resetState)

	ws := t.TempDir()
	writeConfig(t, ws, `
logging:
  debug_mode: true
  level: debug
`)
	require.NoError(t, Initialize(ws))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			StoreDebug("write %d", i)
		}
	}()
	for i := 0; i < 20; i++ {
		require.NoError(t, loadConfig())
	}
	wg.Wait()
	CloseAll()

	assert.Contains(t, readCategoryLog(t, ws, CategoryStore), "write 199")
}
