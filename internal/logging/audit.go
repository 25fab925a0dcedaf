package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType identifies what happened to a scene.
type AuditEventType string

const (
	// Document lifecycle
	AuditDocCommit         AuditEventType = "doc_commit"
	AuditDocParseError     AuditEventType = "doc_parse_error"
	AuditDocSerializeError AuditEventType = "doc_serialize_error"
	AuditObserverPanic     AuditEventType = "observer_panic"

	// Scene files
	AuditFileRead   AuditEventType = "file_read"
	AuditFileWrite  AuditEventType = "file_write"
	AuditFileReload AuditEventType = "file_reload"
	AuditFileError  AuditEventType = "file_error"

	// Scene store
	AuditStoreSave   AuditEventType = "store_save"
	AuditStoreLoad   AuditEventType = "store_load"
	AuditStoreDelete AuditEventType = "store_delete"
)

// AuditEvent is one line of the audit log.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`
	EventType  AuditEventType         `json:"event"`
	Category   string                 `json:"cat"`
	Scene      string                 `json:"scene,omitempty"`
	Origin     string                 `json:"origin,omitempty"`
	Target     string                 `json:"target,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger writes audit events, optionally scoped to one scene.
type AuditLogger struct {
	scene    string
	category Category
}

// InitAudit opens the day's audit file. No-op unless debug mode is on.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	fmt.Fprintf(auditFile, "# Audit log started at %s\n", time.Now().Format(time.RFC3339))
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditForScene returns an audit logger that stamps every event with scene.
func AuditForScene(scene string, category Category) *AuditLogger {
	return &AuditLogger{scene: scene, category: category}
}

// Log writes event, filling in the timestamp and scope.
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.Scene == "" {
		event.Scene = a.scene
	}
	if event.Category == "" {
		event.Category = string(a.category)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// Commit records a committed document change. ev is AuditDocCommit, or
// AuditDocParseError / AuditDocSerializeError when the conversion failed.
func (a *AuditLogger) Commit(origin string, ev AuditEventType, errMsg string) {
	a.Log(AuditEvent{
		EventType: ev,
		Category:  string(CategoryDocument),
		Origin:    origin,
		Success:   ev == AuditDocCommit && errMsg == "",
		Error:     oneLine(errMsg),
	})
}

// ObserverPanic records a recovered observer panic.
func (a *AuditLogger) ObserverPanic(subscription string, recovered interface{}) {
	a.Log(AuditEvent{
		EventType: AuditObserverPanic,
		Category:  string(CategoryDocument),
		Target:    subscription,
		Error:     oneLine(fmt.Sprint(recovered)),
	})
}

// FileOp records a scene file read, write or reload.
func (a *AuditLogger) FileOp(op AuditEventType, path string, bytes int, err error) {
	e := AuditEvent{
		EventType: op,
		Category:  string(CategoryWatch),
		Target:    path,
		Success:   err == nil,
		Fields:    map[string]interface{}{"bytes": bytes},
	}
	if err != nil {
		e.EventType = AuditFileError
		e.Error = oneLine(err.Error())
		e.Fields["op"] = string(op)
	}
	a.Log(e)
}

// StoreOp records a scene store operation.
func (a *AuditLogger) StoreOp(op AuditEventType, id, name string, duration time.Duration, err error) {
	e := AuditEvent{
		EventType:  op,
		Category:   string(CategoryStore),
		Target:     id,
		Message:    name,
		Success:    err == nil,
		DurationMs: duration.Milliseconds(),
	}
	if err != nil {
		e.Error = oneLine(err.Error())
	}
	a.Log(e)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
