package operations

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kebairia/mongocli/internal/config"
	"github.com/kebairia/mongocli/internal/delta"
	"github.com/kebairia/mongocli/internal/dump"
)

type fakeClient struct {
	names   []string
	listErr error
	stats   map[string]map[string]any
}

func (f *fakeClient) ListDatabaseNames(ctx context.Context) ([]string, error) {
	return f.names, f.listErr
}

func (f *fakeClient) DatabaseStats(ctx context.Context, name string) (map[string]any, error) {
	doc, ok := f.stats[name]
	if !ok {
		return nil, errors.New("no stats configured")
	}
	return doc, nil
}

// fakeDumper writes deterministic dump files instead of running mongodump.
type fakeDumper struct {
	payload []byte
	err     error
	dumped  []string
}

func (f *fakeDumper) DumpOne(ctx context.Context, dbName, outDir string, includeSystemCollections bool) error {
	if f.err != nil {
		return f.err
	}
	f.dumped = append(f.dumped, dbName)
	dir := filepath.Join(outDir, dbName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "data.bson"), f.payload, 0o644)
}

func (f *fakeDumper) DumpAll(ctx context.Context, lister dump.DatabaseLister, outDir string, includeSystemDBs, includeSystemCollections bool) error {
	if f.err != nil {
		return f.err
	}
	names, err := lister.ListDatabaseNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := f.DumpOne(ctx, name, outDir, includeSystemCollections); err != nil {
			return err
		}
	}
	return nil
}

type sentItem struct {
	kind    string // "message" or "file"
	content string
	path    string
}

type fakeSender struct {
	sent []sentItem
}

func (f *fakeSender) SendMessage(ctx context.Context, content string) error {
	f.sent = append(f.sent, sentItem{kind: "message", content: content})
	return nil
}

func (f *fakeSender) SendFile(ctx context.Context, content, path string) error {
	f.sent = append(f.sent, sentItem{kind: "file", content: content, path: path})
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		WebhookURL:    "https://discord.com/api/webhooks/123456789/abcDEF-123",
		MongoURI:      "mongodb://localhost:27017",
		MaxFileMB:     8,
		IntervalHours: 4,
		OutDir:        t.TempDir(),
	}
}

func testClient() *fakeClient {
	return &fakeClient{
		names: []string{"appdb", "eventsdb"},
		stats: map[string]map[string]any{
			"appdb":    {"collections": 4, "dataSize": 4096, "storageSize": 2048, "indexSize": 512},
			"eventsdb": {"collections": 2, "dataSize": 1024, "storageSize": 512, "indexSize": 128},
		},
	}
}

func newTestRunner(cfg *config.Config, dumper *fakeDumper, sender *fakeSender) (*Runner, *[]time.Duration) {
	r := NewRunner(cfg, testClient(), dumper, sender)
	var sleeps []time.Duration
	r.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return r, &sleeps
}

func TestCompressionStats(t *testing.T) {
	cases := []struct {
		raw, zip    int64
		wantSaved   int64
		wantPercent float64
	}{
		{1048576, 524288, 524288, 50},
		{100, 100, 0, 0},
		{100, 150, 0, 0}, // pathological content grew under compression
		{0, 0, 0, 0},
		{0, 10, 0, 0},
		{1000, 0, 1000, 100},
	}
	for _, c := range cases {
		saved, percent := compressionStats(c.raw, c.zip)
		if saved != c.wantSaved {
			t.Errorf("compressionStats(%d, %d) saved = %d, want %d", c.raw, c.zip, saved, c.wantSaved)
		}
		if percent != c.wantPercent {
			t.Errorf("compressionStats(%d, %d) percent = %v, want %v", c.raw, c.zip, percent, c.wantPercent)
		}
		if percent < 0 || percent > 100 {
			t.Errorf("compressionStats(%d, %d) percent out of range: %v", c.raw, c.zip, percent)
		}
	}
}

func TestRunDirectUpload(t *testing.T) {
	cfg := testConfig(t)
	dumper := &fakeDumper{payload: bytes.Repeat([]byte("backup-record "), 100)}
	sender := &fakeSender{}
	r, sleeps := newTestRunner(cfg, dumper, sender)

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Scope != "all-databases" {
		t.Errorf("scope = %q", summary.Scope)
	}
	if summary.FileCount != 2 || summary.RawBackupBytes == 0 {
		t.Errorf("scan results: files=%d raw=%d", summary.FileCount, summary.RawBackupBytes)
	}
	info, err := os.Stat(summary.ZipFilePath)
	if err != nil {
		t.Fatalf("stat archive: %v", err)
	}
	if summary.ZipBytes != info.Size() {
		t.Errorf("zipBytes = %d, on disk %d", summary.ZipBytes, info.Size())
	}
	if summary.StorageDelta != nil || summary.ZipDelta != nil {
		t.Error("first run must carry no deltas")
	}
	if summary.Storage.Totals.TotalSize != (2048+512)+(512+128) {
		t.Errorf("storage total = %v", summary.Storage.Totals.TotalSize)
	}
	if len(summary.TopDatabases) != 2 || summary.TopDatabases[0].DB != "appdb" {
		t.Errorf("topDatabases = %+v", summary.TopDatabases)
	}

	// Report text first, then exactly one file.
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d items, want 2: %+v", len(sender.sent), sender.sent)
	}
	if sender.sent[0].kind != "message" || !strings.Contains(sender.sent[0].content, "backup completed") {
		t.Errorf("first send = %+v, want report message", sender.sent[0])
	}
	if sender.sent[1].kind != "file" || sender.sent[1].path != summary.ZipFilePath {
		t.Errorf("second send = %+v, want the archive", sender.sent[1])
	}
	if len(*sleeps) != 0 {
		t.Errorf("direct upload should not pace parts, slept %v", *sleeps)
	}

	// Both summary copies must exist and agree.
	runCopy, err := LoadSummary(filepath.Join(summary.RunOutDir, SummaryFilename))
	if err != nil || runCopy == nil {
		t.Fatalf("run-scoped summary: %v, %v", runCopy, err)
	}
	latest, err := LoadSummary(filepath.Join(cfg.OutDir, LatestSummaryFilename))
	if err != nil || latest == nil {
		t.Fatalf("latest summary: %v, %v", latest, err)
	}
	if latest.ZipBytes != summary.ZipBytes || latest.RunOutDir != summary.RunOutDir {
		t.Errorf("latest summary diverges from run summary")
	}
}

func TestSummaryJSONFormat(t *testing.T) {
	cfg := testConfig(t)
	dumper := &fakeDumper{payload: []byte("x")}
	sender := &fakeSender{}
	r, _ := newTestRunner(cfg, dumper, sender)

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(cfg.OutDir, LatestSummaryFilename))
	if err != nil {
		t.Fatalf("read latest summary: %v", err)
	}
	if !bytes.HasSuffix(raw, []byte("\n")) {
		t.Error("summary JSON must end with a newline")
	}
	if !bytes.Contains(raw, []byte("\n  \"createdAt\"")) {
		t.Error("summary JSON must be 2-space indented")
	}
	for _, field := range []string{"rawBackupBytes", "zipBytes", "compressionSavedBytes", "storage", "topDatabases"} {
		if !bytes.Contains(raw, []byte(`"`+field+`"`)) {
			t.Errorf("summary JSON missing field %q", field)
		}
	}
}

func TestRunSecondRunComputesDeltas(t *testing.T) {
	cfg := testConfig(t)
	sender := &fakeSender{}

	r1, _ := newTestRunner(cfg, &fakeDumper{payload: bytes.Repeat([]byte("a"), 500)}, sender)
	first, err := r1.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	// Distinct run directory names are timestamp-based at second granularity.
	r2, _ := newTestRunner(cfg, &fakeDumper{payload: bytes.Repeat([]byte("b"), 900)}, sender)
	r2.now = func() time.Time { return time.Now().Add(time.Hour) }

	second, err := r2.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.ZipDelta == nil || second.StorageDelta == nil {
		t.Fatal("second run must carry deltas")
	}
	if second.ZipDelta.Previous != float64(first.ZipBytes) {
		t.Errorf("zipDelta.previous = %v, want %v", second.ZipDelta.Previous, first.ZipBytes)
	}
	if second.StorageDelta.Direction != delta.DirectionUnchanged {
		t.Errorf("storage unchanged between runs, direction = %q", second.StorageDelta.Direction)
	}
}

func TestRunChunkedUpload(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxFileMB = 1

	// Incompressible payload well over the 1 MiB ceiling.
	payload := make([]byte, 3*1024*1024)
	rand.New(rand.NewSource(7)).Read(payload)
	dumper := &fakeDumper{payload: payload}
	sender := &fakeSender{}
	r, sleeps := newTestRunner(cfg, dumper, sender)

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.ZipBytes <= cfg.MaxFileBytes() {
		t.Fatalf("test setup: archive %d not over ceiling %d", summary.ZipBytes, cfg.MaxFileBytes())
	}
	wantParts := int((summary.ZipBytes + cfg.MaxFileBytes() - 1) / cfg.MaxFileBytes())

	// report, announcement, N parts, reconstruction hint
	if len(sender.sent) != wantParts+3 {
		t.Fatalf("sent %d items, want %d", len(sender.sent), wantParts+3)
	}
	if sender.sent[1].kind != "message" || !strings.Contains(sender.sent[1].content, "parts") {
		t.Errorf("announcement = %+v", sender.sent[1])
	}
	last := sender.sent[len(sender.sent)-1]
	if last.kind != "message" || !strings.Contains(last.content, "cat ") {
		t.Errorf("reconstruction hint = %+v", last)
	}

	var joined bytes.Buffer
	for i := 0; i < wantParts; i++ {
		item := sender.sent[2+i]
		if item.kind != "file" {
			t.Fatalf("send %d = %+v, want file part", 2+i, item)
		}
		b, err := os.ReadFile(item.path)
		if err != nil {
			t.Fatalf("read part: %v", err)
		}
		joined.Write(b)
	}
	original, err := os.ReadFile(summary.ZipFilePath)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if !bytes.Equal(joined.Bytes(), original) {
		t.Error("concatenated uploaded parts differ from the archive")
	}

	if len(*sleeps) != wantParts-1 {
		t.Errorf("slept %d times between parts, want %d", len(*sleeps), wantParts-1)
	}
	for _, d := range *sleeps {
		if d != interPartDelay {
			t.Errorf("inter-part delay = %v, want %v", d, interPartDelay)
		}
	}
}

func TestRunSingleDatabaseScope(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBName = "appdb"
	dumper := &fakeDumper{payload: []byte("data")}
	sender := &fakeSender{}
	r, _ := newTestRunner(cfg, dumper, sender)

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Scope != "db:appdb" || summary.DBName != "appdb" {
		t.Errorf("scope = %q, dbName = %q", summary.Scope, summary.DBName)
	}
	if len(dumper.dumped) != 1 || dumper.dumped[0] != "appdb" {
		t.Errorf("dumped = %v, want only appdb", dumper.dumped)
	}
	if len(summary.Storage.PerDB) != 1 || summary.Storage.PerDB[0].DB != "appdb" {
		t.Errorf("stats rows = %+v, want only appdb", summary.Storage.PerDB)
	}
}

func TestRunDumpFailureAborts(t *testing.T) {
	cfg := testConfig(t)
	dumper := &fakeDumper{err: errors.New("mongodump exited 1")}
	sender := &fakeSender{}
	r, _ := newTestRunner(cfg, dumper, sender)

	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected dump failure to propagate")
	}
	if len(sender.sent) != 0 {
		t.Errorf("nothing should be sent after a failed dump, got %+v", sender.sent)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutDir, LatestSummaryFilename)); !os.IsNotExist(err) {
		t.Error("failed run must not overwrite the latest summary pointer")
	}
}

func TestRenderReportFirstRun(t *testing.T) {
	cfg := testConfig(t)
	dumper := &fakeDumper{payload: []byte("data")}
	sender := &fakeSender{}
	r, _ := newTestRunner(cfg, dumper, sender)

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	text := renderReport(summary, cfg.IntervalHours)
	for _, want := range []string{"all-databases", "no previous run", "Top databases", "about 4h"} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}
