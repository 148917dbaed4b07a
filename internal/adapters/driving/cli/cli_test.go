package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven/mocks"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/poller"
)

type fakeExporter struct {
	snap *domain.Snapshot
	err  error
}

func (f *fakeExporter) Export(ctx context.Context) (*domain.Snapshot, error) {
	return f.snap, f.err
}

type fakePipeline struct {
	report *domain.PublishReport
	err    error
	opts   domain.PublishOptions
}

func (f *fakePipeline) Run(ctx context.Context, opts domain.PublishOptions) (*domain.PublishReport, error) {
	f.opts = opts
	return f.report, f.err
}

func setupTestServices(t *testing.T, svc *Services) {
	t.Helper()
	old := loadServices
	SetServiceLoader(func(ctx context.Context) (*Services, error) {
		return svc, nil
	})
	t.Cleanup(func() {
		SetServiceLoader(old)
	})
}

func resetFlags() {
	exportJSON = false
	publishSkipSmoke = false
	publishSmokeQuery = ""
	publishJSON = false
	agentHistory = 0
	agentJSON = false
	searchServer = "http://localhost:8080"
	searchInterval = poller.DefaultInterval
	searchBudget = poller.DefaultBudget
	searchSessionID = ""
	searchJSON = false
}

// runCommand executes the root command with args and returns its combined output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// runCommandStdout executes the root command without an output writer, the
// way the binary runs, and returns what reached the process stdout and stderr.
func runCommandStdout(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	resetFlags()

	r, w, perr := os.Pipe()
	require.NoError(t, perr)
	oldStdout := os.Stdout
	os.Stdout = w

	captured := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(r)
		captured <- string(data)
	}()

	errBuf := new(bytes.Buffer)
	rootCmd.SetErr(errBuf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
	}()

	err = rootCmd.Execute()

	os.Stdout = oldStdout
	w.Close()
	stdout = <-captured
	r.Close()
	return stdout, errBuf.String(), err
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"export", "publish", "agent", "search", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestVersionCmd(t *testing.T) {
	old := version
	SetVersion("1.2.3")
	defer SetVersion(old)

	out, err := runCommand(t, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "catalogctl version 1.2.3")
}

func TestServicesNotConfigured(t *testing.T) {
	old := loadServices
	SetServiceLoader(nil)
	defer SetServiceLoader(old)

	_, err := runCommand(t, "export")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestServiceLoaderError(t *testing.T) {
	old := loadServices
	SetServiceLoader(func(ctx context.Context) (*Services, error) {
		return nil, errors.New("database unreachable")
	})
	defer SetServiceLoader(old)

	_, err := runCommand(t, "agent")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unreachable")
}

func TestExportCmd(t *testing.T) {
	report := domain.NewSanitizeReport()
	report.Add(domain.FieldResult{ProductID: "p1", Field: domain.FieldTags, Status: domain.FieldMalformed})
	report.Add(domain.FieldResult{ProductID: "p2", Field: domain.FieldTags, Status: domain.FieldMalformed})
	report.Add(domain.FieldResult{ProductID: "p2", Field: domain.FieldPricingInfo, Status: domain.FieldMalformed})
	setupTestServices(t, &Services{Exporter: &fakeExporter{snap: &domain.Snapshot{
		Path:        "data/products.json",
		Digest:      "abc123",
		RecordCount: 2,
		Report:      report,
	}}})

	out, err := runCommand(t, "export")

	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 products to data/products.json")
	assert.Contains(t, out, "Digest: abc123")
	assert.Contains(t, out, "Malformed fields replaced with defaults: 3")
	assert.Contains(t, out, "tags")
	assert.Contains(t, out, "pricingInfo")
}

func TestExportCmd_JSON(t *testing.T) {
	setupTestServices(t, &Services{Exporter: &fakeExporter{snap: &domain.Snapshot{Path: "p.json", RecordCount: 1}}})

	out, err := runCommand(t, "export", "--json")

	require.NoError(t, err)
	assert.Contains(t, out, `"recordCount": 1`)
}

func TestExportCmd_Error(t *testing.T) {
	setupTestServices(t, &Services{Exporter: &fakeExporter{err: errors.New("disk full")}})

	_, err := runCommand(t, "export")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func passingReport() *domain.PublishReport {
	return &domain.PublishReport{
		Deployment: "default",
		Stages: []domain.StageResult{
			{Stage: domain.StageExport, Passed: true, Duration: 12 * time.Millisecond},
			{Stage: domain.StageUpload, Passed: true},
			{Stage: domain.StageRegister, Passed: true},
			{Stage: domain.StageActivate, Passed: true},
			{Stage: domain.StageSmoke, Skipped: true, Detail: "skipped by request"},
		},
		Registration: &domain.AgentRegistration{ID: "reg-2", AgentID: "asst_2", RecordCount: 40},
	}
}

func TestPublishCmd_Passes(t *testing.T) {
	pipeline := &fakePipeline{report: passingReport()}
	setupTestServices(t, &Services{Pipeline: pipeline})

	out, err := runCommand(t, "publish", "--skip-smoke", "--smoke-query", "crm")

	require.NoError(t, err)
	assert.True(t, pipeline.opts.SkipSmoke)
	assert.Equal(t, "crm", pipeline.opts.SmokeQuery)
	assert.Contains(t, out, "STAGE")
	assert.Contains(t, out, "skip")
	assert.Contains(t, out, "Agent: asst_2 (registration reg-2, 40 products)")
	assert.Contains(t, out, "PASS")
}

func TestPublishCmd_StageFailureExitsNonZero(t *testing.T) {
	report := &domain.PublishReport{
		Deployment: "default",
		Stages: []domain.StageResult{
			{Stage: domain.StageExport, Passed: true},
			{Stage: domain.StageSmoke, Passed: false, Detail: "no known products in answer"},
		},
	}
	setupTestServices(t, &Services{Pipeline: &fakePipeline{report: report}})

	out, err := runCommand(t, "publish")

	require.Error(t, err)
	assert.ErrorIs(t, err, errPublishFailed)
	assert.Contains(t, out, "fail")
	assert.Contains(t, out, "no known products in answer")
	assert.Contains(t, out, "FAIL")
}

func TestPublishCmd_RunErrorStillPrintsReport(t *testing.T) {
	report := &domain.PublishReport{
		Deployment: "default",
		Stages:     []domain.StageResult{{Stage: domain.StageUpload, Passed: false, Detail: "quota exceeded"}},
	}
	setupTestServices(t, &Services{Pipeline: &fakePipeline{report: report, err: domain.NewStageError(domain.StageUpload, errors.New("quota exceeded"))}})

	out, err := runCommand(t, "publish")

	require.Error(t, err)
	assert.ErrorIs(t, err, errPublishFailed)
	assert.Contains(t, out, "quota exceeded")
}

func TestPublishCmd_InProgress(t *testing.T) {
	setupTestServices(t, &Services{Pipeline: &fakePipeline{err: domain.ErrPublishInProgress}})

	_, err := runCommand(t, "publish")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPublishInProgress)
}

func TestAgentCmd(t *testing.T) {
	store := mocks.NewMockRegistrationStore()
	ctx := context.Background()
	require.NoError(t, store.Activate(ctx, &domain.AgentRegistration{ID: "reg-1", Deployment: "default", AgentID: "asst_1"}))
	require.NoError(t, store.Activate(ctx, &domain.AgentRegistration{
		ID:             "reg-2",
		Deployment:     "default",
		AgentID:        "asst_2",
		Provider:       domain.ProviderOpenAI,
		SnapshotDigest: "d2",
		RecordCount:    7,
	}))
	setupTestServices(t, &Services{Registrations: store, Deployment: "default"})

	out, err := runCommand(t, "agent", "--history", "5")

	require.NoError(t, err)
	assert.Contains(t, out, "Registration: reg-2")
	assert.Contains(t, out, "Agent:        asst_2")
	assert.Contains(t, out, "d2 (7 products)")
	assert.Contains(t, out, "History:")
	assert.Contains(t, out, "reg-1")
}

func TestAgentCmd_NoActive(t *testing.T) {
	setupTestServices(t, &Services{Registrations: mocks.NewMockRegistrationStore(), Deployment: "default"})

	out, err := runCommand(t, "agent")

	require.NoError(t, err)
	assert.Contains(t, out, "No active agent")
}

func TestJSONOutputGoesToStdout(t *testing.T) {
	setupTestServices(t, &Services{
		Exporter: &fakeExporter{snap: &domain.Snapshot{Path: "p.json", RecordCount: 1}},
		Pipeline: &fakePipeline{report: passingReport()},
	})

	for _, args := range [][]string{{"export", "--json"}, {"publish", "--json"}} {
		t.Run(args[0], func(t *testing.T) {
			stdout, stderr, err := runCommandStdout(t, args...)
			require.NoError(t, err)

			var decoded map[string]any
			require.NoError(t, json.Unmarshal([]byte(stdout), &decoded), "stdout must hold the JSON document: %q", stdout)
			assert.NotContains(t, stderr, "{")
		})
	}
}
