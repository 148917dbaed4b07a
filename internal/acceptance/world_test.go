package acceptance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cucumber/godog"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	redisadapter "github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driven/redis"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/adapters/driving/cli"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven/mocks"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/services"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/poller"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/runtime"
)

const deployment = "default"

// world is the state shared by the steps of one scenario.
type world struct {
	ctx context.Context

	// catalog and publish
	products      *mocks.MockProductStore
	snapshots     *mocks.MockSnapshotStore
	reasoning     *mocks.MockReasoningService
	registrations *mocks.MockRegistrationStore
	directory     *runtime.AgentDirectory
	snapshot      *domain.Snapshot
	report        *domain.PublishReport
	publishErr    error

	// result store
	mr          *miniredis.Miniredis
	redisClient *redis.Client
	store       driven.ResultStore
	memStore    *mocks.MockResultStore
	offset      time.Duration
	mismatches  []string

	// search
	sessions  *mocks.MockSearchSessionStore
	trigger   *mocks.MockWorkflowTrigger
	results   *services.ResultService
	intake    *services.IntakeService
	submitted *domain.SubmitResponse
	answered  []string
	outcome   poller.Outcome
	fetches   atomic.Int32

	bg       sync.WaitGroup
	mu       sync.Mutex
	asyncErr error
}

func newWorld() *world {
	w := &world{
		ctx:           context.Background(),
		snapshots:     mocks.NewMockSnapshotStore("data/products.json"),
		reasoning:     mocks.NewMockReasoningService(),
		registrations: mocks.NewMockRegistrationStore(),
		sessions:      mocks.NewMockSearchSessionStore(),
		trigger:       mocks.NewMockWorkflowTrigger(),
	}
	w.directory = runtime.NewAgentDirectory(w.registrations, deployment, nil)
	w.reasoning.QueryFn = func(reg *domain.AgentRegistration, query string) (string, error) {
		return `{"recommendations":[{"id":"p1","matchPercentage":88,"recommendation":"Fits"}]}`, nil
	}

	searchResults := mocks.NewMockResultStore(10 * time.Minute)
	w.results = services.NewResultService(services.ResultServiceConfig{
		Results:    searchResults,
		Sessions:   w.sessions,
		SessionTTL: 10 * time.Minute,
	})
	w.intake = services.NewIntakeService(services.IntakeConfig{
		Sessions:        w.sessions,
		Trigger:         w.trigger,
		Tokens:          mocks.MockCallbackTokens{},
		Directory:       w.directory,
		CallbackURL:     "http://recommender.test/api/v1/search/callback",
		SessionTTL:      10 * time.Minute,
		DispatchTimeout: time.Second,
	})
	return w
}

func (w *world) close() {
	w.bg.Wait()
	if w.redisClient != nil {
		_ = w.redisClient.Close()
	}
	if w.mr != nil {
		w.mr.Close()
	}
}

func splitIDs(list string) []string {
	var ids []string
	for _, id := range strings.Split(list, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func recommendationIDs(payload *domain.ResultPayload) []string {
	if payload == nil {
		return nil
	}
	ids := make([]string, 0, len(payload.Recommendations))
	for _, r := range payload.Recommendations {
		ids = append(ids, r.ID)
	}
	return ids
}

// Catalog steps

func (w *world) theProductCatalog(table *godog.Table) error {
	if len(table.Rows) < 2 {
		return errors.New("catalog table needs a header and at least one row")
	}
	header := table.Rows[0].Cells
	col := func(name string) int {
		for i, c := range header {
			if c.Value == name {
				return i
			}
		}
		return -1
	}
	value := func(row int, name string) string {
		cells := table.Rows[row].Cells
		if i := col(name); i >= 0 && i < len(cells) {
			return cells[i].Value
		}
		return ""
	}

	var records []*domain.ProductRecord
	for row := 1; row < len(table.Rows); row++ {
		records = append(records, &domain.ProductRecord{
			ID:          value(row, "id"),
			Name:        value(row, "name"),
			Tags:        value(row, "tags"),
			PricingInfo: value(row, "pricing_info"),
		})
	}
	w.products = mocks.NewMockProductStore(records...)
	return nil
}

func (w *world) exporter() *services.Exporter {
	return services.NewExporter(services.ExporterConfig{Products: w.products, Snapshots: w.snapshots})
}

func (w *world) theCatalogIsExported() error {
	snap, err := w.exporter().Export(w.ctx)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	w.snapshot = snap
	return nil
}

func (w *world) theSnapshotHoldsProducts(n int) error {
	if w.snapshot.RecordCount != n {
		return fmt.Errorf("snapshot record count = %d, want %d", w.snapshot.RecordCount, n)
	}
	if got := len(w.snapshots.Products()); got != n {
		return fmt.Errorf("snapshot artifact holds %d products, want %d", got, n)
	}
	return nil
}

func (w *world) exportedProduct(id string) (*domain.SanitizedProduct, error) {
	for _, p := range w.snapshots.Products() {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("product %q missing from snapshot", id)
}

func (w *world) productHasNoTags(id string) error {
	p, err := w.exportedProduct(id)
	if err != nil {
		return err
	}
	if p.Tags == nil || len(p.Tags) != 0 {
		return fmt.Errorf("product %q tags = %#v, want empty list", id, p.Tags)
	}
	return nil
}

func (w *world) productHasEmptyPricingInfo(id string) error {
	p, err := w.exportedProduct(id)
	if err != nil {
		return err
	}
	if string(p.PricingInfo) != "{}" {
		return fmt.Errorf("product %q pricing info = %s, want {}", id, p.PricingInfo)
	}
	return nil
}

func (w *world) malformedFieldsAreReported(n int) error {
	if w.snapshot.Report == nil {
		return errors.New("snapshot carries no sanitize report")
	}
	if got := w.snapshot.Report.MalformedTotal(); got != n {
		return fmt.Errorf("malformed fields = %d, want %d", got, n)
	}
	return nil
}

// Publish steps

func (w *world) theCatalogIsPublished() error {
	publisher := services.NewPublisher(services.PublisherConfig{
		Reasoning:     w.reasoning,
		Snapshots:     w.snapshots,
		Registrations: w.registrations,
		Directory:     w.directory,
		Deployment:    deployment,
	})
	pipeline := services.NewPipeline(services.PipelineConfig{
		Exporter:   w.exporter(),
		Publisher:  publisher,
		Reasoning:  w.reasoning,
		Products:   w.products,
		Lock:       mocks.NewMockDistributedLock(),
		SmokeQuery: "email automation",
	})
	w.report, w.publishErr = pipeline.Run(w.ctx, domain.PublishOptions{})
	return nil
}

func (w *world) theReasoningServiceRejectsUploads() error {
	w.reasoning.UploadFn = func(name string, data []byte) (*domain.ContentHandle, error) {
		return nil, errors.New("storage quota exceeded")
	}
	return nil
}

func (w *world) everyPublishStagePassed() error {
	if w.publishErr != nil {
		return fmt.Errorf("publish failed: %w", w.publishErr)
	}
	if w.report == nil || !w.report.Passed() {
		return fmt.Errorf("publish report did not pass: %+v", w.report)
	}
	return nil
}

func (w *world) theLastPublishFailedAtStage(stage string) error {
	if w.publishErr == nil {
		return errors.New("expected the publish to fail")
	}
	got, ok := domain.FailedStage(w.publishErr)
	if !ok || string(got) != stage {
		return fmt.Errorf("failed stage = %q, want %q (%v)", got, stage, w.publishErr)
	}
	if w.report != nil && w.report.Passed() {
		return errors.New("report passed although a stage failed")
	}
	return nil
}

func (w *world) theActiveAgentIs(agentID string) error {
	reg, err := w.registrations.Active(w.ctx, deployment)
	if err != nil {
		return err
	}
	if reg.AgentID != agentID {
		return fmt.Errorf("active agent = %q, want %q", reg.AgentID, agentID)
	}
	if cur := w.directory.Current(); cur == nil || cur.AgentID != agentID {
		return fmt.Errorf("directory serves %+v, want agent %q", cur, agentID)
	}
	return nil
}

func (w *world) registrationsExist(n int) error {
	history, err := w.registrations.History(w.ctx, deployment, 0)
	if err != nil {
		return err
	}
	if len(history) != n {
		return fmt.Errorf("registrations = %d, want %d", len(history), n)
	}
	if n >= 2 && history[0].SupersededID != history[1].ID {
		return fmt.Errorf("latest registration supersedes %q, want %q", history[0].SupersededID, history[1].ID)
	}
	return nil
}

// Result store steps

func (w *world) aResultStore(backend string, minutes int) error {
	ttl := time.Duration(minutes) * time.Minute
	switch backend {
	case "memory":
		w.memStore = mocks.NewMockResultStore(ttl)
		w.memStore.Now = func() time.Time { return time.Now().Add(w.offset) }
		w.store = w.memStore
	case "redis":
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("failed to start miniredis: %w", err)
		}
		w.mr = mr
		w.redisClient = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		w.store = redisadapter.NewResultStore(w.redisClient, ttl)
	default:
		return fmt.Errorf("unknown backend %q", backend)
	}
	return nil
}

func payloadFor(sessionID string, ids ...string) *domain.ResultPayload {
	p := &domain.ResultPayload{
		SessionID: sessionID,
		Query:     "email automation",
		Status:    domain.ResultCompleted,
		StoredAt:  time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
	}
	for i, id := range ids {
		p.Recommendations = append(p.Recommendations, domain.Recommendation{
			ID:              id,
			MatchPercentage: float64(90 - i),
			Rationale:       "Matches " + sessionID,
			ContextualTips:  []string{"tip for " + id},
			Benefits:        []string{},
		})
	}
	p.TotalFound = len(ids)
	return p
}

func (w *world) resultsAreStored(sessionID, ids string) error {
	return w.store.Put(w.ctx, sessionID, payloadFor(sessionID, splitIDs(ids)...))
}

func (w *world) readingSessionReturns(sessionID, ids string) error {
	got, found, err := w.store.Get(w.ctx, sessionID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("session %q not found", sessionID)
	}
	if diff := cmp.Diff(payloadFor(sessionID, splitIDs(ids)...), got); diff != "" {
		return fmt.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	return nil
}

func (w *world) minutesPass(minutes int) error {
	d := time.Duration(minutes) * time.Minute
	w.offset += d
	if w.mr != nil {
		w.mr.FastForward(d)
	}
	return nil
}

func (w *world) sessionHasNoResults(sessionID string) error {
	_, found, err := w.store.Get(w.ctx, sessionID)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("session %q still has results", sessionID)
	}
	return nil
}

func (w *world) sessionsStoreConcurrently(n int) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	errs := make([]error, 0)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessionID := fmt.Sprintf("s-%d", i)
			want := payloadFor(sessionID, fmt.Sprintf("p%d", i))
			for round := 0; round < 5; round++ {
				if err := w.store.Put(w.ctx, sessionID, want); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
					return
				}
				got, found, err := w.store.Get(w.ctx, sessionID)
				if err != nil || !found {
					mu.Lock()
					errs = append(errs, fmt.Errorf("session %s: found=%t err=%v", sessionID, found, err))
					mu.Unlock()
					return
				}
				if diff := cmp.Diff(want, got); diff != "" {
					mu.Lock()
					w.mismatches = append(w.mismatches, sessionID+": "+diff)
					mu.Unlock()
				}
			}
		}(i)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (w *world) everySessionReadItsOwnPayload() error {
	if len(w.mismatches) > 0 {
		return fmt.Errorf("%d cross-session reads:\n%s", len(w.mismatches), strings.Join(w.mismatches, "\n"))
	}
	return nil
}

// Search steps

func (w *world) anActiveAgent(agentID string) error {
	reg := &domain.AgentRegistration{
		ID:            "reg-" + agentID,
		Deployment:    deployment,
		AgentID:       agentID,
		ContentHandle: "file-1",
		Provider:      domain.ProviderOpenAI,
		CreatedAt:     time.Now().UTC(),
	}
	if err := w.registrations.Activate(w.ctx, reg); err != nil {
		return err
	}
	return w.directory.Refresh(w.ctx)
}

// answerLater runs the workflow's callback after delay, outside the dispatch call.
func (w *world) answerLater(delay time.Duration, build func(sessionID string) *domain.Callback) {
	w.trigger.DispatchFn = func(ctx context.Context, req *domain.DispatchRequest) error {
		w.bg.Add(1)
		go func(sessionID string) {
			defer w.bg.Done()
			time.Sleep(delay)
			if _, err := w.results.Accept(context.Background(), build(sessionID)); err != nil {
				w.mu.Lock()
				w.asyncErr = err
				w.mu.Unlock()
			}
		}(req.SessionID)
		return nil
	}
}

func (w *world) aWorkflowThatAnswers(ids string, ms int) error {
	w.answered = splitIDs(ids)
	w.answerLater(time.Duration(ms)*time.Millisecond, func(sessionID string) *domain.Callback {
		cb := &domain.Callback{SessionID: sessionID}
		for i, id := range w.answered {
			score := float64(95 - 10*i)
			cb.Recommendations = append(cb.Recommendations, domain.CallbackRecommendation{
				ID:              id,
				MatchPercentage: &score,
				Recommendation:  "Recommended for " + id,
			})
		}
		return cb
	})
	return nil
}

func (w *world) aWorkflowThatNeverAnswers() error {
	w.trigger.DispatchFn = nil
	return nil
}

func (w *world) aWorkflowThatFails(ms int, reason string) error {
	w.answerLater(time.Duration(ms)*time.Millisecond, func(sessionID string) *domain.Callback {
		return &domain.Callback{SessionID: sessionID, Error: reason}
	})
	return nil
}

func (w *world) iSearchFor(query string) error {
	resp, err := w.intake.Submit(w.ctx, domain.SubmitRequest{Query: query})
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	w.submitted = resp
	return nil
}

func (w *world) theGatewayReturnsASession() error {
	if w.submitted == nil || w.submitted.SessionID == "" {
		return errors.New("no session id returned")
	}
	if w.submitted.Preview.EstimatedCount < 0 {
		return fmt.Errorf("estimated count = %d, want >= 0", w.submitted.Preview.EstimatedCount)
	}
	if !w.submitted.Dispatched {
		return errors.New("query was not dispatched")
	}
	return nil
}

func (w *world) theQueryWasDispatchedTo(agentID string) error {
	reqs := w.trigger.Requests()
	if len(reqs) != 1 {
		return fmt.Errorf("dispatched %d requests, want 1", len(reqs))
	}
	if reqs[0].AgentID != agentID {
		return fmt.Errorf("dispatched to agent %q, want %q", reqs[0].AgentID, agentID)
	}
	if reqs[0].SessionID != w.submitted.SessionID {
		return fmt.Errorf("dispatched session %q, want %q", reqs[0].SessionID, w.submitted.SessionID)
	}
	return nil
}

func (w *world) iPoll(intervalMs, budgetMs int) error {
	resolver := poller.Resolver{
		Fetcher: poller.FetcherFunc(func(ctx context.Context, sessionID string) (*domain.ResultPayload, bool, error) {
			w.fetches.Add(1)
			return w.results.Get(ctx, sessionID)
		}),
		Interval: time.Duration(intervalMs) * time.Millisecond,
		Budget:   time.Duration(budgetMs) * time.Millisecond,
	}
	w.outcome = resolver.Run(w.ctx, w.submitted.SessionID)
	return nil
}

func (w *world) thePollCompletes() error {
	w.mu.Lock()
	asyncErr := w.asyncErr
	w.mu.Unlock()
	if asyncErr != nil {
		return fmt.Errorf("workflow callback failed: %w", asyncErr)
	}
	if w.outcome.State != domain.PollCompleted {
		return fmt.Errorf("poll state = %q (%v), want completed", w.outcome.State, w.outcome.Err)
	}
	if diff := cmp.Diff(w.answered, recommendationIDs(w.outcome.Payload)); diff != "" {
		return fmt.Errorf("polled recommendations differ from the stored ones (-want +got):\n%s", diff)
	}
	return nil
}

func (w *world) thePollFailsWith(kind string) error {
	if w.outcome.State != domain.PollFailed || w.outcome.Err == nil {
		return fmt.Errorf("poll state = %q, want error", w.outcome.State)
	}
	if string(w.outcome.Err.Kind) != kind {
		return fmt.Errorf("poll error kind = %q, want %q", w.outcome.Err.Kind, kind)
	}
	if kind == string(domain.PollTimeout) && !strings.HasPrefix(w.outcome.Err.UserMessage(), "Timeout") {
		return fmt.Errorf("unexpected timeout message %q", w.outcome.Err.UserMessage())
	}
	return nil
}

func (w *world) atMostFetchAttempts(n int) error {
	if got := int(w.fetches.Load()); got > n {
		return fmt.Errorf("fetch attempts = %d, want at most %d", got, n)
	}
	if w.outcome.Attempts > n {
		return fmt.Errorf("reported attempts = %d, want at most %d", w.outcome.Attempts, n)
	}
	return nil
}

func (w *world) thePollEndedBetween(minMs, maxMs int) error {
	lo := time.Duration(minMs) * time.Millisecond
	hi := time.Duration(maxMs) * time.Millisecond
	if w.outcome.Elapsed < lo || w.outcome.Elapsed > hi {
		return fmt.Errorf("poll ended after %s, want between %s and %s", w.outcome.Elapsed, lo, hi)
	}
	return nil
}

func (w *world) thePresenterShows(ids string) error {
	buf := new(bytes.Buffer)
	cli.NewPresenter(buf).Render(w.outcome.Payload)
	out := buf.String()

	last := -1
	for rank, id := range splitIDs(ids) {
		marker := fmt.Sprintf("[%d] %s", rank+1, id)
		at := strings.Index(out, marker)
		if at < 0 {
			return fmt.Errorf("presenter output lacks %q:\n%s", marker, out)
		}
		if at < last {
			return fmt.Errorf("%q rendered out of order:\n%s", marker, out)
		}
		last = at
	}
	return nil
}
