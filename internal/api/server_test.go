package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wrenware/scribe/internal/cmdlog"
	"github.com/wrenware/scribe/internal/llm"
	"github.com/wrenware/scribe/internal/promptstore"
	"github.com/wrenware/scribe/internal/storage"
	"github.com/wrenware/scribe/internal/task"
)

type fakeService struct {
	mu         sync.Mutex
	lastPrompt string
	generateFn func(ctx context.Context, dialogue, prompt, model string) (*llm.GenerateResult, error)
	evaluateFn func(ctx context.Context, generated, reference, model string) (*llm.Evaluation, error)
	optimizeFn func(ctx context.Context, prompt string, eval *llm.Evaluation, model string) (*llm.GenerateResult, error)
}

func (f *fakeService) Generate(ctx context.Context, dialogue, prompt, model string) (*llm.GenerateResult, error) {
	f.mu.Lock()
	f.lastPrompt = prompt
	f.mu.Unlock()
	if f.generateFn != nil {
		return f.generateFn(ctx, dialogue, prompt, model)
	}
	return &llm.GenerateResult{Content: "## 会议纪要\n- 进展已同步", Model: "fake-v1"}, nil
}

func (f *fakeService) Evaluate(ctx context.Context, generated, reference, model string) (*llm.Evaluation, error) {
	if f.evaluateFn != nil {
		return f.evaluateFn(ctx, generated, reference, model)
	}
	return &llm.Evaluation{
		Completeness:  90,
		Detail:        85,
		Thoroughness:  88,
		WordCountDiff: 5,
		Total:         88,
		Grade:         "A",
		Strengths:     []string{"结构清晰"},
		Weaknesses:    []string{"缺少行动项"},
		Suggestions:   []string{"补充负责人"},
	}, nil
}

func (f *fakeService) Optimize(ctx context.Context, prompt string, eval *llm.Evaluation, model string) (*llm.GenerateResult, error) {
	f.mu.Lock()
	f.lastPrompt = prompt
	f.mu.Unlock()
	if f.optimizeFn != nil {
		return f.optimizeFn(ctx, prompt, eval, model)
	}
	return &llm.GenerateResult{Content: "改进后的提示词正文", Model: "fake-v1"}, nil
}

func (f *fakeService) Models() []llm.Provider {
	return []llm.Provider{
		{Key: "qwen-max", DisplayName: "通义千问 Max", EnvVar: "SCRIBE_TEST_KEY", Model: "qwen-max"},
	}
}

func (f *fakeService) promptSeen() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPrompt
}

type testEnv struct {
	server  *Server
	http    *httptest.Server
	svc     *fakeService
	logs    *cmdlog.Store
	prompts *promptstore.Store
	tasks   *task.Registry
	files   *storage.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	logs, err := cmdlog.NewStore(filepath.Join(dir, "logs"), logger)
	if err != nil {
		t.Fatalf("cmdlog store: %v", err)
	}
	prompts, err := promptstore.NewStore(filepath.Join(dir, "prompts"), logger)
	if err != nil {
		t.Fatalf("prompt store: %v", err)
	}
	files, err := storage.NewStore(dir, logger)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	svc := &fakeService{}
	registry := task.NewRegistry(logger)

	s := NewServer(Config{
		Service:      svc,
		DefaultModel: "qwen-max",
		Logs:         logs,
		Prompts:      prompts,
		Tasks:        registry,
		Files:        files,
		Logger:       logger,
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: s, http: ts, svc: svc, logs: logs, prompts: prompts, tasks: registry, files: files}
}

func postJSON(t *testing.T, url string, body any) (Envelope, int) {
	t.Helper()
	blob, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env, resp.StatusCode
}

func getJSON(t *testing.T, url string) (Envelope, int) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env, resp.StatusCode
}

func dataMap(t *testing.T, env Envelope) map[string]any {
	t.Helper()
	m, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("envelope data is %T, want object", env.Data)
	}
	return m
}

func waitForTask(t *testing.T, env *testEnv, id, wantStatus string) Envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got, code := getJSON(t, env.http.URL+"/api/v1/tasks/"+id)
		if code == http.StatusOK && got.Status == wantStatus {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s never reached status %s", id, wantStatus)
	return Envelope{}
}

const weeklyTranscript = "产品周会开始。本周需求进展顺利，排期已更新，下周计划继续推进。"

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.http.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
	if body["version"] == "" {
		t.Error("version missing from health response")
	}
}

func TestScenes_ListsTaxonomy(t *testing.T) {
	env := newTestEnv(t)

	got, code := getJSON(t, env.http.URL+"/api/v1/scenes")
	if code != http.StatusOK || got.Code != 0 {
		t.Fatalf("code = %d / envelope %d, want 200 / 0", code, got.Code)
	}
	data := dataMap(t, got)
	if total, _ := data["total"].(float64); total != 22 {
		t.Errorf("total = %v, want 22", data["total"])
	}
}

func TestDetect_Classifies(t *testing.T) {
	env := newTestEnv(t)

	got, code := postJSON(t, env.http.URL+"/api/v1/detect", map[string]any{"content": weeklyTranscript})
	if code != http.StatusOK || got.Code != 0 {
		t.Fatalf("code = %d / envelope %d, want 200 / 0", code, got.Code)
	}
	data := dataMap(t, got)
	if data["scene"] != "product/weekly" {
		t.Errorf("scene = %v, want product/weekly", data["scene"])
	}
}

func TestDetect_MissingContent(t *testing.T) {
	env := newTestEnv(t)

	got, code := postJSON(t, env.http.URL+"/api/v1/detect", map[string]any{})
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if got.Code != http.StatusBadRequest {
		t.Errorf("envelope code = %d, want 400", got.Code)
	}
	if !strings.Contains(got.Error, "content is required") {
		t.Errorf("error = %q, want mention of missing content", got.Error)
	}
}

func TestGenerate_UsesStoredPrompt(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.prompts.Save("product/weekly", "按要点总结周会内容", ""); err != nil {
		t.Fatalf("seed prompt: %v", err)
	}

	got, code := postJSON(t, env.http.URL+"/api/v1/generate", map[string]any{
		"content": weeklyTranscript,
		"scene":   "product/weekly",
	})
	if code != http.StatusOK || got.Code != 0 {
		t.Fatalf("code = %d / envelope %d: %s", code, got.Code, got.Error)
	}
	data := dataMap(t, got)
	if data["content"] == "" {
		t.Error("content missing from response")
	}
	if data["prompt_version"] != "v1" {
		t.Errorf("prompt_version = %v, want v1", data["prompt_version"])
	}
	if seen := env.svc.promptSeen(); seen != "按要点总结周会内容" {
		t.Errorf("gateway saw prompt %q, want the stored version", seen)
	}

	entries, err := env.logs.Query(cmdlog.Filter{Command: "generate"})
	if err != nil {
		t.Fatalf("query log: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != cmdlog.StatusSuccess {
		t.Errorf("generate log entries = %+v, want one success", entries)
	}
}

func TestGenerate_DetectsSceneWhenOmitted(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.prompts.Save("product/weekly", "周会提示词", ""); err != nil {
		t.Fatalf("seed prompt: %v", err)
	}

	got, code := postJSON(t, env.http.URL+"/api/v1/generate", map[string]any{"content": weeklyTranscript})
	if code != http.StatusOK || got.Code != 0 {
		t.Fatalf("code = %d / envelope %d: %s", code, got.Code, got.Error)
	}
	data := dataMap(t, got)
	if data["scene"] != "product/weekly" {
		t.Errorf("scene = %v, want product/weekly", data["scene"])
	}
	if _, ok := data["detection"]; !ok {
		t.Error("detection result missing when scene was auto-detected")
	}
}

func TestGenerate_InlinePrompt(t *testing.T) {
	env := newTestEnv(t)

	got, code := postJSON(t, env.http.URL+"/api/v1/generate", map[string]any{
		"content": weeklyTranscript,
		"scene":   "product/weekly",
		"prompt":  "直接给出三条要点",
	})
	if code != http.StatusOK || got.Code != 0 {
		t.Fatalf("code = %d / envelope %d: %s", code, got.Code, got.Error)
	}
	if seen := env.svc.promptSeen(); seen != "直接给出三条要点" {
		t.Errorf("gateway saw prompt %q, want the inline prompt", seen)
	}
}

func TestGenerate_UnknownScene(t *testing.T) {
	env := newTestEnv(t)

	got, code := postJSON(t, env.http.URL+"/api/v1/generate", map[string]any{
		"content": weeklyTranscript,
		"scene":   "nope/nothing",
	})
	if code != http.StatusBadRequest || got.Code != http.StatusBadRequest {
		t.Fatalf("code = %d / envelope %d, want 400", code, got.Code)
	}
}

func TestGenerate_PromptNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, code := postJSON(t, env.http.URL+"/api/v1/generate", map[string]any{
		"content": weeklyTranscript,
		"scene":   "product/weekly",
	})
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for empty prompt store", code)
	}
}

func TestGenerate_SaveWritesOutput(t *testing.T) {
	env := newTestEnv(t)

	got, code := postJSON(t, env.http.URL+"/api/v1/generate", map[string]any{
		"content": weeklyTranscript,
		"scene":   "product/weekly",
		"prompt":  "提示词",
		"save":    true,
	})
	if code != http.StatusOK {
		t.Fatalf("status = %d: %s", code, got.Error)
	}
	path, _ := dataMap(t, got)["output_path"].(string)
	if !strings.HasPrefix(path, "outputs/product/weekly/") {
		t.Fatalf("output_path = %q, want under outputs/product/weekly/", path)
	}
	exists, err := env.files.Exists(path)
	if err != nil || !exists {
		t.Errorf("output file %q missing (exists=%v err=%v)", path, exists, err)
	}
}

func TestEvaluate_RecordsAndArchives(t *testing.T) {
	env := newTestEnv(t)

	got, code := postJSON(t, env.http.URL+"/api/v1/evaluate", map[string]any{
		"generated": "生成的摘要",
		"reference": "参考摘要",
		"scene":     "product/weekly",
		"prompt_id": "product/weekly@v3",
	})
	if code != http.StatusOK || got.Code != 0 {
		t.Fatalf("code = %d / envelope %d: %s", code, got.Code, got.Error)
	}
	data := dataMap(t, got)

	path, _ := data["eval_path"].(string)
	if !strings.HasPrefix(path, "evaluations/eval_") {
		t.Fatalf("eval_path = %q, want under evaluations/", path)
	}
	if exists, err := env.files.Exists(path); err != nil || !exists {
		t.Errorf("evaluation archive %q missing (exists=%v err=%v)", path, exists, err)
	}

	recs, err := env.logs.QueryEvaluations(1)
	if err != nil {
		t.Fatalf("query evaluations: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("evaluation records = %d, want 1", len(recs))
	}
	if recs[0].PromptID != "product/weekly@v3" || recs[0].Scene != "product/weekly" {
		t.Errorf("record = %+v, want promptId and scene preserved", recs[0])
	}
	if recs[0].Scores["total"] != 88 || recs[0].Summary != "A" {
		t.Errorf("record scores = %+v summary %q, want total 88 grade A", recs[0].Scores, recs[0].Summary)
	}
}

func TestEvaluate_WithoutSceneSkipsRecord(t *testing.T) {
	env := newTestEnv(t)

	_, code := postJSON(t, env.http.URL+"/api/v1/evaluate", map[string]any{
		"generated": "生成的摘要",
		"reference": "参考摘要",
	})
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	recs, err := env.logs.QueryEvaluations(1)
	if err != nil {
		t.Fatalf("query evaluations: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("records = %d, want none without a scene", len(recs))
	}
}

func TestEvaluate_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	_, code := postJSON(t, env.http.URL+"/api/v1/evaluate", map[string]any{"generated": "只有一半"})
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
}

func TestOptimize_SavesNewVersion(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.prompts.Save("product/weekly", "旧提示词", ""); err != nil {
		t.Fatalf("seed prompt: %v", err)
	}

	got, code := postJSON(t, env.http.URL+"/api/v1/optimize", map[string]any{
		"scene": "product/weekly",
		"save":  true,
		"evaluation": map[string]any{
			"total":       72,
			"grade":       "B",
			"weaknesses":  []string{"缺少行动项"},
			"suggestions": []string{"增加责任人字段"},
		},
	})
	if code != http.StatusOK || got.Code != 0 {
		t.Fatalf("code = %d / envelope %d: %s", code, got.Code, got.Error)
	}
	data := dataMap(t, got)
	if data["saved_version"] != "v2" {
		t.Fatalf("saved_version = %v, want v2", data["saved_version"])
	}

	p, err := env.prompts.Get("product/weekly", "v2")
	if err != nil {
		t.Fatalf("get saved version: %v", err)
	}
	if p.Content != "改进后的提示词正文" {
		t.Errorf("saved content = %q, want optimizer output", p.Content)
	}
	if seen := env.svc.promptSeen(); seen != "旧提示词" {
		t.Errorf("optimizer saw prompt %q, want the stored v1", seen)
	}
}

func TestOptimize_RequiresEvaluation(t *testing.T) {
	env := newTestEnv(t)

	_, code := postJSON(t, env.http.URL+"/api/v1/optimize", map[string]any{"prompt": "提示词"})
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
}

func TestUpstreamErrorMapsToBadGateway(t *testing.T) {
	env := newTestEnv(t)
	env.svc.generateFn = func(context.Context, string, string, string) (*llm.GenerateResult, error) {
		return nil, fmt.Errorf("%w: status 429", llm.ErrUpstream)
	}

	got, code := postJSON(t, env.http.URL+"/api/v1/generate", map[string]any{
		"content": weeklyTranscript,
		"prompt":  "提示词",
		"scene":   "product/weekly",
	})
	if code != http.StatusBadGateway || got.Code != http.StatusBadGateway {
		t.Fatalf("code = %d / envelope %d, want 502", code, got.Code)
	}
	if !strings.Contains(got.Error, "429") {
		t.Errorf("error = %q, want upstream status surfaced", got.Error)
	}
}

func TestTaskLifecycle_Async(t *testing.T) {
	env := newTestEnv(t)

	created, code := postJSON(t, env.http.URL+"/api/v1/tasks", map[string]any{
		"type":  "detect",
		"input": map[string]any{"content": weeklyTranscript},
	})
	if code != http.StatusOK || created.Code != 0 {
		t.Fatalf("code = %d / envelope %d: %s", code, created.Code, created.Error)
	}
	if created.TaskID == "" || created.Status != task.StatusPending {
		t.Fatalf("created = %+v, want pending task with id", created)
	}

	done := waitForTask(t, env, created.TaskID, task.StatusSuccess)
	if done.Progress != 100 {
		t.Errorf("progress = %d, want 100", done.Progress)
	}
	data := dataMap(t, done)
	if data["scene"] != "product/weekly" {
		t.Errorf("task output scene = %v, want product/weekly", data["scene"])
	}
}

func TestTaskCreate_UnknownType(t *testing.T) {
	env := newTestEnv(t)

	got, code := postJSON(t, env.http.URL+"/api/v1/tasks", map[string]any{"type": "train"})
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if !strings.Contains(got.Error, "train") {
		t.Errorf("error = %q, want the rejected type named", got.Error)
	}
}

func TestTask_BadInputFails(t *testing.T) {
	env := newTestEnv(t)

	created, _ := postJSON(t, env.http.URL+"/api/v1/tasks", map[string]any{
		"type":  "generate",
		"input": map[string]any{"scene": "product/weekly"},
	})
	done := waitForTask(t, env, created.TaskID, task.StatusFailed)
	if !strings.Contains(done.Error, "content is required") {
		t.Errorf("task error = %q, want validation message", done.Error)
	}
}

func TestTaskList_FilterByType(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 2; i++ {
		if _, err := env.tasks.Create("detect", nil); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := env.tasks.Create("generate", nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, code := getJSON(t, env.http.URL+"/api/v1/tasks?type=detect")
	if code != http.StatusOK || got.Code != 0 {
		t.Fatalf("code = %d / envelope %d", code, got.Code)
	}
	data := dataMap(t, got)
	if count, _ := data["count"].(float64); count != 2 {
		t.Errorf("count = %v, want 2", data["count"])
	}
}

func TestVersions_ReportsCurrent(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.prompts.Save("product/weekly", "第一版", ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := env.prompts.Save("product/weekly", "第二版", "tightened"); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, code := getJSON(t, env.http.URL+"/api/v1/versions/product/weekly")
	if code != http.StatusOK || got.Code != 0 {
		t.Fatalf("code = %d / envelope %d: %s", code, got.Code, got.Error)
	}
	data := dataMap(t, got)
	if data["current_version"] != "v2" {
		t.Errorf("current_version = %v, want v2", data["current_version"])
	}
	versions, _ := data["versions"].([]any)
	if len(versions) != 2 {
		t.Errorf("versions = %d, want 2", len(versions))
	}
}

func TestVersions_MissingScene(t *testing.T) {
	env := newTestEnv(t)

	_, code := getJSON(t, env.http.URL+"/api/v1/versions/product/weekly")
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
}

func TestModels_IncludesDefault(t *testing.T) {
	env := newTestEnv(t)

	got, code := getJSON(t, env.http.URL+"/api/v1/models")
	if code != http.StatusOK || got.Code != 0 {
		t.Fatalf("code = %d / envelope %d", code, got.Code)
	}
	data := dataMap(t, got)
	if data["default"] != "qwen-max" {
		t.Errorf("default = %v, want qwen-max", data["default"])
	}
	models, _ := data["models"].([]any)
	if len(models) != 1 {
		t.Fatalf("models = %d, want 1", len(models))
	}
}

func TestInsight_AggregatesLoggedCommands(t *testing.T) {
	env := newTestEnv(t)
	if _, code := postJSON(t, env.http.URL+"/api/v1/detect", map[string]any{"content": weeklyTranscript}); code != http.StatusOK {
		t.Fatalf("seed detect failed with %d", code)
	}

	got, code := getJSON(t, env.http.URL+"/api/v1/insight?days=7")
	if code != http.StatusOK || got.Code != 0 {
		t.Fatalf("code = %d / envelope %d: %s", code, got.Code, got.Error)
	}
	data := dataMap(t, got)
	overall, _ := data["overall"].(map[string]any)
	if total, _ := overall["total_commands"].(float64); total < 1 {
		t.Errorf("total_commands = %v, want at least 1", overall["total_commands"])
	}
}

func TestTaskWatch_StreamsCompletion(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/api/v1/tasks/watch"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Wait for the handler's subscription before publishing anything.
	deadline := time.Now().Add(2 * time.Second)
	for env.tasks.Bus().SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watch handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	created, err := env.tasks.Create("detect", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.tasks.Start(created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := env.tasks.Complete(created.ID, map[string]any{"scene": "general/other"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	for {
		var ev task.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if ev.Kind != task.KindCompleted {
			continue
		}
		if ev.Task.ID != created.ID {
			t.Errorf("event task = %s, want %s", ev.Task.ID, created.ID)
		}
		if ev.Task.Status != task.StatusSuccess {
			t.Errorf("event status = %s, want success", ev.Task.Status)
		}
		return
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", validationErrorf("bad"), http.StatusBadRequest},
		{"configuration", fmt.Errorf("%w: no key", llm.ErrConfiguration), http.StatusBadRequest},
		{"timeout", fmt.Errorf("%w: deadline", llm.ErrTimeout), http.StatusGatewayTimeout},
		{"upstream", fmt.Errorf("%w: 500", llm.ErrUpstream), http.StatusBadGateway},
		{"protocol", fmt.Errorf("%w: bad json", llm.ErrProtocol), http.StatusBadGateway},
		{"prompt missing", fmt.Errorf("%w: nope", promptstore.ErrNotFound), http.StatusNotFound},
		{"task missing", fmt.Errorf("%w: nope", task.ErrNotFound), http.StatusNotFound},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusForError(tc.err); got != tc.want {
				t.Errorf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
