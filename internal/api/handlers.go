package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wrenware/scribe/internal/cmdlog"
	"github.com/wrenware/scribe/internal/insight"
	"github.com/wrenware/scribe/internal/llm"
	"github.com/wrenware/scribe/internal/scene"
	"github.com/wrenware/scribe/internal/task"
)

// timestampLayout names output artifacts written by generate/evaluate.
const timestampLayout = "20060102_150405"

type detectInput struct {
	Content string `json:"content"`
}

type generateInput struct {
	Content       string `json:"content"`
	Scene         string `json:"scene,omitempty"`
	Prompt        string `json:"prompt,omitempty"`
	PromptVersion string `json:"prompt_version,omitempty"`
	Model         string `json:"model,omitempty"`
	Save          bool   `json:"save,omitempty"`
}

type evaluateInput struct {
	Generated string `json:"generated"`
	Reference string `json:"reference"`
	Scene     string `json:"scene,omitempty"`
	PromptID  string `json:"prompt_id,omitempty"`
	Model     string `json:"model,omitempty"`
}

type optimizeInput struct {
	Prompt        string          `json:"prompt,omitempty"`
	Scene         string          `json:"scene,omitempty"`
	PromptVersion string          `json:"prompt_version,omitempty"`
	Model         string          `json:"model,omitempty"`
	Evaluation    *llm.Evaluation `json:"evaluation"`
	Save          bool            `json:"save,omitempty"`
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return validationErrorf("decode request body: %v", err)
	}
	return nil
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var in detectInput
	if err := decodeBody(r, &in); err != nil {
		s.failFor(w, err)
		return
	}
	data, err := s.runDetect(r.Context(), in)
	if err != nil {
		s.failFor(w, err)
		return
	}
	s.ok(w, data)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var in generateInput
	if err := decodeBody(r, &in); err != nil {
		s.failFor(w, err)
		return
	}
	data, err := s.runGenerate(r.Context(), in)
	if err != nil {
		s.failFor(w, err)
		return
	}
	s.ok(w, data)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var in evaluateInput
	if err := decodeBody(r, &in); err != nil {
		s.failFor(w, err)
		return
	}
	data, err := s.runEvaluate(r.Context(), in)
	if err != nil {
		s.failFor(w, err)
		return
	}
	s.ok(w, data)
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var in optimizeInput
	if err := decodeBody(r, &in); err != nil {
		s.failFor(w, err)
		return
	}
	data, err := s.runOptimize(r.Context(), in)
	if err != nil {
		s.failFor(w, err)
		return
	}
	s.ok(w, data)
}

// runDetect classifies a transcript. Pure and fast, but still logged so
// insight sees API traffic alongside CLI invocations.
func (s *Server) runDetect(ctx context.Context, in detectInput) (any, error) {
	rec := s.logs.Begin("detect", nil, map[string]any{"source": "api"})
	if in.Content == "" {
		err := validationErrorf("content is required")
		_ = rec.End(false, nil, err.Error())
		return nil, err
	}

	result := scene.Detect(in.Content)
	_ = rec.End(true, map[string]any{
		"scene":      result.SceneKey,
		"confidence": result.Confidence,
	}, "")
	return result, nil
}

// runGenerate produces a summary. The scene is detected from the
// content when not given; the prompt comes from the version store
// unless passed inline.
func (s *Server) runGenerate(ctx context.Context, in generateInput) (any, error) {
	model := in.Model
	if model == "" {
		model = s.defaultModel
	}
	rec := s.logs.Begin("generate", nil, map[string]any{
		"source": "api",
		"model":  model,
		"scene":  in.Scene,
	})

	data, err := s.generate(ctx, in, model)
	if err != nil {
		_ = rec.End(false, nil, err.Error())
		return nil, err
	}
	_ = rec.End(true, map[string]any{
		"scene":          data["scene"],
		"model":          model,
		"prompt_version": data["prompt_version"],
	}, "")
	return data, nil
}

func (s *Server) generate(ctx context.Context, in generateInput, model string) (map[string]any, error) {
	if in.Content == "" {
		return nil, validationErrorf("content is required")
	}

	sceneKey := in.Scene
	var detection *scene.Result
	if sceneKey == "" {
		d := scene.Detect(in.Content)
		detection = &d
		sceneKey = d.SceneKey
	} else if _, ok := scene.Lookup(sceneKey); !ok {
		return nil, validationErrorf("unknown scene %q", sceneKey)
	}

	prompt := in.Prompt
	promptVersion := ""
	if prompt == "" {
		p, err := s.prompts.Get(sceneKey, in.PromptVersion)
		if err != nil {
			return nil, err
		}
		prompt = p.Content
		promptVersion = p.Version
	}

	result, err := s.svc.Generate(ctx, in.Content, prompt, model)
	if err != nil {
		return nil, err
	}

	data := map[string]any{
		"content":        result.Content,
		"model":          result.Model,
		"scene":          sceneKey,
		"prompt_version": promptVersion,
	}
	if detection != nil {
		data["detection"] = detection
	}
	if in.Save {
		name := fmt.Sprintf("outputs/%s/%s.md", sceneKey, s.nowFunc().Format(timestampLayout))
		if err := s.files.Write(name, []byte(result.Content)); err != nil {
			return nil, fmt.Errorf("save output: %w", err)
		}
		data["output_path"] = name
	}
	return data, nil
}

// runEvaluate scores a generated summary against a reference. The
// scorecard is archived under evaluations/ and, when a scene is known,
// appended to the evaluation log for insight aggregation.
func (s *Server) runEvaluate(ctx context.Context, in evaluateInput) (any, error) {
	model := in.Model
	if model == "" {
		model = s.defaultModel
	}
	rec := s.logs.Begin("evaluate", nil, map[string]any{
		"source": "api",
		"model":  model,
		"scene":  in.Scene,
	})

	data, err := s.evaluate(ctx, in, model)
	if err != nil {
		_ = rec.End(false, nil, err.Error())
		return nil, err
	}
	ev := data["evaluation"].(*llm.Evaluation)
	_ = rec.End(true, map[string]any{
		"total": ev.Total,
		"grade": ev.Grade,
	}, "")
	return data, nil
}

func (s *Server) evaluate(ctx context.Context, in evaluateInput, model string) (map[string]any, error) {
	if in.Generated == "" || in.Reference == "" {
		return nil, validationErrorf("generated and reference are required")
	}

	ev, err := s.svc.Evaluate(ctx, in.Generated, in.Reference, model)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("evaluations/eval_%s.json", s.nowFunc().Format(timestampLayout))
	blob, err := json.MarshalIndent(map[string]any{
		"scene":      in.Scene,
		"prompt_id":  in.PromptID,
		"model":      model,
		"evaluation": ev,
		"timestamp":  s.nowFunc().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode evaluation: %w", err)
	}
	if err := s.files.Write(name, blob); err != nil {
		return nil, fmt.Errorf("save evaluation: %w", err)
	}

	if in.Scene != "" {
		if err := s.logs.SaveEvaluation(evaluationRecord(in, ev)); err != nil {
			return nil, fmt.Errorf("record evaluation: %w", err)
		}
	}

	return map[string]any{
		"evaluation": ev,
		"eval_path":  name,
	}, nil
}

// runOptimize asks a model to improve a prompt given its scorecard.
// With save set and a scene known, the suggestion is stored as the
// scene's next prompt version.
func (s *Server) runOptimize(ctx context.Context, in optimizeInput) (any, error) {
	model := in.Model
	if model == "" {
		model = s.defaultModel
	}
	rec := s.logs.Begin("optimize", nil, map[string]any{
		"source": "api",
		"model":  model,
		"scene":  in.Scene,
	})

	data, err := s.optimize(ctx, in, model)
	if err != nil {
		_ = rec.End(false, nil, err.Error())
		return nil, err
	}
	_ = rec.End(true, map[string]any{
		"model":         model,
		"saved_version": data["saved_version"],
	}, "")
	return data, nil
}

func (s *Server) optimize(ctx context.Context, in optimizeInput, model string) (map[string]any, error) {
	if in.Evaluation == nil {
		return nil, validationErrorf("evaluation is required")
	}

	prompt := in.Prompt
	sourceVersion := ""
	if prompt == "" {
		if in.Scene == "" {
			return nil, validationErrorf("prompt or scene is required")
		}
		p, err := s.prompts.Get(in.Scene, in.PromptVersion)
		if err != nil {
			return nil, err
		}
		prompt = p.Content
		sourceVersion = p.Version
	}

	result, err := s.svc.Optimize(ctx, prompt, in.Evaluation, model)
	if err != nil {
		return nil, err
	}

	data := map[string]any{
		"content": result.Content,
		"model":   result.Model,
	}
	if in.Save {
		if in.Scene == "" {
			return nil, validationErrorf("save requires a scene")
		}
		note := "optimized"
		if sourceVersion != "" {
			note = "optimized from " + sourceVersion
		}
		saved, err := s.prompts.Save(in.Scene, result.Content, note)
		if err != nil {
			return nil, fmt.Errorf("save optimized prompt: %w", err)
		}
		data["saved_version"] = saved.Version
	}
	return data, nil
}

func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	all := scene.All()
	s.ok(w, map[string]any{
		"scenes": all,
		"total":  len(all),
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	type modelView struct {
		Key         string `json:"key"`
		DisplayName string `json:"display_name"`
		Model       string `json:"model"`
		Configured  bool   `json:"configured"`
	}
	providers := s.svc.Models()
	views := make([]modelView, 0, len(providers))
	for _, p := range providers {
		views = append(views, modelView{
			Key:         p.Key,
			DisplayName: p.DisplayName,
			Model:       p.Model,
			Configured:  p.Configured(),
		})
	}
	s.ok(w, map[string]any{
		"models":  views,
		"default": s.defaultModel,
	})
}

func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request) {
	days := parseIntParam(r, "days", 7)
	report, err := insight.Build(s.logs, days)
	if err != nil {
		s.failFor(w, err)
		return
	}
	s.ok(w, report)
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("category") + "/" + r.PathValue("subtype")
	versions, err := s.prompts.List(key)
	if err != nil {
		s.failFor(w, err)
		return
	}
	current := ""
	if index, err := s.prompts.Index(); err == nil {
		current = index[key].CurrentVersion
	}
	s.ok(w, map[string]any{
		"scene":           key,
		"current_version": current,
		"versions":        versions,
	})
}

// evaluationRecord flattens a scorecard into the per-day evaluation
// log shape consumed by insight.
func evaluationRecord(in evaluateInput, ev *llm.Evaluation) cmdlog.EvaluationRecord {
	promptID := in.PromptID
	if promptID == "" {
		promptID = in.Scene
	}
	return cmdlog.EvaluationRecord{
		PromptID: promptID,
		Scene:    in.Scene,
		Scores: map[string]float64{
			"completeness":    float64(ev.Completeness),
			"detail":          float64(ev.Detail),
			"thoroughness":    float64(ev.Thoroughness),
			"word_count_diff": float64(ev.WordCountDiff),
			"total":           float64(ev.Total),
		},
		Summary: ev.Grade,
	}
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type  string          `json:"type"`
		Input json.RawMessage `json:"input"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.failFor(w, err)
		return
	}
	switch req.Type {
	case "detect", "generate", "evaluate", "optimize":
	default:
		s.failFor(w, validationErrorf("unknown task type %q", req.Type))
		return
	}

	var input map[string]any
	if len(req.Input) > 0 {
		if err := json.Unmarshal(req.Input, &input); err != nil {
			s.failFor(w, validationErrorf("decode task input: %v", err))
			return
		}
	}

	t, err := s.tasks.Create(req.Type, input)
	if err != nil {
		s.failFor(w, err)
		return
	}
	go s.execute(t.ID, req.Type, req.Input)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, Envelope{
		Code:   0,
		Msg:    "ok",
		TaskID: t.ID,
		Status: t.Status,
	}, s.logger)
}

// execute runs one async task to completion. Each task makes at most
// one outstanding LLM call at a time; failures land on the task record
// rather than anywhere a client would miss them.
func (s *Server) execute(id, taskType string, raw json.RawMessage) {
	ctx := context.Background()
	if err := s.tasks.Start(id); err != nil {
		s.logger.Warn("start task", "task", id, "error", err)
		return
	}

	decode := func(v any) error {
		if len(raw) == 0 {
			return validationErrorf("input is required")
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return validationErrorf("decode task input: %v", err)
		}
		return nil
	}

	var (
		data any
		err  error
	)
	switch taskType {
	case "detect":
		var in detectInput
		if err = decode(&in); err == nil {
			data, err = s.runDetect(ctx, in)
		}
	case "generate":
		var in generateInput
		if err = decode(&in); err == nil {
			_ = s.tasks.SetProgress(id, 10)
			data, err = s.runGenerate(ctx, in)
		}
	case "evaluate":
		var in evaluateInput
		if err = decode(&in); err == nil {
			_ = s.tasks.SetProgress(id, 10)
			data, err = s.runEvaluate(ctx, in)
		}
	case "optimize":
		var in optimizeInput
		if err = decode(&in); err == nil {
			_ = s.tasks.SetProgress(id, 10)
			data, err = s.runOptimize(ctx, in)
		}
	}

	if err != nil {
		if ferr := s.tasks.Fail(id, err.Error()); ferr != nil {
			s.logger.Warn("fail task", "task", id, "error", ferr)
		}
		return
	}
	if cerr := s.tasks.Complete(id, data); cerr != nil {
		s.logger.Warn("complete task", "task", id, "error", cerr)
	}
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(r.PathValue("id"))
	if err != nil {
		s.failFor(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, Envelope{
		Code:     0,
		Msg:      "ok",
		TaskID:   t.ID,
		Status:   t.Status,
		Progress: t.Progress,
		Data:     t.Output,
		Error:    t.Error,
	}, s.logger)
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	filter := task.ListFilter{
		Status: r.URL.Query().Get("status"),
		Type:   r.URL.Query().Get("type"),
		Limit:  parseIntParam(r, "limit", 50),
		Offset: parseIntParam(r, "offset", 0),
	}
	tasks := s.tasks.List(filter)
	s.ok(w, map[string]any{
		"tasks": tasks,
		"count": len(tasks),
	})
}
