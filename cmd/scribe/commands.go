package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wrenware/scribe/internal/cmdlog"
	"github.com/wrenware/scribe/internal/insight"
	"github.com/wrenware/scribe/internal/llm"
	"github.com/wrenware/scribe/internal/scene"
)

// timestampLayout names generated artifacts. Lexical order equals
// chronological order, so directory listings read back as history.
const timestampLayout = "20060102_150405"

// parseFlags splits verb arguments into flag values and positionals.
// valueFlags consume the next argument (or the text after "=");
// boolFlags are present-or-absent. Unknown flags are an error so that
// typos fail loudly instead of being swallowed as positionals.
func parseFlags(args []string, valueFlags, boolFlags []string) (map[string]string, []string, error) {
	takesValue := make(map[string]bool, len(valueFlags))
	for _, f := range valueFlags {
		takesValue[f] = true
	}
	isBool := make(map[string]bool, len(boolFlags))
	for _, f := range boolFlags {
		isBool[f] = true
	}

	flags := make(map[string]string)
	var positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			positional = append(positional, arg)
			continue
		}
		name := strings.TrimLeft(arg, "-")
		value := ""
		hasValue := false
		if eq := strings.Index(name, "="); eq >= 0 {
			name, value = name[:eq], name[eq+1:]
			hasValue = true
		}
		switch {
		case takesValue[name]:
			if !hasValue {
				if i+1 >= len(args) {
					return nil, nil, fmt.Errorf("flag -%s requires a value", name)
				}
				value = args[i+1]
				i++
			}
			flags[name] = value
		case isBool[name]:
			flags[name] = "true"
		default:
			return nil, nil, fmt.Errorf("unknown flag: %s", arg)
		}
	}
	return flags, positional, nil
}

// readInput returns the transcript text for a verb: the file named by
// -f when present, otherwise the positional arguments joined.
func readInput(flags map[string]string, positional []string) (string, error) {
	if path := flags["f"]; path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return string(raw), nil
	}
	return strings.Join(positional, " "), nil
}

func (a *app) modelOr(flagged string) string {
	if flagged != "" {
		return flagged
	}
	return a.cfg.LLM.DefaultModel
}

// printJSON renders v as indented JSON on stdout. Used by every verb
// when -o json is in effect.
func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) runDetect(args []string) (map[string]any, error) {
	flags, positional, err := parseFlags(args, []string{"f"}, nil)
	if err != nil {
		return nil, err
	}
	content, err := readInput(flags, positional)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("no input: pass transcript text or -f <file>")
	}

	res := scene.Detect(content)
	if a.output == "json" {
		if err := a.printJSON(res); err != nil {
			return nil, err
		}
	} else {
		sc, _ := scene.Lookup(res.SceneKey)
		fmt.Fprintf(a.stdout, "Scene:      %s (%s)\n", sc.Name, res.SceneKey)
		fmt.Fprintf(a.stdout, "Confidence: %.0f%%\n", res.Confidence*100)
		if len(res.Keywords) > 0 {
			fmt.Fprintf(a.stdout, "Keywords:   %s\n", strings.Join(res.Keywords, ", "))
		}
	}
	return map[string]any{"scene": res.SceneKey, "confidence": res.Confidence}, nil
}

func (a *app) runGenerate(ctx context.Context, args []string) (map[string]any, error) {
	flags, positional, err := parseFlags(args,
		[]string{"f", "scene", "prompt-version", "model", "out"}, nil)
	if err != nil {
		return nil, err
	}
	content, err := readInput(flags, positional)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("no transcript: pass -f <file> or transcript text")
	}

	sceneKey := flags["scene"]
	var detection *scene.Result
	if sceneKey == "" {
		res := scene.Detect(content)
		detection = &res
		sceneKey = res.SceneKey
		a.logger.Info("scene detected", "scene", sceneKey, "confidence", res.Confidence)
	} else if _, ok := scene.Lookup(sceneKey); !ok {
		return nil, fmt.Errorf("unknown scene: %s", sceneKey)
	}

	prompt, err := a.prompts.Get(sceneKey, flags["prompt-version"])
	if err != nil {
		return nil, err
	}

	model := a.modelOr(flags["model"])
	result, err := a.svc.Generate(ctx, content, prompt.Content, model)
	if err != nil {
		return nil, err
	}

	outPath := flags["out"]
	if outPath != "" {
		if err := os.WriteFile(outPath, []byte(result.Content), 0o644); err != nil {
			return nil, fmt.Errorf("write output: %w", err)
		}
	} else {
		outPath = fmt.Sprintf("outputs/%s/%s.md", sceneKey, time.Now().Format(timestampLayout))
		if err := a.files.Write(outPath, []byte(result.Content)); err != nil {
			return nil, fmt.Errorf("write output: %w", err)
		}
	}

	if a.output == "json" {
		out := map[string]any{
			"content":        result.Content,
			"model":          result.Model,
			"scene":          sceneKey,
			"prompt_version": prompt.Version,
			"output_path":    outPath,
		}
		if detection != nil {
			out["detection"] = detection
		}
		if err := a.printJSON(out); err != nil {
			return nil, err
		}
	} else {
		fmt.Fprintln(a.stdout, result.Content)
		fmt.Fprintln(a.stdout)
		fmt.Fprintf(a.stdout, "Saved to: %s\n", outPath)
	}

	return map[string]any{
		"scene":          sceneKey,
		"model":          result.Model,
		"prompt_version": prompt.Version,
		"output_path":    outPath,
	}, nil
}

func (a *app) runEvaluate(ctx context.Context, args []string) (map[string]any, error) {
	flags, _, err := parseFlags(args,
		[]string{"generated", "reference", "scene", "prompt-id", "model"}, nil)
	if err != nil {
		return nil, err
	}
	if flags["generated"] == "" || flags["reference"] == "" {
		return nil, fmt.Errorf("evaluate requires -generated <file> and -reference <file>")
	}
	generated, err := os.ReadFile(flags["generated"])
	if err != nil {
		return nil, fmt.Errorf("read generated file: %w", err)
	}
	reference, err := os.ReadFile(flags["reference"])
	if err != nil {
		return nil, fmt.Errorf("read reference file: %w", err)
	}
	sceneKey := flags["scene"]
	if sceneKey != "" {
		if _, ok := scene.Lookup(sceneKey); !ok {
			return nil, fmt.Errorf("unknown scene: %s", sceneKey)
		}
	}

	model := a.modelOr(flags["model"])
	ev, err := a.svc.Evaluate(ctx, string(generated), string(reference), model)
	if err != nil {
		return nil, err
	}

	evalPath := fmt.Sprintf("evaluations/eval_%s.json", time.Now().Format(timestampLayout))
	blob, err := json.MarshalIndent(map[string]any{
		"scene":      sceneKey,
		"prompt_id":  flags["prompt-id"],
		"model":      model,
		"evaluation": ev,
		"timestamp":  time.Now().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode evaluation: %w", err)
	}
	if err := a.files.Write(evalPath, blob); err != nil {
		return nil, fmt.Errorf("save evaluation: %w", err)
	}

	// The per-scene evaluation stream feeds insight's scene scores, so
	// only scene-tagged runs are recorded there. The archive above keeps
	// the full scorecard either way.
	if sceneKey != "" {
		promptID := flags["prompt-id"]
		if promptID == "" {
			promptID = sceneKey
		}
		rec := cmdlog.EvaluationRecord{
			PromptID: promptID,
			Scene:    sceneKey,
			Scores: map[string]float64{
				"completeness":    float64(ev.Completeness),
				"detail":          float64(ev.Detail),
				"thoroughness":    float64(ev.Thoroughness),
				"word_count_diff": float64(ev.WordCountDiff),
				"total":           float64(ev.Total),
			},
			Summary: ev.Grade,
		}
		if err := a.logs.SaveEvaluation(rec); err != nil {
			return nil, fmt.Errorf("record evaluation: %w", err)
		}
	}

	if a.output == "json" {
		if err := a.printJSON(map[string]any{"evaluation": ev, "eval_path": evalPath}); err != nil {
			return nil, err
		}
	} else {
		a.printEvaluation(ev)
		fmt.Fprintf(a.stdout, "\nArchived: %s\n", evalPath)
	}

	return map[string]any{
		"total":     ev.Total,
		"grade":     ev.Grade,
		"scene":     sceneKey,
		"model":     model,
		"eval_path": evalPath,
	}, nil
}

func (a *app) printEvaluation(ev *llm.Evaluation) {
	fmt.Fprintf(a.stdout, "Total: %d (%s)\n", ev.Total, ev.Grade)
	fmt.Fprintf(a.stdout, "  completeness:    %d\n", ev.Completeness)
	fmt.Fprintf(a.stdout, "  detail:          %d\n", ev.Detail)
	fmt.Fprintf(a.stdout, "  thoroughness:    %d\n", ev.Thoroughness)
	fmt.Fprintf(a.stdout, "  word_count_diff: %d\n", ev.WordCountDiff)
	printList := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(a.stdout, "%s:\n", label)
		for _, item := range items {
			fmt.Fprintf(a.stdout, "  - %s\n", item)
		}
	}
	printList("Strengths", ev.Strengths)
	printList("Weaknesses", ev.Weaknesses)
	printList("Suggestions", ev.Suggestions)
}

// parseEvaluationFile loads a scorecard from disk for optimize. Both
// shapes written by evaluate are accepted: the archive wrapper with an
// "evaluation" key, and a bare Evaluation object. The wrapper is probed
// first because a wrapper decoded as a bare Evaluation silently yields
// all-zero scores.
func parseEvaluationFile(path string) (*llm.Evaluation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evaluation file: %w", err)
	}
	var wrapper struct {
		Evaluation *llm.Evaluation `json:"evaluation"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Evaluation != nil {
		return wrapper.Evaluation, nil
	}
	var ev llm.Evaluation
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("parse evaluation file %s: %w", path, err)
	}
	return &ev, nil
}

func (a *app) runOptimize(ctx context.Context, args []string) (map[string]any, error) {
	flags, _, err := parseFlags(args,
		[]string{"eval", "scene", "prompt-version", "prompt-file", "model"},
		[]string{"save"})
	if err != nil {
		return nil, err
	}
	if flags["eval"] == "" {
		return nil, fmt.Errorf("optimize requires -eval <file> (an evaluate result)")
	}
	ev, err := parseEvaluationFile(flags["eval"])
	if err != nil {
		return nil, err
	}

	sceneKey := flags["scene"]
	var promptContent string
	var fromVersion string
	switch {
	case flags["prompt-file"] != "":
		raw, err := os.ReadFile(flags["prompt-file"])
		if err != nil {
			return nil, fmt.Errorf("read prompt file: %w", err)
		}
		promptContent = string(raw)
	case sceneKey != "":
		if _, ok := scene.Lookup(sceneKey); !ok {
			return nil, fmt.Errorf("unknown scene: %s", sceneKey)
		}
		prompt, err := a.prompts.Get(sceneKey, flags["prompt-version"])
		if err != nil {
			return nil, err
		}
		promptContent = prompt.Content
		fromVersion = prompt.Version
	default:
		return nil, fmt.Errorf("optimize requires -scene <key> or -prompt-file <file>")
	}

	model := a.modelOr(flags["model"])
	result, err := a.svc.Optimize(ctx, promptContent, ev, model)
	if err != nil {
		return nil, err
	}

	data := map[string]any{"scene": sceneKey, "model": result.Model}
	var savedVersion string
	if flags["save"] != "" {
		if sceneKey == "" {
			return nil, fmt.Errorf("-save requires -scene so the new version has a home")
		}
		note := "optimized"
		if fromVersion != "" {
			note = fmt.Sprintf("optimized from %s", fromVersion)
		}
		saved, err := a.prompts.Save(sceneKey, result.Content, note)
		if err != nil {
			return nil, fmt.Errorf("save optimized prompt: %w", err)
		}
		savedVersion = saved.Version
		data["saved_version"] = saved.Version
	}

	if a.output == "json" {
		out := map[string]any{
			"content": result.Content,
			"model":   result.Model,
			"scene":   sceneKey,
		}
		if savedVersion != "" {
			out["saved_version"] = savedVersion
		}
		if err := a.printJSON(out); err != nil {
			return nil, err
		}
	} else {
		fmt.Fprintln(a.stdout, result.Content)
		if savedVersion != "" {
			fmt.Fprintf(a.stdout, "\nSaved as %s\n", savedVersion)
		}
	}
	return data, nil
}

func (a *app) runScenes() (map[string]any, error) {
	scenes := scene.All()
	if a.output == "json" {
		if err := a.printJSON(map[string]any{"scenes": scenes, "total": len(scenes)}); err != nil {
			return nil, err
		}
		return map[string]any{"total": len(scenes)}, nil
	}

	byCategory := make(map[string][]scene.Scene)
	for _, sc := range scenes {
		byCategory[sc.Category] = append(byCategory[sc.Category], sc)
	}
	for _, category := range scene.Categories() {
		fmt.Fprintf(a.stdout, "%s\n", category)
		for _, sc := range byCategory[category] {
			fmt.Fprintf(a.stdout, "  %-20s %s\n", sc.Key, sc.Name)
		}
	}
	fmt.Fprintf(a.stdout, "\n%d scenes\n", len(scenes))
	return map[string]any{"total": len(scenes)}, nil
}

func (a *app) runVersion(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("version requires a subcommand: list, save, or download")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		return a.runVersionList(rest)
	case "save":
		return a.runVersionSave(rest)
	case "download":
		return a.runVersionDownload(rest)
	default:
		return nil, fmt.Errorf("unknown version subcommand: %s", sub)
	}
}

func (a *app) runVersionList(args []string) (map[string]any, error) {
	_, positional, err := parseFlags(args, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(positional) != 1 {
		return nil, fmt.Errorf("usage: version list <scene>")
	}
	sceneKey := positional[0]

	versions, err := a.prompts.List(sceneKey)
	if err != nil {
		return nil, err
	}
	current := ""
	if index, err := a.prompts.Index(); err == nil {
		current = index[sceneKey].CurrentVersion
	}

	if a.output == "json" {
		if err := a.printJSON(map[string]any{
			"scene":           sceneKey,
			"current_version": current,
			"versions":        versions,
		}); err != nil {
			return nil, err
		}
		return map[string]any{"scene": sceneKey, "count": len(versions)}, nil
	}

	fmt.Fprintf(a.stdout, "Versions for %s", sceneKey)
	if current != "" {
		fmt.Fprintf(a.stdout, " (current: %s)", current)
	}
	fmt.Fprintln(a.stdout)
	for _, v := range versions {
		note := v.Note
		if note == "" {
			note = "-"
		}
		fmt.Fprintf(a.stdout, "  %-6s %s  %s\n", v.ID, v.CreatedAt.Local().Format("2006-01-02 15:04"), note)
	}
	return map[string]any{"scene": sceneKey, "count": len(versions)}, nil
}

func (a *app) runVersionSave(args []string) (map[string]any, error) {
	flags, positional, err := parseFlags(args, []string{"f", "note"}, nil)
	if err != nil {
		return nil, err
	}
	if len(positional) != 1 || flags["f"] == "" {
		return nil, fmt.Errorf("usage: version save <scene> -f <file> [-note text]")
	}
	content, err := os.ReadFile(flags["f"])
	if err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}

	saved, err := a.prompts.Save(positional[0], string(content), flags["note"])
	if err != nil {
		return nil, err
	}
	if a.output == "json" {
		if err := a.printJSON(saved); err != nil {
			return nil, err
		}
	} else {
		fmt.Fprintf(a.stdout, "Saved %s %s -> %s\n", saved.Scene, saved.Version, saved.Path)
	}
	return map[string]any{"scene": saved.Scene, "version": saved.Version}, nil
}

func (a *app) runVersionDownload(args []string) (map[string]any, error) {
	flags, positional, err := parseFlags(args, []string{"out"}, nil)
	if err != nil {
		return nil, err
	}
	if len(positional) < 1 || len(positional) > 2 || flags["out"] == "" {
		return nil, fmt.Errorf("usage: version download <scene> [version] -out <path>")
	}
	sceneKey := positional[0]
	version := ""
	if len(positional) == 2 {
		version = positional[1]
	}

	prompt, err := a.prompts.Download(sceneKey, version, flags["out"])
	if err != nil {
		return nil, err
	}
	if a.output == "json" {
		if err := a.printJSON(map[string]any{
			"scene":   prompt.Scene,
			"version": prompt.Version,
			"path":    flags["out"],
		}); err != nil {
			return nil, err
		}
	} else {
		fmt.Fprintf(a.stdout, "Downloaded %s %s -> %s\n", prompt.Scene, prompt.Version, flags["out"])
	}
	return map[string]any{"scene": prompt.Scene, "version": prompt.Version}, nil
}

func (a *app) runInsight(args []string) (map[string]any, error) {
	flags, _, err := parseFlags(args, []string{"days"}, nil)
	if err != nil {
		return nil, err
	}
	days := 7
	if flags["days"] != "" {
		days, err = strconv.Atoi(flags["days"])
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("invalid -days value: %s", flags["days"])
		}
	}

	report, err := insight.Build(a.logs, days)
	if err != nil {
		return nil, err
	}

	if a.output == "json" {
		if err := a.printJSON(report); err != nil {
			return nil, err
		}
		return map[string]any{"days": days, "total_commands": report.Overall.TotalCommands}, nil
	}

	fmt.Fprintf(a.stdout, "Insight report (last %d days)\n\n", days)
	fmt.Fprintf(a.stdout, "Overall: %d commands, %d ok, %d failed, avg %dms\n",
		report.Overall.TotalCommands, report.Overall.SuccessCount,
		report.Overall.ErrorCount, report.Overall.AvgDurationMS)

	if len(report.Trend) > 0 {
		fmt.Fprintln(a.stdout, "\nDaily trend:")
		for _, p := range report.Trend {
			fmt.Fprintf(a.stdout, "  %s  total %-3d ok %-3d err %-3d avg %dms\n",
				p.Date, p.Total, p.Success, p.Error, p.AvgDurationMS)
		}
	}

	if len(report.Scenes) > 0 {
		scenes := append([]insight.SceneStat(nil), report.Scenes...)
		sort.Slice(scenes, func(i, j int) bool { return scenes[i].AvgScore > scenes[j].AvgScore })
		fmt.Fprintln(a.stdout, "\nScene scores:")
		for _, st := range scenes {
			fmt.Fprintf(a.stdout, "  %-20s avg %.1f  (%d evaluations)\n", st.Scene, st.AvgScore, st.Count)
		}
	}

	if len(report.Suggestions) > 0 {
		fmt.Fprintln(a.stdout, "\nSuggestions:")
		for _, s := range report.Suggestions {
			fmt.Fprintf(a.stdout, "  - %s\n", s)
		}
	}

	return map[string]any{"days": days, "total_commands": report.Overall.TotalCommands}, nil
}
