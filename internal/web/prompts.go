package web

import (
	"errors"
	"net/http"

	"github.com/wrenware/scribe/internal/promptstore"
	"github.com/wrenware/scribe/internal/scene"
)

// SceneListing pairs a scene with its stored version summary.
type SceneListing struct {
	Scene    scene.Scene
	Versions int
	Current  string
}

// PromptsData is the template context for the prompt browser.
type PromptsData struct {
	ActiveNav string
	Scenes    []SceneListing
}

// handlePrompts lists every scene with its version count.
func (s *WebServer) handlePrompts(w http.ResponseWriter, r *http.Request) {
	index, err := s.prompts.Index()
	if err != nil {
		s.logger.Warn("load prompt index", "error", err)
	}

	all := scene.All()
	listings := make([]SceneListing, 0, len(all))
	for _, sc := range all {
		l := SceneListing{Scene: sc}
		if rec, ok := index[sc.Key]; ok {
			l.Versions = len(rec.Versions)
			l.Current = rec.CurrentVersion
		}
		listings = append(listings, l)
	}

	s.render(w, "prompts.html", PromptsData{ActiveNav: "prompts", Scenes: listings})
}

// PromptDetailData is the template context for one scene's versions.
type PromptDetailData struct {
	ActiveNav string
	Scene     scene.Scene
	Versions  []promptstore.VersionInfo
	Selected  *promptstore.Prompt
}

// handlePromptDetail shows a scene's version history and a rendered
// preview of one version (?version=, defaulting to the resolved
// current prompt).
func (s *WebServer) handlePromptDetail(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("category") + "/" + r.PathValue("subtype")
	sc, ok := scene.Lookup(key)
	if !ok {
		http.NotFound(w, r)
		return
	}

	versions, err := s.prompts.List(key)
	if err != nil && !errors.Is(err, promptstore.ErrNotFound) {
		s.logger.Error("list prompt versions", "scene", key, "error", err)
		http.Error(w, "failed to list versions", http.StatusInternalServerError)
		return
	}

	var selected *promptstore.Prompt
	if p, err := s.prompts.Get(key, r.URL.Query().Get("version")); err == nil {
		selected = p
	}

	s.render(w, "prompt_detail.html", PromptDetailData{
		ActiveNav: "prompts",
		Scene:     sc,
		Versions:  versions,
		Selected:  selected,
	})
}
