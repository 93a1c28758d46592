package scene

import "strings"

// confidenceFloor is the confidence below which detection falls back to
// the general scene. With the score/3 normalization only a zero score
// lands below it, but the comparison is kept explicit so the threshold
// reads as policy, not arithmetic.
const confidenceFloor = 0.3

// Result is the outcome of classifying one transcript.
type Result struct {
	// SceneKey is the winning scene's "category/subtype" key.
	SceneKey string `json:"scene"`
	// SceneName is the winning scene's display name.
	SceneName string `json:"scene_name"`
	// Confidence is min(score/3, 1). On fallback it keeps the computed
	// value rather than being pinned to the floor.
	Confidence float64 `json:"confidence"`
	// Keywords are the matched keywords in declared order, at most 5.
	// On fallback it holds the single synthetic fallback keyword.
	Keywords []string `json:"keywords"`
	// AllScores maps every scene key to its raw keyword-hit count.
	AllScores map[string]int `json:"all_scores"`
}

// Detect classifies transcript content against the taxonomy. It is a
// total function: any input, including empty, yields a result.
//
// Each scene scores one point per declared keyword that appears anywhere
// in the content as a literal, case-sensitive substring. Repeated
// occurrences of the same keyword do not add points. The first declared
// scene with the maximum score wins; later scenes must score strictly
// higher to displace it. When the winner's confidence lands below the
// floor, the result is the fallback scene with a synthetic keyword, and
// the confidence stays at its computed value.
func Detect(content string) Result {
	all := make(map[string]int, len(scenes))

	best := scenes[0]
	bestScore := -1
	for _, sc := range scenes {
		score := 0
		for _, kw := range sc.Keywords {
			if strings.Contains(content, kw) {
				score++
			}
		}
		all[sc.Key] = score
		if score > bestScore {
			best = sc
			bestScore = score
		}
	}

	confidence := float64(bestScore) / 3.0
	if confidence > 1 {
		confidence = 1
	}

	if confidence < confidenceFloor {
		fb := Fallback()
		return Result{
			SceneKey:   fb.Key,
			SceneName:  fb.Name,
			Confidence: confidence,
			Keywords:   []string{fallbackKeyword},
			AllScores:  all,
		}
	}

	return Result{
		SceneKey:   best.Key,
		SceneName:  best.Name,
		Confidence: confidence,
		Keywords:   matchedKeywords(best, content),
		AllScores:  all,
	}
}

// matchedKeywords lists the scene's keywords present in content, in the
// order they are declared, truncated to 5.
func matchedKeywords(sc Scene, content string) []string {
	var out []string
	for _, kw := range sc.Keywords {
		if strings.Contains(content, kw) {
			out = append(out, kw)
			if len(out) == 5 {
				break
			}
		}
	}
	return out
}
