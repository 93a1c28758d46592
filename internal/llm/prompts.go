package llm

import (
	"fmt"
	"strings"
)

// judgePrompt builds the fixed evaluation prompt. The judge scores a
// generated summary against a reference on four named dimensions and
// must answer with a single JSON object matching [Evaluation]. The
// wording is part of the evaluation contract: changing it shifts every
// historical score, so treat edits like schema migrations.
func judgePrompt(generated, reference string) string {
	var b strings.Builder

	b.WriteString(`你是一位严格的会议纪要质量评审专家。请对比"待评估纪要"与"参考纪要"，从以下四个维度打分（每项 0-100 的整数）：

1. completeness（完整性）：参考纪要中的议程、结论、参会人员是否都被覆盖
2. detail（细节把握）：关键数字、时间、责任人等细节是否准确保留
3. thoroughness（深入程度）：是否提炼了讨论背后的决策与原因，而非流水账
4. word_count_diff（篇幅匹配）：篇幅与参考纪要的接近程度，过长或过短都应扣分

综合四项计算 total（0-100 的整数），并给出等级 grade：
S（≥90）、A（≥80）、B（≥70）、C（≥60）、D（<60）。

同时列出 strengths（优点）、weaknesses（不足）、suggestions（改进建议），每项为字符串数组。

只输出一个 JSON 对象，不要输出任何其他文字。字段名固定为：
completeness, detail, thoroughness, word_count_diff, total, grade, strengths, weaknesses, suggestions

`)
	fmt.Fprintf(&b, "【待评估纪要】\n%s\n\n", generated)
	fmt.Fprintf(&b, "【参考纪要】\n%s\n", reference)

	return b.String()
}

// optimizePrompt builds the meta-prompt that asks a model to rewrite a
// summary prompt based on its evaluation. The weaknesses and suggestions
// from the judge are embedded verbatim so the rewriter sees exactly what
// the judge saw wrong.
func optimizePrompt(prompt string, eval *Evaluation) string {
	var b strings.Builder

	b.WriteString(`你是一位提示词优化专家。下面是一个用于生成会议纪要的提示词，以及它最近一次生成结果的评估。请重写这个提示词，针对评估中指出的不足做出改进。

要求：
- 保留原提示词中行之有效的结构与约束
- 针对每条不足给出明确的新指令
- 直接输出优化后的完整提示词，不要输出解释或前言

`)
	fmt.Fprintf(&b, "【当前提示词】\n%s\n\n", prompt)
	fmt.Fprintf(&b, "【评估得分】总分 %d（%s）\n\n", eval.Total, eval.Grade)

	if len(eval.Weaknesses) > 0 {
		b.WriteString("【评估指出的不足】\n")
		for _, w := range eval.Weaknesses {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}
	if len(eval.Suggestions) > 0 {
		b.WriteString("【评估给出的建议】\n")
		for _, s := range eval.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}

	b.WriteString("【优化后的提示词】\n")
	return b.String()
}
