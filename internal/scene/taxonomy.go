// Package scene classifies meeting transcripts into a fixed taxonomy.
// Classification is pure keyword matching: no I/O, no model calls, fully
// deterministic. The taxonomy is declared at build time and never changes
// at runtime; prompt versions and outputs are keyed by the scene keys
// defined here, so keys must stay stable across releases.
package scene

// Scene is one leaf of the meeting taxonomy, identified by a two-part
// key "category/subtype". Keywords are ordered; the declared order is
// preserved in detection results.
type Scene struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Subtype     string   `json:"subtype"`
	Keywords    []string `json:"keywords"`
	Description string   `json:"description"`
}

// FallbackKey is the scene assigned when no scene scores confidently.
const FallbackKey = "general/other"

// fallbackKeyword is the synthetic keyword reported on fallback results.
const fallbackKeyword = "会议"

// scenes is the full taxonomy in declaration order. Detection ties are
// broken by this order (first declared scene with the maximum score wins),
// so reordering entries is a behavior change, not a cleanup.
var scenes = []Scene{
	// 产品 / product
	{
		Key: "product/weekly", Name: "产品周会", Category: "product", Subtype: "weekly",
		Keywords:    []string{"产品周会", "本周", "需求", "排期", "进展", "下周计划"},
		Description: "产品团队例行周会，同步需求进展与排期",
	},
	{
		Key: "product/review", Name: "需求评审会", Category: "product", Subtype: "review",
		Keywords:    []string{"需求评审", "评审", "PRD", "产品方案", "原型", "验收标准"},
		Description: "产品需求文档与方案评审",
	},
	{
		Key: "product/planning", Name: "产品规划会", Category: "product", Subtype: "planning",
		Keywords:    []string{"产品规划", "路线图", "里程碑", "季度目标", "OKR"},
		Description: "中长期产品方向与路线规划",
	},

	// 技术 / tech
	{
		Key: "tech/standup", Name: "技术站会", Category: "tech", Subtype: "standup",
		Keywords:    []string{"站会", "晨会", "昨天", "今天", "阻塞", "卡点"},
		Description: "研发每日站会，同步进展与阻塞",
	},
	{
		Key: "tech/review", Name: "技术评审会", Category: "tech", Subtype: "review",
		Keywords:    []string{"技术评审", "代码评审", "架构评审", "Code Review", "方案评审"},
		Description: "代码、架构与技术方案评审",
	},
	{
		Key: "tech/design", Name: "方案设计会", Category: "tech", Subtype: "design",
		Keywords:    []string{"技术方案", "系统设计", "架构设计", "接口设计", "数据库设计"},
		Description: "系统与接口设计讨论",
	},
	{
		Key: "tech/retro", Name: "技术复盘会", Category: "tech", Subtype: "retro",
		Keywords:    []string{"复盘", "故障", "事故", "根因", "改进措施", "线上问题"},
		Description: "故障复盘与改进措施制定",
	},

	// 项目 / project
	{
		Key: "project/kickoff", Name: "项目启动会", Category: "project", Subtype: "kickoff",
		Keywords:    []string{"启动会", "立项", "项目目标", "分工", "项目范围"},
		Description: "项目立项与启动，明确目标与分工",
	},
	{
		Key: "project/sync", Name: "项目同步会", Category: "project", Subtype: "sync",
		Keywords:    []string{"项目同步", "项目进度", "周报", "风险同步", "协调"},
		Description: "跨团队项目进度同步与协调",
	},
	{
		Key: "project/risk", Name: "风险评审会", Category: "project", Subtype: "risk",
		Keywords:    []string{"风险评估", "风险项", "延期", "资源不足", "应对方案"},
		Description: "项目风险识别与应对",
	},

	// 团队 / team
	{
		Key: "team/oneonone", Name: "一对一沟通", Category: "team", Subtype: "oneonone",
		Keywords:    []string{"一对一", "1v1", "绩效反馈", "职业发展", "个人成长"},
		Description: "上下级一对一沟通",
	},
	{
		Key: "team/allhands", Name: "全员会", Category: "team", Subtype: "allhands",
		Keywords:    []string{"全员会", "全体会议", "公司战略", "季度总结", "宣讲"},
		Description: "公司或部门全员大会",
	},
	{
		Key: "team/building", Name: "团队建设", Category: "team", Subtype: "building",
		Keywords:    []string{"团建", "团队建设", "破冰", "活动策划"},
		Description: "团建活动讨论与策划",
	},

	// 客户 / client
	{
		Key: "client/discovery", Name: "客户调研会", Category: "client", Subtype: "discovery",
		Keywords:    []string{"客户调研", "需求调研", "客户访谈", "痛点", "使用场景"},
		Description: "客户需求调研与访谈",
	},
	{
		Key: "client/demo", Name: "产品演示会", Category: "client", Subtype: "demo",
		Keywords:    []string{"产品演示", "演示", "Demo", "试用", "功能介绍"},
		Description: "面向客户的产品演示",
	},
	{
		Key: "client/negotiation", Name: "商务谈判", Category: "client", Subtype: "negotiation",
		Keywords:    []string{"商务谈判", "报价", "合同", "条款", "折扣", "签约"},
		Description: "商务条款与合同谈判",
	},

	// 人事 / hr
	{
		Key: "hr/interview", Name: "面试", Category: "hr", Subtype: "interview",
		Keywords:    []string{"面试", "候选人", "工作经历", "自我介绍", "面试官"},
		Description: "候选人面试",
	},
	{
		Key: "hr/onboarding", Name: "入职培训", Category: "hr", Subtype: "onboarding",
		Keywords:    []string{"入职", "新员工", "入职培训", "规章制度", "导师"},
		Description: "新员工入职与培训",
	},
	{
		Key: "hr/performance", Name: "绩效面谈", Category: "hr", Subtype: "performance",
		Keywords:    []string{"绩效面谈", "绩效考核", "评级", "晋升", "目标完成"},
		Description: "绩效考核与面谈",
	},

	// 通用 / general
	{
		Key: "general/brainstorm", Name: "头脑风暴", Category: "general", Subtype: "brainstorm",
		Keywords:    []string{"头脑风暴", "脑暴", "创意", "点子", "发散"},
		Description: "开放式创意讨论",
	},
	{
		Key: "general/training", Name: "培训分享", Category: "general", Subtype: "training",
		Keywords:    []string{"培训", "分享会", "讲座", "学习", "课程"},
		Description: "内部培训与知识分享",
	},
	{
		Key: "general/other", Name: "其他会议", Category: "general", Subtype: "other",
		Keywords:    []string{"会议"},
		Description: "未能归入具体类型的会议",
	},
}

// All returns the full taxonomy in declaration order. The returned slice
// is a copy; callers may not mutate the taxonomy.
func All() []Scene {
	out := make([]Scene, len(scenes))
	copy(out, scenes)
	return out
}

// Lookup finds a scene by its "category/subtype" key.
func Lookup(key string) (Scene, bool) {
	for _, sc := range scenes {
		if sc.Key == key {
			return sc, true
		}
	}
	return Scene{}, false
}

// Fallback returns the scene used when detection is inconclusive.
func Fallback() Scene {
	sc, _ := Lookup(FallbackKey)
	return sc
}

// Categories returns the distinct category names in declaration order.
func Categories() []string {
	var out []string
	seen := make(map[string]bool)
	for _, sc := range scenes {
		if !seen[sc.Category] {
			seen[sc.Category] = true
			out = append(out, sc.Category)
		}
	}
	return out
}
