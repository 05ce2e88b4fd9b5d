package taxonomy

import "github.com/crimson-sun/cultura/internal/model"

// DefaultEntries returns the built-in culture-dimension taxonomy.
// Keep descriptions stable: the reranker head is trained against these exact strings.
func DefaultEntries() []model.DimensionEntry {
	return []model.DimensionEntry{
		{
			Key:         "Agility",
			Description: "Ability to adapt quickly, learn rapidly, and respond to changing challenges.",
			Aliases:     []string{"agility", "agile", "adaptable", "adaptability", "flexible", "flexibility", "nimble", "rapid learning", "change readiness", "respond quickly", "quick to change"},
		},
		{
			Key:         "Collaboration",
			Description: "Working effectively with others across teams to achieve shared goals.",
			Aliases:     []string{"collaboration", "collaborate", "teamwork", "team work", "cross functional", "partner", "partnership", "co-create", "cooperate", "knowledge sharing", "break silos"},
		},
		{
			Key:         "Customer Orientation",
			Description: "Prioritizing customer needs, satisfaction, and long-term relationships.",
			Aliases:     []string{"customer orientation", "customer focused", "customer focus", "client centric", "customer centric", "user focus", "customer satisfaction", "long term customer", "voice of customer"},
		},
		{
			Key:         "Diversity",
			Description: "Valuing and leveraging differences in background, identity, and perspectives.",
			Aliases:     []string{"diversity", "diverse", "representation", "equal opportunity", "equity & diversity", "demographic diversity", "diverse backgrounds"},
		},
		{
			Key:         "Execution",
			Description: "Consistently delivering goals with discipline, efficiency, and accountability.",
			Aliases:     []string{"execution", "execute", "operational discipline", "delivery excellence", "follow through", "get things done", "on time", "on budget", "delivery focus"},
		},
		{
			Key:         "Innovation",
			Description: "Encouraging new ideas and implementing improvements to products or processes.",
			Aliases:     []string{"innovation", "innovate", "creative", "creativity", "experimentation", "r&d", "new ideas", "ideation", "pilot", "prototype", "disruptive"},
		},
		{
			Key:         "Integrity",
			Description: "Acting ethically, honestly, and upholding strong moral principles.",
			Aliases:     []string{"integrity", "honesty", "honest", "ethical", "ethics", "trustworthiness", "do the right thing", "moral principles", "code of conduct"},
		},
		{
			Key:         "Performance",
			Description: "Rewarding high standards, strong results, and achievement.",
			Aliases:     []string{"performance", "results oriented", "high performance", "achievement", "meet targets", "meet goals", "kpi", "okrs", "top performer"},
		},
		{
			Key:         "Respect",
			Description: "Ensuring employees feel valued, treated fairly, and recognized for contributions.",
			Aliases:     []string{"respect", "respectful", "treated fairly", "dignity", "civility", "valued for contributions", "fair treatment"},
		},
		{
			Key:         "Learning",
			Description: "Continuously gaining knowledge, sharing insights, and applying learning to improve.",
			Aliases:     []string{"learning", "learn", "continuous improvement", "kaizen", "knowledge sharing", "skill growth", "upskill", "reskill", "development mindset", "apply lessons"},
		},
		{
			Key:         "Accountability",
			Description: "Taking ownership of outcomes, admitting mistakes, and acting transparently.",
			Aliases:     []string{"accountability", "accountable", "ownership", "own it", "responsibility", "responsible for outcomes", "answerable", "transparency", "taxation"},
		},
		{
			Key:         "Well-being",
			Description: "Prioritizing mental, physical, and emotional health for sustainable performance.",
			Aliases:     []string{"wellbeing", "well being", "well-being", "wellness", "mental health", "work life balance", "work-life balance", "stress management", "burnout", "psychological safety", "employee health"},
		},
		{
			Key:         "Ethical Responsibility",
			Description: "Embedding ethics, environmental stewardship, and positive social impact into operations.",
			Aliases:     []string{"ethics", "ethical", "ethical responsibility", "csr", "sustainability", "esg", "environmental stewardship", "social impact", "community impact", "responsible business", "ethics program", "compliance program"},
		},
		{
			Key:         "Digital Empowerment",
			Description: "Using technology and data to empower employees and process automation, digital fluency, smart decision-making.",
			Aliases:     []string{"digital empowerment", "technology enablement", "digital tools", "data driven", "data-driven", "digitization", "digital workplace", "collaboration tools", "automation", "ai tools", "tech stack"},
		},
	}
}

// DefaultFixes maps normalized shorthand seen in gold labels and model output
// to canonical keys. Consulted before exact and fuzzy matching.
func DefaultFixes() map[string]string {
	return map[string]string{
		"wellbeing":            "Well-being",
		"well being":           "Well-being",
		"work life balance":    "Well-being",
		"safety":               "Well-being",
		"health":               "Well-being",
		"customer focus":       "Customer Orientation",
		"customer focused":     "Customer Orientation",
		"client centric":       "Customer Orientation",
		"user focus":           "Customer Orientation",
		"esg":                  "Ethical Responsibility",
		"sustainability":       "Ethical Responsibility",
		"csr":                  "Ethical Responsibility",
		"environmental":        "Ethical Responsibility",
		"transparency":         "Accountability",
		"gov relations":        "Accountability",
		"government relations": "Accountability",
		"data driven":          "Digital Empowerment",
		"digital tools":        "Digital Empowerment",
		"automation":           "Digital Empowerment",
	}
}
