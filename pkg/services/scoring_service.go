package services

import (
	"fmt"
	"strings"

	"gtm-agent-api/pkg/models"
)

// scoringMatrix holds the points each answer adds per level key.
var scoringMatrix = map[string]map[string]models.LevelScores{
	QuestionICP: {
		"SMB Founders (1-50 employees)": {"l3": 20},
		"Mid-Market (50-500 employees)": {"l3": 20},
		"Enterprise (500+ employees)":   {"l3": 20},
		"Consumer/B2C":                  {"l3": 20},
		"Not sure yet":                  {"l3": 0},
	},
	QuestionProblem: {
		"Crystal clear - customers describe it to us": {"l1": 30, "l2": 20},
		"Pretty clear - we've validated it":           {"l1": 20, "l2": 10},
		"Somewhat clear - we think we know":           {"l1": 10, "l2": 0},
		"Still figuring it out":                       {"l1": 0, "l2": 0},
	},
	QuestionValidation: {
		"Revenue from target ICP": {"l4": 30, "l3": 20},
		"Pilots/design partners":  {"l4": 20, "l3": 10},
		"Interest/waitlist":       {"l4": 10, "l3": 5},
		"Not validated yet":       {"l4": 0, "l3": 0},
	},
}

var levelGaps = map[int][]string{
	1: {
		"Problem statement not clearly defined",
		"No customer validation of the problem",
		"Unable to articulate what you do in one sentence",
	},
	2: {
		"No positioning statement",
		"Value proposition unclear",
		"Messaging not tested with customers",
	},
	3: {
		"ICP too broad or undefined",
		"No documented buyer triggers",
		"Missing psychographic profile",
	},
	4: {
		"No repeatable channel identified",
		"No sales playbook or process",
		"Unable to delegate sales/marketing",
	},
	5: {
		"No scale playbook documented",
		"Single channel dependency",
		"Founder still required for all deals",
	},
}

var levelRecommendations = map[int][]string{
	1: {
		"Interview 5 potential customers this week",
		"Write down the problem you solve in one sentence",
		"Document 3 specific pain points your customers have",
	},
	2: {
		"Create a positioning statement using: For [ICP] who [pain], we [solution]",
		"Test your messaging with 3 customers",
		"Define your unique value vs alternatives",
	},
	3: {
		"Define your ICP with 5 specific criteria",
		"Document the trigger events that make buyers ready",
		"Create an ideal customer profile document",
	},
	4: {
		"Identify 2 channels where your ICP hangs out",
		"Run a small experiment in each channel",
		"Document what messaging works in each channel",
	},
	5: {
		"Create a sales playbook for delegation",
		"Build a second channel for diversification",
		"Systematize your content creation process",
	},
}

const (
	maxGaps            = 5
	maxRecommendations = 5
	levelGapsTaken     = 2
)

// Score maps diagnostic answers, optionally enriched with company context,
// to a scorecard. It is pure: the same input always yields the same output.
func Score(answers models.Answers, ctx *models.CompanyContext) models.Scorecard {
	scores := calculateScores(answers)
	level := determineLevel(scores)
	recs := recommendationsForLevel(level)
	if ctx.Usable() {
		recs = personalizeRecommendations(recs, ctx, answers)
	}
	return models.Scorecard{
		Level:           level,
		Scores:          scores,
		Gaps:            gapsForLevel(level, answers),
		Recommendations: recs,
	}
}

func calculateScores(answers models.Answers) models.LevelScores {
	scores := models.LevelScores{"l1": 50, "l2": 50, "l3": 0, "l4": 0, "l5": 0}
	for questionID, option := range answers {
		for key, points := range scoringMatrix[questionID][option] {
			scores[key] += points
		}
	}
	for _, key := range models.LevelKeys {
		scores[key] = clamp(scores[key], 0, 100)
	}
	return scores
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// determineLevel walks the threshold ladder from the top; the first
// satisfied rung wins.
func determineLevel(scores models.LevelScores) int {
	switch {
	case scores["l5"] >= 60:
		return 5
	case scores["l4"] >= 40:
		return 4
	case scores["l3"] >= 30:
		return 3
	case scores["l2"] >= 60:
		return 2
	default:
		return 1
	}
}

func gapsForLevel(level int, answers models.Answers) []string {
	gaps := make([]string, 0, maxGaps)
	canned := levelGaps[level]
	if len(canned) > levelGapsTaken {
		canned = canned[:levelGapsTaken]
	}
	gaps = append(gaps, canned...)

	if strings.Contains(answers[QuestionICP], "Not sure yet") {
		gaps = append(gaps, "No clear ICP defined")
	}
	if strings.Contains(strings.ToLower(answers[QuestionProblem]), "figuring") {
		gaps = append(gaps, "Problem clarity needs work")
	}
	if strings.Contains(answers[QuestionValidation], "Not validated") {
		gaps = append(gaps, "Solution not yet validated with customers")
	}
	return truncate(gaps, maxGaps)
}

func recommendationsForLevel(level int) []string {
	recs := append([]string{}, levelRecommendations[level]...)
	if next, ok := levelRecommendations[level+1]; ok && level < 5 {
		recs = append(recs, "Stretch: "+next[0])
	}
	return truncate(recs, maxRecommendations)
}

func personalizeRecommendations(recs []string, ctx *models.CompanyContext, answers models.Answers) []string {
	companyName := ctx.CompanyName
	if companyName == "" {
		companyName = "your company"
	}
	icp := answers[QuestionICP]

	out := make([]string, 0, len(recs)+1)
	for _, rec := range recs {
		if strings.Contains(rec, "ICP") && icp != "" && !strings.Contains(icp, "Not sure") {
			rec = strings.ReplaceAll(rec, "your ICP", icp)
			rec = strings.ReplaceAll(rec, "ICP", icp)
		}
		if strings.Contains(strings.ToLower(rec), "customers") && ctx.ProductDescription != "" {
			rec = fmt.Sprintf("%s (Focus on how %s solves: %s)", rec, companyName, firstRunes(ctx.ProductDescription, 100))
		}
		out = append(out, rec)
	}
	if len(ctx.KeyFeatures) > 0 {
		out = append(out, fmt.Sprintf("Highlight %s's key differentiator: %s", companyName, ctx.KeyFeatures[0]))
	}
	return truncate(out, maxRecommendations)
}

func truncate(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// firstRunes returns at most n runes of s.
func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
