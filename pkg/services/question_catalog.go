package services

import (
	"fmt"
	"strings"

	"gtm-agent-api/pkg/models"
)

const (
	QuestionICP        = "q1_icp"
	QuestionProblem    = "q2_problem"
	QuestionValidation = "q3_validation"
)

// QuestionCount is the number of questions in the diagnostic.
const QuestionCount = 3

var questions = []models.DiagnosticQuestion{
	{
		QuestionID:   QuestionICP,
		QuestionText: "Who is your ideal customer?",
		Options: []string{
			"SMB Founders (1-50 employees)",
			"Mid-Market (50-500 employees)",
			"Enterprise (500+ employees)",
			"Consumer/B2C",
			"Not sure yet",
		},
		Phase: models.PhaseICP,
	},
	{
		QuestionID:   QuestionProblem,
		QuestionText: "How clear is the problem you solve?",
		Options: []string{
			"Crystal clear - customers describe it to us",
			"Pretty clear - we've validated it",
			"Somewhat clear - we think we know",
			"Still figuring it out",
		},
		Phase: models.PhaseMessaging,
	},
	{
		QuestionID:   QuestionValidation,
		QuestionText: "How validated is your solution?",
		Options: []string{
			"Revenue from target ICP",
			"Pilots/design partners",
			"Interest/waitlist",
			"Not validated yet",
		},
		Phase: models.PhaseValidation,
	},
}

// GetQuestion returns the question at ordinal n (1-based).
func GetQuestion(n int) (models.DiagnosticQuestion, error) {
	if n < 1 || n > len(questions) {
		return models.DiagnosticQuestion{}, fmt.Errorf("%w: question %d (valid 1-%d)", ErrOutOfRange, n, len(questions))
	}
	return cloneQuestion(questions[n-1]), nil
}

// GetAllQuestions returns the questions in diagnostic order.
func GetAllQuestions() []models.DiagnosticQuestion {
	out := make([]models.DiagnosticQuestion, len(questions))
	for i, q := range questions {
		out[i] = cloneQuestion(q)
	}
	return out
}

func cloneQuestion(q models.DiagnosticQuestion) models.DiagnosticQuestion {
	q.Options = append([]string(nil), q.Options...)
	return q
}

var levels = []models.LevelInfo{
	{
		Level:       1,
		Name:        "Problem-Solution Fit",
		Description: "Can articulate the problem clearly and have initial solution",
		Criteria: []string{
			"Can describe customer problem in one sentence",
			"Have talked to at least 5 potential customers",
			"Understand why current solutions fail",
		},
	},
	{
		Level:       2,
		Name:        "Messaging Clarity",
		Description: "Have clear positioning and value proposition",
		Criteria: []string{
			"Positioning statement exists and tested",
			"Value proposition resonates with target audience",
			"Can explain differentiation vs alternatives",
		},
	},
	{
		Level:       3,
		Name:        "ICP Definition",
		Description: "Know exactly who to target and why",
		Criteria: []string{
			"ICP defined with specific criteria",
			"Understand buyer triggers and timing",
			"Have psychographic profile of ideal customer",
		},
	},
	{
		Level:       4,
		Name:        "Channel Fit",
		Description: "Have 1-2 working acquisition channels",
		Criteria: []string{
			"At least one channel producing customers",
			"Understand unit economics per channel",
			"Can predict results from channel investment",
		},
	},
	{
		Level:       5,
		Name:        "Scale Ready",
		Description: "Ready to scale with documented playbooks",
		Criteria: []string{
			"Multiple channels working",
			"Playbooks for delegation exist",
			"Can hire and onboard sales/marketing",
		},
	},
}

// LevelInfo returns the escalator description of a level.
func LevelInfo(level int) (models.LevelInfo, error) {
	if level < 1 || level > len(levels) {
		return models.LevelInfo{}, fmt.Errorf("%w: level %d (valid 1-%d)", ErrOutOfRange, level, len(levels))
	}
	info := levels[level-1]
	info.Criteria = append([]string(nil), info.Criteria...)
	info.CommonGaps = append([]string(nil), levelGaps[level]...)
	return info, nil
}

// LevelUpCriteria describes what it takes to move past the given level.
func LevelUpCriteria(level int) string {
	if level >= len(levels) {
		return "You're at the highest level! Focus on optimization and scale."
	}
	if level < 1 {
		level = 1
	}
	next := levels[level]
	return fmt.Sprintf("To reach Level %d (%s): %s", next.Level, next.Name, strings.Join(next.Criteria[:2], " AND "))
}
