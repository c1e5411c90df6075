package dialogue

import "strings"

// dangerCondition pairs a condition name with the phrases that indicate it.
type dangerCondition struct {
	name     string
	keywords []string
}

// dangerConditions is the fixed heuristic table for emergency detection.
// Matching any keyword in a reply or a collected field value flags an
// emergency without consulting the intent classifier.
var dangerConditions = []dangerCondition{
	{"severe pain", []string{"unbearable pain", "excruciating", "worst pain of my life", "agonizing"}},
	{"breathing difficulty", []string{"can't breathe", "cannot breathe", "difficulty breathing", "short of breath", "shortness of breath", "choking", "suffocating"}},
	{"loss of consciousness", []string{"unconscious", "passed out", "fainted", "blacked out", "fainting"}},
	{"uncontrolled bleeding", []string{"bleeding heavily", "won't stop bleeding", "wont stop bleeding", "heavy bleeding", "hemorrhage"}},
	{"severe allergic reaction", []string{"throat swelling", "throat is swelling", "tongue swelling", "anaphylaxis"}},
	{"chest pain", []string{"chest pain", "crushing chest", "chest tightness", "angina", "pressure in my chest"}},
}

// matchDanger scans a single text for danger keywords and returns the
// matched condition name.
func matchDanger(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, cond := range dangerConditions {
		for _, kw := range cond.keywords {
			if strings.Contains(lower, kw) {
				return cond.name, true
			}
		}
	}
	return "", false
}

// matchDangerAll scans the reply and every collected field value.
func matchDangerAll(reply string, c *Context) (string, bool) {
	if name, ok := matchDanger(reply); ok {
		return name, ok
	}
	for _, v := range c.Fields() {
		if name, ok := matchDanger(v); ok {
			return name, ok
		}
	}
	return "", false
}
