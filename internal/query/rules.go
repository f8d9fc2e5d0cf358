package query

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/maim-pdmr/spiz/internal/model"
)

// ruleFile is the on-disk shape of an intent-rule override. Keeping the
// trigger table as data lets the classification behavior be versioned and
// tuned without a rebuild.
type ruleFile struct {
	Intents []struct {
		Intent   string   `yaml:"intent"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"intents"`
}

var validIntents = map[model.Intent]bool{
	model.IntentTotal: true, model.IntentCount: true, model.IntentAuthor: true,
	model.IntentSource: true, model.IntentValue: true, model.IntentRisk: true,
	model.IntentRead: true, model.IntentAnalysis: true, model.IntentReport: true,
	model.IntentQuantitative: true, model.IntentGeneral: true,
}

// LoadIntentRules reads an ordered intent-rule table from a YAML file.
// Declaration order in the file is the priority order.
func LoadIntentRules(path string) ([]IntentRule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "query: read rule file %s", path)
	}
	var rf ruleFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return nil, eris.Wrapf(err, "query: parse rule file %s", path)
	}
	if len(rf.Intents) == 0 {
		return nil, eris.New("query: rule file declares no intents")
	}

	rules := make([]IntentRule, 0, len(rf.Intents))
	for i, entry := range rf.Intents {
		intent := model.Intent(entry.Intent)
		if !validIntents[intent] {
			return nil, eris.New(fmt.Sprintf("query: rule %d: unknown intent %q", i, entry.Intent))
		}
		if len(entry.Patterns) == 0 {
			return nil, eris.New(fmt.Sprintf("query: rule %d (%s): no patterns", i, entry.Intent))
		}
		rule, err := compileIntentRule(intent, entry.Patterns)
		if err != nil {
			return nil, eris.Wrapf(err, "query: rule %d (%s)", i, entry.Intent)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func compileIntentRule(intent model.Intent, patterns []string) (rule IntentRule, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.New(fmt.Sprintf("invalid pattern: %v", r))
		}
	}()
	return NewIntentRule(intent, patterns...), nil
}
