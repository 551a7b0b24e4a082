package parser

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/insightdelivered/statement-parser/internal/models"
)

// Vocabulary is a table of phrases that imply the direction of an amount
// whose token carried no sign of its own. Markers identify the institution
// a statement comes from.
type Vocabulary struct {
	Name    string   `yaml:"name"`
	Markers []string `yaml:"markers"`
	Debit   []string `yaml:"debit"`
	Credit  []string `yaml:"credit"`

	debitRe  *regexp.Regexp
	creditRe *regexp.Regexp
}

// DefaultVocabularyName names the vocabulary used when no institution matches.
const DefaultVocabularyName = "default"

var defaultDebitPhrases = []string{
	"transfer to", "cash advance", "cash withdrawal", "withdrawal", "atm",
	"card payment", "direct debit", "standing order", "purchase", "pos",
	"bill payment", "payment to", "payment", "fee", "charge", "interest charged",
	"debit", "dd",
}

var defaultCreditPhrases = []string{
	"transfer from", "deposit", "opening balance", "balance brought forward",
	"salary", "refund", "interest", "interest paid", "direct credit", "credit from",
	"faster payment received", "payment received", "bank credit", "bgc",
	"cashback", "reversal",
}

// NewVocabulary builds a vocabulary and compiles its phrase matchers.
func NewVocabulary(name string, markers, debit, credit []string) *Vocabulary {
	v := &Vocabulary{Name: name, Markers: markers, Debit: debit, Credit: credit}
	v.compile()
	return v
}

// DefaultVocabulary returns the institution-neutral phrase table.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(DefaultVocabularyName, nil, defaultDebitPhrases, defaultCreditPhrases)
}

// BuiltinVocabularies returns the bundled institution profiles followed by
// the default vocabulary.
func BuiltinVocabularies() []*Vocabulary {
	return []*Vocabulary{
		NewVocabulary("Metro Bank",
			[]string{"Metro Bank", "metrobankonline"},
			extend(defaultDebitPhrases, "card payment", "direct debit"),
			extend(defaultCreditPhrases, "bank credit", "inward payment")),
		NewVocabulary("HSBC",
			[]string{"HSBC", "hsbc.co.uk"},
			extend(defaultDebitPhrases, "vis", "))) ", "cr card"),
			extend(defaultCreditPhrases, "cr transfer", "bacs")),
		NewVocabulary("Barclays",
			[]string{"Barclays", "barclays.co.uk"},
			extend(defaultDebitPhrases, "card purchase", "bill pay"),
			extend(defaultCreditPhrases, "received from", "giro", "bacs")),
		DefaultVocabulary(),
	}
}

// LoadVocabulary reads vocabularies from a YAML file of the form
//
//	vocabularies:
//	  - name: Example Bank
//	    markers: ["Example Bank"]
//	    debit: ["card spend"]
//	    credit: ["money in"]
//
// The default vocabulary is appended so detection always has a fallback.
func LoadVocabulary(path string) ([]*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vocabulary: read %s", path)
	}

	var doc struct {
		Vocabularies []*Vocabulary `yaml:"vocabularies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "vocabulary: parse")
	}
	if len(doc.Vocabularies) == 0 {
		return nil, eris.Errorf("vocabulary: %s defines no vocabularies", path)
	}

	for i, v := range doc.Vocabularies {
		if v.Name == "" {
			return nil, eris.Errorf("vocabulary: entry %d has no name", i)
		}
		v.compile()
	}
	return append(doc.Vocabularies, DefaultVocabulary()), nil
}

// DetectVocabulary returns the first vocabulary whose marker appears in the
// text, or the first marker-less one when none do.
func DetectVocabulary(text string, vocabs []*Vocabulary) *Vocabulary {
	lower := strings.ToLower(text)
	var fallback *Vocabulary
	for _, v := range vocabs {
		if len(v.Markers) == 0 {
			if fallback == nil {
				fallback = v
			}
			continue
		}
		for _, marker := range v.Markers {
			if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
				return v
			}
		}
	}
	if fallback == nil {
		return DefaultVocabulary()
	}
	return fallback
}

// Classify looks for debit and credit phrases anywhere in the line. The
// longest phrase wins, so "payment received" beats "payment"; a tie goes
// to debit. Vocabularies must come from NewVocabulary or LoadVocabulary.
func (v *Vocabulary) Classify(line string) (models.Kind, bool) {
	debit := longestMatch(v.debitRe, line)
	credit := longestMatch(v.creditRe, line)
	switch {
	case debit == 0 && credit == 0:
		return "", false
	case credit > debit:
		return models.KindCredit, true
	default:
		return models.KindDebit, true
	}
}

func (v *Vocabulary) compile() {
	v.debitRe = phraseMatcher(v.Debit)
	v.creditRe = phraseMatcher(v.Credit)
}

// phraseMatcher builds a case-insensitive alternation of the phrases,
// longest first, bounded so "atm" does not fire inside "treatment".
func phraseMatcher(phrases []string) *regexp.Regexp {
	var quoted []string
	seen := make(map[string]bool)
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		quoted = append(quoted, regexp.QuoteMeta(p))
	}
	if len(quoted) == 0 {
		return nil
	}
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return regexp.MustCompile(`(?i)(?:^|[^\pL\pN])(` + strings.Join(quoted, "|") + `)(?:$|[^\pL\pN])`)
}

func longestMatch(re *regexp.Regexp, line string) int {
	if re == nil {
		return 0
	}
	best := 0
	for _, m := range re.FindAllStringSubmatch(line, -1) {
		if len(m[1]) > best {
			best = len(m[1])
		}
	}
	return best
}

func extend(base []string, more ...string) []string {
	out := make([]string, 0, len(base)+len(more))
	out = append(out, base...)
	return append(out, more...)
}
