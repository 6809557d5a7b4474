package services

import (
	"github.com/samber/lo"
	"regexp"
	"sort"
	"strings"
)

var defaultCategories = map[string][]string{
	"aerospace": {
		"satellite", "space", "espace", "rocket", "fusée", "aviation", "aircraft", "avion", "aeronautical",
		"aéronautique", "aerospace", "flight", "vol", "propulsion", "orbital", "launcher", "lanceur",
		"spacecraft", "avionics", "avionique", "aerodynamics", "aérodynamique", "turbine", "engine",
		"moteur", "cabin", "cabine", "cockpit", "payload", "charge utile", "constellation", "uav", "drone",
	},
	"software": {
		"python", "javascript", "react", "api", "web", "frontend", "backend", "database", "sql",
		"programming", "programmation", "developer", "développeur", "software", "logiciel", "code",
		"application", "system", "système", "algorithm", "algorithme", "data", "données", "analytics",
		"machine learning", "ai", "ia", "artificial intelligence", "intelligence artificielle",
		"cloud", "devops", "git", "agile", "embedded", "embarqué", "cyber", "cybersecurity", "cybersécurité",
	},
	"engineering": {
		"mechanical", "mécanique", "electrical", "électrique", "systems", "systèmes", "design", "conception",
		"manufacturing", "fabrication", "production", "quality", "qualité", "process", "processus",
		"industrial", "industriel", "automation", "automatisme", "robotics", "robotique", "control",
		"commande", "simulation", "modeling", "modélisation", "cad", "cao", "solidworks", "catia",
		"matlab", "testing", "essais", "test", "validation", "integration", "intégration", "hardware", "matériel",
	},
	"research": {
		"research", "recherche", "development", "développement", "innovation", "r&d", "technology",
		"technologie", "science", "analysis", "analyse", "study", "étude", "investigation",
		"experiment", "expérimentation", "prototype", "feasibility", "faisabilité", "optimization",
		"optimisation", "improvement", "amélioration", "advanced", "avancé", "cutting-edge", "état de l'art",
	},
	"management": {
		"project", "projet", "manager", "management", "gestion", "lead", "leader", "coordinator",
		"coordinateur", "planning", "planification", "strategy", "stratégie", "business", "affaires",
		"operations", "opérations", "team", "équipe", "leadership", "supervision", "organization",
		"organisation", "administration", "budget", "resource", "ressource", "stakeholder", "partie prenante",
		"pmo", "supply chain", "achats", "procurement",
	},
}

var stopWords = lo.SliceToMap([]string{
	"le", "la", "les", "un", "une", "des", "du", "de", "et", "ou", "mais",
	"pour", "avec", "dans", "sur", "par", "sans", "sous", "entre", "vers",
	"the", "a", "an", "and", "or", "but", "for", "with", "in", "on", "by",
	"without", "under", "between", "to", "from", "at", "of", "is", "are",
	"was", "were", "be", "been", "being", "have", "has", "had", "do", "does",
	"did", "will", "would", "could", "should", "may", "might", "can", "must",
}, func(word string) (string, struct{}) { return word, struct{}{} })

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// Tagger assigns category tags to postings by keyword lookup over their title
// and description.
type Tagger struct {
	categories map[string][]string
}

// NewTagger uses the built-in category tables when categories is empty.
func NewTagger(categories map[string][]string) *Tagger {
	if len(categories) == 0 {
		categories = defaultCategories
	}

	normalized := make(map[string][]string, len(categories))
	for category, keywords := range categories {
		normalized[category] = lo.Uniq(lo.Map(keywords, func(k string, _ int) string {
			return strings.ToLower(strings.TrimSpace(k))
		}))
	}
	return &Tagger{categories: normalized}
}

// Tag returns the sorted categories matched by the posting text. A posting
// without a title gets no tags.
func (t *Tagger) Tag(title, description string) []string {
	if strings.TrimSpace(title) == "" {
		return []string{}
	}

	text := strings.TrimSpace(cleanText(title) + " " + cleanText(description))
	if text == "" {
		return []string{}
	}
	words := lo.SliceToMap(strings.Fields(text), func(w string) (string, struct{}) { return w, struct{}{} })

	tags := make([]string, 0, len(t.categories))
	for category, keywords := range t.categories {
		matched := lo.ContainsBy(keywords, func(keyword string) bool {
			if keyword == "" {
				return false
			}
			_, isWord := words[keyword]
			return isWord || strings.Contains(text, keyword)
		})
		if matched {
			tags = append(tags, category)
		}
	}

	sort.Strings(tags)
	return tags
}

func cleanText(text string) string {
	if text == "" {
		return ""
	}

	cleaned := punctuation.ReplaceAllString(strings.ToLower(text), " ")
	words := lo.Filter(strings.Fields(cleaned), func(word string, _ int) bool {
		_, stop := stopWords[word]
		return !stop && len([]rune(word)) > 2
	})
	return strings.Join(words, " ")
}
