package classify

// Lexicon groups the fixed word and phrase tables used by the detectors.
// Each table serves exactly one detector so languages can be extended per
// concern. Bump Version whenever a table changes; it is logged with every
// classification.
type Lexicon struct {
	Version string

	// MarathiMarkers and HindiMarkers disambiguate Devanagari text, checked
	// in that order.
	MarathiMarkers []string
	HindiMarkers   []string

	// Conjunctions and ComplexityTopics are whole-word, case-insensitive
	// terms counted by the complexity score.
	Conjunctions     []string
	ComplexityTopics []string

	// DetailPhrases are substrings signalling a request for more detail.
	DetailPhrases []string

	// ElaborationOnly are whole messages that ask only to expand the
	// previous answer.
	ElaborationOnly []string

	// FollowUpPhrases are "what next / how do I fix it" substrings.
	FollowUpPhrases []string

	// TopicHints are agriculture subjects; a hit means the message brings
	// its own topic.
	TopicHints []string
}

// DefaultLexicon is the production table set.
var DefaultLexicon = Lexicon{
	Version: "2025.1",

	MarathiMarkers: []string{"आहे", "काय", "मी", "तुम्ही", "कसे", "शेती", "पीक", "माहिती", "कृपया", "होते"},
	HindiMarkers:   []string{"है", "कैसे", "कृपया", "मौसम", "खेती", "फसल", "बारिश", "गर्मी", "क्यों", "क्या"},

	Conjunctions: []string{"and", "or", "but", "then", "because", "so", "also"},
	ComplexityTopics: []string{
		"weather", "rain", "soil", "fertilizer", "pest", "disease",
		"irrigation", "yield", "variety", "spray", "dose", "market",
	},

	DetailPhrases: []string{
		"elaborate", "in detail", "detailed", "step by step", "explain",
		"विस्तार", "विस्तृत", "समझाएं", "डिटेल",
	},

	ElaborationOnly: []string{
		"elaborate", "expand", "more detail", "detail", "in detail",
		"विस्तार", "विस्तृत", "समझाएं", "और बताएं", "और बताइए",
	},

	FollowUpPhrases: []string{
		"what should i do",
		"what do i do",
		"next step",
		"next steps",
		"how do i fix",
		"how to fix",
		"what can i do",
		"what now",
		"what should i do next",
		"how do i proceed",
		"solution",
		"treatment",
		"fix this",
		"what about it",
		"क्या करूं",
		"अब क्या करूं",
		"क्या करना चाहिए",
		"अगला कदम",
		"मैं क्या करूं",
		"उपाय क्या है",
	},

	TopicHints: []string{
		"wheat", "rice", "cotton", "soy", "soybean", "mustard", "maize",
		"sugarcane", "tomato", "potato", "pest", "disease", "fungus", "insect",
		"fertilizer", "nutrient", "irrigation", "water", "soil", "rain", "weather",
		"फसल", "कीट", "रोग", "खाद", "सिंचाई", "मिट्टी", "बारिश", "मौसम", "पीक", "किड",
		"કૃષિ",
	},
}
