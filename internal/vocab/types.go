package vocab

// #region intent-kind

// IntentKind groups intent labels by how the pipeline treats them.
type IntentKind string

const (
	KindInformational IntentKind = "informational"
	KindAction        IntentKind = "action"
	KindOther         IntentKind = "other"
)

// #endregion

// #region intent-spec

// IntentSpec describes one classifier label and the business rules attached to it.
type IntentSpec struct {
	Name string     `yaml:"name"`
	Kind IntentKind `yaml:"kind"`

	// Action is the structured action name emitted for action intents (e.g. "create_ticket").
	Action string `yaml:"action,omitempty"`

	// Required lists the slots that must be concrete before the action can run.
	Required []string `yaml:"required,omitempty"`

	// Section is the passage section label preferred when retrieving for this intent.
	Section string `yaml:"section,omitempty"`

	// BoostTerms replace the query-derived boost profile for this intent.
	BoostTerms []string `yaml:"boost_terms,omitempty"`
}

// #endregion

// #region tables

// Synonym expands a query term into related domain vocabulary.
type Synonym struct {
	Term       string   `yaml:"term"`
	Expansions []string `yaml:"expansions"`
}

// Alias appends a canonical term when a trigger name appears in the query.
type Alias struct {
	Triggers []string `yaml:"triggers"`
	Term     string   `yaml:"term"`
}

// BoostProfile picks caller boost terms from query cues. First matching profile wins.
type BoostProfile struct {
	Name     string   `yaml:"name"`
	Triggers []string `yaml:"triggers"`
	Terms    []string `yaml:"terms"`
}

// Route sends an informational query to an intent by keyword.
type Route struct {
	Intent   string   `yaml:"intent"`
	Keywords []string `yaml:"keywords"`
}

// QualityGate rejects nominally filled slots that carry no usable detail.
type QualityGate struct {
	Intent string `yaml:"intent"`
	Slot   string `yaml:"slot"`

	// MinLength is the minimum trimmed length of the slot value.
	MinLength int `yaml:"min_length"`

	// GenericPhrases mark a value that merely restates the intent.
	GenericPhrases []string `yaml:"generic_phrases"`

	// Missing is the detail name reported to the user when the gate fails.
	Missing string `yaml:"missing"`

	// WaivedBy lists slots whose presence waives the gate (e.g. a named application).
	WaivedBy []string `yaml:"waived_by,omitempty"`
}

// SlotOptions is a closed label set the heuristic extractor matches against.
type SlotOptions struct {
	Slot    string   `yaml:"slot"`
	Cues    []string `yaml:"cues,omitempty"`
	Options []string `yaml:"options"`

	// Exact options only match with their exact casing ("IT" but not "it's").
	Exact []string `yaml:"exact,omitempty"`
}

// Heuristics holds the keyword tables used by the in-process fallback classifier.
type Heuristics struct {
	IntentKeywords     []Route       `yaml:"intent_keywords"`
	UrgencyPatterns    []string      `yaml:"urgency_patterns"`
	NegativeCues       []string      `yaml:"negative_cues"`
	PositiveCues       []string      `yaml:"positive_cues"`
	SlotOptions        []SlotOptions `yaml:"slot_options"`
	DescriptionCues    []string      `yaml:"description_cues"`
	MeetingCues        []string      `yaml:"meeting_cues"`
	IdentifierPattern  string        `yaml:"identifier_pattern"`
	DatePatterns       []string      `yaml:"date_patterns"`
	TopicPattern       string        `yaml:"topic_pattern"`
	DefaultMeetingName string        `yaml:"default_meeting_name"`
}

// #endregion

// #region vocabulary

// Vocabulary is the swappable business vocabulary that drives retrieval,
// carryover and policy. Algorithms stay generic; the words live here.
type Vocabulary struct {
	DocumentLabel string   `yaml:"document_label"`
	GlobalSlots   []string `yaml:"global_slots"`
	ConcreteSlots []string `yaml:"concrete_slots"`

	FallbackIntent             string       `yaml:"fallback_intent"`
	DefaultInformationalIntent string       `yaml:"default_informational_intent"`
	Intents                    []IntentSpec `yaml:"intents"`
	InformationalRoutes        []Route      `yaml:"informational_routes"`

	InformationalKeywords []string `yaml:"informational_keywords"`
	ContinuationPhrases   []string `yaml:"continuation_phrases"`

	Synonyms      []Synonym      `yaml:"synonyms"`
	Aliases       []Alias        `yaml:"aliases"`
	BoostProfiles []BoostProfile `yaml:"boost_profiles"`
	EntityNames   []string       `yaml:"entity_names"`
	Boilerplate   []string       `yaml:"boilerplate"`
	Substantive   []string       `yaml:"substantive_cues"`
	QueryCues     []string       `yaml:"query_cues"`
	Artifacts     []string       `yaml:"artifacts"`

	QualityGates []QualityGate `yaml:"quality_gates"`
	Heuristics   Heuristics    `yaml:"heuristics"`
}

// #endregion
