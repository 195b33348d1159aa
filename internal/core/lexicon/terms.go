package lexicon

// defaultTerms is the built-in de-escalation lexicon. A rewrite that still
// carries any of these failed its job: the model was asked to remove blame
// language, contempt markers, and absolutes
var defaultTerms = []Term{
	// contempt markers
	{Phrase: "idiot", Category: "contempt", Severity: 4},
	{Phrase: "stupid", Category: "contempt", Severity: 4},
	{Phrase: "pathetic", Category: "contempt", Severity: 4},
	{Phrase: "useless", Category: "contempt", Severity: 4},
	{Phrase: "worthless", Category: "contempt", Severity: 5},
	{Phrase: "lazy", Category: "contempt", Severity: 3},
	{Phrase: "disgusting", Category: "contempt", Severity: 4},

	// blame language
	{Phrase: "your fault", Category: "blame", Severity: 3},
	{Phrase: "you always", Category: "blame", Severity: 3},
	{Phrase: "you never", Category: "blame", Severity: 3},
	{Phrase: "blame you", Category: "blame", Severity: 3},

	// threats and ultimatums
	{Phrase: "or else", Category: "threat", Severity: 4},
	{Phrase: "i'm done with you", Category: "threat", Severity: 4},
	{Phrase: "hate you", Category: "hostility", Severity: 5},
	{Phrase: "shut up", Category: "hostility", Severity: 4},

	// dismissal
	{Phrase: "whatever", Category: "dismissal", Severity: 2},
	{Phrase: "don't care", Category: "dismissal", Severity: 2},
}
