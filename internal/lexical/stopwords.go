package lexical

// #region stopwords
// queryStopwords are dropped from query tokens before overlap counting.
var queryStopwords = map[string]bool{
	"what": true, "which": true, "who": true, "the": true, "and": true,
	"for": true, "with": true, "from": true, "that": true, "this": true,
	"date": true, "name": true, "how": true, "when": true, "where": true,
	"why": true, "does": true, "did": true, "has": true, "have": true,
	"been": true, "were": true, "was": true, "is": true, "are": true,
	"it": true, "in": true, "on": true, "at": true, "about": true,
}

// bigramStopwords are skipped when pairing adjacent words.
var bigramStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true,
	"from": true, "that": true, "this": true,
}

// #endregion stopwords
