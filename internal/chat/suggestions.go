package chat

// DefaultSuggestions are the canned prompts offered below the input.
var DefaultSuggestions = []string{
	"Spell 'friend'",
	"Define 'curious'",
	"Past tense help",
	"Homework tips",
}

// DefaultHistoryTitles fill the history panel. They are decorative, no conversation backs them.
var DefaultHistoryTitles = []string{
	"Yesterday's Adventure",
	"Last Week's Quest",
	"Grammar Galaxy Exploration",
	"Vocabulary Voyage",
}
