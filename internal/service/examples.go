package service

var examples = []string{
	"What should I wear in London tomorrow?",
	"Is it safe to travel to Mumbai next week?",
	"What clothes should I pack for a trip to Tokyo?",
	"Will the weather affect my outdoor plans in New York this weekend?",
	"Should I bring an umbrella to Paris?",
	"What's the best time to visit Sydney for beach activities?",
}

// Examples returns sample queries for clients to offer users.
func Examples() []string {
	out := make([]string, len(examples))
	copy(out, examples)
	return out
}
