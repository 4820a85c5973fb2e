package workflow

// Route is the decision taken after a stage completes.
type Route int

const (
	Continue Route = iota
	Fail
)

func (r Route) String() string {
	if r == Fail {
		return "fail"
	}
	return "continue"
}

// AfterExtraction routes to weather retrieval unless extraction recorded an error.
func AfterExtraction(s *RequestState) Route {
	return routeOnError(s)
}

// AfterWeather routes to the recommendation stage unless retrieval recorded an error.
func AfterWeather(s *RequestState) Route {
	return routeOnError(s)
}

func routeOnError(s *RequestState) Route {
	if s.Err != "" {
		return Fail
	}
	return Continue
}
