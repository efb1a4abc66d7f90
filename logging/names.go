package logging

const (
	NameAmendmentTally    = "AmendmentTally"
	NameMetricsHandler    = "MetricsHandler"
	NameNameResolver      = "NameResolver"
	NameTrackerNode       = "TrackerNode"
	NameUNLFetcher        = "UNLFetcher"
	NameValidationStream  = "ValidationStream"
	NameValidatorRegistry = "ValidatorRegistry"
)
