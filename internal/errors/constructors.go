package errors

// Convenience constructors for the error kinds surfaced by the core.

// Load errors

func LoadFailed(message string, cause error) *TimingError {
	return Wrap(cause, CategoryLoad, SeverityError, message)
}

func IncompatibleSources(reason string) *TimingError {
	return New(CategoryLoad, SeverityError, "parameter and TOA sources are incompatible").
		WithContext("reason", reason)
}

// Parse errors

func ParseFailed(file string, line int, cause error) *TimingError {
	return Wrap(cause, CategoryParse, SeverityError, "malformed source").
		WithContext("file", file).
		WithContext("line", line)
}

// Request validation errors

func ValidationFailed(field, reason string) *TimingError {
	return New(CategoryValidation, SeverityWarning, "request validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Fit errors

func FitFailed(diagnostic string, cause error) *TimingError {
	return Wrap(cause, CategoryFit, SeverityError, "fit failed").
		WithContext("diagnostic", diagnostic)
}

// Console binding errors

func StaleReference(boundGeneration, liveGeneration uint64) *TimingError {
	return New(CategoryStale, SeverityError, "binding refers to a replaced state").
		WithContext("bound_generation", boundGeneration).
		WithContext("live_generation", liveGeneration)
}

// Internal errors

func InternalError(message string, cause error) *TimingError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
