package models

// Progress durations are persisted in seconds regardless of the unit used at
// the API boundary. Both conversions are pure and lossless for integer
// minute inputs.

// MinutesToSeconds converts an API-boundary duration to the storage unit.
func MinutesToSeconds(min int) int { return min * 60 }

// SecondsToMinutes converts a stored duration back to minutes.
func SecondsToMinutes(sec int) int { return sec / 60 }
