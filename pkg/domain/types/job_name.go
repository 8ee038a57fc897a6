package types

import "fmt"

// JobName identifies a background job type
type JobName string

const (
	JobNameExtractMemories   JobName = "extract-memories"
	JobNameCalculateCallCost JobName = "calculate-call-cost"
	JobNameRegenerateChapter JobName = "regenerate-chapter"
)

// AllJobNames returns all valid job names
func AllJobNames() []JobName {
	return []JobName{
		JobNameExtractMemories,
		JobNameCalculateCallCost,
		JobNameRegenerateChapter,
	}
}

// IsValid checks if the job name is valid
func (n JobName) IsValid() bool {
	switch n {
	case JobNameExtractMemories,
		JobNameCalculateCallCost,
		JobNameRegenerateChapter:
		return true
	default:
		return false
	}
}

// String returns the string representation of the job name
func (n JobName) String() string {
	return string(n)
}

// ParseJobName parses a string into a JobName
func ParseJobName(s string) (JobName, error) {
	n := JobName(s)
	if !n.IsValid() {
		return "", fmt.Errorf("invalid job name: %s", s)
	}
	return n, nil
}
