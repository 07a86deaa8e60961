package types

// MessageKey is the glyph in a commit subject naming the kind of queue event.
type MessageKey string

const (
	KeyNewJob      MessageKey = "🈺"
	KeyJobStarted  MessageKey = "👔"
	KeyJobFinished MessageKey = "✅"
)

// IsKnown reports whether k is one of the three defined event kinds.
func (k MessageKey) IsKnown() bool {
	switch k {
	case KeyNewJob, KeyJobStarted, KeyJobFinished:
		return true
	}
	return false
}

func (k MessageKey) String() string {
	return string(k)
}
