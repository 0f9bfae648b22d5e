package domain

import "time"

// TranscriptSource tells which side of a link produced a transcript:
// the local speech recognizer or a remote peer's broadcast.
type TranscriptSource int

const (
	SourceLocal TranscriptSource = iota
	SourceRemote
)

func (s TranscriptSource) String() string {
	if s == SourceLocal {
		return "local"
	}
	return "remote"
}

// Transcript is transient: it lives only in the dedup window and is
// never stored by this subsystem.
type Transcript struct {
	Text   string
	Source TranscriptSource
	At     time.Time
}
