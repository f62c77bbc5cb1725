package call

import "strings"

// RawTranscript is one untyped transcript line as delivered by a provider
// event stream, before role and filtering rules are applied.
type RawTranscript struct {
	Speaker string
	Text    string
}

// NormalizeSpeaker maps a provider speaker tag onto a canonical role.
// Any spelling of "human" or "user" is the user; everything else (agent,
// assistant, bot, ...) is the assistant.
func NormalizeSpeaker(speaker string) Role {
	switch strings.ToLower(strings.TrimSpace(speaker)) {
	case "human", "user":
		return RoleUser
	default:
		return RoleAssistant
	}
}

// NormalizeAgentTranscripts converts a batch of pre-configured-agent
// transcript lines into entries to append. Lines with empty or
// whitespace-only text are dropped before emission.
func NormalizeAgentTranscripts(raw []RawTranscript) []TranscriptEntry {
	out := make([]TranscriptEntry, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		out = append(out, TranscriptEntry{Role: NormalizeSpeaker(r.Speaker), Text: r.Text})
	}
	return out
}

// NormalizeFinalTranscript converts one dynamic-assistant transcript event.
// Only events explicitly marked final produce an entry; interim/partial
// recognition is discarded entirely and never surfaces, even transiently.
func NormalizeFinalTranscript(transcriptType, role, text string) (TranscriptEntry, bool) {
	if !strings.EqualFold(strings.TrimSpace(transcriptType), "final") {
		return TranscriptEntry{}, false
	}
	return TranscriptEntry{Role: NormalizeSpeaker(role), Text: text}, true
}

// NormalizeSnapshotTranscripts re-maps the full transcript array a
// snapshot-model provider delivers on every update tick. The result replaces
// the local copy wholesale; the provider's array is authoritative, so no
// deduplication against prior state happens here.
func NormalizeSnapshotTranscripts(raw []RawTranscript) []TranscriptEntry {
	out := make([]TranscriptEntry, 0, len(raw))
	for _, r := range raw {
		out = append(out, TranscriptEntry{Role: NormalizeSpeaker(r.Speaker), Text: r.Text})
	}
	return out
}
